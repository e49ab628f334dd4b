// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Attempt outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeQuotaExceeded = "quota_exceeded"
	OutcomeBlocked       = "blocked"
	OutcomeTooLong       = "too_long"
	OutcomeUpstreamError = "upstream_error"
)

var (
	// Attempts counts prompt-test attempts by outcome.
	Attempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hakku",
		Subsystem: "gateway",
		Name:      "attempts_total",
		Help:      "Prompt test attempts by outcome.",
	}, []string{"outcome"})

	// Blocked counts blocklist rejections by rule category.
	Blocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hakku",
		Subsystem: "gateway",
		Name:      "blocked_prompts_total",
		Help:      "Prompts rejected by the blocklist, by rule category.",
	}, []string{"category"})

	// UpstreamFailures counts failed upstream completion calls.
	UpstreamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hakku",
		Subsystem: "gateway",
		Name:      "upstream_failures_total",
		Help:      "Failed upstream completion calls by reason.",
	}, []string{"reason"})

	// AssistantStreams counts streaming assistant sessions started.
	AssistantStreams = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hakku",
		Subsystem: "gateway",
		Name:      "assistant_streams_total",
		Help:      "Streaming assistant sessions started.",
	})
)

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
