package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hakku-ai/gateway/internal/audit"
	"github.com/hakku-ai/gateway/internal/domain"
	"github.com/hakku-ai/gateway/internal/guard"
	"github.com/hakku-ai/gateway/internal/identity"
	"github.com/hakku-ai/gateway/internal/llm"
	"github.com/hakku-ai/gateway/internal/metrics"
)

const msgBlockedPrompt = "Промпт содержит недопустимые запросы. Пожалуйста, формулируйте запросы для изучения создания промптов."

type promptTestRequest struct {
	Prompt      string `json:"prompt"`
	TaskContext string `json:"taskContext"`
	TaskID      string `json:"taskId"`
	DeviceID    string `json:"deviceId"`
}

// quotaTask picks the quota partition for a request: the explicit task
// id when the frontend sends one, else the task context.
func (r promptTestRequest) quotaTask() string {
	if r.TaskID != "" {
		return r.TaskID
	}
	return r.TaskContext
}

type promptTestResponse struct {
	Response  string `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
}

// HandlePromptTest runs one practice attempt: charge the daily quota,
// validate the prompt, forward it upstream and return the completion
// with the remaining attempt count.
//
// Failures are part of the product flow, so almost everything comes
// back as HTTP 200 with an error payload the frontend renders inline.
// Only structurally broken requests (bad JSON, empty prompt) get a 400
// before the quota row is touched.
func (h *Handler) HandlePromptTest(w http.ResponseWriter, r *http.Request) {
	var req promptTestRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	deviceKey := identity.DeviceKey(req.DeviceID, r)
	env := identity.Environment(r)
	key := domain.AttemptKey{
		DeviceKey:   deviceKey,
		TaskID:      req.quotaTask(),
		Day:         domain.Day(time.Now()),
		Environment: env,
	}

	event := audit.Event{
		Environment: env,
		DeviceKey:   deviceKey,
		TaskID:      req.quotaTask(),
		Channel:     "prompt_test",
		PromptLen:   utf8.RuneCountInString(req.Prompt),
	}

	checkErr := h.guard.Check(req.Prompt)
	if errors.Is(checkErr, guard.ErrEmptyPrompt) {
		Error(w, http.StatusBadRequest, msgEmptyPrompt)
		return
	}

	limit := h.cfg.Quota.DailyLimit
	count, allowed, err := h.attempts.Increment(r.Context(), key, limit)
	if err != nil {
		slog.Error("failed to increment attempt counter", "error", err, "device_key", deviceKey, "task", req.TaskContext)
		Error(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	if !allowed {
		metrics.Attempts.WithLabelValues(metrics.OutcomeQuotaExceeded).Inc()
		event.Outcome = metrics.OutcomeQuotaExceeded
		h.audit.Record(event)
		remaining := 0
		JSON(w, http.StatusOK, promptTestResponse{
			Error:     fmt.Sprintf("Превышен лимит попыток на сегодня (%d попыток в день)", limit),
			Remaining: &remaining,
		})
		return
	}

	remaining := domain.Remaining(count, limit)
	event.Remaining = remaining

	// A content rejection still costs the attempt charged above: letting
	// blocked prompts retry for free would turn the blocklist into an
	// oracle.
	if checkErr != nil {
		var tooLong *guard.TooLongError
		var blocked *guard.BlockedError
		switch {
		case errors.As(checkErr, &tooLong):
			metrics.Attempts.WithLabelValues(metrics.OutcomeTooLong).Inc()
			event.Outcome = metrics.OutcomeTooLong
			h.audit.Record(event)
			JSON(w, http.StatusOK, promptTestResponse{
				Error:     fmt.Sprintf("Промпт слишком длинный (максимум %d символов)", tooLong.Limit),
				Remaining: &remaining,
			})
		case errors.As(checkErr, &blocked):
			metrics.Attempts.WithLabelValues(metrics.OutcomeBlocked).Inc()
			metrics.Blocked.WithLabelValues(blocked.Rule.Category).Inc()
			event.Outcome = metrics.OutcomeBlocked
			event.Detail = blocked.Rule.Category
			h.audit.Record(event)
			JSON(w, http.StatusOK, promptTestResponse{
				Error:     msgBlockedPrompt,
				Remaining: &remaining,
			})
		default:
			slog.Error("unexpected guard error", "error", checkErr)
			Error(w, http.StatusInternalServerError, msgInternalError)
		}
		return
	}

	msgs := []domain.Message{
		{Role: domain.RoleSystem, Content: promptTestSystemPrompt(req.TaskContext)},
		{Role: domain.RoleUser, Content: req.Prompt},
	}

	content, err := h.completer.Complete(r.Context(), msgs)
	if err != nil {
		slog.Error("upstream completion failed", "error", err, "task", req.TaskContext)
		metrics.Attempts.WithLabelValues(metrics.OutcomeUpstreamError).Inc()
		metrics.UpstreamFailures.WithLabelValues(llm.Reason(err)).Inc()
		event.Outcome = metrics.OutcomeUpstreamError
		event.Detail = llm.Reason(err)
		h.audit.Record(event)
		JSON(w, http.StatusOK, promptTestResponse{
			Error:     llm.UserMessage(err),
			Remaining: &remaining,
		})
		return
	}

	metrics.Attempts.WithLabelValues(metrics.OutcomeOK).Inc()
	event.Outcome = metrics.OutcomeOK
	h.audit.Record(event)
	JSON(w, http.StatusOK, promptTestResponse{
		Response:  content,
		Remaining: &remaining,
	})
}

// promptTestSystemPrompt builds the system instruction for one practice
// attempt: the model answers prompts on-topic for the task and redirects
// everything else back to it.
func promptTestSystemPrompt(taskContext string) string {
	var b strings.Builder
	b.WriteString("Ты — AI-ассистент для практики промпт-инжиниринга на платформе hakku.ai.\n\n")
	b.WriteString("КОНТЕКСТ ЗАДАНИЯ: ")
	b.WriteString(domain.TaskDescription(taskContext))
	b.WriteString("\n\n")
	b.WriteString("ТВОИ ПРАВИЛА:\n")
	b.WriteString("1. Выполняй запросы пользователя, относящиеся к контексту задания.\n")
	b.WriteString("2. Если запрос не по теме задания — вежливо откажись и верни пользователя к теме.\n")
	b.WriteString("3. Всегда отвечай на русском языке.\n")
	b.WriteString("4. Используй markdown для форматирования (жирный текст, списки).")
	return b.String()
}
