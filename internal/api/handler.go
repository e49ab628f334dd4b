// Package api provides HTTP handlers for the hakku.ai gateway.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hakku-ai/gateway/internal/audit"
	"github.com/hakku-ai/gateway/internal/config"
	"github.com/hakku-ai/gateway/internal/guard"
	"github.com/hakku-ai/gateway/internal/llm"
	"github.com/hakku-ai/gateway/internal/store"
)

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

// User-facing strings shared by handlers.
const (
	msgBadRequest    = "Некорректный запрос"
	msgEmptyPrompt   = "Промпт не может быть пустым"
	msgEmptyMessage  = "Сообщение не может быть пустым"
	msgInternalError = "Внутренняя ошибка сервера"
)

// Handler serves the gateway API.
type Handler struct {
	attempts  store.AttemptStore
	completer llm.Completer
	guard     *guard.Guard
	audit     audit.Recorder
	cfg       *config.Config
}

// NewHandler creates a Handler with its dependencies.
func NewHandler(attempts store.AttemptStore, completer llm.Completer, g *guard.Guard, rec audit.Recorder, cfg *config.Config) *Handler {
	if rec == nil {
		rec = noopAudit{}
	}
	return &Handler{
		attempts:  attempts,
		completer: completer,
		guard:     g,
		audit:     rec,
		cfg:       cfg,
	}
}

type noopAudit struct{}

func (noopAudit) Record(audit.Event) {}
func (noopAudit) Close() error       { return nil }

// RegisterRoutes registers the gateway routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/prompt-test", h.HandlePromptTest)
		r.Post("/tutor-chat", h.HandleTutorChat)
		r.Post("/assistant/chat", h.HandleAssistantChat)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeBody decodes a size-limited JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}
