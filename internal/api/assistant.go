package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hakku-ai/gateway/internal/domain"
	"github.com/hakku-ai/gateway/internal/llm"
	"github.com/hakku-ai/gateway/internal/metrics"
)

// assistantSystemPrompt is the base instruction for the page assistant.
// Page context gets appended per request.
const assistantSystemPrompt = `Ты — AI-ассистент платформы hakku.ai.
Помогаешь пользователям разобраться в учебных материалах.
Отвечай на русском языке, кратко и по существу.
Если пользователь спрашивает по домашнему заданию — задавай наводящие вопросы, не давай готовых ответов.
Используй markdown для форматирования.
Контекст текущей страницы пользователя будет передан в сообщении.`

// maxLessonContentRunes bounds how much lesson text is folded into the
// system instruction.
const maxLessonContentRunes = 2000

type assistantChatRequest struct {
	Messages []domain.Message    `json:"messages"`
	Context  *domain.PageContext `json:"context"`
}

// sseChunk mirrors the OpenAI streaming chunk shape the frontend
// consumer already parses.
type sseChunk struct {
	Choices []sseChoice `json:"choices"`
}

type sseChoice struct {
	Delta sseDelta `json:"delta"`
}

type sseDelta struct {
	Content string `json:"content"`
}

// HandleAssistantChat proxies a streaming completion to the frontend as
// server-sent events. Upstream failures before the first delta map to a
// JSON error response; once streaming has started the connection is
// simply closed and the client keeps whatever arrived.
func (h *Handler) HandleAssistantChat(w http.ResponseWriter, r *http.Request) {
	var req assistantChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		Error(w, http.StatusBadRequest, msgEmptyMessage)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("response writer does not support streaming")
		Error(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	msgs := make([]domain.Message, 0, len(req.Messages)+1)
	msgs = append(msgs, domain.Message{
		Role:    domain.RoleSystem,
		Content: assistantSystemContent(req.Context),
	})
	msgs = append(msgs, req.Messages...)

	metrics.AssistantStreams.Inc()

	started := false
	for delta, err := range h.completer.Stream(r.Context(), msgs) {
		if err != nil {
			if !started {
				slog.Error("assistant stream failed before first delta", "error", err)
				metrics.UpstreamFailures.WithLabelValues(llm.Reason(err)).Inc()
				Error(w, upstreamStatus(err), llm.UserMessage(err))
				return
			}
			if !errors.Is(err, r.Context().Err()) {
				slog.Warn("assistant stream aborted", "error", err)
				metrics.UpstreamFailures.WithLabelValues(llm.Reason(err)).Inc()
			}
			return
		}

		if !started {
			started = true
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.WriteHeader(http.StatusOK)
		}

		payload, err := json.Marshal(sseChunk{Choices: []sseChoice{{Delta: sseDelta{Content: delta}}}})
		if err != nil {
			slog.Error("failed to marshal stream chunk", "error", err)
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
	}

	if !started {
		// Upstream closed without producing content. Send an empty stream
		// so the client sees a clean end instead of an error.
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// assistantSystemContent folds the page context into the base assistant
// instruction.
func assistantSystemContent(pc *domain.PageContext) string {
	if pc == nil {
		return assistantSystemPrompt
	}

	content := assistantSystemPrompt
	page := pc.Page
	if page == "" {
		page = "неизвестно"
	}
	content += "\n\nТекущий контекст пользователя:\n- Страница: " + page
	if pc.CourseTitle != "" {
		content += "\n- Курс: " + pc.CourseTitle
	}
	if pc.LessonTitle != "" {
		content += "\n- Урок: " + pc.LessonTitle
	}
	if pc.LessonContent != "" {
		content += "\n- Содержание урока (кратко): " + truncateRunes(pc.LessonContent, maxLessonContentRunes)
	}
	if pc.Description != "" {
		content += "\n- Описание: " + pc.Description
	}
	return content
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
