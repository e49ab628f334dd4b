package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/hakku-ai/gateway/internal/audit"
	"github.com/hakku-ai/gateway/internal/domain"
	"github.com/hakku-ai/gateway/internal/identity"
	"github.com/hakku-ai/gateway/internal/llm"
	"github.com/hakku-ai/gateway/internal/metrics"
)

type tutorChatRequest struct {
	Message     string      `json:"message"`
	TaskContext string      `json:"taskContext"`
	History     []tutorTurn `json:"history"`
}

type tutorTurn struct {
	Role    string `json:"role"` // "tutor" or "user"
	Content string `json:"content"`
}

type tutorChatResponse struct {
	Message string `json:"message"`
}

// HandleTutorChat runs one turn of the Socratic tutor conversation.
// Unlike the practice endpoint it is not quota limited, and upstream
// failures keep their real HTTP status so the frontend can distinguish
// rate limiting from outages.
func (h *Handler) HandleTutorChat(w http.ResponseWriter, r *http.Request) {
	var req tutorChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, msgEmptyMessage)
		return
	}
	if n := utf8.RuneCountInString(req.Message); n > h.guard.MaxLen() {
		Error(w, http.StatusBadRequest, fmt.Sprintf("Сообщение слишком длинное (максимум %d символов)", h.guard.MaxLen()))
		return
	}

	msgs := make([]domain.Message, 0, len(req.History)+2)
	msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: tutorSystemPrompt(req.TaskContext)})
	for _, turn := range req.History {
		role := domain.RoleUser
		if turn.Role == "tutor" {
			role = domain.RoleAssistant
		}
		msgs = append(msgs, domain.Message{Role: role, Content: turn.Content})
	}
	msgs = append(msgs, domain.Message{Role: domain.RoleUser, Content: req.Message})

	content, err := h.completer.Complete(r.Context(), msgs)
	if err != nil {
		slog.Error("tutor upstream failed", "error", err, "task", req.TaskContext)
		metrics.UpstreamFailures.WithLabelValues(llm.Reason(err)).Inc()
		h.audit.Record(audit.Event{
			Environment: identity.Environment(r),
			DeviceKey:   identity.DeviceKey("", r),
			TaskID:      req.TaskContext,
			Channel:     "tutor_chat",
			Outcome:     metrics.OutcomeUpstreamError,
			Detail:      llm.Reason(err),
		})
		Error(w, upstreamStatus(err), llm.UserMessage(err))
		return
	}
	if content == "" {
		content = "Не удалось получить ответ."
	}

	h.audit.Record(audit.Event{
		Environment: identity.Environment(r),
		DeviceKey:   identity.DeviceKey("", r),
		TaskID:      req.TaskContext,
		Channel:     "tutor_chat",
		Outcome:     metrics.OutcomeOK,
		PromptLen:   utf8.RuneCountInString(req.Message),
	})
	JSON(w, http.StatusOK, tutorChatResponse{Message: content})
}

// upstreamStatus picks the response status for a failed upstream call:
// 429 and 402 pass through, everything else collapses to 500.
func upstreamStatus(err error) int {
	var ue *llm.UpstreamError
	if errors.As(err, &ue) {
		switch ue.Status {
		case http.StatusTooManyRequests, http.StatusPaymentRequired:
			return ue.Status
		}
	}
	return http.StatusInternalServerError
}

func tutorSystemPrompt(taskContext string) string {
	return fmt.Sprintf(`Ты — опытный тьютор по промпт-инжинирингу. Ты помогаешь пользователю улучшить его промпт, используя метод Сократа.

КОНТЕКСТ ЗАДАНИЯ: %s

ТВОИ ПРАВИЛА:
1. **Метод Сократа**: Не давай готовых промптов! Задавай наводящие вопросы, чтобы пользователь сам пришел к улучшению.
2. **Конкретная критика**: Указывай на конкретные слабые места промпта. Например: "Я заметил, что в вашем промпте нет указания роли для AI. Как думаете, что изменится, если вы добавите роль?"
3. **Позитивный тон**: Сначала отмечай, что хорошо в промпте, потом предлагай улучшения.
4. **Направляющие вопросы**: Используй вопросы типа:
   - "Как думаешь, что будет, если добавить...?"
   - "Что, если попробовать указать формат ответа?"
   - "Какую роль ты бы хотел задать AI в этом случае?"
   - "Что произойдет, если AI не поймет контекст? Как это предотвратить?"
5. **Оценка структуры**: Оценивай промпт по критериям:
   - Четкость цели/задачи
   - Указание роли для AI
   - Наличие контекста
   - Структурированность
   - Формат ожидаемого результата
   - Ограничения и тон
6. **Краткость**: Отвечай конкретно и по делу, не растекайся. 3-5 предложений на вопрос.
7. **Русский язык**: Всегда отвечай на русском.
8. Если пользователь задает вопрос НЕ по теме задания — вежливо верни к теме.

ФОРМАТ ОТВЕТА: Используй markdown для форматирования (жирный текст, списки).`, domain.TaskDescription(taskContext))
}
