package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/hakku-ai/gateway/internal/domain"
)

func TestTutorChatMapsHistoryRoles(t *testing.T) {
	completer := &fakeCompleter{content: "Хороший вопрос!"}
	router := newTestRouter(t, completer)

	rec := postJSON(t, router, "/api/tutor-chat", `{
		"message": "Как улучшить мой промпт?",
		"taskContext": "deep-research",
		"history": [
			{"role": "user", "content": "Вот мой промпт"},
			{"role": "tutor", "content": "Какую роль вы задали AI?"}
		]
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp tutorChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message != "Хороший вопрос!" {
		t.Errorf("message = %q", resp.Message)
	}

	wantRoles := []string{domain.RoleSystem, domain.RoleUser, domain.RoleAssistant, domain.RoleUser}
	if len(completer.lastMsgs) != len(wantRoles) {
		t.Fatalf("sent %d messages, want %d", len(completer.lastMsgs), len(wantRoles))
	}
	for i, want := range wantRoles {
		if completer.lastMsgs[i].Role != want {
			t.Errorf("message %d role = %q, want %q", i, completer.lastMsgs[i].Role, want)
		}
	}
	if !strings.Contains(completer.lastMsgs[0].Content, "Глубокое исследование") {
		t.Errorf("system prompt lacks task description: %q", completer.lastMsgs[0].Content)
	}
}

func TestTutorChatUnknownTaskFallback(t *testing.T) {
	completer := &fakeCompleter{content: "ok"}
	router := newTestRouter(t, completer)

	rec := postJSON(t, router, "/api/tutor-chat", `{"message":"Привет","taskContext":"custom-task"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(completer.lastMsgs[0].Content, "Задание: custom-task") {
		t.Errorf("system prompt = %q", completer.lastMsgs[0].Content)
	}
}

func TestTutorChatRejectsEmptyAndOversized(t *testing.T) {
	completer := &fakeCompleter{content: "ok"}
	router := newTestRouter(t, completer)

	rec := postJSON(t, router, "/api/tutor-chat", `{"message":"  ","taskContext":"deep-research"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty message: status = %d, want 400", rec.Code)
	}

	long := strings.Repeat("а", 4001)
	rec = postJSON(t, router, "/api/tutor-chat", `{"message":"`+long+`","taskContext":"deep-research"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("oversized message: status = %d, want 400", rec.Code)
	}
	if completer.calls != 0 {
		t.Errorf("rejected messages reached upstream (%d calls)", completer.calls)
	}
}

func TestTutorChatUpstreamStatusPassthrough(t *testing.T) {
	tests := []struct {
		upstream int
		want     int
	}{
		{http.StatusTooManyRequests, http.StatusTooManyRequests},
		{http.StatusPaymentRequired, http.StatusPaymentRequired},
		{http.StatusBadGateway, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		completer := &fakeCompleter{err: upstreamErrForStatus(tt.upstream)}
		router := newTestRouter(t, completer)

		rec := postJSON(t, router, "/api/tutor-chat", `{"message":"Привет","taskContext":"deep-research"}`)
		if rec.Code != tt.want {
			t.Errorf("upstream %d: status = %d, want %d", tt.upstream, rec.Code, tt.want)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode error body: %v", err)
		}
		if body["error"] == "" {
			t.Errorf("upstream %d: missing error message", tt.upstream)
		}
	}
}
