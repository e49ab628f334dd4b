package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hakku-ai/gateway/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/v1", "test-key", "test-model", 5*time.Second)
}

func TestCompleteReturnsContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"Привет!"}}]}`)
	})

	got, err := c.Complete(context.Background(), []domain.Message{
		{Role: domain.RoleSystem, Content: "system"},
		{Role: domain.RoleUser, Content: "Привет"},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "Привет!" {
		t.Errorf("content = %q", got)
	}
}

func TestCompleteMapsUpstreamStatuses(t *testing.T) {
	tests := []struct {
		status  int
		wantMsg string
	}{
		{http.StatusTooManyRequests, MsgRateLimited},
		{http.StatusPaymentRequired, MsgPaymentRequired},
		{http.StatusInternalServerError, MsgUpstreamFailed},
	}

	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tt.status)
			fmt.Fprint(w, `{"error":{"message":"upstream failed"}}`)
		})

		_, err := c.Complete(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "hi"}})
		if err == nil {
			t.Fatalf("status %d: expected error", tt.status)
		}

		var ue *UpstreamError
		if !errors.As(err, &ue) {
			t.Fatalf("status %d: got %T, want UpstreamError", tt.status, err)
		}
		if ue.Status != tt.status {
			t.Errorf("status = %d, want %d", ue.Status, tt.status)
		}
		if ue.UserMessage != tt.wantMsg {
			t.Errorf("UserMessage = %q, want %q", ue.UserMessage, tt.wantMsg)
		}
	}
}

func TestCompleteNetworkFailureIsGeneric(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // connection refused from here on

	c := NewClient(url+"/v1", "test-key", "test-model", time.Second)
	_, err := c.Complete(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := UserMessage(err); got != MsgUpstreamFailed {
		t.Errorf("UserMessage = %q, want %q", got, MsgUpstreamFailed)
	}
	if got := Reason(err); got != "error" {
		t.Errorf("Reason = %q, want error", got)
	}
}

func TestStreamYieldsDeltas(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"He\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"llo\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var got string
	for delta, err := range c.Stream(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "hi"}}) {
		if err != nil {
			t.Fatalf("Stream yielded error: %v", err)
		}
		got += delta
	}
	if got != "Hello" {
		t.Errorf("accumulated = %q, want Hello", got)
	}
}

func TestReasonLabels(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&UpstreamError{Status: http.StatusTooManyRequests}, "rate_limited"},
		{&UpstreamError{Status: http.StatusPaymentRequired}, "payment_required"},
		{&UpstreamError{Status: http.StatusInternalServerError}, "error"},
		{errors.New("plain"), "error"},
	}
	for _, tt := range tests {
		if got := Reason(tt.err); got != tt.want {
			t.Errorf("Reason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
