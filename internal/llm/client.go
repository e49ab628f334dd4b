// Package llm provides the upstream chat-completion client.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/hakku-ai/gateway/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

// User-facing failure strings. The frontend shows these verbatim.
const (
	MsgRateLimited     = "Слишком много запросов. Подождите немного."
	MsgPaymentRequired = "Сервис временно недоступен."
	MsgUpstreamFailed  = "Ошибка AI сервиса"
)

// UpstreamError describes a failed upstream completion call.
type UpstreamError struct {
	// Status is the upstream HTTP status, 0 when the failure happened
	// before a response arrived (network error, bad payload).
	Status int
	// UserMessage is the localized string shown to the end user.
	UserMessage string
	// Err is the underlying cause.
	Err error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream returned status %d", e.Status)
	}
	return "upstream call failed"
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// UserMessage extracts the localized message for err, falling back to
// the generic failure string.
func UserMessage(err error) string {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.UserMessage
	}
	return MsgUpstreamFailed
}

// Reason maps err to a short label for metrics.
func Reason(err error) string {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		switch ue.Status {
		case http.StatusTooManyRequests:
			return "rate_limited"
		case http.StatusPaymentRequired:
			return "payment_required"
		}
	}
	return "error"
}

// Completer is the upstream completion capability used by HTTP handlers.
type Completer interface {
	// Complete performs a blocking chat completion and returns the
	// assistant message content.
	Complete(ctx context.Context, msgs []domain.Message) (string, error)

	// Stream performs a streaming chat completion, yielding incremental
	// content deltas.
	Stream(ctx context.Context, msgs []domain.Message) iter.Seq2[string, error]
}

// Client implements Completer against an OpenAI-compatible gateway.
type Client struct {
	api   *openai.Client
	model string
}

// Ensure Client implements Completer.
var _ Completer = (*Client)(nil)

// NewClient creates a Client for the given gateway.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
	}
}

// Complete performs a blocking chat completion.
func (c *Client) Complete(ctx context.Context, msgs []domain.Message) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAI(msgs),
	})
	if err != nil {
		return "", mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &UpstreamError{UserMessage: MsgUpstreamFailed, Err: errors.New("empty choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream performs a streaming chat completion.
func (c *Client) Stream(ctx context.Context, msgs []domain.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:    c.model,
			Messages: toOpenAI(msgs),
			Stream:   true,
		})
		if err != nil {
			yield("", mapError(err))
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", mapError(err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				if !yield(delta, nil) {
					return
				}
			}
		}
	}
}

func toOpenAI(msgs []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return out
}

// mapError converts go-openai errors into UpstreamError with the
// localized message for the upstream status.
func mapError(err error) error {
	status := 0

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	msg := MsgUpstreamFailed
	switch status {
	case http.StatusTooManyRequests:
		msg = MsgRateLimited
	case http.StatusPaymentRequired:
		msg = MsgPaymentRequired
	}

	return &UpstreamError{Status: status, UserMessage: msg, Err: err}
}
