package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/hakku-ai/gateway/internal/domain"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	// warningPrefix marks the synthetic assistant message shown when a
	// stream fails for any reason other than user cancellation.
	warningPrefix = "⚠️ "

	fallbackErrorText = "Произошла ошибка. Попробуйте позже."

	readChunkSize = 4096
)

// ErrStreamInProgress is returned by Send when a stream is already
// running for this client. One client tracks one abort handle, so
// overlapping sends would leave the earlier stream uncancellable.
var ErrStreamInProgress = errors.New("a stream is already in progress")

// serverError is a non-2xx response from the assistant endpoint with a
// user-displayable message.
type serverError struct {
	Status  int
	Message string
}

func (e *serverError) Error() string {
	return e.Message
}

// ChatClientConfig configures a ChatClient.
type ChatClientConfig struct {
	// Endpoint is the streaming chat URL.
	Endpoint string
	// Token, when set, is sent as a bearer authorization header.
	Token string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// PageContext, when set, supplies the page metadata attached to each
	// request.
	PageContext func() domain.PageContext
	// OnUpdate, when set, receives a snapshot of the message list every
	// time it changes.
	OnUpdate func(msgs []domain.Message)
}

// ChatClient drives one assistant conversation over the SSE chat
// endpoint. Send blocks while the stream runs and grows a single
// assistant message as deltas arrive.
type ChatClient struct {
	cfg ChatClientConfig

	mu        sync.Mutex
	messages  []domain.Message
	streaming bool
	cancel    context.CancelFunc
}

type chatRequest struct {
	Messages []domain.Message    `json:"messages"`
	Context  *domain.PageContext `json:"context,omitempty"`
}

type deltaChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// NewChatClient creates a ChatClient for cfg.
func NewChatClient(cfg ChatClientConfig) *ChatClient {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &ChatClient{cfg: cfg}
}

// Send appends a user message and streams the assistant reply into the
// message list, blocking until the stream ends. Cancellation via
// CancelStream (or ctx) ends the stream silently; any other failure
// appends one warning-prefixed assistant message. The only error Send
// itself returns is ErrStreamInProgress.
func (c *ChatClient) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.streaming {
		c.mu.Unlock()
		return ErrStreamInProgress
	}
	ctx, cancel := context.WithCancel(ctx)
	c.streaming = true
	c.cancel = cancel
	c.messages = append(c.messages, domain.Message{Role: domain.RoleUser, Content: text})
	history := append([]domain.Message(nil), c.messages...)
	c.mu.Unlock()
	defer cancel()

	c.publish()

	err := c.stream(ctx, history)

	c.mu.Lock()
	c.streaming = false
	c.cancel = nil
	c.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		c.appendAssistant(warningPrefix + userText(err))
		c.publish()
	}
	return nil
}

// CancelStream aborts the in-flight stream, if any. Fragments already
// appended stay in the message list.
func (c *ChatClient) CancelStream() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ClearChat empties the message history.
func (c *ChatClient) ClearChat() {
	c.mu.Lock()
	c.messages = nil
	c.mu.Unlock()
	c.publish()
}

// Messages returns a snapshot of the conversation.
func (c *ChatClient) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Message(nil), c.messages...)
}

// IsStreaming reports whether a stream is currently running.
func (c *ChatClient) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

func (c *ChatClient) stream(ctx context.Context, history []domain.Message) error {
	reqBody := chatRequest{Messages: history}
	if c.cfg.PageContext != nil {
		pc := c.cfg.PageContext()
		reqBody.Context = &pc
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return readServerError(resp)
	}

	framer := &lineFramer{}
	var assistant strings.Builder
	buf := make([]byte, readChunkSize)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			framer.Push(string(buf[:n]))
			c.drainLines(framer, &assistant)
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// drainLines processes the complete lines buffered in the framer.
// Hitting the done sentinel or an unparsable line stops processing for
// this chunk; the caller keeps reading the body either way.
func (c *ChatClient) drainLines(framer *lineFramer, assistant *strings.Builder) {
	for {
		line, ok := framer.Next()
		if !ok {
			return
		}
		if strings.HasPrefix(line, ":") || strings.TrimSpace(line) == "" {
			continue
		}
		payload, ok := strings.CutPrefix(line, dataPrefix)
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == doneSentinel {
			return
		}

		var chunk deltaChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			framer.PushBack(line)
			return
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			assistant.WriteString(content)
			c.upsertAssistant(assistant.String())
			c.publish()
		}
	}
}

// upsertAssistant replaces the trailing assistant message with the
// accumulated content, appending one if the list ends with a user turn.
func (c *ChatClient) upsertAssistant(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.messages); n > 0 && c.messages[n-1].Role == domain.RoleAssistant {
		c.messages[n-1].Content = content
		return
	}
	c.messages = append(c.messages, domain.Message{Role: domain.RoleAssistant, Content: content})
}

func (c *ChatClient) appendAssistant(content string) {
	c.mu.Lock()
	c.messages = append(c.messages, domain.Message{Role: domain.RoleAssistant, Content: content})
	c.mu.Unlock()
}

func (c *ChatClient) publish() {
	if c.cfg.OnUpdate == nil {
		return
	}
	c.cfg.OnUpdate(c.Messages())
}

func readServerError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil || body.Error == "" {
		return &serverError{Status: resp.StatusCode, Message: fmt.Sprintf("Ошибка %d", resp.StatusCode)}
	}
	return &serverError{Status: resp.StatusCode, Message: body.Error}
}

// userText picks the string shown inside the synthetic warning message.
func userText(err error) string {
	var se *serverError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return fallbackErrorText
}
