// Package audit provides an asynchronous NDJSON trail of prompt-test
// attempts and chat requests. One file per device inside an environment
// directory, plus an optional global file with every event.
package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a single audit record.
type Event struct {
	ID          string `json:"id"`
	Timestamp   string `json:"ts"`
	Environment string `json:"environment"`
	DeviceKey   string `json:"device_key"`
	TaskID      string `json:"task_id,omitempty"`
	Channel     string `json:"channel"` // prompt_test, tutor_chat, assistant_chat
	Outcome     string `json:"outcome"`
	PromptLen   int    `json:"prompt_len,omitempty"`
	Remaining   int    `json:"remaining"`
	Detail      string `json:"detail,omitempty"`
}

// Config controls audit logging.
type Config struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Recorder accepts audit events. The noop implementation is used when
// auditing is disabled.
type Recorder interface {
	Record(event Event)
	Close() error
}

// NewRecorder creates a Recorder for cfg. When auditing is disabled a
// noop recorder is returned.
func NewRecorder(cfg Config, logger *slog.Logger) (Recorder, error) {
	if !cfg.Enabled {
		return noopRecorder{}, nil
	}
	return newLogger(cfg, logger)
}

type noopRecorder struct{}

func (noopRecorder) Record(Event) {}
func (noopRecorder) Close() error { return nil }

// Logger writes events from a bounded queue on a single background
// goroutine. Record never blocks a request: when the queue is full the
// event is dropped with a warning.
type Logger struct {
	cfg    Config
	logger *slog.Logger
	queue  chan Event
	done   chan struct{}
	once   sync.Once
}

func newLogger(cfg Config, logger *slog.Logger) (*Logger, error) {
	if cfg.QueueSize <= 0 {
		return nil, fmt.Errorf("audit queue size must be > 0, got %d", cfg.QueueSize)
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	if cfg.GlobalEnabled {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0755); err != nil {
			return nil, fmt.Errorf("create global audit directory: %w", err)
		}
	}

	l := &Logger{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan Event, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go l.writeLoop()
	return l, nil
}

// Record enqueues an event, filling in ID and Timestamp when empty.
func (l *Logger) Record(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	select {
	case l.queue <- event:
	default:
		l.logger.Warn("audit queue full, dropping event",
			"device_key", event.DeviceKey,
			"channel", event.Channel,
		)
	}
}

// Close stops the writer after draining queued events.
func (l *Logger) Close() error {
	l.once.Do(func() {
		close(l.queue)
		<-l.done
	})
	return nil
}

func (l *Logger) writeLoop() {
	defer close(l.done)
	for event := range l.queue {
		l.write(event)
	}
}

func (l *Logger) write(event Event) {
	line, err := json.Marshal(event)
	if err != nil {
		l.logger.Warn("failed to marshal audit event", "error", err)
		return
	}
	line = append(line, '\n')

	path := filepath.Join(l.cfg.Dir, sanitizePathPart(event.Environment), sanitizePathPart(event.DeviceKey)+".ndjson")
	if err := appendLine(path, line); err != nil {
		l.logger.Warn("failed to write audit event", "error", err, "path", path)
	}

	if l.cfg.GlobalEnabled {
		if err := appendLine(l.cfg.GlobalPath, line); err != nil {
			l.logger.Warn("failed to write global audit event", "error", err)
		}
	}
}

func appendLine(path string, line []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close audit file", "error", closeErr, "path", path)
		}
	}()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append line: %w", err)
	}
	return nil
}

// sanitizePathPart keeps device keys and environments from escaping the
// audit directory.
func sanitizePathPart(s string) string {
	if s == "" {
		return "unknown"
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
