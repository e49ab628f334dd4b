// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	DBPath         string
	AllowedOrigins []string
	Upstream       UpstreamConfig
	Quota          QuotaConfig
	Guard          GuardConfig
	Audit          AuditConfig
}

// UpstreamConfig describes the chat-completion gateway the service
// forwards prompts to.
type UpstreamConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// QuotaConfig controls the per-device daily attempt quota.
type QuotaConfig struct {
	DailyLimit    int
	RetentionDays int
}

// GuardConfig controls prompt validation.
type GuardConfig struct {
	MaxPromptLen int
	// RulesPath optionally points at a YAML blocklist file that replaces
	// the built-in rule set.
	RulesPath string
}

// AuditConfig controls NDJSON attempt logging.
type AuditConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("AUDIT_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		DBPath:         getEnv("DB_PATH", "./data/gateway.db"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
		Upstream: UpstreamConfig{
			BaseURL: getEnv("UPSTREAM_BASE_URL", "https://ai.gateway.lovable.dev/v1"),
			APIKey:  getEnv("UPSTREAM_API_KEY", ""),
			Model:   getEnv("UPSTREAM_MODEL", "google/gemini-3-flash-preview"),
			Timeout: time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 60)) * time.Second,
		},
		Quota: QuotaConfig{
			DailyLimit:    getEnvInt("DAILY_ATTEMPT_LIMIT", 5),
			RetentionDays: getEnvInt("ATTEMPT_RETENTION_DAYS", 14),
		},
		Guard: GuardConfig{
			MaxPromptLen: getEnvInt("MAX_PROMPT_LENGTH", 4000),
			RulesPath:    getEnv("BLOCKLIST_RULES_PATH", ""),
		},
		Audit: AuditConfig{
			Enabled:       getEnvBool("AUDIT_LOG_ENABLED", true),
			Dir:           getEnv("AUDIT_LOG_DIR", "./data/logs/attempts"),
			GlobalEnabled: getEnvBool("AUDIT_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("AUDIT_LOG_GLOBAL_PATH", "./data/logs/attempts/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Upstream.APIKey == "" {
		return fmt.Errorf("UPSTREAM_API_KEY cannot be empty")
	}
	if c.Upstream.Model == "" {
		return fmt.Errorf("UPSTREAM_MODEL cannot be empty")
	}
	if c.Quota.DailyLimit <= 0 {
		return fmt.Errorf("DAILY_ATTEMPT_LIMIT must be > 0")
	}
	if c.Quota.RetentionDays <= 0 {
		return fmt.Errorf("ATTEMPT_RETENTION_DAYS must be > 0")
	}
	if c.Guard.MaxPromptLen <= 0 {
		return fmt.Errorf("MAX_PROMPT_LENGTH must be > 0")
	}
	if c.Audit.Dir == "" {
		return fmt.Errorf("AUDIT_LOG_DIR cannot be empty")
	}
	if c.Audit.GlobalPath == "" {
		return fmt.Errorf("AUDIT_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.Audit.QueueSize <= 0 {
		return fmt.Errorf("AUDIT_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
