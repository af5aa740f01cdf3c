package vibeproxy

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment keys consulted when a Config field is left empty.
const (
	EnvBaseURL   = "VIBEPROXY_URL"
	EnvModel     = "VIBEPROXY_MODEL"
	EnvAPIKey    = "VIBEPROXY_API_KEY"
	EnvMaxTokens = "VIBEPROXY_MAX_TOKENS"
	EnvTimeout   = "VIBEPROXY_TIMEOUT"
)

const (
	DefaultBaseURL   = "http://localhost:8317/v1"
	DefaultModel     = "claude-sonnet-4-5-20250929"
	DefaultAPIKey    = "x" // VibeProxy accepts any non-empty key
	DefaultMaxTokens = 4096
	DefaultTimeout   = 60 * time.Second
)

// Config describes how to reach VibeProxy. For every field the first
// non-empty value wins: the field itself, then the environment, then the
// package default.
type Config struct {
	BaseURL   string
	Model     string
	APIKey    string
	MaxTokens int
	Timeout   time.Duration
}

// Resolve returns a copy of c with empty fields filled from the environment
// and defaults. The base URL loses any trailing slash.
func (c Config) Resolve() Config {
	out := Config{
		BaseURL:   firstNonEmpty(c.BaseURL, os.Getenv(EnvBaseURL), DefaultBaseURL),
		Model:     firstNonEmpty(c.Model, os.Getenv(EnvModel), DefaultModel),
		APIKey:    firstNonEmpty(c.APIKey, os.Getenv(EnvAPIKey), DefaultAPIKey),
		MaxTokens: c.MaxTokens,
		Timeout:   c.Timeout,
	}
	out.BaseURL = strings.TrimRight(out.BaseURL, "/")

	if out.MaxTokens <= 0 {
		out.MaxTokens = envInt(EnvMaxTokens, DefaultMaxTokens)
	}
	if out.Timeout <= 0 {
		out.Timeout = envDuration(EnvTimeout, DefaultTimeout)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil && v > 0 {
		return v
	}
	return fallback
}

// envDuration accepts Go durations ("90s") or a bare integer in milliseconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
