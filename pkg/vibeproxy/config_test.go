package vibeproxy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvBaseURL, EnvModel, EnvAPIKey, EnvMaxTokens, EnvTimeout} {
		t.Setenv(k, "")
	}
}

func TestConfigResolve_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Config{}.Resolve()
	assert.Equal(t, Config{
		BaseURL:   DefaultBaseURL,
		Model:     DefaultModel,
		APIKey:    DefaultAPIKey,
		MaxTokens: DefaultMaxTokens,
		Timeout:   DefaultTimeout,
	}, cfg)
}

func TestConfigResolve_EnvOverridesDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBaseURL, "http://proxy.internal:9000/v1/")
	t.Setenv(EnvModel, "gpt-5")
	t.Setenv(EnvAPIKey, "secret")
	t.Setenv(EnvMaxTokens, "2048")
	t.Setenv(EnvTimeout, "90s")

	cfg := Config{}.Resolve()
	assert.Equal(t, "http://proxy.internal:9000/v1", cfg.BaseURL)
	assert.Equal(t, "gpt-5", cfg.Model)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, 2048, cfg.MaxTokens)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
}

func TestConfigResolve_ExplicitWins(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvModel, "gpt-5")
	t.Setenv(EnvTimeout, "1500")

	cfg := Config{Model: "gemini-2.5-flash", MaxTokens: 100}.Resolve()
	assert.Equal(t, "gemini-2.5-flash", cfg.Model)
	assert.Equal(t, 100, cfg.MaxTokens)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeout)
}

func TestConfigResolve_InvalidEnvFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvMaxTokens, "lots")
	t.Setenv(EnvTimeout, "-5s")

	cfg := Config{}.Resolve()
	assert.Equal(t, DefaultMaxTokens, cfg.MaxTokens)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
}

func TestNew_UsesResolvedConfig(t *testing.T) {
	clearEnv(t)
	c := New(Config{BaseURL: "http://127.0.0.1:1/v1/"})
	assert.Equal(t, "http://127.0.0.1:1/v1", c.Config().BaseURL)
	assert.Equal(t, DefaultModel, c.DefaultModel())
}
