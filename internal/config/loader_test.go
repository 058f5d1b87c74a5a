package config

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgate/evalgate/internal/gateway"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadAppliesDefaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, gateway.DefaultRetryConfig(), cfg.Gateway.Retry)
	assert.Equal(t, gateway.DefaultConfig().Limits, cfg.Gateway.Limits)
	assert.Same(t, cfg, GetConfig())
}

func TestLoadDecodesGatewaySection(t *testing.T) {
	resetViper(t)

	viper.Set("server.port", 9191)
	viper.Set("gateway.default_provider", "primary")
	viper.Set("gateway.providers", map[string]any{
		"primary": map[string]any{
			"type":    "openai",
			"api_key": "sk-test",
			"model":   "gpt-test",
			"enabled": true,
		},
	})
	viper.Set("gateway.retry", map[string]any{
		"max_attempts":    3,
		"base_delay":      "250ms",
		"max_delay":       "5s",
		"jitter_fraction": 0.2,
		"attempt_timeout": "30s",
	})
	viper.Set("gateway.limits", map[string]any{
		"requests_per_second": 4,
		"burst_capacity":      8,
		"backoff_factor":      2,
		"max_backoff":         "45s",
		"jitter_fraction":     0.1,
	})

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "primary", cfg.Gateway.DefaultProvider)

	p, ok := cfg.Gateway.Providers["primary"]
	require.True(t, ok)
	assert.Equal(t, gateway.ProviderTypeOpenAI, p.Type)
	assert.Equal(t, "sk-test", p.APIKey)
	assert.True(t, p.Enabled)

	assert.Equal(t, 3, cfg.Gateway.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Gateway.Retry.BaseDelay)
	assert.Equal(t, 4.0, cfg.Gateway.Limits.RequestsPerSecond)
	assert.Equal(t, 45*time.Second, cfg.Gateway.Limits.MaxBackoff)

	require.NoError(t, cfg.Gateway.Validate())
}

func TestLoadFillsAPIKeyFromEnvironment(t *testing.T) {
	resetViper(t)

	viper.Set("gateway.providers", map[string]any{
		"anthropic": map[string]any{
			"type":    "anthropic",
			"model":   "claude-test",
			"enabled": true,
		},
	})

	t.Setenv("EVALGATE_ANTHROPIC_API_KEY", "from-env")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	p := cfg.Gateway.Providers["anthropic"]
	assert.Equal(t, "from-env", p.APIKey)
}

func TestLoadFallsBackToConventionalKeyVar(t *testing.T) {
	resetViper(t)

	viper.Set("gateway.providers", map[string]any{
		"primary": map[string]any{
			"type":    "openai",
			"model":   "gpt-test",
			"enabled": true,
		},
	})

	t.Setenv("OPENAI_API_KEY", "conventional")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	p := cfg.Gateway.Providers["primary"]
	assert.Equal(t, "conventional", p.APIKey)
}

func TestEnvSlug(t *testing.T) {
	assert.Equal(t, "OPENAI", envSlug("openai"))
	assert.Equal(t, "MY_BACKEND", envSlug("my-backend"))
	assert.Equal(t, "LOCAL_VLLM2", envSlug("local.vllm2"))
}
