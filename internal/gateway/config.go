package gateway

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/evalgate/evalgate/internal/gateway/ratelimit"
)

// Supported provider types.
const (
	ProviderTypeOpenAI    = "openai"
	ProviderTypeAnthropic = "anthropic"
)

// Config wires providers, retry behavior, and rate budgets into a gateway
// service. It is decoded from the gateway section of the application config.
type Config struct {
	// DefaultProvider names the provider used when a request does not pick
	// one. Required when more than one provider is configured.
	DefaultProvider string `mapstructure:"default_provider"`

	// Providers maps provider name to its backend configuration.
	Providers map[string]ProviderConfig `mapstructure:"providers"`

	// Retry governs the per-request attempt loop.
	Retry RetryConfig `mapstructure:"retry"`

	// Limits is the default per-provider request budget.
	Limits ratelimit.Config `mapstructure:"limits"`

	// ProviderLimits overrides Limits for specific providers.
	ProviderLimits map[string]ratelimit.Config `mapstructure:"provider_limits"`
}

// ProviderConfig describes one chat-completion backend.
type ProviderConfig struct {
	// Type selects the driver: "openai" or "anthropic".
	Type string `mapstructure:"type"`
	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `mapstructure:"base_url"`
	// APIKey authenticates against the provider. Never logged.
	APIKey string `mapstructure:"api_key"`
	// Model is the model identifier sent with every request.
	Model string `mapstructure:"model"`

	Temperature *float64 `mapstructure:"temperature"`
	MaxTokens   *int     `mapstructure:"max_tokens"`
	TopP        *float64 `mapstructure:"top_p"`

	// Enabled gates the provider without removing its configuration.
	Enabled bool `mapstructure:"enabled"`
}

// RetryConfig governs the attempt loop around backend calls.
type RetryConfig struct {
	// MaxAttempts bounds total calls per request, first try included.
	MaxAttempts int `mapstructure:"max_attempts"`
	// BaseDelay is the first retry's backoff. Grows by BackoffFactor each
	// failed attempt.
	BaseDelay time.Duration `mapstructure:"base_delay"`
	// BackoffFactor is the exponential base for backoff growth. Must
	// exceed 1.
	BackoffFactor float64 `mapstructure:"backoff_factor"`
	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration `mapstructure:"max_delay"`
	// JitterFraction perturbs each backoff by up to ±this fraction.
	JitterFraction float64 `mapstructure:"jitter_fraction"`
	// AttemptTimeout bounds each individual backend call.
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// DefaultRetryConfig returns the attempt-loop defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    5,
		BaseDelay:      500 * time.Millisecond,
		BackoffFactor:  2,
		MaxDelay:       30 * time.Second,
		JitterFraction: 0.1,
		AttemptTimeout: 60 * time.Second,
	}
}

// DefaultConfig returns a gateway config with defaults filled in and no
// providers. At least one provider must be added before use.
func DefaultConfig() Config {
	return Config{
		Retry:  DefaultRetryConfig(),
		Limits: ratelimit.DefaultConfig(),
	}
}

// Validate checks the configuration. Called once at service construction;
// a gateway never starts with a bad config.
func (c Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}

	enabled := 0
	for name, p := range c.Providers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider %q: %w", name, err)
		}
		if p.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("no provider is enabled")
	}

	if def := strings.TrimSpace(c.DefaultProvider); def != "" {
		p, ok := c.Providers[def]
		if !ok {
			return fmt.Errorf("default provider %q not configured", def)
		}
		if !p.Enabled {
			return fmt.Errorf("default provider %q is disabled", def)
		}
	} else if enabled > 1 {
		return fmt.Errorf("default_provider is required with multiple enabled providers")
	}

	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if err := c.Limits.Validate(); err != nil {
		return fmt.Errorf("limits: %w", err)
	}
	for name, lc := range c.ProviderLimits {
		if err := lc.Validate(); err != nil {
			return fmt.Errorf("provider_limits[%s]: %w", name, err)
		}
	}
	return nil
}

// Validate checks one provider's configuration.
func (p ProviderConfig) Validate() error {
	switch strings.TrimSpace(p.Type) {
	case ProviderTypeOpenAI, ProviderTypeAnthropic:
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unsupported type %q", p.Type)
	}
	if strings.TrimSpace(p.Model) == "" {
		return fmt.Errorf("model is required")
	}
	if !p.Enabled {
		return nil
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return fmt.Errorf("api_key is required")
	}
	return nil
}

// Validate checks the attempt-loop parameters.
func (r RetryConfig) Validate() error {
	if r.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", r.MaxAttempts)
	}
	if r.BaseDelay < 0 {
		return fmt.Errorf("base_delay cannot be negative")
	}
	if r.BackoffFactor <= 1 {
		return fmt.Errorf("backoff_factor must exceed 1, got %v", r.BackoffFactor)
	}
	if r.MaxDelay < r.BaseDelay {
		return fmt.Errorf("max_delay must be at least base_delay")
	}
	if r.JitterFraction < 0 || r.JitterFraction >= 1 {
		return fmt.Errorf("jitter_fraction must be in [0, 1), got %v", r.JitterFraction)
	}
	if r.AttemptTimeout <= 0 {
		return fmt.Errorf("attempt_timeout must be positive")
	}
	return nil
}

// resolveProvider returns the provider to use for a request. An explicit
// request choice wins; otherwise the default, or the single enabled provider.
func (c Config) resolveProvider(requested string) (string, ProviderConfig, error) {
	if name := strings.TrimSpace(requested); name != "" {
		p, ok := c.Providers[name]
		if !ok {
			return "", ProviderConfig{}, fmt.Errorf("unknown provider %q", name)
		}
		if !p.Enabled {
			return "", ProviderConfig{}, fmt.Errorf("provider %q is disabled", name)
		}
		return name, p, nil
	}

	if def := strings.TrimSpace(c.DefaultProvider); def != "" {
		return def, c.Providers[def], nil
	}

	for _, name := range c.providerNames() {
		if p := c.Providers[name]; p.Enabled {
			return name, p, nil
		}
	}
	return "", ProviderConfig{}, fmt.Errorf("no enabled provider")
}

func (c Config) providerNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
