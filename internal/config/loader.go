// Package config provides centralized configuration management for the
// gateway. Values are read from the viper-backed config file discovered via
// app identity, with environment variable overrides layered on top.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/evalgate/evalgate/internal/appid"
	"github.com/evalgate/evalgate/internal/gateway"
)

var (
	configMu  sync.RWMutex
	appConfig *Config

	appIdentity *appidentity.Identity
)

// Load decodes the current viper state into a typed Config, applies
// environment credential overrides and gateway defaults, and stores the
// result for GetConfig.
//
// This function is safe to call multiple times (e.g., for config reload).
func Load(ctx context.Context) (*Config, error) {
	if appIdentity == nil {
		identity, err := appid.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load app identity: %w", err)
		}
		appIdentity = identity
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(viper.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)
	applyCredentialOverrides(cfg)

	setConfig(cfg)
	return cfg, nil
}

// DefaultConfigPath returns the expected config file location. Returns empty
// when neither the XDG config dir nor the home directory can be resolved.
func DefaultConfigPath() string {
	name := "evalgate"
	if appIdentity != nil && appIdentity.ConfigName != "" {
		name = appIdentity.ConfigName
	}
	if dir := gfconfig.GetAppConfigDir(name); dir != "" {
		return filepath.Join(dir, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "."+name+".yaml")
}

// applyDefaults fills in zero-valued gateway sections so a minimal config
// file only needs providers.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Retry.MaxAttempts == 0 {
		cfg.Gateway.Retry = gateway.DefaultRetryConfig()
	}
	if cfg.Gateway.Retry.BackoffFactor == 0 {
		cfg.Gateway.Retry.BackoffFactor = gateway.DefaultRetryConfig().BackoffFactor
	}
	if cfg.Gateway.Limits.RequestsPerSecond == 0 {
		cfg.Gateway.Limits = gateway.DefaultConfig().Limits
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}

// applyCredentialOverrides fills provider API keys from the environment so
// secrets stay out of config files. For a provider named "openai" the lookup
// order is EVALGATE_OPENAI_API_KEY, then the provider type's conventional
// variable (OPENAI_API_KEY, ANTHROPIC_API_KEY).
func applyCredentialOverrides(cfg *Config) {
	prefix := "EVALGATE_"
	if appIdentity != nil && appIdentity.EnvPrefix != "" {
		prefix = appIdentity.EnvPrefix
		if !strings.HasSuffix(prefix, "_") {
			prefix += "_"
		}
	}

	for name, p := range cfg.Gateway.Providers {
		if strings.TrimSpace(p.APIKey) != "" {
			continue
		}

		envName := prefix + envSlug(name) + "_API_KEY"
		if value := strings.TrimSpace(os.Getenv(envName)); value != "" {
			p.APIKey = value
			cfg.Gateway.Providers[name] = p
			continue
		}

		if value := strings.TrimSpace(os.Getenv(conventionalKeyVar(p.Type))); value != "" {
			p.APIKey = value
			cfg.Gateway.Providers[name] = p
		}
	}
}

func conventionalKeyVar(providerType string) string {
	switch strings.TrimSpace(providerType) {
	case gateway.ProviderTypeOpenAI:
		return "OPENAI_API_KEY"
	case gateway.ProviderTypeAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// envSlug uppercases a provider name and folds separators to underscores.
func envSlug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(name)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}
