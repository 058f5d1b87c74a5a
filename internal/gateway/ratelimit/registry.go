package ratelimit

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry hands out one shared limiter per provider name, created lazily.
//
// It is an explicit object constructed once and injected wherever limiting is
// needed; there is deliberately no package-level instance. All concurrent
// callers for the same provider share the same bucket.
type Registry struct {
	defaults Config
	configs  map[string]Config

	mu       sync.Mutex
	limiters map[string]*Limiter
}

// NewRegistry builds a registry. Per-provider overrides take precedence over
// the defaults; both are validated lazily when the provider is first used.
func NewRegistry(defaults Config, overrides map[string]Config) *Registry {
	return &Registry{
		defaults: defaults,
		configs:  overrides,
	}
}

// Get returns the limiter for the provider, creating it on first use.
// Creation fails only on invalid configuration.
func (r *Registry) Get(provider string) (*Limiter, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return nil, fmt.Errorf("provider name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.limiters == nil {
		r.limiters = map[string]*Limiter{}
	}
	if l, ok := r.limiters[provider]; ok {
		return l, nil
	}

	cfg := r.defaults
	if override, ok := r.configs[provider]; ok {
		cfg = override
	}

	l, err := NewLimiter(cfg)
	if err != nil {
		return nil, fmt.Errorf("limiter for provider %q: %w", provider, err)
	}
	r.limiters[provider] = l
	return l, nil
}

// Snapshot returns current stats for every limiter created so far, keyed by
// provider name.
func (r *Registry) Snapshot() map[string]Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make(map[string]Stats, len(r.limiters))
	for name, l := range r.limiters {
		result[name] = l.Stats()
	}
	return result
}

// Providers lists provider names with live limiters, sorted.
func (r *Registry) Providers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.limiters))
	for name := range r.limiters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
