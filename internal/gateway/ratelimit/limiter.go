// Package ratelimit provides per-provider token-bucket rate limiting with
// failure-adaptive backoff. Limiter state is process-local and in-memory
// only; there is no cross-process quota sharing.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Config is the per-provider request budget.
type Config struct {
	// RequestsPerSecond is the bucket refill rate. Must be positive.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	// BurstCapacity is the bucket size. Must be at least 1.
	BurstCapacity float64 `mapstructure:"burst_capacity"`
	// BackoffFactor is the exponential base for failure backoff. Must
	// exceed 1.
	BackoffFactor float64 `mapstructure:"backoff_factor"`
	// MaxBackoff caps failure backoff waits. Must be positive.
	MaxBackoff time.Duration `mapstructure:"max_backoff"`
	// JitterFraction perturbs computed waits by up to ±this fraction so
	// concurrent retries decorrelate. Must be in [0, 1).
	JitterFraction float64 `mapstructure:"jitter_fraction"`
}

// DefaultConfig returns a budget suitable for hosted completion APIs.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 2,
		BurstCapacity:     4,
		BackoffFactor:     2,
		MaxBackoff:        60 * time.Second,
		JitterFraction:    0.1,
	}
}

// Validate checks the budget parameters. Invalid configuration is the only
// error mode this package has; everything past construction waits instead of
// failing.
func (c Config) Validate() error {
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive, got %v", c.RequestsPerSecond)
	}
	if c.BurstCapacity < 1 {
		return fmt.Errorf("burst_capacity must be at least 1, got %v", c.BurstCapacity)
	}
	if c.BackoffFactor <= 1 {
		return fmt.Errorf("backoff_factor must exceed 1, got %v", c.BackoffFactor)
	}
	if c.MaxBackoff <= 0 {
		return fmt.Errorf("max_backoff must be positive, got %v", c.MaxBackoff)
	}
	if c.JitterFraction < 0 || c.JitterFraction >= 1 {
		return fmt.Errorf("jitter_fraction must be in [0, 1), got %v", c.JitterFraction)
	}
	return nil
}

// Stats are the monotonic per-provider counters. Counters only grow; they
// are the sole runtime-visible failure surface of the gateway.
type Stats struct {
	TotalCalls       int64         `json:"total_calls"`
	SuccessCalls     int64         `json:"success_calls"`
	RateLimitedCalls int64         `json:"rate_limited_calls"`
	TotalWaitTime    time.Duration `json:"total_wait_ns"`
}

// Limiter is a token bucket with failure-adaptive backoff for one provider.
//
// The mutex covers the whole refill-and-consume sequence plus the stats and
// failure counters. Waiting happens outside the lock: a caller that cannot
// proceed reserves the next accruing token and sleeps, so concurrent callers
// are decorrelated but not ordered (no fairness guarantee).
type Limiter struct {
	cfg Config

	mu                  sync.Mutex
	tokens              float64
	lastRefill          time.Time
	consecutiveFailures int
	lastFailureAt       time.Time
	stats               Stats

	clock func() time.Time
	// unitRand returns a uniform value in [0, 1) for jitter.
	unitRand func() float64
}

// NewLimiter constructs a limiter, failing fast on invalid configuration.
func NewLimiter(cfg Config) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Limiter{
		cfg:      cfg,
		tokens:   cfg.BurstCapacity,
		clock:    func() time.Time { return time.Now().UTC() },
		unitRand: rand.Float64,
	}
	l.lastRefill = l.clock()
	return l, nil
}

// Acquire blocks until the caller may issue one request, returning the time
// it waited. The only error is context cancellation during the wait.
func (l *Limiter) Acquire(ctx context.Context) (time.Duration, error) {
	wait := l.reserve()
	if wait <= 0 {
		return 0, nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return wait, ctx.Err()
	case <-timer.C:
		return wait, nil
	}
}

// reserve runs the refill-and-consume sequence and, when the bucket is
// empty, books the next accruing token and computes how long to sleep for it.
func (l *Limiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	l.refill(now)
	l.stats.TotalCalls++

	if l.tokens >= 1 {
		l.tokens--
		return 0
	}

	// lastRefill sits in the future while earlier reservations sleep; their
	// booked accrual must not be counted again for this caller.
	var pending time.Duration
	if ahead := l.lastRefill.Sub(now); ahead > 0 {
		pending = ahead
	}

	baseWait := pending + time.Duration((1-l.tokens)/l.cfg.RequestsPerSecond*float64(time.Second))
	if l.consecutiveFailures > 0 && now.Sub(l.lastFailureAt) < l.cfg.MaxBackoff {
		baseWait = max(baseWait, l.failureBackoff())
	}
	wait := l.jitter(baseWait)

	// Book the token that accrues during the sleep. Advancing lastRefill to
	// the end of the wait keeps 0 <= tokens <= capacity at every
	// observation, including from concurrent acquirers.
	accrued := (wait - pending).Seconds() * l.cfg.RequestsPerSecond
	l.tokens = clamp(l.tokens+accrued-1, 0, l.cfg.BurstCapacity)
	l.lastRefill = now.Add(wait)
	l.stats.TotalWaitTime += wait

	return wait
}

// RecordResult feeds the call outcome back into the failure counters.
// Success decays consecutiveFailures by one rather than resetting it, so a
// single lucky call inside an outage does not clear the backoff.
func (l *Limiter) RecordResult(success, wasRateLimited bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if success {
		l.stats.SuccessCalls++
		if l.consecutiveFailures > 0 {
			l.consecutiveFailures--
		}
		return
	}

	l.consecutiveFailures++
	l.lastFailureAt = l.clock()
	if wasRateLimited {
		l.stats.RateLimitedCalls++
	}
}

// Stats returns a snapshot of the counters.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// ConsecutiveFailures reports the current failure streak.
func (l *Limiter) ConsecutiveFailures() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.consecutiveFailures
}

func (l *Limiter) refill(now time.Time) {
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		// lastRefill may sit in the future while a reservation is being
		// slept out.
		return
	}
	l.tokens = clamp(l.tokens+elapsed*l.cfg.RequestsPerSecond, 0, l.cfg.BurstCapacity)
	l.lastRefill = now
}

// failureBackoff computes backoffFactor^consecutiveFailures seconds, capped
// at MaxBackoff. The cap also absorbs float overflow for long streaks.
func (l *Limiter) failureBackoff() time.Duration {
	seconds := math.Pow(l.cfg.BackoffFactor, float64(l.consecutiveFailures))
	capped := math.Min(seconds, l.cfg.MaxBackoff.Seconds())
	return time.Duration(capped * float64(time.Second))
}

func (l *Limiter) jitter(wait time.Duration) time.Duration {
	if l.cfg.JitterFraction <= 0 || wait <= 0 {
		return wait
	}
	// Uniform in [-jitterFraction, +jitterFraction].
	offset := (2*l.unitRand() - 1) * l.cfg.JitterFraction
	jittered := time.Duration(float64(wait) * (1 + offset))
	if jittered < 0 {
		return 0
	}
	return jittered
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
