package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestLimiter builds a limiter with a controllable clock and jitter
// disabled unless the config says otherwise.
func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *time.Time) {
	t.Helper()
	l, err := NewLimiter(cfg)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.clock = func() time.Time { return now }
	l.lastRefill = now
	l.unitRand = func() float64 { return 0.5 } // midpoint: zero jitter offset
	return l, &now
}

func TestNewLimiterRejectsInvalidConfig(t *testing.T) {
	bad := []Config{
		{RequestsPerSecond: 0, BurstCapacity: 1, BackoffFactor: 2, MaxBackoff: time.Minute},
		{RequestsPerSecond: -1, BurstCapacity: 1, BackoffFactor: 2, MaxBackoff: time.Minute},
		{RequestsPerSecond: 1, BurstCapacity: 0, BackoffFactor: 2, MaxBackoff: time.Minute},
		{RequestsPerSecond: 1, BurstCapacity: 1, BackoffFactor: 1, MaxBackoff: time.Minute},
		{RequestsPerSecond: 1, BurstCapacity: 1, BackoffFactor: 2, MaxBackoff: 0},
		{RequestsPerSecond: 1, BurstCapacity: 1, BackoffFactor: 2, MaxBackoff: time.Minute, JitterFraction: 1},
	}
	for _, cfg := range bad {
		_, err := NewLimiter(cfg)
		require.Error(t, err, "config %+v", cfg)
	}
}

func TestSecondImmediateAcquireWaits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestsPerSecond = 1
	cfg.BurstCapacity = 1
	cfg.JitterFraction = 0
	l, _ := newTestLimiter(t, cfg)

	require.Equal(t, time.Duration(0), l.reserve())

	second := l.reserve()
	require.Greater(t, second, time.Duration(0))
	require.InDelta(t, time.Second, second, float64(50*time.Millisecond))
}

func TestQueuedReservationsSerialize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestsPerSecond = 1
	cfg.BurstCapacity = 1
	cfg.JitterFraction = 0
	l, _ := newTestLimiter(t, cfg)

	require.Equal(t, time.Duration(0), l.reserve())
	// Back-to-back reservations must not double-book the same accruing
	// token: each later caller waits one more second.
	require.InDelta(t, 1*time.Second, l.reserve(), float64(time.Millisecond))
	require.InDelta(t, 2*time.Second, l.reserve(), float64(time.Millisecond))
	require.InDelta(t, 3*time.Second, l.reserve(), float64(time.Millisecond))
}

func TestTokensStayWithinBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestsPerSecond = 5
	cfg.BurstCapacity = 3
	cfg.JitterFraction = 0
	l, now := newTestLimiter(t, cfg)

	check := func() {
		require.GreaterOrEqual(t, l.tokens, 0.0)
		require.LessOrEqual(t, l.tokens, cfg.BurstCapacity)
	}

	for i := 0; i < 20; i++ {
		l.reserve()
		check()
		l.RecordResult(i%3 == 0, i%5 == 0)
		check()
		*now = now.Add(time.Duration(i%4) * 100 * time.Millisecond)
	}

	// A long idle period refills to capacity, never beyond.
	*now = now.Add(time.Hour)
	require.Equal(t, time.Duration(0), l.reserve())
	check()
}

func TestFailureBackoffIsCapped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BackoffFactor = 2
	cfg.MaxBackoff = 30 * time.Second
	l, _ := newTestLimiter(t, cfg)

	for failures := 1; failures < 100; failures++ {
		l.consecutiveFailures = failures
		require.LessOrEqual(t, l.failureBackoff(), cfg.MaxBackoff, "failures=%d", failures)
	}
}

func TestSuccessDecaysFailuresByOne(t *testing.T) {
	cfg := DefaultConfig()
	l, _ := newTestLimiter(t, cfg)

	for i := 0; i < 3; i++ {
		l.RecordResult(false, true)
	}
	require.Equal(t, 3, l.ConsecutiveFailures())

	l.RecordResult(true, false)
	require.Equal(t, 2, l.ConsecutiveFailures())
	l.RecordResult(true, false)
	require.Equal(t, 1, l.ConsecutiveFailures())
	l.RecordResult(true, false)
	require.Equal(t, 0, l.ConsecutiveFailures())
	// Already zero: stays zero.
	l.RecordResult(true, false)
	require.Equal(t, 0, l.ConsecutiveFailures())
}

func TestPriorFailuresLengthenTheWait(t *testing.T) {
	build := func(failures int) time.Duration {
		cfg := DefaultConfig()
		cfg.RequestsPerSecond = 1
		cfg.BurstCapacity = 1
		cfg.JitterFraction = 0
		l, _ := newTestLimiter(t, cfg)

		require.Equal(t, time.Duration(0), l.reserve()) // drain the bucket
		for i := 0; i < failures; i++ {
			l.RecordResult(false, true)
		}
		return l.reserve()
	}

	withFailures := build(3)
	withoutFailures := build(0)
	require.Greater(t, withFailures, withoutFailures)
}

func TestJitterStaysWithinFraction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestsPerSecond = 1
	cfg.BurstCapacity = 1
	cfg.JitterFraction = 0.25
	l, _ := newTestLimiter(t, cfg)

	base := time.Second
	for _, u := range []float64{0, 0.25, 0.5, 0.75, 0.999} {
		l.unitRand = func() float64 { return u }
		got := l.jitter(base)
		require.GreaterOrEqual(t, got, time.Duration(float64(base)*0.75))
		require.LessOrEqual(t, got, time.Duration(float64(base)*1.25))
	}
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestsPerSecond = 0.001 // forces a very long wait
	cfg.BurstCapacity = 1
	cfg.JitterFraction = 0
	l, err := NewLimiter(cfg)
	require.NoError(t, err)

	_, err = l.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStatsAccumulate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestsPerSecond = 1
	cfg.BurstCapacity = 1
	cfg.JitterFraction = 0
	l, _ := newTestLimiter(t, cfg)

	l.reserve()
	l.reserve()
	l.RecordResult(true, false)
	l.RecordResult(false, true)

	stats := l.Stats()
	require.Equal(t, int64(2), stats.TotalCalls)
	require.Equal(t, int64(1), stats.SuccessCalls)
	require.Equal(t, int64(1), stats.RateLimitedCalls)
	require.Greater(t, stats.TotalWaitTime, time.Duration(0))
}
