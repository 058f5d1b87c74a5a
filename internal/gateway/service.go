// Package gateway orchestrates the request path between the evaluation
// harness and chat-completion backends: classify the prompt against a metric
// contract, enhance it, wait for rate budget, call the backend with bounded
// retries, and normalize whatever came back. The caller always receives
// parseable text; failures degrade to a contract fallback, never to an error.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/evalgate/evalgate/internal/gateway/contract"
	"github.com/evalgate/evalgate/internal/gateway/driver"
	"github.com/evalgate/evalgate/internal/gateway/driver/anthropic"
	"github.com/evalgate/evalgate/internal/gateway/driver/openai"
	"github.com/evalgate/evalgate/internal/gateway/normalize"
	"github.com/evalgate/evalgate/internal/gateway/ratelimit"
)

// Request is one completion request from the harness.
type Request struct {
	// Prompt is the metric prompt text.
	Prompt string
	// Provider optionally picks a configured provider by name.
	Provider string
	// Contract optionally pins the output contract, bypassing
	// classification.
	Contract contract.Name
}

// Result is the outcome of a completion request. Text is always set and
// always parseable under the resolved contract.
type Result struct {
	Text     string        `json:"text"`
	Contract contract.Name `json:"contract"`
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Attempts int           `json:"attempts"`
	Fallback bool          `json:"fallback"`
	Waited   time.Duration `json:"waited_ns"`
	Usage    *driver.Usage `json:"usage,omitempty"`
}

// Service coordinates contract enhancement, rate limiting, driver execution,
// and response normalization. Drivers are constructed once per provider at
// startup and shared by all requests.
type Service struct {
	cfg     Config
	drivers map[string]driver.Driver
	limits  *ratelimit.Registry
	log     *logging.Logger

	// sleep and unitRand are swapped out in tests.
	sleep    func(ctx context.Context, d time.Duration) error
	unitRand func() float64
}

// NewService builds a gateway service, failing fast on invalid configuration
// or an unconstructable driver.
func NewService(cfg Config, limits *ratelimit.Registry, log *logging.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("gateway config: %w", err)
	}
	if limits == nil {
		limits = ratelimit.NewRegistry(cfg.Limits, cfg.ProviderLimits)
	}

	drivers := make(map[string]driver.Driver, len(cfg.Providers))
	for name, p := range cfg.Providers {
		if !p.Enabled {
			continue
		}
		drv, err := buildDriver(p)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		drivers[name] = drv
	}

	return &Service{
		cfg:      cfg,
		drivers:  drivers,
		limits:   limits,
		log:      log,
		sleep:    sleepCtx,
		unitRand: rand.Float64,
	}, nil
}

func buildDriver(p ProviderConfig) (driver.Driver, error) {
	switch strings.TrimSpace(p.Type) {
	case ProviderTypeOpenAI:
		return openai.NewClient(p.BaseURL, p.APIKey), nil
	case ProviderTypeAnthropic:
		return anthropic.NewClient(p.BaseURL, p.APIKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider type %q", p.Type)
	}
}

// Complete runs one prompt through the full pipeline and returns the
// normalized text. It never returns an error; failures surface as the
// resolved contract's fallback payload.
func (s *Service) Complete(ctx context.Context, prompt string) string {
	return s.Run(ctx, Request{Prompt: prompt}).Text
}

// CompleteContract is Complete with the output contract pinned instead of
// classified from the prompt.
func (s *Service) CompleteContract(ctx context.Context, name contract.Name, prompt string) string {
	return s.Run(ctx, Request{Prompt: prompt, Contract: name}).Text
}

// attempt loop states.
type runState int

const (
	stateAcquire runState = iota
	stateCall
	stateBackoff
	stateFallback
	stateDone
)

// Run executes the full request state machine and reports the detailed
// outcome. Like Complete it never fails: provider resolution errors, budget
// waits cut short by context cancellation, and exhausted retries all land in
// the fallback state.
func (s *Service) Run(ctx context.Context, req Request) *Result {
	c := s.resolveContract(req)
	enhanced := contract.EnhanceFor(c, req.Prompt)

	res := &Result{Contract: c.Name}

	providerName, providerCfg, err := s.cfg.resolveProvider(req.Provider)
	if err != nil {
		s.warn("provider resolution failed", zap.Error(err))
		res.Text = normalize.Fallback(c)
		res.Fallback = true
		return res
	}
	res.Provider = providerName
	res.Model = providerCfg.Model

	drv := s.drivers[providerName]
	limiter, err := s.limits.Get(providerName)
	if err != nil {
		s.warn("limiter unavailable", zap.String("provider", providerName), zap.Error(err))
		res.Text = normalize.Fallback(c)
		res.Fallback = true
		return res
	}

	driverReq := buildRequest(providerCfg, enhanced)

	var lastErr error
	state := stateAcquire
	for state != stateDone {
		switch state {
		case stateAcquire:
			waited, err := limiter.Acquire(ctx)
			res.Waited += waited
			if err != nil {
				// Context cancelled mid-wait. Nothing was sent.
				lastErr = err
				state = stateFallback
				continue
			}
			state = stateCall

		case stateCall:
			res.Attempts++
			resp, err := s.callOnce(ctx, drv, driverReq)
			if err == nil {
				limiter.RecordResult(true, false)
				res.Text = normalize.Clean(resp.Text, c)
				res.Usage = resp.Usage
				state = stateDone
				continue
			}

			lastErr = err
			throttled := isThrottle(err)
			limiter.RecordResult(false, throttled)
			s.warn("backend call failed",
				zap.String("provider", providerName),
				zap.Int("attempt", res.Attempts),
				zap.Bool("throttled", throttled),
				zap.Error(err))

			if res.Attempts >= s.cfg.Retry.MaxAttempts || ctx.Err() != nil {
				state = stateFallback
				continue
			}
			state = stateBackoff

		case stateBackoff:
			delay := s.retryDelay(res.Attempts)
			res.Waited += delay
			if err := s.sleep(ctx, delay); err != nil {
				lastErr = err
				state = stateFallback
				continue
			}
			state = stateAcquire

		case stateFallback:
			s.warn("returning contract fallback",
				zap.String("provider", providerName),
				zap.String("contract", string(c.Name)),
				zap.Int("attempts", res.Attempts),
				zap.Error(lastErr))
			res.Text = normalize.Fallback(c)
			res.Fallback = true
			state = stateDone
		}
	}
	return res
}

func (s *Service) resolveContract(req Request) *contract.Contract {
	if req.Contract != "" {
		if c, err := contract.Get(req.Contract); err == nil {
			return c
		}
		s.warn("unknown contract requested, classifying instead",
			zap.String("contract", string(req.Contract)))
	}
	return contract.Classify(req.Prompt)
}

func (s *Service) callOnce(ctx context.Context, drv driver.Driver, req *driver.Request) (*driver.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Retry.AttemptTimeout)
	defer cancel()
	return drv.Generate(callCtx, req)
}

// retryDelay computes the backoff before the given attempt's retry:
// BaseDelay grown by BackoffFactor per completed attempt, capped, then
// jittered.
func (s *Service) retryDelay(completedAttempts int) time.Duration {
	delay := s.cfg.Retry.BaseDelay
	for i := 1; i < completedAttempts; i++ {
		delay = time.Duration(float64(delay) * s.cfg.Retry.BackoffFactor)
		if delay >= s.cfg.Retry.MaxDelay {
			delay = s.cfg.Retry.MaxDelay
			break
		}
	}
	if delay > s.cfg.Retry.MaxDelay {
		delay = s.cfg.Retry.MaxDelay
	}
	if f := s.cfg.Retry.JitterFraction; f > 0 && delay > 0 {
		offset := (2*s.unitRand() - 1) * f
		delay = time.Duration(float64(delay) * (1 + offset))
	}
	if delay < 0 {
		return 0
	}
	return delay
}

func buildRequest(p ProviderConfig, prompt string) *driver.Request {
	return &driver.Request{
		Model:       p.Model,
		Messages:    []driver.Message{{Role: "user", Content: prompt}},
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		TopP:        p.TopP,
	}
}

// Stats reports per-provider limiter counters.
func (s *Service) Stats() map[string]ratelimit.Stats {
	return s.limits.Snapshot()
}

// Providers lists the enabled provider names.
func (s *Service) Providers() []string {
	names := make([]string, 0, len(s.drivers))
	for name := range s.drivers {
		names = append(names, name)
	}
	return names
}

// Limits exposes the limiter registry for admin surfaces.
func (s *Service) Limits() *ratelimit.Registry {
	return s.limits
}

// throttleMarkers are substrings of provider error text that indicate rate
// or quota pressure rather than a transport or request fault.
var throttleMarkers = []string{
	"rate limit",
	"rate_limit",
	"too many requests",
	"quota",
	"overloaded",
	"throttl",
	"capacity",
	"429",
}

// isThrottle classifies an error as rate pressure. Status codes win when a
// ProviderError is present; otherwise the error text is scanned.
func isThrottle(err error) bool {
	if err == nil {
		return false
	}
	var perr *driver.ProviderError
	if errors.As(err, &perr) {
		return perr.Throttled()
	}
	text := strings.ToLower(err.Error())
	for _, marker := range throttleMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func (s *Service) warn(msg string, fields ...zap.Field) {
	if s.log == nil {
		return
	}
	s.log.Warn(msg, fields...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
