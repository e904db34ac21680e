package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"
)

// ErrCircuitOpen is returned while the circuit breaker is rejecting calls.
var ErrCircuitOpen = errors.New("llm: circuit breaker is open")

// RetryConfig holds retry settings for provider calls.
type RetryConfig struct {
	MaxRetries        int           // retries after the first attempt
	InitialBackoff    time.Duration // first sleep
	MaxBackoff        time.Duration // sleep ceiling
	BackoffMultiplier float64
	Timeout           time.Duration // per attempt, 0 = none

	FailureThreshold int           // consecutive transient failures before opening
	OpenTimeout      time.Duration // how long the circuit stays open

	MaxConcurrent int64 // concurrent calls across all agents, 0 = unlimited
}

// DefaultRetryConfig mirrors the rate-limit behavior hosted inference APIs
// expect: a handful of retries with exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        4,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
		Timeout:           120 * time.Second,
		FailureThreshold:  5,
		OpenTimeout:       30 * time.Second,
		MaxConcurrent:     3,
	}
}

// Retrying wraps a Provider with a concurrency limit, retries with
// exponential backoff and a circuit breaker.
type Retrying struct {
	Provider
	cfg     RetryConfig
	sem     *semaphore.Weighted
	breaker *CircuitBreaker
	log     *log.Logger
	sleep   func(context.Context, time.Duration) error
}

// WithRetry wraps p. logger may be nil.
func WithRetry(p Provider, cfg RetryConfig, logger *log.Logger) *Retrying {
	r := &Retrying{
		Provider: p,
		cfg:      cfg,
		log:      logger,
		sleep:    sleepCtx,
	}
	if cfg.MaxConcurrent > 0 {
		r.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	if cfg.FailureThreshold > 0 {
		r.breaker = NewCircuitBreaker(cfg.FailureThreshold, cfg.OpenTimeout)
	}
	if r.log == nil {
		r.log = log.New(nilWriter{})
	}
	return r
}

// Generate calls the wrapped provider, retrying transient failures.
func (r *Retrying) Generate(ctx context.Context, prompt string, s Settings) (string, error) {
	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return "", fmt.Errorf("%s: acquire slot: %w", r.Name(), err)
		}
		defer r.sem.Release(1)
	}

	backoff := r.cfg.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if r.breaker != nil {
			if err := r.breaker.Allow(); err != nil {
				return "", fmt.Errorf("%s: %w", r.Name(), err)
			}
		}

		out, err := r.attempt(ctx, prompt, s)
		if err == nil {
			if r.breaker != nil {
				r.breaker.RecordSuccess()
			}
			if attempt > 0 {
				r.log.Debug("llm call recovered", "provider", r.Name(), "retries", attempt)
			}
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", fmt.Errorf("%s: %w", r.Name(), ctx.Err())
		}
		if !IsRetriable(err) {
			return "", err
		}
		if r.breaker != nil {
			r.breaker.RecordFailure()
		}
		if attempt == r.cfg.MaxRetries {
			break
		}

		wait := backoff
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > wait {
			wait = apiErr.RetryAfter
		}
		if r.cfg.MaxBackoff > 0 && wait > r.cfg.MaxBackoff {
			wait = r.cfg.MaxBackoff
		}
		r.log.Warn("llm call failed, retrying",
			"provider", r.Name(), "attempt", attempt+1, "of", r.cfg.MaxRetries+1, "wait", wait, "err", err)

		if err := r.sleep(ctx, wait); err != nil {
			return "", fmt.Errorf("%s: canceled during backoff: %w", r.Name(), err)
		}
		backoff = time.Duration(float64(backoff) * r.cfg.BackoffMultiplier)
	}

	return "", fmt.Errorf("%s: failed after %d attempts: %w", r.Name(), r.cfg.MaxRetries+1, lastErr)
}

func (r *Retrying) attempt(ctx context.Context, prompt string, s Settings) (string, error) {
	if r.cfg.Timeout <= 0 {
		return r.Provider.Generate(ctx, prompt, s)
	}
	actx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	return r.Provider.Generate(actx, prompt, s)
}

// IsRetriable reports whether err is transient: rate limits, server errors,
// timeouts and network failures.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CircuitBreaker opens after consecutive transient failures and lets a
// probe through once OpenTimeout has passed.
type CircuitBreaker struct {
	mu          sync.Mutex
	open        bool
	failures    int
	threshold   int
	openTimeout time.Duration
	openedAt    time.Time
	now         func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(threshold int, openTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{threshold: threshold, openTimeout: openTimeout, now: time.Now}
}

// Allow returns ErrCircuitOpen while the breaker is open.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.open && cb.now().Sub(cb.openedAt) < cb.openTimeout {
		return ErrCircuitOpen
	}
	return nil
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.open = false
	cb.failures = 0
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	if cb.failures >= cb.threshold {
		cb.open = true
		cb.openedAt = cb.now()
	}
}

// Open reports whether the breaker is currently rejecting calls.
func (cb *CircuitBreaker) Open() bool {
	return cb.Allow() != nil
}

type nilWriter struct{}

func (nilWriter) Write(p []byte) (int, error) { return len(p), nil }
