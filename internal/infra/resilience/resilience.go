// Package resilience provides the fault-tolerance primitives used around every
// backend call: bounded timeouts, retry with exponential backoff, circuit
// breaker and bulkhead.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

// Config holds resilience parameters.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int
	// CallTimeout bounds a single backend call. Zero disables the bound.
	CallTimeout time.Duration
}

// NoRetry returns a copy of cfg that performs exactly one attempt. Used for
// writes, which are not idempotent.
func (c Config) NoRetry() Config {
	c.MaxRetries = 0
	return c
}

// RetryWithBackoff executes fn with exponential backoff + jitter.
// It respects context cancellation.
func RetryWithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil || !Retryable(lastErr) {
			return lastErr
		}

		if attempt < cfg.MaxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * cfg.InitialBackoff
			wait := backoff
			if half := int64(backoff / 2); half > 0 {
				wait += time.Duration(rand.Int63n(half))
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return lastErr
}

// Retryable reports whether err is worth another attempt. Client-side
// outcomes (validation, conflicts, missing rows, auth) never are, and neither
// is any error whose Transient method returns false.
func Retryable(err error) bool {
	var tr interface{ Transient() bool }
	if errors.As(err, &tr) && !tr.Transient() {
		return false
	}
	var (
		validation   *domain.ErrValidation
		conflict     *domain.ErrConflict
		notFound     *domain.ErrNotFound
		unauthorized *domain.ErrUnauthorized
		forbidden    *domain.ErrForbidden
	)
	switch {
	case errors.As(err, &validation),
		errors.As(err, &conflict),
		errors.As(err, &notFound),
		errors.As(err, &unauthorized),
		errors.As(err, &forbidden):
		return false
	}
	return true
}

// WithTimeout runs fn under a context bounded by d. A deadline hit inside fn
// is reported as *domain.ErrTimeout so callers can answer 504 instead of 502.
// Cancellation of the parent context is passed through untouched.
func WithTimeout(ctx context.Context, d time.Duration, operation string, fn func(context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	err := fn(callCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded)) {
		return &domain.ErrTimeout{Operation: operation}
	}
	return err
}

// NewCircuitBreaker creates a circuit breaker with sensible defaults.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,                // half-open: allow 3 requests
		Interval:    30 * time.Second, // closed: reset counters every 30s
		Timeout:     10 * time.Second, // open -> half-open after 10s
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !Retryable(err)
		},
	})
}

// BreakerError translates gobreaker's sentinel errors to domain errors.
func BreakerError(service string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: service}
	}
	return err
}

// Bulkhead limits concurrent access to a resource.
type Bulkhead struct {
	sem chan struct{}
}

// NewBulkhead creates a bulkhead with the given max concurrency.
func NewBulkhead(maxConcurrency int) *Bulkhead {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &Bulkhead{sem: make(chan struct{}, maxConcurrency)}
}

// Acquire blocks until a slot is available or context is cancelled.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot.
func (b *Bulkhead) Release() {
	<-b.sem
}
