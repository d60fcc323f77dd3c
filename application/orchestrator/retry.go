package orchestrator

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy configures retry behavior for execution-engine calls.
// These are the only operations in the pipeline that retry: the compose
// stages are pure functions, so retrying them is meaningless.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFactor  float64
}

// DefaultRetryPolicy returns the standard engine-call retry policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// transienter is implemented by errors that may succeed on retry
// (network failures, 5xx responses, throttling).
type transienter interface {
	Transient() bool
}

// IsTransient reports whether an error is worth retrying
func IsTransient(err error) bool {
	var t transienter
	if errors.As(err, &t) {
		return t.Transient()
	}
	return false
}

// Do runs fn with exponential backoff and jitter. Non-transient errors and
// context cancellation abort immediately; transient errors retry up to
// MaxRetries before the last cause is returned.
func (p RetryPolicy) Do(ctx context.Context, logger *zap.Logger, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.delay(attempt)
			logger.Debug("retrying engine operation",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
	}

	logger.Warn("engine operation failed after retries",
		zap.String("operation", operation),
		zap.Int("retries", p.MaxRetries),
		zap.Error(lastErr),
	)
	return lastErr
}

// delay computes the backoff for an attempt with jitter applied
func (p RetryPolicy) delay(attempt int) time.Duration {
	backoff := float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(attempt-1))
	if max := float64(p.MaxDelay); backoff > max {
		backoff = max
	}
	jitter := backoff * p.JitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(backoff + jitter)
}
