// Package resilience provides the retry-with-backoff and circuit-breaker
// primitives used by the tool executor (per-tool breakers and the
// DefaultRetryable predicate) and by the Anthropic LLM client (Do). The job
// queue applies its own retry backoff.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/orbitalhq/orbital/internal/apperrors"
)

// RetryPredicate decides whether an error returned by an operation should be
// retried. The default predicate treats *apperrors.RetryableError and
// context.DeadlineExceeded as retryable; everything else
// propagates immediately.
type RetryPredicate func(err error) bool

// Config configures a retry policy. Delay before attempt n (1-indexed) is
// min(BaseDelay * ExponentialBase^(n-1), MaxDelay), optionally jittered.
type Config struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool
	Retryable       RetryPredicate
}

// DefaultConfig mirrors the executor's default retry posture: two retries
// (three attempts total) with a doubling backoff capped at 10s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		BaseDelay:       200 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
		Retryable:       DefaultRetryable,
	}
}

// DefaultRetryable retries *apperrors.RetryableError and context.DeadlineExceeded.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re *apperrors.RetryableError
	if errors.As(err, &re) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Result is the outcome of a Do call.
type Result struct {
	Attempts int
	Err      error
	Duration time.Duration
}

func normalize(cfg Config) Config {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.ExponentialBase <= 0 {
		cfg.ExponentialBase = 2.0
	}
	if cfg.Retryable == nil {
		cfg.Retryable = DefaultRetryable
	}
	return cfg
}

// delayForAttempt returns the sleep duration before attempt n (1-indexed; the
// delay before attempt 1 is never used by Do, only attempts 2..MaxAttempts).
func delayForAttempt(cfg Config, n int) time.Duration {
	raw := float64(cfg.BaseDelay) * math.Pow(cfg.ExponentialBase, float64(n-1))
	if raw > float64(cfg.MaxDelay) {
		raw = float64(cfg.MaxDelay)
	}
	d := time.Duration(raw)
	if cfg.Jitter {
		// Full jitter: uniform in [0, d].
		d = time.Duration(rand.Float64() * float64(d)) // #nosec G404 -- timing jitter, not a security primitive
	}
	return d
}

// Do executes op, retrying according to cfg until it succeeds, a
// non-retryable error is returned, attempts are exhausted, or ctx is
// cancelled. Sleeps between attempts are cancellable.
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error) Result {
	cfg = normalize(cfg)
	start := time.Now()
	result := Result{}

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result.Attempts = attempt

		if err := ctx.Err(); err != nil {
			result.Err = err
			result.Duration = time.Since(start)
			return result
		}

		err := op(ctx)
		if err == nil {
			result.Err = nil
			result.Duration = time.Since(start)
			return result
		}
		result.Err = err

		if !cfg.Retryable(err) {
			result.Duration = time.Since(start)
			return result
		}
		if attempt >= cfg.MaxAttempts {
			break
		}

		sleep := delayForAttempt(cfg, attempt+1)
		select {
		case <-ctx.Done():
			result.Err = ctx.Err()
			result.Duration = time.Since(start)
			return result
		case <-time.After(sleep):
		}
	}

	result.Duration = time.Since(start)
	return result
}
