package jobs

import (
	"context"
	"time"
)

// Backend is the interface shared by the in-process Queue and the
// distributed Redis-backed implementation.
type Backend interface {
	Enqueue(ctx context.Context, id string, priority int, task Task) error
	Cancel(ctx context.Context, id string) error
	IsRunning(id string) bool
	IsQueued(id string) bool
	GetStats() Stats
	RetryFailed(ctx context.Context, id string) error
	Shutdown(ctx context.Context, timeout time.Duration) error
}

// Stats summarizes queue activity for observability.
type Stats struct {
	Enqueued         int64
	Completed        int64
	Failed           int64
	Cancelled        int64
	Retried          int64
	Running          int
	Queued           int
	AvgExecutionTime time.Duration
	LastStartedAt    time.Time
	LastCompletedAt  time.Time
}

// RetryConfig controls the retry-with-backoff behavior on task failure.
type RetryConfig struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
}

// DefaultRetryConfig matches the documented defaults for the ingestion
// queue's backoff formula: min(base * exp^retry_count, max_delay).
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		BaseDelay:       time.Second,
		MaxDelay:        time.Minute,
		ExponentialBase: 2.0,
	}
}
