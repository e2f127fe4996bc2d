// Package jobs implements the ingestion job queue: a priority heap of
// background document-ingestion jobs with bounded concurrency, retry with
// backoff, cancellation, and rolling execution-time stats. Two backends
// share the same Backend interface: an in-process heap-backed Queue and a
// Redis-backed distributed backend.
package jobs

import (
	"context"
	"time"
)

// Status is the lifecycle state of a job. The queue owns the schedule; the
// authoritative record lives with the ingestion collaborator.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
	StatusCanceled  Status = "CANCELED"
)

// IngestionJob is the external record the queue tracks by id; the queue
// itself holds only the scheduling metadata below (QueuedJob).
type IngestionJob struct {
	ID         string
	Status     Status
	Priority   int
	RetryCount int
	EnqueuedAt time.Time
}

// Task is the work a job performs. It must respect ctx cancellation so the
// cooperative cancel flag can actually stop in-flight work.
type Task func(ctx context.Context) error
