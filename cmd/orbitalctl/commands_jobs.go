package main

import (
	"context"
	"fmt"
	"time"

	"github.com/orbitalhq/orbital/internal/jobs"
	"github.com/spf13/cobra"
)

// buildJobsCmd creates the "jobs" command group for the ingestion queue.
func buildJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the ingestion job queue",
	}
	cmd.AddCommand(buildJobsSmokeCmd())
	return cmd
}

// buildJobsSmokeCmd drives a small batch of synthetic jobs through an
// in-process Queue and reports the resulting stats, exercising the same
// priority-heap scheduler and retry policy a real deployment runs under.
func buildJobsSmokeCmd() *cobra.Command {
	var (
		count         int
		maxConcurrent int
		failEvery     int
	)

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run a batch of synthetic jobs through the queue and report stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobsSmoke(cmd, count, maxConcurrent, failEvery)
		},
	}
	cmd.Flags().IntVar(&count, "count", 20, "Number of synthetic jobs to enqueue")
	cmd.Flags().IntVar(&maxConcurrent, "concurrency", 4, "Max concurrent jobs")
	cmd.Flags().IntVar(&failEvery, "fail-every", 0, "Fail every Nth job on its first attempt (0 disables)")
	return cmd
}

func runJobsSmoke(cmd *cobra.Command, count, maxConcurrent, failEvery int) error {
	q := jobs.NewQueue(maxConcurrent, jobs.DefaultRetryConfig())

	attempted := make(chan struct{}, count)
	for i := 0; i < count; i++ {
		i := i
		id := fmt.Sprintf("smoke-%d", i)
		tries := 0
		task := func(ctx context.Context) error {
			tries++
			defer func() { attempted <- struct{}{} }()
			if failEvery > 0 && i%failEvery == 0 && tries == 1 {
				return fmt.Errorf("synthetic failure for job %s", id)
			}
			return nil
		}
		if err := q.Enqueue(cmd.Context(), id, 0, task); err != nil {
			return fmt.Errorf("enqueue %s: %w", id, err)
		}
	}

	for i := 0; i < count; i++ {
		select {
		case <-attempted:
		case <-time.After(30 * time.Second):
			break
		}
	}
	// Give retries a moment to land before reading stats.
	time.Sleep(200 * time.Millisecond)
	if err := q.Shutdown(cmd.Context(), 5*time.Second); err != nil {
		return err
	}

	stats := q.GetStats()
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Queue stats:")
	fmt.Fprintf(out, "  enqueued:  %d\n", stats.Enqueued)
	fmt.Fprintf(out, "  completed: %d\n", stats.Completed)
	fmt.Fprintf(out, "  failed:    %d\n", stats.Failed)
	fmt.Fprintf(out, "  retried:   %d\n", stats.Retried)
	fmt.Fprintf(out, "  avg_exec:  %s\n", stats.AvgExecutionTime)
	return nil
}
