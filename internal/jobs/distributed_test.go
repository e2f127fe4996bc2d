package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisBackend(t *testing.T, maxConcurrent int, retry RetryConfig) *RedisBackend {
	return newTestRedisBackendWithPoll(t, maxConcurrent, retry, 10*time.Millisecond)
}

func newTestRedisBackendWithPoll(t *testing.T, maxConcurrent int, retry RetryConfig, pollInterval time.Duration) *RedisBackend {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	b := newRedisBackend(client, "test:", maxConcurrent, retry, pollInterval)
	t.Cleanup(func() { b.Shutdown(context.Background(), time.Second) })
	return b
}

func TestRedisBackend_Enqueue_RunsAndReportsCompleted(t *testing.T) {
	b := newTestRedisBackend(t, 1, DefaultRetryConfig())

	ran := make(chan struct{})
	require.NoError(t, b.Enqueue(context.Background(), "job-1", 0, func(ctx context.Context) error {
		close(ran)
		return nil
	}))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job never ran")
	}

	require.Eventually(t, func() bool {
		return b.GetStats().Completed == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRedisBackend_Cancel_PreventsQueuedJobFromRunning(t *testing.T) {
	b := newTestRedisBackendWithPoll(t, 1, DefaultRetryConfig(), time.Hour)

	ran := int32(0)
	require.NoError(t, b.Enqueue(context.Background(), "job-1", 0, func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		return nil
	}))
	require.NoError(t, b.Cancel(context.Background(), "job-1"))

	require.False(t, b.IsQueued("job-1"))
	time.Sleep(20 * time.Millisecond)
	require.EqualValues(t, 0, atomic.LoadInt32(&ran))
}

func TestRedisBackend_RetriesOnFailureThenSucceeds(t *testing.T) {
	b := newTestRedisBackend(t, 1, RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, ExponentialBase: 2})

	var attempts int32
	require.NoError(t, b.Enqueue(context.Background(), "flaky", 0, func(ctx context.Context) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 2 {
			return errors.New("transient")
		}
		return nil
	}))

	require.Eventually(t, func() bool {
		return b.GetStats().Completed == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRedisBackend_RetryFailed_ResubmitsRegisteredTask(t *testing.T) {
	b := newTestRedisBackend(t, 1, RetryConfig{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, ExponentialBase: 1})

	var attempts int32
	require.NoError(t, b.Enqueue(context.Background(), "job-1", 0, func(ctx context.Context) error {
		n := atomic.AddInt32(&attempts, 1)
		if n == 1 {
			return errors.New("boom")
		}
		return nil
	}))

	require.Eventually(t, func() bool {
		return b.GetStats().Failed == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, b.RetryFailed(context.Background(), "job-1"))

	require.Eventually(t, func() bool {
		return b.GetStats().Completed == 1
	}, time.Second, 10*time.Millisecond)
}
