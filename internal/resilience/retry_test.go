package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitalhq/orbital/internal/apperrors"
)

func TestDo_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	res := Do(context.Background(), DefaultConfig(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesOnRetryableThenSucceeds(t *testing.T) {
	calls := 0
	cfg := Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, ExponentialBase: 1, Retryable: DefaultRetryable}
	res := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return &apperrors.RetryableError{Cause: errors.New("503 Service Unavailable")}
		}
		return nil
	})
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Attempts)
}

func TestDo_NonRetryableFailsImmediately(t *testing.T) {
	calls := 0
	res := Do(context.Background(), DefaultConfig(), func(ctx context.Context) error {
		calls++
		return errors.New("permanent failure")
	})
	require.Error(t, res.Err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	cfg := Config{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, ExponentialBase: 1}
	calls := 0
	res := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return &apperrors.RetryableError{Cause: errors.New("timeout")}
	})
	require.Error(t, res.Err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 2, calls)
}

func TestDo_CancellableSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, ExponentialBase: 1}
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	res := Do(ctx, cfg, func(ctx context.Context) error {
		return &apperrors.RetryableError{Cause: errors.New("timeout")}
	})
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestDelayForAttempt_ExponentialGrowthCappedAtMaxDelay(t *testing.T) {
	cfg := normalize(Config{BaseDelay: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond, ExponentialBase: 2, Jitter: false})
	assert.Equal(t, 100*time.Millisecond, delayForAttempt(cfg, 1))
	assert.Equal(t, 200*time.Millisecond, delayForAttempt(cfg, 2))
	assert.Equal(t, 400*time.Millisecond, delayForAttempt(cfg, 3))
	assert.Equal(t, 500*time.Millisecond, delayForAttempt(cfg, 4))
}
