package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend is the distributed Backend: job priority ordering and
// cancel flags live in Redis so cancellation and stats are visible across
// every process sharing the same prefix, while each process runs its own
// polling worker loop against the shared sorted set. The Task closures
// themselves are registered locally per process (Redis carries scheduling
// metadata, not the work itself), matching a broker that dispatches by id
// to whichever worker happens to claim it.
type RedisBackend struct {
	client        *redis.Client
	prefix        string
	maxConcurrent int
	retry         RetryConfig
	pollInterval  time.Duration

	mu      sync.Mutex
	tasks   map[string]Task
	running map[string]context.CancelFunc

	execTimes []time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// defaultPollInterval is how often a process polls the shared sorted set
// for claimable work.
const defaultPollInterval = 100 * time.Millisecond

// NewRedisBackend builds a RedisBackend and starts its polling worker loop.
func NewRedisBackend(client *redis.Client, prefix string, maxConcurrent int, retry RetryConfig) *RedisBackend {
	return newRedisBackend(client, prefix, maxConcurrent, retry, defaultPollInterval)
}

func newRedisBackend(client *redis.Client, prefix string, maxConcurrent int, retry RetryConfig, pollInterval time.Duration) *RedisBackend {
	if prefix == "" {
		prefix = "orbital:jobs:"
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if retry.ExponentialBase == 0 {
		retry = DefaultRetryConfig()
	}
	b := &RedisBackend{
		client: client, prefix: prefix, maxConcurrent: maxConcurrent, retry: retry,
		pollInterval: pollInterval,
		tasks:        make(map[string]Task),
		running:      make(map[string]context.CancelFunc),
		stopCh:       make(chan struct{}),
	}
	b.wg.Add(1)
	go b.pollLoop()
	return b
}

func (b *RedisBackend) queueKey() string    { return b.prefix + "queue" }
func (b *RedisBackend) canceledKey() string { return b.prefix + "canceled" }
func (b *RedisBackend) metaKey(id string) string { return b.prefix + "meta:" + id }
func (b *RedisBackend) statsKey(field string) string { return b.prefix + "stats:" + field }

type jobMeta struct {
	Priority   int       `json:"priority"`
	RetryCount int       `json:"retry_count"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// brokerScore packs priority and arrival time into a single sortable score:
// higher priority sorts first, ties broken by earlier enqueue time. ZADD
// pops lowest score first, so we negate priority and add a small time
// fraction to preserve FIFO among equal priorities.
func brokerScore(priority int, enqueuedAt time.Time) float64 {
	return float64(-priority)*1e12 + float64(enqueuedAt.UnixNano())/1e9
}

// Enqueue registers task locally and pushes its scheduling metadata to the
// shared Redis sorted set.
func (b *RedisBackend) Enqueue(ctx context.Context, id string, priority int, task Task) error {
	meta := jobMeta{Priority: priority, EnqueuedAt: time.Now()}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("jobs: marshal meta: %w", err)
	}

	b.mu.Lock()
	b.tasks[id] = task
	b.mu.Unlock()

	pipe := b.client.Pipeline()
	pipe.Set(ctx, b.metaKey(id), data, 0)
	pipe.ZAdd(ctx, b.queueKey(), redis.Z{Score: brokerScore(priority, meta.EnqueuedAt), Member: id})
	pipe.Incr(ctx, b.statsKey("enqueued"))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("jobs: enqueue %q: %w", id, err)
	}
	return nil
}

// Cancel sets a shared cancel flag and revokes the task: removed from the
// queue if not yet claimed, or the local cancel func is invoked if this
// process happens to be running it.
func (b *RedisBackend) Cancel(ctx context.Context, id string) error {
	if err := b.client.SAdd(ctx, b.canceledKey(), id).Err(); err != nil {
		return fmt.Errorf("jobs: cancel %q: %w", id, err)
	}
	b.client.ZRem(ctx, b.queueKey(), id)
	b.client.Incr(ctx, b.statsKey("cancelled"))

	b.mu.Lock()
	cancel, ok := b.running[id]
	b.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

func (b *RedisBackend) IsRunning(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.running[id]
	return ok
}

func (b *RedisBackend) IsQueued(id string) bool {
	_, err := b.client.ZScore(context.Background(), b.queueKey(), id).Result()
	return err == nil
}

func (b *RedisBackend) GetStats() Stats {
	ctx := context.Background()
	pipe := b.client.Pipeline()
	enqueued := pipe.Get(ctx, b.statsKey("enqueued"))
	completed := pipe.Get(ctx, b.statsKey("completed"))
	failed := pipe.Get(ctx, b.statsKey("failed"))
	cancelled := pipe.Get(ctx, b.statsKey("cancelled"))
	retried := pipe.Get(ctx, b.statsKey("retried"))
	queued := pipe.ZCard(ctx, b.queueKey())
	pipe.Exec(ctx)

	b.mu.Lock()
	running := len(b.running)
	avg := avgDuration(b.execTimes)
	b.mu.Unlock()

	return Stats{
		Enqueued:         statInt64(enqueued),
		Completed:        statInt64(completed),
		Failed:           statInt64(failed),
		Cancelled:        statInt64(cancelled),
		Retried:          statInt64(retried),
		Running:          running,
		Queued:           int(queued.Val()),
		AvgExecutionTime: avg,
	}
}

func statInt64(cmd *redis.StringCmd) int64 {
	v, err := cmd.Int64()
	if err != nil {
		return 0
	}
	return v
}

func avgDuration(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range samples {
		total += d
	}
	return total / time.Duration(len(samples))
}

// RetryFailed re-enqueues a job whose task is still registered locally;
// distributed deployments would instead look the task up by id from the
// shared task definition the broker dispatched originally.
func (b *RedisBackend) RetryFailed(ctx context.Context, id string) error {
	b.mu.Lock()
	task, ok := b.tasks[id]
	b.mu.Unlock()
	if !ok {
		return errJobNotFailed
	}
	return b.Enqueue(ctx, id, 0, task)
}

// Shutdown stops the polling loop and waits up to timeout for in-flight
// jobs, cancelling whatever remains.
func (b *RedisBackend) Shutdown(ctx context.Context, timeout time.Duration) error {
	b.stopOnce.Do(func() { close(b.stopCh) })

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
	}

	b.mu.Lock()
	for _, cancel := range b.running {
		cancel()
	}
	b.mu.Unlock()
	return nil
}

func (b *RedisBackend) pollLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.claimNext()
		}
	}
}

func (b *RedisBackend) claimNext() {
	ctx := context.Background()

	b.mu.Lock()
	slotFree := len(b.running) < b.maxConcurrent
	b.mu.Unlock()
	if !slotFree {
		return
	}

	ids, err := b.client.ZRange(ctx, b.queueKey(), 0, 0).Result()
	if err != nil || len(ids) == 0 {
		return
	}
	id := ids[0]

	b.mu.Lock()
	task, ok := b.tasks[id]
	b.mu.Unlock()
	if !ok {
		// Claimed by a worker in this process's own history but the
		// closure isn't registered here (e.g. another process owns it);
		// leave it for a worker that has the task.
		return
	}

	removed, err := b.client.ZRem(ctx, b.queueKey(), id).Result()
	if err != nil || removed == 0 {
		return
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	b.mu.Lock()
	b.running[id] = cancel
	b.mu.Unlock()

	b.wg.Add(1)
	go b.run(jobCtx, cancel, id, task)
}

func (b *RedisBackend) run(ctx context.Context, cancel context.CancelFunc, id string, task Task) {
	defer b.wg.Done()
	defer cancel()

	start := time.Now()
	err := task(ctx)
	duration := time.Since(start)

	b.mu.Lock()
	delete(b.running, id)
	b.execTimes = append(b.execTimes, duration)
	if len(b.execTimes) > statsWindow {
		b.execTimes = b.execTimes[len(b.execTimes)-statsWindow:]
	}
	b.mu.Unlock()

	wasCanceled, _ := b.client.SIsMember(context.Background(), b.canceledKey(), id).Result()
	if wasCanceled {
		return
	}

	if err == nil {
		b.client.Incr(context.Background(), b.statsKey("completed"))
		return
	}

	meta, metaErr := b.loadMeta(id)
	if metaErr == nil && meta.RetryCount < b.retry.MaxRetries {
		b.retryWithBackoff(id, task, meta)
		return
	}

	b.client.Incr(context.Background(), b.statsKey("failed"))
}

func (b *RedisBackend) loadMeta(id string) (jobMeta, error) {
	data, err := b.client.Get(context.Background(), b.metaKey(id)).Bytes()
	if err != nil {
		return jobMeta{}, err
	}
	var meta jobMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return jobMeta{}, err
	}
	return meta, nil
}

func (b *RedisBackend) retryWithBackoff(id string, task Task, meta jobMeta) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		delay := redisRetryDelay(b.retry, meta.RetryCount)
		time.Sleep(delay)

		meta.RetryCount++
		meta.EnqueuedAt = time.Now()
		data, err := json.Marshal(meta)
		if err != nil {
			return
		}

		ctx := context.Background()
		pipe := b.client.Pipeline()
		pipe.Set(ctx, b.metaKey(id), data, 0)
		pipe.ZAdd(ctx, b.queueKey(), redis.Z{Score: brokerScore(meta.Priority, meta.EnqueuedAt), Member: id})
		pipe.Incr(ctx, b.statsKey("retried"))
		pipe.Exec(ctx)
	}()
}

func redisRetryDelay(cfg RetryConfig, retryCount int) time.Duration {
	raw := float64(cfg.BaseDelay) * math.Pow(cfg.ExponentialBase, float64(retryCount))
	if raw > float64(cfg.MaxDelay) {
		raw = float64(cfg.MaxDelay)
	}
	return time.Duration(raw)
}

// NewTemporalBackend would wire the same Backend interface to a
// go.temporal.io/sdk worker: Enqueue maps to a workflow.ExecuteActivity
// call, Cancel to a workflow cancel signal, and GetStats to the Temporal
// visibility API. Kept as a documented stub: a full workflow/activity
// registration is out of scope here, but any implementation satisfying
// Backend can replace RedisBackend without touching internal/orchestrator
// or internal/graph.
func NewTemporalBackend() (Backend, error) {
	return nil, errTemporalNotConfigured
}

var errTemporalNotConfigured = errors.New("jobs: temporal backend requires a configured go.temporal.io/sdk client, none provided")
