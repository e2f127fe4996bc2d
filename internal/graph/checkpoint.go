package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orbitalhq/orbital/internal/state"
)

// Checkpointer persists an AgentState keyed by an external thread_id so a
// crashed run can resume at the last committed node boundary. Commits happen
// only between nodes, never mid-node.
type Checkpointer interface {
	Save(ctx context.Context, threadID string, s *state.AgentState) error
	Load(ctx context.Context, threadID string) (*state.AgentState, bool, error)
	Delete(ctx context.Context, threadID string) error
}

// MemoryCheckpointer is an in-process Checkpointer, used in tests and in
// single-process deployments that don't need cross-process resume.
type MemoryCheckpointer struct {
	mu    sync.RWMutex
	store map[string]*state.AgentState
}

// NewMemoryCheckpointer returns an empty MemoryCheckpointer.
func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{store: make(map[string]*state.AgentState)}
}

func (c *MemoryCheckpointer) Save(ctx context.Context, threadID string, s *state.AgentState) error {
	cp := *s
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[threadID] = &cp
	return nil
}

func (c *MemoryCheckpointer) Load(ctx context.Context, threadID string) (*state.AgentState, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.store[threadID]
	if !ok {
		return nil, false, nil
	}
	cp := *s
	return &cp, true, nil
}

func (c *MemoryCheckpointer) Delete(ctx context.Context, threadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, threadID)
	return nil
}

// RedisCheckpointer persists AgentState snapshots in Redis, for
// multi-process deployments where a crashed worker's run must resume
// elsewhere.
type RedisCheckpointer struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCheckpointer builds a RedisCheckpointer. A zero ttl disables
// expiry.
func NewRedisCheckpointer(client *redis.Client, prefix string, ttl time.Duration) *RedisCheckpointer {
	if prefix == "" {
		prefix = "orbital:checkpoint:"
	}
	return &RedisCheckpointer{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCheckpointer) key(threadID string) string {
	return c.prefix + threadID
}

func (c *RedisCheckpointer) Save(ctx context.Context, threadID string, s *state.AgentState) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal state: %w", err)
	}
	if err := c.client.Set(ctx, c.key(threadID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("checkpoint: save %q: %w", threadID, err)
	}
	return nil
}

func (c *RedisCheckpointer) Load(ctx context.Context, threadID string) (*state.AgentState, bool, error) {
	data, err := c.client.Get(ctx, c.key(threadID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("checkpoint: load %q: %w", threadID, err)
	}
	var s state.AgentState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, fmt.Errorf("checkpoint: unmarshal %q: %w", threadID, err)
	}
	return &s, true, nil
}

func (c *RedisCheckpointer) Delete(ctx context.Context, threadID string) error {
	if err := c.client.Del(ctx, c.key(threadID)).Err(); err != nil {
		return fmt.Errorf("checkpoint: delete %q: %w", threadID, err)
	}
	return nil
}
