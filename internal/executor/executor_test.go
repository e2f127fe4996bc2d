package executor

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitalhq/orbital/internal/security"
	"github.com/orbitalhq/orbital/internal/tools"
)

type countingTool struct {
	name      string
	failUntil int32
	calls     int32
	content   string
	delay     time.Duration
}

func (t *countingTool) Name() string                     { return t.name }
func (t *countingTool) Description() string               { return "test tool" }
func (t *countingTool) SecurityLevel() tools.SecurityLevel { return tools.SecuritySafe }
func (t *countingTool) Priority() tools.Priority           { return tools.PriorityNormal }
func (t *countingTool) Kind() tools.Kind                   { return tools.KindGeneric }
func (t *countingTool) Schema() json.RawMessage            { return nil }
func (t *countingTool) Execute(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	n := atomic.AddInt32(&t.calls, 1)
	if t.delay > 0 {
		select {
		case <-time.After(t.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= t.failUntil {
		return &tools.Result{Content: "connection reset, please retry", IsError: true}, nil
	}
	content := t.content
	if content == "" {
		content = "ok"
	}
	return &tools.Result{Content: content}, nil
}

// kindedTool is a minimal fake used to exercise the executor's per-Kind
// gate wiring without a real file/SQL/code-exec tool.
type kindedTool struct {
	name string
	kind tools.Kind
}

func (t *kindedTool) Name() string                     { return t.name }
func (t *kindedTool) Description() string               { return "test tool" }
func (t *kindedTool) SecurityLevel() tools.SecurityLevel { return tools.SecuritySafe }
func (t *kindedTool) Priority() tools.Priority           { return tools.PriorityNormal }
func (t *kindedTool) Kind() tools.Kind                   { return t.kind }
func (t *kindedTool) Schema() json.RawMessage            { return nil }
func (t *kindedTool) Execute(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	return &tools.Result{Content: "ok"}, nil
}

func newTestRegistry(tool tools.Tool) *tools.Registry {
	r := tools.NewRegistry()
	_ = r.Register(tool)
	return r
}

func TestExecutor_ExecuteAll_SingleToolSucceeds(t *testing.T) {
	registry := newTestRegistry(&countingTool{name: "search"})
	exec := New(registry, nil, nil, nil, DefaultConfig())

	records := exec.ExecuteAll(context.Background(), []Call{
		{ToolName: "search", Input: json.RawMessage(`{}`)},
	}, security.User{}, "claude-sonnet")

	require.Len(t, records, 1)
	assert.True(t, records[0].Success)
	assert.Equal(t, 1, records[0].Attempts)
}

func TestExecutor_ExecuteAll_RetriesTransientFailureThenSucceeds(t *testing.T) {
	tool := &countingTool{name: "flaky", failUntil: 1}
	registry := newTestRegistry(tool)
	cfg := DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	exec := New(registry, nil, nil, nil, cfg)

	records := exec.ExecuteAll(context.Background(), []Call{
		{ToolName: "flaky", Input: json.RawMessage(`{}`)},
	}, security.User{}, "claude-sonnet")

	require.Len(t, records, 1)
	assert.True(t, records[0].Success)
	assert.Equal(t, 2, records[0].Attempts)
}

func TestExecutor_ExecuteAll_UnknownToolReportsNotFound(t *testing.T) {
	registry := tools.NewRegistry()
	exec := New(registry, nil, nil, nil, DefaultConfig())

	records := exec.ExecuteAll(context.Background(), []Call{
		{ToolName: "missing", Input: json.RawMessage(`{}`)},
	}, security.User{}, "claude-sonnet")

	require.Len(t, records, 1)
	assert.False(t, records[0].Success)
	assert.Equal(t, "not_found", records[0].ErrorType)
}

func TestExecutor_ExecuteAll_RunsMultipleCallsConcurrently(t *testing.T) {
	registry := tools.NewRegistry()
	_ = registry.Register(&countingTool{name: "a", delay: 20 * time.Millisecond})
	_ = registry.Register(&countingTool{name: "b", delay: 20 * time.Millisecond})
	exec := New(registry, nil, nil, nil, DefaultConfig())

	start := time.Now()
	records := exec.ExecuteAll(context.Background(), []Call{
		{ToolName: "a", Input: json.RawMessage(`{}`)},
		{ToolName: "b", Input: json.RawMessage(`{}`)},
	}, security.User{}, "claude-sonnet")
	elapsed := time.Since(start)

	require.Len(t, records, 2)
	assert.Less(t, elapsed, 40*time.Millisecond)
}

func TestExecutor_ExecuteAll_PreservesInputOrderInResults(t *testing.T) {
	registry := tools.NewRegistry()
	_ = registry.Register(&countingTool{name: "low", content: "low-result"})
	_ = registry.Register(&countingTool{name: "high", content: "high-result"})
	exec := New(registry, nil, nil, nil, DefaultConfig())

	records := exec.ExecuteAll(context.Background(), []Call{
		{ToolName: "low", Input: json.RawMessage(`{}`), Priority: tools.PriorityLow},
		{ToolName: "high", Input: json.RawMessage(`{}`), Priority: tools.PriorityUrgent},
	}, security.User{}, "claude-sonnet")

	require.Len(t, records, 2)
	assert.Equal(t, "low", records[0].ToolName)
	assert.Equal(t, "high", records[1].ToolName)
}

func TestExecutor_ExecuteAll_GatesRejectDisallowedImportForCodeExecTool(t *testing.T) {
	registry := newTestRegistry(&kindedTool{name: "execute_python", kind: tools.KindCodeExec})
	gates := security.NewChain(nil, nil, nil)
	exec := New(registry, gates, nil, nil, DefaultConfig())

	records := exec.ExecuteAll(context.Background(), []Call{
		{ToolName: "execute_python", Input: json.RawMessage(`{"code":"import os"}`)},
	}, security.User{}, "claude-sonnet")

	require.Len(t, records, 1)
	assert.False(t, records[0].Success)
	assert.Equal(t, "security_gate", records[0].ErrorType)
	assert.Contains(t, records[0].Result, "Import of 'os' is not allowed")
}

func TestExecutor_ExecuteAll_GatesRejectPathTraversalForFileReadTool(t *testing.T) {
	registry := newTestRegistry(&kindedTool{name: "read_file", kind: tools.KindFileRead})
	gates := security.NewChain(nil, nil, nil)
	cfg := DefaultConfig()
	cfg.AllowedFileRoots = []string{"/allowed"}
	exec := New(registry, gates, nil, nil, cfg)

	records := exec.ExecuteAll(context.Background(), []Call{
		{ToolName: "read_file", Input: json.RawMessage(`{"path":"../../etc/passwd"}`)},
	}, security.User{}, "claude-sonnet")

	require.Len(t, records, 1)
	assert.False(t, records[0].Success)
	assert.Equal(t, "security_gate", records[0].ErrorType)
}

func TestExecutor_ExecuteAll_GatesAllowCleanSQLForSQLTool(t *testing.T) {
	registry := newTestRegistry(&kindedTool{name: "query_database", kind: tools.KindSQL})
	gates := security.NewChain(nil, nil, nil)
	exec := New(registry, gates, nil, nil, DefaultConfig())

	records := exec.ExecuteAll(context.Background(), []Call{
		{ToolName: "query_database", Input: json.RawMessage(`{"query":"SELECT 1"}`)},
	}, security.User{}, "claude-sonnet")

	require.Len(t, records, 1)
	assert.True(t, records[0].Success)
}
