package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name     string
	security SecurityLevel
	priority Priority
	schema   json.RawMessage
}

func (s stubTool) Name() string               { return s.name }
func (s stubTool) Description() string        { return "stub tool " + s.name }
func (s stubTool) SecurityLevel() SecurityLevel { return s.security }
func (s stubTool) Priority() Priority         { return s.priority }
func (s stubTool) Kind() Kind                 { return KindGeneric }
func (s stubTool) Schema() json.RawMessage    { return s.schema }
func (s stubTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	return &Result{Content: "ok"}, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubTool{name: "search", security: SecuritySafe}))

	got, ok := r.Get("search")
	require.True(t, ok)
	assert.Equal(t, "search", got.Name())
}

func TestRegistry_DuplicateRegistrationRejected(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubTool{name: "search"}))
	err := r.Register(stubTool{name: "search"})
	require.Error(t, err)
}

func TestRegistry_FilteredRespectsAllowlist(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubTool{name: "search"}))
	require.NoError(t, r.Register(stubTool{name: "exec_code"}))

	got := r.Filtered([]string{"search"})
	require.Len(t, got, 1)
	assert.Equal(t, "search", got[0].Name())
}

func TestRegistry_ListReturnsDescriptors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubTool{name: "search", security: SecuritySafe}))
	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, "search", list[0].Name)
	assert.Equal(t, SecuritySafe, list[0].SecurityLevel)
}
