// Package builtin provides the first-party tools wired into every
// assistant's registry by default: reading files under an allowed root,
// running read-only SQL queries, and executing short Python snippets through
// the sandbox. Each is a thin adapter over the corresponding
// internal/security gate substrate, so a real registered call actually
// exercises the file-path, SQL, and sandbox gates rather than leaving them
// dead code.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/orbitalhq/orbital/internal/security"
	"github.com/orbitalhq/orbital/internal/tools"
)

// ReadFileTool reads a file's contents. Path containment against the
// configured allowed roots is enforced by the security gate chain before
// Execute ever runs; this tool trusts that check and just reads.
type ReadFileTool struct {
	MaxBytes int
}

// NewReadFileTool returns a ReadFileTool capping reads at maxBytes (0 means
// no cap).
func NewReadFileTool(maxBytes int) *ReadFileTool {
	return &ReadFileTool{MaxBytes: maxBytes}
}

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read the contents of a file on disk." }
func (t *ReadFileTool) SecurityLevel() tools.SecurityLevel {
	return tools.SecurityModerate
}
func (t *ReadFileTool) Priority() tools.Priority { return tools.PriorityNormal }
func (t *ReadFileTool) Kind() tools.Kind         { return tools.KindFileRead }

func (t *ReadFileTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path to the file to read, relative to an allowed root.",
			},
		},
		"required": []string{"path"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *ReadFileTool) Execute(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return &tools.Result{Content: fmt.Sprintf("invalid parameters: %v", err), IsError: true}, nil
	}
	if err := security.EnsureFileExistsForRead(input.Path); err != nil {
		return &tools.Result{Content: err.Error(), IsError: true}, nil
	}
	data, err := os.ReadFile(input.Path)
	if err != nil {
		return &tools.Result{Content: fmt.Sprintf("read %q: %v", input.Path, err), IsError: true}, nil
	}
	if t.MaxBytes > 0 && len(data) > t.MaxBytes {
		data = data[:t.MaxBytes]
	}
	return &tools.Result{Content: string(data)}, nil
}
