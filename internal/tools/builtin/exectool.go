package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/orbitalhq/orbital/internal/apperrors"
	"github.com/orbitalhq/orbital/internal/security"
	"github.com/orbitalhq/orbital/internal/tools"
)

// ExecutePythonTool is the only registered tool that reaches
// security.Sandbox.Execute: the gate chain's sandbox check is a static
// pre-screen, and this tool is what actually hands validated code to the
// configured execution backend (docker or subprocess).
type ExecutePythonTool struct {
	Sandbox *security.Sandbox
}

// NewExecutePythonTool wraps a configured Sandbox. sandbox may be nil for
// deployments with code execution disabled; every call then fails with a
// clear tool error.
func NewExecutePythonTool(sandbox *security.Sandbox) *ExecutePythonTool {
	return &ExecutePythonTool{Sandbox: sandbox}
}

func (t *ExecutePythonTool) Name() string { return "execute_python" }
func (t *ExecutePythonTool) Description() string {
	return "Run a short Python snippet in an isolated sandbox with no network access and a restricted import allowlist."
}
func (t *ExecutePythonTool) SecurityLevel() tools.SecurityLevel { return tools.SecurityCritical }
func (t *ExecutePythonTool) Priority() tools.Priority           { return tools.PriorityNormal }
func (t *ExecutePythonTool) Kind() tools.Kind                   { return tools.KindCodeExec }

func (t *ExecutePythonTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{
				"type":        "string",
				"description": "Python source to run.",
			},
		},
		"required": []string{"code"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *ExecutePythonTool) Execute(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	var input struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return &tools.Result{Content: fmt.Sprintf("invalid parameters: %v", err), IsError: true}, nil
	}
	if t.Sandbox == nil {
		return &tools.Result{Content: "code execution is not configured for this deployment", IsError: true}, nil
	}

	result, err := t.Sandbox.Execute(ctx, input.Code)
	if err != nil {
		var violation *apperrors.SandboxViolation
		if errors.As(err, &violation) {
			return &tools.Result{Content: violation.Error(), IsError: true}, nil
		}
		return nil, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return &tools.Result{Content: fmt.Sprintf("encode result: %v", err), IsError: true}, nil
	}
	return &tools.Result{Content: string(payload), IsError: !result.Success}, nil
}
