package builtin

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/orbitalhq/orbital/internal/tools"
)

// QueryDatabaseTool runs a single read-mostly SQL statement against a
// pre-opened database handle. DB may be nil (e.g. no database configured
// for this deployment); in that case every call fails with a clear tool
// error instead of a nil-pointer panic, the same pattern security.Sandbox
// uses for a nil execution backend.
type QueryDatabaseTool struct {
	DB *sql.DB
}

// NewQueryDatabaseTool wraps an already-opened *sql.DB. db may be nil.
func NewQueryDatabaseTool(db *sql.DB) *QueryDatabaseTool {
	return &QueryDatabaseTool{DB: db}
}

func (t *QueryDatabaseTool) Name() string { return "query_database" }
func (t *QueryDatabaseTool) Description() string {
	return "Run a single read-mostly SQL statement (no DDL, no multi-statement, DELETE/UPDATE require a WHERE clause)."
}
func (t *QueryDatabaseTool) SecurityLevel() tools.SecurityLevel { return tools.SecurityDangerous }
func (t *QueryDatabaseTool) Priority() tools.Priority           { return tools.PriorityNormal }
func (t *QueryDatabaseTool) Kind() tools.Kind                   { return tools.KindSQL }

func (t *QueryDatabaseTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "A single SQL statement.",
			},
		},
		"required": []string{"query"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *QueryDatabaseTool) Execute(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	var input struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return &tools.Result{Content: fmt.Sprintf("invalid parameters: %v", err), IsError: true}, nil
	}
	if t.DB == nil {
		return &tools.Result{Content: "no database configured for this deployment", IsError: true}, nil
	}

	rows, err := t.DB.QueryContext(ctx, input.Query)
	if err != nil {
		return &tools.Result{Content: err.Error(), IsError: true}, nil
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return &tools.Result{Content: err.Error(), IsError: true}, nil
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return &tools.Result{Content: err.Error(), IsError: true}, nil
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return &tools.Result{Content: err.Error(), IsError: true}, nil
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return &tools.Result{Content: fmt.Sprintf("encode result: %v", err), IsError: true}, nil
	}
	return &tools.Result{Content: string(payload)}, nil
}
