package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateInput compiles schema (draft-07 JSON Schema) and validates params
// against it. Invalid tool input is the UserInputError case from the error
// taxonomy — callers wrap the returned error accordingly.
func ValidateInput(schema json.RawMessage, params json.RawMessage) error {
	if len(schema) == 0 {
		return nil
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource("schema.json", bytes.NewReader(schema)); err != nil {
		return fmt.Errorf("compile tool schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile tool schema: %w", err)
	}

	var doc any
	if len(params) == 0 {
		doc = map[string]any{}
	} else if err := json.Unmarshal(params, &doc); err != nil {
		return fmt.Errorf("tool input is not valid JSON: %w", err)
	}

	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("tool input failed schema validation: %w", err)
	}
	return nil
}
