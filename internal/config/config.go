// Package config loads layered environment + YAML configuration for the
// engine: a process-wide RuntimeConfig plus one AssistantConfig per
// configured assistant.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig is process-wide configuration: sandbox backend, graph
// checkpointing, and tracing, set once at startup and shared by every
// assistant run.
type RuntimeConfig struct {
	Sandbox       RuntimeSandboxConfig       `yaml:"sandbox"`
	Checkpointing CheckpointingConfig        `yaml:"checkpointing"`
	Tracing       TracingConfig              `yaml:"tracing"`
	Observability ObservabilityConfig        `yaml:"observability"`
	LLM           LLMConfig                  `yaml:"llm"`
	Tools         ToolsConfig                `yaml:"tools"`
	Assistants    map[string]AssistantConfig `yaml:"assistants"`
}

// RuntimeSandboxConfig selects the code-execution sandbox backend.
type RuntimeSandboxConfig struct {
	// Mode is one of "docker", "subprocess", "disabled".
	Mode string `yaml:"mode"`
}

// CheckpointingConfig controls graph-state persistence between turns.
type CheckpointingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// AssistantConfig configures a single assistant: model, tool list, and
// budgets, per assistant.
type AssistantConfig struct {
	Model               string            `yaml:"model"`
	Temperature         float64           `yaml:"temperature"`
	TokenBudget         int               `yaml:"token_budget"`
	MaxIterations       int               `yaml:"max_iterations"`
	MaxToolCalls        int               `yaml:"max_tool_calls"`
	CostLimitUSD        float64           `yaml:"cost_limit_usd"`
	MaxParallelTools    int               `yaml:"max_parallel_tools"`
	EnablePlanning      bool              `yaml:"enable_planning"`
	EnableReflection    bool              `yaml:"enable_reflection"`
	ReflectionThreshold float64           `yaml:"reflection_threshold"`
	EnabledTools        []string          `yaml:"enabled_tools"`
	ToolConfig          map[string]any    `yaml:"tool_config"`
}

// Load reads and parses a YAML runtime config file, expanding environment
// variables, applying env overrides, defaults, and validation in that
// order.
func Load(path string) (*RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg RuntimeConfig
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *RuntimeConfig) {
	if cfg.Sandbox.Mode == "" {
		cfg.Sandbox.Mode = "subprocess"
	}
	applyObservabilityDefaults(&cfg.Observability)
	applyTracingDefaults(&cfg.Tracing)
	applyLLMDefaults(&cfg.LLM)
	applyToolsDefaults(&cfg.Tools)
	for name, assistant := range cfg.Assistants {
		applyAssistantDefaults(&assistant)
		cfg.Assistants[name] = assistant
	}
}

func applyAssistantDefaults(cfg *AssistantConfig) {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet"
	}
	if cfg.TokenBudget == 0 {
		cfg.TokenBudget = 100_000
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 10
	}
	if cfg.MaxToolCalls == 0 {
		cfg.MaxToolCalls = 20
	}
	if cfg.CostLimitUSD == 0 {
		cfg.CostLimitUSD = 1.0
	}
	if cfg.MaxParallelTools == 0 {
		cfg.MaxParallelTools = 3
	}
	if cfg.ReflectionThreshold == 0 {
		cfg.ReflectionThreshold = 7.0
	}
}

// applyEnvOverrides applies process environment variables that override the
// YAML config: SANDBOX_MODE, ENABLE_LANGGRAPH_CHECKPOINTING, TRACING_ENABLED,
// TRACING_BACKEND, TRACING_SAMPLE_RATE, TRACING_REDACT_PII.
func applyEnvOverrides(cfg *RuntimeConfig) {
	if v := strings.TrimSpace(os.Getenv("SANDBOX_MODE")); v != "" {
		cfg.Sandbox.Mode = v
	}
	if v := strings.TrimSpace(os.Getenv("ENABLE_LANGGRAPH_CHECKPOINTING")); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.Checkpointing.Enabled = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("TRACING_ENABLED")); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.Tracing.Enabled = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("TRACING_BACKEND")); v != "" {
		cfg.Tracing.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("TRACING_SAMPLE_RATE")); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Tracing.SampleRate = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("TRACING_REDACT_PII")); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.Tracing.RedactPII = parsed
		}
	}
}

// ValidationError collects every config issue found by validate so callers
// see the full list in one error, not just the first.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validate(cfg *RuntimeConfig) error {
	var issues []string

	switch cfg.Sandbox.Mode {
	case "docker", "subprocess", "disabled":
	default:
		issues = append(issues, fmt.Sprintf("sandbox.mode must be \"docker\", \"subprocess\", or \"disabled\", got %q", cfg.Sandbox.Mode))
	}

	if issue := validateTracing(cfg.Tracing); issue != "" {
		issues = append(issues, issue)
	}

	for name, assistant := range cfg.Assistants {
		if assistant.MaxIterations < 0 {
			issues = append(issues, fmt.Sprintf("assistants[%s].max_iterations must be >= 0", name))
		}
		if assistant.CostLimitUSD < 0 {
			issues = append(issues, fmt.Sprintf("assistants[%s].cost_limit_usd must be >= 0", name))
		}
		if assistant.MaxParallelTools < 0 {
			issues = append(issues, fmt.Sprintf("assistants[%s].max_parallel_tools must be >= 0", name))
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// AssistantTimeout is an exported two-minute default timeout; no code in
// this module reads it.
const AssistantTimeout = 2 * time.Minute
