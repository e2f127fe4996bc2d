package config

import "time"

// ToolsConfig configures tool execution and the sandbox backend shared by
// every assistant's execute_python tool.
type ToolsConfig struct {
	Execution ToolExecutionConfig `yaml:"execution"`
	Sandbox   SandboxConfig       `yaml:"sandbox"`
}

// ToolExecutionConfig controls the parallel tool executor.
type ToolExecutionConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
	AllowedFileRoots []string      `yaml:"allowed_file_roots"`
}

// SandboxConfig mirrors security.ExecutionLimits with YAML tags so it can
// be loaded from file and handed to security.NewSandbox at startup.
type SandboxConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	MemoryMB  int           `yaml:"memory_mb"`
	MaxOutput int           `yaml:"max_output"`
}

func applyToolsDefaults(cfg *ToolsConfig) {
	if cfg.Execution.Timeout == 0 {
		cfg.Execution.Timeout = 30 * time.Second
	}
	if cfg.Execution.MaxRetries == 0 {
		cfg.Execution.MaxRetries = 2
	}
	if cfg.Execution.RetryBackoff == 0 {
		cfg.Execution.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.Sandbox.Timeout == 0 {
		cfg.Sandbox.Timeout = 30 * time.Second
	}
	if cfg.Sandbox.MemoryMB == 0 {
		cfg.Sandbox.MemoryMB = 256
	}
	if cfg.Sandbox.MaxOutput == 0 {
		cfg.Sandbox.MaxOutput = 1 << 20
	}
}
