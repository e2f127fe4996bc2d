package config

import "fmt"

// TracingConfig controls span export: sampling, PII redaction, backend selection.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Backend is one of "local", "otlp", "jaeger", "console", "none".
	Backend string `yaml:"backend"`

	// SampleRate is the fraction of runs traced, in [0,1].
	SampleRate float64 `yaml:"sample_rate"`

	// RedactPII gates attribute redaction before export.
	RedactPII bool `yaml:"redact_pii"`
}

func applyTracingDefaults(cfg *TracingConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "local"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

func validateTracing(cfg TracingConfig) string {
	switch cfg.Backend {
	case "local", "otlp", "jaeger", "console", "none":
	default:
		return fmt.Sprintf("tracing.backend must be \"local\", \"otlp\", \"jaeger\", \"console\", or \"none\", got %q", cfg.Backend)
	}
	if cfg.SampleRate < 0 || cfg.SampleRate > 1 {
		return fmt.Sprintf("tracing.sample_rate must be in [0,1], got %v", cfg.SampleRate)
	}
	return ""
}

// ObservabilityConfig configures structured logging. MetricsPort is loaded
// and defaulted to 9090, but `orbitalctl serve` takes its listen address
// from its --addr flag and does not read it.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsPort int    `yaml:"metrics_port"`
}

func applyObservabilityDefaults(cfg *ObservabilityConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = 9090
	}
}
