// Command orbitalctl runs and inspects the Orbital agent execution engine.
//
// # Basic Usage
//
// Run one turn against a specialist:
//
//	orbitalctl run --assistant support "where is my order 41223?"
//
// Start the health/metrics listener:
//
//	orbitalctl serve --config orbital.yaml
//
// Inspect the ingestion job queue:
//
//	orbitalctl jobs smoke
//
// # Environment Variables
//
//   - ORBITAL_CONFIG: path to the configuration file (default: orbital.yaml)
//   - ANTHROPIC_API_KEY: Anthropic API key for the default LLM provider
//   - SANDBOX_MODE: overrides sandbox.mode (docker, subprocess, disabled)
//   - TRACING_ENABLED, TRACING_BACKEND, TRACING_SAMPLE_RATE, TRACING_REDACT_PII
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "orbitalctl",
		Short: "Orbital - agent execution engine",
		Long: `Orbital runs LLM-backed agents through a bounded graph: plan, execute
tools under a sandbox and permission chain, reflect, and respond, with a
budget enforced across every specialist hop.

Documentation: https://github.com/orbitalhq/orbital`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildRunCmd(),
		buildServeCmd(),
		buildJobsCmd(),
		buildTraceCmd(),
	)

	return rootCmd
}

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("ORBITAL_CONFIG"); env != "" {
		return env
	}
	return "orbital.yaml"
}
