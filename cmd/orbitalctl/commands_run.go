package main

import (
	"fmt"

	"github.com/orbitalhq/orbital/internal/config"
	"github.com/spf13/cobra"
)

// buildRunCmd creates the "run" command, which executes one graph turn
// against a configured assistant and prints the final answer.
func buildRunCmd() *cobra.Command {
	var (
		configPath string
		assistant  string
		threadID   string
	)

	cmd := &cobra.Command{
		Use:   "run [message]",
		Short: "Run one turn against a configured assistant",
		Long: `Run one turn against a configured assistant through the full graph:
budget check, plan, execute tools, reflect, respond.

Example:
  orbitalctl run --assistant support "where is my order 41223?"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runTurn(cmd, cfg, assistant, args[0], threadID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVar(&assistant, "assistant", "default", "Assistant name to run")
	cmd.Flags().StringVar(&threadID, "thread", "cli", "Thread id for checkpointing")
	return cmd
}

func runTurn(cmd *cobra.Command, cfg *config.RuntimeConfig, assistantName, message, threadID string) error {
	assistant, err := lookupAssistant(cfg, assistantName)
	if err != nil {
		return err
	}

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	runner := eng.buildRunner(assistant)

	result, err := runner.Execute(cmd.Context(), message, nil, assistantBudget(assistant), threadID)
	if err != nil {
		return fmt.Errorf("run turn: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, result.Output)
	fmt.Fprintf(out, "\n--- iterations=%d cost_usd=%.4f tools_used=%d", result.Iterations, result.CostUSD, len(result.ToolsUsed))
	if result.AbortReason != "" {
		fmt.Fprintf(out, " abort_reason=%s", result.AbortReason)
	}
	fmt.Fprintln(out)
	return nil
}
