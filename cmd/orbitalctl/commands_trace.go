package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/orbitalhq/orbital/internal/config"
	"github.com/orbitalhq/orbital/internal/observability"
	"github.com/spf13/cobra"
)

// buildTraceCmd creates the "trace" command group: run a turn with local
// span capture, or inspect a previously captured span dump.
func buildTraceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Capture and inspect local execution spans",
		Long: `Capture and inspect local execution spans.

Example workflow:
  orbitalctl trace run --assistant support --out run.json "where is my order?"
  orbitalctl trace show run.json`,
	}
	cmd.AddCommand(buildTraceRunCmd(), buildTraceShowCmd())
	return cmd
}

func buildTraceRunCmd() *cobra.Command {
	var (
		configPath string
		assistant  string
		threadID   string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "run [message]",
		Short: "Run one turn with local span capture and write the spans to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runTraceRun(cmd, cfg, assistant, args[0], threadID, outPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVar(&assistant, "assistant", "default", "Assistant name to run")
	cmd.Flags().StringVar(&threadID, "thread", "cli", "Thread id for checkpointing")
	cmd.Flags().StringVar(&outPath, "out", "trace.json", "Path to write captured spans as JSON")
	return cmd
}

func runTraceRun(cmd *cobra.Command, cfg *config.RuntimeConfig, assistantName, message, threadID, outPath string) error {
	assistant, err := lookupAssistant(cfg, assistantName)
	if err != nil {
		return err
	}

	redactor := observability.NewRedactor()
	exporter := observability.NewLocalExporter(redactor)
	tracer := observability.NewTracer(exporter, redactor)
	defer tracer.Shutdown(cmd.Context())

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	runner := eng.buildRunner(assistant)

	ctx, span := tracer.StartAgentExecution(cmd.Context(), assistantName)
	start := time.Now()
	result, err := runner.Execute(ctx, message, nil, assistantBudget(assistant), threadID)
	tracer.EndAgentExecution(span, observability.AgentExecutionAttrs{
		AssistantID:    assistantName,
		InputPreview:   message,
		OutputPreview:  result.Output,
		LatencyMS:      time.Since(start).Milliseconds(),
		Iterations:     result.Iterations,
		CostUSD:        result.CostUSD,
		TokensUsed:     result.TokenUsage,
		ToolsUsedCount: len(result.ToolsUsed),
		Success:        err == nil,
	})
	if err != nil {
		return fmt.Errorf("run turn: %w", err)
	}

	spans := exporter.Spans()
	data, err := json.MarshalIndent(spans, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal spans: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, result.Output)
	fmt.Fprintf(out, "\nWrote %d span(s) to %s\n", len(spans), outPath)
	return nil
}

func buildTraceShowCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "show <file>",
		Short: "Print spans captured by a previous trace run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceShow(cmd, args[0], filter)
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "Only show spans whose name contains this substring")
	return cmd
}

func runTraceShow(cmd *cobra.Command, path, filter string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var spans []observability.Span
	if err := json.Unmarshal(data, &spans); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	for _, s := range spans {
		if filter != "" && !contains(s.Name, filter) {
			continue
		}
		fmt.Fprintf(out, "%s  %-24s  %6s  %v\n", s.Start.Format(time.RFC3339), s.Name, s.Status, s.End.Sub(s.Start))
		for k, v := range s.Attributes {
			fmt.Fprintf(out, "    %s=%s\n", k, v)
		}
	}
	return nil
}

func contains(s, substr string) bool {
	if substr == "" {
		return true
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
