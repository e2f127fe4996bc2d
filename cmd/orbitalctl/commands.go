package main

import (
	"fmt"

	"github.com/orbitalhq/orbital/internal/config"
	"github.com/orbitalhq/orbital/internal/cost"
	"github.com/orbitalhq/orbital/internal/executor"
	"github.com/orbitalhq/orbital/internal/graph"
	"github.com/orbitalhq/orbital/internal/graph/nodes"
	"github.com/orbitalhq/orbital/internal/llm"
	"github.com/orbitalhq/orbital/internal/resilience"
	"github.com/orbitalhq/orbital/internal/security"
	"github.com/orbitalhq/orbital/internal/state"
	"github.com/orbitalhq/orbital/internal/tools"
	"github.com/orbitalhq/orbital/internal/tools/builtin"
)

// engine bundles the shared components one assistant's graph.Runner is built
// from, so commands that need more than one assistant don't reconstruct the
// LLM client, registry, and security chain per specialist.
type engine struct {
	cfg       *config.RuntimeConfig
	llmClient llm.Client
	registry  *tools.Registry
	estimator *cost.Estimator
	gates     *security.Chain
	breakers  *resilience.Registry
}

// newEngine wires the shared, config-driven components every runner needs.
func newEngine(cfg *config.RuntimeConfig) (*engine, error) {
	provider, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]
	if !ok {
		provider = config.LLMProviderConfig{}
	}
	client, err := llm.NewAnthropicClient(llm.AnthropicConfig{
		APIKey:       provider.APIKey,
		BaseURL:      provider.BaseURL,
		DefaultModel: provider.DefaultModel,
		MaxTokens:    provider.MaxTokens,
		Retry:        resilience.DefaultConfig(),
	})
	if err != nil {
		return nil, fmt.Errorf("build llm client: %w", err)
	}

	registry := tools.NewRegistry()

	var sandboxBackend security.Backend
	switch security.SandboxMode(cfg.Sandbox.Mode) {
	case security.SandboxDocker:
		sandboxBackend = security.NewDockerBackend("orbital-sandbox:latest")
	case security.SandboxSubprocess:
		sandboxBackend = security.NewSubprocessBackend("python3")
	}

	var sandbox *security.Sandbox
	if security.SandboxMode(cfg.Sandbox.Mode) != security.SandboxDisabled {
		sandbox = security.NewSandbox(security.SandboxMode(cfg.Sandbox.Mode), sandboxBackend, security.ExecutionLimits{
			Timeout:   cfg.Tools.Sandbox.Timeout,
			MemoryMB:  cfg.Tools.Sandbox.MemoryMB,
			MaxOutput: cfg.Tools.Sandbox.MaxOutput,
		})
	}

	gates := security.NewChain(security.NewPermissionChecker(nil, nil), sandbox, security.NewOutputFilter())

	registry.MustRegister(builtin.NewReadFileTool(0))
	registry.MustRegister(builtin.NewQueryDatabaseTool(nil))
	if sandbox != nil {
		registry.MustRegister(builtin.NewExecutePythonTool(sandbox))
	}

	return &engine{
		cfg:       cfg,
		llmClient: client,
		registry:  registry,
		estimator: cost.NewEstimator(nil),
		gates:     gates,
		breakers:  resilience.NewRegistry(resilience.CircuitBreakerConfig{}),
	}, nil
}

// buildRunner assembles a graph.Runner for one assistant configuration,
// reusing the engine's shared LLM client, registry, and security chain.
func (e *engine) buildRunner(assistant config.AssistantConfig) *graph.Runner {
	estimator := e.estimator

	var checkpoints graph.Checkpointer
	if e.cfg.Checkpointing.Enabled {
		checkpoints = graph.NewMemoryCheckpointer()
	}

	return &graph.Runner{
		Checker: state.NewChecker(nil),
		Planner: &nodes.Planner{
			Registry:  e.registry,
			LLM:       e.llmClient,
			Model:     assistant.Model,
			Estimator: estimator,
		},
		Executor: &nodes.ToolExecutor{
			Executor: executor.New(e.registry, e.gates, e.breakers, estimator, executor.Config{
				MaxConcurrency:   assistant.MaxParallelTools,
				DefaultTimeout:   e.cfg.Tools.Execution.Timeout,
				MaxRetries:       e.cfg.Tools.Execution.MaxRetries,
				RetryDelay:       e.cfg.Tools.Execution.RetryBackoff,
				AllowedFileRoots: e.cfg.Tools.Execution.AllowedFileRoots,
			}),
			Registry: e.registry,
			User:     security.User{ID: "cli"},
			Model:    assistant.Model,
		},
		Reflector: &nodes.Reflector{
			LLM:              e.llmClient,
			Model:            assistant.Model,
			Estimator:        estimator,
			QualityThreshold: assistant.ReflectionThreshold,
		},
		Responder: &nodes.Responder{
			LLM:       e.llmClient,
			Model:     assistant.Model,
			Estimator: estimator,
		},
		Checkpoints: checkpoints,
	}
}

// assistantBudget converts the per-assistant config into the graph's
// immutable run budget.
func assistantBudget(assistant config.AssistantConfig) state.Budget {
	return state.Budget{
		MaxIterations:    assistant.MaxIterations,
		MaxToolCalls:     assistant.MaxToolCalls,
		CostLimitUSD:     assistant.CostLimitUSD,
		TokenBudget:      assistant.TokenBudget,
		MaxParallelTools: assistant.MaxParallelTools,
	}
}

func lookupAssistant(cfg *config.RuntimeConfig, name string) (config.AssistantConfig, error) {
	assistant, ok := cfg.Assistants[name]
	if !ok {
		return config.AssistantConfig{}, fmt.Errorf("no assistant configured named %q", name)
	}
	return assistant, nil
}
