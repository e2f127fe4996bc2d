package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter/histogram the engine records, registered once
// at process startup against a caller-supplied registry so tests don't
// collide with the global default registry.
type Metrics struct {
	// ToolCallTotal counts tool invocations. Labels: tool, success.
	ToolCallTotal *prometheus.CounterVec
	// ToolCallDuration measures tool execution latency. Labels: tool, success.
	ToolCallDuration *prometheus.HistogramVec

	// AgentExecutionTotal counts single-agent graph runs. Labels: assistant.
	AgentExecutionTotal *prometheus.CounterVec
	// AgentExecutionDuration measures single-agent graph run latency. Labels: assistant.
	AgentExecutionDuration *prometheus.HistogramVec
	// AgentIterations observes iterations per run. Labels: assistant.
	AgentIterations *prometheus.HistogramVec
	// AgentCostUSD observes cost per run. Labels: assistant.
	AgentCostUSD *prometheus.HistogramVec
	// AgentTokensUsed observes tokens used per run. Labels: assistant.
	AgentTokensUsed *prometheus.HistogramVec

	// LLMCallTotal counts LLM completions. Labels: model.
	LLMCallTotal *prometheus.CounterVec
	// LLMCallDuration measures LLM completion latency. Labels: model.
	LLMCallDuration *prometheus.HistogramVec

	// RetrievalTotal counts retrieval calls. Labels: source.
	RetrievalTotal *prometheus.CounterVec
	// RetrievalResultCount observes result counts per retrieval call. Labels: source.
	RetrievalResultCount *prometheus.HistogramVec

	// ErrorTotal counts errors by type. Labels: error_type.
	ErrorTotal *prometheus.CounterVec
}

// NewMetrics registers every metric against reg and returns the bound
// handles. Pass prometheus.NewRegistry() in tests to avoid collisions with
// the global default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ToolCallTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbital_tool_calls_total",
				Help: "Total number of tool calls by tool name and success.",
			},
			[]string{"tool", "success"},
		),
		ToolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orbital_tool_call_duration_seconds",
				Help:    "Tool call duration in seconds by tool name and success.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool", "success"},
		),

		AgentExecutionTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbital_agent_executions_total",
				Help: "Total number of single-agent graph runs by assistant.",
			},
			[]string{"assistant"},
		),
		AgentExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orbital_agent_execution_duration_seconds",
				Help:    "Single-agent graph run duration in seconds by assistant.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"assistant"},
		),
		AgentIterations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orbital_agent_iterations",
				Help:    "Iterations consumed per single-agent graph run by assistant.",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
			},
			[]string{"assistant"},
		),
		AgentCostUSD: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orbital_agent_cost_usd",
				Help:    "Cost in USD per single-agent graph run by assistant.",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"assistant"},
		),
		AgentTokensUsed: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orbital_agent_tokens_used",
				Help:    "Tokens used per single-agent graph run by assistant.",
				Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000},
			},
			[]string{"assistant"},
		),

		LLMCallTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbital_llm_calls_total",
				Help: "Total number of LLM completion calls by model.",
			},
			[]string{"model"},
		),
		LLMCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orbital_llm_call_duration_seconds",
				Help:    "LLM completion call duration in seconds by model.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"model"},
		),

		RetrievalTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbital_retrieval_calls_total",
				Help: "Total number of retrieval calls by source.",
			},
			[]string{"source"},
		),
		RetrievalResultCount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orbital_retrieval_result_count",
				Help:    "Result count per retrieval call by source.",
				Buckets: []float64{0, 1, 3, 5, 10, 20, 50},
			},
			[]string{"source"},
		),

		ErrorTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbital_errors_total",
				Help: "Total number of errors by error_type.",
			},
			[]string{"error_type"},
		),
	}
}
