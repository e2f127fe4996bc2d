package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Span is the redacted, exported record of one completed operation. It is
// the shape LocalExporter stores; a relational-table exporter would persist
// the same fields into rows keyed by TraceID/SpanID.
type Span struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	Name         string
	Kind         string
	Start        time.Time
	End          time.Time
	Attributes   map[string]string
	Status       string
	Error        string
}

// Exporter is the narrow contract tracing wrappers export completed spans
// through.
type Exporter interface {
	Export(spans []Span) error
}

// LocalExporter implements both Exporter and the OTel SDK's SpanExporter so
// it can be registered directly on a TracerProvider. It keeps every
// redacted span in memory, serving as the "local span store" for dev and
// test deployments.
type LocalExporter struct {
	redactor *Redactor

	mu    sync.Mutex
	spans []Span
}

// NewLocalExporter builds a LocalExporter. redactor may be nil, in which
// case attributes are stored unredacted (only appropriate for tests).
func NewLocalExporter(redactor *Redactor) *LocalExporter {
	return &LocalExporter{redactor: redactor}
}

// Export satisfies Exporter directly, for callers that built Span values
// themselves rather than going through the OTel SDK.
func (e *LocalExporter) Export(spans []Span) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spans = append(e.spans, spans...)
	return nil
}

// ExportSpans satisfies sdktrace.SpanExporter, converting OTel ReadOnlySpan
// values into redacted Span records before storing them.
func (e *LocalExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	converted := make([]Span, 0, len(spans))
	for _, s := range spans {
		converted = append(converted, e.convert(s))
	}
	return e.Export(converted)
}

// Shutdown satisfies sdktrace.SpanExporter.
func (e *LocalExporter) Shutdown(ctx context.Context) error { return nil }

func (e *LocalExporter) convert(s sdktrace.ReadOnlySpan) Span {
	attrs := make(map[string]string, len(s.Attributes()))
	for _, kv := range s.Attributes() {
		val := kv.Value.Emit()
		if e.redactor != nil {
			val, _ = e.redactor.RedactString(val)
		}
		attrs[string(kv.Key)] = val
	}

	var errMsg string
	status := s.Status()
	if status.Code == codes.Error {
		errMsg = status.Description
	}

	var parentID string
	if s.Parent().HasSpanID() {
		parentID = s.Parent().SpanID().String()
	}

	return Span{
		TraceID:      s.SpanContext().TraceID().String(),
		SpanID:       s.SpanContext().SpanID().String(),
		ParentSpanID: parentID,
		Name:         s.Name(),
		Kind:         s.SpanKind().String(),
		Start:        s.StartTime(),
		End:          s.EndTime(),
		Attributes:   attrs,
		Status:       status.Code.String(),
		Error:        errMsg,
	}
}

// Spans returns a snapshot of every span stored so far.
func (e *LocalExporter) Spans() []Span {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Span, len(e.spans))
	copy(out, e.spans)
	return out
}

// Tracer wraps an OTel tracer with the engine's four fixed-schema span
// wrappers (agent_execution, tool_<name>, llm_call, retrieval_<source>),
// redacting every attribute before it reaches the exporter.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	redactor *Redactor
}

// NewTracer builds a Tracer backed by exporter (typically a LocalExporter),
// registering it with a fresh TracerProvider so spans don't leak into the
// process-wide global provider unless the caller opts in.
func NewTracer(exporter sdktrace.SpanExporter, redactor *Redactor) *Tracer {
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	if redactor == nil {
		redactor = NewRedactor()
	}
	return &Tracer{provider: provider, tracer: provider.Tracer("orbital"), redactor: redactor}
}

// Shutdown flushes and stops the underlying TracerProvider.
func (t *Tracer) Shutdown(ctx context.Context) error { return t.provider.Shutdown(ctx) }

func (t *Tracer) redact(kv attribute.KeyValue) attribute.KeyValue {
	if kv.Value.Type() != attribute.STRING {
		return kv
	}
	redacted, _ := t.redactor.RedactString(kv.Value.AsString())
	return attribute.String(string(kv.Key), redacted)
}

func (t *Tracer) start(ctx context.Context, name string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	redacted := make([]attribute.KeyValue, len(attrs))
	for i, kv := range attrs {
		redacted[i] = t.redact(kv)
	}
	return t.tracer.Start(ctx, name, trace.WithSpanKind(kind), trace.WithAttributes(redacted...))
}

// AgentExecutionAttrs is the fixed attribute schema for an agent_execution
// span.
type AgentExecutionAttrs struct {
	AssistantID     string
	UserID          string
	ConversationID  string
	InputPreview    string
	OutputPreview   string
	LatencyMS       int64
	Iterations      int
	CostUSD         float64
	TokensUsed      int
	ToolsUsedCount  int
	Success         bool
	Error           string
}

// StartAgentExecution opens an agent_execution span. Callers call End with
// the final attrs once the run completes.
func (t *Tracer) StartAgentExecution(ctx context.Context, assistantID string) (context.Context, trace.Span) {
	return t.start(ctx, "agent_execution", trace.SpanKindInternal, attribute.String("assistant_id", assistantID))
}

// EndAgentExecution closes span with the full agent_execution attribute set.
func (t *Tracer) EndAgentExecution(span trace.Span, a AgentExecutionAttrs) {
	attrs := []attribute.KeyValue{
		attribute.String("assistant_id", a.AssistantID),
		attribute.String("user_id", a.UserID),
		attribute.String("conversation_id", a.ConversationID),
		attribute.String("input_preview", a.InputPreview),
		attribute.String("output_preview", a.OutputPreview),
		attribute.Int64("latency_ms", a.LatencyMS),
		attribute.Int("iterations", a.Iterations),
		attribute.Float64("cost_usd", a.CostUSD),
		attribute.Int("tokens_used", a.TokensUsed),
		attribute.Int("tools_used_count", a.ToolsUsedCount),
		attribute.Bool("success", a.Success),
	}
	for _, kv := range attrs {
		span.SetAttributes(t.redact(kv))
	}
	if a.Error != "" {
		redactedErr, _ := t.redactor.RedactString(a.Error)
		span.SetAttributes(attribute.String("error", redactedErr))
		span.SetStatus(codes.Error, redactedErr)
	}
	span.End()
}

// ToolAttrs is the fixed attribute schema for a tool_<name> span.
type ToolAttrs struct {
	Name          string
	Input         string
	OutputPreview string
	LatencyMS     int64
	Success       bool
	Error         string
	Attempts      int
}

// StartTool opens a tool_<name> span.
func (t *Tracer) StartTool(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.start(ctx, fmt.Sprintf("tool_%s", name), trace.SpanKindInternal, attribute.String("tool.name", name))
}

// EndTool closes span with the full tool attribute set.
func (t *Tracer) EndTool(span trace.Span, a ToolAttrs) {
	attrs := []attribute.KeyValue{
		attribute.String("tool.name", a.Name),
		attribute.String("tool.input", a.Input),
		attribute.String("tool.output_preview", a.OutputPreview),
		attribute.Int64("tool.latency_ms", a.LatencyMS),
		attribute.Bool("tool.success", a.Success),
		attribute.Int("tool.attempts", a.Attempts),
	}
	for _, kv := range attrs {
		span.SetAttributes(t.redact(kv))
	}
	if a.Error != "" {
		redactedErr, _ := t.redactor.RedactString(a.Error)
		span.SetAttributes(attribute.String("tool.error", redactedErr))
		span.SetStatus(codes.Error, redactedErr)
	}
	span.End()
}

// LLMAttrs is the fixed attribute schema for an llm_call span.
type LLMAttrs struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	LatencyMS        int64
	Success          bool
}

// StartLLMCall opens an llm_call span.
func (t *Tracer) StartLLMCall(ctx context.Context, model string) (context.Context, trace.Span) {
	return t.start(ctx, "llm_call", trace.SpanKindClient, attribute.String("llm.model", model))
}

// EndLLMCall closes span with the full llm_call attribute set.
func (t *Tracer) EndLLMCall(span trace.Span, a LLMAttrs) {
	attrs := []attribute.KeyValue{
		attribute.String("llm.model", a.Model),
		attribute.Int("llm.prompt_tokens", a.PromptTokens),
		attribute.Int("llm.completion_tokens", a.CompletionTokens),
		attribute.Int("llm.total_tokens", a.TotalTokens),
		attribute.Int64("llm.latency_ms", a.LatencyMS),
		attribute.Bool("llm.success", a.Success),
	}
	for _, kv := range attrs {
		span.SetAttributes(t.redact(kv))
	}
	if !a.Success {
		span.SetStatus(codes.Error, "llm call failed")
	}
	span.End()
}

// RetrievalAttrs is the fixed attribute schema for a retrieval_<source> span.
type RetrievalAttrs struct {
	Source              string
	Query               string
	KnowledgeBaseID     string
	TopK                int
	ResultCount         int
	FirstResultPreview  string
	LatencyMS           int64
	Success             bool
}

// StartRetrieval opens a retrieval_<source> span.
func (t *Tracer) StartRetrieval(ctx context.Context, source string) (context.Context, trace.Span) {
	return t.start(ctx, fmt.Sprintf("retrieval_%s", source), trace.SpanKindClient, attribute.String("retrieval.source", source))
}

// EndRetrieval closes span with the full retrieval attribute set.
func (t *Tracer) EndRetrieval(span trace.Span, a RetrievalAttrs) {
	attrs := []attribute.KeyValue{
		attribute.String("retrieval.source", a.Source),
		attribute.String("retrieval.query", a.Query),
		attribute.Int("retrieval.top_k", a.TopK),
		attribute.Int("retrieval.result_count", a.ResultCount),
		attribute.String("retrieval.first_result_preview", a.FirstResultPreview),
		attribute.Int64("retrieval.latency_ms", a.LatencyMS),
		attribute.Bool("retrieval.success", a.Success),
	}
	if a.KnowledgeBaseID != "" {
		attrs = append(attrs, attribute.String("retrieval.kb_id", a.KnowledgeBaseID))
	}
	for _, kv := range attrs {
		span.SetAttributes(t.redact(kv))
	}
	if !a.Success {
		span.SetStatus(codes.Error, "retrieval failed")
	}
	span.End()
}
