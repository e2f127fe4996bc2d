// Package executor implements the parallel tool executor: priority-ordered
// dispatch, bounded concurrency, per-call timeout and retry, and the
// security gate chain applied around every call.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/orbitalhq/orbital/internal/apperrors"
	"github.com/orbitalhq/orbital/internal/cost"
	"github.com/orbitalhq/orbital/internal/resilience"
	"github.com/orbitalhq/orbital/internal/security"
	"github.com/orbitalhq/orbital/internal/tools"
	"github.com/orbitalhq/orbital/pkg/models"
)

// Config bounds how the executor dispatches a batch of tool calls.
type Config struct {
	MaxConcurrency   int
	DefaultTimeout   time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
	AllowedFileRoots []string // base directories file_read-kind tools may touch
}

// DefaultConfig is the documented default: 30s per-call timeout, two
// retries, linear retry_delay*attempt backoff.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 5,
		DefaultTimeout: 30 * time.Second,
		MaxRetries:     2,
		RetryDelay:     500 * time.Millisecond,
	}
}

// retryableSubstrings classifies a tool's own error text as transient when
// no structured error type is available.
var retryableSubstrings = []string{
	"timeout", "rate limit", "connection", "temporary", "retry", "503", "429",
}

// stringField reads a string-typed key out of a tool's decoded JSON input,
// returning "" if the key is absent or not a string.
func stringField(decoded map[string]any, key string) string {
	v, _ := decoded[key].(string)
	return v
}

func isRetryableText(s string) bool {
	lower := strings.ToLower(s)
	for _, sub := range retryableSubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// Call is one requested tool invocation.
type Call struct {
	ID       string
	ToolName string
	Input    json.RawMessage
	Priority tools.Priority
}

// Executor dispatches a batch of Calls against a tool registry, through the
// security gate chain, with bounded concurrency and per-tool circuit
// breakers.
type Executor struct {
	registry  *tools.Registry
	gates     *security.Chain
	breakers  *resilience.Registry
	estimator *cost.Estimator
	config    Config
}

// New builds an Executor. gates, breakers, and estimator may be nil to run
// with no gating / breaking / costing (tests commonly do this).
func New(registry *tools.Registry, gates *security.Chain, breakers *resilience.Registry, estimator *cost.Estimator, config Config) *Executor {
	if config.MaxConcurrency <= 0 {
		config = DefaultConfig()
	}
	return &Executor{registry: registry, gates: gates, breakers: breakers, estimator: estimator, config: config}
}

// ExecuteAll runs calls concurrently, bounded by MaxConcurrency, dispatching
// higher-priority calls first when the semaphore is contended. Results are
// returned indexed to the original call order, not completion order, so the
// transcript stays deterministic regardless of scheduling.
func (e *Executor) ExecuteAll(ctx context.Context, calls []Call, user security.User, model string) []models.ToolCallRecord {
	if len(calls) == 0 {
		return nil
	}

	order := make([]int, len(calls))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return calls[order[a]].Priority > calls[order[b]].Priority
	})

	records := make([]models.ToolCallRecord, len(calls))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.MaxConcurrency)

	for _, idx := range order {
		i := idx
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				records[i] = e.timeoutRecord(calls[i], gCtx.Err())
				return nil
			default:
			}
			records[i] = e.executeOne(ctx, calls[i], user, model)
			return nil // errors are captured per-record, never propagated through the group
		})
	}

	_ = g.Wait()
	return records
}

func (e *Executor) executeOne(ctx context.Context, call Call, user security.User, model string) models.ToolCallRecord {
	start := time.Now()
	var decodedInput map[string]any
	_ = json.Unmarshal(call.Input, &decodedInput)
	record := models.ToolCallRecord{
		ToolName:  call.ToolName,
		ToolInput: decodedInput,
		Priority:  int(call.Priority),
	}

	tool, ok := e.registry.Get(call.ToolName)
	if !ok {
		record.Success = false
		record.Result = apperrors.ErrToolNotFound.Error()
		record.ErrorType = "not_found"
		record.CompletedAt = time.Now()
		record.DurationMS = time.Since(start).Milliseconds()
		return record
	}

	if e.gates != nil {
		req := security.ToolCallRequest{User: user, ToolName: call.ToolName, SecurityLevel: tool.SecurityLevel(), RawInput: call.Input}
		switch tool.Kind() {
		case tools.KindFileRead:
			req.FilePathParam = stringField(decodedInput, "path")
			req.AllowedFileRoot = e.config.AllowedFileRoots
		case tools.KindSQL:
			req.SQLParam = stringField(decodedInput, "query")
		case tools.KindCodeExec:
			req.CodeParam = stringField(decodedInput, "code")
		}
		if _, err := e.gates.CheckCall(ctx, req); err != nil {
			record.Success = false
			record.Result = err.Error()
			record.ErrorType = "security_gate"
			record.CompletedAt = time.Now()
			record.DurationMS = time.Since(start).Milliseconds()
			return record
		}
	}

	if err := tools.ValidateInput(tool.Schema(), call.Input); err != nil {
		record.Success = false
		record.Result = (&apperrors.UserInputError{Tool: call.ToolName, Reason: err.Error()}).Error()
		record.ErrorType = "invalid_input"
		record.CompletedAt = time.Now()
		record.DurationMS = time.Since(start).Milliseconds()
		return record
	}

	var breaker *resilience.CircuitBreaker
	if e.breakers != nil {
		breaker = e.breakers.GetOrCreate(call.ToolName)
	}

	timeout := e.config.DefaultTimeout
	maxRetries := e.config.MaxRetries

	var result *tools.Result
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		record.Attempts = attempt + 1

		callFn := func(callCtx context.Context) error {
			r, err := e.runWithTimeout(callCtx, tool, call.Input, timeout)
			if err != nil {
				return err
			}
			if r.IsError && isRetryableText(r.Content) {
				result = r
				return &apperrors.RetryableError{Cause: fmt.Errorf("tool %q reported a transient failure: %s", call.ToolName, r.Content)}
			}
			result = r
			return nil
		}

		var execErr error
		if breaker != nil {
			execErr = breaker.Execute(ctx, callFn)
		} else {
			execErr = callFn(ctx)
		}

		if execErr == nil {
			break
		}
		lastErr = execErr

		if !resilience.DefaultRetryable(execErr) || attempt >= maxRetries {
			break
		}

		select {
		case <-time.After(e.config.RetryDelay * time.Duration(attempt+1)):
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = maxRetries
		}
	}

	record.DurationMS = time.Since(start).Milliseconds()
	record.CompletedAt = time.Now()

	if lastErr != nil && result == nil {
		record.Success = false
		record.Result = lastErr.Error()
		record.ErrorType = classifyErrorType(lastErr)
		return record
	}

	if result != nil {
		scrubbed := result.Content
		if e.gates != nil {
			scrubbed, _ = e.gates.FilterOutput(result.Content)
		}
		record.Success = !result.IsError
		record.Result = scrubbed
		if result.IsError {
			record.ErrorType = "tool_error"
		}
	}

	if e.estimator != nil {
		tokens := cost.EstimateTokens(record.Result)
		record.CostUSD = e.estimator.EstimateCost(0, tokens, model)
	}

	return record
}

func (e *Executor) runWithTimeout(ctx context.Context, tool tools.Tool, input json.RawMessage, timeout time.Duration) (res *tools.Result, err error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result *tools.Result
		err    error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: &apperrors.FatalInternalError{Node: "tool:" + tool.Name(), Cause: toErr(r, debug.Stack())}}
			}
		}()
		result, execErr := tool.Execute(execCtx, input)
		ch <- outcome{result: result, err: execErr}
	}()

	select {
	case o := <-ch:
		return o.result, o.err
	case <-execCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &apperrors.RetryableError{Cause: context.DeadlineExceeded}
	}
}

func toErr(r any, stack []byte) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w\n%s", err, stack)
	}
	return fmt.Errorf("%v\n%s", r, stack)
}

func (e *Executor) timeoutRecord(call Call, err error) models.ToolCallRecord {
	var decodedInput map[string]any
	_ = json.Unmarshal(call.Input, &decodedInput)
	return models.ToolCallRecord{
		ToolName:    call.ToolName,
		ToolInput:   decodedInput,
		Success:     false,
		Result:      err.Error(),
		ErrorType:   "timeout",
		CompletedAt: time.Now(),
	}
}

func classifyErrorType(err error) string {
	var circuitErr *apperrors.CircuitOpenError
	if errors.As(err, &circuitErr) {
		return "circuit_open"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "execution_failed"
}
