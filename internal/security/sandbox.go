package security

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/orbitalhq/orbital/internal/apperrors"
)

// SandboxMode selects how (or whether) code-execution tools actually run
// code after passing static validation.
type SandboxMode string

const (
	// SandboxDocker runs validated code in a container: no network
	// namespace, a read-only rootfs with a tmpfs scratch dir, a CPU quota,
	// a signed image, and an auto-removed container.
	SandboxDocker SandboxMode = "docker"
	// SandboxSubprocess runs validated code as a plain child process,
	// relying on the static gate alone plus OS-level rlimits.
	SandboxSubprocess SandboxMode = "subprocess"
	// SandboxDisabled rejects every code-execution tool call outright.
	SandboxDisabled SandboxMode = "disabled"
)

// allowedImports is the import allowlist enforced before any code reaches
// an execution backend. Anything not on this list is rejected, not warned.
var allowedImports = map[string]bool{
	"math": true, "json": true, "datetime": true, "re": true,
	"collections": true, "itertools": true, "functools": true,
	"statistics": true, "decimal": true, "csv": true, "hashlib": true,
	"base64": true, "urllib.parse": true,
}

// dangerousBuiltins may never be called (name followed by "(") in submitted
// code.
var dangerousBuiltins = map[string]bool{
	"eval": true, "exec": true, "compile": true, "__import__": true,
	"open": true, "input": true, "breakpoint": true,
	"getattr": true, "setattr": true, "delattr": true,
}

// dangerousDunders may never be accessed as an attribute, regardless of
// receiver, since they are the usual sandbox-escape primitives.
var dangerousDunders = map[string]bool{
	"__class__": true, "__bases__": true, "__subclasses__": true,
	"__mro__": true, "__globals__": true, "__code__": true,
	"__builtins__": true, "__import__": true, "__reduce__": true,
	"__reduce_ex__": true, "__getstate__": true, "__setstate__": true,
}

var (
	importLinePattern      = regexp.MustCompile(`(?m)^\s*(?:import|from)\s+([A-Za-z0-9_.]+)`)
	identifierPattern      = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	dunderAccessPattern    = regexp.MustCompile(`\.\s*(__[A-Za-z0-9_]+__)\b`)
	dunderSubscriptPattern = regexp.MustCompile(`\[\s*['"](__[A-Za-z0-9_]+__)['"]\s*\]`)
)

// StaticViolation is one reason submitted code failed static validation.
type StaticViolation struct {
	Rule   string
	Detail string
}

func (v StaticViolation) String() string {
	return fmt.Sprintf("%s: %s", v.Rule, v.Detail)
}

// ValidateStatic performs a lexical approximation of AST-level validation:
// Go has no Python parser in the standard library, so instead of building
// one this walks the source with import-line and identifier regexes. It
// is deliberately conservative — false positives (rejecting safe code that
// merely mentions a forbidden token in a string literal) are preferred
// over false negatives.
func ValidateStatic(code string) []StaticViolation {
	var violations []StaticViolation

	for _, m := range importLinePattern.FindAllStringSubmatch(code, -1) {
		module := m[1]
		if !allowedImports[module] {
			violations = append(violations, StaticViolation{
				Rule:   "import_not_allowlisted",
				Detail: fmt.Sprintf("Import of '%s' is not allowed", module),
			})
		}
	}

	for _, m := range identifierPattern.FindAllStringSubmatch(code, -1) {
		name := m[1]
		if dangerousBuiltins[name] {
			violations = append(violations, StaticViolation{
				Rule:   "dangerous_builtin",
				Detail: name,
			})
		}
	}

	for _, m := range dunderAccessPattern.FindAllStringSubmatch(code, -1) {
		name := m[1]
		if dangerousDunders[name] {
			violations = append(violations, StaticViolation{
				Rule:   "dangerous_dunder_access",
				Detail: name,
			})
		}
	}

	for _, m := range dunderSubscriptPattern.FindAllStringSubmatch(code, -1) {
		name := m[1]
		if dangerousDunders[name] {
			violations = append(violations, StaticViolation{
				Rule:   "dangerous_dunder_access",
				Detail: name,
			})
		}
	}

	return violations
}

// ExecutionLimits bounds one sandboxed run.
type ExecutionLimits struct {
	Timeout    time.Duration
	MemoryMB   int
	MaxOutput  int
}

// DefaultExecutionLimits matches the sandbox defaults: 30s wall clock,
// 256MiB, 1MiB of combined stdout/stderr.
func DefaultExecutionLimits() ExecutionLimits {
	return ExecutionLimits{
		Timeout:   30 * time.Second,
		MemoryMB:  256,
		MaxOutput: 1 << 20,
	}
}

// ExecutionResult is the shape returned to the model for every sandboxed
// run, successful or not.
type ExecutionResult struct {
	Success         bool    `json:"success"`
	Stdout          string  `json:"stdout"`
	Stderr          string  `json:"stderr"`
	ReturnValue     any     `json:"return_value,omitempty"`
	ExecutionTimeMS int64   `json:"execution_time_ms"`
	MemoryUsedMB    float64 `json:"memory_used_mb"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	WasTimeout      bool    `json:"was_timeout"`
	WasMemoryLimit  bool    `json:"was_memory_limit"`
}

// Backend runs already-statically-validated code and reports resource
// usage. Concrete backends (docker, subprocess) implement this; tests use
// a fake.
type Backend interface {
	Run(ctx context.Context, code string, limits ExecutionLimits) (ExecutionResult, error)
}

// Sandbox composes static validation with a pluggable execution backend.
type Sandbox struct {
	mode    SandboxMode
	backend Backend
	limits  ExecutionLimits
}

// NewSandbox builds a Sandbox in the given mode. backend may be nil when
// mode is SandboxDisabled.
func NewSandbox(mode SandboxMode, backend Backend, limits ExecutionLimits) *Sandbox {
	if limits.Timeout == 0 {
		limits = DefaultExecutionLimits()
	}
	return &Sandbox{mode: mode, backend: backend, limits: limits}
}

// Execute runs code through static validation and, if that passes and the
// sandbox is not disabled, through the configured backend. A static
// violation or a disabled sandbox both surface as a SandboxViolation
// rather than reaching the backend at all.
func (s *Sandbox) Execute(ctx context.Context, code string) (ExecutionResult, error) {
	if s.mode == SandboxDisabled {
		return ExecutionResult{}, &apperrors.SandboxViolation{Reason: "code execution is disabled"}
	}

	if violations := ValidateStatic(code); len(violations) > 0 {
		details := make([]string, len(violations))
		for i, v := range violations {
			details[i] = v.String()
		}
		return ExecutionResult{}, &apperrors.SandboxViolation{Reason: strings.Join(details, "; ")}
	}

	if s.backend == nil {
		return ExecutionResult{}, &apperrors.SandboxViolation{Reason: "no execution backend configured"}
	}

	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, s.limits.Timeout)
	defer cancel()

	result, err := s.backend.Run(runCtx, code, s.limits)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return ExecutionResult{
				Success:         false,
				WasTimeout:      true,
				ExecutionTimeMS: time.Since(start).Milliseconds(),
				ErrorMessage:    "execution exceeded the configured timeout",
			}, nil
		}
		return ExecutionResult{}, err
	}

	if len(result.Stdout)+len(result.Stderr) > s.limits.MaxOutput {
		result.Stdout = truncateOutput(result.Stdout, s.limits.MaxOutput)
		result.Stderr = truncateOutput(result.Stderr, s.limits.MaxOutput)
	}

	return result, nil
}

func truncateOutput(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n...[truncated]"
}
