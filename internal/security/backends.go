package security

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// DockerBackend runs code in a disposable, network-isolated container: no
// network namespace, a read-only rootfs with a tmpfs scratch dir, a CPU
// quota, and an auto-removed container.
type DockerBackend struct {
	Image       string // must be a signed, pinned image reference
	CPUQuota    float64
	ScratchSize string // e.g. "64m", sized for the tmpfs scratch mount
}

// NewDockerBackend returns a DockerBackend with conservative defaults.
func NewDockerBackend(image string) *DockerBackend {
	return &DockerBackend{Image: image, CPUQuota: 1.0, ScratchSize: "64m"}
}

func (d *DockerBackend) Run(ctx context.Context, code string, limits ExecutionLimits) (ExecutionResult, error) {
	args := []string{
		"run", "--rm",
		"--network", "none",
		"--read-only",
		"--tmpfs", "/scratch:size=" + d.ScratchSize,
		"--cpus", fmt.Sprintf("%.2f", d.CPUQuota),
		"--memory", fmt.Sprintf("%dm", limits.MemoryMB),
		"--memory-swap", fmt.Sprintf("%dm", limits.MemoryMB),
		"--pids-limit", "100",
		"-i", d.Image,
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Stdin = bytes.NewBufferString(code)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	elapsed := time.Since(start)

	result := ExecutionResult{
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		ExecutionTimeMS: elapsed.Milliseconds(),
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			result.WasTimeout = true
			result.ErrorMessage = "execution exceeded the configured timeout"
			return result, nil
		}
		result.ErrorMessage = err.Error()
		return result, nil
	}
	result.Success = true
	return result, nil
}

// SubprocessBackend runs code as a plain child process with no container
// isolation, relying on the static validation gate plus the caller's OS
// rlimits. Intended for local development, not production multi-tenant use.
type SubprocessBackend struct {
	Interpreter string // e.g. "python3"
}

// NewSubprocessBackend returns a SubprocessBackend for the given interpreter.
func NewSubprocessBackend(interpreter string) *SubprocessBackend {
	return &SubprocessBackend{Interpreter: interpreter}
}

func (s *SubprocessBackend) Run(ctx context.Context, code string, limits ExecutionLimits) (ExecutionResult, error) {
	scratch, err := os.MkdirTemp("", "orbital-sandbox-*")
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("create sandbox scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	start := time.Now()
	cmd := exec.CommandContext(ctx, s.Interpreter, "-c", code)
	cmd.Dir = scratch

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	elapsed := time.Since(start)

	result := ExecutionResult{
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		ExecutionTimeMS: elapsed.Milliseconds(),
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			result.WasTimeout = true
			result.ErrorMessage = "execution exceeded the configured timeout"
			return result, nil
		}
		result.ErrorMessage = err.Error()
		return result, nil
	}
	result.Success = true
	return result, nil
}
