// Package sandbox implements forge's platform-specific process
// isolation: a declarative SandboxSpec is translated into OS
// namespaces+rlimits on Linux, a generated SBPL profile on macOS, or a
// Job Object on Windows, all behind the common interfaces.Sandbox
// contract.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/forgebuild/forge/internal/interfaces"
	"github.com/forgebuild/forge/internal/types"
)

// validatePaths checks the invariant that output/temp paths are
// disjoint from read-only input paths, returning the first violation
// found. Shared by every platform backend.
func validatePaths(spec types.SandboxSpec) error {
	inputs := make(map[string]bool, len(spec.ReadOnlyInputs))
	for _, p := range spec.ReadOnlyInputs {
		inputs[filepath.Clean(p)] = true
	}
	for _, p := range append(append([]string{}, spec.OutputPaths...), spec.TempPaths...) {
		if inputs[filepath.Clean(p)] {
			return fmt.Errorf("sandbox: output/temp path %q overlaps a read-only input", p)
		}
	}
	return nil
}

// gracePeriod is how long a cancelled command gets to exit after
// SIGTERM before it is killed outright.
const gracePeriod = 5 * time.Second

// setupTermination makes context cancellation deliver SIGTERM first,
// killing the process only if it ignores the signal past gracePeriod.
func setupTermination(cmd *exec.Cmd) {
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = gracePeriod
}

// runResult is the shared helper every backend uses to turn a completed
// exec.Cmd into an interfaces.Result, enforcing SandboxSpec.Limits.WallTime
// via the caller's context.
func runResult(cmd *exec.Cmd, start time.Time) (interfaces.Result, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := interfaces.Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("sandbox: executing command: %w", err)
	}
	return result, nil
}

// deadlineFor returns a context bounded by spec's configured wall-time,
// falling back to parent if none was set.
func deadlineFor(ctx context.Context, spec types.SandboxSpec) (context.Context, context.CancelFunc) {
	if spec.Limits.WallTime <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, spec.Limits.WallTime)
}

var _ interfaces.Sandbox = (*unavailableSandbox)(nil)

// unavailableSandbox is returned by New on platforms/builds with no
// isolation backend at all; it still runs the command (best effort, no
// isolation) so a build doesn't hard-fail just because sandboxing isn't
// wired up for the host OS.
type unavailableSandbox struct{}

func (unavailableSandbox) Execute(ctx context.Context, spec types.SandboxSpec, command []string, workdir string) (interfaces.Result, error) {
	if err := validatePaths(spec); err != nil {
		return interfaces.Result{}, err
	}

	ctx, cancel := deadlineFor(ctx, spec)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = workdir
	cmd.Env = envSlice(spec.Env)
	setupTermination(cmd)
	return runResult(cmd, start)
}

func (unavailableSandbox) Capabilities() interfaces.Capabilities {
	return interfaces.Capabilities{}
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
