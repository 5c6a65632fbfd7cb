// Package handler provides the concrete LanguageHandler implementations
// the executor dispatches to: a generic shell handler for declared
// build commands and a Go handler wrapping the go toolchain.
package handler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/forgebuild/forge/internal/hasher"
	"github.com/forgebuild/forge/internal/interfaces"
	"github.com/forgebuild/forge/internal/types"
)

// ShellHandler builds Custom targets by running their declared Flags as
// a command line in the target's directory. It has no language-specific
// knowledge; AnalyzeImports always returns empty.
type ShellHandler struct {
	hasher *hasher.Hasher
}

// NewShellHandler returns a ShellHandler that hashes outputs with h.
func NewShellHandler(h *hasher.Hasher) *ShellHandler {
	if h == nil {
		h = hasher.New(0)
	}
	return &ShellHandler{hasher: h}
}

// Build runs target.Flags as a command (argv[0] is Flags[0]) and hashes
// the declared output files to produce the returned digest.
func (h *ShellHandler) Build(ctx context.Context, target *types.Target, workspaceRoot string) (string, error) {
	if len(target.Flags) == 0 {
		return "", fmt.Errorf("shell handler: target %s has no command in Flags", target.ID())
	}
	if err := validateCommand(target.Flags[0]); err != nil {
		return "", err
	}

	dir := filepath.Join(workspaceRoot, target.Path)
	cmd := exec.CommandContext(ctx, target.Flags[0], target.Flags[1:]...)
	cmd.Dir = dir
	cmd.Env = mergedEnv(target.Env)
	gracefulTermination(cmd)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("shell handler: target %s timed out: %w", target.ID(), ctx.Err())
		}
		return "", fmt.Errorf("shell handler: target %s failed: %w\noutput:\n%s", target.ID(), err, output)
	}

	outs, err := h.Outputs(target, workspaceRoot)
	if err != nil {
		return "", err
	}
	return hasher.FileSetHash(outs, h.hasher.ContentHash)
}

// BuildInSandbox runs the declared command through sb, scoping reads to
// the target's sources, writes to its declared output, and layering the
// target's env overrides on top of the base spec's pinned environment.
func (h *ShellHandler) BuildInSandbox(ctx context.Context, target *types.Target, workspaceRoot string, sb interfaces.Sandbox, base types.SandboxSpec) (string, error) {
	if len(target.Flags) == 0 {
		return "", fmt.Errorf("shell handler: target %s has no command in Flags", target.ID())
	}
	if err := validateCommand(target.Flags[0]); err != nil {
		return "", err
	}

	dir := filepath.Join(workspaceRoot, target.Path)
	outs, err := h.Outputs(target, workspaceRoot)
	if err != nil {
		return "", err
	}

	spec := base
	spec.ReadOnlyInputs = append(append([]string{}, base.ReadOnlyInputs...), target.Sources...)
	spec.OutputPaths = append(append([]string{}, base.OutputPaths...), outs...)
	env := make(map[string]string, len(base.Env)+len(target.Env))
	for k, v := range base.Env {
		env[k] = v
	}
	for k, v := range target.Env {
		env[k] = v
	}
	spec.Env = env

	res, err := sb.Execute(ctx, spec, target.Flags, dir)
	if err != nil {
		return "", fmt.Errorf("shell handler: target %s: %w", target.ID(), err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("shell handler: target %s exited %d\nstderr:\n%s", target.ID(), res.ExitCode, res.Stderr)
	}
	return hasher.FileSetHash(outs, h.hasher.ContentHash)
}

// AnalyzeImports is a no-op for shell targets: there is no language to
// parse imports from.
func (h *ShellHandler) AnalyzeImports(sources []string) ([]interfaces.Import, error) {
	return nil, nil
}

// Outputs resolves target.OutputPath relative to the workspace.
func (h *ShellHandler) Outputs(target *types.Target, workspaceRoot string) ([]string, error) {
	if target.OutputPath == "" {
		return nil, nil
	}
	return []string{filepath.Join(workspaceRoot, target.OutputPath)}, nil
}

// Clean removes target's declared outputs.
func (h *ShellHandler) Clean(target *types.Target, workspaceRoot string) error {
	outs, err := h.Outputs(target, workspaceRoot)
	if err != nil {
		return err
	}
	for _, p := range outs {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// allowedCommands is an explicit allowlist so a malformed or
// attacker-controlled build file can't smuggle an arbitrary binary into
// Flags[0].
var allowedCommands = map[string]bool{
	"go": true, "sh": true, "bash": true, "make": true,
	"cc": true, "gcc": true, "clang": true,
	"node": true, "npm": true, "python3": true, "rustc": true, "cargo": true,
}

func validateCommand(name string) error {
	base := filepath.Base(name)
	if !allowedCommands[base] {
		return fmt.Errorf("shell handler: command %q is not in the allowlist", name)
	}
	return nil
}

func mergedEnv(overrides map[string]string) []string {
	env := os.Environ()
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}

// gracefulTermination makes context cancellation deliver SIGTERM,
// killing the subprocess only if it ignores the signal past the grace
// period.
func gracefulTermination(cmd *exec.Cmd) {
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = 5 * time.Second
}
