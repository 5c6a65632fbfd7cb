package handler

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/internal/hasher"
	"github.com/forgebuild/forge/internal/interfaces"
	"github.com/forgebuild/forge/internal/types"
)

func TestShellHandler_Build_RunsCommandAndHashesOutput(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg"), 0o755))

	target := &types.Target{
		Workspace:  "ws",
		Path:       "pkg",
		Name:       "gen",
		Kind:       types.KindCustom,
		Flags:      []string{"sh", "-c", "echo hi > out.txt"},
		OutputPath: "pkg/out.txt",
	}

	h := NewShellHandler(hasher.New(0))
	hash, err := h.Build(context.Background(), target, dir)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	data, err := os.ReadFile(filepath.Join(dir, "pkg", "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(data))
}

func TestShellHandler_Build_RejectsDisallowedCommand(t *testing.T) {
	dir := t.TempDir()
	target := &types.Target{
		Workspace: "ws", Path: "pkg", Name: "bad",
		Flags: []string{"curl", "http://example.com"},
	}
	h := NewShellHandler(hasher.New(0))
	_, err := h.Build(context.Background(), target, dir)
	require.Error(t, err)
}

// recordingSandbox captures the spec and command it was asked to run,
// executing the command directly so output hashing has real files.
type recordingSandbox struct {
	spec    types.SandboxSpec
	command []string
}

func (s *recordingSandbox) Execute(ctx context.Context, spec types.SandboxSpec, command []string, workdir string) (interfaces.Result, error) {
	s.spec = spec
	s.command = command
	start := time.Now()
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = workdir
	out, err := cmd.CombinedOutput()
	res := interfaces.Result{Stdout: out, Duration: time.Since(start)}
	if exitErr, ok := err.(*exec.ExitError); ok {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, err
}

func (s *recordingSandbox) Capabilities() interfaces.Capabilities {
	return interfaces.Capabilities{}
}

func TestShellHandler_BuildInSandbox_ScopesSpecToTarget(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg"), 0o755))
	src := filepath.Join(dir, "pkg", "in.txt")
	require.NoError(t, os.WriteFile(src, []byte("in"), 0o644))

	target := &types.Target{
		Workspace:  "ws",
		Path:       "pkg",
		Name:       "gen",
		Kind:       types.KindCustom,
		Sources:    []string{src},
		Flags:      []string{"sh", "-c", "cat in.txt > out.txt"},
		OutputPath: "pkg/out.txt",
		Env:        map[string]string{"TARGET_VAR": "1"},
	}
	base := types.SandboxSpec{
		Network: types.NetworkHermetic,
		Env:     map[string]string{"SOURCE_DATE_EPOCH": "1640995200"},
		Limits:  types.ResourceLimits{WallTime: time.Minute},
	}

	sb := &recordingSandbox{}
	h := NewShellHandler(hasher.New(0))
	hash, err := h.BuildInSandbox(context.Background(), target, dir, sb, base)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	assert.Equal(t, target.Flags, sb.command)
	assert.Contains(t, sb.spec.ReadOnlyInputs, src)
	assert.Contains(t, sb.spec.OutputPaths, filepath.Join(dir, "pkg", "out.txt"))
	assert.Equal(t, types.NetworkHermetic, sb.spec.Network)
	// base env and target env both survive the merge
	assert.Equal(t, "1640995200", sb.spec.Env["SOURCE_DATE_EPOCH"])
	assert.Equal(t, "1", sb.spec.Env["TARGET_VAR"])
}

func TestShellHandler_BuildInSandbox_NonZeroExitIsError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg"), 0o755))
	target := &types.Target{
		Workspace: "ws", Path: "pkg", Name: "boom",
		Flags: []string{"sh", "-c", "exit 3"},
	}
	sb := &recordingSandbox{}
	h := NewShellHandler(hasher.New(0))
	_, err := h.BuildInSandbox(context.Background(), target, dir, sb, types.SandboxSpec{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited 3")
}

func TestGoHandler_AnalyzeImports(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(src, []byte(`package main

import (
	"fmt"
	"os"
)

func main() { fmt.Println(os.Args) }
`), 0o644))

	h := NewGoHandler(hasher.New(0))
	imports, err := h.AnalyzeImports([]string{src})
	require.NoError(t, err)

	var paths []string
	for _, imp := range imports {
		paths = append(paths, imp.Path)
	}
	assert.ElementsMatch(t, []string{"fmt", "os"}, paths)
}

func TestGoHandler_Outputs_DefaultsUnderBin(t *testing.T) {
	h := NewGoHandler(hasher.New(0))
	target := &types.Target{Workspace: "ws", Path: "pkg", Name: "app"}
	outs, err := h.Outputs(target, "/root")
	require.NoError(t, err)
	assert.Equal(t, []string{"/root/bin/app"}, outs)
}
