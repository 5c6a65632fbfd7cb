package sandbox

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/internal/interfaces"
	"github.com/forgebuild/forge/internal/types"
)

func TestValidatePaths_RejectsOverlappingOutputAndInput(t *testing.T) {
	spec := types.SandboxSpec{
		ReadOnlyInputs: []string{"/ws/src"},
		OutputPaths:    []string{"/ws/src"},
	}
	err := validatePaths(spec)
	require.Error(t, err)
}

func TestValidatePaths_AllowsDisjointPaths(t *testing.T) {
	spec := types.SandboxSpec{
		ReadOnlyInputs: []string{"/ws/src"},
		OutputPaths:    []string{"/ws/bin"},
		TempPaths:      []string{"/tmp/forge-1"},
	}
	assert.NoError(t, validatePaths(spec))
}

func TestUnavailableSandbox_ExecutesCommand(t *testing.T) {
	args := []string{"echo", "hello"}
	if runtime.GOOS == "windows" {
		args = []string{"cmd", "/C", "echo", "hello"}
	}

	s := unavailableSandbox{}
	spec := types.SandboxSpec{Limits: types.ResourceLimits{WallTime: 5 * time.Second}}

	result, err := s.Execute(context.Background(), spec, args, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, string(result.Stdout), "hello")
}

func TestUnavailableSandbox_RejectsOverlappingPaths(t *testing.T) {
	s := unavailableSandbox{}
	spec := types.SandboxSpec{
		ReadOnlyInputs: []string{"/ws/src"},
		OutputPaths:    []string{"/ws/src"},
	}
	_, err := s.Execute(context.Background(), spec, []string{"echo", "hi"}, t.TempDir())
	require.Error(t, err)
}

func TestUnavailableSandbox_CapabilitiesAreEmpty(t *testing.T) {
	s := unavailableSandbox{}
	assert.Equal(t, interfaces.Capabilities{}, s.Capabilities())
}

func TestDeadlineFor_NoLimitUsesParent(t *testing.T) {
	ctx, cancel := deadlineFor(context.Background(), types.SandboxSpec{})
	defer cancel()
	_, hasDeadline := ctx.Deadline()
	assert.False(t, hasDeadline)
}

func TestDeadlineFor_AppliesWallTime(t *testing.T) {
	ctx, cancel := deadlineFor(context.Background(), types.SandboxSpec{Limits: types.ResourceLimits{WallTime: time.Second}})
	defer cancel()
	_, hasDeadline := ctx.Deadline()
	assert.True(t, hasDeadline)
}

func TestEnvSlice_FormatsKeyValuePairs(t *testing.T) {
	out := envSlice(map[string]string{"FOO": "bar"})
	assert.Equal(t, []string{"FOO=bar"}, out)
}
