package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
}

func TestLoad_AppliesDefaultsWhenUnset(t *testing.T) {
	resetViper(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Workspace.Root)
	assert.Equal(t, int64(1<<30), cfg.Cache.MaxSizeBytes)
	assert.Equal(t, 10_000, cfg.Cache.MaxEntries)
	assert.True(t, cfg.Cache.RetryOnFailure)
	assert.True(t, cfg.Sandbox.Enabled)
	assert.Equal(t, "hermetic", cfg.Sandbox.Network)
	assert.Equal(t, 4, cfg.Executor.Workers)
	assert.Equal(t, "balanced", cfg.Planner.Objective)
}

func TestLoad_HonorsExplicitValues(t *testing.T) {
	resetViper(t)
	viper.Set("workspace.root", "/tmp/ws")
	viper.Set("executor.workers", 8)
	viper.Set("cache.retry_on_failure", false)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/ws", cfg.Workspace.Root)
	assert.Equal(t, 8, cfg.Executor.Workers)
	assert.False(t, cfg.Cache.RetryOnFailure)
}

func TestLoad_RejectsPathTraversalInWorkspaceRoot(t *testing.T) {
	resetViper(t)
	viper.Set("workspace.root", "../../etc")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsUnknownNetworkPolicy(t *testing.T) {
	resetViper(t)
	viper.Set("sandbox.network", "wide_open")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsNegativeSandboxLimits(t *testing.T) {
	resetViper(t)
	viper.Set("sandbox.memory_bytes", -1)

	_, err := Load()
	require.Error(t, err)
}

func TestValidatePath_RejectsDangerousCharacters(t *testing.T) {
	assert.Error(t, validatePath("./src; rm -rf /"))
	assert.Error(t, validatePath("../escape"))
	assert.NoError(t, validatePath("./ok/path"))
}
