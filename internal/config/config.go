// Package config provides configuration management for forge using Viper
// for flexible configuration loading from files, environment variables,
// and command-line flags.
//
// The configuration system supports YAML files, environment variable
// overrides with a FORGE_ prefix, and validation. It manages the action
// cache, sandbox resource limits, determinism pinning, executor
// concurrency, and the cost planner's objective and budget.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/forgebuild/forge/internal/planner"
	"github.com/forgebuild/forge/internal/types"
)

// Config is forge's root configuration, unmarshaled from .forge.yml,
// FORGE_-prefixed environment variables, and CLI flags (highest
// priority), in that order of precedence (see cmd/root.go initConfig).
type Config struct {
	Workspace   WorkspaceConfig   `yaml:"workspace"`
	Cache       CacheConfig       `yaml:"cache"`
	Sandbox     SandboxConfig     `yaml:"sandbox"`
	Determinism DeterminismConfig `yaml:"determinism"`
	Executor    ExecutorConfig    `yaml:"executor"`
	Planner     PlannerConfig     `yaml:"planner"`
	TargetFiles []string          `yaml:"-"` // CLI arguments, not from config file
}

// WorkspaceConfig locates the build graph's root and its manifest files.
type WorkspaceConfig struct {
	Root          string   `yaml:"root"`
	ManifestGlobs []string `yaml:"manifest_globs" mapstructure:"manifest_globs"`
}

// CacheConfig configures the on-disk action cache (internal/cache).
type CacheConfig struct {
	Dir            string        `yaml:"dir"`
	MaxSizeBytes   int64         `yaml:"max_size_bytes" mapstructure:"max_size_bytes"`
	MaxEntries     int           `yaml:"max_entries" mapstructure:"max_entries"`
	MaxAge         time.Duration `yaml:"max_age" mapstructure:"max_age"`
	RetryOnFailure bool          `yaml:"retry_on_failure" mapstructure:"retry_on_failure"`
}

// SandboxConfig configures hermetic execution (internal/sandbox).
type SandboxConfig struct {
	Enabled      bool          `yaml:"enabled"`
	MemoryBytes  int64         `yaml:"memory_bytes" mapstructure:"memory_bytes"`
	CPUTime      time.Duration `yaml:"cpu_time" mapstructure:"cpu_time"`
	WallTime     time.Duration `yaml:"wall_time" mapstructure:"wall_time"`
	MaxProcesses int           `yaml:"max_processes" mapstructure:"max_processes"`
	Network      string        `yaml:"network"`
}

// DeterminismConfig configures build pinning (internal/determinism).
type DeterminismConfig struct {
	Enabled bool   `yaml:"enabled"`
	Epoch   int64  `yaml:"epoch"`
	Seed    int64  `yaml:"seed"`
	Shim    string `yaml:"shim"`
}

// ExecutorConfig configures the scheduler's worker pool.
type ExecutorConfig struct {
	Workers     int  `yaml:"workers"`
	FailFast    bool `yaml:"fail_fast" mapstructure:"fail_fast"`
	QueueBuffer int  `yaml:"queue_buffer" mapstructure:"queue_buffer"`
}

// PlannerConfig selects the cost planner's objective and budget.
type PlannerConfig struct {
	Objective string  `yaml:"objective"`
	BudgetUSD float64 `yaml:"budget_usd" mapstructure:"budget_usd"`
}

// Load reads configuration from Viper (already bound to the config file
// and environment by cmd/root.go's initConfig), applies defaults, and
// validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	applyLegacyEnvOverrides(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyLegacyEnvOverrides reads the cache/determinism tuning knobs that
// forge also honors under their own bare names (BUILDER_CACHE_MAX_SIZE,
// BUILDER_CACHE_MAX_ENTRIES, BUILDER_CACHE_MAX_AGE_DAYS,
// SOURCE_DATE_EPOCH, RANDOM_SEED) alongside the FORGE_-prefixed Viper
// bindings, since build tooling conventionally passes these unprefixed.
func applyLegacyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BUILDER_CACHE_MAX_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Cache.MaxSizeBytes = n
		}
	}
	if v := os.Getenv("BUILDER_CACHE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxEntries = n
		}
	}
	if v := os.Getenv("BUILDER_CACHE_MAX_AGE_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxAge = time.Duration(n) * 24 * time.Hour
		}
	}
	if v := os.Getenv("SOURCE_DATE_EPOCH"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Determinism.Epoch = n
			cfg.Determinism.Enabled = true
		}
	}
	if v := os.Getenv("RANDOM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Determinism.Seed = n
			cfg.Determinism.Enabled = true
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Workspace.Root == "" {
		cfg.Workspace.Root = "."
	}
	if len(cfg.Workspace.ManifestGlobs) == 0 {
		cfg.Workspace.ManifestGlobs = []string{"**/FORGE.yml", "**/FORGE.yaml"}
	}

	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = ".builder-cache/cache.bin"
	}
	if cfg.Cache.MaxSizeBytes == 0 {
		cfg.Cache.MaxSizeBytes = 1 << 30
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 10_000
	}
	if cfg.Cache.MaxAge == 0 {
		cfg.Cache.MaxAge = 30 * 24 * time.Hour
	}
	if !viper.IsSet("cache.retry_on_failure") {
		cfg.Cache.RetryOnFailure = true
	}

	if cfg.Sandbox.MemoryBytes == 0 {
		cfg.Sandbox.MemoryBytes = 2 << 30
	}
	if cfg.Sandbox.CPUTime == 0 {
		cfg.Sandbox.CPUTime = 5 * time.Minute
	}
	if cfg.Sandbox.WallTime == 0 {
		cfg.Sandbox.WallTime = 10 * time.Minute
	}
	if cfg.Sandbox.MaxProcesses == 0 {
		cfg.Sandbox.MaxProcesses = 64
	}
	if cfg.Sandbox.Network == "" {
		cfg.Sandbox.Network = string(types.NetworkHermetic)
	}
	if !viper.IsSet("sandbox.enabled") {
		cfg.Sandbox.Enabled = true
	}

	if cfg.Executor.Workers <= 0 {
		cfg.Executor.Workers = 4
	}
	if cfg.Executor.QueueBuffer == 0 {
		cfg.Executor.QueueBuffer = 64
	}

	if cfg.Planner.Objective == "" {
		cfg.Planner.Objective = string(planner.ObjectiveBalanced)
	}
}

func validateConfig(cfg *Config) error {
	if err := validatePath(cfg.Workspace.Root); err != nil {
		return fmt.Errorf("workspace config: %w", err)
	}
	if err := validateCacheConfig(&cfg.Cache); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}
	if err := validateSandboxConfig(&cfg.Sandbox); err != nil {
		return fmt.Errorf("sandbox config: %w", err)
	}
	return nil
}

func validateCacheConfig(cfg *CacheConfig) error {
	if cfg.Dir == "" {
		return nil
	}
	cleanPath := filepath.Clean(filepath.Dir(cfg.Dir))
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("cache.dir contains path traversal: %s", cfg.Dir)
	}
	return nil
}

func validateSandboxConfig(cfg *SandboxConfig) error {
	if cfg.MemoryBytes < 0 {
		return fmt.Errorf("sandbox.memory_bytes must be non-negative, got %d", cfg.MemoryBytes)
	}
	if cfg.MaxProcesses < 0 {
		return fmt.Errorf("sandbox.max_processes must be non-negative, got %d", cfg.MaxProcesses)
	}
	switch cfg.Network {
	case "", string(types.NetworkHermetic), string(types.NetworkAllowedHosts), string(types.NetworkAllowDNS):
	default:
		return fmt.Errorf("sandbox.network has unknown value: %s", cfg.Network)
	}
	return nil
}

// validatePath rejects path traversal and shell metacharacters.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
