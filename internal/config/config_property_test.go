//go:build property

package config

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/viper"
)

// TestExecutorWorkerCountProperty checks that any positive worker count
// set via Viper survives Load unchanged, and any non-positive count
// falls back to the default.
func TestExecutorWorkerCountProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("positive worker counts pass through, others default", prop.ForAll(
		func(workers int) bool {
			viper.Reset()
			viper.Set("executor.workers", workers)

			cfg, err := Load()
			if err != nil {
				return false
			}
			if workers > 0 {
				return cfg.Executor.Workers == workers
			}
			return cfg.Executor.Workers == 4
		},
		gen.IntRange(-10, 64),
	))

	properties.TestingRun(t)
}

// TestSandboxMemoryLimitProperty checks that non-negative memory limits
// always validate, and negative ones always fail.
func TestSandboxMemoryLimitProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("sandbox memory limit sign determines validity", prop.ForAll(
		func(bytes int64) bool {
			viper.Reset()
			viper.Set("sandbox.memory_bytes", bytes)

			_, err := Load()
			if bytes < 0 {
				return err != nil
			}
			return err == nil
		},
		gen.Int64Range(-1<<20, 1<<20),
	))

	properties.TestingRun(t)
}
