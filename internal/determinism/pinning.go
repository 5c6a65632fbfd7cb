// Package determinism implements forge's determinism enforcer: pinning
// non-deterministic environment inputs, verifying two runs' outputs for
// reproducibility, and suggesting repairs when they diverge.
package determinism

import (
	"fmt"
	"runtime"
)

// Pinning fixes the point in time a hermetic build should observe
// (exported as SOURCE_DATE_EPOCH) and the value random-number sources
// should return (RANDOM_SEED).
type Pinning struct {
	Epoch int64
	Seed  int64
	// ShimPath, if set, is the path to a prebuilt dynamic interposer
	// library exporting fixed-value replacements for time/random/pid
	// syscalls. forge does not compile this shim itself; it is a small
	// C library built out-of-band and referenced here by path.
	ShimPath string
}

// Env returns the environment variable additions that pin an action's
// sandbox environment to this Pinning. Callers merge the result into
// types.SandboxSpec.Env.
func (p Pinning) Env() map[string]string {
	env := map[string]string{
		"SOURCE_DATE_EPOCH": fmt.Sprintf("%d", p.Epoch),
		"RANDOM_SEED":       fmt.Sprintf("%d", p.Seed),
	}
	if p.ShimPath == "" {
		return env
	}
	switch runtime.GOOS {
	case "darwin":
		env["DYLD_INSERT_LIBRARIES"] = p.ShimPath
		env["DYLD_FORCE_FLAT_NAMESPACE"] = "1"
	case "linux":
		env["LD_PRELOAD"] = p.ShimPath
	}
	return env
}

// CompilerKind identifies a toolchain family so pinning can add its
// specific determinism flags.
type CompilerKind string

const (
	CompilerGCCClang CompilerKind = "gcc_clang"
	CompilerGo       CompilerKind = "go"
	CompilerRustc    CompilerKind = "rustc"
)

// CompilerFlags returns tool-specific flags that make kind's output
// reproducible under this Pinning.
func (p Pinning) CompilerFlags(kind CompilerKind, workspaceRoot string) []string {
	switch kind {
	case CompilerGCCClang:
		return []string{
			fmt.Sprintf("-frandom-seed=%d", p.Seed),
			fmt.Sprintf("-ffile-prefix-map=%s=.", workspaceRoot),
		}
	case CompilerGo:
		return []string{"-trimpath"}
	case CompilerRustc:
		return []string{fmt.Sprintf("--remap-path-prefix=%s=.", workspaceRoot)}
	default:
		return nil
	}
}
