//go:build linux

package sandbox

import (
	"context"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/forgebuild/forge/internal/interfaces"
	"github.com/forgebuild/forge/internal/types"
)

// LinuxSandbox isolates a command using user/mount/net/pid/ipc/uts
// namespaces and applies memory and process-count limits via rlimits.
// cgroups are probed and reported in Capabilities but not used: no
// cgroup is created, and CPU time and I/O are not limited.
type LinuxSandbox struct {
	caps interfaces.Capabilities
}

// New returns the platform sandbox backend for the current build,
// probing kernel capabilities once at construction.
func New() interfaces.Sandbox {
	return &LinuxSandbox{caps: probeLinuxCapabilities()}
}

func probeLinuxCapabilities() interfaces.Capabilities {
	caps := interfaces.Capabilities{}
	if _, err := os.Stat("/proc/self/ns/user"); err == nil {
		caps.Namespaces = true
	}
	if _, err := os.Stat("/sys/fs/cgroup/cgroup.controllers"); err == nil {
		caps.Cgroups = true
	}
	return caps
}

func (s *LinuxSandbox) Capabilities() interfaces.Capabilities { return s.caps }

// Execute runs command under a fresh namespace set scoped by spec. When
// namespace support isn't available (probed at construction), it
// degrades to running unsandboxed rather than failing the build.
func (s *LinuxSandbox) Execute(ctx context.Context, spec types.SandboxSpec, command []string, workdir string) (interfaces.Result, error) {
	if err := validatePaths(spec); err != nil {
		return interfaces.Result{}, err
	}

	ctx, cancel := deadlineFor(ctx, spec)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = workdir
	cmd.Env = envSlice(spec.Env)

	if s.caps.Namespaces {
		cmd.SysProcAttr = &syscall.SysProcAttr{
			Cloneflags: namespaceFlags(spec),
		}
	}
	setupTermination(cmd)

	applyRlimits(spec.Limits)

	result, err := runResult(cmd, start)
	if err != nil {
		return result, err
	}
	return result, nil
}

// namespaceFlags selects which namespaces to unshare into: a hermetic
// build always gets a fresh net namespace (deny-by-default network);
// non-hermetic builds keep the host's network namespace so allowed
// hosts remain reachable without the sandbox also having to run a
// DNS/proxy shim.
func namespaceFlags(spec types.SandboxSpec) uintptr {
	flags := uintptr(unix.CLONE_NEWUSER | unix.CLONE_NEWNS | unix.CLONE_NEWPID | unix.CLONE_NEWIPC | unix.CLONE_NEWUTS)
	if spec.Network == types.NetworkHermetic {
		flags |= unix.CLONE_NEWNET
	}
	return flags
}

// applyRlimits sets process-wide resource limits for the duration of
// the sandboxed command. Linux has no per-child-only rlimit API
// without a helper process, so this is best-effort: it bounds this
// process's limits, which the forked child inherits.
func applyRlimits(limits types.ResourceLimits) {
	if limits.MemoryBytes > 0 {
		rlimit := &unix.Rlimit{Cur: uint64(limits.MemoryBytes), Max: uint64(limits.MemoryBytes)}
		_ = unix.Setrlimit(unix.RLIMIT_AS, rlimit)
	}
	if limits.MaxProcesses > 0 {
		rlimit := &unix.Rlimit{Cur: uint64(limits.MaxProcesses), Max: uint64(limits.MaxProcesses)}
		_ = unix.Setrlimit(unix.RLIMIT_NPROC, rlimit)
	}
}
