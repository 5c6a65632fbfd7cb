//go:build darwin

package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/forgebuild/forge/internal/interfaces"
	"github.com/forgebuild/forge/internal/types"
)

// DarwinSandbox runs commands under sandbox-exec with a generated SBPL
// profile: filesystem and network scoping only, no enforced resource
// limits on macOS.
type DarwinSandbox struct {
	caps interfaces.Capabilities
}

// New returns the platform sandbox backend for the current build.
func New() interfaces.Sandbox {
	return &DarwinSandbox{caps: probeDarwinCapabilities()}
}

func probeDarwinCapabilities() interfaces.Capabilities {
	caps := interfaces.Capabilities{}
	if _, err := exec.LookPath("sandbox-exec"); err == nil {
		caps.Namespaces = true // fs/net scoping via SBPL, not OS namespaces
	}
	caps.SIPRestricted = sipLikelyEnabled()
	return caps
}

// sipLikelyEnabled reports whether System Integrity Protection is
// probably on, which silently drops DYLD_INSERT_LIBRARIES for
// SIP-protected binaries; callers surface this instead of reporting a
// falsely-deterministic run. When csrutil can't be queried, assume
// on: SIP is on by default on every shipping macOS release unless
// explicitly disabled.
func sipLikelyEnabled() bool {
	out, err := exec.Command("csrutil", "status").CombinedOutput()
	if err != nil {
		return true
	}
	return !strings.Contains(string(out), "disabled")
}

func (s *DarwinSandbox) Capabilities() interfaces.Capabilities { return s.caps }

func (s *DarwinSandbox) Execute(ctx context.Context, spec types.SandboxSpec, command []string, workdir string) (interfaces.Result, error) {
	if err := validatePaths(spec); err != nil {
		return interfaces.Result{}, err
	}

	ctx, cancel := deadlineFor(ctx, spec)
	defer cancel()

	if !s.caps.Namespaces {
		start := time.Now()
		cmd := exec.CommandContext(ctx, command[0], command[1:]...)
		cmd.Dir = workdir
		cmd.Env = envSlice(spec.Env)
		setupTermination(cmd)
		return runResult(cmd, start)
	}

	profile, err := writeSBPLProfile(spec, workdir)
	if err != nil {
		return interfaces.Result{}, err
	}
	defer os.Remove(profile)

	args := append([]string{"-f", profile}, command...)
	start := time.Now()
	cmd := exec.CommandContext(ctx, "sandbox-exec", args...)
	cmd.Dir = workdir
	cmd.Env = envSlice(spec.Env)
	setupTermination(cmd)
	return runResult(cmd, start)
}

// writeSBPLProfile generates a deny-by-default Scheme-like SBPL profile
// scoping file reads/writes to spec's declared paths and network per
// its NetworkPolicy.
func writeSBPLProfile(spec types.SandboxSpec, workdir string) (string, error) {
	var b strings.Builder
	b.WriteString("(version 1)\n(deny default)\n")
	b.WriteString("(allow process-fork process-exec)\n")

	for _, p := range spec.ReadOnlyInputs {
		fmt.Fprintf(&b, "(allow file-read* (subpath %q))\n", p)
	}
	for _, p := range append(append([]string{}, spec.OutputPaths...), spec.TempPaths...) {
		fmt.Fprintf(&b, "(allow file-read* file-write* (subpath %q))\n", p)
	}
	fmt.Fprintf(&b, "(allow file-read* file-write* (subpath %q))\n", workdir)

	switch spec.Network {
	case types.NetworkHermetic:
		b.WriteString("(deny network*)\n")
	case types.NetworkAllowedHosts:
		b.WriteString("(allow network* (remote ip \"*:*\"))\n") // host-level filtering happens above SBPL
	case types.NetworkAllowDNS:
		b.WriteString("(allow network-outbound (remote udp \"*:53\"))\n")
	}

	f, err := os.CreateTemp("", "forge-sbpl-*.sb")
	if err != nil {
		return "", fmt.Errorf("sandbox: creating SBPL profile: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	f.Close()
	return f.Name(), nil
}
