//go:build windows

package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/forgebuild/forge/internal/interfaces"
	"github.com/forgebuild/forge/internal/types"
)

// WindowsSandbox scopes a command to a Job Object so the whole process
// tree is killed when the job handle closes, and so memory and
// process-count limits are enforced by the OS. Filesystem and network
// scoping are not enforced on Windows.
type WindowsSandbox struct {
	caps interfaces.Capabilities
}

// New returns the platform sandbox backend for the current build.
func New() interfaces.Sandbox {
	return &WindowsSandbox{caps: interfaces.Capabilities{JobObjects: true}}
}

func (s *WindowsSandbox) Capabilities() interfaces.Capabilities { return s.caps }

func (s *WindowsSandbox) Execute(ctx context.Context, spec types.SandboxSpec, command []string, workdir string) (interfaces.Result, error) {
	if err := validatePaths(spec); err != nil {
		return interfaces.Result{}, err
	}

	ctx, cancel := deadlineFor(ctx, spec)
	defer cancel()

	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return interfaces.Result{}, fmt.Errorf("sandbox: CreateJobObject: %w", err)
	}
	defer windows.CloseHandle(job)

	if err := configureJobLimits(job, spec.Limits); err != nil {
		return interfaces.Result{}, err
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = workdir
	cmd.Env = envSlice(spec.Env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return interfaces.Result{}, fmt.Errorf("sandbox: starting process: %w", err)
	}

	handle, err := windows.OpenProcess(windows.PROCESS_ALL_ACCESS, false, uint32(cmd.Process.Pid))
	if err == nil {
		_ = windows.AssignProcessToJobObject(job, handle)
		windows.CloseHandle(handle)
	}

	err = cmd.Wait()
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
		return result, fmt.Errorf("sandbox: waiting for process: %w", err)
	}
	return result, nil
}

// configureJobLimits applies memory and active-process-count limits to
// job via SetInformationJobObject.
func configureJobLimits(job windows.Handle, limits types.ResourceLimits) error {
	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{}
	if limits.MemoryBytes > 0 {
		info.JobMemoryLimit = uintptr(limits.MemoryBytes)
		info.BasicLimitInformation.LimitFlags |= windows.JOB_OBJECT_LIMIT_JOB_MEMORY
	}
	if limits.MaxProcesses > 0 {
		info.BasicLimitInformation.ActiveProcessLimit = uint32(limits.MaxProcesses)
		info.BasicLimitInformation.LimitFlags |= windows.JOB_OBJECT_LIMIT_ACTIVE_PROCESS
	}
	info.BasicLimitInformation.LimitFlags |= windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE

	_, err := windows.SetInformationJobObject(
		job,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	)
	if err != nil {
		return fmt.Errorf("sandbox: SetInformationJobObject: %w", err)
	}
	return nil
}
