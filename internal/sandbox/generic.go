//go:build !linux && !darwin && !windows

package sandbox

import "github.com/forgebuild/forge/internal/interfaces"

// New returns the no-isolation fallback backend for hosts with no
// dedicated sandbox implementation: the build proceeds with a
// downgraded isolation level rather than failing.
func New() interfaces.Sandbox {
	return unavailableSandbox{}
}
