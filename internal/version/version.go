// Package version reports forge's build provenance: the semantic
// version, commit, and build time stamped via -ldflags for release
// builds, with a fallback to the module's embedded VCS metadata so
// plain `go install` builds still identify themselves.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Set at build time with
// -ldflags "-X github.com/forgebuild/forge/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown" // RFC3339
	BuildUser = "unknown"
)

// BuildInfo is the JSON shape `forge version --format=json` emits.
type BuildInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime time.Time `json:"build_time"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
	BuildUser string    `json:"build_user,omitempty"`
}

// GetBuildInfo collects the stamped (or VCS-derived) build facts.
func GetBuildInfo() *BuildInfo {
	return &BuildInfo{
		Version:   resolvedVersion(),
		GitCommit: resolvedCommit(),
		BuildTime: parseBuildTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		BuildUser: BuildUser,
	}
}

// GetShortVersion renders a one-line version for the default
// `forge version` output: "1.2.3 (abc1234)" for stamped builds,
// "dev-abc1234" when only VCS metadata is available, "dev" otherwise.
func GetShortVersion() string {
	v := resolvedVersion()
	commit := resolvedCommit()
	if commit == "unknown" || len(commit) < 7 {
		return v
	}
	if v == "dev" || strings.HasPrefix(v, "dev-") {
		return "dev-" + commit[:7]
	}
	return fmt.Sprintf("%s (%s)", v, commit[:7])
}

// GetDetailedVersion renders the multi-line `forge version --detailed`
// output, omitting fields that were never stamped.
func GetDetailedVersion() string {
	info := GetBuildInfo()

	lines := []string{"Version: " + info.Version}
	if info.GitCommit != "unknown" {
		lines = append(lines, "Commit: "+info.GitCommit)
	}
	if !info.BuildTime.IsZero() {
		lines = append(lines, "Built: "+info.BuildTime.Format(time.RFC3339))
	}
	lines = append(lines, "Go: "+info.GoVersion, "Platform: "+info.Platform)
	if info.BuildUser != "" && info.BuildUser != "unknown" {
		lines = append(lines, "User: "+info.BuildUser)
	}
	return strings.Join(lines, "\n")
}

// resolvedVersion prefers the ldflags stamp, then the module version,
// then a dev-<rev> tag derived from embedded VCS metadata.
func resolvedVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
		if rev := vcsSetting(info, "vcs.revision"); len(rev) >= 7 {
			return "dev-" + rev[:7]
		}
	}
	return "dev"
}

// resolvedCommit prefers the ldflags stamp, falling back to the
// embedded VCS revision.
func resolvedCommit() string {
	if GitCommit != "" && GitCommit != "unknown" {
		return GitCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if rev := vcsSetting(info, "vcs.revision"); rev != "" {
			return rev
		}
	}
	return "unknown"
}

func vcsSetting(info *debug.BuildInfo, key string) string {
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

// parseBuildTime accepts the RFC3339 stamp the build script writes;
// anything else (including the "unknown" default) yields a zero time,
// which the renderers treat as not-stamped.
func parseBuildTime(stamp string) time.Time {
	if t, err := time.Parse(time.RFC3339, stamp); err == nil {
		return t
	}
	return time.Time{}
}
