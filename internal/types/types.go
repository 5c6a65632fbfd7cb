// Package types provides the shared data model used throughout forge.
// This package contains plain data definitions to avoid circular
// dependencies between the graph, cache, executor, and planner packages.
package types

import "time"

// TargetKind classifies what a Target produces.
type TargetKind string

const (
	KindExecutable TargetKind = "executable"
	KindLibrary    TargetKind = "library"
	KindTest       TargetKind = "test"
	KindCustom     TargetKind = "custom"
)

// Target is a declarative build unit, created by the (external) workspace
// parser and mutated by the dispatcher to add implicit dependencies and
// inferred language before the graph is assembled. It is read-only once
// the executor starts.
type Target struct {
	// Workspace is the workspace-root component of the unique identifier.
	Workspace string
	// Path is the directory component of the unique identifier.
	Path string
	// Name is the target name within Path.
	Name string
	// Kind classifies the target.
	Kind TargetKind
	// Language is the language tag used to look up a LanguageHandler.
	Language string
	// Sources lists source files belonging to this target.
	Sources []string
	// Deps lists explicit dependency identifiers (workspace//path:name).
	Deps []string
	// Env holds environment variable overrides applied when building.
	Env map[string]string
	// Flags holds tool flags passed to the language handler.
	Flags []string
	// OutputPath is the optional declared output location.
	OutputPath string
	// Platform optionally pins a platform/toolchain hint.
	Platform string
	// Config is an opaque, language-specific configuration blob. The core
	// never introspects it; only the matching LanguageHandler does.
	Config map[string]interface{}
}

// ID returns the canonical workspace//path:name identifier.
func (t *Target) ID() string {
	return t.Workspace + "//" + t.Path + ":" + t.Name
}

// NodeStatus is the scheduler-visible lifecycle state of a BuildNode.
// Transitions are monotonic within a single build:
// Pending -> Building -> (Success | Failed | Cached | Skipped).
type NodeStatus int

const (
	StatusPending NodeStatus = iota
	StatusBuilding
	StatusSuccess
	StatusFailed
	StatusCached
	StatusSkipped
)

func (s NodeStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusBuilding:
		return "building"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusCached:
		return "cached"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status represents a finished node.
func (s NodeStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCached, StatusSkipped:
		return true
	default:
		return false
	}
}

// SuccessEquivalent reports whether dependents may proceed once a
// dependency reaches this status.
func (s NodeStatus) SuccessEquivalent() bool {
	return s == StatusSuccess || s == StatusCached || s == StatusSkipped
}

// ActionKind distinguishes the unit of work memoized by the action cache.
type ActionKind string

const (
	ActionCompile ActionKind = "compile"
	ActionLink    ActionKind = "link"
	ActionTest    ActionKind = "test"
	ActionCustom  ActionKind = "custom"
)

// ActionID is the memoization key for the action cache. Equal ActionIDs
// represent identical work.
type ActionID struct {
	TargetID   string
	Kind       ActionKind
	SubID      string
	InputsHash string
}

// String renders a stable textual key for map/disk storage.
func (a ActionID) String() string {
	return a.TargetID + "|" + string(a.Kind) + "|" + a.SubID + "|" + a.InputsHash
}

// InputMetadata is the cheap, stat-derived fingerprint for one input file.
type InputMetadata struct {
	Path         string
	MetadataHash uint64
	ContentHash  string // recorded for every input; the cache compares it only on metadata mismatch
}

// ActionRecord is the persisted memoization record for one ActionID.
type ActionRecord struct {
	ActionID        ActionID
	InputsMetadata  []InputMetadata
	EnvMetadataHash string
	OutputPaths     []string
	OutputHash      string
	ToolVersionHash string
	Success         bool
	LastAccess      time.Time
	CreatedAt       time.Time
	ByteSize        int64
}

// NetworkPolicy controls a sandboxed action's network access.
type NetworkPolicy string

const (
	NetworkHermetic     NetworkPolicy = "hermetic"
	NetworkAllowedHosts NetworkPolicy = "allowed_hosts"
	NetworkAllowDNS     NetworkPolicy = "allow_dns"
)

// ResourceLimits bounds a sandboxed action's resource consumption.
type ResourceLimits struct {
	MemoryBytes    int64
	CPUTime        time.Duration
	WallTime       time.Duration
	MaxProcesses   int
}

// SandboxSpec declares the hermetic scope of one action execution.
// Invariant: OutputPaths/TempPaths are disjoint from ReadOnlyInputs;
// Network defaults to deny when Network == NetworkHermetic.
type SandboxSpec struct {
	ReadOnlyInputs []string
	OutputPaths    []string
	TempPaths      []string
	Network        NetworkPolicy
	AllowedHosts   []string
	Env            map[string]string
	Limits         ResourceLimits
	Capabilities   []string
}

// ExecutionRecord is one historical sample fed to the cost estimator.
type ExecutionRecord struct {
	TargetID  string
	Duration  time.Duration
	CPUTime   time.Duration
	MemBytes  int64
	CacheHit  bool
	Timestamp time.Time
}

// Strategy is a candidate execution strategy considered by the planner.
type Strategy string

const (
	StrategyLocal       Strategy = "local"
	StrategyCached      Strategy = "cached"
	StrategyDistributed Strategy = "distributed"
	StrategyPremium     Strategy = "premium"
)

// StrategyConfig names one point in the planner's search space.
type StrategyConfig struct {
	Strategy Strategy
	Workers  int
}

// BuildPlan is the planner's immutable output, handed to the executor.
type BuildPlan struct {
	Config              StrategyConfig
	EstimatedTime       time.Duration
	EstimatedCost       float64
	CacheHitProbability float64
}

// EventKind enumerates the executor lifecycle events.
type EventKind string

const (
	EventBuildStarted  EventKind = "build_started"
	EventNodeStarted   EventKind = "node_started"
	EventNodeCompleted EventKind = "node_completed"
	EventBuildCompleted EventKind = "build_completed"
)

// VerificationStrategy selects how two runs' outputs are compared for
// determinism.
type VerificationStrategy string

const (
	VerifyContentHash VerificationStrategy = "content_hash"
	VerifyBitExact    VerificationStrategy = "bit_exact"
	VerifyFuzzy       VerificationStrategy = "fuzzy"
	VerifyStructural  VerificationStrategy = "structural"
)

// FileVerdict is one file's match status within a VerificationResult.
type FileVerdict struct {
	Path     string
	Matched  bool
	ReasonA  string // hash/summary from run A
	ReasonB  string // hash/summary from run B
}

// VerificationResult is the determinism verifier's output for one pair
// of runs.
type VerificationResult struct {
	Strategy        VerificationStrategy
	IsDeterministic bool
	TotalFiles      int
	MatchingFiles   int
	Violations      []FileVerdict
}

// RepairActionKind enumerates the shapes of a determinism fix.
type RepairActionKind string

const (
	RepairAddCompilerFlag RepairActionKind = "add_compiler_flag"
	RepairSetEnvVar       RepairActionKind = "set_env_var"
	RepairModifyScript    RepairActionKind = "modify_script"
)

// RepairAction is one suggested fix emitted by the repair engine,
// ordered by Priority (lower runs first).
type RepairAction struct {
	Kind       RepairActionKind
	Value      string
	Reference  string
	Priority   int
}

// BuildEvent is the payload delivered to telemetry subscribers.
type BuildEvent struct {
	Kind       EventKind
	TargetID   string
	Status     NodeStatus
	CacheHit   bool
	Duration   time.Duration
	Err        error
	Timestamp  time.Time
	TraceID    string
	SpanID     string
	ParentSpan string
}
