// Package interfaces defines forge's core capability abstractions,
// reducing coupling between the graph, cache, dispatcher, sandbox, and
// executor packages and enabling mocking in tests.
package interfaces

import (
	"context"
	"time"

	"github.com/forgebuild/forge/internal/types"
)

// LanguageHandler is the per-language build capability a Dispatcher
// routes targets to. Implementations live outside the
// core; the core only depends on this interface.
type LanguageHandler interface {
	// Build compiles/links target and returns the content hash of its
	// primary output.
	Build(ctx context.Context, target *types.Target, workspaceRoot string) (outputHash string, err error)

	// AnalyzeImports scans sources for import statements the dispatcher
	// can resolve into implicit dependencies.
	AnalyzeImports(sources []string) ([]Import, error)

	// Outputs returns the output paths target is expected to produce.
	Outputs(target *types.Target, workspaceRoot string) ([]string, error)

	// Clean removes target's build outputs.
	Clean(target *types.Target, workspaceRoot string) error
}

// Import is one resolved-or-unresolved import statement found by
// AnalyzeImports.
type Import struct {
	Path     string // as written in source, e.g. "github.com/foo/bar"
	FromFile string
}

// ImportResolver maps an Import to a target identifier, O(1) average.
type ImportResolver interface {
	Resolve(imp Import) (targetID string, ok bool)
}

// HashProvider is the two-tier hashing capability implemented by
// internal/hasher.Hasher.
type HashProvider interface {
	MetadataHash(path string) (uint64, error)
	ContentHash(path string) (string, error)
}

// CacheStats exposes action-cache performance counters.
// internal/cache.ActionCache does not satisfy it: its Stats method
// returns internal/cache.Stats, not this package's Stats.
type CacheStats interface {
	Stats() Stats
}

// Stats mirrors internal/cache.Stats at the interface boundary so
// callers needn't import internal/cache just to read counters.
type Stats struct {
	Entries   int
	SizeBytes int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// Sandbox executes a command under a declared SandboxSpec. Each
// platform backend (internal/sandbox linux, darwin, windows files)
// implements this.
type Sandbox interface {
	Execute(ctx context.Context, spec types.SandboxSpec, command []string, workdir string) (Result, error)
	// Capabilities reports which isolation features this backend could
	// confirm are available at process start.
	Capabilities() Capabilities
}

// Result is a completed sandboxed command's outcome.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Capabilities reports which sandbox isolation features are usable on
// the current host, probed once at process start.
type Capabilities struct {
	Namespaces   bool
	Cgroups      bool
	SIPRestricted bool // macOS only: DYLD_INSERT_LIBRARIES may be stripped
	JobObjects   bool // Windows only
}

// SandboxedBuilder is an optional upgrade a LanguageHandler can
// implement to route its build subprocess through a Sandbox. The
// executor type-asserts for it when sandboxing is enabled; handlers
// that don't implement it run unsandboxed. base carries the
// configuration-level defaults (resource limits, network policy,
// pinned environment); the handler layers the target's own inputs,
// outputs, and env on top.
type SandboxedBuilder interface {
	BuildInSandbox(ctx context.Context, target *types.Target, workspaceRoot string, sb Sandbox, base types.SandboxSpec) (outputHash string, err error)
}

// TaskQueue is the executor's work-handoff interface between the
// scheduler loop and the worker pool.
type TaskQueue interface {
	Enqueue(nodeID string) error
	Dequeue(ctx context.Context) (string, bool)
	Len() int
	Close()
}

// WorkerManager starts/stops a pool of build workers pulling from a
// TaskQueue.
type WorkerManager interface {
	Start(ctx context.Context, queue TaskQueue, handle func(nodeID string))
	Stop()
	SetWorkerCount(count int)
}

// EventPublisher is the telemetry lifecycle hook sink. The core never
// blocks on a subscriber.
type EventPublisher interface {
	Publish(event types.BuildEvent)
	Subscribe() <-chan types.BuildEvent
	Unsubscribe(ch <-chan types.BuildEvent)
}

// CostEstimator produces expected duration/cost for a target from
// historical ExecutionRecords.
type CostEstimator interface {
	Record(rec types.ExecutionRecord)
	Estimate(targetID string) (expectedDuration time.Duration, cacheHitProbability float64)
}

// Planner selects a BuildPlan given candidate strategies and an
// objective.
type Planner interface {
	Plan(objective string, budgetUSD float64, timeLimit time.Duration) (types.BuildPlan, error)
}
