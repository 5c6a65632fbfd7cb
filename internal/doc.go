// Package internal contains forge's core implementation packages.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the forge build tool.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - types: shared data model (Target, BuildNode, ActionID, ActionRecord, SandboxSpec, BuildPlan)
//   - hasher: two-tier content hashing (cheap metadata fingerprint + SHA-256 content hash)
//   - cache: content-addressed action cache with LRU eviction and lazy disk writes
//   - graph: dependency DAG with cycle detection, topological order, and ready-set scheduling
//   - dispatcher: language-handler registry routing targets to build handlers
//   - handler: built-in LanguageHandler implementations (shell, Go)
//   - sandbox: platform-specific hermetic execution (Linux namespaces, Darwin sandbox-exec, Windows Job Objects)
//   - determinism: environment pinning, output verification, and repair-action suggestions
//   - planner: cost/duration estimation and Pareto-optimal execution plan selection
//   - executor: condvar-scheduled build driver tying the graph, cache, dispatcher, and sandbox together
//   - telemetry: build-event pub/sub with OTel-shaped trace/span correlation
//   - workspace: minimal manifest loader assembling a BuildGraph from a FORGE.yml file
//   - query: the `deps()`/`rdeps()` dependency query language
//   - watch: debounced recursive file-system watching backing `build --watch`
//   - config: Viper-backed configuration for cache, sandbox, determinism, executor, and planner settings
//   - di: a small named-constructor dependency injection container
//   - logging: structured logging wrapping log/slog
//   - errors: the BuildError taxonomy and pretty-printing
//
// # Design Principles
//
//   - Concurrent safety with proper mutex usage and race protection
//   - Content-addressed memoization to avoid redundant work
//   - Hermetic, verifiable execution with explicit resource limits
//   - Testability with unit coverage alongside every package
//   - Observability via structured logging and lifecycle events
//
// # Inter-Package Communication
//
//   - workspace assembles a graph.BuildGraph from a manifest
//   - executor drives the graph, consulting cache before invoking dispatcher-routed handlers
//   - handlers optionally run through sandbox for hermetic isolation
//   - executor publishes lifecycle events to any interfaces.EventPublisher (telemetry.Publisher)
//   - planner consumes planner.Estimator history to recommend an execution strategy
//
// For detailed documentation, see the individual package documentation.
package internal
