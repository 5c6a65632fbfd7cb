// Package docs provides the top-level overview of forge, a polyglot
// build engine comparable in spirit to Bazel or Buck2 but smaller in
// scope.
//
// Forge consumes a set of declared build targets labeled by language
// and dependencies, constructs a directed acyclic graph, and drives
// that graph to completion while minimizing redundant work via
// content-addressed caching and maximizing throughput via an
// event-driven parallel scheduler.
//
// # Key Features
//
//   - Dependency Graph: cycle detection, topological ordering, ready-set scheduling
//   - Action Cache: two-tier content hashing with LRU eviction and lazy disk writes
//   - Hermetic Execution: namespace/sandbox-profile/job-object isolation per platform
//   - Determinism Enforcement: environment pinning and output verification
//   - Economic Planner: cost/time estimation and Pareto-optimal plan selection
//   - Telemetry: OTel-shaped build event correlation
//
// # Quick Start
//
//	// Build all targets declared in FORGE.yml
//	forge build
//
//	// Rebuild on source changes
//	forge build --watch
//
//	// Inspect the dependency graph
//	forge graph //app:server
//
//	// Query transitive dependencies
//	forge query "deps(//app:server)" --format=dot
//
// # Architecture
//
// Forge is organized into several core components:
//
//   - CLI Commands (cmd/): Cobra-based command interface
//   - Build Graph (internal/graph/): dependency DAG and scheduling primitives
//   - Action Cache (internal/cache/): content-addressed memoization
//   - Executor (internal/executor/): condvar-scheduled worker pool driving the graph
//   - Sandbox (internal/sandbox/): platform-specific hermetic execution
//   - Planner (internal/planner/): cost/time estimation and plan selection
//   - Telemetry (internal/telemetry/): build-event pub/sub
//   - Configuration (internal/config/): Viper-based configuration management
//
// # Configuration
//
// Forge supports configuration through multiple sources:
//
//   - Configuration file (.forge.yml)
//   - Environment variables (FORGE_*)
//   - Command-line flags
//
// Example configuration:
//
//	workspace:
//	  root: .
//
//	cache:
//	  max_size_bytes: 1073741824
//	  retry_on_failure: true
//
//	sandbox:
//	  enabled: true
//	  network: hermetic
//
//	executor:
//	  workers: 8
//	  fail_fast: false
//
//	planner:
//	  objective: balanced
//
// # Performance
//
// Forge is optimized for performance with:
//
//   - LRU caching with O(1) operations for action records
//   - Metadata-based file hash caching to reduce I/O
//   - Concurrent worker pools for parallel target execution
//   - Debounced file watching to prevent excessive rebuilds
//
// For more information, see the individual package documentation.
package docs
