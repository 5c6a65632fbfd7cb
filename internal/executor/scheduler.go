package executor

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/forgebuild/forge/internal/cache"
	"github.com/forgebuild/forge/internal/dispatcher"
	"github.com/forgebuild/forge/internal/errors"
	"github.com/forgebuild/forge/internal/graph"
	"github.com/forgebuild/forge/internal/hasher"
	"github.com/forgebuild/forge/internal/interfaces"
	"github.com/forgebuild/forge/internal/logging"
	"github.com/forgebuild/forge/internal/types"
)

// Config tunes one Executor run.
type Config struct {
	Workers        int
	FailFast       bool
	SandboxEnabled bool
	QueueBuffer    int
	// SandboxTemplate carries the configuration-level sandbox defaults
	// (resource limits, network policy, pinned environment) that
	// sandbox-aware handlers layer each target's own scope onto.
	SandboxTemplate types.SandboxSpec
}

// Summary is the outcome of one Run, one entry per node reached.
type Summary struct {
	NodeStatuses map[string]types.NodeStatus
	Failed       bool
}

// Executor is forge's event-driven build scheduler: a condvar-signaled
// ready-set loop feeding a worker pool, backed by the action cache,
// language dispatcher, and sandbox.
type Executor struct {
	graph      *graph.BuildGraph
	cache      *cache.ActionCache
	dispatcher *dispatcher.Dispatcher
	sandbox    interfaces.Sandbox
	hasher     *hasher.Hasher
	hashStore  *hasher.HashRecordStore
	publisher  interfaces.EventPublisher
	log        logging.Logger
	cfg        Config

	stateMu     sync.Mutex
	cond        *sync.Cond
	activeTasks int
	stopNewWork bool

	recordExec func(types.ExecutionRecord)
}

// New creates an Executor. publisher may be nil to disable telemetry.
func New(g *graph.BuildGraph, c *cache.ActionCache, d *dispatcher.Dispatcher, sb interfaces.Sandbox, h *hasher.Hasher, publisher interfaces.EventPublisher, log logging.Logger, cfg Config) *Executor {
	if log == nil {
		log = logging.Noop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.QueueBuffer <= 0 {
		cfg.QueueBuffer = 64
	}
	e := &Executor{
		graph:      g,
		cache:      c,
		dispatcher: d,
		sandbox:    sb,
		hasher:     h,
		hashStore:  hasher.NewHashRecordStore(),
		publisher:  publisher,
		log:        log.WithComponent("executor"),
		cfg:        cfg,
	}
	e.cond = sync.NewCond(&e.stateMu)
	return e
}

// SetExecutionRecorder installs a callback invoked with one
// ExecutionRecord per completed node, feeding the cost estimator and
// the persisted execution history. Must be called before Run.
func (e *Executor) SetExecutionRecorder(record func(types.ExecutionRecord)) {
	e.recordExec = record
}

// Run drives the graph to completion against workspaceRoot: ready
// nodes are marked Building and handed to the worker pool; the loop
// waits on the condvar whenever nothing is ready and work is still in
// flight.
func (e *Executor) Run(ctx context.Context, workspaceRoot string) (Summary, error) {
	queue := NewQueue(e.cfg.QueueBuffer)
	pool := NewPool(e.cfg.Workers)

	e.publish(types.BuildEvent{Kind: types.EventBuildStarted, Timestamp: time.Now()})
	e.warnIfSandboxDegraded(ctx)

	pool.Start(ctx, queue, func(nodeID string) {
		e.buildNode(ctx, nodeID, workspaceRoot)
		e.stateMu.Lock()
		e.activeTasks--
		e.cond.Broadcast()
		e.stateMu.Unlock()
	})
	defer pool.Stop()
	defer queue.Close()

	e.stateMu.Lock()
	for {
		if ctx.Err() != nil {
			e.stateMu.Unlock()
			return e.summary(), ctx.Err()
		}

		ready := e.graph.ReadySet()

		if len(ready) == 0 && e.activeTasks == 0 {
			break
		}
		if e.stopNewWork && e.activeTasks == 0 {
			break
		}
		if len(ready) == 0 || e.stopNewWork {
			e.cond.Wait()
			continue
		}

		for _, node := range ready {
			node.SetStatus(types.StatusBuilding)
			e.activeTasks++
		}
		e.stateMu.Unlock()

		for _, node := range ready {
			if err := queue.Enqueue(node.ID()); err != nil {
				e.log.Warn(ctx, err, "failed to enqueue ready node", "node", node.ID())
			}
		}

		e.stateMu.Lock()
	}
	e.stateMu.Unlock()

	e.publish(types.BuildEvent{Kind: types.EventBuildCompleted, Timestamp: time.Now()})

	summary := e.summary()
	if summary.Failed {
		return summary, fmt.Errorf("executor: build failed")
	}
	return summary, nil
}

func (e *Executor) summary() Summary {
	statuses := make(map[string]types.NodeStatus)
	failed := false
	for _, node := range e.graph.TopologicalOrder() {
		statuses[node.ID()] = node.Status()
		if node.Status() == types.StatusFailed {
			failed = true
		}
	}
	return Summary{NodeStatuses: statuses, Failed: failed}
}

// buildNode runs one node's cache-check / build / record lifecycle.
func (e *Executor) buildNode(ctx context.Context, nodeID, workspaceRoot string) {
	node, ok := e.graph.Node(nodeID)
	if !ok {
		return
	}
	target := node.Target
	start := time.Now()
	node.StartedAt = start.UnixNano()

	e.publish(types.BuildEvent{Kind: types.EventNodeStarted, TargetID: nodeID, Timestamp: start})

	handler, err := e.dispatcher.Handler(target.Language)
	if err != nil {
		e.finishNode(node, types.StatusFailed, err, false, start)
		return
	}

	inputsMeta, inputsHash, err := e.hashInputs(target.Sources)
	if err != nil {
		e.finishNode(node, types.StatusFailed, err, false, start)
		return
	}
	envHash := hashEnv(target.Env)

	actionID := types.ActionID{
		TargetID:   target.ID(),
		Kind:       actionKindFor(target),
		SubID:      "",
		InputsHash: inputsHash,
	}

	outputs, err := handler.Outputs(target, workspaceRoot)
	if err != nil {
		e.finishNode(node, types.StatusFailed, err, false, start)
		return
	}

	if lookup := e.cache.IsCached(actionID, target.Sources, envHash, outputsExistFunc); lookup.Cached {
		if lookup.PriorFailure {
			// negative cache entry: short-circuit to the same failure
			// rather than report success.
			err := errors.WrapBuild(fmt.Errorf("action previously failed and RetryOnFailure is disabled"), "", "build failed", target.ID())
			e.finishNode(node, types.StatusFailed, err, true, start)
			return
		}
		e.finishNode(node, types.StatusCached, nil, true, start)
		return
	}

	outputHash, buildErr := e.invokeHandler(ctx, handler, target, workspaceRoot)
	if buildErr != nil {
		buildErr = errors.WrapBuild(buildErr, "", "build failed", target.ID())
	}

	record := &types.ActionRecord{
		ActionID:        actionID,
		InputsMetadata:  inputsMeta,
		EnvMetadataHash: envHash,
		OutputPaths:     outputs,
		OutputHash:      outputHash,
		Success:         buildErr == nil,
		ByteSize:        outputByteSize(outputs),
	}
	e.cache.Record(record)

	if buildErr != nil {
		e.finishNode(node, types.StatusFailed, buildErr, false, start)
		return
	}
	e.finishNode(node, types.StatusSuccess, nil, false, start)
}

// invokeHandler runs the target's build through the sandbox when
// enabled and the handler supports it, otherwise calls the handler
// directly.
func (e *Executor) invokeHandler(ctx context.Context, handler interfaces.LanguageHandler, target *types.Target, workspaceRoot string) (string, error) {
	if e.cfg.SandboxEnabled && e.sandbox != nil {
		if sbHandler, ok := handler.(interfaces.SandboxedBuilder); ok {
			return sbHandler.BuildInSandbox(ctx, target, workspaceRoot, e.sandbox, e.cfg.SandboxTemplate)
		}
		// Handlers whose toolchain needs broader filesystem access than
		// a declared scope can express (the go handler reads the module
		// cache and GOROOT) run unsandboxed.
	}
	return handler.Build(ctx, target, workspaceRoot)
}

func (e *Executor) finishNode(node *graph.BuildNode, status types.NodeStatus, buildErr error, cacheHit bool, start time.Time) {
	node.SetStatus(status)
	node.FinishedAt = time.Now().UnixNano()

	if e.recordExec != nil {
		e.recordExec(types.ExecutionRecord{
			TargetID:  node.ID(),
			Duration:  time.Since(start),
			CacheHit:  cacheHit,
			Timestamp: time.Now(),
		})
	}

	e.publish(types.BuildEvent{
		Kind:      types.EventNodeCompleted,
		TargetID:  node.ID(),
		Status:    status,
		CacheHit:  cacheHit,
		Duration:  time.Since(start),
		Err:       buildErr,
		Timestamp: time.Now(),
	})

	if status != types.StatusFailed {
		return
	}
	e.log.Warn(context.Background(), buildErr, "node build failed", "node", node.ID())

	if e.cfg.FailFast {
		e.stateMu.Lock()
		e.stopNewWork = true
		e.cond.Broadcast()
		e.stateMu.Unlock()
	}
}

// warnIfSandboxDegraded surfaces a downgraded isolation level once per
// build: the build proceeds, but the configured logger records which
// isolation feature the host could not provide.
func (e *Executor) warnIfSandboxDegraded(ctx context.Context) {
	if !e.cfg.SandboxEnabled || e.sandbox == nil {
		return
	}
	if reason := sandboxDegradation(e.sandbox.Capabilities()); reason != "" {
		e.log.Warn(ctx, errors.NewSandboxUnavailable(reason), "sandbox isolation degraded, build proceeds")
	}
}

// sandboxDegradation names the isolation feature the probed
// capabilities lack on this platform, or "" when the platform backend
// has everything it needs.
func sandboxDegradation(caps interfaces.Capabilities) string {
	switch runtime.GOOS {
	case "linux":
		switch {
		case !caps.Namespaces:
			return "kernel namespaces unavailable, commands run unsandboxed"
		case !caps.Cgroups:
			return "cgroups v2 unavailable on this host"
		}
	case "darwin":
		if !caps.Namespaces {
			return "sandbox-exec not found, commands run unsandboxed"
		}
		if caps.SIPRestricted {
			return "System Integrity Protection is likely on, DYLD_INSERT_LIBRARIES is dropped for protected binaries"
		}
	case "windows":
		if !caps.JobObjects {
			return "job objects unavailable, commands run unsandboxed"
		}
	default:
		return "no sandbox backend for " + runtime.GOOS + ", commands run unsandboxed"
	}
	return ""
}

func (e *Executor) publish(event types.BuildEvent) {
	if e.publisher == nil {
		return
	}
	e.publisher.Publish(event)
}

func actionKindFor(target *types.Target) types.ActionKind {
	switch target.Kind {
	case types.KindTest:
		return types.ActionTest
	case types.KindCustom:
		return types.ActionCustom
	default:
		return types.ActionCompile
	}
}

// hashInputs builds the InputMetadata list and the combined content
// hash forming ActionID.InputsHash. Content hashes go through the
// per-file HashRecordStore, so a source whose metadata fingerprint is
// unchanged is never re-read, which is what keeps repeated builds in
// a watch session cheap.
func (e *Executor) hashInputs(sources []string) ([]types.InputMetadata, string, error) {
	meta := make([]types.InputMetadata, 0, len(sources))
	for _, src := range sources {
		metaHash, err := e.hasher.MetadataHash(src)
		if err != nil {
			return nil, "", fmt.Errorf("executor: hashing input %s: %w", src, err)
		}
		contentHash, err := e.hashStore.ContentHash(e.hasher, src)
		if err != nil {
			return nil, "", fmt.Errorf("executor: hashing input %s: %w", src, err)
		}
		meta = append(meta, types.InputMetadata{Path: src, MetadataHash: metaHash, ContentHash: contentHash})
	}

	inputsHash, err := hasher.FileSetHash(sources, func(path string) (string, error) {
		return e.hashStore.ContentHash(e.hasher, path)
	})
	if err != nil {
		return nil, "", err
	}
	return meta, inputsHash, nil
}

// outputByteSize sums the on-disk sizes of an action's outputs so the
// cache's size-based eviction has real numbers to work with. Outputs
// that are missing or unstattable count as zero.
func outputByteSize(paths []string) int64 {
	var total int64
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}
	return total
}

func outputsExistFunc(paths []string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// hashEnv produces a stable serialization of an env override map so
// EnvMetadataHash changes whenever any variable's key or value changes.
func hashEnv(env map[string]string) string {
	if len(env) == 0 {
		return "empty"
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(env[k])
		b.WriteByte(';')
	}
	return b.String()
}
