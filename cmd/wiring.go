package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/forgebuild/forge/internal/cache"
	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/determinism"
	"github.com/forgebuild/forge/internal/di"
	"github.com/forgebuild/forge/internal/dispatcher"
	"github.com/forgebuild/forge/internal/executor"
	"github.com/forgebuild/forge/internal/graph"
	"github.com/forgebuild/forge/internal/handler"
	"github.com/forgebuild/forge/internal/hasher"
	"github.com/forgebuild/forge/internal/interfaces"
	"github.com/forgebuild/forge/internal/logging"
	"github.com/forgebuild/forge/internal/planner"
	"github.com/forgebuild/forge/internal/sandbox"
	"github.com/forgebuild/forge/internal/telemetry"
	"github.com/forgebuild/forge/internal/types"
	"github.com/forgebuild/forge/internal/workspace"
)

// app bundles the services one CLI invocation needs, wired through a
// di.Container from the loaded *config.Config.
type app struct {
	cfg       *config.Config
	container *di.Container
	log       logging.Logger
	pub       *telemetry.TracedPublisher
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logCfg := logging.DefaultConfig()
	switch strings.ToLower(viper.GetString("log-level")) {
	case "debug":
		logCfg.Level = logging.LevelDebug
	case "warn":
		logCfg.Level = logging.LevelWarn
	case "error":
		logCfg.Level = logging.LevelError
	}
	log := logging.New(logCfg)
	pub := telemetry.NewTraced()

	c := di.New()
	c.RegisterInstance("config", cfg)
	c.RegisterInstance("logging", log)
	c.RegisterInstance("telemetry", pub)

	c.RegisterSingleton("hasher", func(r *di.Container) (interface{}, error) {
		return hasher.New(0), nil
	})

	c.RegisterSingleton("cache", func(r *di.Container) (interface{}, error) {
		if dir := filepath.Dir(cfg.Cache.Dir); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating cache directory: %w", err)
			}
		}
		h := r.MustGet("hasher").(*hasher.Hasher)
		cacheCfg := cache.Config{
			MaxSizeBytes:   cfg.Cache.MaxSizeBytes,
			MaxEntries:     cfg.Cache.MaxEntries,
			MaxAge:         cfg.Cache.MaxAge,
			RetryOnFailure: cfg.Cache.RetryOnFailure,
		}
		return cache.Open(cfg.Cache.Dir, cacheCfg, h, log)
	})

	c.RegisterSingleton("dispatcher", func(r *di.Container) (interface{}, error) {
		h := r.MustGet("hasher").(*hasher.Hasher)
		d := dispatcher.New(nil, log)
		d.Register("go", handler.NewGoHandler(h))
		d.Register("shell", handler.NewShellHandler(h))
		return d, nil
	})

	// The graph singleton derives implicit deps before assembling the
	// graph: each target's handler analyzes its sources for imports,
	// which a resolver built over the whole workspace's targets maps
	// onto sibling target identifiers and adds as implicit deps,
	// exactly like the explicit `deps:` list but discovered rather
	// than declared.
	c.RegisterSingleton("graph", func(r *di.Container) (interface{}, error) {
		d := r.MustGet("dispatcher").(*dispatcher.Dispatcher)

		_, targets, err := workspace.ParseManifest(cfg.Workspace.Root)
		if err != nil {
			return nil, err
		}

		d.SetResolver(workspace.NewResolver(targets))
		for _, target := range targets {
			if err := d.ResolveImplicitDeps(target); err != nil {
				log.Warn(context.Background(), err, "implicit dependency resolution failed", "target", target.ID())
			}
		}

		return workspace.AssembleGraph(targets)
	})

	c.RegisterSingleton("sandbox", func(r *di.Container) (interface{}, error) {
		return sandbox.New(), nil
	})

	c.RegisterSingleton("planner", func(r *di.Container) (interface{}, error) {
		return planner.New(), nil
	})

	c.RegisterSingleton("history", func(r *di.Container) (interface{}, error) {
		h, err := planner.LoadHistory(executionHistoryPath(cfg), 0)
		if err != nil {
			log.Warn(context.Background(), err, "execution history unreadable, starting empty")
		}
		return h, nil
	})

	// The estimator starts each invocation warm by replaying the
	// persisted execution history, so the planner's duration and
	// cache-hit estimates reflect real prior runs rather than the
	// conservative fallback.
	c.RegisterSingleton("estimator", func(r *di.Container) (interface{}, error) {
		est := planner.NewEstimator()
		r.MustGet("history").(*planner.History).Replay(est)
		return est, nil
	})

	return &app{cfg: cfg, container: c, log: log, pub: pub}, nil
}

func (a *app) graph() (*graph.BuildGraph, error) {
	v, err := a.container.Get("graph")
	if err != nil {
		return nil, err
	}
	return v.(*graph.BuildGraph), nil
}

func (a *app) cache() (*cache.ActionCache, error) {
	v, err := a.container.Get("cache")
	if err != nil {
		return nil, err
	}
	return v.(*cache.ActionCache), nil
}

func (a *app) dispatcher() (*dispatcher.Dispatcher, error) {
	v, err := a.container.Get("dispatcher")
	if err != nil {
		return nil, err
	}
	return v.(*dispatcher.Dispatcher), nil
}

func (a *app) planner() (*planner.Planner, error) {
	v, err := a.container.Get("planner")
	if err != nil {
		return nil, err
	}
	return v.(*planner.Planner), nil
}

func (a *app) history() *planner.History {
	return a.container.MustGet("history").(*planner.History)
}

func (a *app) estimator() *planner.Estimator {
	return a.container.MustGet("estimator").(*planner.Estimator)
}

// newExecutor builds an Executor wired against the loaded workspace
// graph, action cache, language dispatcher, and platform sandbox.
func (a *app) newExecutor() (*executor.Executor, error) {
	g, err := a.graph()
	if err != nil {
		return nil, fmt.Errorf("loading workspace: %w", err)
	}
	ac, err := a.cache()
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	d, err := a.dispatcher()
	if err != nil {
		return nil, err
	}
	sb := a.container.MustGet("sandbox").(interfaces.Sandbox)
	h := a.container.MustGet("hasher").(*hasher.Hasher)

	a.applyDeterminismPinning(g)

	workers := a.planForWorkers(g, ac)

	cfg := executor.Config{
		Workers:         workers,
		FailFast:        a.cfg.Executor.FailFast,
		SandboxEnabled:  a.cfg.Sandbox.Enabled,
		QueueBuffer:     a.cfg.Executor.QueueBuffer,
		SandboxTemplate: a.sandboxTemplate(),
	}

	ex := executor.New(g, ac, d, sb, h, a.pub, a.log, cfg)

	history := a.history()
	est := a.estimator()
	ex.SetExecutionRecorder(func(rec types.ExecutionRecord) {
		history.Append(rec)
		est.Record(rec)
	})
	return ex, nil
}

// sandboxTemplate translates the loaded sandbox configuration into the
// base SandboxSpec that sandbox-aware handlers layer each target's own
// inputs, outputs, and env onto.
func (a *app) sandboxTemplate() types.SandboxSpec {
	return types.SandboxSpec{
		Network: types.NetworkPolicy(a.cfg.Sandbox.Network),
		Limits: types.ResourceLimits{
			MemoryBytes:  a.cfg.Sandbox.MemoryBytes,
			CPUTime:      a.cfg.Sandbox.CPUTime,
			WallTime:     a.cfg.Sandbox.WallTime,
			MaxProcesses: a.cfg.Sandbox.MaxProcesses,
		},
	}
}

// applyDeterminismPinning merges the pinned epoch/seed environment into
// every target's env overrides before the executor starts, without
// clobbering values a target declares itself. Targets are writable
// here: the executor has not started, and the graph singleton has
// already finished implicit-dependency resolution.
func (a *app) applyDeterminismPinning(g *graph.BuildGraph) {
	if !a.cfg.Determinism.Enabled {
		return
	}
	pin := determinism.Pinning{
		Epoch:    a.cfg.Determinism.Epoch,
		Seed:     a.cfg.Determinism.Seed,
		ShimPath: a.cfg.Determinism.Shim,
	}
	pinned := pin.Env()
	for _, node := range g.TopologicalOrder() {
		target := node.Target
		if target.Env == nil {
			target.Env = make(map[string]string, len(pinned))
		}
		for k, v := range pinned {
			if _, ok := target.Env[k]; !ok {
				target.Env[k] = v
			}
		}
	}
}

// planForWorkers asks the cost planner for a Pareto-optimal strategy
// given the estimator's per-target durations and cache hit history,
// and returns the worker count it selected. Falls back to the
// configured Executor.Workers if no plan is available.
func (a *app) planForWorkers(g *graph.BuildGraph, ac *cache.ActionCache) int {
	pl, err := a.planner()
	if err != nil {
		return a.cfg.Executor.Workers
	}

	est := a.estimator()
	var serial time.Duration
	var hitSum float64
	nodes := g.TopologicalOrder()
	for _, n := range nodes {
		d, hit := est.Estimate(n.ID())
		serial += d
		hitSum += hit
	}
	hitProbability := 0.0
	if len(nodes) > 0 {
		hitProbability = hitSum / float64(len(nodes))
	}
	if hitProbability == 0 {
		hitProbability = ac.Stats().HitRate()
	}

	pl.UpdateWorkload(planner.WorkloadEstimate{
		SerialDuration:      serial,
		SerialCPUHours:      serial.Hours(),
		CacheHitProbability: hitProbability,
	})

	plan, err := pl.Plan(a.cfg.Planner.Objective, a.cfg.Planner.BudgetUSD, 0)
	if err != nil {
		return a.cfg.Executor.Workers
	}
	a.log.Info(context.Background(), "planner selected strategy", "strategy", plan.Config.Strategy, "workers", plan.Config.Workers, "estimated_cost", plan.EstimatedCost, "estimated_time", plan.EstimatedTime)
	if plan.Config.Workers <= 0 {
		return a.cfg.Executor.Workers
	}
	return plan.Config.Workers
}
