package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forgebuild/forge/internal/executor"
	"github.com/forgebuild/forge/internal/query"
	"github.com/forgebuild/forge/internal/types"
	"github.com/forgebuild/forge/internal/watch"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build [target]",
	Short: "Build the workspace, or a single target, to completion",
	Long: `build drives the dependency graph to completion: targets with a
satisfied action-cache hit are skipped, everything else runs through the
language dispatcher under the configured sandbox.

A target argument is validated against the workspace graph but does not
yet narrow execution to a subgraph: forge still drives the whole graph
to completion, relying on the action cache to skip everything that is
already up to date.

Examples:
  forge build                        Build every declared target
  forge build //app:server           Validate a target exists, then build
  forge build --watch                Rebuild on source changes
  forge build --graph                Print the dependency graph before building`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

var (
	buildVerbose bool
	buildGraph   bool
	buildMode    string
	buildWatch   bool
	buildRemote  bool
)

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().BoolVarP(&buildVerbose, "verbose", "v", false, "Print per-target lifecycle events")
	buildCmd.Flags().BoolVar(&buildGraph, "graph", false, "Print the dependency graph before building")
	buildCmd.Flags().StringVar(&buildMode, "mode", "auto", "Output mode: auto, interactive, plain, verbose, quiet")
	buildCmd.Flags().BoolVar(&buildWatch, "watch", false, "Rebuild automatically on source changes")
	buildCmd.Flags().BoolVar(&buildRemote, "remote", false, "Permit remote cache/execution backends")
}

func runBuild(cmd *cobra.Command, args []string) error {
	switch buildMode {
	case "auto", "interactive", "plain", "verbose", "quiet":
	default:
		return fmt.Errorf("unsupported mode: %s (supported: auto, interactive, plain, verbose, quiet)", buildMode)
	}
	if buildMode == "verbose" {
		buildVerbose = true
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	if buildRemote {
		a.log.Warn(context.Background(), nil, "remote cache/execution backends are not configured; running locally")
	}

	if len(args) == 1 {
		g, gerr := a.graph()
		if gerr != nil {
			return fmt.Errorf("loading workspace: %w", gerr)
		}
		if _, ok := g.Node(args[0]); !ok {
			return fmt.Errorf("unknown target: %s", args[0])
		}
	}

	if buildGraph {
		if err := printGraph(a); err != nil {
			return fmt.Errorf("printing graph: %w", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if buildVerbose && buildMode != "quiet" {
		unsub := a.pub.Subscribe()
		defer a.pub.Unsubscribe(unsub)
		go func() {
			for ev := range unsub {
				printEvent(ev)
			}
		}()
	}

	if err := runOneBuild(ctx, a); err != nil {
		return err
	}

	if !buildWatch {
		return nil
	}

	return watchAndRebuild(ctx, a)
}

func runOneBuild(ctx context.Context, a *app) error {
	start := time.Now()

	ex, err := a.newExecutor()
	if err != nil {
		return err
	}

	summary, err := ex.Run(ctx, a.cfg.Workspace.Root)
	duration := time.Since(start)

	if ac, acerr := a.cache(); acerr == nil {
		if ferr := ac.Flush(); ferr != nil {
			a.log.Warn(ctx, ferr, "failed to flush action cache")
		}
	}

	if herr := a.history().Save(); herr != nil {
		a.log.Warn(ctx, herr, "failed to persist execution history")
	}

	if g, gerr := a.graph(); gerr == nil {
		if !summary.Failed {
			_ = os.Remove(checkpointPath(a.cfg))
		} else {
			_ = os.MkdirAll(cacheDir(a.cfg), 0o755)
			if cerr := executor.Save(checkpointPath(a.cfg), g); cerr != nil {
				a.log.Warn(ctx, cerr, "failed to write checkpoint")
			}
		}
	}

	failed := 0
	cached := 0
	for _, status := range summary.NodeStatuses {
		switch status {
		case types.StatusFailed:
			failed++
		case types.StatusCached:
			cached++
		}
	}

	if buildMode != "quiet" {
		fmt.Printf("build: %d targets, %d cached, %d failed, took %v\n",
			len(summary.NodeStatuses), cached, failed, duration.Round(time.Millisecond))
	}

	if err != nil {
		return err
	}
	if summary.Failed {
		return fmt.Errorf("build failed: %d target(s) did not succeed", failed)
	}
	return nil
}

func watchAndRebuild(ctx context.Context, a *app) error {
	w, err := watch.New(300 * time.Millisecond)
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Stop()

	if err := w.AddRecursive(a.cfg.Workspace.Root); err != nil {
		return fmt.Errorf("watching %s: %w", a.cfg.Workspace.Root, err)
	}

	w.AddHandler(func(events []watch.ChangeEvent) error {
		fmt.Printf("watch: %d change(s) detected, rebuilding\n", len(events))
		if g, gerr := a.graph(); gerr == nil {
			// Terminal statuses persist on the graph singleton; reset so
			// the rebuild re-evaluates every node against the cache.
			g.ResetStatuses()
		}
		return runOneBuild(ctx, a)
	})

	w.Start(ctx)
	<-ctx.Done()
	return nil
}

func printGraph(a *app) error {
	g, err := a.graph()
	if err != nil {
		return err
	}
	ids := make([]string, 0, g.Len())
	for _, n := range g.TopologicalOrder() {
		ids = append(ids, n.ID())
	}
	out, err := query.Format(g, ids, "pretty")
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func printEvent(ev types.BuildEvent) {
	switch {
	case ev.Err != nil:
		fmt.Printf("[%s] %s FAILED: %v\n", ev.Kind, ev.TargetID, ev.Err)
	case ev.CacheHit:
		fmt.Printf("[%s] %s (cached)\n", ev.Kind, ev.TargetID)
	default:
		fmt.Printf("[%s] %s %v\n", ev.Kind, ev.TargetID, ev.Duration.Round(time.Millisecond))
	}
}
