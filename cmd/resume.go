package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forgebuild/forge/internal/executor"
	"github.com/forgebuild/forge/internal/types"
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue a build from the last checkpoint",
	Long: `resume rebuilds the dependency graph, loads .builder-cache/checkpoint.json,
and restores it onto the fresh graph provided the graph's structural
fingerprint still matches. Nodes that already succeeded are skipped;
everything else (including the node that failed last time and its
dependents) re-attempts normally.`,
	RunE: runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	g, err := a.graph()
	if err != nil {
		return fmt.Errorf("loading workspace: %w", err)
	}

	cpPath := checkpointPath(a.cfg)
	if _, statErr := os.Stat(cpPath); statErr != nil {
		return fmt.Errorf("no checkpoint found at %s: %w", cpPath, statErr)
	}

	cp, err := executor.Load(cpPath)
	if err != nil {
		return fmt.Errorf("loading checkpoint: %w", err)
	}
	if !executor.Restore(cp, g) {
		fmt.Println("resume: graph has changed since the checkpoint was taken, rebuilding from scratch")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	ex, err := a.newExecutor()
	if err != nil {
		return err
	}

	summary, runErr := ex.Run(ctx, a.cfg.Workspace.Root)
	duration := time.Since(start)

	if ac, acerr := a.cache(); acerr == nil {
		if ferr := ac.Flush(); ferr != nil {
			a.log.Warn(ctx, ferr, "failed to flush action cache")
		}
	}

	if herr := a.history().Save(); herr != nil {
		a.log.Warn(ctx, herr, "failed to persist execution history")
	}

	failed := 0
	for _, status := range summary.NodeStatuses {
		if status == types.StatusFailed {
			failed++
		}
	}
	fmt.Printf("resume: %d targets, %d failed, took %v\n", len(summary.NodeStatuses), failed, duration.Round(time.Millisecond))

	if !summary.Failed {
		_ = os.Remove(cpPath)
		return nil
	}

	_ = os.MkdirAll(cacheDir(a.cfg), 0o755)
	if cerr := executor.Save(cpPath, g); cerr != nil {
		a.log.Warn(ctx, cerr, "failed to write checkpoint")
	}
	if runErr != nil {
		return runErr
	}
	return fmt.Errorf("resume failed: %d target(s) did not succeed", failed)
}
