package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/forgebuild/forge/internal/graph"
	"github.com/forgebuild/forge/internal/types"
	"github.com/spf13/cobra"
)

var testCmd = &cobra.Command{
	Use:   "test [target]",
	Short: "Build and run test targets",
	Long: `test builds every target of kind "test" (or a single named target),
then runs each resulting binary. Every test binary runs even after one
fails; if any of them fails, the command exits with status 1. A test
runner's own exit code is not passed through.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	g, err := a.graph()
	if err != nil {
		return fmt.Errorf("loading workspace: %w", err)
	}

	targets, err := testTargets(g, args)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		fmt.Println("no test targets found")
		return nil
	}

	ctx := context.Background()
	ex, err := a.newExecutor()
	if err != nil {
		return err
	}
	if _, err := ex.Run(ctx, a.cfg.Workspace.Root); err != nil {
		return fmt.Errorf("build failed before tests could run: %w", err)
	}
	if ac, acerr := a.cache(); acerr == nil {
		if ferr := ac.Flush(); ferr != nil {
			a.log.Warn(ctx, ferr, "failed to flush action cache")
		}
	}
	if herr := a.history().Save(); herr != nil {
		a.log.Warn(ctx, herr, "failed to persist execution history")
	}

	failed := false
	for _, node := range targets {
		outPath := node.Target.OutputPath
		if outPath == "" {
			outPath = filepath.Join("bin", node.Target.Name)
		}
		outPath = filepath.Join(a.cfg.Workspace.Root, outPath)

		fmt.Printf("=== RUN   %s\n", node.ID())
		run := exec.CommandContext(ctx, outPath)
		run.Stdout = os.Stdout
		run.Stderr = os.Stderr
		if err := run.Run(); err != nil {
			fmt.Printf("--- FAIL  %s: %v\n", node.ID(), err)
			failed = true
			continue
		}
		fmt.Printf("--- PASS  %s\n", node.ID())
	}

	if failed {
		return fmt.Errorf("one or more test targets failed")
	}
	return nil
}

func testTargets(g *graph.BuildGraph, args []string) ([]*graph.BuildNode, error) {
	if len(args) == 1 {
		node, ok := g.Node(args[0])
		if !ok {
			return nil, fmt.Errorf("unknown target: %s", args[0])
		}
		return []*graph.BuildNode{node}, nil
	}

	var out []*graph.BuildNode
	for _, node := range g.TopologicalOrder() {
		if node.Target.Kind == types.KindTest {
			out = append(out, node)
		}
	}
	return out, nil
}
