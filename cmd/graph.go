package cmd

import (
	"fmt"

	"github.com/forgebuild/forge/internal/query"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [target]",
	Short: "Print the dependency graph",
	Long: `graph prints every declared target in topological order along with its
direct dependencies. With a target argument, it prints only that target
and its transitive dependency closure.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGraph,
}

func init() {
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	g, err := a.graph()
	if err != nil {
		return fmt.Errorf("loading workspace: %w", err)
	}

	var ids []string
	if len(args) == 1 {
		ids, err = query.Eval(g, fmt.Sprintf("deps(%s)", args[0]))
		if err != nil {
			return err
		}
	} else {
		for _, n := range g.TopologicalOrder() {
			ids = append(ids, n.ID())
		}
	}

	out, err := query.Format(g, ids, "pretty")
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
