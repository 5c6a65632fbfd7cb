package cmd

import (
	"fmt"

	"github.com/forgebuild/forge/internal/query"
	"github.com/spf13/cobra"
)

var queryFormat string

var queryCmd = &cobra.Command{
	Use:   "query expression",
	Short: "Evaluate a dependency query expression",
	Long: `query evaluates a small expression language over the build graph:

  //app:server              a bare target label
  deps(//app:server)        the target and its transitive dependencies
  rdeps(//lib:util)         the target and everything that (transitively) depends on it

Examples:
  forge query "deps(//app:server)"
  forge query "rdeps(//lib:util)" --format=json
  forge query "deps(//app:server)" --format=dot`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVar(&queryFormat, "format", "pretty", "Output format: pretty, list, json, dot")
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	g, err := a.graph()
	if err != nil {
		return fmt.Errorf("loading workspace: %w", err)
	}

	ids, err := query.Eval(g, args[0])
	if err != nil {
		return err
	}

	out, err := query.Format(g, ids, queryFormat)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
