package cmd

import (
	"fmt"
	"os"

	"github.com/forgebuild/forge/internal/config"
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the action cache and build outputs",
	Long: `clean removes .builder-cache/ (the action cache, checkpoint, and
execution history) and bin/ (build outputs), a hard reset between runs.`,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	cacheRoot := cacheDir(cfg)
	for _, path := range []string{cacheRoot, "bin"} {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("removing %s: %w", path, err)
		}
		fmt.Printf("removed %s\n", path)
	}
	return nil
}
