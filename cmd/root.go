// Package cmd provides the command-line interface for forge with
// layered configuration supporting multiple sources.
//
// Configuration System:
//
//	Configuration loads from multiple sources with clear precedence:
//	1. Command-line flags (--config, --log-level) - highest priority
//	2. FORGE_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (FORGE_EXECUTOR_WORKERS, etc.)
//	4. Configuration file (.forge.yml) - lowest priority
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "A content-addressed build engine for polyglot monorepos",
	Long: `forge constructs a dependency graph from declared build targets and
drives it to completion, minimizing redundant work via content-addressed
caching and maximizing throughput via parallel, hermetically sandboxed
execution.

Quick Start:
  forge build                     Build all targets
  forge build --watch             Rebuild on source changes
  forge graph                     Print the dependency graph
  forge query "deps(//app:srv)"   Query the dependency graph
  forge resume                    Continue from the last checkpoint`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .forge.yml, can also use FORGE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})
}

// initConfig wires Viper to read .forge.yml (or an explicit path) plus
// FORGE_-prefixed environment variables; CLI flags bind on top with
// the highest precedence.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("FORGE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".forge")
	}

	viper.SetEnvPrefix("FORGE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
