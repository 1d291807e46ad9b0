// Package cmd is the CLI entry point (spec.md §6 "CLI entry point"),
// wired with cobra subcommands and viper configuration binding exactly as
// the teacher's internal/cmd/root.go does for benchflow.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	logger  *slog.Logger
)

// rootCmd is the base command for the WASM language-shootout harness.
var rootCmd = &cobra.Command{
	Use:   "wasmbench",
	Short: "Cross-language WASM benchmark harness",
	Long: `wasmbench compares the runtime performance of two WebAssembly code
generators -- one statically compiled with ownership discipline, one with a
compact garbage collector -- across a fixed set of computational workloads.

It orchestrates isolated measurement contexts per (task, language, scale)
cell, filters raw samples for statistical validity, and emits Welch t-tests
with effect sizes and Benjamini-Hochberg corrected verdicts.`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "run-specification file (default is ./wasmbench.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in the run-specification file and environment variables
// if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("wasmbench")
	}

	viper.SetEnvPrefix("WASMBENCH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// initLogger sets up the global logger based on verbosity.
func initLogger() {
	level := slog.LevelInfo
	if verbose || viper.GetBool("verbose") {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger = slog.New(handler)
	slog.SetDefault(logger)
}
