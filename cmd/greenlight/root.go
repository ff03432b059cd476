package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "greenlight",
	Short: "Greenlight - gating decisions from policies, test results and waivers",
	Long: `Greenlight decides whether software artifacts meet their gating policies.

It matches a subject (a build, update, compose or image) against configured
policies, fetches test results and waivers from remote evidence stores, and
aggregates per-rule verdicts into one pass/fail decision with a full
explanation.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
