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
	Use:   "parchment",
	Short: "Parchment - compliance email archival engine",
	Long: `Parchment is a compliance email archival engine.

It provides:
  - Immutable message archiving with content-addressed attachment storage
  - Legal holds with custodian and criteria scoping
  - Priority-ordered retention policy enforcement
  - Portable export containers (eml, mbox, json)
  - A hash-chained audit ledger covering every mutation`,
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
