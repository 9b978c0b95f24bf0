package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"parchment-hq/parchment/pkg/cli"
)

var retentionFlags struct {
	dryRun bool
	output string
}

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Retention policy operations",
}

var retentionRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run retention enforcement once",
	Long: `Run one retention enforcement pass over all enabled policies.

Policies run in ascending priority order; records under an active legal
hold are never deleted. With --dry-run, policies are evaluated and the
run is audited but nothing is deleted.

Examples:
  # Enforce retention now
  parchment retention run

  # See what would be deleted
  parchment retention run --dry-run`,
	RunE: runRetention,
}

func init() {
	rootCmd.AddCommand(retentionCmd)
	retentionCmd.AddCommand(retentionRunCmd)

	retentionRunCmd.Flags().BoolVar(&retentionFlags.dryRun, "dry-run", false, "evaluate policies without deleting")
	retentionRunCmd.Flags().StringVarP(&retentionFlags.output, "output", "o", "text", "output format (text, json)")
}

func runRetention(cmd *cobra.Command, args []string) error {
	cfg, err := setup("")
	if err != nil {
		return err
	}
	if retentionFlags.dryRun {
		cfg.Retention.DryRun = true
	}

	ctx := cli.SetupSignalHandler()
	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("retention run", err)
	}
	defer eng.Close()

	result, err := eng.enforcer.Run(ctx)
	if err != nil {
		return cli.NewCommandError("retention run", err)
	}

	if retentionFlags.output == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, result)
	}

	verb := "deleted"
	if cfg.Retention.DryRun {
		verb = "would delete"
	}
	fmt.Printf("✓ %d policies processed: %s %d, notified %d, on hold %d, failed %d\n",
		result.ProcessedPolicies, verb, result.Deleted, result.Notified, result.SkippedOnHold, result.Failed)
	return nil
}
