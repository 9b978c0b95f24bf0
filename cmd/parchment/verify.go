package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"parchment-hq/parchment/pkg/audit"
	auditstorage "parchment-hq/parchment/pkg/audit/storage"
	"parchment-hq/parchment/pkg/cli"
)

var verifyFlags struct {
	record bool
	actor  string
	output string
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit ledger hash chain",
	Long: `Verify the audit ledger hash chain from the genesis entry forward.

Every entry's hash is recomputed and checked against the stored hash and
the next entry's back-link. The command exits non-zero if the chain is
broken.

Examples:
  # Verify the chain
  parchment verify

  # Verify and append the outcome to the ledger itself
  parchment verify --record --actor auditor@example.com

  # Machine-readable output
  parchment verify --output json`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().BoolVar(&verifyFlags.record, "record", false, "append the verification outcome to the ledger")
	verifyCmd.Flags().StringVar(&verifyFlags.actor, "actor", "operator", "actor recorded with --record")
	verifyCmd.Flags().StringVarP(&verifyFlags.output, "output", "o", "text", "output format (text, json)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := setup("")
	if err != nil {
		return err
	}

	store, err := auditstorage.NewSQLiteStore(auditDBConfig(&cfg.Audit.Database))
	if err != nil {
		return cli.NewCommandError("verify", err)
	}
	defer store.Close()
	ledger := audit.NewLedger(store)

	ctx := cli.SetupSignalHandler()
	result, err := ledger.Verify(ctx)
	if err != nil {
		return cli.NewCommandError("verify", err)
	}

	if verifyFlags.record {
		if _, err := ledger.RecordVerification(ctx, verifyFlags.actor, result); err != nil {
			return cli.NewCommandError("verify", err)
		}
	}

	if verifyFlags.output == "json" {
		if err := cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, result); err != nil {
			return err
		}
	} else if result.OK {
		fmt.Printf("✓ Ledger intact (%d entries verified)\n", result.Checked)
	} else {
		fmt.Printf("✗ Ledger broken at entry %d: %s\n", result.FirstMismatchID, result.Reason)
	}

	if !result.OK {
		return cli.NewCommandError("verify", fmt.Errorf("ledger verification failed at entry %d: %s", result.FirstMismatchID, result.Reason))
	}
	return nil
}
