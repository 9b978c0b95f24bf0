package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"parchment-hq/parchment/pkg/archive"
	"parchment-hq/parchment/pkg/cli"
	"parchment-hq/parchment/pkg/export"
)

var exportFlags struct {
	format    string
	holdID    string
	caseID    string
	recordIDs []string
	snapshot  string
	actor     string
	archive   bool
	output    string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export job operations",
}

var exportCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a targeted export job",
	Long: `Create a pending export job for one hold, one case, or an explicit
record list. Exactly one selector must be given.

Examples:
  # All active members of a hold, as raw RFC 5322 files
  parchment export create --format eml --hold hold-123

  # All holds under a case, as a single mbox
  parchment export create --format mbox --case case-9

  # Specific records, with inline content and attachments
  parchment export create --format json --records rec-1,rec-2`,
	RunE: runExportCreate,
}

var exportArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Create a whole-archive snapshot export job",
	Long: `Create a pending export job covering every record archived at or
before the snapshot time (default: now).

Examples:
  parchment export archive --format json
  parchment export archive --format mbox --snapshot-at 2026-06-30T00:00:00Z`,
	RunE: runExportArchive,
}

var exportRunCmd = &cobra.Command{
	Use:   "run <job-id>",
	Short: "Run a pending export job",
	Long: `Run a pending export job to completion. The container is streamed to
blob storage while it is built; the job ends completed or failed and
cannot be re-run.

Use --archive for jobs created with "parchment export archive".`,
	Args: cobra.ExactArgs(1),
	RunE: runExportRun,
}

var exportStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show an export job",
	Args:  cobra.ExactArgs(1),
	RunE:  runExportStatus,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportCreateCmd, exportArchiveCmd, exportRunCmd, exportStatusCmd)

	exportCmd.PersistentFlags().StringVar(&exportFlags.actor, "actor", "operator", "actor recorded in the audit ledger")
	exportCmd.PersistentFlags().StringVarP(&exportFlags.output, "output", "o", "text", "output format (text, json)")

	exportCreateCmd.Flags().StringVarP(&exportFlags.format, "format", "f", "eml", "container format (eml, mbox, json)")
	exportCreateCmd.Flags().StringVar(&exportFlags.holdID, "hold", "", "export active members of this hold")
	exportCreateCmd.Flags().StringVar(&exportFlags.caseID, "case", "", "export active members of all holds under this case")
	exportCreateCmd.Flags().StringSliceVar(&exportFlags.recordIDs, "records", nil, "export these record ids")

	exportArchiveCmd.Flags().StringVarP(&exportFlags.format, "format", "f", "eml", "container format (eml, mbox, json)")
	exportArchiveCmd.Flags().StringVar(&exportFlags.snapshot, "snapshot-at", "", "snapshot cutoff (RFC 3339, default now)")

	exportRunCmd.Flags().BoolVar(&exportFlags.archive, "archive", false, "the job is a whole-archive snapshot job")
	exportStatusCmd.Flags().BoolVar(&exportFlags.archive, "archive", false, "the job is a whole-archive snapshot job")
}

func exportActor() archive.Actor {
	return archive.Actor{ID: exportFlags.actor, IP: "cli"}
}

func exportPipeline() (context.Context, *export.Pipeline, func(), error) {
	cfg, err := setup("")
	if err != nil {
		return nil, nil, nil, err
	}
	ctx := cli.SetupSignalHandler()
	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return ctx, eng.pipeline, eng.Close, nil
}

func printJob(job any, text string) error {
	if exportFlags.output == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, job)
	}
	fmt.Println(text)
	return nil
}

func runExportCreate(cmd *cobra.Command, args []string) error {
	ctx, pipeline, closeEngine, err := exportPipeline()
	if err != nil {
		return err
	}
	defer closeEngine()

	job, err := pipeline.CreateJob(ctx, &export.CreateJobInput{
		Format: archive.ExportFormat(exportFlags.format),
		Selector: archive.ExportSelector{
			HoldID:    exportFlags.holdID,
			CaseID:    exportFlags.caseID,
			RecordIDs: exportFlags.recordIDs,
		},
	}, exportActor())
	if err != nil {
		return cli.NewCommandError("export create", err)
	}
	return printJob(job, fmt.Sprintf("✓ Export job %s created (%s, pending)", job.ID, job.Format))
}

func runExportArchive(cmd *cobra.Command, args []string) error {
	snapshotAt := time.Now().UTC()
	if exportFlags.snapshot != "" {
		parsed, err := time.Parse(time.RFC3339, exportFlags.snapshot)
		if err != nil {
			return cli.NewCommandError("export archive", fmt.Errorf("invalid --snapshot-at: %w", err))
		}
		snapshotAt = parsed
	}

	ctx, pipeline, closeEngine, err := exportPipeline()
	if err != nil {
		return err
	}
	defer closeEngine()

	job, err := pipeline.CreateArchiveJob(ctx, archive.ExportFormat(exportFlags.format), snapshotAt, exportActor())
	if err != nil {
		return cli.NewCommandError("export archive", err)
	}
	return printJob(job, fmt.Sprintf("✓ Archive export job %s created (%s, snapshot %s)",
		job.ID, job.Format, job.SnapshotAt.Format(time.RFC3339)))
}

func runExportRun(cmd *cobra.Command, args []string) error {
	ctx, pipeline, closeEngine, err := exportPipeline()
	if err != nil {
		return err
	}
	defer closeEngine()

	jobID := args[0]

	if exportFlags.archive {
		job, err := pipeline.RunArchive(ctx, jobID)
		if err != nil {
			return cli.NewCommandError("export run", err)
		}
		return printJob(job, fmt.Sprintf("✓ Exported %d records to %s", job.RecordCount, job.FilePath))
	}

	job, err := pipeline.Run(ctx, jobID)
	if err != nil {
		return cli.NewCommandError("export run", err)
	}
	return printJob(job, fmt.Sprintf("✓ Exported %d records (%d attachments) to %s",
		job.RecordCount, job.AttachmentCount, job.FilePath))
}

func runExportStatus(cmd *cobra.Command, args []string) error {
	ctx, pipeline, closeEngine, err := exportPipeline()
	if err != nil {
		return err
	}
	defer closeEngine()

	jobID := args[0]

	if exportFlags.archive {
		job, err := pipeline.GetArchiveJob(ctx, jobID)
		if err != nil {
			return cli.NewCommandError("export status", err)
		}
		return printJob(job, fmt.Sprintf("Job %s: %s (%s, %d records)", job.ID, job.Status, job.Format, job.RecordCount))
	}

	job, err := pipeline.GetJob(ctx, jobID)
	if err != nil {
		return cli.NewCommandError("export status", err)
	}
	return printJob(job, fmt.Sprintf("Job %s: %s (%s, %d records)", job.ID, job.Status, job.Format, job.RecordCount))
}
