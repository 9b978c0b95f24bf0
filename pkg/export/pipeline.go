package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"parchment-hq/parchment/pkg/archive"
	"parchment-hq/parchment/pkg/audit"
	"parchment-hq/parchment/pkg/blob"
	"parchment-hq/parchment/pkg/telemetry/metrics"
)

// Config contains configuration for the export pipeline.
type Config struct {
	// BatchSize is the page size for snapshot export record enumeration.
	BatchSize int

	// OutputPrefix is the blob key prefix finished containers are
	// uploaded under.
	OutputPrefix string
}

// DefaultConfig returns the default export configuration.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:    200,
		OutputPrefix: "exports",
	}
}

// Pipeline creates and runs export jobs. A targeted job packages the
// records selected by a hold, a case, or an explicit id list; a snapshot
// job packages every record archived at or before a cutoff fixed when the
// job was created. Both produce the same container layout and upload it
// through the blob gateway while it is being written.
type Pipeline struct {
	store     archive.Store
	manager   *archive.Manager
	blobs     blob.Gateway
	ledger    *audit.Ledger
	config    *Config
	collector *metrics.Collector
	logger    *slog.Logger
}

// NewPipeline creates an export pipeline.
func NewPipeline(store archive.Store, manager *archive.Manager, blobs blob.Gateway, ledger *audit.Ledger, config *Config) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 200
	}
	return &Pipeline{
		store:   store,
		manager: manager,
		blobs:   blobs,
		ledger:  ledger,
		config:  config,
		logger:  slog.Default().With("component", "export.pipeline"),
	}
}

// SetCollector wires in the metrics collector. All collector methods are
// nil-safe, so the pipeline works without one.
func (p *Pipeline) SetCollector(c *metrics.Collector) {
	p.collector = c
}

// CreateJobInput describes a targeted export request.
type CreateJobInput struct {
	Format   archive.ExportFormat
	Selector archive.ExportSelector
}

// CreateJob validates a targeted export request and persists it pending.
func (p *Pipeline) CreateJob(ctx context.Context, input *CreateJobInput, actor archive.Actor) (*archive.ExportJob, error) {
	if !input.Format.Valid() {
		return nil, archive.NewValidationError(fmt.Sprintf("unsupported export format %q", input.Format))
	}

	set := 0
	if input.Selector.HoldID != "" {
		set++
	}
	if input.Selector.CaseID != "" {
		set++
	}
	if len(input.Selector.RecordIDs) > 0 {
		set++
	}
	if set != 1 {
		return nil, archive.NewValidationError("export selector must set exactly one of holdId, caseId or recordIds")
	}

	caseID := input.Selector.CaseID
	if input.Selector.HoldID != "" {
		hold, err := p.store.GetHold(ctx, input.Selector.HoldID)
		if err != nil {
			return nil, err
		}
		caseID = hold.CaseID
	}
	if input.Selector.CaseID != "" {
		if _, err := p.store.GetCase(ctx, input.Selector.CaseID); err != nil {
			return nil, err
		}
	}

	job := &archive.ExportJob{
		ID:        uuid.New().String(),
		CaseID:    caseID,
		Format:    input.Format,
		Status:    archive.StatusPending,
		Selector:  input.Selector,
		CreatedBy: actor.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.store.InsertExportJob(ctx, job); err != nil {
		return nil, err
	}

	details := map[string]any{"format": string(job.Format)}
	if job.CaseID != "" {
		details["caseId"] = job.CaseID
	}
	if input.Selector.HoldID != "" {
		details["holdId"] = input.Selector.HoldID
	}
	if n := len(input.Selector.RecordIDs); n > 0 {
		details["recordIdCount"] = n
	}
	if _, err := p.ledger.Append(ctx, &audit.Input{
		ActorIdentifier: actor.ID,
		ActionType:      audit.ActionCreate,
		TargetType:      "ExportJob",
		TargetID:        job.ID,
		ActorIP:         actor.IP,
		Details:         details,
	}); err != nil {
		return nil, err
	}

	p.logger.Info("export job created", "job_id", job.ID, "format", job.Format)
	return job, nil
}

// CreateArchiveJob persists a pending full-corpus snapshot export. A zero
// snapshotAt fixes the cutoff at the current time.
func (p *Pipeline) CreateArchiveJob(ctx context.Context, format archive.ExportFormat, snapshotAt time.Time, actor archive.Actor) (*archive.ArchiveExportJob, error) {
	if !format.Valid() {
		return nil, archive.NewValidationError(fmt.Sprintf("unsupported export format %q", format))
	}
	if snapshotAt.IsZero() {
		snapshotAt = time.Now().UTC()
	}

	job := &archive.ArchiveExportJob{
		ID:         uuid.New().String(),
		Format:     format,
		Status:     archive.StatusPending,
		SnapshotAt: snapshotAt.UTC(),
		CreatedBy:  actor.ID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := p.store.InsertArchiveExportJob(ctx, job); err != nil {
		return nil, err
	}

	if _, err := p.ledger.Append(ctx, &audit.Input{
		ActorIdentifier: actor.ID,
		ActionType:      audit.ActionCreate,
		TargetType:      "ArchiveExportJob",
		TargetID:        job.ID,
		ActorIP:         actor.IP,
		Details: map[string]any{
			"format":     string(job.Format),
			"snapshotAt": job.SnapshotAt.Format(time.RFC3339),
		},
	}); err != nil {
		return nil, err
	}

	p.logger.Info("archive export job created",
		"job_id", job.ID, "format", job.Format, "snapshot_at", job.SnapshotAt)
	return job, nil
}

// Run executes a pending targeted export job to completion or failure.
func (p *Pipeline) Run(ctx context.Context, jobID string) (*archive.ExportJob, error) {
	job, err := p.store.GetExportJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != archive.StatusPending {
		return nil, archive.NewConflictError(fmt.Sprintf("export job %s is %s, not pending", jobID, job.Status))
	}

	job.Status = archive.StatusRunning
	if err := p.store.UpdateExportJob(ctx, job); err != nil {
		return nil, err
	}
	if err := p.auditTransition(ctx, "ExportJob", job.ID, map[string]any{"status": string(archive.StatusRunning)}); err != nil {
		return nil, err
	}

	start := time.Now()
	status := string(archive.StatusFailed)
	var records int64
	defer func() {
		p.collector.RecordExportJob("targeted", status, records, time.Since(start))
	}()

	ids, err := p.resolveSelector(ctx, &job.Selector)
	if err != nil {
		return p.failJob(ctx, job, err)
	}

	meta := &metadata{
		JobID:     job.ID,
		JobType:   "targeted",
		Format:    string(job.Format),
		CaseID:    job.CaseID,
		CreatedBy: job.CreatedBy,
		CreatedAt: job.CreatedAt,
		StartedAt: time.Now().UTC(),
	}
	key := p.containerKey("jobs", job.ID)

	emails, atts, err := p.buildAndUpload(ctx, key, job.Format, meta, p.batchByIDs(ids))
	if err != nil {
		return p.failJob(ctx, job, err)
	}

	now := time.Now().UTC()
	job.Status = archive.StatusCompleted
	job.FilePath = key
	job.RecordCount = emails
	job.AttachmentCount = atts
	job.CompletedAt = &now
	if err := p.store.UpdateExportJob(ctx, job); err != nil {
		return nil, err
	}
	if err := p.auditTransition(ctx, "ExportJob", job.ID, map[string]any{
		"status":          string(archive.StatusCompleted),
		"filePath":        key,
		"recordCount":     emails,
		"attachmentCount": atts,
	}); err != nil {
		return nil, err
	}

	status = string(archive.StatusCompleted)
	records = emails
	p.logger.Info("export job completed",
		"job_id", job.ID, "records", emails, "attachments", atts, "file_path", key)
	return job, nil
}

// RunArchive executes a pending snapshot export job to completion or
// failure.
func (p *Pipeline) RunArchive(ctx context.Context, jobID string) (*archive.ArchiveExportJob, error) {
	job, err := p.store.GetArchiveExportJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != archive.StatusPending {
		return nil, archive.NewConflictError(fmt.Sprintf("archive export job %s is %s, not pending", jobID, job.Status))
	}

	job.Status = archive.StatusRunning
	if err := p.store.UpdateArchiveExportJob(ctx, job); err != nil {
		return nil, err
	}
	if err := p.auditTransition(ctx, "ArchiveExportJob", job.ID, map[string]any{"status": string(archive.StatusRunning)}); err != nil {
		return nil, err
	}

	start := time.Now()
	status := string(archive.StatusFailed)
	var records int64
	defer func() {
		p.collector.RecordExportJob("snapshot", status, records, time.Since(start))
	}()

	snapshotAt := job.SnapshotAt
	meta := &metadata{
		JobID:      job.ID,
		JobType:    "snapshot",
		Format:     string(job.Format),
		SnapshotAt: &snapshotAt,
		CreatedBy:  job.CreatedBy,
		CreatedAt:  job.CreatedAt,
		StartedAt:  time.Now().UTC(),
	}
	key := p.containerKey("archive", job.ID)

	emails, atts, err := p.buildAndUpload(ctx, key, job.Format, meta, p.batchBySnapshot(snapshotAt))
	if err != nil {
		job.ErrorMessage = err.Error()
		job.Status = archive.StatusFailed
		now := time.Now().UTC()
		job.CompletedAt = &now
		if uerr := p.store.UpdateArchiveExportJob(ctx, job); uerr != nil {
			return nil, uerr
		}
		if aerr := p.auditTransition(ctx, "ArchiveExportJob", job.ID, map[string]any{
			"status": string(archive.StatusFailed),
			"error":  job.ErrorMessage,
		}); aerr != nil {
			return nil, aerr
		}
		p.logger.Error("archive export job failed", "job_id", job.ID, "error", err)
		return job, err
	}

	now := time.Now().UTC()
	job.Status = archive.StatusCompleted
	job.FilePath = key
	job.RecordCount = emails
	job.AttachmentCount = atts
	job.CompletedAt = &now
	if err := p.store.UpdateArchiveExportJob(ctx, job); err != nil {
		return nil, err
	}
	if err := p.auditTransition(ctx, "ArchiveExportJob", job.ID, map[string]any{
		"status":          string(archive.StatusCompleted),
		"filePath":        key,
		"recordCount":     emails,
		"attachmentCount": atts,
		"snapshotAt":      snapshotAt.Format(time.RFC3339),
	}); err != nil {
		return nil, err
	}

	status = string(archive.StatusCompleted)
	records = emails
	p.logger.Info("archive export job completed",
		"job_id", job.ID, "records", emails, "attachments", atts, "file_path", key)
	return job, nil
}

// GetJob returns a targeted export job.
func (p *Pipeline) GetJob(ctx context.Context, id string) (*archive.ExportJob, error) {
	return p.store.GetExportJob(ctx, id)
}

// GetArchiveJob returns a snapshot export job.
func (p *Pipeline) GetArchiveJob(ctx context.Context, id string) (*archive.ArchiveExportJob, error) {
	return p.store.GetArchiveExportJob(ctx, id)
}

func (p *Pipeline) containerKey(kind, jobID string) string {
	return fmt.Sprintf("%s/%s/%s.zip", p.config.OutputPrefix, kind, jobID)
}

func (p *Pipeline) failJob(ctx context.Context, job *archive.ExportJob, cause error) (*archive.ExportJob, error) {
	job.Status = archive.StatusFailed
	job.ErrorMessage = cause.Error()
	now := time.Now().UTC()
	job.CompletedAt = &now
	if err := p.store.UpdateExportJob(ctx, job); err != nil {
		return nil, err
	}
	if err := p.auditTransition(ctx, "ExportJob", job.ID, map[string]any{
		"status": string(archive.StatusFailed),
		"error":  job.ErrorMessage,
	}); err != nil {
		return nil, err
	}
	p.logger.Error("export job failed", "job_id", job.ID, "error", cause)
	return job, cause
}

func (p *Pipeline) auditTransition(ctx context.Context, targetType, targetID string, details map[string]any) error {
	_, err := p.ledger.Append(ctx, &audit.Input{
		ActorIdentifier: archive.SystemActor.ID,
		ActionType:      audit.ActionUpdate,
		TargetType:      targetType,
		TargetID:        targetID,
		ActorIP:         archive.SystemActor.IP,
		Details:         details,
	})
	return err
}

// resolveSelector expands a targeted selector into a deduplicated record
// id set.
func (p *Pipeline) resolveSelector(ctx context.Context, sel *archive.ExportSelector) ([]string, error) {
	switch {
	case sel.HoldID != "":
		if _, err := p.store.GetHold(ctx, sel.HoldID); err != nil {
			return nil, err
		}
		return p.store.ListActiveMemberRecordIDs(ctx, sel.HoldID)

	case sel.CaseID != "":
		holds, err := p.store.ListHoldsByCase(ctx, sel.CaseID)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool)
		var ids []string
		for _, h := range holds {
			members, err := p.store.ListActiveMemberRecordIDs(ctx, h.ID)
			if err != nil {
				return nil, err
			}
			for _, id := range members {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
		return ids, nil

	default:
		seen := make(map[string]bool)
		var ids []string
		for _, id := range sel.RecordIDs {
			if id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		return ids, nil
	}
}

// batchFunc returns the next batch of records in (ArchivedAt, ID) order,
// or an empty slice when the enumeration is exhausted.
type batchFunc func(ctx context.Context) ([]*archive.ArchivedRecord, error)

func (p *Pipeline) batchByIDs(ids []string) batchFunc {
	done := false
	return func(ctx context.Context) ([]*archive.ArchivedRecord, error) {
		if done {
			return nil, nil
		}
		done = true
		return p.store.ListRecordsByIDs(ctx, ids)
	}
}

func (p *Pipeline) batchBySnapshot(cutoff time.Time) batchFunc {
	offset := 0
	return func(ctx context.Context) ([]*archive.ArchivedRecord, error) {
		recs, err := p.store.ListRecordsArchivedBefore(ctx, cutoff, p.config.BatchSize, offset)
		if err != nil {
			return nil, err
		}
		offset += len(recs)
		return recs, nil
	}
}

// buildAndUpload writes the container and streams it to the blob gateway
// concurrently through a pipe, so the finished archive never has to fit
// in memory or on local disk as a whole.
func (p *Pipeline) buildAndUpload(ctx context.Context, key string, format archive.ExportFormat, meta *metadata, next batchFunc) (int64, int64, error) {
	pr, pw := io.Pipe()

	var emails, atts int64
	var buildErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		emails, atts, buildErr = p.writeContainer(ctx, pw, format, meta, next)
		pw.CloseWithError(buildErr)
	}()

	putErr := p.blobs.Put(ctx, key, pr, -1)
	// Unblock the producer if the upload died mid-stream.
	pr.CloseWithError(putErr)
	<-done

	if buildErr != nil {
		return 0, 0, buildErr
	}
	if putErr != nil {
		return 0, 0, archive.NewStorageError("blob", "put", putErr)
	}
	return emails, atts, nil
}

func (p *Pipeline) writeContainer(ctx context.Context, w io.Writer, format archive.ExportFormat, meta *metadata, next batchFunc) (int64, int64, error) {
	cw, err := newContainerWriter(w, format, meta)
	if err != nil {
		return 0, 0, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		batch, err := next(ctx)
		if err != nil {
			return 0, 0, err
		}
		if len(batch) == 0 {
			break
		}

		var attMap map[string][]*archive.Attachment
		if format == archive.FormatJSON {
			ids := make([]string, len(batch))
			for i, rec := range batch {
				ids[i] = rec.ID
			}
			attMap, err = p.store.ListAttachmentsForRecords(ctx, ids)
			if err != nil {
				return 0, 0, err
			}
		}

		for _, rec := range batch {
			if err := p.exportRecord(ctx, cw, rec, attMap[rec.ID]); err != nil {
				return 0, 0, fmt.Errorf("export record %s: %w", rec.ID, err)
			}
		}
	}

	return cw.Finish(time.Now().UTC())
}

// exportRecord streams one record's content into the container and
// appends its manifest entry. Content streams are opened one at a time.
func (p *Pipeline) exportRecord(ctx context.Context, cw *containerWriter, rec *archive.ArchivedRecord, attachments []*archive.Attachment) error {
	content, err := p.manager.OpenContent(ctx, rec)
	if err != nil {
		return err
	}
	path, err := cw.WriteRecord(rec, content)
	content.Close()
	if err != nil {
		return err
	}

	var refs []attachmentRef
	var attPaths []string
	for _, att := range attachments {
		attPath, err := cw.WriteAttachment(att, func() (io.ReadCloser, error) {
			return p.blobs.Get(ctx, att.StoragePath)
		})
		if err != nil {
			return err
		}
		refs = append(refs, attachmentRef{
			ID:        att.ID,
			Filename:  att.Filename,
			MimeType:  att.MimeType,
			SizeBytes: att.SizeBytes,
			Path:      attPath,
		})
		attPaths = append(attPaths, attPath)
	}

	return cw.AddManifestEntry(&manifestEntry{
		ID:              rec.ID,
		SourceID:        rec.SourceID,
		OwnerEmail:      rec.OwnerEmail,
		SenderEmail:     rec.SenderEmail,
		Subject:         rec.Subject,
		SentAt:          rec.SentAt.UTC(),
		ArchivedAt:      rec.ArchivedAt.UTC(),
		ContentHash:     rec.ContentHash,
		Path:            path,
		AttachmentPaths: attPaths,
	}, refs)
}
