package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"parchment-hq/parchment/pkg/archive"
)

// MemoryStore implements archive.Store with in-memory maps. It mirrors the
// SQLite backend's semantics closely enough to back the engine tests and
// ephemeral deployments; nothing survives a restart.
type MemoryStore struct {
	mu sync.RWMutex

	records     map[string]*archive.ArchivedRecord
	attachments map[string]*archive.Attachment
	// links maps record id to the set of attachment ids.
	links map[string]map[string]bool

	holds       map[string]*archive.LegalHold
	memberships map[string]map[string]*archive.HoldMembership // holdID -> recordID -> row

	cases      map[string]*archive.Case
	custodians map[string]*archive.Custodian
	notices    map[string]*archive.HoldNotice
	policies   map[string]*archive.RetentionPolicy

	exportJobs        map[string]*archive.ExportJob
	archiveExportJobs map[string]*archive.ArchiveExportJob
}

// NewMemoryStore creates an empty in-memory archive store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:           make(map[string]*archive.ArchivedRecord),
		attachments:       make(map[string]*archive.Attachment),
		links:             make(map[string]map[string]bool),
		holds:             make(map[string]*archive.LegalHold),
		memberships:       make(map[string]map[string]*archive.HoldMembership),
		cases:             make(map[string]*archive.Case),
		custodians:        make(map[string]*archive.Custodian),
		notices:           make(map[string]*archive.HoldNotice),
		policies:          make(map[string]*archive.RetentionPolicy),
		exportJobs:        make(map[string]*archive.ExportJob),
		archiveExportJobs: make(map[string]*archive.ArchiveExportJob),
	}
}

// ---- records ----

// InsertRecord persists a newly archived record.
func (s *MemoryStore) InsertRecord(ctx context.Context, rec *archive.ArchivedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *rec
	s.records[rec.ID] = &copied
	return nil
}

// GetRecord returns one record, or a NotFoundError.
func (s *MemoryStore) GetRecord(ctx context.Context, id string) (*archive.ArchivedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, archive.NewNotFoundError("archived record", id)
	}
	copied := *rec
	return &copied, nil
}

// ListRecordsByIDs returns the records for the given ids, ordered by
// (ArchivedAt, ID).
func (s *MemoryStore) ListRecordsByIDs(ctx context.Context, ids []string) ([]*archive.ArchivedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := []*archive.ArchivedRecord{}
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			copied := *rec
			records = append(records, &copied)
		}
	}
	sortRecords(records)
	return records, nil
}

// StreamRecords streams the whole corpus ordered by (ArchivedAt, ID).
func (s *MemoryStore) StreamRecords(ctx context.Context) (<-chan *archive.ArchivedRecord, <-chan error, error) {
	s.mu.RLock()
	snapshot := make([]*archive.ArchivedRecord, 0, len(s.records))
	for _, rec := range s.records {
		copied := *rec
		snapshot = append(snapshot, &copied)
	}
	s.mu.RUnlock()
	sortRecords(snapshot)

	recordsCh := make(chan *archive.ArchivedRecord, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(recordsCh)
		defer close(errCh)

		for _, rec := range snapshot {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case recordsCh <- rec:
			}
		}
	}()

	return recordsCh, errCh, nil
}

// ListRecordsArchivedBefore pages through records with ArchivedAt <=
// cutoff, ordered by (ArchivedAt, ID).
func (s *MemoryStore) ListRecordsArchivedBefore(ctx context.Context, cutoff time.Time, limit, offset int) ([]*archive.ArchivedRecord, error) {
	s.mu.RLock()
	matched := []*archive.ArchivedRecord{}
	for _, rec := range s.records {
		if !rec.ArchivedAt.After(cutoff) {
			copied := *rec
			matched = append(matched, &copied)
		}
	}
	s.mu.RUnlock()
	sortRecords(matched)

	if offset >= len(matched) {
		return []*archive.ArchivedRecord{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// SetHoldFlag sets IsOnHold for every given record id.
func (s *MemoryStore) SetHoldFlag(ctx context.Context, ids []string, onHold bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			rec.IsOnHold = onHold
		}
	}
	return nil
}

// DeleteRecord removes a record row.
func (s *MemoryStore) DeleteRecord(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return nil
}

// CountRecords returns the total number of archived records.
func (s *MemoryStore) CountRecords(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// ---- attachments ----

// InsertAttachment persists an attachment row.
func (s *MemoryStore) InsertAttachment(ctx context.Context, att *archive.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.attachments[att.ID]; exists {
		return nil
	}
	copied := *att
	s.attachments[att.ID] = &copied
	return nil
}

// GetAttachmentByHash returns the attachment with the given content hash,
// or nil.
func (s *MemoryStore) GetAttachmentByHash(ctx context.Context, contentHash string) (*archive.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, att := range s.attachments {
		if att.ContentHash == contentHash {
			copied := *att
			return &copied, nil
		}
	}
	return nil, nil
}

// LinkAttachment links an attachment to a record.
func (s *MemoryStore) LinkAttachment(ctx context.Context, recordID, attachmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.links[recordID] == nil {
		s.links[recordID] = make(map[string]bool)
	}
	s.links[recordID][attachmentID] = true
	return nil
}

// ListAttachmentsForRecords returns attachments keyed by record id.
func (s *MemoryStore) ListAttachmentsForRecords(ctx context.Context, recordIDs []string) (map[string][]*archive.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]*archive.Attachment)
	for _, recordID := range recordIDs {
		for attachmentID := range s.links[recordID] {
			if att, ok := s.attachments[attachmentID]; ok {
				copied := *att
				result[recordID] = append(result[recordID], &copied)
			}
		}
		sort.Slice(result[recordID], func(i, j int) bool {
			return result[recordID][i].Filename < result[recordID][j].Filename
		})
	}
	return result, nil
}

// UnlinkAttachment removes the (record, attachment) link.
func (s *MemoryStore) UnlinkAttachment(ctx context.Context, recordID, attachmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.links[recordID], attachmentID)
	return nil
}

// CountAttachmentLinks returns how many records still reference the
// attachment.
func (s *MemoryStore) CountAttachmentLinks(ctx context.Context, attachmentID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, set := range s.links {
		if set[attachmentID] {
			count++
		}
	}
	return count, nil
}

// DeleteAttachment removes an orphaned attachment row.
func (s *MemoryStore) DeleteAttachment(ctx context.Context, attachmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.attachments, attachmentID)
	return nil
}

// ---- legal holds ----

// InsertHold persists a legal hold.
func (s *MemoryStore) InsertHold(ctx context.Context, hold *archive.LegalHold) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *hold
	s.holds[hold.ID] = &copied
	return nil
}

// GetHold returns one hold, or a NotFoundError.
func (s *MemoryStore) GetHold(ctx context.Context, id string) (*archive.LegalHold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hold, ok := s.holds[id]
	if !ok {
		return nil, archive.NewNotFoundError("legal hold", id)
	}
	copied := *hold
	return &copied, nil
}

// UpdateHold rewrites a hold row.
func (s *MemoryStore) UpdateHold(ctx context.Context, hold *archive.LegalHold) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.holds[hold.ID]; !ok {
		return archive.NewNotFoundError("legal hold", hold.ID)
	}
	copied := *hold
	s.holds[hold.ID] = &copied
	return nil
}

// ListHolds returns every hold, newest first.
func (s *MemoryStore) ListHolds(ctx context.Context) ([]*archive.LegalHold, error) {
	return s.filterHolds(func(h *archive.LegalHold) bool { return true }), nil
}

// ListActiveHolds returns holds that have not been released.
func (s *MemoryStore) ListActiveHolds(ctx context.Context) ([]*archive.LegalHold, error) {
	return s.filterHolds(func(h *archive.LegalHold) bool { return !h.Released() }), nil
}

// ListHoldsByCase returns the holds of one case, newest first.
func (s *MemoryStore) ListHoldsByCase(ctx context.Context, caseID string) ([]*archive.LegalHold, error) {
	return s.filterHolds(func(h *archive.LegalHold) bool { return h.CaseID == caseID }), nil
}

func (s *MemoryStore) filterHolds(keep func(*archive.LegalHold) bool) []*archive.LegalHold {
	s.mu.RLock()
	defer s.mu.RUnlock()

	holds := []*archive.LegalHold{}
	for _, hold := range s.holds {
		if keep(hold) {
			copied := *hold
			holds = append(holds, &copied)
		}
	}
	sort.Slice(holds, func(i, j int) bool {
		if !holds[i].AppliedAt.Equal(holds[j].AppliedAt) {
			return holds[i].AppliedAt.After(holds[j].AppliedAt)
		}
		return holds[i].ID < holds[j].ID
	})
	return holds
}

// ---- hold memberships ----

// UpsertMemberships inserts missing (hold, record) rows and reactivates
// soft-removed ones.
func (s *MemoryStore) UpsertMemberships(ctx context.Context, holdID string, recordIDs []string, matchedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.memberships[holdID] == nil {
		s.memberships[holdID] = make(map[string]*archive.HoldMembership)
	}
	now := time.Now().UTC()
	for _, recordID := range recordIDs {
		s.memberships[holdID][recordID] = &archive.HoldMembership{
			HoldID:    holdID,
			RecordID:  recordID,
			MatchedAt: now,
			MatchedBy: matchedBy,
		}
	}
	return nil
}

// UpsertMembershipsForRecord is the per-record variant used when a new
// record matches several holds at once.
func (s *MemoryStore) UpsertMembershipsForRecord(ctx context.Context, holdIDs []string, recordID, matchedBy string) error {
	for _, holdID := range holdIDs {
		if err := s.UpsertMemberships(ctx, holdID, []string{recordID}, matchedBy); err != nil {
			return err
		}
	}
	return nil
}

// MarkMembershipsRemoved soft-removes the active memberships of the hold
// for the given record ids.
func (s *MemoryStore) MarkMembershipsRemoved(ctx context.Context, holdID string, recordIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, recordID := range recordIDs {
		if m, ok := s.memberships[holdID][recordID]; ok && m.RemovedAt == nil {
			t := now
			m.RemovedAt = &t
		}
	}
	return nil
}

// ListMemberships returns all membership rows of a hold.
func (s *MemoryStore) ListMemberships(ctx context.Context, holdID string) ([]*archive.HoldMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	memberships := []*archive.HoldMembership{}
	for _, m := range s.memberships[holdID] {
		copied := *m
		memberships = append(memberships, &copied)
	}
	sort.Slice(memberships, func(i, j int) bool {
		if !memberships[i].MatchedAt.Equal(memberships[j].MatchedAt) {
			return memberships[i].MatchedAt.Before(memberships[j].MatchedAt)
		}
		return memberships[i].RecordID < memberships[j].RecordID
	})
	return memberships, nil
}

// ListActiveMemberRecordIDs returns the record ids with an active
// membership in the hold.
func (s *MemoryStore) ListActiveMemberRecordIDs(ctx context.Context, holdID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := []string{}
	for recordID, m := range s.memberships[holdID] {
		if m.Active() {
			ids = append(ids, recordID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// FilterRecordIDsWithActiveHold returns the subset of recordIDs with at
// least one active membership across any hold.
func (s *MemoryStore) FilterRecordIDsWithActiveHold(ctx context.Context, recordIDs []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	held := []string{}
	for _, recordID := range recordIDs {
		for _, byRecord := range s.memberships {
			if m, ok := byRecord[recordID]; ok && m.Active() {
				held = append(held, recordID)
				break
			}
		}
	}
	sort.Strings(held)
	return held, nil
}

// HoldCounts returns total and active membership counts for a hold.
func (s *MemoryStore) HoldCounts(ctx context.Context, holdID string) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total, active int64
	for _, m := range s.memberships[holdID] {
		total++
		if m.Active() {
			active++
		}
	}
	return total, active, nil
}

// ---- cases ----

// InsertCase persists a case.
func (s *MemoryStore) InsertCase(ctx context.Context, c *archive.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *c
	s.cases[c.ID] = &copied
	return nil
}

// GetCase returns one case, or a NotFoundError.
func (s *MemoryStore) GetCase(ctx context.Context, id string) (*archive.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cases[id]
	if !ok {
		return nil, archive.NewNotFoundError("case", id)
	}
	copied := *c
	return &copied, nil
}

// UpdateCase rewrites a case row.
func (s *MemoryStore) UpdateCase(ctx context.Context, c *archive.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cases[c.ID]; !ok {
		return archive.NewNotFoundError("case", c.ID)
	}
	copied := *c
	s.cases[c.ID] = &copied
	return nil
}

// ListCases returns every case, newest first.
func (s *MemoryStore) ListCases(ctx context.Context) ([]*archive.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cases := []*archive.Case{}
	for _, c := range s.cases {
		copied := *c
		cases = append(cases, &copied)
	}
	sort.Slice(cases, func(i, j int) bool {
		if !cases[i].CreatedAt.Equal(cases[j].CreatedAt) {
			return cases[i].CreatedAt.After(cases[j].CreatedAt)
		}
		return cases[i].ID < cases[j].ID
	})
	return cases, nil
}

// CaseSummaries aggregates hold and record membership counts per case.
func (s *MemoryStore) CaseSummaries(ctx context.Context) ([]*archive.CaseSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := []*archive.CaseSummary{}
	for caseID := range s.cases {
		cs := &archive.CaseSummary{CaseID: caseID}
		activeRecords := make(map[string]bool)
		totalRecords := make(map[string]bool)

		for _, hold := range s.holds {
			if hold.CaseID != caseID {
				continue
			}
			cs.TotalHoldCount++
			active := !hold.Released()
			if active {
				cs.ActiveHoldCount++
			}
			for recordID, m := range s.memberships[hold.ID] {
				totalRecords[recordID] = true
				if active && m.Active() {
					activeRecords[recordID] = true
				}
			}
		}
		cs.ActiveRecordCount = int64(len(activeRecords))
		cs.TotalRecordCount = int64(len(totalRecords))
		summaries = append(summaries, cs)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].CaseID < summaries[j].CaseID })
	return summaries, nil
}

// ---- custodians ----

// InsertCustodian persists a custodian.
func (s *MemoryStore) InsertCustodian(ctx context.Context, c *archive.Custodian) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *c
	s.custodians[c.ID] = &copied
	return nil
}

// GetCustodian returns one custodian, or a NotFoundError.
func (s *MemoryStore) GetCustodian(ctx context.Context, id string) (*archive.Custodian, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.custodians[id]
	if !ok {
		return nil, archive.NewNotFoundError("custodian", id)
	}
	copied := *c
	return &copied, nil
}

// ListCustodians returns every custodian ordered by email.
func (s *MemoryStore) ListCustodians(ctx context.Context) ([]*archive.Custodian, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	custodians := []*archive.Custodian{}
	for _, c := range s.custodians {
		copied := *c
		custodians = append(custodians, &copied)
	}
	sort.Slice(custodians, func(i, j int) bool {
		return strings.ToLower(custodians[i].Email) < strings.ToLower(custodians[j].Email)
	})
	return custodians, nil
}

// ---- hold notices ----

// InsertNotice persists a hold notice.
func (s *MemoryStore) InsertNotice(ctx context.Context, n *archive.HoldNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *n
	s.notices[n.ID] = &copied
	return nil
}

// GetNotice returns one notice of a hold, or a NotFoundError.
func (s *MemoryStore) GetNotice(ctx context.Context, holdID, noticeID string) (*archive.HoldNotice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notices[noticeID]
	if !ok || n.HoldID != holdID {
		return nil, archive.NewNotFoundError("hold notice", noticeID)
	}
	copied := *n
	return &copied, nil
}

// UpdateNotice rewrites a notice row.
func (s *MemoryStore) UpdateNotice(ctx context.Context, n *archive.HoldNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notices[n.ID]; !ok {
		return archive.NewNotFoundError("hold notice", n.ID)
	}
	copied := *n
	s.notices[n.ID] = &copied
	return nil
}

// ListNoticesForHold returns the notices of one hold, newest first.
func (s *MemoryStore) ListNoticesForHold(ctx context.Context, holdID string) ([]*archive.HoldNotice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notices := []*archive.HoldNotice{}
	for _, n := range s.notices {
		if n.HoldID == holdID {
			copied := *n
			notices = append(notices, &copied)
		}
	}
	sort.Slice(notices, func(i, j int) bool { return notices[i].SentAt.After(notices[j].SentAt) })
	return notices, nil
}

// ListLatestNoticesForActiveHolds returns the most recently sent notice
// per (hold, custodian) pair whose hold is still active.
func (s *MemoryStore) ListLatestNoticesForActiveHolds(ctx context.Context) ([]*archive.HoldNotice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct{ holdID, custodianID string }
	latest := make(map[key]*archive.HoldNotice)
	for _, n := range s.notices {
		hold, ok := s.holds[n.HoldID]
		if !ok || hold.Released() {
			continue
		}
		k := key{n.HoldID, n.CustodianID}
		if current, ok := latest[k]; !ok || n.SentAt.After(current.SentAt) {
			latest[k] = n
		}
	}

	notices := []*archive.HoldNotice{}
	for _, n := range latest {
		copied := *n
		notices = append(notices, &copied)
	}
	sort.Slice(notices, func(i, j int) bool {
		if notices[i].HoldID != notices[j].HoldID {
			return notices[i].HoldID < notices[j].HoldID
		}
		return notices[i].CustodianID < notices[j].CustodianID
	})
	return notices, nil
}

// ---- retention policies ----

// InsertPolicy persists a retention policy. Condition date bounds are
// validated here so a malformed policy can never reach Matches.
func (s *MemoryStore) InsertPolicy(ctx context.Context, p *archive.RetentionPolicy) error {
	if err := p.Conditions.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *p
	s.policies[p.ID] = &copied
	return nil
}

// GetPolicy returns one policy, or a NotFoundError.
func (s *MemoryStore) GetPolicy(ctx context.Context, id string) (*archive.RetentionPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[id]
	if !ok {
		return nil, archive.NewNotFoundError("retention policy", id)
	}
	copied := *p
	return &copied, nil
}

// UpdatePolicy rewrites a policy row.
func (s *MemoryStore) UpdatePolicy(ctx context.Context, p *archive.RetentionPolicy) error {
	if err := p.Conditions.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.policies[p.ID]; !ok {
		return archive.NewNotFoundError("retention policy", p.ID)
	}
	copied := *p
	s.policies[p.ID] = &copied
	return nil
}

// ListEnabledPolicies returns enabled policies ordered by ascending
// priority.
func (s *MemoryStore) ListEnabledPolicies(ctx context.Context) ([]*archive.RetentionPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policies := []*archive.RetentionPolicy{}
	for _, p := range s.policies {
		if p.IsEnabled {
			copied := *p
			policies = append(policies, &copied)
		}
	}
	sort.Slice(policies, func(i, j int) bool {
		if policies[i].Priority != policies[j].Priority {
			return policies[i].Priority < policies[j].Priority
		}
		return policies[i].CreatedAt.Before(policies[j].CreatedAt)
	})
	return policies, nil
}

// ---- export jobs ----

// InsertExportJob persists a targeted export job.
func (s *MemoryStore) InsertExportJob(ctx context.Context, job *archive.ExportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *job
	s.exportJobs[job.ID] = &copied
	return nil
}

// GetExportJob returns one targeted export job, or a NotFoundError.
func (s *MemoryStore) GetExportJob(ctx context.Context, id string) (*archive.ExportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.exportJobs[id]
	if !ok {
		return nil, archive.NewNotFoundError("export job", id)
	}
	copied := *job
	return &copied, nil
}

// UpdateExportJob rewrites a targeted export job.
func (s *MemoryStore) UpdateExportJob(ctx context.Context, job *archive.ExportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.exportJobs[job.ID]; !ok {
		return archive.NewNotFoundError("export job", job.ID)
	}
	copied := *job
	s.exportJobs[job.ID] = &copied
	return nil
}

// ListExportJobs returns targeted export jobs, newest first.
func (s *MemoryStore) ListExportJobs(ctx context.Context, limit, offset int) ([]*archive.ExportJob, int64, error) {
	s.mu.RLock()
	jobs := []*archive.ExportJob{}
	for _, job := range s.exportJobs {
		copied := *job
		jobs = append(jobs, &copied)
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})

	total := int64(len(jobs))
	jobs = paginateExportJobs(jobs, limit, offset)
	return jobs, total, nil
}

// InsertArchiveExportJob persists a snapshot export job.
func (s *MemoryStore) InsertArchiveExportJob(ctx context.Context, job *archive.ArchiveExportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *job
	s.archiveExportJobs[job.ID] = &copied
	return nil
}

// GetArchiveExportJob returns one snapshot export job, or a NotFoundError.
func (s *MemoryStore) GetArchiveExportJob(ctx context.Context, id string) (*archive.ArchiveExportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.archiveExportJobs[id]
	if !ok {
		return nil, archive.NewNotFoundError("archive export job", id)
	}
	copied := *job
	return &copied, nil
}

// UpdateArchiveExportJob rewrites a snapshot export job.
func (s *MemoryStore) UpdateArchiveExportJob(ctx context.Context, job *archive.ArchiveExportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.archiveExportJobs[job.ID]; !ok {
		return archive.NewNotFoundError("archive export job", job.ID)
	}
	copied := *job
	s.archiveExportJobs[job.ID] = &copied
	return nil
}

// ListArchiveExportJobs returns snapshot export jobs, newest first.
func (s *MemoryStore) ListArchiveExportJobs(ctx context.Context, limit, offset int) ([]*archive.ArchiveExportJob, int64, error) {
	s.mu.RLock()
	jobs := []*archive.ArchiveExportJob{}
	for _, job := range s.archiveExportJobs {
		copied := *job
		jobs = append(jobs, &copied)
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})

	total := int64(len(jobs))
	if limit <= 0 {
		limit = 50
	}
	if offset >= len(jobs) {
		return []*archive.ArchiveExportJob{}, total, nil
	}
	jobs = jobs[offset:]
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, total, nil
}

// ---- helpers ----

func sortRecords(records []*archive.ArchivedRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].ArchivedAt.Equal(records[j].ArchivedAt) {
			return records[i].ArchivedAt.Before(records[j].ArchivedAt)
		}
		return records[i].ID < records[j].ID
	})
}

func paginateExportJobs(jobs []*archive.ExportJob, limit, offset int) []*archive.ExportJob {
	if limit <= 0 {
		limit = 50
	}
	if offset >= len(jobs) {
		return []*archive.ExportJob{}
	}
	jobs = jobs[offset:]
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs
}
