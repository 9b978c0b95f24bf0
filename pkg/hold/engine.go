package hold

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"parchment-hq/parchment/pkg/archive"
	"parchment-hq/parchment/pkg/audit"
	"parchment-hq/parchment/pkg/search"
	"parchment-hq/parchment/pkg/telemetry/metrics"
)

// Engine owns the legal hold lifecycle: creation, criteria updates,
// release and the membership reconciliation each of those triggers. Every
// mutation is recorded in the audit ledger before the call returns.
//
// Reconciliation is serialized per hold: concurrent updates to the same
// hold queue up, while different holds proceed in parallel.
type Engine struct {
	store     archive.Store
	ledger    *audit.Ledger
	index     search.Index
	collector *metrics.Collector
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates a hold engine. Records whose hold state changes are
// re-indexed through index.
func NewEngine(store archive.Store, ledger *audit.Ledger, index search.Index) *Engine {
	return &Engine{
		store:  store,
		ledger: ledger,
		index:  index,
		logger: slog.Default().With("component", "hold.engine"),
		locks:  make(map[string]*sync.Mutex),
	}
}

// SetCollector wires in the metrics collector. All collector methods are
// nil-safe, so the engine works without one.
func (e *Engine) SetCollector(c *metrics.Collector) {
	e.collector = c
}

// holdLock returns the mutex serializing work on one hold.
func (e *Engine) holdLock(holdID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[holdID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[holdID] = lock
	}
	return lock
}

// CreateHoldInput describes a new legal hold. At least one of CustodianID
// and Criteria must be set.
type CreateHoldInput struct {
	CaseID      string
	CustodianID string
	Criteria    *archive.Criteria
	Reason      string
}

// CreateHold creates a hold, captures its initial membership over the
// whole archive and flags every matched record.
func (e *Engine) CreateHold(ctx context.Context, input *CreateHoldInput, actor archive.Actor) (*archive.LegalHold, error) {
	if input.Reason == "" {
		return nil, archive.NewValidationError("hold reason is required")
	}

	criteria := input.Criteria.Normalize()
	if input.CustodianID == "" && criteria == nil {
		return nil, archive.NewValidationError("hold requires a custodian or criteria")
	}
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	if _, err := e.store.GetCase(ctx, input.CaseID); err != nil {
		return nil, err
	}
	custodianEmail, err := e.custodianEmail(ctx, input.CustodianID)
	if err != nil {
		return nil, err
	}

	hold := &archive.LegalHold{
		ID:          uuid.New().String(),
		CaseID:      input.CaseID,
		CustodianID: input.CustodianID,
		Criteria:    criteria,
		Reason:      input.Reason,
		AppliedBy:   actor.ID,
		AppliedAt:   time.Now().UTC(),
	}

	lock := e.holdLock(hold.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := e.store.InsertHold(ctx, hold); err != nil {
		return nil, err
	}

	details := map[string]any{"caseId": hold.CaseID, "reason": hold.Reason}
	if hold.CustodianID != "" {
		details["custodianId"] = hold.CustodianID
	}
	if hold.Criteria != nil {
		details["criteria"] = criteriaDetails(hold.Criteria)
	}
	if _, err := e.ledger.Append(ctx, &audit.Input{
		ActorIdentifier: actor.ID,
		ActionType:      audit.ActionCreate,
		TargetType:      "LegalHold",
		TargetID:        hold.ID,
		ActorIP:         actor.IP,
		Details:         details,
	}); err != nil {
		return nil, err
	}

	matched, err := e.matchingRecordIDs(ctx, hold, custodianEmail)
	if err != nil {
		return nil, err
	}
	if len(matched) > 0 {
		if err := e.store.UpsertMemberships(ctx, hold.ID, matched, actor.ID); err != nil {
			return nil, err
		}
		if err := e.store.SetHoldFlag(ctx, matched, true); err != nil {
			return nil, err
		}
	}

	if _, err := e.ledger.Append(ctx, &audit.Input{
		ActorIdentifier: actor.ID,
		ActionType:      audit.ActionUpdate,
		TargetType:      "LegalHold",
		TargetID:        hold.ID,
		ActorIP:         actor.IP,
		Details:         map[string]any{"event": "membership_applied", "matchedCount": len(matched)},
	}); err != nil {
		return nil, err
	}
	e.collector.RecordMembershipChange("added", len(matched))
	e.reindex(ctx, matched)

	e.logger.Info("hold created",
		"hold_id", hold.ID,
		"case_id", hold.CaseID,
		"matched", len(matched))
	return hold, nil
}

// UpdateHoldInput carries the mutable fields of a hold. Nil pointers leave
// the field unchanged; SetCriteria distinguishes "replace criteria with
// Criteria" (including clearing it) from "leave criteria alone".
type UpdateHoldInput struct {
	Reason      *string
	Criteria    *archive.Criteria
	SetCriteria bool
}

// UpdateHold applies the changes and reconciles membership: records that
// newly match are added, records that no longer match are soft-removed,
// and hold flags are recalculated for everything touched.
func (e *Engine) UpdateHold(ctx context.Context, holdID string, input *UpdateHoldInput, actor archive.Actor) (*archive.LegalHold, error) {
	lock := e.holdLock(holdID)
	lock.Lock()
	defer lock.Unlock()

	hold, err := e.store.GetHold(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if hold.Released() {
		return nil, archive.NewConflictError(fmt.Sprintf("hold %s has been released and cannot be modified", holdID))
	}

	changedFields := []string{}
	if input.Reason != nil && *input.Reason != hold.Reason {
		if *input.Reason == "" {
			return nil, archive.NewValidationError("hold reason is required")
		}
		hold.Reason = *input.Reason
		changedFields = append(changedFields, "reason")
	}
	if input.SetCriteria {
		criteria := input.Criteria.Normalize()
		if hold.CustodianID == "" && criteria == nil {
			return nil, archive.NewValidationError("hold requires a custodian or criteria")
		}
		if err := criteria.Validate(); err != nil {
			return nil, err
		}
		hold.Criteria = criteria
		changedFields = append(changedFields, "criteria")
	}

	if len(changedFields) == 0 {
		return hold, nil
	}

	if err := e.store.UpdateHold(ctx, hold); err != nil {
		return nil, err
	}

	if _, err := e.ledger.Append(ctx, &audit.Input{
		ActorIdentifier: actor.ID,
		ActionType:      audit.ActionUpdate,
		TargetType:      "LegalHold",
		TargetID:        hold.ID,
		ActorIP:         actor.IP,
		Details:         map[string]any{"changedFields": changedFields},
	}); err != nil {
		return nil, err
	}

	matched, added, removed, err := e.reconcile(ctx, hold, actor.ID)
	if err != nil {
		return nil, err
	}

	if _, err := e.ledger.Append(ctx, &audit.Input{
		ActorIdentifier: actor.ID,
		ActionType:      audit.ActionUpdate,
		TargetType:      "LegalHold",
		TargetID:        hold.ID,
		ActorIP:         actor.IP,
		Details: map[string]any{
			"event":        "membership_recalculated",
			"matchedCount": matched,
			"addedCount":   len(added),
			"removedCount": len(removed),
		},
	}); err != nil {
		return nil, err
	}
	e.collector.RecordMembershipChange("added", len(added))
	e.collector.RecordMembershipChange("removed", len(removed))
	e.reindex(ctx, append(added, removed...))

	e.logger.Info("hold updated",
		"hold_id", hold.ID,
		"changed", changedFields,
		"added", len(added),
		"removed", len(removed))
	return hold, nil
}

// ReleaseHold releases a hold: its memberships are soft-removed and the
// hold flag of every released record is recalculated against the remaining
// active holds. Releasing an already-released hold is a no-op that returns
// the hold unchanged, so redelivered release jobs are harmless.
func (e *Engine) ReleaseHold(ctx context.Context, holdID string, actor archive.Actor) (*archive.LegalHold, error) {
	lock := e.holdLock(holdID)
	lock.Lock()
	defer lock.Unlock()

	hold, err := e.store.GetHold(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if hold.Released() {
		return hold, nil
	}

	active, err := e.store.ListActiveMemberRecordIDs(ctx, holdID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	hold.RemovedAt = &now
	if err := e.store.UpdateHold(ctx, hold); err != nil {
		return nil, err
	}

	if _, err := e.ledger.Append(ctx, &audit.Input{
		ActorIdentifier: actor.ID,
		ActionType:      audit.ActionUpdate,
		TargetType:      "LegalHold",
		TargetID:        hold.ID,
		ActorIP:         actor.IP,
		Details:         map[string]any{"event": "released", "caseId": hold.CaseID},
	}); err != nil {
		return nil, err
	}

	if err := e.store.MarkMembershipsRemoved(ctx, holdID, active); err != nil {
		return nil, err
	}
	if err := e.recalcFlags(ctx, active); err != nil {
		return nil, err
	}

	if _, err := e.ledger.Append(ctx, &audit.Input{
		ActorIdentifier: actor.ID,
		ActionType:      audit.ActionUpdate,
		TargetType:      "LegalHold",
		TargetID:        hold.ID,
		ActorIP:         actor.IP,
		Details:         map[string]any{"event": "membership_released", "releasedCount": len(active)},
	}); err != nil {
		return nil, err
	}
	e.collector.RecordMembershipChange("removed", len(active))
	e.reindex(ctx, active)

	e.logger.Info("hold released", "hold_id", hold.ID, "released", len(active))
	return hold, nil
}

// ApplyToNewRecord evaluates every active hold against a record that just
// landed. When the record is already flagged nothing needs to happen: the
// flag only exists while at least one active membership does, and matching
// holds were evaluated when the flag was set.
func (e *Engine) ApplyToNewRecord(ctx context.Context, rec *archive.ArchivedRecord) error {
	if rec.IsOnHold {
		return nil
	}

	holds, err := e.store.ListActiveHolds(ctx)
	if err != nil {
		return err
	}

	matched := []string{}
	for _, hold := range holds {
		custodianEmail, err := e.custodianEmail(ctx, hold.CustodianID)
		if err != nil {
			return err
		}
		if archive.HoldMatches(hold, custodianEmail, rec) {
			matched = append(matched, hold.ID)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	if err := e.store.UpsertMembershipsForRecord(ctx, matched, rec.ID, archive.SystemActor.ID); err != nil {
		return err
	}
	if err := e.store.SetHoldFlag(ctx, []string{rec.ID}, true); err != nil {
		return err
	}
	rec.IsOnHold = true

	if _, err := e.ledger.Append(ctx, &audit.Input{
		ActorIdentifier: archive.SystemActor.ID,
		ActionType:      audit.ActionUpdate,
		TargetType:      "ArchivedRecord",
		TargetID:        rec.ID,
		ActorIP:         archive.SystemActor.IP,
		Details:         map[string]any{"event": "legal_hold_applied", "holdIds": matched},
	}); err != nil {
		return err
	}
	e.collector.RecordMembershipChange("added", len(matched))
	e.reindex(ctx, []string{rec.ID})

	e.logger.Debug("holds applied to new record", "record_id", rec.ID, "holds", len(matched))
	return nil
}

// Get returns one hold.
func (e *Engine) Get(ctx context.Context, holdID string) (*archive.LegalHold, error) {
	return e.store.GetHold(ctx, holdID)
}

// List returns every hold.
func (e *Engine) List(ctx context.Context) ([]*archive.LegalHold, error) {
	return e.store.ListHolds(ctx)
}

// Memberships returns all membership rows of a hold, active and removed.
func (e *Engine) Memberships(ctx context.Context, holdID string) ([]*archive.HoldMembership, error) {
	if _, err := e.store.GetHold(ctx, holdID); err != nil {
		return nil, err
	}
	return e.store.ListMemberships(ctx, holdID)
}

// reconcile recomputes a hold's membership against the archive. Returns
// the matched count and the added and removed record ids.
func (e *Engine) reconcile(ctx context.Context, hold *archive.LegalHold, matchedBy string) (int, []string, []string, error) {
	custodianEmail, err := e.custodianEmail(ctx, hold.CustodianID)
	if err != nil {
		return 0, nil, nil, err
	}

	matching, err := e.matchingRecordIDs(ctx, hold, custodianEmail)
	if err != nil {
		return 0, nil, nil, err
	}
	active, err := e.store.ListActiveMemberRecordIDs(ctx, hold.ID)
	if err != nil {
		return 0, nil, nil, err
	}

	toAdd, toRemove := diffMemberships(matching, active)

	if len(toAdd) > 0 {
		if err := e.store.UpsertMemberships(ctx, hold.ID, toAdd, matchedBy); err != nil {
			return 0, nil, nil, err
		}
		if err := e.store.SetHoldFlag(ctx, toAdd, true); err != nil {
			return 0, nil, nil, err
		}
	}
	if len(toRemove) > 0 {
		if err := e.store.MarkMembershipsRemoved(ctx, hold.ID, toRemove); err != nil {
			return 0, nil, nil, err
		}
		if err := e.recalcFlags(ctx, toRemove); err != nil {
			return 0, nil, nil, err
		}
	}

	return len(matching), toAdd, toRemove, nil
}

// reindex pushes the given records back through the search index. Index
// maintenance is best-effort: the archive database stays the source of
// truth, so a failure is logged rather than propagated.
func (e *Engine) reindex(ctx context.Context, recordIDs []string) {
	if len(recordIDs) == 0 {
		return
	}
	if err := e.index.IndexRecords(ctx, recordIDs); err != nil {
		e.logger.Warn("search reindex failed", "records", len(recordIDs), "error", err)
	}
}

// recalcFlags recomputes IsOnHold for the given records as the union over
// all their active memberships. Records still held by another hold keep
// the flag; the rest lose it.
func (e *Engine) recalcFlags(ctx context.Context, recordIDs []string) error {
	if len(recordIDs) == 0 {
		return nil
	}

	stillHeld, err := e.store.FilterRecordIDsWithActiveHold(ctx, recordIDs)
	if err != nil {
		return err
	}
	heldSet := make(map[string]bool, len(stillHeld))
	for _, id := range stillHeld {
		heldSet[id] = true
	}

	toClear := []string{}
	for _, id := range recordIDs {
		if !heldSet[id] {
			toClear = append(toClear, id)
		}
	}

	if len(stillHeld) > 0 {
		if err := e.store.SetHoldFlag(ctx, stillHeld, true); err != nil {
			return err
		}
	}
	if len(toClear) > 0 {
		if err := e.store.SetHoldFlag(ctx, toClear, false); err != nil {
			return err
		}
	}
	return nil
}

// matchingRecordIDs streams the archive and collects the ids of records
// the hold matches.
func (e *Engine) matchingRecordIDs(ctx context.Context, hold *archive.LegalHold, custodianEmail string) ([]string, error) {
	records, errs, err := e.store.StreamRecords(ctx)
	if err != nil {
		return nil, err
	}

	matched := []string{}
	for rec := range records {
		if archive.HoldMatches(hold, custodianEmail, rec) {
			matched = append(matched, rec.ID)
		}
	}
	if err := <-errs; err != nil {
		return nil, fmt.Errorf("stream records for hold %s: %w", hold.ID, err)
	}
	return matched, nil
}

// custodianEmail resolves a custodian id to its normalized email, or ""
// when the hold is criteria-only.
func (e *Engine) custodianEmail(ctx context.Context, custodianID string) (string, error) {
	if custodianID == "" {
		return "", nil
	}
	custodian, err := e.store.GetCustodian(ctx, custodianID)
	if err != nil {
		return "", err
	}
	return custodian.Email, nil
}

func criteriaDetails(c *archive.Criteria) map[string]any {
	details := map[string]any{}
	if c.OwnerEmail != "" {
		details["ownerEmail"] = c.OwnerEmail
	}
	if c.SourceID != "" {
		details["sourceId"] = c.SourceID
	}
	if c.SenderEmail != "" {
		details["senderEmail"] = c.SenderEmail
	}
	if c.SubjectContains != "" {
		details["subjectContains"] = c.SubjectContains
	}
	if c.StartDate != "" {
		details["startDate"] = c.StartDate
	}
	if c.EndDate != "" {
		details["endDate"] = c.EndDate
	}
	return details
}
