package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"parchment-hq/parchment/pkg/telemetry/metrics"
)

// Ledger is the append-only, hash-chained audit trail. All writes go
// through Append, which serializes under a mutex so the id sequence stays
// dense and every entry links to its true predecessor.
type Ledger struct {
	store     Store
	logger    *slog.Logger
	collector *metrics.Collector

	mu       sync.Mutex
	lastID   int64
	lastHash string
	primed   bool
}

// NewLedger creates a ledger over the given store. The chain head is read
// lazily on first append.
func NewLedger(store Store) *Ledger {
	return &Ledger{
		store:  store,
		logger: slog.Default().With("component", "audit.ledger"),
	}
}

// SetCollector wires in the metrics collector. All collector methods are
// nil-safe, so the ledger works without one.
func (l *Ledger) SetCollector(c *metrics.Collector) {
	l.collector = c
}

// prime loads the chain head from storage. Caller holds l.mu.
func (l *Ledger) prime(ctx context.Context) error {
	if l.primed {
		return nil
	}
	last, err := l.store.LastEntry(ctx)
	if err != nil {
		return fmt.Errorf("load audit chain head: %w", err)
	}
	if last == nil {
		l.lastID = 0
		l.lastHash = GenesisHash
	} else {
		l.lastID = last.ID
		l.lastHash = last.EntryHash
	}
	l.primed = true
	return nil
}

// Append records one entry at the head of the chain and returns it with
// its assigned id and hashes.
func (l *Ledger) Append(ctx context.Context, input *Input) (*Entry, error) {
	if input.ActionType == "" {
		return nil, fmt.Errorf("audit entry requires an action type")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.prime(ctx); err != nil {
		return nil, err
	}

	e := &Entry{
		ID:              l.lastID + 1,
		ActorIdentifier: input.ActorIdentifier,
		ActionType:      input.ActionType,
		TargetType:      input.TargetType,
		TargetID:        input.TargetID,
		ActorIP:         input.ActorIP,
		Details:         input.Details,
		RecordedAt:      time.Now().UTC(),
		PrevHash:        l.lastHash,
	}

	hash, err := ComputeHash(e.PrevHash, e)
	if err != nil {
		return nil, err
	}
	e.EntryHash = hash

	if err := l.store.AppendEntry(ctx, e); err != nil {
		// The head cache may be stale (another writer on the same store);
		// re-prime on the next append.
		l.primed = false
		return nil, fmt.Errorf("append audit entry: %w", err)
	}

	l.lastID = e.ID
	l.lastHash = e.EntryHash
	l.collector.RecordAuditEntry(string(e.ActionType), e.ID)

	l.logger.Debug("audit entry recorded",
		"id", e.ID,
		"action", e.ActionType,
		"target_type", e.TargetType,
		"target_id", e.TargetID)
	return e, nil
}

// List returns entries matching the filter, newest first.
func (l *Ledger) List(ctx context.Context, filter *Filter) ([]*Entry, error) {
	return l.store.ListEntries(ctx, filter)
}

// Get returns one entry by id.
func (l *Ledger) Get(ctx context.Context, id int64) (*Entry, error) {
	return l.store.GetEntry(ctx, id)
}

// Count returns the number of entries in the ledger.
func (l *Ledger) Count(ctx context.Context) (int64, error) {
	return l.store.CountEntries(ctx)
}

// Verify walks the whole chain in ascending id order, recomputing every
// hash. It stops at the first entry whose back-link or recomputed hash
// disagrees with what is stored, and reports that entry's id. A verified
// prefix says nothing about entries after a mismatch, so the walk does not
// continue past it.
func (l *Ledger) Verify(ctx context.Context) (*VerificationResult, error) {
	entries, errs, err := l.store.StreamEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("stream audit entries: %w", err)
	}

	result := &VerificationResult{OK: true, VerifiedAt: time.Now().UTC()}
	prevHash := GenesisHash

	for e := range entries {
		result.Checked++

		if e.PrevHash != prevHash {
			result.OK = false
			result.FirstMismatchID = e.ID
			result.Reason = "chain broken"
			break
		}

		computed, err := ComputeHash(e.PrevHash, e)
		if err != nil {
			return nil, err
		}
		if computed != e.EntryHash {
			result.OK = false
			result.FirstMismatchID = e.ID
			result.Reason = "hash mismatch"
			break
		}

		prevHash = e.EntryHash
	}

	// Drain the remainder after an early stop so the producer can finish.
	for range entries {
	}

	if err := <-errs; err != nil && result.OK {
		return nil, fmt.Errorf("verify audit chain: %w", err)
	}

	l.collector.RecordAuditVerification(result.OK)
	if result.OK {
		l.logger.Info("audit chain verified", "entries", result.Checked)
	} else {
		l.logger.Error("audit chain verification failed",
			"first_mismatch_id", result.FirstMismatchID,
			"reason", result.Reason,
			"checked", result.Checked)
	}
	return result, nil
}

// RecordVerification appends an entry describing a completed chain
// walk, so verification runs are themselves part of the trail.
func (l *Ledger) RecordVerification(ctx context.Context, actor string, result *VerificationResult) (*Entry, error) {
	details := map[string]any{
		"event":   "chain_verified",
		"ok":      result.OK,
		"checked": result.Checked,
	}
	if !result.OK {
		details["firstMismatchId"] = result.FirstMismatchID
		details["reason"] = result.Reason
	}
	return l.Append(ctx, &Input{
		ActorIdentifier: actor,
		ActionType:      ActionUpdate,
		TargetType:      "AuditLedger",
		TargetID:        "chain",
		ActorIP:         "system",
		Details:         details,
	})
}
