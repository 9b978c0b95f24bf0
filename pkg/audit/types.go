package audit

import (
	"context"
	"time"
)

// ActionType classifies what a ledger entry records.
type ActionType string

// The persisted action set is fixed; richer semantics (membership
// changes, job transitions, chain verification) go into Details under
// an "event" key so old entries never need rewriting.
const (
	ActionCreate ActionType = "CREATE"
	ActionRead   ActionType = "READ"
	ActionUpdate ActionType = "UPDATE"
	ActionDelete ActionType = "DELETE"
)

// Entry is one immutable row of the audit ledger. Entries form a hash
// chain: EntryHash covers the canonical serialization of the entry's
// content plus the previous entry's hash, so any later mutation of a
// stored row is detectable.
type Entry struct {
	// ID is a dense sequence assigned by the ledger, starting at 1.
	ID int64 `json:"id"`

	ActorIdentifier string     `json:"actorIdentifier"`
	ActionType      ActionType `json:"actionType"`
	TargetType      string     `json:"targetType"`
	TargetID        string     `json:"targetId"`
	ActorIP         string     `json:"actorIp"`

	// Details carries action-specific context. Only JSON-stable values
	// belong here (strings, numbers, bools, nested maps/slices of those):
	// the verification pass recomputes hashes from the stored JSON.
	Details map[string]any `json:"details"`

	RecordedAt time.Time `json:"recordedAt"`

	// PrevHash is the EntryHash of the preceding entry, or GenesisHash
	// for the first entry.
	PrevHash string `json:"prevHash"`

	// EntryHash is hex(SHA-256(PrevHash || canonical content JSON)).
	EntryHash string `json:"entryHash"`
}

// Input is the caller-supplied part of an entry. The ledger assigns ID,
// RecordedAt and the hash fields.
type Input struct {
	ActorIdentifier string
	ActionType      ActionType
	TargetType      string
	TargetID        string
	ActorIP         string
	Details         map[string]any
}

// Filter narrows a ledger listing. Zero values impose no constraint.
type Filter struct {
	ActionType ActionType
	TargetType string
	TargetID   string
	Actor      string
	Since      time.Time
	Until      time.Time
	Limit      int
	Offset     int
}

// VerificationResult is the outcome of a chain walk.
type VerificationResult struct {
	OK bool `json:"ok"`

	// Checked is how many entries were verified, including the mismatching
	// one when OK is false.
	Checked int64 `json:"checked"`

	// FirstMismatchID is the id of the earliest entry whose recomputed
	// hash, stored hash or back-link disagrees. Zero when OK.
	FirstMismatchID int64 `json:"firstMismatchId,omitempty"`

	// Reason describes the mismatch: "hash mismatch" or "chain broken".
	Reason string `json:"reason,omitempty"`

	VerifiedAt time.Time `json:"verifiedAt"`
}

// Store is the persistence surface of the ledger. AppendEntry must reject
// duplicate ids so two ledgers sharing a store cannot fork the chain.
type Store interface {
	AppendEntry(ctx context.Context, e *Entry) error
	LastEntry(ctx context.Context) (*Entry, error)
	GetEntry(ctx context.Context, id int64) (*Entry, error)
	ListEntries(ctx context.Context, filter *Filter) ([]*Entry, error)
	CountEntries(ctx context.Context) (int64, error)

	// StreamEntries yields every entry in ascending id order. The channels
	// are closed when the stream completes or errors.
	StreamEntries(ctx context.Context) (<-chan *Entry, <-chan error, error)

	Close() error
}
