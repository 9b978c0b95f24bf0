package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// GenesisHash is the PrevHash of the first ledger entry: 32 zero bytes in
// hex, matching the output width of SHA-256.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// canonicalEntry fixes the field set and order that the chain hash covers.
// PrevHash and EntryHash are deliberately excluded: PrevHash enters the
// hash as a prefix instead, and EntryHash is the output.
type canonicalEntry struct {
	ID              int64          `json:"id"`
	ActorIdentifier string         `json:"actorIdentifier"`
	ActionType      ActionType     `json:"actionType"`
	TargetType      string         `json:"targetType"`
	TargetID        string         `json:"targetId"`
	ActorIP         string         `json:"actorIp"`
	Details         map[string]any `json:"details"`
	RecordedAt      string         `json:"recordedAt"`
}

// CanonicalJSON serializes the hashed content of an entry. Timestamps are
// normalized to RFC 3339 nanoseconds in UTC and map keys are emitted in
// sorted order, so the same entry always serializes to the same bytes —
// including after a round trip through storage.
func CanonicalJSON(e *Entry) ([]byte, error) {
	c := canonicalEntry{
		ID:              e.ID,
		ActorIdentifier: e.ActorIdentifier,
		ActionType:      e.ActionType,
		TargetType:      e.TargetType,
		TargetID:        e.TargetID,
		ActorIP:         e.ActorIP,
		Details:         e.Details,
		RecordedAt:      e.RecordedAt.UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("canonicalize audit entry %d: %w", e.ID, err)
	}
	return data, nil
}

// ComputeHash derives the chain hash of an entry from its content and the
// previous entry's hash.
func ComputeHash(prevHash string, e *Entry) (string, error) {
	content, err := CanonicalJSON(e)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil)), nil
}
