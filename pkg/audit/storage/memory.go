package storage

import (
	"context"
	"fmt"
	"sync"

	"parchment-hq/parchment/pkg/audit"
)

// MemoryStore implements audit.Store with an in-memory slice. It is used
// in tests and for ephemeral deployments; entries do not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*audit.Entry
}

// NewMemoryStore creates a new in-memory ledger backend.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AppendEntry persists one ledger entry.
func (s *MemoryStore) AppendEntry(ctx context.Context, e *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.entries); n > 0 && e.ID <= s.entries[n-1].ID {
		return audit.NewStorageError("memory", "append",
			fmt.Errorf("entry id %d not after chain head %d", e.ID, s.entries[n-1].ID))
	}

	copied := *e
	s.entries = append(s.entries, &copied)
	return nil
}

// LastEntry returns the entry with the highest id, or nil for an empty
// ledger.
func (s *MemoryStore) LastEntry(ctx context.Context) (*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return nil, nil
	}
	copied := *s.entries[len(s.entries)-1]
	return &copied, nil
}

// GetEntry returns one entry by id, or nil when it does not exist.
func (s *MemoryStore) GetEntry(ctx context.Context, id int64) (*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ID == id {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

// ListEntries returns entries matching the filter, newest first.
func (s *MemoryStore) ListEntries(ctx context.Context, filter *audit.Filter) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := []*audit.Entry{}
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if !matchesFilter(e, filter) {
			continue
		}
		copied := *e
		matched = append(matched, &copied)
	}

	offset, limit := 0, 100
	if filter != nil {
		if filter.Offset > 0 {
			offset = filter.Offset
		}
		if filter.Limit > 0 {
			limit = filter.Limit
		}
	}
	if offset >= len(matched) {
		return []*audit.Entry{}, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// CountEntries returns the number of entries in the ledger.
func (s *MemoryStore) CountEntries(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}

// StreamEntries yields every entry in ascending id order.
func (s *MemoryStore) StreamEntries(ctx context.Context) (<-chan *audit.Entry, <-chan error, error) {
	s.mu.RLock()
	snapshot := make([]*audit.Entry, len(s.entries))
	for i, e := range s.entries {
		copied := *e
		snapshot[i] = &copied
	}
	s.mu.RUnlock()

	entriesCh := make(chan *audit.Entry, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(entriesCh)
		defer close(errCh)

		for _, e := range snapshot {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case entriesCh <- e:
			}
		}
	}()

	return entriesCh, errCh, nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() error {
	return nil
}

// Corrupt overwrites a stored entry in place, bypassing the chain. It
// exists so tests can simulate after-the-fact tampering.
func (s *MemoryStore) Corrupt(id int64, mutate func(e *audit.Entry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.ID == id {
			mutate(e)
			return true
		}
	}
	return false
}

func matchesFilter(e *audit.Entry, filter *audit.Filter) bool {
	if filter == nil {
		return true
	}
	if filter.ActionType != "" && e.ActionType != filter.ActionType {
		return false
	}
	if filter.TargetType != "" && e.TargetType != filter.TargetType {
		return false
	}
	if filter.TargetID != "" && e.TargetID != filter.TargetID {
		return false
	}
	if filter.Actor != "" && e.ActorIdentifier != filter.Actor {
		return false
	}
	if !filter.Since.IsZero() && e.RecordedAt.Before(filter.Since) {
		return false
	}
	if !filter.Until.IsZero() && e.RecordedAt.After(filter.Until) {
		return false
	}
	return true
}
