package blob

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// MemoryGateway stores blobs in a map. Test use only.
type MemoryGateway struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryGateway creates an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{blobs: make(map[string][]byte)}
}

// Put stores the reader's content under key.
func (g *MemoryGateway) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.blobs[key] = data
	g.mu.Unlock()
	return nil
}

// Get opens a blob for reading.
func (g *MemoryGateway) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	g.mu.RLock()
	data, ok := g.blobs[key]
	g.mu.RUnlock()
	if !ok {
		return nil, NewNotFoundError(key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes a blob. Missing keys are ignored.
func (g *MemoryGateway) Delete(ctx context.Context, key string) error {
	g.mu.Lock()
	delete(g.blobs, key)
	g.mu.Unlock()
	return nil
}

// Exists reports whether the key holds a blob.
func (g *MemoryGateway) Exists(ctx context.Context, key string) (bool, error) {
	g.mu.RLock()
	_, ok := g.blobs[key]
	g.mu.RUnlock()
	return ok, nil
}

// Len returns the number of stored blobs.
func (g *MemoryGateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.blobs)
}
