package blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FSGateway stores blobs as files under a root directory. Writes go
// through a temp file and rename so readers never observe a partial blob.
type FSGateway struct {
	root   string
	logger *slog.Logger
}

// NewFSGateway creates a filesystem gateway rooted at dir, creating it if
// needed.
func NewFSGateway(dir string) (*FSGateway, error) {
	if dir == "" {
		return nil, fmt.Errorf("blob root directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FSGateway{
		root:   dir,
		logger: slog.Default().With("component", "blob.fs"),
	}, nil
}

// resolve maps a key to a path under the root, rejecting traversal.
func (g *FSGateway) resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("blob key is required")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("blob key %q escapes the root", key)
	}
	return filepath.Join(g.root, clean), nil
}

// Put stores the reader's content under key.
func (g *FSGateway) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	path, err := g.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write blob %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close blob %q: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("finalize blob %q: %w", key, err)
	}
	return nil
}

// Get opens a blob for reading.
func (g *FSGateway) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := g.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, NewNotFoundError(key)
	}
	if err != nil {
		return nil, fmt.Errorf("open blob %q: %w", key, err)
	}
	return f, nil
}

// Delete removes a blob. Missing keys are ignored.
func (g *FSGateway) Delete(ctx context.Context, key string) error {
	path, err := g.resolve(key)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob %q: %w", key, err)
	}
	return nil
}

// Exists reports whether the key holds a blob.
func (g *FSGateway) Exists(ctx context.Context, key string) (bool, error) {
	path, err := g.resolve(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat blob %q: %w", key, err)
	}
	return true, nil
}
