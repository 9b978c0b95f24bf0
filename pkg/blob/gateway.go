// Package blob stores the raw payload bytes of the archive: RFC 5322
// messages, attachment bodies and finished export containers. Rows in the
// archive database reference blobs by key; the gateway owns nothing about
// their meaning.
//
// Three backends are provided: local filesystem, S3-compatible object
// storage and an in-memory map for tests.
package blob

import (
	"context"
	"fmt"
	"io"
)

// Gateway is the payload storage surface. Keys are slash-separated paths;
// backends must treat them as opaque beyond that.
type Gateway interface {
	// Put stores the reader's content under key, overwriting any existing
	// blob. size is the content length in bytes; backends that need to
	// spool (S3 signing) may rely on it being accurate.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get opens a blob for reading. The caller must close the reader.
	// Returns a NotFoundError when the key does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether the key holds a blob.
	Exists(ctx context.Context, key string) (bool, error)
}

// NotFoundError reports a missing blob key.
type NotFoundError struct {
	Key string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("blob %q not found", e.Key)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(key string) *NotFoundError {
	return &NotFoundError{Key: key}
}
