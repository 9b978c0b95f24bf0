package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func createFSGateway(t *testing.T) *FSGateway {
	t.Helper()

	g, err := NewFSGateway(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create FS gateway: %v", err)
	}
	return g
}

func TestFSGateway_PutGetRoundTrip(t *testing.T) {
	g := createFSGateway(t)
	ctx := context.Background()

	content := "From: a@example.com\r\nSubject: hello\r\n\r\nbody\r\n"
	if err := g.Put(ctx, "records/2025/rec-1.eml", strings.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	rc, err := g.Get(ctx, "records/2025/rec-1.eml")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != content {
		t.Errorf("content did not round-trip: %q", data)
	}
}

func TestFSGateway_GetMissing(t *testing.T) {
	g := createFSGateway(t)

	_, err := g.Get(context.Background(), "missing/key")
	if err == nil {
		t.Fatal("expected error for missing key")
	}
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %T: %v", err, err)
	}
}

func TestFSGateway_DeleteAndExists(t *testing.T) {
	g := createFSGateway(t)
	ctx := context.Background()

	if err := g.Put(ctx, "k", strings.NewReader("v"), 1); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	ok, err := g.Exists(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected blob to exist, ok=%v err=%v", ok, err)
	}

	if err := g.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	ok, err = g.Exists(ctx, "k")
	if err != nil || ok {
		t.Fatalf("expected blob to be gone, ok=%v err=%v", ok, err)
	}

	// Deleting again is not an error.
	if err := g.Delete(ctx, "k"); err != nil {
		t.Fatalf("repeated Delete failed: %v", err)
	}
}

func TestFSGateway_RejectsTraversal(t *testing.T) {
	g := createFSGateway(t)
	ctx := context.Background()

	for _, key := range []string{"../outside", "/etc/passwd", "a/../../b"} {
		if err := g.Put(ctx, key, strings.NewReader("x"), 1); err == nil {
			t.Errorf("key %q should have been rejected", key)
		}
	}
}

func TestMemoryGateway_RoundTrip(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()

	if err := g.Put(ctx, "k", strings.NewReader("payload"), 7); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	rc, err := g.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "payload" {
		t.Errorf("content did not round-trip: %q", data)
	}
	if g.Len() != 1 {
		t.Errorf("expected 1 blob, got %d", g.Len())
	}
}
