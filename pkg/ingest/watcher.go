package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DropWatcherConfig contains configuration for the drop-folder watcher.
type DropWatcherConfig struct {
	// Dir is the directory new .eml files are dropped into.
	Dir string

	// SourceID tags every record ingested from this drop folder.
	SourceID string

	// SettleDelay is how long a file must stay quiet after its last
	// write before it is picked up, so half-copied files are not read.
	SettleDelay time.Duration

	// MaxBacklog pauses the watcher while the ingestion topic's depth is
	// at or above this bound.
	MaxBacklog int64

	// BacklogPoll is the sleep interval while waiting for the backlog to
	// drain.
	BacklogPoll time.Duration
}

// DefaultDropWatcherConfig returns the default watcher configuration.
func DefaultDropWatcherConfig(dir, sourceID string) *DropWatcherConfig {
	return &DropWatcherConfig{
		Dir:         dir,
		SourceID:    sourceID,
		SettleDelay: 500 * time.Millisecond,
		MaxBacklog:  1000,
		BacklogPoll: time.Second,
	}
}

// DropWatcher feeds .eml files dropped into a directory to the ingestion
// queue. Files already present when the watcher starts are enqueued
// first; new files are enqueued once they settle.
type DropWatcher struct {
	watcher  *fsnotify.Watcher
	ingester *Ingester
	config   *DropWatcherConfig
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewDropWatcher creates a drop-folder watcher.
func NewDropWatcher(ingester *Ingester, config *DropWatcherConfig) (*DropWatcher, error) {
	if config == nil || config.Dir == "" {
		return nil, fmt.Errorf("drop watcher requires a directory")
	}
	if config.SettleDelay <= 0 {
		config.SettleDelay = 500 * time.Millisecond
	}
	if config.BacklogPoll <= 0 {
		config.BacklogPoll = time.Second
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &DropWatcher{
		watcher:  watcher,
		ingester: ingester,
		config:   config,
		logger:   slog.Default().With("component", "ingest.watcher"),
		pending:  make(map[string]*time.Timer),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks processing drop-folder events until ctx is cancelled or
// Stop is called.
func (w *DropWatcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		for _, timer := range w.pending {
			timer.Stop()
		}
		w.mu.Unlock()
		close(w.doneCh)
	}()

	if err := w.watcher.Add(w.config.Dir); err != nil {
		return fmt.Errorf("failed to watch drop directory: %w", err)
	}

	if err := w.scanExisting(ctx); err != nil {
		return err
	}

	w.logger.Info("drop watcher started",
		"dir", w.config.Dir,
		"source_id", w.config.SourceID,
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("drop watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("drop watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.shouldProcessEvent(event) {
				continue
			}
			w.schedule(ctx, event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("drop watcher error", "error", err)
			// Keep watching despite errors.
		}
	}
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *DropWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// scanExisting enqueues files that were dropped while no watcher ran.
func (w *DropWatcher) scanExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.config.Dir)
	if err != nil {
		return fmt.Errorf("failed to scan drop directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isEML(entry.Name()) {
			continue
		}
		if err := w.enqueue(ctx, filepath.Join(w.config.Dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (w *DropWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return false
	}
	return isEML(event.Name)
}

func isEML(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), ".eml")
}

// schedule arms (or re-arms) the settle timer for a path. The file is
// enqueued only after it stops changing for the settle delay.
func (w *DropWatcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.config.SettleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if err := w.enqueue(ctx, path); err != nil {
			w.logger.Error("failed to enqueue dropped file", "path", path, "error", err)
		}
	})
}

// enqueue hands a settled file to the ingestion queue, waiting out any
// backlog first.
func (w *DropWatcher) enqueue(ctx context.Context, path string) error {
	if w.config.MaxBacklog > 0 {
		for w.ingester.Backlog() >= w.config.MaxBacklog {
			w.logger.Debug("ingestion backlog full, waiting",
				"backlog", w.ingester.Backlog(),
				"max", w.config.MaxBacklog,
			)
			select {
			case <-time.After(w.config.BacklogPoll):
			case <-ctx.Done():
				return ctx.Err()
			case <-w.stopCh:
				return nil
			}
		}
	}
	return w.ingester.EnqueueFile(ctx, path)
}
