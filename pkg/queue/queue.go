package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Handler processes one job payload. Jobs are delivered at least once:
// a handler must tolerate re-execution of the same payload.
type Handler func(ctx context.Context, payload []byte) error

// TopicConfig bounds one topic's concurrency and retry behavior.
type TopicConfig struct {
	// Workers is the number of concurrent handler invocations.
	Workers int

	// Buffer is the channel capacity; Enqueue blocks once it is full.
	Buffer int

	// MaxAttempts is the total number of delivery attempts per job.
	MaxAttempts int

	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
}

// DefaultTopicConfig returns the default per-topic configuration.
func DefaultTopicConfig() TopicConfig {
	return TopicConfig{
		Workers:     4,
		Buffer:      256,
		MaxAttempts: 3,
		RetryDelay:  5 * time.Second,
	}
}

func (c TopicConfig) withDefaults() TopicConfig {
	d := DefaultTopicConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.Buffer <= 0 {
		c.Buffer = d.Buffer
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	return c
}

type job struct {
	payload []byte
	attempt int
}

type topic struct {
	name    string
	handler Handler
	config  TopicConfig
	jobs    chan job
	depth   atomic.Int64
}

// Queue is an in-process job queue with named topics and bounded per-topic
// concurrency. Failed jobs are retried in place with a fixed delay and
// dropped, with an error log, once their attempts are exhausted.
//
// The lock discipline makes Stop safe against concurrent producers:
// every Enqueue holds the read lock across its channel send, and Stop
// takes the write lock before closing the job channels, so a send can
// never race a close.
type Queue struct {
	mu      sync.RWMutex
	topics  map[string]*topic
	logger  *slog.Logger
	wg      sync.WaitGroup
	started bool
	stopped bool
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		topics: make(map[string]*topic),
		logger: slog.Default().With("component", "queue"),
	}
}

// Register adds a topic with its handler. All topics must be registered
// before Start.
func (q *Queue) Register(name string, handler Handler, config TopicConfig) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return fmt.Errorf("queue already started, cannot register topic %q", name)
	}
	if _, ok := q.topics[name]; ok {
		return fmt.Errorf("topic %q already registered", name)
	}
	if handler == nil {
		return fmt.Errorf("topic %q requires a handler", name)
	}

	config = config.withDefaults()
	q.topics[name] = &topic{
		name:    name,
		handler: handler,
		config:  config,
		jobs:    make(chan job, config.Buffer),
	}
	return nil
}

// Start launches the worker goroutines. Workers drain their topics until
// Stop is called; ctx cancellation aborts in-flight handlers.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return fmt.Errorf("queue already started")
	}
	q.started = true

	for _, t := range q.topics {
		for i := 0; i < t.config.Workers; i++ {
			q.wg.Add(1)
			go q.work(ctx, t)
		}
	}

	q.logger.Info("queue started", "topics", len(q.topics))
	return nil
}

func (q *Queue) work(ctx context.Context, t *topic) {
	defer q.wg.Done()

	for j := range t.jobs {
		q.process(ctx, t, j)
		t.depth.Add(-1)
	}
}

func (q *Queue) process(ctx context.Context, t *topic, j job) {
	for {
		j.attempt++
		err := t.handler(ctx, j.payload)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			q.logger.Warn("job abandoned on shutdown", "topic", t.name, "attempt", j.attempt)
			return
		}
		if j.attempt >= t.config.MaxAttempts {
			q.logger.Error("job dropped after final attempt",
				"topic", t.name,
				"attempts", j.attempt,
				"error", err)
			return
		}

		q.logger.Warn("job failed, retrying",
			"topic", t.name,
			"attempt", j.attempt,
			"retry_delay", t.config.RetryDelay,
			"error", err)
		select {
		case <-time.After(t.config.RetryDelay):
		case <-ctx.Done():
			return
		}
	}
}

// Enqueue submits a payload to a topic. It blocks while the topic's
// buffer is full, until ctx is cancelled. Enqueueing on a stopped queue
// returns an error.
func (q *Queue) Enqueue(ctx context.Context, name string, payload []byte) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	t, ok := q.topics[name]
	if !ok {
		return fmt.Errorf("unknown topic %q", name)
	}
	if q.stopped {
		return fmt.Errorf("queue stopped")
	}

	t.depth.Add(1)
	select {
	case t.jobs <- job{payload: payload}:
		return nil
	case <-ctx.Done():
		t.depth.Add(-1)
		return ctx.Err()
	}
}

// Depth returns the number of jobs queued or in flight on a topic.
// Producers use it for backpressure.
func (q *Queue) Depth(name string) int64 {
	q.mu.RLock()
	t, ok := q.topics[name]
	q.mu.RUnlock()

	if !ok {
		return 0
	}
	return t.depth.Load()
}

// Stop closes all topics and waits for in-flight jobs to finish. The
// write lock waits out any Enqueue still holding the read lock, so no
// send can hit a closed channel.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started || q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	for _, t := range q.topics {
		close(t.jobs)
	}
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Info("queue stopped")
}
