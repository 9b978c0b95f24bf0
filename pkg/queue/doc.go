// Package queue is a minimal in-process job queue with named topics,
// bounded per-topic concurrency, and fixed-delay retries. Delivery is
// at least once; handlers must be safe under re-execution. Topic depth
// is observable so producers can apply backpressure.
package queue
