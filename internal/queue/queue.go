// Package queue buffers generation-audit records for async persistence, with
// two backends:
//
//   - Memory (channel-based): no persistence across restarts, zero external
//     dependencies. Fine for single-pod deployments.
//   - Redis (list-based): survives restarts and supports multiple workers.
//
// Records that repeatedly fail to persist land in a dead-letter queue instead
// of being dropped silently.
package queue

import (
	"context"
	"time"

	"copymint/internal/models"
)

// Queue buffers audit records between the request path and the persistence
// worker.
type Queue interface {
	// Enqueue adds a record to the queue
	Enqueue(ctx context.Context, rec *models.AuditRecord) error

	// DequeueWithTimeout retrieves up to maxItems records, returning early
	// once at least one is available. An empty slice means the timeout passed
	// with nothing queued.
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]*models.AuditRecord, error)

	// Length returns the current queue length
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue gracefully
	Close() error
}

// DeadLetterQueue holds records the worker could not persist.
type DeadLetterQueue interface {
	// Add stores a failed record with its error
	Add(ctx context.Context, rec *models.AuditRecord, err error) error

	// List retrieves up to maxItems dead-lettered records
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)

	// Remove deletes a dead-lettered record by id
	Remove(ctx context.Context, id string) error

	// Close shuts down the dead letter queue
	Close() error
}

// DeadLetterItem is a record that exhausted its retries.
type DeadLetterItem struct {
	ID        string              `json:"id"`
	Record    *models.AuditRecord `json:"record"`
	Error     string              `json:"error"`
	Timestamp time.Time           `json:"timestamp"`
}

// Config holds queue configuration
type Config struct {
	// BatchSize is the maximum number of records per persistence batch
	BatchSize int

	// BatchTimeout is how long the worker waits before flushing a partial batch
	BatchTimeout time.Duration

	// MaxRetries is the number of persistence attempts before dead-lettering
	MaxRetries int

	// RetryBackoff is the initial backoff between persistence retries
	RetryBackoff time.Duration

	// Name is the queue key suffix
	Name string
}

// DefaultConfig returns default queue configuration
func DefaultConfig(name string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		Name:         name,
	}
}
