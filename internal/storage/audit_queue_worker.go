package storage

import (
	"context"
	"fmt"
	"time"

	"copymint/internal/models"
	"copymint/internal/queue"
	"copymint/internal/utils"
)

// auditInserter is the slice of AuditRepository the worker needs.
type auditInserter interface {
	Insert(ctx context.Context, rec *models.AuditRecord) error
	InsertBatch(ctx context.Context, recs []*models.AuditRecord) error
}

// AuditQueueWorker drains the audit queue into the database in batches.
// Persistence failures retry with backoff and finally dead-letter; they never
// propagate back to the request path.
type AuditQueueWorker struct {
	queue       queue.Queue
	dlq         queue.DeadLetterQueue
	repo        auditInserter
	config      *queue.Config
	logger      *utils.Logger
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewAuditQueueWorker creates a new audit queue worker
func NewAuditQueueWorker(q queue.Queue, dlq queue.DeadLetterQueue, repo auditInserter, config *queue.Config) *AuditQueueWorker {
	if config == nil {
		config = queue.DefaultConfig("audit")
	}

	return &AuditQueueWorker{
		queue:       q,
		dlq:         dlq,
		repo:        repo,
		config:      config,
		logger:      utils.NewLogger("audit-worker"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine
func (w *AuditQueueWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop gracefully stops the worker
func (w *AuditQueueWorker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

// Enqueue adds an audit record to the queue
func (w *AuditQueueWorker) Enqueue(ctx context.Context, rec *models.AuditRecord) error {
	return w.queue.Enqueue(ctx, rec)
}

// QueueLength returns the current queue length
func (w *AuditQueueWorker) QueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// DeadLetterItems returns items from the dead letter queue
func (w *AuditQueueWorker) DeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error) {
	if w.dlq == nil {
		return nil, fmt.Errorf("dead letter queue not configured")
	}
	return w.dlq.List(ctx, maxItems)
}

// run is the main worker loop
func (w *AuditQueueWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("audit worker stopping")
			return
		case <-ctx.Done():
			w.logger.Info("audit worker context cancelled")
			return
		default:
			w.processBatch(ctx)
		}
	}
}

// processBatch drains one batch from the queue and persists it
func (w *AuditQueueWorker) processBatch(ctx context.Context) {
	recs, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		if err == queue.ErrQueueClosed || ctx.Err() != nil {
			return
		}
		w.logger.Error("failed to dequeue audit records", "error", err)
		time.Sleep(time.Second) // back off on error
		return
	}

	if len(recs) == 0 {
		return
	}

	w.logger.Debug("processing audit batch", "count", len(recs))

	if err := w.repo.InsertBatch(ctx, recs); err != nil {
		w.logger.Error("failed to insert batch, falling back to individual inserts", "error", err)
		for _, rec := range recs {
			if err := w.processRecord(ctx, rec); err != nil {
				w.logger.Error("failed to persist audit record", "shop", rec.Shop, "error", err)
			}
		}
	}
}

// processRecord persists a single record with retries, dead-lettering on
// final failure
func (w *AuditQueueWorker) processRecord(ctx context.Context, rec *models.AuditRecord) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			time.Sleep(backoff)
		}

		if err := w.repo.Insert(ctx, rec); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	if w.dlq != nil {
		if err := w.dlq.Add(ctx, rec, lastErr); err != nil {
			w.logger.Error("failed to add to dead letter queue", "error", err)
		} else {
			w.logger.Warn("audit record moved to DLQ", "shop", rec.Shop, "error", lastErr)
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
