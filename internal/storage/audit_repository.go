package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"copymint/internal/models"
)

// AuditRepository persists generation audit records
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert stores a single audit record
func (r *AuditRepository) Insert(ctx context.Context, rec *models.AuditRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO generation_audit (id, shop, feature, model_name, status_code,
		                              attempts, credits_used, billable,
		                              response_time_ms, error_message, created_at)
		VALUES (:id, :shop, :feature, :model_name, :status_code,
		        :attempts, :credits_used, :billable,
		        :response_time_ms, :error_message, :created_at)
	`

	if _, err := r.db.conn.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	return nil
}

// InsertBatch stores multiple audit records in a single transaction
func (r *AuditRepository) InsertBatch(ctx context.Context, recs []*models.AuditRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := r.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO generation_audit (id, shop, feature, model_name, status_code,
		                              attempts, credits_used, billable,
		                              response_time_ms, error_message, created_at)
		VALUES (:id, :shop, :feature, :model_name, :status_code,
		        :attempts, :credits_used, :billable,
		        :response_time_ms, :error_message, :created_at)
	`

	for _, rec := range recs {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now()
		}
		if _, err := tx.NamedExecContext(ctx, query, rec); err != nil {
			return fmt.Errorf("failed to insert audit record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit batch: %w", err)
	}

	return nil
}

// ListByShop returns the most recent audit records for a shop
func (r *AuditRepository) ListByShop(ctx context.Context, shop string, limit int) ([]*models.AuditRecord, error) {
	query := `
		SELECT id, shop, feature, model_name, status_code, attempts,
		       credits_used, billable, response_time_ms, error_message, created_at
		FROM generation_audit
		WHERE shop = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var recs []*models.AuditRecord
	if err := r.db.conn.SelectContext(ctx, &recs, query, shop, limit); err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}

	return recs, nil
}
