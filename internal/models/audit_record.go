package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditRecord is a single generation-request audit entry, persisted
// asynchronously so bookkeeping never blocks a generation.
type AuditRecord struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Shop           string    `db:"shop" json:"shop"`
	Feature        Feature   `db:"feature" json:"feature"`
	ModelName      string    `db:"model_name" json:"model_name"`
	StatusCode     int       `db:"status_code" json:"status_code"`
	Attempts       int       `db:"attempts" json:"attempts"`
	CreditsUsed    int       `db:"credits_used" json:"credits_used"`
	Billable       int       `db:"billable" json:"billable"`
	ResponseTimeMS int       `db:"response_time_ms" json:"response_time_ms"`
	ErrorMessage   string    `db:"error_message" json:"error_message"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
