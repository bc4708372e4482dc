package storage

import (
	"context"
	"database/sql"
	"fmt"

	"copymint/internal/models"
)

// UsageStatRepository is the per-shop usage ledger. All mutations are single
// atomic statements at the storage layer (upsert or guarded increment), never
// read-modify-write in application code, so concurrent requests for the same
// shop cannot lose updates or drive the credit balance negative.
type UsageStatRepository struct {
	db             *DB
	initialCredits int
}

// NewUsageStatRepository creates a new usage stat repository. initialCredits
// is the lifetime free grant applied exactly once when a shop's record is
// first created.
func NewUsageStatRepository(db *DB, initialCredits int) *UsageStatRepository {
	return &UsageStatRepository{db: db, initialCredits: initialCredits}
}

// Get retrieves the usage record for a shop
func (r *UsageStatRepository) Get(ctx context.Context, shop string) (*models.UsageStat, error) {
	var stat models.UsageStat
	query := `
		SELECT shop, credits, monthly_usage_count, descriptions_generated,
		       seo_generated, billing_cycle_start, subscription_id,
		       plan_status, plan_name, created_at, updated_at
		FROM usage_stats
		WHERE shop = $1
	`

	err := r.db.conn.GetContext(ctx, &stat, query, shop)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUsageStatNotFound
		}
		return nil, fmt.Errorf("failed to get usage stat: %w", err)
	}

	return &stat, nil
}

// GetOrInit returns the usage record for a shop, creating it with the initial
// free-credit grant if absent. The insert races through the primary-key
// conflict clause, so concurrent first-time callers end up with exactly one
// row and one grant application.
func (r *UsageStatRepository) GetOrInit(ctx context.Context, shop string) (*models.UsageStat, error) {
	insert := `
		INSERT INTO usage_stats (shop, credits, billing_cycle_start)
		VALUES ($1, $2, now())
		ON CONFLICT (shop) DO NOTHING
	`

	if _, err := r.db.conn.ExecContext(ctx, insert, shop, r.initialCredits); err != nil {
		return nil, fmt.Errorf("failed to initialize usage stat: %w", err)
	}

	return r.Get(ctx, shop)
}

// ConsumeCredits consumes up to amount credits from the shop's balance and
// returns the amount actually consumed (0 <= consumed <= amount). The balance
// never goes below zero.
func (r *UsageStatRepository) ConsumeCredits(ctx context.Context, shop string, amount int) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("amount must be non-negative, got %d", amount)
	}
	if amount == 0 {
		return 0, nil
	}

	query := `
		UPDATE usage_stats u
		SET credits = u.credits - LEAST(u.credits, $2),
		    updated_at = now()
		FROM (SELECT shop, credits FROM usage_stats WHERE shop = $1 FOR UPDATE) prev
		WHERE u.shop = prev.shop
		RETURNING LEAST(prev.credits, $2)
	`

	var consumed int
	err := r.db.conn.GetContext(ctx, &consumed, query, shop, amount)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrUsageStatNotFound
		}
		return 0, fmt.Errorf("failed to consume credits: %w", err)
	}

	return consumed, nil
}

// featureColumn maps a feature to its counter column. Whitelist, never
// interpolate caller input into SQL.
func featureColumn(feature models.Feature) (string, bool) {
	switch feature {
	case models.FeatureDescription:
		return "descriptions_generated", true
	case models.FeatureSEO:
		return "seo_generated", true
	default:
		return "", false
	}
}

// RecordUsage applies one metered batch as a single durable update: the
// lifetime counter goes up by total, the balance goes down by creditsConsumed
// (floored at zero), and the feature counter goes up by total when a feature
// is given. No partial application is visible to other readers.
func (r *UsageStatRepository) RecordUsage(ctx context.Context, shop string, total, creditsConsumed int, feature models.Feature) error {
	if total < 0 || creditsConsumed < 0 {
		return fmt.Errorf("deltas must be non-negative, got total=%d credits=%d", total, creditsConsumed)
	}

	featureSet := ""
	if feature != "" {
		col, ok := featureColumn(feature)
		if !ok {
			return fmt.Errorf("unknown feature %q", feature)
		}
		featureSet = fmt.Sprintf(", %s = %s + $2", col, col)
	}

	query := fmt.Sprintf(`
		UPDATE usage_stats
		SET monthly_usage_count = monthly_usage_count + $2,
		    credits = credits - LEAST(credits, $3),
		    updated_at = now()%s
		WHERE shop = $1
	`, featureSet)

	res, err := r.db.conn.ExecContext(ctx, query, shop, total, creditsConsumed)
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	if rows == 0 {
		return ErrUsageStatNotFound
	}

	return nil
}

// ApplySubscriptionUpdate upserts the external subscription bookkeeping
// fields. Create-if-absent carries the same single-grant guarantee as
// GetOrInit; nil fields leave existing values untouched.
func (r *UsageStatRepository) ApplySubscriptionUpdate(ctx context.Context, shop string, subscriptionID, status, name *string) error {
	query := `
		INSERT INTO usage_stats (shop, credits, billing_cycle_start,
		                         subscription_id, plan_status, plan_name)
		VALUES ($1, $2, now(), $3, $4, $5)
		ON CONFLICT (shop) DO UPDATE SET
			subscription_id = COALESCE(EXCLUDED.subscription_id, usage_stats.subscription_id),
			plan_status     = COALESCE(EXCLUDED.plan_status, usage_stats.plan_status),
			plan_name       = COALESCE(EXCLUDED.plan_name, usage_stats.plan_name),
			updated_at      = now()
	`

	_, err := r.db.conn.ExecContext(ctx, query, shop, r.initialCredits,
		nullable(subscriptionID), nullable(status), nullable(name))
	if err != nil {
		return fmt.Errorf("failed to apply subscription update: %w", err)
	}

	return nil
}

// Erase removes a shop's usage record. Only used for platform data-erasure
// requests.
func (r *UsageStatRepository) Erase(ctx context.Context, shop string) error {
	if _, err := r.db.conn.ExecContext(ctx, `DELETE FROM usage_stats WHERE shop = $1`, shop); err != nil {
		return fmt.Errorf("failed to erase usage stat: %w", err)
	}
	return nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
