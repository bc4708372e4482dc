package models

import (
	"database/sql"
	"time"
)

// Feature identifies which generation feature a metered request belongs to.
// It selects the per-feature counter bumped alongside the lifetime total.
type Feature string

const (
	FeatureDescription Feature = "description"
	FeatureSEO         Feature = "seo"
)

// UsageStat is the per-shop metering record. Credits are granted once at
// creation and only ever go down; the usage counters only ever go up.
type UsageStat struct {
	Shop                  string         `db:"shop"`
	Credits               int            `db:"credits"`
	MonthlyUsageCount     int            `db:"monthly_usage_count"`
	DescriptionsGenerated int            `db:"descriptions_generated"`
	SEOGenerated          int            `db:"seo_generated"`
	BillingCycleStart     time.Time      `db:"billing_cycle_start"`
	SubscriptionID        sql.NullString `db:"subscription_id"`
	PlanStatus            sql.NullString `db:"plan_status"`
	PlanName              sql.NullString `db:"plan_name"`
	CreatedAt             time.Time      `db:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at"`
}
