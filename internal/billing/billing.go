// Package billing decides, for each batch of generation items, how many are
// covered by remaining free credits and how many are billable, and whether
// the request may proceed.
package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"copymint/internal/config"
	"copymint/internal/models"
	"copymint/internal/utils"
)

// ErrBillingRequired is returned in enforcing mode when billable items remain
// and the shop has no active usage plan. Maps to HTTP 402.
var ErrBillingRequired = errors.New("no active billing plan")

// Ledger is the per-shop usage ledger consumed by the meter. Implemented by
// storage.UsageStatRepository.
type Ledger interface {
	GetOrInit(ctx context.Context, shop string) (*models.UsageStat, error)
	RecordUsage(ctx context.Context, shop string, total, creditsConsumed int, feature models.Feature) error
}

// UsagePlan is the active usage-pricing line item for a shop.
type UsagePlan struct {
	SubscriptionID string
	LineItemID     string
	Name           string
}

// SubscriptionSource reads the platform's subscription state and, in
// enforcing mode only, creates usage charges against it.
type SubscriptionSource interface {
	// ActiveUsagePlan returns the shop's usage-pricing plan, or nil when the
	// shop has none.
	ActiveUsagePlan(ctx context.Context, shop string) (*UsagePlan, error)

	// CreateUsageCharge records one usage charge against a plan line item.
	CreateUsageCharge(ctx context.Context, shop, lineItemID, description string, amountUSD float64, idempotencyKey string) error
}

// NoopSubscriptionSource reports no plan for every shop. Used when no admin
// API access is configured; with enforcement off the meter then simply logs
// would-be charges.
type NoopSubscriptionSource struct{}

func NewNoopSubscriptionSource() *NoopSubscriptionSource {
	return &NoopSubscriptionSource{}
}

func (s *NoopSubscriptionSource) ActiveUsagePlan(ctx context.Context, shop string) (*UsagePlan, error) {
	return nil, nil
}

func (s *NoopSubscriptionSource) CreateUsageCharge(ctx context.Context, shop, lineItemID, description string, amountUSD float64, idempotencyKey string) error {
	return nil
}

// Decision is the outcome of metering one batch.
type Decision struct {
	// CreditsUsed items were covered by the free-credit balance.
	CreditsUsed int
	// Billable items exceeded the balance.
	Billable int
	// ChargeUSD is the charge for the billable items: executed in enforcing
	// mode, logged only otherwise.
	ChargeUSD float64
	// Charged reports whether a usage charge was actually created.
	Charged bool
}

// Meter gates generation requests against the ledger and billing mode.
type Meter struct {
	ledger Ledger
	subs   SubscriptionSource
	cfg    config.BillingConfig
	logger *utils.Logger
}

// NewMeter creates a metering gate over the given ledger and subscription
// source.
func NewMeter(ledger Ledger, subs SubscriptionSource, cfg config.BillingConfig, logger *utils.Logger) *Meter {
	if logger == nil {
		logger = utils.NewLogger("billing")
	}
	return &Meter{
		ledger: ledger,
		subs:   subs,
		cfg:    cfg,
		logger: logger,
	}
}

// MeterGeneration meters a batch of count generation items for a shop.
//
// The shop's record is created with the free grant on first touch. Credits
// cover as many items as the balance allows; the remainder is billable. With
// enforcement off (managed pricing: the platform owns payment and forbids
// direct usage-record creation) the would-be charge is logged and the request
// proceeds -- requests are never blocked on payment in that mode. With
// enforcement on, billable items without an active usage plan fail with
// ErrBillingRequired, and charge creation failures propagate.
//
// The ledger update runs only after the permission decision. Its failure is
// logged and swallowed: stats drift is preferred over blocking the merchant.
// Callers should meter before the external generation call, so an attempt is
// charged whether or not the provider ultimately succeeds, and never meter
// the same batch twice.
func (m *Meter) MeterGeneration(ctx context.Context, shop string, count int, feature models.Feature) (*Decision, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", count)
	}

	stat, err := m.ledger.GetOrInit(ctx, shop)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage record: %w", err)
	}

	creditsToUse := count
	if stat.Credits < creditsToUse {
		creditsToUse = stat.Credits
	}

	dec := &Decision{
		CreditsUsed: creditsToUse,
		Billable:    count - creditsToUse,
	}

	if dec.Billable > 0 {
		dec.ChargeUSD = float64(dec.Billable) * m.cfg.UnitPriceUSD

		// A failure querying the billing subsystem is a configuration problem
		// and must block the generation rather than proceed with a wrong
		// charge.
		plan, err := m.subs.ActiveUsagePlan(ctx, shop)
		if err != nil {
			return nil, fmt.Errorf("failed to query active subscriptions: %w", err)
		}

		if m.cfg.Enforce {
			if plan == nil {
				return nil, ErrBillingRequired
			}

			description := fmt.Sprintf("AI generation (%d items)", dec.Billable)
			if err := m.subs.CreateUsageCharge(ctx, shop, plan.LineItemID, description, dec.ChargeUSD, uuid.NewString()); err != nil {
				return nil, fmt.Errorf("failed to create usage charge: %w", err)
			}
			dec.Charged = true
		} else {
			m.logger.Warn("charge skipped, payment managed by platform",
				"shop", shop,
				"items", dec.Billable,
				"amount_usd", dec.ChargeUSD)
		}
	} else {
		m.logger.Info("batch covered by free credits",
			"shop", shop,
			"credits_used", creditsToUse,
			"credits_remaining", stat.Credits-creditsToUse)
	}

	if err := m.ledger.RecordUsage(ctx, shop, count, creditsToUse, feature); err != nil {
		// Stats drift is preferred over blocking the merchant.
		m.logger.Error("usage ledger update failed", "shop", shop, "error", err)
	}

	return dec, nil
}
