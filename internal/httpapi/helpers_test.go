package httpapi

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"

	"copymint/internal/billing"
	"copymint/internal/config"
	"copymint/internal/generation"
	"copymint/internal/metrics"
	"copymint/internal/models"
	"copymint/internal/ratelimit"
	"copymint/internal/shopify"
	"copymint/internal/utils"
)

const (
	testShop      = "store.myshopify.com"
	testAPISecret = "test-api-secret"
)

type fakeGenerator struct {
	mu       sync.Mutex
	text     string
	err      error
	attempts int
	prompts  []string
}

func (g *fakeGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, req.Prompt)
	if g.err != nil {
		return nil, g.err
	}
	attempts := g.attempts
	if attempts == 0 {
		attempts = 1
	}
	res := &generation.Result{Text: g.text}
	for i := 0; i < attempts; i++ {
		res.Attempts = append(res.Attempts, generation.Attempt{KeyLast4: "beef"})
	}
	return res, nil
}

type fakeMeter struct {
	decision *billing.Decision
	err      error
	calls    int
	lastFeat models.Feature
}

func (m *fakeMeter) MeterGeneration(ctx context.Context, shop string, count int, feature models.Feature) (*billing.Decision, error) {
	m.calls++
	m.lastFeat = feature
	if m.err != nil {
		return nil, m.err
	}
	if m.decision != nil {
		return m.decision, nil
	}
	return &billing.Decision{CreditsUsed: count}, nil
}

type fakeUsageStore struct {
	stat      *models.UsageStat
	getErr    error
	applied   []string
	erased    []string
	applyErr  error
	eraseErr  error
	lastSubID *string
}

func (s *fakeUsageStore) GetOrInit(ctx context.Context, shop string) (*models.UsageStat, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.stat != nil {
		return s.stat, nil
	}
	return &models.UsageStat{Shop: shop, Credits: 30}, nil
}

func (s *fakeUsageStore) ApplySubscriptionUpdate(ctx context.Context, shop string, subscriptionID, status, name *string) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	s.applied = append(s.applied, shop)
	s.lastSubID = subscriptionID
	return nil
}

func (s *fakeUsageStore) Erase(ctx context.Context, shop string) error {
	if s.eraseErr != nil {
		return s.eraseErr
	}
	s.erased = append(s.erased, shop)
	return nil
}

type fakeAuditSink struct {
	mu      sync.Mutex
	records []*models.AuditRecord
	err     error
}

func (s *fakeAuditSink) Enqueue(ctx context.Context, rec *models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, shop string) (bool, error) { return false, nil }

type brokenLimiter struct{}

func (brokenLimiter) Allow(ctx context.Context, shop string) (bool, error) {
	return false, context.DeadlineExceeded
}

// testDeps builds Dependencies around fakes and returns the wired mux.
func testDeps(t *testing.T) (*Dependencies, *http.ServeMux, *fakeGenerator, *fakeMeter, *fakeUsageStore, *fakeAuditSink) {
	t.Helper()

	cfg := &config.Config{
		Provider: config.ProviderConfig{Model: "gemini-2.5-flash"},
		Shopify:  config.ShopifyConfig{APISecret: testAPISecret},
	}
	gen := &fakeGenerator{text: "A fine description."}
	meter := &fakeMeter{}
	store := &fakeUsageStore{}
	audit := &fakeAuditSink{}

	deps := &Dependencies{
		Cfg:          cfg,
		Logger:       utils.NewLogger("httpapi-test", utils.Critical),
		UsageStats:   store,
		Generator:    gen,
		Meter:        meter,
		RateLimit:    ratelimit.NewNoopLimiter(),
		Audit:        audit,
		Metrics:      metrics.New(),
		ProviderName: "gemini",
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg)
	return deps, mux, gen, meter, store, audit
}

func sessionTokenFor(t *testing.T, shop string) string {
	t.Helper()
	claims := shopify.SessionClaims{
		Dest: "https://" + shop,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAPISecret))
	require.NoError(t, err)
	return signed
}
