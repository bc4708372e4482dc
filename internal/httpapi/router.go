// Package httpapi wires the HTTP surface: generation endpoints for the
// embedded app, usage lookup, platform webhooks and operational endpoints.
package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"copymint/internal/billing"
	"copymint/internal/config"
	"copymint/internal/credentials"
	"copymint/internal/generation"
	"copymint/internal/metrics"
	"copymint/internal/middleware"
	"copymint/internal/models"
	"copymint/internal/queue"
	"copymint/internal/ratelimit"
	"copymint/internal/shopify"
	"copymint/internal/storage"
	"copymint/internal/utils"
)

// Generator runs one content generation with credential failover.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Result, error)
}

// Meterer decides how a generation batch splits between free credits and
// billable units, and records the usage.
type Meterer interface {
	MeterGeneration(ctx context.Context, shop string, count int, feature models.Feature) (*billing.Decision, error)
}

// UsageStore is the slice of the usage repository the handlers need.
type UsageStore interface {
	GetOrInit(ctx context.Context, shop string) (*models.UsageStat, error)
	ApplySubscriptionUpdate(ctx context.Context, shop string, subscriptionID, status, name *string) error
	Erase(ctx context.Context, shop string) error
}

// AuditSink accepts audit records for asynchronous persistence.
type AuditSink interface {
	Enqueue(ctx context.Context, rec *models.AuditRecord) error
}

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Cfg        *config.Config
	Logger     *utils.Logger
	DB         *storage.DB
	Redis      *redis.Client
	UsageStats UsageStore
	Generator  Generator
	Meter      Meterer
	RateLimit  ratelimit.Limiter
	Audit      AuditSink
	Metrics    *metrics.Metrics
	// AuditWorker is kept for shutdown; handlers only see the AuditSink.
	AuditWorker *storage.AuditQueueWorker
	// ProviderName labels provider-failure metrics.
	ProviderName string
}

// NewRouter creates an HTTP router with all dependencies wired up.
func NewRouter(cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	logger := utils.NewLogger("copymint")

	db, err := storage.NewDB(storage.DBConfig{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Redis backs the rate limiter and, optionally, the audit queue. It is
	// only dialed when something needs it.
	var redisClient *redis.Client
	needRedis := cfg.RateLimit.Enabled || cfg.Audit.Backend == "redis"
	if needRedis {
		redisClient, err = storage.NewRedisClient(storage.RedisConfig{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
	}

	usageStats := db.NewUsageStatRepository(cfg.Billing.FreeCredits)
	auditRepo := db.NewAuditRepository()

	// Audit queue and worker.
	auditQueueCfg := queue.DefaultConfig("audit")
	var auditQueue queue.Queue
	var auditDLQ queue.DeadLetterQueue
	if cfg.Audit.Backend == "redis" {
		auditQueue, err = queue.NewRedisQueue(redisClient, auditQueueCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create audit queue: %w", err)
		}
		auditDLQ, err = queue.NewRedisDeadLetterQueue(redisClient, auditQueueCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create audit DLQ: %w", err)
		}
	} else {
		auditQueue = queue.NewMemoryQueue(auditQueueCfg)
		auditDLQ = queue.NewMemoryDeadLetterQueue()
	}
	auditWorker := storage.NewAuditQueueWorker(auditQueue, auditDLQ, auditRepo, auditQueueCfg)
	auditWorker.Start(context.Background())

	// Generation provider and credential pool.
	var provider generation.Provider
	var pool generation.PoolFunc
	switch cfg.Provider.Backend {
	case "openai":
		provider = generation.NewOpenAIProvider()
		pool = generation.SingleKeyPool(cfg.Provider.OpenAIAPIKey)
	case "gemini":
		provider = generation.NewGeminiProvider(cfg.Provider.RequestTimeout)
		pool = credentials.Load
	default:
		return nil, nil, fmt.Errorf("unknown generation provider: %q", cfg.Provider.Backend)
	}
	generator := generation.NewClient(provider, pool, logger)

	// Metering gate. The platform client doubles as the subscription source;
	// without an admin token there is nothing to query, so fall back to the
	// no-plan source.
	var subs billing.SubscriptionSource = billing.NewNoopSubscriptionSource()
	if cfg.Shopify.AdminToken != "" || cfg.Shopify.AdminURL != "" {
		subs = shopify.NewClient(cfg.Shopify, logger)
	}
	meter := billing.NewMeter(usageStats, subs, cfg.Billing, logger)

	var limiter ratelimit.Limiter = ratelimit.NewNoopLimiter()
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewShopLimiter(redisClient, cfg.RateLimit.PerMinute)
	}

	deps := &Dependencies{
		Cfg:          cfg,
		Logger:       logger,
		DB:           db,
		Redis:        redisClient,
		UsageStats:   usageStats,
		Generator:    generator,
		Meter:        meter,
		RateLimit:    limiter,
		Audit:        auditWorker,
		Metrics:      metrics.New(),
		AuditWorker:  auditWorker,
		ProviderName: provider.Name(),
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg)

	return mux, deps, nil
}

// Shutdown stops background workers and closes shared clients.
func (d *Dependencies) Shutdown() {
	if d.AuditWorker != nil {
		if err := d.AuditWorker.Stop(); err != nil {
			d.Logger.Error("failed to stop audit worker", "error", err)
		}
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies, cfg *config.Config) {
	session := middleware.SessionMiddleware(cfg.Shopify)

	mux.Handle("/api/generate/description", session(http.HandlerFunc(deps.handleGenerateDescription)))
	mux.Handle("/api/generate/seo", session(http.HandlerFunc(deps.handleGenerateSEO)))
	mux.Handle("/api/usage", session(http.HandlerFunc(deps.handleUsage)))
	mux.Handle("/api/ping", session(http.HandlerFunc(deps.handlePing)))

	mux.HandleFunc("/api/webhooks", deps.handleWebhook)

	mux.HandleFunc("/healthz", deps.handleHealth)
	mux.Handle("/metrics", deps.Metrics.Handler())
}

func (d *Dependencies) handlePing(w http.ResponseWriter, r *http.Request) {
	shop, _ := middleware.GetShop(r.Context())
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok", "shop": shop})
}

func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	if d.DB != nil {
		if err := d.DB.Health(r.Context()); err != nil {
			utils.RespondWithError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
