package app

import (
	"log/slog"
	"time"

	"github.com/attaboy/payouts/internal/auth"
	"github.com/attaboy/payouts/internal/cache"
	"github.com/attaboy/payouts/internal/guard"
	"github.com/attaboy/payouts/internal/handler"
	adminhandler "github.com/attaboy/payouts/internal/handler/admin"
	"github.com/attaboy/payouts/internal/infra"
	"github.com/attaboy/payouts/internal/metrics"
	"github.com/attaboy/payouts/internal/notify"
	"github.com/attaboy/payouts/internal/provider"
	"github.com/attaboy/payouts/internal/repository"
	"github.com/attaboy/payouts/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Config   *infra.Config
	JWTMgr   *auth.JWTManager
	Registry *prometheus.Registry
	Logger   *slog.Logger

	// Optional overrides; nil builds the Xendit client and SendGrid notifier from Config.
	Provider service.PayoutProvider
	Notifier notify.Notifier
}

// Services is the wired payout pipeline shared by the API and the workers.
type Services struct {
	Payouts    *service.PayoutService
	Dispatcher *service.Dispatcher
	Reconciler *service.Reconciler
	Auth       *service.AdminAuthService
}

// NewServices builds repositories, guards, cache, metrics and services.
func NewServices(deps RouterDeps) *Services {
	cfg, logger := deps.Config, deps.Logger
	repos := repository.NewRepositories()

	payoutProvider := deps.Provider
	if payoutProvider == nil {
		payoutProvider = provider.NewXenditProvider(cfg.XenditAPIKey, cfg.XenditBaseURL, cfg.XenditCallbackToken, cfg.XenditTimeout, logger)
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.New(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.SendGridFromName, cfg.SendGridSandbox, logger)
	}

	var stats *metrics.PayoutMetrics
	if deps.Registry != nil {
		stats = metrics.NewPayoutMetrics(deps.Registry)
	}
	viewCache := cache.NewPayoutViewCache(deps.Redis, cfg.PayoutCacheTTL, logger)

	breaker := guard.NewCircuitBreaker(cfg.BreakerFailures, cfg.BreakerReset)
	inflight := guard.NewIdempotencyGuard(30 * time.Minute)

	dispatcher := service.NewDispatcher(deps.Pool, repos, payoutProvider, notifier, breaker, inflight, viewCache, stats, cfg.DispatchConcurrency, logger).
		WithCurrency(cfg.PayoutCurrency)

	return &Services{
		Payouts:    service.NewPayoutService(deps.Pool, repos, viewCache, stats, logger),
		Dispatcher: dispatcher,
		Reconciler: service.NewReconciler(deps.Pool, repos, payoutProvider, notifier, viewCache, stats, logger),
		Auth: service.NewAdminAuthService(deps.Pool, repos.AdminUsers, repos.Activity,
			guard.NewLoginLockout(deps.Pool, logger), deps.JWTMgr, logger),
	}
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	cfg, logger, jwtMgr := deps.Config, deps.Logger, deps.JWTMgr
	svc := NewServices(deps)

	authHandler := handler.NewAuthHandler(svc.Auth)
	webhookHandler := handler.NewWebhookHandler(svc.Reconciler, logger)
	payoutAdmin := adminhandler.NewPayoutAdminHandler(svc.Payouts, svc.Dispatcher, svc.Reconciler)
	batchAdmin := adminhandler.NewBatchAdminHandler(svc.Payouts, svc.Dispatcher)

	limiter := guard.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	throttle := handler.RateLimit(limiter)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(cfg.CORSAllowedOrigins))
	r.Use(handler.SecurityHeaders)
	r.Use(handler.JSONContentType)

	r.Get("/health", handler.HealthHandler(deps.Pool, deps.Redis))
	r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))

	// Webhooks (no auth; the callback token is checked by the reconciler)
	r.Post("/webhooks/xendit/payouts", webhookHandler.HandleXenditPayout)

	r.With(throttle).Post("/admin/auth/login", authHandler.Login)

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.AuthenticateAdmin(jwtMgr))

		r.Get("/auth/me", authHandler.Me)

		r.Route("/payouts", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleViewer))
				r.Get("/", payoutAdmin.History)
				r.Get("/eligible", payoutAdmin.Eligible)
				r.Get("/fees", payoutAdmin.Fees)
				r.Get("/export", payoutAdmin.Export)
				r.Get("/stats", payoutAdmin.Stats)
				r.Get("/analytics/threshold-impact", payoutAdmin.ThresholdImpact)
				r.Get("/analytics/payment-gaps", payoutAdmin.PaymentGaps)
				r.Get("/analytics/rollover", payoutAdmin.Rollover)
				r.Post("/preview", payoutAdmin.Preview)
				r.Post("/preview/monthly", payoutAdmin.MonthlyPreview)
				r.Get("/{id}", payoutAdmin.GetPayout)
			})
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleFinance), throttle)
				r.Post("/dispatch", payoutAdmin.Dispatch)
				r.Post("/retry", payoutAdmin.Retry)
				r.Post("/sync", payoutAdmin.Sync)
			})
		})

		r.Route("/batches", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleViewer))
				r.Get("/", batchAdmin.List)
				r.Get("/{id}", batchAdmin.Get)
				r.Get("/{id}/payouts", batchAdmin.Payouts)
			})
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleFinance), throttle)
				r.Post("/", batchAdmin.Create)
				r.Post("/{id}/process", batchAdmin.Process)
				r.Delete("/{id}", batchAdmin.Delete)
			})
			// Verification is reserved for a separate, more senior role than the creator.
			r.With(auth.RequireRole(auth.RoleAdmin), throttle).Post("/{id}/verify", batchAdmin.Verify)
		})
	})

	return r
}
