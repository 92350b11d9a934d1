package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/flashnotes/flashnotes/internal/api"
	"github.com/flashnotes/flashnotes/internal/auth"
	"github.com/flashnotes/flashnotes/internal/config"
	"github.com/flashnotes/flashnotes/internal/database"
	"github.com/flashnotes/flashnotes/internal/mail"
	"github.com/flashnotes/flashnotes/internal/middleware"
	inats "github.com/flashnotes/flashnotes/internal/nats"
	"github.com/flashnotes/flashnotes/internal/quota"
	iredis "github.com/flashnotes/flashnotes/internal/redis"
	"github.com/flashnotes/flashnotes/internal/users"
)

// deps are the live connections the HTTP surface is built on. NATS is
// optional; a nil natsClient disables events and queued mail.
type deps struct {
	cfg         *config.Config
	pool        *pgxpool.Pool
	redisClient *redis.Client
	natsClient  *inats.Client
	mailSender  mail.Sender
}

func newQuotaStore(cfg config.AIQuotaConfig, pool *pgxpool.Pool, rdb redis.Cmdable) (quota.Store, error) {
	switch cfg.Backend {
	case config.QuotaBackendPostgres:
		return quota.NewPostgresStore(pool), nil
	case config.QuotaBackendRedis:
		return quota.NewRedisStore(rdb), nil
	default:
		return nil, fmt.Errorf("unknown quota backend %q", cfg.Backend)
	}
}

// buildRouter wires services and handlers into the API router.
func buildRouter(d deps) (http.Handler, error) {
	cfg := d.cfg

	var publisher *inats.Publisher
	if d.natsClient != nil {
		publisher = inats.NewPublisher(d.natsClient.JetStream())
	}

	// Users + auth
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
		cfg.JWT.PasswordResetExpiry,
	)
	authSvc := auth.NewService(jwtManager, d.redisClient)
	userSvc := users.NewService(users.NewRepository(d.pool))
	userHandler := users.NewHandler(userSvc, auth.UserIDFromContext, auth.HashPassword)

	// Password reset mail goes through JetStream when available.
	var mailer auth.Mailer = mail.NewDirectMailer(d.mailSender, cfg.SMTP.Sender)
	if publisher != nil {
		mailer = mail.NewQueuedMailer(publisher, cfg.SMTP.Sender)
	}
	resetSvc := auth.NewResetService(userSvc, jwtManager, mailer, authSvc, cfg.Frontend.BaseURL)
	if publisher != nil {
		resetSvc.WithEvents(publisher)
	}
	authHandler := auth.NewHandler(authSvc, userSvc, resetSvc)

	// AI usage quota
	quotaCfg := quota.Config{MaxUsageAllowed: cfg.AIQuota.MaxUsage, Window: cfg.AIQuota.Window()}
	if err := quotaCfg.Validate(); err != nil {
		return nil, fmt.Errorf("quota config: %w", err)
	}
	store, err := newQuotaStore(cfg.AIQuota, d.pool, d.redisClient)
	if err != nil {
		return nil, err
	}
	var ledgerOpts []quota.Option
	if publisher != nil {
		ledgerOpts = append(ledgerOpts, quota.WithEvents(publisher))
	}
	ledger := quota.NewLedger(store, quotaCfg, ledgerOpts...)
	quotaHandler := quota.NewHandler(ledger, auth.UserIDFromContext, userSvc)

	rateLimiter := middleware.NewRateLimiter(d.redisClient, "auth", cfg.RateLimit.AuthMax, cfg.RateLimit.AuthWindowSec)

	healthChecks := map[string]api.HealthCheck{
		"database": func(ctx context.Context) error { return database.HealthCheck(ctx, d.pool) },
		"redis":    func(ctx context.Context) error { return iredis.HealthCheck(ctx, d.redisClient) },
		"nats":     nil,
	}
	if d.natsClient != nil {
		nc := d.natsClient
		healthChecks["nats"] = func(context.Context) error {
			if !nc.Healthy() {
				return fmt.Errorf("nats disconnected")
			}
			return nil
		}
	}

	return api.NewRouter(api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		AuthRateLimiter:    rateLimiter.Middleware,
		HealthChecks:       healthChecks,
	}, api.HandlerSet{
		Register:             authHandler.Register,
		Login:                authHandler.Login,
		LoginForm:            authHandler.LoginForm,
		Refresh:              authHandler.Refresh,
		Logout:               authHandler.Logout,
		PasswordResetRequest: authHandler.PasswordResetRequest,
		PasswordResetConfirm: authHandler.PasswordResetConfirm,

		GetMe:    userHandler.GetMe,
		UpdateMe: userHandler.UpdateMe,

		GetAIQuota:     quotaHandler.GetStatus,
		ConsumeAIUsage: quotaHandler.Consume,
		AIQuotaGate:    quotaHandler.Gate,

		AuthMiddleware: auth.Middleware(authSvc),
	}), nil
}
