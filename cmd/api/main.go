package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/flashnotes/flashnotes/internal/config"
	"github.com/flashnotes/flashnotes/internal/database"
	"github.com/flashnotes/flashnotes/internal/mail"
	inats "github.com/flashnotes/flashnotes/internal/nats"
	iredis "github.com/flashnotes/flashnotes/internal/redis"
	"github.com/flashnotes/flashnotes/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// PostgreSQL
	if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
		return err
	}
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// NATS (optional)
	var natsClient *inats.Client
	if cfg.NATS.Enabled() {
		natsClient, err = inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			return err
		}
		defer natsClient.Close()
	} else {
		slog.Info("NATS disabled, quota events off and password reset mail sent inline")
	}

	smtpSender := mail.NewSMTPSender(cfg.SMTP)

	router, err := buildRouter(deps{
		cfg:         cfg,
		pool:        pool,
		redisClient: redisClient,
		natsClient:  natsClient,
		mailSender:  smtpSender,
	})
	if err != nil {
		return err
	}

	slog.Info("AI usage quota configured",
		"max_usage", cfg.AIQuota.MaxUsage,
		"window_days", cfg.AIQuota.RangeDays,
		"backend", cfg.AIQuota.Backend,
	)

	g, gctx := errgroup.WithContext(ctx)

	if natsClient != nil {
		consumer := mail.NewConsumer(smtpSender, inats.NewConsumerManager(natsClient.JetStream()))
		g.Go(func() error { return consumer.Start(gctx) })
	}

	srv := server.New(cfg.Server, router)
	g.Go(func() error { return srv.Run(gctx) })

	return g.Wait()
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
