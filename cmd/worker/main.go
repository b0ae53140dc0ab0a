package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/orbitshop/orbitshop/internal/app"
	"github.com/orbitshop/orbitshop/internal/orders"
	"github.com/orbitshop/orbitshop/internal/payments"
	"github.com/orbitshop/orbitshop/internal/platform/db"
	"github.com/orbitshop/orbitshop/internal/shared"
	"github.com/orbitshop/orbitshop/internal/slipverify"
	"github.com/orbitshop/orbitshop/jobs"
	"github.com/orbitshop/orbitshop/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := os.MkdirAll(cfg.ReceiptDir, 0o755); err != nil {
		logger.Error("create receipt dir", slog.Any("error", err))
		os.Exit(1)
	}

	idempotencyStore := shared.NewIdempotencyStore(pool)
	auditLogger := shared.NewAuditLogger(pool)

	taskClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Warn("task client close", slog.Any("error", err))
		}
	}()

	verifier := slipverify.NewClient(cfg.SlipVerifyURL, cfg.SlipVerifyAPIKey, cfg.SlipVerifyTimeout)
	paymentsRepo := payments.NewRepository(pool)
	paymentsService := payments.NewService(paymentsRepo, verifier, taskClient, idempotencyStore, auditLogger, logger)

	ordersRepo := orders.NewRepository(pool)
	pdfClient := report.NewClient(cfg.GotenbergURL)

	receiptRenderer := jobs.NewReceiptRenderer(paymentsRepo, ordersRepo, pdfClient, cfg.ReceiptDir, logger)
	slipVerifier := jobs.NewSlipVerifier(paymentsService, logger)
	cleaner := jobs.NewIdempotencyCleaner(idempotencyStore, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReceiptRender, Handler: receiptRenderer.Handle},
			{Type: jobs.TaskSlipVerification, Handler: slipVerifier.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleaner.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: jobs.NewIdempotencyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
