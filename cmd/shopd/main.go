package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/orbitshop/orbitshop/internal/app"
	"github.com/orbitshop/orbitshop/internal/carts"
	"github.com/orbitshop/orbitshop/internal/catalog/products"
	"github.com/orbitshop/orbitshop/internal/orders"
	"github.com/orbitshop/orbitshop/internal/payments"
	"github.com/orbitshop/orbitshop/internal/platform/cache"
	"github.com/orbitshop/orbitshop/internal/platform/db"
	"github.com/orbitshop/orbitshop/internal/shared"
	"github.com/orbitshop/orbitshop/internal/slipverify"
	"github.com/orbitshop/orbitshop/internal/stock"
	"github.com/orbitshop/orbitshop/internal/vat"
	"github.com/orbitshop/orbitshop/internal/vouchers"
	"github.com/orbitshop/orbitshop/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	validate := validator.New()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	vatCalc, err := vat.NewCalculator(cfg.DefaultVATRate)
	if err != nil {
		logger.Error("init vat calculator", slog.Any("error", err))
		os.Exit(1)
	}

	taskClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Warn("task client close", slog.Any("error", err))
		}
	}()

	productsRepo := products.NewRepository(pool)
	productsCache := products.NewCache(redisClient, cfg.ProductCacheTTL)
	productsService := products.NewService(productsRepo, productsCache)
	productsHandler := products.NewHandler(logger, productsService)

	stockRepo := stock.NewRepository(pool)
	ledger := stock.NewLedger()
	stockService := stock.NewService(pool, stockRepo, ledger, productsService, auditLogger, logger)
	stockHandler := stock.NewHandler(logger, stockService, validate)

	voucherEvaluator := vouchers.NewEvaluator()
	vouchersRepo := vouchers.NewRepository(pool)

	cartsRepo := carts.NewRepository(pool)
	cartsService := carts.NewService(cartsRepo, vouchersRepo, voucherEvaluator)
	cartsHandler := carts.NewHandler(logger, cartsService, validate)

	ordersRepo := orders.NewRepository(pool)
	ordersService := orders.NewService(ordersRepo, voucherEvaluator, ledger, vatCalc, cfg.ShippingFlatFee, productsService, auditLogger, logger)
	ordersHandler := orders.NewHandler(logger, ordersService, validate)

	verifier := slipverify.NewClient(cfg.SlipVerifyURL, cfg.SlipVerifyAPIKey, cfg.SlipVerifyTimeout)
	paymentsRepo := payments.NewRepository(pool)
	paymentsService := payments.NewService(paymentsRepo, verifier, taskClient, idempotencyStore, auditLogger, logger)
	paymentsHandler := payments.NewHandler(logger, paymentsService, validate)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		OrdersHandler:   ordersHandler,
		CartsHandler:    cartsHandler,
		PaymentsHandler: paymentsHandler,
		ProductsHandler: productsHandler,
		StockHandler:    stockHandler,
		JobHandler:      jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
