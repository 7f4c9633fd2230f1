package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/caoba-erp/caoba-erp/internal/app"
	"github.com/caoba-erp/caoba-erp/internal/invoicing"
	"github.com/caoba-erp/caoba-erp/internal/ledger"
	"github.com/caoba-erp/caoba-erp/internal/payables"
	"github.com/caoba-erp/caoba-erp/internal/shared"
	"github.com/caoba-erp/caoba-erp/internal/treasury"
	"github.com/caoba-erp/caoba-erp/jobs"
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

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	taxRate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		logger.Error("parse tax rate", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := shared.NewAuditLogger(dbpool)

	treasuryRepo := treasury.NewRepository(dbpool)
	treasuryService := treasury.NewService(treasuryRepo, logger)
	treasuryHandler := treasury.NewHandler(logger, treasuryService)

	payablesRepo := payables.NewRepository(dbpool)
	payablesService := payables.NewService(payablesRepo)
	payablesHandler := payables.NewHandler(logger, payablesService)

	ledgerRepo := ledger.NewRepository(dbpool)
	ledgerService := ledger.NewService(ledgerRepo, treasuryService, payablesService, auditLogger, logger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	statsCache := invoicing.NewStatsCache(redisClient, cfg.StatsCacheTTL)
	invoicingRepo := invoicing.NewRepository(dbpool)
	invoicingService := invoicing.NewService(invoicing.ServiceParams{
		Repo:    invoicingRepo,
		Numbers: invoicing.NewSequenceNumberGenerator(dbpool),
		Ledger:  ledgerService,
		Stats:   statsCache,
		Logger:  logger,
		Prefix:  cfg.InvoicePrefix,
		TaxRate: taxRate,
	})
	invoicingHandler := invoicing.NewHandler(logger, invoicingService)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(jobClient, inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		LedgerHandler:    ledgerHandler,
		TreasuryHandler:  treasuryHandler,
		PayablesHandler:  payablesHandler,
		InvoicingHandler: invoicingHandler,
		JobHandler:       jobHandler,
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
