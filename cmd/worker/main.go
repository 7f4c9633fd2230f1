package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caoba-erp/caoba-erp/internal/app"
	"github.com/caoba-erp/caoba-erp/internal/ledger"
	"github.com/caoba-erp/caoba-erp/internal/payables"
	"github.com/caoba-erp/caoba-erp/internal/shared"
	"github.com/caoba-erp/caoba-erp/internal/treasury"
	"github.com/caoba-erp/caoba-erp/jobs"
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

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditLogger := shared.NewAuditLogger(pool)

	treasuryRepo := treasury.NewRepository(pool)
	treasuryService := treasury.NewService(treasuryRepo, logger)

	payablesRepo := payables.NewRepository(pool)
	payablesService := payables.NewService(payablesRepo)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, treasuryService, payablesService, auditLogger, logger)

	reconcileJob := jobs.NewReconcileJob(ledgerService, treasuryService, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:     asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:        logger,
		Reconcile:     reconcileJob,
		ReconcileCron: cfg.ReconcileCron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
