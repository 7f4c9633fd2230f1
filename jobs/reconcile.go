package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/caoba-erp/caoba-erp/internal/ledger"
	"github.com/caoba-erp/caoba-erp/internal/treasury"
)

// ReconcileJob runs the nightly balance sweep over accounts and drawers.
type ReconcileJob struct {
	ledger   *ledger.Service
	treasury *treasury.Service
	logger   *slog.Logger
}

// NewReconcileJob builds ReconcileJob instance.
func NewReconcileJob(ledgerSvc *ledger.Service, treasurySvc *treasury.Service, logger *slog.Logger) *ReconcileJob {
	return &ReconcileJob{ledger: ledgerSvc, treasury: treasurySvc, logger: logger}
}

// HandleLedgerReconcile recomputes every account and drawer balance and
// logs the drift it found.
func (j *ReconcileJob) HandleLedgerReconcile(ctx context.Context, t *asynq.Task) error {
	var payload LedgerReconcilePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return err
		}
	}
	if payload.RequestedBy == "" {
		payload.RequestedBy = "cron"
	}

	summary, err := j.ledger.RecomputeAll(ctx)
	if err != nil {
		return err
	}
	drawers, drifted, err := j.treasury.RecomputeAll(ctx)
	if err != nil {
		return err
	}

	j.logger.Info("reconciliation sweep finished",
		slog.String("requested_by", payload.RequestedBy),
		slog.Int("accounts", summary.Total),
		slog.Int("accounts_drifted", summary.Drifted),
		slog.Int("accounts_failed", summary.Failed),
		slog.Int("drawers", drawers),
		slog.Int("drawers_drifted", drifted),
	)
	return nil
}
