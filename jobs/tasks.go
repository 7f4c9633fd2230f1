package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// QueueDefault is the queue every Caoba task runs on.
const QueueDefault = "default"

// TaskLedgerReconcile recomputes every cached account and drawer balance.
// It is the healing backstop for swallowed dependency failures: any drift
// left by a failed post-write cascade is corrected on the next sweep.
const TaskLedgerReconcile = "ledger:reconcile"

// LedgerReconcilePayload identifies who asked for the sweep.
type LedgerReconcilePayload struct {
	RequestedBy string `json:"requested_by"`
}

// NewLedgerReconcileTask builds the reconciliation task.
func NewLedgerReconcileTask(requestedBy string) (*asynq.Task, error) {
	payload, err := json.Marshal(LedgerReconcilePayload{RequestedBy: requestedBy})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerReconcile, payload, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
