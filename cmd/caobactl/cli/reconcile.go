package cli

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/caoba-erp/caoba-erp/internal/app"
	"github.com/caoba-erp/caoba-erp/jobs"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Enqueue a balance reconciliation sweep",
	Long: `Enqueue the sweep that recomputes every cached account and drawer
balance from movement history. The worker processes it asynchronously.`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().String("requested-by", "caobactl", "Actor recorded on the sweep")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	requestedBy, _ := cmd.Flags().GetString("requested-by")

	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	info, err := client.EnqueueLedgerReconcile(cmd.Context(), requestedBy)
	if err != nil {
		return err
	}
	fmt.Printf("enqueued %s (task %s, queue %s)\n", jobs.TaskLedgerReconcile, info.ID, info.Queue)
	return nil
}
