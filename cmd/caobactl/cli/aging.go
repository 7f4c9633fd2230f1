package cli

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/caoba-erp/caoba-erp/internal/app"
	"github.com/caoba-erp/caoba-erp/internal/payables"
	"github.com/caoba-erp/caoba-erp/internal/shared"
)

var agingCmd = &cobra.Command{
	Use:   "aging",
	Short: "Print the accounts-payable aging report",
	Long:  `Group outstanding supplier documents into overdue buckets (current, 1-30, 31-60, 61-90, 90+) as of a reference date.`,
	RunE:  runAging,
}

func init() {
	rootCmd.AddCommand(agingCmd)
	agingCmd.Flags().String("as-of", "", "Reference date (YYYY-MM-DD, default: today)")
}

func runAging(cmd *cobra.Command, args []string) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}

	var asOf time.Time
	if s, _ := cmd.Flags().GetString("as-of"); s != "" {
		asOf, err = time.Parse("2006-01-02", s)
		if err != nil {
			return fmt.Errorf("invalid as-of date: %w", err)
		}
	}

	pool, err := pgxpool.New(cmd.Context(), cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	service := payables.NewService(payables.NewRepository(pool))
	bucket, err := service.CalculateAging(cmd.Context(), asOf)
	if err != nil {
		return err
	}

	fmt.Println("Accounts-payable aging")
	fmt.Printf("  current:  %s\n", shared.FormatDOP(bucket.Current))
	fmt.Printf("  1-30:     %s\n", shared.FormatDOP(bucket.Bucket30))
	fmt.Printf("  31-60:    %s\n", shared.FormatDOP(bucket.Bucket60))
	fmt.Printf("  61-90:    %s\n", shared.FormatDOP(bucket.Bucket90))
	fmt.Printf("  90+:      %s\n", shared.FormatDOP(bucket.Bucket120))
	return nil
}
