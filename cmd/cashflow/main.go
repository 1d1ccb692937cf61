package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"cashflow/internal/config"
	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/services"
	"cashflow/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "configuration validation failed:", err)
		os.Exit(1)
	}

	logger := log.New(log.Config{Level: cfg.LogLevel, Component: log.ComponentApp})
	logger.Info("Starting cashflow", log.FieldOperation, log.OpStartup)

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ledger := services.NewLedger(repo,
		services.WithHorizon(cfg.ForecastHorizonMonths),
		services.WithLogger(logger))

	ctx := context.Background()
	now := time.Now()

	// Catch up commits, forecasts and settlements before reporting. The run
	// is idempotent, so doing it on every start is harmless.
	if err := ledger.RunMonthlyRollover(ctx, now); err != nil {
		logger.Error("Monthly rollover failed", "error", err, log.FieldOperation, log.OpRollover)
		os.Exit(1)
	}

	if err := printReport(ctx, ledger, now); err != nil {
		logger.Error("Report failed", "error", err)
		os.Exit(1)
	}
}

func printReport(ctx context.Context, ledger *services.Ledger, now time.Time) error {
	lines, err := ledger.TransactionsWithRunningBalance(ctx, services.OrderByPayed)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tDESCRIPTION\tAMOUNT\tSTATUS\tBALANCE")
	for _, line := range lines {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			line.DatePayed.Format("2006-01-02"),
			line.Description,
			line.Amount,
			line.Status,
			line.RunningBalance)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	month := core.MonthOf(now)
	statuses, err := ledger.BudgetStatuses(ctx, month)
	if err != nil {
		return fmt.Errorf("load budgets: %w", err)
	}
	if len(statuses) == 0 {
		return nil
	}

	fmt.Printf("\nBudgets for %s\n", month.Key())
	bw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(bw, "BUDGET\tMONTHLY\tREMAINING")
	for _, s := range statuses {
		fmt.Fprintf(bw, "%s\t%s\t%s\n", s.Subscription.Name, s.Subscription.MonthlyAmount, s.Remaining.Abs())
	}
	return bw.Flush()
}
