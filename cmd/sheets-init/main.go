// Command sheets-init prepares a spreadsheet for the sheets backend by
// writing the header rows of the transactions and budgets sheets.
package main

import (
	"context"
	"errors"
	"time"

	"budgetwatch/internal/cli"
	"budgetwatch/internal/config"
	applog "budgetwatch/internal/log"
	"budgetwatch/internal/ports/google"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg, applog.ComponentSheets)
	if cfg.GoogleSpreadsheetID == "" {
		cli.Fatal(logger, "Missing configuration", errors.New("GOOGLE_SPREADSHEET_ID is required"))
	}

	ctx, stop := cli.WithShutdownSignals(context.Background(), logger)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	client, err := google.New(ctx, google.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		TransactionsSheet:  cfg.GoogleSheetName,
		BudgetsSheet:       cfg.GoogleBudgetSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
	}

	initialized, err := client.EnsureHeaders(ctx)
	if err != nil {
		cli.Fatal(logger, "Failed to write sheet headers", err)
	}
	if len(initialized) == 0 {
		logger.Info("Spreadsheet already initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		return
	}
	logger.Info("Sheet headers written", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheets", initialized)
}
