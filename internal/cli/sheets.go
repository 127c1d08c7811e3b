package cli

import (
	"context"
	"fmt"

	"finanzen/internal/config"
	"finanzen/internal/sheets"
	gsheet "finanzen/internal/sheets/google"
	"finanzen/internal/sheets/memory"
)

// NewLedgerWriter returns the Google Sheets exporter when a spreadsheet is
// configured and an in-process sheet otherwise.
func NewLedgerWriter(ctx context.Context, cfg *config.Config) (sheets.LedgerWriter, error) {
	if !cfg.SheetsEnabled() {
		return memory.New(), nil
	}
	creds, err := gsheet.LoadCredentials(cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile)
	if err != nil {
		return nil, err
	}
	client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, creds)
	if err != nil {
		return nil, fmt.Errorf("init sheets client: %w", err)
	}
	return client, nil
}
