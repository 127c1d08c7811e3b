// Package sheets exports the ledger to a spreadsheet. One sheet per year
// holds one row per transaction, keyed by the transaction id.
package sheets

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"finanzen/internal/remote"
)

// Row is one exported ledger line.
type Row struct {
	ID          string
	Date        time.Time
	Name        string
	Category    string
	AmountCents int64
}

// LedgerRow maps a transaction row to its exported form. category is the
// display name of tx.CategoryID.
func LedgerRow(tx remote.TransactionRow, category string) Row {
	return Row{
		ID:          tx.ID,
		Date:        tx.OccurredAt,
		Name:        tx.Name,
		Category:    category,
		AmountCents: tx.AmountCents,
	}
}

// Values returns the cells of r in column order: date, name, category,
// amount, id.
func (r Row) Values() []any {
	return []any{
		r.Date.Format("02.01.2006"),
		r.Name,
		r.Category,
		decimal.New(r.AmountCents, -2).StringFixed(2),
		r.ID,
	}
}

// Ports for outbound adapters.
type (
	// LedgerWriter inserts or replaces rows by id.
	LedgerWriter interface {
		Upsert(ctx context.Context, r Row) (rowRef string, err error)
		// Remove deletes the row with id from the sheet of year. A missing
		// row is not an error.
		Remove(ctx context.Context, year int, id string) error
	}
)
