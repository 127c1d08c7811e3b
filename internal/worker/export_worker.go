// Package worker turns change messages into spreadsheet updates.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finanzen/internal/amqp"
	"finanzen/internal/cache"
	"finanzen/internal/engine"
	applog "finanzen/internal/log"
	"finanzen/internal/remote"
	"finanzen/internal/sheets"
)

// ExportWorker mirrors ledger rows into the spreadsheet. The remote store is
// the source of truth; messages only say which row to read.
type ExportWorker struct {
	store      remote.Reader
	sheets     sheets.LedgerWriter
	categories *cache.LRUCache[string]
	now        func() time.Time
}

func NewExportWorker(store remote.Reader, writer sheets.LedgerWriter, categoryTTL time.Duration) *ExportWorker {
	return &ExportWorker{
		store:      store,
		sheets:     writer,
		categories: cache.NewLRUCache[string](256, categoryTTL),
		now:        time.Now,
	}
}

// HandleChange processes one change message. Only ledger changes touch the
// spreadsheet; everything else is acknowledged and skipped.
func (w *ExportWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	if msg.Entity != engine.EntityTransaction {
		logger(ctx).DebugContext(ctx, "Skipping change without ledger effect", "entity", msg.Entity, "op", msg.Op, "id", msg.ID)
		return nil
	}

	switch msg.Op {
	case engine.OpCreate, engine.OpUpdate:
		tx, err := w.store.GetTransaction(ctx, msg.ID)
		if errors.Is(err, remote.ErrNotFound) {
			logger(ctx).InfoContext(ctx, "Transaction deleted before export", "id", msg.ID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("get transaction: %w", err)
		}
		return w.export(ctx, *tx)
	case engine.OpDelete:
		// The row is gone remotely so its date is unknown. Deletes reach back
		// one year to cover entries from December removed in January.
		year := w.now().Year()
		if !msg.Timestamp.IsZero() {
			year = msg.Timestamp.Year()
		}
		for _, y := range []int{year, year - 1} {
			if err := w.sheets.Remove(ctx, y, msg.ID); err != nil {
				return fmt.Errorf("remove ledger row: %w", err)
			}
		}
		logger(ctx).InfoContext(ctx, "Removed ledger row", "id", msg.ID, "year", year)
		return nil
	}
	return nil
}

// ExportAll writes every transaction of userID, oldest first.
func (w *ExportWorker) ExportAll(ctx context.Context, userID string) (int, error) {
	txs, err := w.store.ListTransactions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}
	exported := 0
	for i := len(txs) - 1; i >= 0; i-- {
		if err := w.export(ctx, txs[i]); err != nil {
			return exported, err
		}
		exported++
	}
	logger(ctx).InfoContext(ctx, "Ledger export completed", "user_id", userID, "rows", exported)
	return exported, nil
}

func (w *ExportWorker) export(ctx context.Context, tx remote.TransactionRow) error {
	category, err := w.categoryName(ctx, tx.CategoryID)
	if err != nil {
		return err
	}
	ref, err := w.sheets.Upsert(ctx, sheets.LedgerRow(tx, category))
	if err != nil {
		return fmt.Errorf("upsert ledger row: %w", err)
	}
	logger(ctx).InfoContext(ctx, "Exported ledger row",
		"id", tx.ID,
		"sheets_ref", ref,
		"amount_cents", tx.AmountCents)
	return nil
}

// categoryName resolves a category id through the cache, reloading the
// category list on a miss. Unknown ids export with an empty category.
func (w *ExportWorker) categoryName(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	if name, ok := w.categories.Get(id); ok {
		return name, nil
	}
	rows, err := w.store.ListActiveCategories(ctx)
	if err != nil {
		return "", fmt.Errorf("list categories: %w", err)
	}
	for _, c := range rows {
		w.categories.Set(c.ID, c.Name)
	}
	name, _ := w.categories.Get(id)
	return name, nil
}

func logger(ctx context.Context) *applog.Logger {
	return applog.FromContext(ctx).WithComponent(applog.ComponentWorker)
}
