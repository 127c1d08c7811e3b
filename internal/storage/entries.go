package storage

import (
	"context"
	"fmt"

	"finanzen/internal/remote"
)

// Income sources and fixed expenses share one row shape; table selects which.
const (
	incomeTable = "income_sources"
	fixedTable  = "fixed_expenses"
)

func (r *SQLiteRepository) listEntries(ctx context.Context, table, userID string) ([]remote.EntryRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, type, amount_cents FROM `+table+` WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	out := []remote.EntryRow{}
	for rows.Next() {
		var e remote.EntryRow
		if err := rows.Scan(&e.ID, &e.UserID, &e.Type, &e.AmountCents); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) createEntry(ctx context.Context, table string, e remote.EntryRow) (remote.EntryRow, error) {
	e.ID = newID()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO `+table+` (id, user_id, type, amount_cents) VALUES (?, ?, ?, ?)`,
		e.ID, e.UserID, e.Type, e.AmountCents)
	if err != nil {
		return remote.EntryRow{}, fmt.Errorf("insert %s: %w", table, err)
	}
	logger(ctx).DebugContext(ctx, "Entry saved to SQLite", "table", table, "id", e.ID, "amount_cents", e.AmountCents)
	return e, nil
}

func (r *SQLiteRepository) updateEntry(ctx context.Context, table string, e remote.EntryRow) error {
	err := expectOne(r.db.ExecContext(ctx,
		`UPDATE `+table+` SET type = ?, amount_cents = ? WHERE id = ?`, e.Type, e.AmountCents, e.ID))
	if err != nil {
		return fmt.Errorf("update %s %s: %w", table, e.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) deleteEntry(ctx context.Context, table, id string) error {
	if err := expectOne(r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)); err != nil {
		return fmt.Errorf("delete %s %s: %w", table, id, err)
	}
	return nil
}

// replaceEntries deletes all of the user's rows and inserts the replacement set
// in a single transaction.
func (r *SQLiteRepository) replaceEntries(ctx context.Context, table, userID string, in []remote.EntryRow) ([]remote.EntryRow, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replace %s: %w", table, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("clear %s: %w", table, err)
	}

	out := make([]remote.EntryRow, 0, len(in))
	for _, e := range in {
		e.ID = newID()
		e.UserID = userID
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+table+` (id, user_id, type, amount_cents) VALUES (?, ?, ?, ?)`,
			e.ID, e.UserID, e.Type, e.AmountCents); err != nil {
			return nil, fmt.Errorf("insert %s: %w", table, err)
		}
		out = append(out, e)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace %s: %w", table, err)
	}

	logger(ctx).InfoContext(ctx, "Replaced entries", "table", table, "user_id", userID, "count", len(out))
	return out, nil
}

func (r *SQLiteRepository) ListIncomeSources(ctx context.Context, userID string) ([]remote.EntryRow, error) {
	return r.listEntries(ctx, incomeTable, userID)
}

func (r *SQLiteRepository) CreateIncomeSource(ctx context.Context, e remote.EntryRow) (remote.EntryRow, error) {
	return r.createEntry(ctx, incomeTable, e)
}

func (r *SQLiteRepository) UpdateIncomeSource(ctx context.Context, e remote.EntryRow) error {
	return r.updateEntry(ctx, incomeTable, e)
}

func (r *SQLiteRepository) DeleteIncomeSource(ctx context.Context, id string) error {
	return r.deleteEntry(ctx, incomeTable, id)
}

func (r *SQLiteRepository) ReplaceIncomeSources(ctx context.Context, userID string, rows []remote.EntryRow) ([]remote.EntryRow, error) {
	return r.replaceEntries(ctx, incomeTable, userID, rows)
}

func (r *SQLiteRepository) ListFixedExpenses(ctx context.Context, userID string) ([]remote.EntryRow, error) {
	return r.listEntries(ctx, fixedTable, userID)
}

func (r *SQLiteRepository) CreateFixedExpense(ctx context.Context, e remote.EntryRow) (remote.EntryRow, error) {
	return r.createEntry(ctx, fixedTable, e)
}

func (r *SQLiteRepository) UpdateFixedExpense(ctx context.Context, e remote.EntryRow) error {
	return r.updateEntry(ctx, fixedTable, e)
}

func (r *SQLiteRepository) DeleteFixedExpense(ctx context.Context, id string) error {
	return r.deleteEntry(ctx, fixedTable, id)
}

func (r *SQLiteRepository) ReplaceFixedExpenses(ctx context.Context, userID string, rows []remote.EntryRow) ([]remote.EntryRow, error) {
	return r.replaceEntries(ctx, fixedTable, userID, rows)
}
