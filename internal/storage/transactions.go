package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"finanzen/internal/remote"
)

const transactionColumns = `id, user_id, budget_id, category_id, name, icon, amount_cents, occurred_at_ms`

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (remote.TransactionRow, error) {
	var (
		t        remote.TransactionRow
		budgetID sql.NullString
		msecs    int64
	)
	if err := s.Scan(&t.ID, &t.UserID, &budgetID, &t.CategoryID, &t.Name, &t.Icon, &t.AmountCents, &msecs); err != nil {
		return remote.TransactionRow{}, err
	}
	t.BudgetID = budgetID.String
	t.OccurredAt = fromMillis(msecs)
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string) ([]remote.TransactionRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+`
		FROM transactions WHERE user_id = ?
		ORDER BY occurred_at_ms DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := []remote.TransactionRow{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (*remote.TransactionRow, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return &t, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t remote.TransactionRow) (remote.TransactionRow, error) {
	t.ID = newID()
	t.OccurredAt = fromMillis(toMillis(t.OccurredAt))
	_, err := r.db.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, nullable(t.BudgetID), t.CategoryID, t.Name, t.Icon, t.AmountCents, toMillis(t.OccurredAt))
	if err != nil {
		return remote.TransactionRow{}, fmt.Errorf("insert transaction: %w", err)
	}

	logger(ctx).DebugContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"amount_cents", t.AmountCents,
		"budget_id", t.BudgetID)

	return t, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t remote.TransactionRow) error {
	err := expectOne(r.db.ExecContext(ctx, `
		UPDATE transactions SET category_id = ?, name = ?, icon = ?, amount_cents = ?, occurred_at_ms = ?
		WHERE id = ?`, t.CategoryID, t.Name, t.Icon, t.AmountCents, toMillis(t.OccurredAt), t.ID))
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", t.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	if err := expectOne(r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return nil
}

// DeleteTransactionsByBudget removes every ledger row linked to budgetID.
// Deleting nothing is not an error.
func (r *SQLiteRepository) DeleteTransactionsByBudget(ctx context.Context, budgetID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE budget_id = ?`, budgetID); err != nil {
		return fmt.Errorf("delete transactions of budget %s: %w", budgetID, err)
	}
	return nil
}
