package storage

import (
	"context"
	"fmt"

	"finanzen/internal/remote"
)

func (r *SQLiteRepository) ListActiveCategories(ctx context.Context) ([]remote.CategoryRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, icon, is_active FROM budget_categories WHERE is_active = 1 ORDER BY sort_order, name`)
	if err != nil {
		return nil, fmt.Errorf("query budget categories: %w", err)
	}
	defer rows.Close()

	out := []remote.CategoryRow{}
	for rows.Next() {
		var c remote.CategoryRow
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.Active); err != nil {
			return nil, fmt.Errorf("scan budget category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID string) ([]remote.BudgetRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, category_id, name, icon, icon_color, limit_cents
		FROM budgets WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	out := []remote.BudgetRow{}
	for rows.Next() {
		var b remote.BudgetRow
		if err := rows.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Name, &b.Icon, &b.IconColor, &b.LimitCents); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b remote.BudgetRow) (remote.BudgetRow, error) {
	b.ID = newID()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (id, user_id, category_id, name, icon, icon_color, limit_cents)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.CategoryID, b.Name, b.Icon, b.IconColor, b.LimitCents)
	if err != nil {
		return remote.BudgetRow{}, fmt.Errorf("insert budget: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b remote.BudgetRow) error {
	err := expectOne(r.db.ExecContext(ctx, `
		UPDATE budgets SET category_id = ?, name = ?, icon = ?, icon_color = ?, limit_cents = ?
		WHERE id = ?`, b.CategoryID, b.Name, b.Icon, b.IconColor, b.LimitCents, b.ID))
	if err != nil {
		return fmt.Errorf("update budget %s: %w", b.ID, err)
	}
	return nil
}

// DeleteBudget removes the budget; linked transactions cascade.
func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id string) error {
	if err := expectOne(r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)); err != nil {
		return fmt.Errorf("delete budget %s: %w", id, err)
	}
	return nil
}
