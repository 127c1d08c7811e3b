package storage

import (
	"context"
	"database/sql"
	"fmt"

	"finanzen/internal/remote"
)

func (r *SQLiteRepository) ListGoals(ctx context.Context, userID string) ([]remote.GoalRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, icon, target_cents FROM goals WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	out := []remote.GoalRow{}
	for rows.Next() {
		var g remote.GoalRow
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &g.Icon, &g.TargetCents); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g remote.GoalRow) (remote.GoalRow, error) {
	g.ID = newID()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO goals (id, user_id, name, icon, target_cents) VALUES (?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Name, g.Icon, g.TargetCents)
	if err != nil {
		return remote.GoalRow{}, fmt.Errorf("insert goal: %w", err)
	}
	logger(ctx).DebugContext(ctx, "Goal saved to SQLite", "id", g.ID, "target_cents", g.TargetCents)
	return g, nil
}

func (r *SQLiteRepository) UpdateGoal(ctx context.Context, g remote.GoalRow) error {
	err := expectOne(r.db.ExecContext(ctx,
		`UPDATE goals SET name = ?, icon = ?, target_cents = ? WHERE id = ?`, g.Name, g.Icon, g.TargetCents, g.ID))
	if err != nil {
		return fmt.Errorf("update goal %s: %w", g.ID, err)
	}
	return nil
}

// DeleteGoal removes the goal; its contributions cascade.
func (r *SQLiteRepository) DeleteGoal(ctx context.Context, id string) error {
	if err := expectOne(r.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id)); err != nil {
		return fmt.Errorf("delete goal %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) ListContributions(ctx context.Context, userID string) ([]remote.ContributionRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.goal_id, c.transaction_id, c.amount_cents, c.kind, c.occurred_at_ms
		FROM goal_contributions c
		JOIN goals g ON g.id = c.goal_id
		WHERE g.user_id = ?
		ORDER BY c.occurred_at_ms DESC, c.rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("query goal contributions: %w", err)
	}
	defer rows.Close()

	out := []remote.ContributionRow{}
	for rows.Next() {
		var (
			c     remote.ContributionRow
			txID  sql.NullString
			msecs int64
		)
		if err := rows.Scan(&c.ID, &c.GoalID, &txID, &c.AmountCents, &c.Kind, &msecs); err != nil {
			return nil, fmt.Errorf("scan goal contribution: %w", err)
		}
		c.TransactionID = txID.String
		c.OccurredAt = fromMillis(msecs)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateContribution(ctx context.Context, c remote.ContributionRow) (remote.ContributionRow, error) {
	c.ID = newID()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO goal_contributions (id, goal_id, transaction_id, amount_cents, kind, occurred_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.GoalID, nullable(c.TransactionID), c.AmountCents, c.Kind, toMillis(c.OccurredAt))
	if err != nil {
		return remote.ContributionRow{}, fmt.Errorf("insert goal contribution: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) UpdateContribution(ctx context.Context, c remote.ContributionRow) error {
	err := expectOne(r.db.ExecContext(ctx,
		`UPDATE goal_contributions SET amount_cents = ?, kind = ? WHERE id = ?`, c.AmountCents, c.Kind, c.ID))
	if err != nil {
		return fmt.Errorf("update goal contribution %s: %w", c.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteContribution(ctx context.Context, id string) error {
	if err := expectOne(r.db.ExecContext(ctx, `DELETE FROM goal_contributions WHERE id = ?`, id)); err != nil {
		return fmt.Errorf("delete goal contribution %s: %w", id, err)
	}
	return nil
}
