package engine

import (
	"context"
	"fmt"
	"time"

	"finanzen/internal/core"
	"finanzen/internal/dates"
	"finanzen/internal/remote"
)

// GoalInput carries the editable fields of a goal.
type GoalInput struct {
	Name   string
	Icon   string
	Target float64
}

func (in GoalInput) validate() error {
	if err := core.ValidateName(in.Name); err != nil {
		return err
	}
	return core.ValidateAmount(in.Target)
}

func goalRow(userID string, g core.Goal) remote.GoalRow {
	return remote.GoalRow{ID: g.ID, UserID: userID, Name: g.Name, Icon: g.Icon, TargetCents: core.ToCents(g.Target)}
}

func (e *Engine) AddGoal(ctx context.Context, in GoalInput) (core.Goal, error) {
	if err := in.validate(); err != nil {
		return core.Goal{}, fmt.Errorf("add goal: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	g := core.Goal{
		ID:       e.newTempID(),
		Name:     in.Name,
		Icon:     in.Icon,
		Target:   core.RoundAmount(in.Target),
		Deposits: []core.GoalDeposit{},
	}
	g.Recompute()
	e.goals.push(g)
	e.persistLocked(ctx, "addGoal", "", func(ctx context.Context, s *Session, _ string) error {
		return e.createGoal(ctx, s, g.ID)
	})
	return g, nil
}

func (e *Engine) createGoal(ctx context.Context, s *Session, tempID string) error {
	row, o := locked(e, s, func() (remote.GoalRow, bool) {
		g, ok := e.goals.get(tempID)
		if !ok {
			return remote.GoalRow{}, false
		}
		return goalRow(s.userID, *g), true
	})
	if o != kept {
		return nil
	}

	row.ID = ""
	created, err := e.remote.CreateGoal(ctx, row)
	if err != nil {
		return fmt.Errorf("create goal: %w", err)
	}
	e.notify(ctx, s, EntityGoal, OpCreate, created.ID)

	current, o := locked(e, s, func() (remote.GoalRow, bool) {
		if !e.goals.rekey(tempID, created.ID) {
			return remote.GoalRow{}, false
		}
		e.txs.each(func(t *core.Transaction) {
			if t.GoalID == tempID {
				t.GoalID = created.ID
			}
		})
		e.reconciledLocked(ctx, s, tempID, created.ID)
		g, _ := e.goals.get(created.ID)
		return goalRow(s.userID, *g), true
	})
	switch o {
	case stale:
		return nil
	case gone:
		return ignoreMissing(e.remote.DeleteGoal(ctx, created.ID))
	}
	row.ID = created.ID
	if current != row {
		if err := e.remote.UpdateGoal(ctx, current); err != nil {
			return fmt.Errorf("update goal: %w", err)
		}
	}
	return nil
}

func (e *Engine) UpdateGoal(ctx context.Context, id string, in GoalInput) (core.Goal, error) {
	if err := in.validate(); err != nil {
		return core.Goal{}, fmt.Errorf("update goal: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	id = e.sess.resolve(id)
	g, ok := e.goals.get(id)
	if !ok {
		return core.Goal{}, fmt.Errorf("update goal %s: %w", id, core.ErrNotFound)
	}
	g.Name = in.Name
	g.Icon = in.Icon
	g.Target = core.RoundAmount(in.Target)
	g.Recompute()
	out := cloneGoal(*g)

	if IsTempID(id) {
		e.touchLocked()
		return out, nil
	}
	row := goalRow(e.sess.userID, out)
	e.persistLocked(ctx, "updateGoal", "", func(ctx context.Context, s *Session, _ string) error {
		if err := e.remote.UpdateGoal(ctx, row); err != nil {
			return fmt.Errorf("update goal: %w", err)
		}
		e.notify(ctx, s, EntityGoal, OpUpdate, row.ID)
		return nil
	})
	return out, nil
}

// DeleteGoal removes the goal, its deposits and their ledger mirrors.
func (e *Engine) DeleteGoal(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	id = e.sess.resolve(id)
	if _, ok := e.goals.remove(id); !ok {
		return fmt.Errorf("delete goal %s: %w", id, core.ErrNotFound)
	}
	mirrors := e.txs.removeWhere(func(t *core.Transaction) bool { return t.GoalID == id })

	for _, t := range mirrors {
		if IsTempID(t.ID) {
			continue
		}
		txID := t.ID
		e.persistLocked(ctx, "deleteGoal", "", func(ctx context.Context, s *Session, _ string) error {
			if err := ignoreMissing(e.remote.DeleteTransaction(ctx, txID)); err != nil {
				return fmt.Errorf("delete goal transaction: %w", err)
			}
			e.notify(ctx, s, EntityTransaction, OpDelete, txID)
			return nil
		})
	}
	if IsTempID(id) {
		e.touchLocked()
		return nil
	}
	e.persistLocked(ctx, "deleteGoal", "", func(ctx context.Context, s *Session, _ string) error {
		if err := ignoreMissing(e.remote.DeleteGoal(ctx, id)); err != nil {
			return fmt.Errorf("delete goal: %w", err)
		}
		e.notify(ctx, s, EntityGoal, OpDelete, id)
		return nil
	})
	return nil
}

// Deposits

// AddGoalDeposit records a contribution and its mirrored ledger expense. A
// zero at means now. The deposit kind is derived from the goal name once.
func (e *Engine) AddGoalDeposit(ctx context.Context, goalID string, amount float64, at time.Time) (core.GoalDeposit, error) {
	if err := core.ValidateAmount(amount); err != nil || amount == 0 {
		return core.GoalDeposit{}, fmt.Errorf("add goal deposit: %w", core.ErrInvalidAmount)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	goalID = e.sess.resolve(goalID)
	g, ok := e.goals.get(goalID)
	if !ok {
		return core.GoalDeposit{}, fmt.Errorf("add goal deposit to %s: %w", goalID, core.ErrNotFound)
	}
	now := e.now()
	if at.IsZero() {
		at = now
	}
	amount = core.RoundAmount(amount)

	d := core.GoalDeposit{
		ID:            e.newTempID(),
		Date:          dates.FormatStamp(at, now),
		Amount:        amount,
		Type:          e.depositKind(g.Name),
		TransactionID: e.newTempID(),
	}
	t := core.Transaction{
		ID:        d.TransactionID,
		Name:      g.Name,
		Category:  SavingsCategory,
		Date:      dates.Format(at, now),
		Amount:    -amount,
		Icon:      g.Icon,
		Timestamp: core.Millis(at),
		GoalID:    g.ID,
		DepositID: d.ID,
	}
	g.Deposits = append([]core.GoalDeposit{d}, g.Deposits...)
	g.SortDeposits(now)
	g.Recompute()
	e.txs.unshift(t)

	e.persistLocked(ctx, "addGoalDeposit", goalID, func(ctx context.Context, s *Session, goalID string) error {
		return e.createDeposit(ctx, s, goalID, d.ID, t.ID)
	})
	return d, nil
}

type depositRows struct {
	tx      remote.TransactionRow
	contrib remote.ContributionRow
}

// depositRowsLocked builds the remote rows of a deposit and its mirror.
func (e *Engine) depositRowsLocked(s *Session, goalID, depositID string) (depositRows, bool) {
	g, ok := e.goals.get(goalID)
	if !ok {
		return depositRows{}, false
	}
	i := g.DepositIndex(depositID)
	if i < 0 {
		return depositRows{}, false
	}
	d := g.Deposits[i]
	t, ok := e.txs.get(d.TransactionID)
	if !ok {
		return depositRows{}, false
	}
	now := e.now()
	at := t.EffectiveTime(now)
	return depositRows{
		tx: remote.TransactionRow{
			ID:          t.ID,
			UserID:      s.userID,
			Name:        t.Name,
			Icon:        t.Icon,
			AmountCents: core.ToCents(t.Amount),
			OccurredAt:  time.UnixMilli(at.UnixMilli()),
		},
		contrib: remote.ContributionRow{
			ID:            d.ID,
			GoalID:        g.ID,
			TransactionID: d.TransactionID,
			AmountCents:   core.ToCents(d.Amount),
			Kind:          string(d.Type),
			OccurredAt:    time.UnixMilli(at.UnixMilli()),
		},
	}, true
}

// createDeposit inserts the ledger row first and the contribution second.
// When the contribution insert fails the ledger row is deleted again so the
// remote store keeps no orphan, and the mirror returns to its temporary id.
func (e *Engine) createDeposit(ctx context.Context, s *Session, goalID, depositID, tempTxID string) error {
	cat, err := e.resolveCategory(ctx, s, SavingsCategory)
	if err != nil {
		return err
	}
	rows, o := locked(e, s, func() (depositRows, bool) {
		return e.depositRowsLocked(s, goalID, depositID)
	})
	if o != kept {
		return nil
	}

	txRow := rows.tx
	txRow.ID = ""
	txRow.CategoryID = cat.ID
	createdTx, err := e.remote.CreateTransaction(ctx, txRow)
	if err != nil {
		return fmt.Errorf("create deposit transaction: %w", err)
	}
	e.notify(ctx, s, EntityTransaction, OpCreate, createdTx.ID)

	_, o = locked(e, s, func() (struct{}, bool) {
		if !e.txs.rekey(tempTxID, createdTx.ID) {
			return struct{}{}, false
		}
		if g, ok := e.goals.get(goalID); ok {
			if i := g.DepositIndex(depositID); i >= 0 {
				g.Deposits[i].TransactionID = createdTx.ID
			}
		}
		e.reconciledLocked(ctx, s, tempTxID, createdTx.ID)
		return struct{}{}, true
	})
	switch o {
	case stale:
		return nil
	case gone:
		return ignoreMissing(e.remote.DeleteTransaction(ctx, createdTx.ID))
	}

	contrib := rows.contrib
	contrib.ID = ""
	contrib.TransactionID = createdTx.ID
	created, err := e.remote.CreateContribution(ctx, contrib)
	if err != nil {
		cerr := ignoreMissing(e.remote.DeleteTransaction(ctx, createdTx.ID))
		if cerr != nil {
			logger(ctx).ErrorContext(ctx, "Failed to remove orphaned deposit transaction", "id", createdTx.ID, "error", cerr)
		} else {
			e.notify(ctx, s, EntityTransaction, OpDelete, createdTx.ID)
		}
		_, o := locked(e, s, func() (struct{}, bool) {
			g, ok := e.goals.get(goalID)
			if !ok {
				return struct{}{}, false
			}
			if cerr == nil {
				e.txs.rekey(createdTx.ID, tempTxID)
				if i := g.DepositIndex(depositID); i >= 0 {
					g.Deposits[i].TransactionID = tempTxID
				}
				delete(s.aliases, tempTxID)
			}
			return struct{}{}, true
		})
		if o != kept {
			// The goal was deleted while the contribution was in flight.
			return nil
		}
		return fmt.Errorf("create goal contribution: %w", err)
	}
	e.notify(ctx, s, EntityDeposit, OpCreate, created.ID)

	current, o := locked(e, s, func() (depositRows, bool) {
		g, ok := e.goals.get(goalID)
		if !ok {
			return depositRows{}, false
		}
		i := g.DepositIndex(depositID)
		if i < 0 {
			return depositRows{}, false
		}
		g.Deposits[i].ID = created.ID
		if t, ok := e.txs.get(g.Deposits[i].TransactionID); ok {
			t.DepositID = created.ID
		}
		e.reconciledLocked(ctx, s, depositID, created.ID)
		return e.depositRowsLocked(s, goalID, created.ID)
	})
	switch o {
	case stale:
		return nil
	case gone:
		if err := ignoreMissing(e.remote.DeleteContribution(ctx, created.ID)); err != nil {
			return fmt.Errorf("delete goal contribution: %w", err)
		}
		return nil
	}

	contrib.ID = created.ID
	if !sameContributionRow(current.contrib, contrib) {
		if err := e.remote.UpdateContribution(ctx, current.contrib); err != nil {
			return fmt.Errorf("update goal contribution: %w", err)
		}
	}
	current.tx.CategoryID = cat.ID
	txRow.ID = createdTx.ID
	if !sameTransactionRow(current.tx, txRow) {
		if err := e.remote.UpdateTransaction(ctx, current.tx); err != nil {
			return fmt.Errorf("update deposit transaction: %w", err)
		}
	}
	return nil
}

// UpdateGoalDeposit changes a deposit amount and its mirror.
func (e *Engine) UpdateGoalDeposit(ctx context.Context, goalID, depositID string, amount float64) (core.GoalDeposit, error) {
	if err := core.ValidateAmount(amount); err != nil || amount == 0 {
		return core.GoalDeposit{}, fmt.Errorf("update goal deposit: %w", core.ErrInvalidAmount)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	goalID = e.sess.resolve(goalID)
	depositID = e.sess.resolve(depositID)
	g, ok := e.goals.get(goalID)
	if !ok {
		return core.GoalDeposit{}, fmt.Errorf("update goal deposit: goal %s: %w", goalID, core.ErrNotFound)
	}
	i := g.DepositIndex(depositID)
	if i < 0 {
		return core.GoalDeposit{}, fmt.Errorf("update goal deposit %s: %w", depositID, core.ErrNotFound)
	}
	amount = core.RoundAmount(amount)
	g.Deposits[i].Amount = amount
	g.Recompute()
	d := g.Deposits[i]
	if t, ok := e.txs.get(d.TransactionID); ok {
		t.Amount = -amount
	}

	e.persistDepositUpdateLocked(ctx, "updateGoalDeposit", goalID, depositID)
	return d, nil
}

// persistDepositUpdateLocked sends the current deposit and mirror rows for
// whichever of the two already carries a server id.
func (e *Engine) persistDepositUpdateLocked(ctx context.Context, op, goalID, depositID string) {
	rows, ok := e.depositRowsLocked(e.sess, goalID, depositID)
	if !ok || (IsTempID(rows.contrib.ID) && IsTempID(rows.tx.ID)) {
		e.touchLocked()
		return
	}
	e.persistLocked(ctx, op, "", func(ctx context.Context, s *Session, _ string) error {
		if !IsTempID(rows.contrib.ID) && !IsTempID(rows.contrib.GoalID) {
			if err := e.remote.UpdateContribution(ctx, rows.contrib); err != nil {
				return fmt.Errorf("update goal contribution: %w", err)
			}
			e.notify(ctx, s, EntityDeposit, OpUpdate, rows.contrib.ID)
		}
		if !IsTempID(rows.tx.ID) {
			cat, err := e.resolveCategory(ctx, s, SavingsCategory)
			if err != nil {
				return err
			}
			row := rows.tx
			row.CategoryID = cat.ID
			if err := e.remote.UpdateTransaction(ctx, row); err != nil {
				return fmt.Errorf("update deposit transaction: %w", err)
			}
			e.notify(ctx, s, EntityTransaction, OpUpdate, row.ID)
		}
		return nil
	})
}

// DeleteGoalDeposit removes a deposit and its mirror.
func (e *Engine) DeleteGoalDeposit(ctx context.Context, goalID, depositID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	goalID = e.sess.resolve(goalID)
	depositID = e.sess.resolve(depositID)
	g, ok := e.goals.get(goalID)
	if !ok {
		return fmt.Errorf("delete goal deposit: goal %s: %w", goalID, core.ErrNotFound)
	}
	i := g.DepositIndex(depositID)
	if i < 0 {
		return fmt.Errorf("delete goal deposit %s: %w", depositID, core.ErrNotFound)
	}
	d := g.Deposits[i]
	g.Deposits = append(g.Deposits[:i:i], g.Deposits[i+1:]...)
	g.Recompute()
	e.txs.remove(d.TransactionID)

	e.persistDepositDeleteLocked(ctx, "deleteGoalDeposit", d.ID, d.TransactionID)
	return nil
}

func (e *Engine) persistDepositDeleteLocked(ctx context.Context, op, depositID, txID string) {
	hasDeposit := depositID != "" && !IsTempID(depositID)
	hasTx := txID != "" && !IsTempID(txID)
	if !hasDeposit && !hasTx {
		e.touchLocked()
		return
	}
	e.persistLocked(ctx, op, "", func(ctx context.Context, s *Session, _ string) error {
		if hasDeposit {
			if err := ignoreMissing(e.remote.DeleteContribution(ctx, depositID)); err != nil {
				return fmt.Errorf("delete goal contribution: %w", err)
			}
			e.notify(ctx, s, EntityDeposit, OpDelete, depositID)
		}
		if hasTx {
			if err := ignoreMissing(e.remote.DeleteTransaction(ctx, txID)); err != nil {
				return fmt.Errorf("delete deposit transaction: %w", err)
			}
			e.notify(ctx, s, EntityTransaction, OpDelete, txID)
		}
		return nil
	})
}

func cloneGoal(g core.Goal) core.Goal {
	g.Deposits = append([]core.GoalDeposit{}, g.Deposits...)
	return g
}
