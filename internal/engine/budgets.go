package engine

import (
	"context"
	"fmt"
	"time"

	"finanzen/internal/core"
	"finanzen/internal/dates"
	"finanzen/internal/remote"
)

// BudgetInput carries the editable fields of a budget.
type BudgetInput struct {
	Name      string
	Icon      string
	IconColor string
	Limit     float64
}

func (in BudgetInput) validate() error {
	if err := core.ValidateName(in.Name); err != nil {
		return err
	}
	return core.ValidateAmount(in.Limit)
}

// ExpenseInput carries the fields of a budget expense. A zero At means now.
type ExpenseInput struct {
	Name   string
	Amount float64
	At     time.Time
}

func (in ExpenseInput) validate() error {
	if err := core.ValidateName(in.Name); err != nil {
		return err
	}
	if err := core.ValidateAmount(in.Amount); err != nil || in.Amount == 0 {
		return core.ErrInvalidAmount
	}
	return nil
}

func budgetRow(userID string, b core.Budget) remote.BudgetRow {
	return remote.BudgetRow{
		ID:         b.ID,
		UserID:     userID,
		CategoryID: b.CategoryID,
		Name:       b.Name,
		Icon:       b.Icon,
		IconColor:  b.IconColor,
		LimitCents: core.ToCents(b.Limit),
	}
}

func (e *Engine) AddBudget(ctx context.Context, in BudgetInput) (core.Budget, error) {
	if err := in.validate(); err != nil {
		return core.Budget{}, fmt.Errorf("add budget: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	b := core.Budget{
		ID:        e.newTempID(),
		Name:      in.Name,
		Icon:      in.Icon,
		IconColor: in.IconColor,
		Limit:     core.RoundAmount(in.Limit),
		Expenses:  []core.BudgetExpense{},
	}
	e.budgets.push(b)
	e.persistLocked(ctx, "addBudget", "", func(ctx context.Context, s *Session, _ string) error {
		return e.createBudget(ctx, s, b.ID)
	})
	return b, nil
}

// createBudget maps the budget name to a category before inserting it. A
// name without a category and without a catch-all fails the write.
func (e *Engine) createBudget(ctx context.Context, s *Session, tempID string) error {
	row, o := locked(e, s, func() (remote.BudgetRow, bool) {
		b, ok := e.budgets.get(tempID)
		if !ok {
			return remote.BudgetRow{}, false
		}
		return budgetRow(s.userID, *b), true
	})
	if o != kept {
		return nil
	}

	cat, err := e.resolveCategory(ctx, s, row.Name)
	if err != nil {
		return err
	}
	row.ID = ""
	row.CategoryID = cat.ID
	created, err := e.remote.CreateBudget(ctx, row)
	if err != nil {
		return fmt.Errorf("create budget: %w", err)
	}
	e.notify(ctx, s, EntityBudget, OpCreate, created.ID)

	current, o := locked(e, s, func() (remote.BudgetRow, bool) {
		if !e.budgets.rekey(tempID, created.ID) {
			return remote.BudgetRow{}, false
		}
		b, _ := e.budgets.get(created.ID)
		b.CategoryID = created.CategoryID
		e.txs.each(func(t *core.Transaction) {
			if t.BudgetID == tempID {
				t.BudgetID = created.ID
			}
		})
		e.reconciledLocked(ctx, s, tempID, created.ID)
		return budgetRow(s.userID, *b), true
	})
	switch o {
	case stale:
		return nil
	case gone:
		return ignoreMissing(e.remote.DeleteBudget(ctx, created.ID))
	}
	row.ID = created.ID
	if current != row {
		if err := e.remote.UpdateBudget(ctx, current); err != nil {
			return fmt.Errorf("update budget: %w", err)
		}
	}
	return nil
}

// UpdateBudget edits a budget. Its mirrored ledger entries follow the new
// name and icon.
func (e *Engine) UpdateBudget(ctx context.Context, id string, in BudgetInput) (core.Budget, error) {
	if err := in.validate(); err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	id = e.sess.resolve(id)
	b, ok := e.budgets.get(id)
	if !ok {
		return core.Budget{}, fmt.Errorf("update budget %s: %w", id, core.ErrNotFound)
	}
	b.Name = in.Name
	b.Icon = in.Icon
	b.IconColor = in.IconColor
	b.Limit = core.RoundAmount(in.Limit)
	e.txs.each(func(t *core.Transaction) {
		if t.BudgetID == id {
			t.Category = b.Name
			t.Icon = b.Icon
		}
	})
	out := cloneBudget(*b)

	if IsTempID(id) {
		e.touchLocked()
		return out, nil
	}
	row := budgetRow(e.sess.userID, out)
	e.persistLocked(ctx, "updateBudget", "", func(ctx context.Context, s *Session, _ string) error {
		if err := e.remote.UpdateBudget(ctx, row); err != nil {
			return fmt.Errorf("update budget: %w", err)
		}
		e.notify(ctx, s, EntityBudget, OpUpdate, row.ID)
		return nil
	})
	return out, nil
}

// DeleteBudget removes the budget and every mirrored ledger entry.
func (e *Engine) DeleteBudget(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	id = e.sess.resolve(id)
	if _, ok := e.budgets.remove(id); !ok {
		return fmt.Errorf("delete budget %s: %w", id, core.ErrNotFound)
	}
	var mirrorIDs []string
	for _, t := range e.txs.removeWhere(func(t *core.Transaction) bool { return t.BudgetID == id }) {
		if !IsTempID(t.ID) {
			mirrorIDs = append(mirrorIDs, t.ID)
		}
	}

	if IsTempID(id) {
		e.touchLocked()
		return nil
	}
	e.persistLocked(ctx, "deleteBudget", "", func(ctx context.Context, s *Session, _ string) error {
		if err := e.remote.DeleteTransactionsByBudget(ctx, id); err != nil {
			return fmt.Errorf("delete budget transactions: %w", err)
		}
		for _, txID := range mirrorIDs {
			e.notify(ctx, s, EntityTransaction, OpDelete, txID)
		}
		if err := ignoreMissing(e.remote.DeleteBudget(ctx, id)); err != nil {
			return fmt.Errorf("delete budget: %w", err)
		}
		e.notify(ctx, s, EntityBudget, OpDelete, id)
		return nil
	})
	return nil
}

// Budget expenses

// AddBudgetExpense books an expense against a budget and mirrors it into the
// ledger under the same id. Only expenses of the current month count towards
// the budget.
func (e *Engine) AddBudgetExpense(ctx context.Context, budgetID string, in ExpenseInput) (core.BudgetExpense, error) {
	if err := in.validate(); err != nil {
		return core.BudgetExpense{}, fmt.Errorf("add budget expense: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	budgetID = e.sess.resolve(budgetID)
	b, ok := e.budgets.get(budgetID)
	if !ok {
		return core.BudgetExpense{}, fmt.Errorf("add budget expense to %s: %w", budgetID, core.ErrNotFound)
	}
	now := e.now()
	at := in.At
	if at.IsZero() {
		at = now
	}
	x := core.BudgetExpense{
		ID:        e.newTempID(),
		Name:      in.Name,
		Date:      dates.Format(at, now),
		Amount:    core.RoundAmount(in.Amount),
		Timestamp: core.Millis(at),
	}
	b.Expenses = append([]core.BudgetExpense{x}, b.Expenses...)
	b.Recompute(now)
	e.txs.unshift(core.Transaction{
		ID:        x.ID,
		Name:      x.Name,
		Category:  b.Name,
		Date:      x.Date,
		Amount:    -x.Amount,
		Icon:      b.Icon,
		Timestamp: x.Timestamp,
		BudgetID:  b.ID,
	})

	e.persistLocked(ctx, "addBudgetExpense", budgetID, func(ctx context.Context, s *Session, budgetID string) error {
		return e.createLedgerEntry(ctx, s, x.ID, func(serverID string) {
			if b, ok := e.budgets.get(budgetID); ok {
				if i := b.ExpenseIndex(x.ID); i >= 0 {
					b.Expenses[i].ID = serverID
				}
			}
		})
	})
	return x, nil
}

// UpdateBudgetExpense edits an expense and its ledger mirror.
func (e *Engine) UpdateBudgetExpense(ctx context.Context, budgetID, expenseID string, in ExpenseInput) (core.BudgetExpense, error) {
	if err := in.validate(); err != nil {
		return core.BudgetExpense{}, fmt.Errorf("update budget expense: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	budgetID = e.sess.resolve(budgetID)
	expenseID = e.sess.resolve(expenseID)
	b, ok := e.budgets.get(budgetID)
	if !ok {
		return core.BudgetExpense{}, fmt.Errorf("update budget expense: budget %s: %w", budgetID, core.ErrNotFound)
	}
	i := b.ExpenseIndex(expenseID)
	if i < 0 {
		return core.BudgetExpense{}, fmt.Errorf("update budget expense %s: %w", expenseID, core.ErrNotFound)
	}
	now := e.now()
	x := &b.Expenses[i]
	x.Name = in.Name
	x.Amount = core.RoundAmount(in.Amount)
	if !in.At.IsZero() {
		x.Timestamp = core.Millis(in.At)
		x.Date = dates.Format(in.At, now)
	}
	out := *x
	b.Recompute(now)

	t, ok := e.txs.get(expenseID)
	if !ok {
		e.touchLocked()
		return out, nil
	}
	t.Name = out.Name
	t.Amount = -out.Amount
	t.Date = out.Date
	t.Timestamp = out.Timestamp
	e.persistLedgerUpdateLocked(ctx, "updateBudgetExpense", *t)
	return out, nil
}

// DeleteBudgetExpense removes an expense and its ledger mirror.
func (e *Engine) DeleteBudgetExpense(ctx context.Context, budgetID, expenseID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	budgetID = e.sess.resolve(budgetID)
	expenseID = e.sess.resolve(expenseID)
	b, ok := e.budgets.get(budgetID)
	if !ok {
		return fmt.Errorf("delete budget expense: budget %s: %w", budgetID, core.ErrNotFound)
	}
	i := b.ExpenseIndex(expenseID)
	if i < 0 {
		return fmt.Errorf("delete budget expense %s: %w", expenseID, core.ErrNotFound)
	}
	b.Expenses = append(b.Expenses[:i:i], b.Expenses[i+1:]...)
	b.Recompute(e.now())
	e.txs.remove(expenseID)

	e.persistLedgerDeleteLocked(ctx, "deleteBudgetExpense", expenseID)
	return nil
}

func cloneBudget(b core.Budget) core.Budget {
	b.Expenses = append([]core.BudgetExpense{}, b.Expenses...)
	return b
}
