package engine

import (
	"context"
	"fmt"
	"time"

	"finanzen/internal/core"
	"finanzen/internal/dates"
	"finanzen/internal/remote"
)

// TransactionInput carries the editable fields of a ledger entry. Amount is
// signed: negative for expenses. A zero At means now.
type TransactionInput struct {
	Name     string
	Category string
	Icon     string
	Amount   float64
	At       time.Time
}

func (in TransactionInput) validate() error {
	if err := core.ValidateName(in.Name); err != nil {
		return err
	}
	return core.ValidateSignedAmount(in.Amount)
}

func sameTransactionRow(a, b remote.TransactionRow) bool {
	return a.ID == b.ID && a.UserID == b.UserID && a.BudgetID == b.BudgetID &&
		a.CategoryID == b.CategoryID && a.Name == b.Name && a.Icon == b.Icon &&
		a.AmountCents == b.AmountCents && a.OccurredAt.Equal(b.OccurredAt)
}

func sameContributionRow(a, b remote.ContributionRow) bool {
	return a.ID == b.ID && a.GoalID == b.GoalID && a.TransactionID == b.TransactionID &&
		a.AmountCents == b.AmountCents && a.Kind == b.Kind && a.OccurredAt.Equal(b.OccurredAt)
}

// ledgerRowLocked builds the remote row of t. The category is either fixed
// by the owning budget (categoryID) or still to be resolved by name.
func (e *Engine) ledgerRowLocked(s *Session, t core.Transaction) (row remote.TransactionRow, categoryName string) {
	at := t.EffectiveTime(e.now())
	row = remote.TransactionRow{
		ID:          t.ID,
		UserID:      s.userID,
		Name:        t.Name,
		Icon:        t.Icon,
		AmountCents: core.ToCents(t.Amount),
		OccurredAt:  time.UnixMilli(at.UnixMilli()),
	}
	switch {
	case t.BudgetID != "":
		row.BudgetID = t.BudgetID
		if b, ok := e.budgets.get(t.BudgetID); ok {
			row.CategoryID = b.CategoryID
			return row, b.Name
		}
		return row, t.Category
	case t.GoalID != "":
		return row, SavingsCategory
	default:
		return row, t.Category
	}
}

// withCategory fills in the category of row by name unless already set.
func (e *Engine) withCategory(ctx context.Context, s *Session, row remote.TransactionRow, name string) (remote.TransactionRow, error) {
	if row.CategoryID != "" {
		return row, nil
	}
	c, err := e.resolveCategory(ctx, s, name)
	if err != nil {
		return row, err
	}
	row.CategoryID = c.ID
	return row, nil
}

// AddTransaction books a manual ledger entry.
func (e *Engine) AddTransaction(ctx context.Context, in TransactionInput) (core.Transaction, error) {
	if err := in.validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	at := in.At
	if at.IsZero() {
		at = now
	}
	t := core.Transaction{
		ID:        e.newTempID(),
		Name:      in.Name,
		Category:  in.Category,
		Date:      dates.Format(at, now),
		Amount:    core.RoundAmount(in.Amount),
		Icon:      in.Icon,
		Timestamp: core.Millis(at),
	}
	e.txs.unshift(t)
	e.persistLocked(ctx, "addTransaction", "", func(ctx context.Context, s *Session, _ string) error {
		return e.createLedgerEntry(ctx, s, t.ID, nil)
	})
	return t, nil
}

// createLedgerEntry inserts the transaction stored under tempID. rekeyOwner,
// when set, moves the owning record to the server id in the same step.
func (e *Engine) createLedgerEntry(ctx context.Context, s *Session, tempID string, rekeyOwner func(serverID string)) error {
	type pending struct {
		row  remote.TransactionRow
		name string
	}
	p, o := locked(e, s, func() (pending, bool) {
		t, ok := e.txs.get(tempID)
		if !ok {
			return pending{}, false
		}
		row, name := e.ledgerRowLocked(s, *t)
		return pending{row, name}, true
	})
	if o != kept {
		return nil
	}

	row, err := e.withCategory(ctx, s, p.row, p.name)
	if err != nil {
		return err
	}
	row.ID = ""
	created, err := e.remote.CreateTransaction(ctx, row)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	e.notify(ctx, s, EntityTransaction, OpCreate, created.ID)

	current, o := locked(e, s, func() (pending, bool) {
		if !e.txs.rekey(tempID, created.ID) {
			return pending{}, false
		}
		if rekeyOwner != nil {
			rekeyOwner(created.ID)
		}
		e.reconciledLocked(ctx, s, tempID, created.ID)
		t, _ := e.txs.get(created.ID)
		r, name := e.ledgerRowLocked(s, *t)
		return pending{r, name}, true
	})
	switch o {
	case stale:
		return nil
	case gone:
		return ignoreMissing(e.remote.DeleteTransaction(ctx, created.ID))
	}

	if current.row.CategoryID == "" && current.name == p.name {
		current.row.CategoryID = row.CategoryID
	}
	row.ID = created.ID
	if sameTransactionRow(current.row, row) {
		return nil
	}
	next, err := e.withCategory(ctx, s, current.row, current.name)
	if err != nil {
		return err
	}
	if err := e.remote.UpdateTransaction(ctx, next); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

// UpdateTransaction edits a ledger entry. Edits of a mirror reach its budget
// expense or goal deposit too; a mirror keeps its owner's category.
func (e *Engine) UpdateTransaction(ctx context.Context, id string, in TransactionInput) (core.Transaction, error) {
	if err := in.validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	id = e.sess.resolve(id)
	t, ok := e.txs.get(id)
	if !ok {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", id, core.ErrNotFound)
	}
	now := e.now()
	t.Name = in.Name
	t.Amount = core.RoundAmount(in.Amount)
	if in.Icon != "" {
		t.Icon = in.Icon
	}
	if !in.At.IsZero() {
		t.Timestamp = core.Millis(in.At)
		t.Date = dates.Format(in.At, now)
	}
	if !t.IsMirror() {
		t.Category = in.Category
	}
	out := *t

	switch {
	case t.BudgetID != "":
		if b, ok := e.budgets.get(t.BudgetID); ok {
			if i := b.ExpenseIndex(t.ID); i >= 0 {
				b.Expenses[i].Name = t.Name
				b.Expenses[i].Amount = -t.Amount
				b.Expenses[i].Date = t.Date
				b.Expenses[i].Timestamp = t.Timestamp
				b.Recompute(now)
			}
		}
	case t.GoalID != "":
		if g, ok := e.goals.get(t.GoalID); ok {
			if i := g.DepositIndex(t.DepositID); i >= 0 {
				g.Deposits[i].Amount = -t.Amount
				g.Deposits[i].Date = dates.FormatStamp(t.EffectiveTime(now), now)
				g.SortDeposits(now)
				g.Recompute()
			}
			e.persistDepositUpdateLocked(ctx, "updateTransaction", t.GoalID, t.DepositID)
			return out, nil
		}
	}

	e.persistLedgerUpdateLocked(ctx, "updateTransaction", out)
	return out, nil
}

func (e *Engine) persistLedgerUpdateLocked(ctx context.Context, op string, t core.Transaction) {
	if IsTempID(t.ID) {
		e.touchLocked()
		return
	}
	row, name := e.ledgerRowLocked(e.sess, t)
	e.persistLocked(ctx, op, "", func(ctx context.Context, s *Session, _ string) error {
		row, err := e.withCategory(ctx, s, row, name)
		if err != nil {
			return err
		}
		if err := e.remote.UpdateTransaction(ctx, row); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		e.notify(ctx, s, EntityTransaction, OpUpdate, row.ID)
		return nil
	})
}

// DeleteTransaction removes a ledger entry together with the budget expense
// or goal deposit it mirrors.
func (e *Engine) DeleteTransaction(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	id = e.sess.resolve(id)
	t, ok := e.txs.remove(id)
	if !ok {
		return fmt.Errorf("delete transaction %s: %w", id, core.ErrNotFound)
	}

	switch {
	case t.BudgetID != "":
		if b, ok := e.budgets.get(t.BudgetID); ok {
			if i := b.ExpenseIndex(t.ID); i >= 0 {
				b.Expenses = append(b.Expenses[:i:i], b.Expenses[i+1:]...)
				b.Recompute(e.now())
			}
		}
	case t.GoalID != "":
		if g, ok := e.goals.get(t.GoalID); ok {
			if i := g.DepositIndex(t.DepositID); i >= 0 {
				g.Deposits = append(g.Deposits[:i:i], g.Deposits[i+1:]...)
				g.Recompute()
			}
		}
		e.persistDepositDeleteLocked(ctx, "deleteTransaction", t.DepositID, t.ID)
		return nil
	}

	e.persistLedgerDeleteLocked(ctx, "deleteTransaction", t.ID)
	return nil
}

func (e *Engine) persistLedgerDeleteLocked(ctx context.Context, op, id string) {
	if IsTempID(id) {
		e.touchLocked()
		return
	}
	e.persistLocked(ctx, op, "", func(ctx context.Context, s *Session, _ string) error {
		if err := ignoreMissing(e.remote.DeleteTransaction(ctx, id)); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		e.notify(ctx, s, EntityTransaction, OpDelete, id)
		return nil
	})
}
