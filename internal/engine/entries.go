package engine

import (
	"context"
	"fmt"

	"finanzen/internal/core"
	"finanzen/internal/remote"
)

// entryBook binds one entry collection to its remote table.
type entryBook struct {
	entity string
	label  string
	col    func(e *Engine) *collection[core.Entry]
	create func(r remote.Writer) func(context.Context, remote.EntryRow) (remote.EntryRow, error)
	update func(r remote.Writer) func(context.Context, remote.EntryRow) error
	delete func(r remote.Writer) func(context.Context, string) error
	swap   func(r remote.Writer) func(context.Context, string, []remote.EntryRow) ([]remote.EntryRow, error)
}

var incomeBook = entryBook{
	entity: EntityIncome,
	label:  "Income",
	col:    func(e *Engine) *collection[core.Entry] { return e.income },
	create: func(r remote.Writer) func(context.Context, remote.EntryRow) (remote.EntryRow, error) {
		return r.CreateIncomeSource
	},
	update: func(r remote.Writer) func(context.Context, remote.EntryRow) error { return r.UpdateIncomeSource },
	delete: func(r remote.Writer) func(context.Context, string) error { return r.DeleteIncomeSource },
	swap: func(r remote.Writer) func(context.Context, string, []remote.EntryRow) ([]remote.EntryRow, error) {
		return r.ReplaceIncomeSources
	},
}

var fixedBook = entryBook{
	entity: EntityFixedExpense,
	label:  "FixedExpense",
	col:    func(e *Engine) *collection[core.Entry] { return e.fixed },
	create: func(r remote.Writer) func(context.Context, remote.EntryRow) (remote.EntryRow, error) {
		return r.CreateFixedExpense
	},
	update: func(r remote.Writer) func(context.Context, remote.EntryRow) error { return r.UpdateFixedExpense },
	delete: func(r remote.Writer) func(context.Context, string) error { return r.DeleteFixedExpense },
	swap: func(r remote.Writer) func(context.Context, string, []remote.EntryRow) ([]remote.EntryRow, error) {
		return r.ReplaceFixedExpenses
	},
}

func entryRow(userID string, v core.Entry) remote.EntryRow {
	return remote.EntryRow{ID: v.ID, UserID: userID, Type: v.Type, AmountCents: core.ToCents(v.Amount)}
}

func validateEntry(typ string, amount float64) error {
	if err := core.ValidateName(typ); err != nil {
		return err
	}
	return core.ValidateAmount(amount)
}

func (e *Engine) AddIncome(ctx context.Context, typ string, amount float64) (core.IncomeEntry, error) {
	return e.addEntry(ctx, incomeBook, typ, amount)
}

func (e *Engine) UpdateIncome(ctx context.Context, id, typ string, amount float64) (core.IncomeEntry, error) {
	return e.updateEntry(ctx, incomeBook, id, typ, amount)
}

func (e *Engine) DeleteIncome(ctx context.Context, id string) error {
	return e.deleteEntry(ctx, incomeBook, id)
}

// ReplaceIncome swaps the whole income list, as onboarding does.
func (e *Engine) ReplaceIncome(ctx context.Context, entries []core.IncomeEntry) ([]core.IncomeEntry, error) {
	return e.replaceEntries(ctx, incomeBook, entries)
}

func (e *Engine) AddFixedExpense(ctx context.Context, typ string, amount float64) (core.ExpenseEntry, error) {
	return e.addEntry(ctx, fixedBook, typ, amount)
}

func (e *Engine) UpdateFixedExpense(ctx context.Context, id, typ string, amount float64) (core.ExpenseEntry, error) {
	return e.updateEntry(ctx, fixedBook, id, typ, amount)
}

func (e *Engine) DeleteFixedExpense(ctx context.Context, id string) error {
	return e.deleteEntry(ctx, fixedBook, id)
}

func (e *Engine) ReplaceFixedExpenses(ctx context.Context, entries []core.ExpenseEntry) ([]core.ExpenseEntry, error) {
	return e.replaceEntries(ctx, fixedBook, entries)
}

func (e *Engine) addEntry(ctx context.Context, b entryBook, typ string, amount float64) (core.Entry, error) {
	if err := validateEntry(typ, amount); err != nil {
		return core.Entry{}, fmt.Errorf("add %s: %w", b.entity, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	v := core.Entry{ID: e.newTempID(), Type: typ, Amount: core.RoundAmount(amount)}
	b.col(e).push(v)
	e.persistLocked(ctx, "add"+b.label, "", func(ctx context.Context, s *Session, _ string) error {
		return e.createEntry(ctx, s, b, v.ID)
	})
	return v, nil
}

// createEntry inserts the entry stored under tempID and reconciles its id.
// Edits made while the insert was in flight are sent afterwards; an entry
// deleted meanwhile is deleted remotely too.
func (e *Engine) createEntry(ctx context.Context, s *Session, b entryBook, tempID string) error {
	row, o := locked(e, s, func() (remote.EntryRow, bool) {
		p, ok := b.col(e).get(tempID)
		if !ok {
			return remote.EntryRow{}, false
		}
		return entryRow(s.userID, *p), true
	})
	if o != kept {
		return nil
	}

	row.ID = ""
	created, err := b.create(e.remote)(ctx, row)
	if err != nil {
		return fmt.Errorf("create %s: %w", b.entity, err)
	}
	e.notify(ctx, s, b.entity, OpCreate, created.ID)
	return e.settleEntry(ctx, s, b, tempID, created.ID, row)
}

func (e *Engine) settleEntry(ctx context.Context, s *Session, b entryBook, tempID, serverID string, sent remote.EntryRow) error {
	current, o := locked(e, s, func() (remote.EntryRow, bool) {
		if !b.col(e).rekey(tempID, serverID) {
			return remote.EntryRow{}, false
		}
		e.reconciledLocked(ctx, s, tempID, serverID)
		p, _ := b.col(e).get(serverID)
		return entryRow(s.userID, *p), true
	})
	switch o {
	case stale:
		return nil
	case gone:
		return ignoreMissing(b.delete(e.remote)(ctx, serverID))
	}
	sent.ID = serverID
	if current != sent {
		if err := b.update(e.remote)(ctx, current); err != nil {
			return fmt.Errorf("update %s: %w", b.entity, err)
		}
	}
	return nil
}

func (e *Engine) updateEntry(ctx context.Context, b entryBook, id, typ string, amount float64) (core.Entry, error) {
	if err := validateEntry(typ, amount); err != nil {
		return core.Entry{}, fmt.Errorf("update %s: %w", b.entity, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	id = e.sess.resolve(id)
	p, ok := b.col(e).get(id)
	if !ok {
		return core.Entry{}, fmt.Errorf("update %s %s: %w", b.entity, id, core.ErrNotFound)
	}
	p.Type = typ
	p.Amount = core.RoundAmount(amount)
	v := *p

	if IsTempID(id) {
		e.touchLocked()
		return v, nil
	}
	row := entryRow(e.sess.userID, v)
	e.persistLocked(ctx, "update"+b.label, "", func(ctx context.Context, s *Session, _ string) error {
		if err := b.update(e.remote)(ctx, row); err != nil {
			return fmt.Errorf("update %s: %w", b.entity, err)
		}
		e.notify(ctx, s, b.entity, OpUpdate, row.ID)
		return nil
	})
	return v, nil
}

func (e *Engine) deleteEntry(ctx context.Context, b entryBook, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	id = e.sess.resolve(id)
	if _, ok := b.col(e).remove(id); !ok {
		return fmt.Errorf("delete %s %s: %w", b.entity, id, core.ErrNotFound)
	}
	if IsTempID(id) {
		e.touchLocked()
		return nil
	}
	e.persistLocked(ctx, "delete"+b.label, "", func(ctx context.Context, s *Session, _ string) error {
		if err := ignoreMissing(b.delete(e.remote)(ctx, id)); err != nil {
			return fmt.Errorf("delete %s: %w", b.entity, err)
		}
		e.notify(ctx, s, b.entity, OpDelete, id)
		return nil
	})
	return nil
}

func (e *Engine) replaceEntries(ctx context.Context, b entryBook, in []core.Entry) ([]core.Entry, error) {
	for _, v := range in {
		if err := validateEntry(v.Type, v.Amount); err != nil {
			return nil, fmt.Errorf("replace %s: %w", b.entity, err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.Entry, len(in))
	tempIDs := make([]string, len(in))
	for i, v := range in {
		out[i] = core.Entry{ID: e.newTempID(), Type: v.Type, Amount: core.RoundAmount(v.Amount)}
		tempIDs[i] = out[i].ID
	}
	b.col(e).reset(out)

	userID := e.sess.userID
	rows := make([]remote.EntryRow, len(out))
	for i, v := range out {
		rows[i] = entryRow(userID, v)
		rows[i].ID = ""
	}
	e.persistLocked(ctx, "replace"+b.label, "", func(ctx context.Context, s *Session, _ string) error {
		created, err := b.swap(e.remote)(ctx, s.userID, rows)
		if err != nil {
			return fmt.Errorf("replace %s: %w", b.entity, err)
		}
		if len(created) != len(rows) {
			return fmt.Errorf("replace %s: stored %d of %d rows", b.entity, len(created), len(rows))
		}
		e.notify(ctx, s, b.entity, OpReplace, s.userID)
		for i, c := range created {
			if err := e.settleEntry(ctx, s, b, tempIDs[i], c.ID, rows[i]); err != nil {
				return err
			}
		}
		return nil
	})
	return append([]core.Entry(nil), out...), nil
}
