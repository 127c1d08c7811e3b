package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"finanzen/internal/core"
	"finanzen/internal/dates"
	"finanzen/internal/remote"
)

// Load starts a new session for userID. With a user and a remote store it
// fetches everything in one bulk load; on any failure, or without a user, it
// falls back to the local snapshot and the session stays local-only.
func (e *Engine) Load(ctx context.Context, userID string) {
	e.Flush(ctx)

	e.mu.Lock()
	s := newSession(userID, userID != "" && e.remote != nil, e.categoryTTL, e.now)
	e.sess = s
	e.weekOffset = 0
	e.mu.Unlock()

	if userID == "" {
		e.loadLocal(ctx, s, &OpError{Op: "load", Err: core.ErrNoUser})
		return
	}
	if e.remote == nil {
		e.loadLocal(ctx, s, nil)
		return
	}

	snap, categories, err := e.fetchRemote(ctx, userID)
	if err != nil {
		logger(ctx).WarnContext(ctx, "Remote load failed, using local snapshot", "user_id", userID, "error", err)
		e.loadLocal(ctx, s, &OpError{Op: "load", Err: err})
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess != s {
		return
	}
	s.storeCategories(categories)
	e.applySnapshotLocked(snap)
	e.rolloverLocked(ctx, false)
	logger(ctx).InfoContext(ctx, "Loaded financial state from remote",
		"user_id", userID,
		"goals", e.goals.len(),
		"budgets", e.budgets.len(),
		"transactions", e.txs.len())
}

func (e *Engine) loadLocal(ctx context.Context, s *Session, cause error) {
	snap, err := e.local.Load(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess != s {
		return
	}
	s.remoteUsable = false
	s.lastErr = cause
	if err != nil {
		logger(ctx).ErrorContext(ctx, "Failed to read local snapshot, keeping in-memory state", "error", err)
	} else {
		e.applySnapshotLocked(snap)
	}
	e.rolloverLocked(ctx, false)
	logger(ctx).InfoContext(ctx, "Loaded financial state from local snapshot", "user_id", s.userID)
}

// Logout drops the session and clears the in-memory state.
func (e *Engine) Logout(ctx context.Context) {
	e.Flush(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess = newSession("", false, e.categoryTTL, e.now)
	e.weekOffset = 0
	e.applySnapshotLocked(core.EmptySnapshot())
	// Reads after logout must not overwrite the stored snapshot with this
	// empty state.
	e.sess.lastResetMonth = dates.MonthKey(e.now())
}

func (e *Engine) fetchRemote(ctx context.Context, userID string) (core.Snapshot, []remote.CategoryRow, error) {
	b, err := remote.FetchAll(ctx, e.remote, userID)
	if err != nil {
		return core.Snapshot{}, nil, err
	}
	if b.Onboarding == nil {
		o := remote.Onboarding{UserID: userID}
		if err := e.remote.CreateOnboarding(ctx, o); err != nil {
			return core.Snapshot{}, nil, fmt.Errorf("create onboarding: %w", err)
		}
		b.Onboarding = &o
	}
	return buildSnapshot(b, e.now()), b.Categories, nil
}

// buildSnapshot turns remote rows into in-memory entities. Goal totals come
// from contributions, budget totals from this month's linked transactions and
// ledger display fields from the linked budget or category.
func buildSnapshot(b *remote.Bundle, now time.Time) core.Snapshot {
	snap := core.EmptySnapshot()
	snap.Onboarded = b.Onboarding != nil && b.Onboarding.Completed
	if b.Profile != nil && b.Profile.Currency != "" {
		snap.Currency = b.Profile.Currency
	}
	for _, r := range b.Income {
		snap.Income = append(snap.Income, core.Entry{ID: r.ID, Type: r.Type, Amount: core.FromCents(r.AmountCents)})
	}
	for _, r := range b.Fixed {
		snap.FixedExpenses = append(snap.FixedExpenses, core.Entry{ID: r.ID, Type: r.Type, Amount: core.FromCents(r.AmountCents)})
	}

	categories := make(map[string]remote.CategoryRow, len(b.Categories))
	for _, c := range b.Categories {
		categories[c.ID] = c
	}
	budgets := make(map[string]remote.BudgetRow, len(b.Budgets))
	for _, r := range b.Budgets {
		budgets[r.ID] = r
	}
	deposits := make(map[string][]core.GoalDeposit)
	byTx := make(map[string]remote.ContributionRow)
	for _, c := range b.Contributions {
		deposits[c.GoalID] = append(deposits[c.GoalID], core.GoalDeposit{
			ID:            c.ID,
			Date:          dates.FormatStamp(c.OccurredAt, now),
			Amount:        core.FromCents(c.AmountCents),
			Type:          core.DepositKind(c.Kind),
			TransactionID: c.TransactionID,
		})
		if c.TransactionID != "" {
			byTx[c.TransactionID] = c
		}
	}

	expenses := make(map[string][]core.BudgetExpense)
	for _, r := range b.Transactions {
		at := r.OccurredAt.In(now.Location())
		tx := core.Transaction{
			ID:        r.ID,
			Name:      r.Name,
			Date:      dates.Format(at, now),
			Amount:    core.FromCents(r.AmountCents),
			Icon:      r.Icon,
			Timestamp: core.Millis(at),
		}
		if c, ok := categories[r.CategoryID]; ok {
			tx.Category = c.Name
			if tx.Icon == "" {
				tx.Icon = c.Icon
			}
		}
		if bud, ok := budgets[r.BudgetID]; ok {
			tx.BudgetID = bud.ID
			tx.Category = bud.Name
			if tx.Icon == "" {
				tx.Icon = bud.Icon
			}
			expenses[bud.ID] = append(expenses[bud.ID], core.BudgetExpense{
				ID:        r.ID,
				Name:      r.Name,
				Date:      tx.Date,
				Amount:    core.FromCents(-r.AmountCents),
				Timestamp: tx.Timestamp,
			})
		}
		if c, ok := byTx[r.ID]; ok {
			tx.GoalID = c.GoalID
			tx.DepositID = c.ID
		}
		snap.Transactions = append(snap.Transactions, tx)
	}
	sort.SliceStable(snap.Transactions, func(i, j int) bool {
		return *snap.Transactions[i].Timestamp > *snap.Transactions[j].Timestamp
	})

	for _, r := range b.Goals {
		g := core.Goal{
			ID:       r.ID,
			Name:     r.Name,
			Icon:     r.Icon,
			Target:   core.FromCents(r.TargetCents),
			Deposits: deposits[r.ID],
		}
		if g.Deposits == nil {
			g.Deposits = []core.GoalDeposit{}
		}
		g.SortDeposits(now)
		g.Recompute()
		snap.Goals = append(snap.Goals, g)
	}
	for _, r := range b.Budgets {
		bud := core.Budget{
			ID:         r.ID,
			Name:       r.Name,
			Icon:       r.Icon,
			IconColor:  r.IconColor,
			Limit:      core.FromCents(r.LimitCents),
			CategoryID: r.CategoryID,
			Expenses:   expenses[r.ID],
		}
		if bud.Expenses == nil {
			bud.Expenses = []core.BudgetExpense{}
		}
		bud.Recompute(now)
		snap.Budgets = append(snap.Budgets, bud)
	}
	return snap
}

// ResetMonthlyBudgets recomputes every budget for the current month even if
// the month has not changed.
func (e *Engine) ResetMonthlyBudgets(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rolloverLocked(ctx, true)
	e.touchLocked()
}

// rolloverLocked recomputes budget totals once the calendar month moved past
// the stored marker. Expenses already booked in the new month keep counting.
func (e *Engine) rolloverLocked(ctx context.Context, force bool) {
	now := e.now()
	month := dates.MonthKey(now)
	if !force && e.sess.lastResetMonth == month {
		return
	}
	e.budgets.each(func(b *core.Budget) { b.Recompute(now) })
	previous := e.sess.lastResetMonth
	e.sess.lastResetMonth = month
	if previous != month {
		logger(ctx).InfoContext(ctx, "Monthly budgets rolled over", "from", previous, "to", month)
		e.touchLocked()
	}
}
