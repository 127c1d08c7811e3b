package remote

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Bundle is everything FetchAll loaded for one user.
type Bundle struct {
	Onboarding    *Onboarding
	Profile       *Profile
	Income        []EntryRow
	Fixed         []EntryRow
	Goals         []GoalRow
	Contributions []ContributionRow
	Categories    []CategoryRow
	Budgets       []BudgetRow
	Transactions  []TransactionRow
}

// FetchAll loads a user's rows in parallel. The first failing call cancels the
// others and aborts the whole load.
func FetchAll(ctx context.Context, r Reader, userID string) (*Bundle, error) {
	var b Bundle
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		b.Onboarding, err = r.GetOnboarding(ctx, userID)
		return wrap("onboarding", err)
	})
	g.Go(func() (err error) {
		b.Profile, err = r.GetProfile(ctx, userID)
		return wrap("profile", err)
	})
	g.Go(func() (err error) {
		b.Income, err = r.ListIncomeSources(ctx, userID)
		return wrap("income sources", err)
	})
	g.Go(func() (err error) {
		b.Fixed, err = r.ListFixedExpenses(ctx, userID)
		return wrap("fixed expenses", err)
	})
	g.Go(func() (err error) {
		b.Goals, err = r.ListGoals(ctx, userID)
		return wrap("goals", err)
	})
	g.Go(func() (err error) {
		b.Contributions, err = r.ListContributions(ctx, userID)
		return wrap("goal contributions", err)
	})
	g.Go(func() (err error) {
		b.Categories, err = r.ListActiveCategories(ctx)
		return wrap("budget categories", err)
	})
	g.Go(func() (err error) {
		b.Budgets, err = r.ListBudgets(ctx, userID)
		return wrap("budgets", err)
	})
	g.Go(func() (err error) {
		b.Transactions, err = r.ListTransactions(ctx, userID)
		return wrap("transactions", err)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &b, nil
}

func wrap(what string, err error) error {
	if err != nil {
		return fmt.Errorf("fetch %s: %w", what, err)
	}
	return nil
}
