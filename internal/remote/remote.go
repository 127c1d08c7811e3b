// Package remote defines the contract of the relational backend the engine
// synchronizes with. Every amount crossing this boundary is in minor units.
package remote

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by updates and deletes that match no row.
var ErrNotFound = errors.New("row not found")

// Row types mirror the backend tables.
type (
	Onboarding struct {
		UserID    string
		Completed bool
	}

	Profile struct {
		UserID   string
		Currency string
	}

	// EntryRow is an income source or fixed expense row.
	EntryRow struct {
		ID          string
		UserID      string
		Type        string
		AmountCents int64
	}

	GoalRow struct {
		ID          string
		UserID      string
		Name        string
		Icon        string
		TargetCents int64
	}

	ContributionRow struct {
		ID            string
		GoalID        string
		TransactionID string
		AmountCents   int64
		Kind          string
		OccurredAt    time.Time
	}

	CategoryRow struct {
		ID     string
		Name   string
		Icon   string
		Active bool
	}

	BudgetRow struct {
		ID         string
		UserID     string
		CategoryID string
		Name       string
		Icon       string
		IconColor  string
		LimitCents int64
	}

	// TransactionRow is a ledger row. BudgetID links budget expenses;
	// CategoryID is required for every row.
	TransactionRow struct {
		ID          string
		UserID      string
		BudgetID    string
		CategoryID  string
		Name        string
		Icon        string
		AmountCents int64
		OccurredAt  time.Time
	}
)

// Reader lists everything a user owns.
type Reader interface {
	GetOnboarding(ctx context.Context, userID string) (*Onboarding, error)
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	ListIncomeSources(ctx context.Context, userID string) ([]EntryRow, error)
	ListFixedExpenses(ctx context.Context, userID string) ([]EntryRow, error)
	ListGoals(ctx context.Context, userID string) ([]GoalRow, error)
	ListContributions(ctx context.Context, userID string) ([]ContributionRow, error)
	ListActiveCategories(ctx context.Context) ([]CategoryRow, error)
	ListBudgets(ctx context.Context, userID string) ([]BudgetRow, error)
	// ListTransactions returns rows newest first.
	ListTransactions(ctx context.Context, userID string) ([]TransactionRow, error)
	GetTransaction(ctx context.Context, id string) (*TransactionRow, error)
}

// Writer mutates rows. Create calls return the persisted row carrying the
// server-assigned id.
type Writer interface {
	CreateOnboarding(ctx context.Context, o Onboarding) error
	UpdateOnboarding(ctx context.Context, o Onboarding) error
	UpsertProfile(ctx context.Context, p Profile) error

	CreateIncomeSource(ctx context.Context, r EntryRow) (EntryRow, error)
	UpdateIncomeSource(ctx context.Context, r EntryRow) error
	DeleteIncomeSource(ctx context.Context, id string) error
	ReplaceIncomeSources(ctx context.Context, userID string, rows []EntryRow) ([]EntryRow, error)

	CreateFixedExpense(ctx context.Context, r EntryRow) (EntryRow, error)
	UpdateFixedExpense(ctx context.Context, r EntryRow) error
	DeleteFixedExpense(ctx context.Context, id string) error
	ReplaceFixedExpenses(ctx context.Context, userID string, rows []EntryRow) ([]EntryRow, error)

	CreateGoal(ctx context.Context, r GoalRow) (GoalRow, error)
	UpdateGoal(ctx context.Context, r GoalRow) error
	DeleteGoal(ctx context.Context, id string) error

	CreateContribution(ctx context.Context, r ContributionRow) (ContributionRow, error)
	UpdateContribution(ctx context.Context, r ContributionRow) error
	DeleteContribution(ctx context.Context, id string) error

	CreateBudget(ctx context.Context, r BudgetRow) (BudgetRow, error)
	UpdateBudget(ctx context.Context, r BudgetRow) error
	DeleteBudget(ctx context.Context, id string) error

	CreateTransaction(ctx context.Context, r TransactionRow) (TransactionRow, error)
	UpdateTransaction(ctx context.Context, r TransactionRow) error
	DeleteTransaction(ctx context.Context, id string) error
	DeleteTransactionsByBudget(ctx context.Context, budgetID string) error

	// DeleteAllForUser removes every row the user owns.
	DeleteAllForUser(ctx context.Context, userID string) error
}

// Store is the complete backend contract.
type Store interface {
	Reader
	Writer
}
