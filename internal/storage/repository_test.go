package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"finanzen/internal/remote"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "remote.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestOnboardingAndProfile(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	o, err := repo.GetOnboarding(ctx, "u1")
	if err != nil || o != nil {
		t.Fatalf("missing onboarding = %v, %v; want nil, nil", o, err)
	}
	if err := repo.CreateOnboarding(ctx, remote.Onboarding{UserID: "u1"}); err != nil {
		t.Fatalf("CreateOnboarding: %v", err)
	}
	if err := repo.UpdateOnboarding(ctx, remote.Onboarding{UserID: "u1", Completed: true}); err != nil {
		t.Fatalf("UpdateOnboarding: %v", err)
	}
	o, err = repo.GetOnboarding(ctx, "u1")
	if err != nil || o == nil || !o.Completed {
		t.Fatalf("GetOnboarding = %+v, %v", o, err)
	}

	if err := repo.UpsertProfile(ctx, remote.Profile{UserID: "u1", Currency: "EUR"}); err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}
	if err := repo.UpsertProfile(ctx, remote.Profile{UserID: "u1", Currency: "CHF"}); err != nil {
		t.Fatalf("UpsertProfile again: %v", err)
	}
	p, err := repo.GetProfile(ctx, "u1")
	if err != nil || p.Currency != "CHF" {
		t.Fatalf("GetProfile = %+v, %v", p, err)
	}
}

func TestEntriesCRUDAndReplace(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateIncomeSource(ctx, remote.EntryRow{UserID: "u1", Type: "Gehalt", AmountCents: 300000})
	if err != nil || created.ID == "" {
		t.Fatalf("CreateIncomeSource = %+v, %v", created, err)
	}
	created.AmountCents = 310000
	if err := repo.UpdateIncomeSource(ctx, created); err != nil {
		t.Fatalf("UpdateIncomeSource: %v", err)
	}
	if err := repo.UpdateIncomeSource(ctx, remote.EntryRow{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing = %v, want ErrNotFound", err)
	}

	replaced, err := repo.ReplaceIncomeSources(ctx, "u1", []remote.EntryRow{
		{Type: "Gehalt", AmountCents: 250000},
		{Type: "Nebenjob", AmountCents: 45000},
	})
	if err != nil || len(replaced) != 2 {
		t.Fatalf("ReplaceIncomeSources = %v, %v", replaced, err)
	}

	rows, err := repo.ListIncomeSources(ctx, "u1")
	if err != nil {
		t.Fatalf("ListIncomeSources: %v", err)
	}
	if len(rows) != 2 || rows[0].Type != "Gehalt" || rows[1].AmountCents != 45000 {
		t.Fatalf("unexpected rows after replace: %+v", rows)
	}
	for _, r := range rows {
		if r.ID == created.ID {
			t.Fatal("replaced row survived")
		}
	}

	if err := repo.DeleteIncomeSource(ctx, rows[0].ID); err != nil {
		t.Fatalf("DeleteIncomeSource: %v", err)
	}
	fixed, err := repo.CreateFixedExpense(ctx, remote.EntryRow{UserID: "u1", Type: "Miete", AmountCents: 120000})
	if err != nil {
		t.Fatalf("CreateFixedExpense: %v", err)
	}
	list, _ := repo.ListFixedExpenses(ctx, "u1")
	if len(list) != 1 || list[0].ID != fixed.ID {
		t.Fatalf("ListFixedExpenses = %+v", list)
	}
}

func TestBudgetTransactionsAndGoals(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	cats, err := repo.ListActiveCategories(ctx)
	if err != nil || len(cats) == 0 {
		t.Fatalf("ListActiveCategories = %v, %v", cats, err)
	}
	if cats[len(cats)-1].Name != "Sonstiges" {
		t.Fatalf("catch-all category should sort last, got %q", cats[len(cats)-1].Name)
	}

	budget, err := repo.CreateBudget(ctx, remote.BudgetRow{UserID: "u1", CategoryID: cats[0].ID, Name: "Lebensmittel", LimitCents: 40000})
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}

	older := time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)
	tx1, err := repo.CreateTransaction(ctx, remote.TransactionRow{UserID: "u1", BudgetID: budget.ID, CategoryID: cats[0].ID, Name: "Rewe", AmountCents: -2350, OccurredAt: older})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	tx2, err := repo.CreateTransaction(ctx, remote.TransactionRow{UserID: "u1", CategoryID: cats[0].ID, Name: "Kino", AmountCents: -1200, OccurredAt: newer})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	txs, err := repo.ListTransactions(ctx, "u1")
	if err != nil || len(txs) != 2 {
		t.Fatalf("ListTransactions = %v, %v", txs, err)
	}
	if txs[0].ID != tx2.ID || txs[1].BudgetID != budget.ID || !txs[1].OccurredAt.Equal(older) {
		t.Fatalf("transactions not newest first: %+v", txs)
	}

	got, err := repo.GetTransaction(ctx, tx1.ID)
	if err != nil || got.AmountCents != -2350 {
		t.Fatalf("GetTransaction = %+v, %v", got, err)
	}

	if err := repo.DeleteTransactionsByBudget(ctx, budget.ID); err != nil {
		t.Fatalf("DeleteTransactionsByBudget: %v", err)
	}
	txs, _ = repo.ListTransactions(ctx, "u1")
	if len(txs) != 1 || txs[0].ID != tx2.ID {
		t.Fatalf("budget transactions not removed: %+v", txs)
	}

	goal, err := repo.CreateGoal(ctx, remote.GoalRow{UserID: "u1", Name: "Urlaub", TargetCents: 100000})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	contrib, err := repo.CreateContribution(ctx, remote.ContributionRow{GoalID: goal.ID, TransactionID: tx2.ID, AmountCents: 40000, Kind: "deposit", OccurredAt: newer})
	if err != nil {
		t.Fatalf("CreateContribution: %v", err)
	}
	contribs, err := repo.ListContributions(ctx, "u1")
	if err != nil || len(contribs) != 1 || contribs[0].TransactionID != tx2.ID {
		t.Fatalf("ListContributions = %+v, %v", contribs, err)
	}

	if err := repo.DeleteGoal(ctx, goal.ID); err != nil {
		t.Fatalf("DeleteGoal: %v", err)
	}
	if err := repo.DeleteContribution(ctx, contrib.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("contribution should cascade with goal, got %v", err)
	}
}

func TestFetchAllAndDeleteAll(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateOnboarding(ctx, remote.Onboarding{UserID: "u1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CreateIncomeSource(ctx, remote.EntryRow{UserID: "u1", Type: "Gehalt", AmountCents: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CreateIncomeSource(ctx, remote.EntryRow{UserID: "u2", Type: "Gehalt", AmountCents: 2}); err != nil {
		t.Fatal(err)
	}

	b, err := remote.FetchAll(ctx, repo, "u1")
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if b.Onboarding == nil || len(b.Income) != 1 || b.Profile != nil || len(b.Categories) == 0 {
		t.Fatalf("unexpected bundle: %+v", b)
	}

	if err := repo.DeleteAllForUser(ctx, "u1"); err != nil {
		t.Fatalf("DeleteAllForUser: %v", err)
	}
	b, _ = remote.FetchAll(ctx, repo, "u1")
	if b.Onboarding != nil || len(b.Income) != 0 {
		t.Fatalf("user data survived: %+v", b)
	}
	other, _ := repo.ListIncomeSources(ctx, "u2")
	if len(other) != 1 {
		t.Fatal("other user's data was deleted")
	}
}
