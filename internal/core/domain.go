package core

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"finanzen/internal/dates"
)

const (
	KindDeposit   DepositKind = "deposit"
	KindRepayment DepositKind = "repayment"

	DefaultCurrency = "EUR"
)

type (
	DepositKind string

	// Entry is a named monthly amount: an income source or a fixed expense.
	Entry struct {
		ID     string  `json:"id"`
		Type   string  `json:"type"`
		Amount float64 `json:"amount"`
	}

	IncomeEntry  = Entry
	ExpenseEntry = Entry

	// GoalDeposit is a contribution owned by a Goal. TransactionID links it to
	// its mirrored ledger Transaction.
	GoalDeposit struct {
		ID            string      `json:"id"`
		Date          string      `json:"date"`
		Amount        float64     `json:"amount"`
		Type          DepositKind `json:"type"`
		TransactionID string      `json:"transactionId,omitempty"`
	}

	Goal struct {
		ID        string        `json:"id"`
		Name      string        `json:"name"`
		Icon      string        `json:"icon"`
		Target    float64       `json:"target"`
		Current   float64       `json:"current"`
		Remaining float64       `json:"remaining"`
		Deposits  []GoalDeposit `json:"deposits"`
	}

	// BudgetExpense is a spend event owned by a Budget. Its mirrored
	// Transaction carries the same ID.
	BudgetExpense struct {
		ID        string  `json:"id"`
		Name      string  `json:"name"`
		Date      string  `json:"date"`
		Amount    float64 `json:"amount"`
		Timestamp *int64  `json:"timestamp,omitempty"`
	}

	Budget struct {
		ID         string          `json:"id"`
		Name       string          `json:"name"`
		Icon       string          `json:"icon"`
		IconColor  string          `json:"iconColor"`
		Limit      float64         `json:"limit"`
		Current    float64         `json:"current"`
		CategoryID string          `json:"categoryId,omitempty"`
		Expenses   []BudgetExpense `json:"expenses"`
	}

	// Transaction is a ledger entry. Negative amounts are expenses, positive
	// amounts income. BudgetID or GoalID/DepositID are set when the entry
	// mirrors a budget expense or a goal deposit.
	Transaction struct {
		ID        string  `json:"id"`
		Name      string  `json:"name"`
		Category  string  `json:"category"`
		Date      string  `json:"date"`
		Amount    float64 `json:"amount"`
		Icon      string  `json:"icon"`
		Timestamp *int64  `json:"timestamp,omitempty"`
		BudgetID  string  `json:"budgetId,omitempty"`
		GoalID    string  `json:"goalId,omitempty"`
		DepositID string  `json:"depositId,omitempty"`
	}

	// BudgetCategory is reference data used to map budgets and ledger entries
	// to remote category rows.
	BudgetCategory struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Icon string `json:"icon"`
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyName     = errors.New("empty name")
	ErrNotFound      = errors.New("record not found")
	ErrNoCategory    = errors.New("no matching budget category")
	ErrNoUser        = errors.New("no authenticated user")
)

// Millis returns a pointer to the epoch milliseconds of t.
func Millis(t time.Time) *int64 {
	ms := t.UnixMilli()
	return &ms
}

func effectiveTime(ts *int64, date string, now time.Time) time.Time {
	if ts != nil {
		return time.UnixMilli(*ts).In(now.Location())
	}
	return dates.Parse(date, now)
}

// EffectiveTime returns the timestamp when present, else the parsed display date.
func (e BudgetExpense) EffectiveTime(now time.Time) time.Time {
	return effectiveTime(e.Timestamp, e.Date, now)
}

// EffectiveTime returns the timestamp when present, else the parsed display date.
func (t Transaction) EffectiveTime(now time.Time) time.Time {
	return effectiveTime(t.Timestamp, t.Date, now)
}

// IsMirror reports whether the transaction mirrors a budget expense or goal deposit.
func (t Transaction) IsMirror() bool {
	return t.BudgetID != "" || t.GoalID != ""
}

// Recompute derives Current and Remaining from the deposits. Repayments and
// deposits both count towards the goal.
func (g *Goal) Recompute() {
	var sum int64
	for _, d := range g.Deposits {
		sum += ToCents(d.Amount)
	}
	g.Current = FromCents(sum)
	g.Remaining = FromCents(max(0, ToCents(g.Target)-sum))
}

// SortDeposits orders deposits newest first by date, keeping insertion order on ties.
func (g *Goal) SortDeposits(now time.Time) {
	sort.SliceStable(g.Deposits, func(i, j int) bool {
		return dates.Parse(g.Deposits[i].Date, now).After(dates.Parse(g.Deposits[j].Date, now))
	})
}

// DepositIndex returns the position of the deposit with id, or -1.
func (g *Goal) DepositIndex(id string) int {
	for i := range g.Deposits {
		if g.Deposits[i].ID == id {
			return i
		}
	}
	return -1
}

// Recompute sets Current to the sum of expenses falling in now's calendar month.
func (b *Budget) Recompute(now time.Time) {
	var sum int64
	for _, e := range b.Expenses {
		if dates.SameMonth(e.EffectiveTime(now), now) {
			sum += ToCents(e.Amount)
		}
	}
	b.Current = FromCents(sum)
}

// ExpenseIndex returns the position of the expense with id, or -1.
func (b *Budget) ExpenseIndex(id string) int {
	for i := range b.Expenses {
		if b.Expenses[i].ID == id {
			return i
		}
	}
	return -1
}

// ValidateName rejects blank names.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if len(name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	return nil
}

// ValidateAmount rejects negative amounts and amounts finer than a cent after rounding to zero.
func ValidateAmount(amount float64) error {
	if !finite(amount) || amount < 0 || (amount != 0 && ToCents(amount) == 0) {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateSignedAmount accepts either sign but rejects amounts that round to
// zero cents.
func ValidateSignedAmount(amount float64) error {
	if !finite(amount) || ToCents(amount) == 0 {
		return ErrInvalidAmount
	}
	return nil
}

func finite(amount float64) bool {
	return !math.IsNaN(amount) && !math.IsInf(amount, 0)
}
