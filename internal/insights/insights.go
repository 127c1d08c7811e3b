// Package insights folds the entity collections into derived aggregates.
// Everything here is a pure function of its inputs.
package insights

import (
	"sort"
	"time"

	"finanzen/internal/classify"
	"finanzen/internal/core"
	"finanzen/internal/dates"
)

// Totals is the balance chain derived from a snapshot.
type Totals struct {
	TotalIncome           float64 `json:"totalIncome"`
	TotalFixedExpenses    float64 `json:"totalFixedExpenses"`
	TotalVariableExpenses float64 `json:"totalVariableExpenses"`
	TotalExpenses         float64 `json:"totalExpenses"`
	MonthlyBudget         float64 `json:"monthlyBudget"`
	Balance               float64 `json:"balance"`
	SavingsRate           float64 `json:"savingsRate"`
}

// Compute derives the balance chain. Sums are taken in cents.
func Compute(s core.Snapshot) Totals {
	var income, fixed, variable int64
	for _, e := range s.Income {
		income += core.ToCents(e.Amount)
	}
	for _, e := range s.FixedExpenses {
		fixed += core.ToCents(e.Amount)
	}
	for _, b := range s.Budgets {
		variable += core.ToCents(b.Current)
	}
	total := fixed + variable
	monthly := income - fixed

	t := Totals{
		TotalIncome:           core.FromCents(income),
		TotalFixedExpenses:    core.FromCents(fixed),
		TotalVariableExpenses: core.FromCents(variable),
		TotalExpenses:         core.FromCents(total),
		MonthlyBudget:         core.FromCents(monthly),
		Balance:               core.FromCents(monthly - variable),
	}
	if income > 0 {
		t.SavingsRate = float64(income-total) / float64(income) * 100
	}
	return t
}

// Week is the spending of one Monday-Sunday window.
type Week struct {
	Offset    int        `json:"offset"`
	Start     time.Time  `json:"start"`
	Days      [7]float64 `json:"days"`
	MaxAmount float64    `json:"maxAmount"`
	Total     float64    `json:"total"`
}

// ClampWeekOffset prevents navigating into future weeks.
func ClampWeekOffset(offset int) int {
	return min(offset, 0)
}

// WeeklySpending buckets expense transactions (negative amounts) by weekday for
// the week offset weeks from now. MaxAmount is at least 1.
func WeeklySpending(txs []core.Transaction, now time.Time, offset int) Week {
	offset = ClampWeekOffset(offset)
	start, end := dates.WeekWindow(now, offset)

	var cents [7]int64
	var total int64
	for _, tx := range txs {
		if tx.Amount >= 0 {
			continue
		}
		at := tx.EffectiveTime(now)
		if at.Before(start) || !at.Before(end) {
			continue
		}
		c := -core.ToCents(tx.Amount)
		cents[dates.Weekday(at)] += c
		total += c
	}

	w := Week{Offset: offset, Start: start, Total: core.FromCents(total), MaxAmount: 1}
	for i, c := range cents {
		w.Days[i] = core.FromCents(c)
		if w.Days[i] > w.MaxAmount {
			w.MaxAmount = w.Days[i]
		}
	}
	return w
}

// CategoryAmount is one slice of the category breakdown.
type CategoryAmount struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// CategoryBreakdown sums budget spending per budget and fixed expenses per
// keyword bucket, drops non-positive totals and sorts descending.
func CategoryBreakdown(budgets []core.Budget, fixed []core.ExpenseEntry, table classify.Table) []CategoryAmount {
	sums := map[string]int64{}
	var order []string
	add := func(name string, cents int64) {
		if _, ok := sums[name]; !ok {
			order = append(order, name)
		}
		sums[name] += cents
	}
	for _, b := range budgets {
		add(b.Name, core.ToCents(b.Current))
	}
	for _, e := range fixed {
		add(table.Classify(e.Type), core.ToCents(e.Amount))
	}

	out := make([]CategoryAmount, 0, len(order))
	for _, name := range order {
		if sums[name] <= 0 {
			continue
		}
		out = append(out, CategoryAmount{Name: name, Amount: core.FromCents(sums[name])})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount > out[j].Amount })
	return out
}

// TrendMultipliers scale variable spending for the five synthesized months
// before the current one, oldest first.
var TrendMultipliers = [5]float64{0.85, 1.10, 0.95, 1.05, 0.90}

// TrendPoint is one month of the trend series.
type TrendPoint struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// MonthlyTrend returns six points ending at now's month. The last point is the
// real total; earlier ones are fixed plus scaled variable spending.
func MonthlyTrend(t Totals, now time.Time) []TrendPoint {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	out := make([]TrendPoint, 0, len(TrendMultipliers)+1)
	for i, m := range TrendMultipliers {
		month := first.AddDate(0, i-len(TrendMultipliers), 0)
		amount := core.RoundAmount(t.TotalFixedExpenses + t.TotalVariableExpenses*m)
		out = append(out, TrendPoint{Month: dates.MonthKey(month), Amount: amount})
	}
	return append(out, TrendPoint{Month: dates.MonthKey(first), Amount: t.TotalExpenses})
}
