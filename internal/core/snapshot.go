package core

// Snapshot is the complete financial state of one user. It is the unit the
// local fallback store persists.
type Snapshot struct {
	Onboarded      bool           `json:"onboarded"`
	Currency       string         `json:"currency"`
	Income         []IncomeEntry  `json:"income"`
	FixedExpenses  []ExpenseEntry `json:"fixedExpenses"`
	Goals          []Goal         `json:"goals"`
	Budgets        []Budget       `json:"budgets"`
	Transactions   []Transaction  `json:"transactions"`
	LastResetMonth string         `json:"lastResetMonth"`
}

// EmptySnapshot returns the default state of a fresh user.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Currency:      DefaultCurrency,
		Income:        []IncomeEntry{},
		FixedExpenses: []ExpenseEntry{},
		Goals:         []Goal{},
		Budgets:       []Budget{},
		Transactions:  []Transaction{},
	}
}

// Clone returns a deep copy so callers never share slices with the engine.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Income = append([]IncomeEntry{}, s.Income...)
	out.FixedExpenses = append([]ExpenseEntry{}, s.FixedExpenses...)
	out.Goals = make([]Goal, len(s.Goals))
	for i, g := range s.Goals {
		g.Deposits = append([]GoalDeposit{}, g.Deposits...)
		out.Goals[i] = g
	}
	out.Budgets = make([]Budget, len(s.Budgets))
	for i, b := range s.Budgets {
		b.Expenses = append([]BudgetExpense{}, b.Expenses...)
		out.Budgets[i] = b
	}
	out.Transactions = append([]Transaction{}, s.Transactions...)
	return out
}
