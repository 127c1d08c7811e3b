// Package classify maps free-text names to buckets using keyword tables.
package classify

import (
	"strings"

	"finanzen/internal/core"
)

// Rule assigns Bucket to any name containing one of Keywords.
type Rule struct {
	Bucket   string
	Icon     string
	Keywords []string
}

// Table is an ordered list of rules; the first matching rule wins.
type Table struct {
	Rules    []Rule
	Fallback string
}

// Classify returns the bucket for name, or the fallback bucket.
func (t Table) Classify(name string) string {
	if r, ok := t.Match(name); ok {
		return r.Bucket
	}
	return t.Fallback
}

// Match returns the first rule whose keyword occurs in name, case-insensitively.
func (t Table) Match(name string) (Rule, bool) {
	lower := strings.ToLower(name)
	for _, r := range t.Rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return r, true
			}
		}
	}
	return Rule{}, false
}

// FallbackBucket is where fixed expenses land when no keyword matches.
const FallbackBucket = "Sonstiges"

// DefaultInsightBuckets groups fixed expenses for the category breakdown.
var DefaultInsightBuckets = Table{
	Rules: []Rule{
		{Bucket: "Wohnen", Icon: "home", Keywords: []string{"miete", "rent", "nebenkosten", "strom", "gas", "wasser", "heizung"}},
		{Bucket: "Versicherungen", Icon: "shield", Keywords: []string{"versicherung", "insurance", "haftpflicht", "krankenkasse"}},
		{Bucket: "Mobilität", Icon: "car", Keywords: []string{"auto", "kfz", "bahn", "ticket", "benzin", "leasing", "öpnv"}},
		{Bucket: "Abos & Kommunikation", Icon: "wifi", Keywords: []string{"handy", "internet", "netflix", "spotify", "abo", "telefon", "streaming"}},
		{Bucket: "Lebensmittel", Icon: "cart", Keywords: []string{"lebensmittel", "essen", "supermarkt", "groceries"}},
	},
	Fallback: FallbackBucket,
}

// repaymentTable flags goal names that describe paying down debt.
var repaymentTable = Table{
	Rules: []Rule{
		{Bucket: string(core.KindRepayment), Keywords: []string{"schuld", "kredit", "darlehen", "debt", "loan", "rückzahlung", "abzahlung", "tilgung"}},
	},
	Fallback: string(core.KindDeposit),
}

// DepositKind classifies a contribution to the goal named goalName.
func DepositKind(goalName string) core.DepositKind {
	return core.DepositKind(repaymentTable.Classify(goalName))
}
