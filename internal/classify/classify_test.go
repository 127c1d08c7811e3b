package classify

import (
	"testing"

	"finanzen/internal/core"
)

func TestDefaultInsightBuckets(t *testing.T) {
	cases := map[string]string{
		"Miete":               "Wohnen",
		"Stromabschlag":       "Wohnen",
		"KFZ-Versicherung":    "Versicherungen",
		"Deutschlandticket":   "Mobilität",
		"Netflix":             "Abos & Kommunikation",
		"Fitnessstudio":       FallbackBucket,
		"":                    FallbackBucket,
		"HANDYVERTRAG":        "Abos & Kommunikation",
		"Wocheneinkauf Essen": "Lebensmittel",
	}
	for name, want := range cases {
		if got := DefaultInsightBuckets.Classify(name); got != want {
			t.Errorf("Classify(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestFirstRuleWins(t *testing.T) {
	tbl := Table{
		Rules: []Rule{
			{Bucket: "A", Keywords: []string{"x"}},
			{Bucket: "B", Keywords: []string{"x"}},
		},
		Fallback: "F",
	}
	if got := tbl.Classify("xyz"); got != "A" {
		t.Fatalf("Classify = %q, want A", got)
	}
}

func TestDepositKind(t *testing.T) {
	if got := DepositKind("Autokredit abbezahlen"); got != core.KindRepayment {
		t.Errorf("DepositKind(kredit) = %q", got)
	}
	if got := DepositKind("Urlaub 2026"); got != core.KindDeposit {
		t.Errorf("DepositKind(urlaub) = %q", got)
	}
}
