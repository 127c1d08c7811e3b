package sheets

import (
	"testing"
	"time"

	"finanzen/internal/remote"
)

func TestLedgerRow(t *testing.T) {
	at := time.Date(2025, 3, 7, 18, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		tx   remote.TransactionRow
		want []any
	}{
		{
			name: "expense",
			tx:   remote.TransactionRow{ID: "tx-1", Name: "Rewe", AmountCents: -4250, OccurredAt: at},
			want: []any{"07.03.2025", "Rewe", "Lebensmittel", "-42.50", "tx-1"},
		},
		{
			name: "income",
			tx:   remote.TransactionRow{ID: "tx-2", Name: "Gehalt", AmountCents: 300000, OccurredAt: at},
			want: []any{"07.03.2025", "Gehalt", "Lebensmittel", "3000.00", "tx-2"},
		},
		{
			name: "single cent",
			tx:   remote.TransactionRow{ID: "tx-3", Name: "Rundung", AmountCents: -1, OccurredAt: at},
			want: []any{"07.03.2025", "Rundung", "Lebensmittel", "-0.01", "tx-3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LedgerRow(tt.tx, "Lebensmittel").Values()
			if len(got) != len(tt.want) {
				t.Fatalf("Values() = %v", got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("column %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
