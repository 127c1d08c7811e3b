package core

import "testing"

func TestCentsRoundTrip(t *testing.T) {
	amounts := []float64{0, 0.01, 0.1, 0.29, 1.005, 12.34, 19.99, 1200, 3000, 99999.99, -45.67}
	for _, a := range amounts {
		want := RoundAmount(a)
		if got := FromCents(ToCents(a)); got != want {
			t.Errorf("FromCents(ToCents(%v)) = %v, want %v", a, got, want)
		}
	}
	for _, a := range []float64{0.01, 12.34, 19.99, 1200, 99999.99} {
		if got := FromCents(ToCents(a)); got != a {
			t.Errorf("two-decimal amount %v did not round trip: %v", a, got)
		}
	}
}

func TestToCents(t *testing.T) {
	cases := []struct {
		in   float64
		want int64
	}{
		{12.34, 1234},
		{0.1 + 0.2, 30},
		{2.675, 268},
		{-19.995, -2000},
		{1200, 120000},
	}
	for _, tc := range cases {
		if got := ToCents(tc.in); got != tc.want {
			t.Errorf("ToCents(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
