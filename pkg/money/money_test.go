package money

import "testing"

func TestFormat(t *testing.T) {
	cases := []struct {
		minor    int64
		currency string
		want     string
	}{
		{5750, "usd", "$57.50"},
		{5750, "USD", "$57.50"},
		{0, "usd", "$0.00"},
		{5, "eur", "€0.05"},
		{-1250, "usd", "-$12.50"},
		{1200, "jpy", "¥1200"},
		{99900, "chf", "999.00 CHF"},
		{100, "", "1.00"},
	}
	for _, tc := range cases {
		if got := Format(tc.minor, tc.currency); got != tc.want {
			t.Fatalf("Format(%d, %q) = %q, want %q", tc.minor, tc.currency, got, tc.want)
		}
	}
}
