package notify

import "testing"

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
	}{
		{50_000, "50000"},
		{500_000, "5.00 lakh"},
		{1_250_000, "12.50 lakh"},
		{10_000_000, "1.00 crore"},
		{125_000_000, "12.50 crore"},
	}
	for _, tt := range tests {
		if got := formatAmount(tt.amount); got != tt.want {
			t.Errorf("formatAmount(%d) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}
