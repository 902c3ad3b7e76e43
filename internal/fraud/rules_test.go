package fraud_test

import (
	"math"
	"testing"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
	"github.com/boddenberg/grambank-ledger-go/internal/fraud"
)

func f64(v float64) *float64 { return &v }
func i(v int) *int           { return &v }

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		in         fraud.Features
		wantFraud  bool
		wantReason string
	}{
		{
			name:       "large txn wins over location jump",
			in:         fraud.Features{Amount: 900, BalanceBefore: 1000, LocationDeltaKm: f64(200)},
			wantFraud:  true,
			wantReason: domain.ReasonLargeTxn,
		},
		{
			name: "zero balance never fires large txn",
			in:   fraud.Features{Amount: 50, BalanceBefore: 0, LocationDeltaKm: f64(0)},
		},
		{
			name: "exactly eighty percent is clean",
			in:   fraud.Features{Amount: 800, BalanceBefore: 1000},
		},
		{
			name:       "just above eighty percent",
			in:         fraud.Features{Amount: 800.01, BalanceBefore: 1000},
			wantFraud:  true,
			wantReason: domain.ReasonLargeTxn,
		},
		{
			name: "NaN balance treated as zero",
			in:   fraud.Features{Amount: 50, BalanceBefore: math.NaN()},
		},
		{
			name:       "location jump",
			in:         fraud.Features{Amount: 10, BalanceBefore: 1000, LocationDeltaKm: f64(100.5), IsForeignDevice: i(1)},
			wantFraud:  true,
			wantReason: domain.ReasonLocationJump,
		},
		{
			name: "location at threshold is clean",
			in:   fraud.Features{Amount: 10, BalanceBefore: 1000, LocationDeltaKm: f64(100)},
		},
		{
			name:       "foreign device",
			in:         fraud.Features{Amount: 10, BalanceBefore: 1000, IsForeignDevice: i(1), TxnsLast24h: i(50)},
			wantFraud:  true,
			wantReason: domain.ReasonForeignDevice,
		},
		{
			name: "domestic device is clean",
			in:   fraud.Features{Amount: 10, BalanceBefore: 1000, IsForeignDevice: i(0)},
		},
		{
			name:       "too many txns",
			in:         fraud.Features{Amount: 10, BalanceBefore: 1000, TxnsLast24h: i(11)},
			wantFraud:  true,
			wantReason: domain.ReasonTooManyTxns,
		},
		{
			name: "ten txns is clean",
			in:   fraud.Features{Amount: 10, BalanceBefore: 1000, TxnsLast24h: i(10)},
		},
		{
			name: "absent telemetry is clean",
			in:   fraud.Features{Amount: 10, BalanceBefore: 1000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fraud.Evaluate(tt.in)
			if got.IsFraud != tt.wantFraud {
				t.Fatalf("IsFraud = %v, want %v", got.IsFraud, tt.wantFraud)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestFromTelemetry(t *testing.T) {
	tel := domain.Telemetry{LocationDeltaKm: f64(150), TxnsLast24h: i(3)}
	f := fraud.FromTelemetry(100, 5000, tel)

	if f.Amount != 100 || f.BalanceBefore != 5000 {
		t.Fatalf("unexpected money fields: %+v", f)
	}
	got := fraud.Evaluate(f)
	if got.Reason != domain.ReasonLocationJump {
		t.Errorf("expected location jump, got %q", got.Reason)
	}
}
