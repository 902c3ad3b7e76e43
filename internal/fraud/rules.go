// Package fraud implements the stateless first-match-wins rule evaluator
// that screens a transfer before any balance is touched.
package fraud

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
)

var largeTxnRatio = decimal.RequireFromString("0.8")

// Thresholds for the telemetry rules.
const (
	MaxLocationDeltaKm = 100
	MaxTxnsLast24h     = 10
)

// Features is the evaluator input. Nil telemetry fields are absent and never
// fire their rule.
type Features struct {
	Amount          float64
	BalanceBefore   float64
	LocationDeltaKm *float64
	IsForeignDevice *int
	TxnsLast24h     *int
}

// FromTelemetry assembles Features for a transfer.
func FromTelemetry(amount, balance float64, t domain.Telemetry) Features {
	return Features{
		Amount:          amount,
		BalanceBefore:   balance,
		LocationDeltaKm: t.LocationDeltaKm,
		IsForeignDevice: t.IsForeignDevice,
		TxnsLast24h:     t.TxnsLast24h,
	}
}

type rule struct {
	reason string
	fires  func(f Features) bool
}

// rules are evaluated in order; the first one that fires wins.
var rules = []rule{
	{domain.ReasonLargeTxn, largeRelativeToBalance},
	{domain.ReasonLocationJump, func(f Features) bool {
		return f.LocationDeltaKm != nil && *f.LocationDeltaKm > MaxLocationDeltaKm
	}},
	{domain.ReasonForeignDevice, func(f Features) bool {
		return f.IsForeignDevice != nil && *f.IsForeignDevice == 1
	}},
	{domain.ReasonTooManyTxns, func(f Features) bool {
		return f.TxnsLast24h != nil && *f.TxnsLast24h > MaxTxnsLast24h
	}},
}

// Evaluate returns the verdict of the first rule that fires, or a clean
// verdict. It is a pure function.
func Evaluate(f Features) domain.FraudVerdict {
	for _, r := range rules {
		if r.fires(f) {
			return domain.FraudVerdict{IsFraud: true, Reason: r.reason}
		}
	}
	return domain.FraudVerdict{}
}

func largeRelativeToBalance(f Features) bool {
	balance := f.BalanceBefore
	if math.IsNaN(balance) || math.IsInf(balance, 0) {
		balance = 0
	}
	if balance <= 0 || math.IsNaN(f.Amount) {
		return false
	}
	limit := decimal.NewFromFloat(balance).Mul(largeTxnRatio)
	return decimal.NewFromFloat(f.Amount).GreaterThan(limit)
}
