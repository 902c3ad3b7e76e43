package ledger

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
)

// MaxAmount is the largest value a NUMERIC(14,2) balance column holds.
var MaxAmount = decimal.RequireFromString("999999999999.99")

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Round2 rounds v half away from zero to two decimal places. Non-finite
// values are returned unchanged.
func Round2(v float64) float64 {
	if !finite(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Sub returns round2(a - b) computed in decimal.
func Sub(a, b float64) float64 {
	if !finite(a, b) {
		return a - b
	}
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}

// Add returns round2(a + b) computed in decimal.
func Add(a, b float64) float64 {
	if !finite(a, b) {
		return a + b
	}
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}

// ParseAmount validates a client-supplied amount: it must be numeric,
// strictly positive, no larger than MaxAmount and carry at most two
// decimal places.
func ParseAmount(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &domain.ErrValidation{Field: "amount", Message: domain.MsgMissingDetails}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, &domain.ErrValidation{Field: "amount", Message: domain.MsgInvalidAmount}
	}
	if !d.IsPositive() || !d.Equal(d.Round(2)) || d.GreaterThan(MaxAmount) {
		return 0, &domain.ErrValidation{Field: "amount", Message: domain.MsgInvalidAmount}
	}
	return d.InexactFloat64(), nil
}

// CheckSufficientFunds fails with *domain.ErrInsufficientFunds when the
// account balance is below amount.
func CheckSufficientFunds(acc *domain.Account, amount float64) error {
	if !finite(acc.Balance, amount) {
		return &domain.ErrValidation{Field: "amount", Message: domain.MsgInvalidAmount}
	}
	if decimal.NewFromFloat(acc.Balance).LessThan(decimal.NewFromFloat(amount)) {
		return &domain.ErrInsufficientFunds{Available: acc.Balance, Required: amount}
	}
	return nil
}
