// Package money implements the amount normalization contract shared by the
// ledger engine and its callers: amounts are clamped to a sane range and
// carry two-decimal (currency minor unit) precision.
package money

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// Amounts outside this range are clamped rather than rejected; nobody is
// tracking six-figure lunch debts.
const (
	MinAmount = -100000
	MaxAmount = 100000
)

var (
	minAmount = decimal.NewFromInt(MinAmount)
	maxAmount = decimal.NewFromInt(MaxAmount)
)

// ErrNotFinite is returned for NaN or infinite input.
var ErrNotFinite = errors.New("amount must be a finite number")

// Normalize clamps x to [MinAmount, MaxAmount] and rounds it to two decimal
// places. The sign is preserved: callers that want a magnitude for display
// take the absolute value themselves. Ledger arithmetic always runs on
// normalized, signed values.
func Normalize(x float64) (float64, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, ErrNotFinite
	}

	d := decimal.NewFromFloat(x)
	if d.GreaterThan(maxAmount) {
		d = maxAmount
	} else if d.LessThan(minAmount) {
		d = minAmount
	}

	f, _ := d.Round(2).Float64()
	return f, nil
}

// Format renders an amount with exactly two decimal places for display,
// e.g. 75.5 -> "75.50". It does not clamp; pass normalized values.
func Format(x float64) string {
	return decimal.NewFromFloat(x).StringFixed(2)
}
