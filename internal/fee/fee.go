// Package fee computes the fee charged on top of a requested transfer amount.
package fee

import (
	"math"

	"github.com/shopspring/decimal"

	"transfer-hub/internal/errors"
)

// Policy charges Rate of the amount, rounded up, bounded by Min and Max.
// Amounts and fees are integer minor units.
type Policy struct {
	Rate decimal.Decimal
	Min  int64
	Max  int64
}

// DefaultPolicy is 0.8% with a floor of 100 and a ceiling of 1500.
func DefaultPolicy() Policy {
	return Policy{
		Rate: decimal.RequireFromString("0.008"),
		Min:  100,
		Max:  1500,
	}
}

func (p Policy) ComputeFee(amount int64) (int64, error) {
	if amount <= 0 {
		return 0, errors.ErrInvalidAmount
	}

	raw := decimal.NewFromInt(amount).Mul(p.Rate).Ceil().IntPart()
	fee := min(max(raw, p.Min), p.Max)
	if amount > math.MaxInt64-fee {
		return 0, errors.ErrInvalidAmount.WithDetails("amount plus fee exceeds the largest representable total")
	}
	return fee, nil
}

func (p Policy) ComputeTotal(amount, fee int64) int64 {
	return amount + fee
}

// Apply returns the fee and the total charged for amount.
func (p Policy) Apply(amount int64) (fee, total int64, err error) {
	fee, err = p.ComputeFee(amount)
	if err != nil {
		return 0, 0, err
	}
	return fee, p.ComputeTotal(amount, fee), nil
}
