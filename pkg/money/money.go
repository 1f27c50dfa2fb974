// Package money holds the fixed-point rules for ledger amounts.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/honeynil/game-payment-ledger/pkg/errors"
)

const (
	IntegerDigits  = 10
	FractionDigits = 2
)

var integerBound = decimal.New(1, IntegerDigits)

// Validate checks that amount is a positive NUMERIC(12,2) value.
func Validate(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.ErrInvalidAmount
	}
	if amount.Cmp(integerBound) >= 0 {
		return pkgerrors.ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(FractionDigits)) {
		return pkgerrors.ErrInvalidAmount
	}
	return nil
}

// Parse reads a decimal string and validates it.
func Parse(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", pkgerrors.ErrInvalidAmount, err)
	}
	if err := Validate(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// Format renders an amount with exactly two fraction digits.
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(FractionDigits)
}
