// Package moneypkg holds the fixed-point rules for ledger amounts and balances.
//
// Amounts are decimals with at most two fraction digits. Inputs with more precision are
// rejected rather than rounded, so that the value stored is always the value requested.
package moneypkg

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Scale is the number of fraction digits of every stored amount.
const Scale = 2

var (
	// ErrMalformed indicates that the amount is not a decimal number.
	ErrMalformed = errors.New("amount is not a number")
	// ErrNotPositive indicates a zero or negative amount.
	ErrNotPositive = errors.New("amount must be positive")
	// ErrTooPrecise indicates more than Scale fraction digits.
	ErrTooPrecise = errors.New("amount has more than 2 fraction digits")
	// ErrTooLarge indicates an amount outside numeric(10,2).
	ErrTooLarge = errors.New("amount is too large")
)

var (
	// MaxAmount is the exclusive upper bound of a single amount, numeric(10,2).
	MaxAmount = decimal.New(1, 8)
	// MaxBalance is the exclusive upper bound of an account balance, numeric(12,2).
	MaxBalance = decimal.New(1, 10)
)

// ParseAmount parses s into a positive amount with at most Scale fraction digits.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrMalformed
	}

	return d, ValidateAmount(d)
}

// ValidateAmount checks that d is a positive amount with at most Scale fraction digits.
func ValidateAmount(d decimal.Decimal) error {
	if d.LessThanOrEqual(decimal.Zero) {
		return ErrNotPositive
	}

	if !d.Equal(d.Round(Scale)) {
		return ErrTooPrecise
	}

	if d.GreaterThanOrEqual(MaxAmount) {
		return ErrTooLarge
	}

	return nil
}

// WithinBalanceLimit reports whether balance fits into the balance column.
func WithinBalanceLimit(balance decimal.Decimal) bool {
	return balance.LessThan(MaxBalance)
}

// String formats d with exactly Scale fraction digits.
func String(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
