// Package money provides an immutable currency-aware monetary value built on
// shopspring/decimal. All arithmetic between two values requires matching
// currency codes; mixing currencies is a programming error and panics.
package money

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// RoundingMode selects how Round resolves digits beyond currency precision.
type RoundingMode int

const (
	// HalfUp rounds half away from zero: 2.005 -> 2.01.
	HalfUp RoundingMode = iota
	// HalfDown rounds half toward zero: 2.005 -> 2.00.
	HalfDown
	// Down truncates toward zero: 2.009 -> 2.00.
	Down
)

// Money is an exact decimal amount in a single currency. The zero value is
// invalid; construct values with New, NewFromString or Zero.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// New builds a Money from a decimal amount and an ISO 4217 currency code.
func New(amount decimal.Decimal, currency string) Money {
	return Money{amount: amount, currency: currency}
}

// NewFromString parses the decimal representation in s.
func NewFromString(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, errors.Wrapf(err, "parse amount %q", s)
	}
	return Money{amount: d, currency: currency}, nil
}

// Zero returns the zero amount in the given currency.
func Zero(currency string) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the exact decimal amount.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the currency code.
func (m Money) Currency() string { return m.currency }

func (m Money) String() string {
	return m.amount.String() + " " + m.currency
}

// assertSameCurrency panics when the operand currencies differ.
func (m Money) assertSameCurrency(o Money) {
	if m.currency != o.currency {
		panic(fmt.Sprintf("money: currency mismatch: %s vs %s", m.currency, o.currency))
	}
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	m.assertSameCurrency(o)
	return Money{amount: m.amount.Add(o.amount), currency: m.currency}
}

// Sub returns m - o.
func (m Money) Sub(o Money) Money {
	m.assertSameCurrency(o)
	return Money{amount: m.amount.Sub(o.amount), currency: m.currency}
}

// Mul returns m scaled by factor. The result keeps full precision; round
// explicitly when currency precision is required.
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor), currency: m.currency}
}

// Div returns m divided by factor using shopspring's division precision.
func (m Money) Div(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Div(factor), currency: m.currency}
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.amount.IsNegative() }

// IsPositive reports whether the amount is above zero.
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

// Cmp compares m against o: -1 when less, 0 when equal, 1 when greater.
func (m Money) Cmp(o Money) int {
	m.assertSameCurrency(o)
	return m.amount.Cmp(o.amount)
}

// Equal reports whether both values have the same currency and numerically
// equal amounts (2.5 equals 2.50).
func (m Money) Equal(o Money) bool {
	return m.currency == o.currency && m.amount.Equal(o.amount)
}

// Round returns m rounded to its currency's fraction digits with the given
// mode.
func (m Money) Round(mode RoundingMode) Money {
	places := Precision(m.currency)
	return Money{amount: roundAmount(m.amount, places, mode), currency: m.currency}
}

// Unit returns one minimal currency unit of m's currency: 0.01 for USD,
// 1 for JPY, 0.001 for KWD.
func (m Money) Unit() Money {
	return Money{amount: unitAmount(m.currency), currency: m.currency}
}

func unitAmount(currency string) decimal.Decimal {
	return decimal.New(1, -Precision(currency))
}

func roundAmount(d decimal.Decimal, places int32, mode RoundingMode) decimal.Decimal {
	switch mode {
	case HalfDown:
		return roundHalfDown(d, places)
	case Down:
		return d.Truncate(places)
	default:
		// shopspring Round is half away from zero.
		return d.Round(places)
	}
}

// roundHalfDown rounds to places digits, resolving an exact half toward zero.
func roundHalfDown(d decimal.Decimal, places int32) decimal.Decimal {
	truncated := d.Truncate(places)
	remainder := d.Sub(truncated).Abs()
	half := decimal.New(5, -places-1)
	if remainder.Cmp(half) <= 0 {
		return truncated
	}
	step := decimal.New(1, -places)
	if d.IsNegative() {
		return truncated.Sub(step)
	}
	return truncated.Add(step)
}
