// Package adjustment defines named monetary deltas (discounts, fees, taxes,
// custom charges) attached to orders and line items, and the transformer that
// combines, orders and rounds them for presentation.
package adjustment

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/commerce-pricing/internal/domain/money"
)

// TypeCustom marks adjustments entered manually by a human. The refresh cycle
// preserves them while every other adjustment is rebuilt from scratch.
const TypeCustom = "custom"

// Sentinel errors for adjustment construction.
var (
	ErrUnknownType = errors.New("unknown adjustment type")
	ErrEmptyLabel  = errors.New("adjustment label required")
	ErrNoAmount    = errors.New("adjustment amount required")
)

// Params holds the fields for constructing an Adjustment.
type Params struct {
	Type       string
	Label      string
	Amount     money.Money
	SourceID   string
	Percentage decimal.NullDecimal
	Included   bool
}

// Adjustment is an immutable monetary delta. "Changing" one means building a
// new value; see WithAmount.
type Adjustment struct {
	typ        string
	label      string
	amount     money.Money
	sourceID   string
	percentage decimal.NullDecimal
	included   bool
}

// New validates p against the registry and builds an Adjustment. The label
// falls back to the registered type label when empty. An unknown type is a
// programmer error surfaced at construction so it never reaches the
// transformer.
func New(reg Registry, p Params) (Adjustment, error) {
	typ, ok := reg.Get(p.Type)
	if !ok {
		return Adjustment{}, errors.Wrap(ErrUnknownType, p.Type)
	}
	if p.Amount.Currency() == "" {
		return Adjustment{}, ErrNoAmount
	}
	label := p.Label
	if label == "" {
		label = typ.Label
	}
	if label == "" {
		return Adjustment{}, ErrEmptyLabel
	}
	return Adjustment{
		typ:        p.Type,
		label:      label,
		amount:     p.Amount,
		sourceID:   p.SourceID,
		percentage: p.Percentage,
		included:   p.Included,
	}, nil
}

// Type returns the adjustment type identifier.
func (a Adjustment) Type() string { return a.typ }

// Label returns the human-readable label.
func (a Adjustment) Label() string { return a.label }

// Amount returns the monetary delta.
func (a Adjustment) Amount() money.Money { return a.amount }

// SourceID identifies the rule or entity that produced this adjustment.
// Empty for standalone adjustments, which are never merged.
func (a Adjustment) SourceID() string { return a.sourceID }

// Percentage returns the rate the amount was derived from, when known.
func (a Adjustment) Percentage() decimal.NullDecimal { return a.percentage }

// Included reports whether the amount is already folded into the displayed
// base price rather than added on top.
func (a Adjustment) Included() bool { return a.included }

// IsCharge reports a positive amount, IsCredit a negative one.
func (a Adjustment) IsCharge() bool { return a.amount.IsPositive() }
func (a Adjustment) IsCredit() bool { return a.amount.IsNegative() }

// WithAmount returns a copy of a carrying the given amount.
func (a Adjustment) WithAmount(amount money.Money) Adjustment {
	a.amount = amount
	return a
}

// Equal reports whether two adjustments denote the same logical delta.
// Sourced adjustments match on type + source id alone; unsourced ones require
// full field equality. This is the matching rule for Adjustable removal.
func (a Adjustment) Equal(o Adjustment) bool {
	if a.typ != o.typ {
		return false
	}
	if a.sourceID != "" || o.sourceID != "" {
		return a.sourceID == o.sourceID
	}
	if a.label != o.label || a.included != o.included {
		return false
	}
	if !a.amount.Equal(o.amount) {
		return false
	}
	if a.percentage.Valid != o.percentage.Valid {
		return false
	}
	return !a.percentage.Valid || a.percentage.Decimal.Equal(o.percentage.Decimal)
}

// Filter returns the adjustments whose type is in types. An empty types list
// returns the input unchanged.
func Filter(adjs []Adjustment, types ...string) []Adjustment {
	if len(types) == 0 {
		return adjs
	}
	wanted := make(map[string]struct{}, len(types))
	for _, t := range types {
		wanted[t] = struct{}{}
	}
	out := make([]Adjustment, 0, len(adjs))
	for _, a := range adjs {
		if _, ok := wanted[a.Type()]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Remove returns adjs without the first element matching target per Equal.
func Remove(adjs []Adjustment, target Adjustment) []Adjustment {
	for i, a := range adjs {
		if a.Equal(target) {
			out := make([]Adjustment, 0, len(adjs)-1)
			out = append(out, adjs[:i]...)
			return append(out, adjs[i+1:]...)
		}
	}
	return adjs
}

// Total sums the non-included adjustments in the given currency. Included
// adjustments are informational and never change a total.
func Total(adjs []Adjustment, currency string) money.Money {
	sum := money.Zero(currency)
	for _, a := range adjs {
		if a.Included() {
			continue
		}
		sum = sum.Add(a.Amount())
	}
	return sum
}

// Adjustable is the contract orders and line items expose to UI and API
// callers for reading and mutating their adjustment lists.
type Adjustable interface {
	Adjustments(types ...string) []Adjustment
	SetAdjustments(adjs []Adjustment)
	AddAdjustment(a Adjustment)
	RemoveAdjustment(a Adjustment)
}
