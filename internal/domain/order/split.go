package order

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/commerce-pricing/internal/domain/money"
)

// Split distributes an order-level amount across the order's line items
// proportional to their totals, deriving the ratio as amount / subtotal.
// The returned allocations sum to amount exactly; no currency unit is ever
// gained or lost. Line items with a zero total receive nothing.
func Split(o *Order, amount money.Money) map[string]money.Money {
	if amount.IsZero() {
		return map[string]money.Money{}
	}
	subtotal := o.SubtotalPrice()
	if subtotal.IsZero() {
		return map[string]money.Money{}
	}
	return SplitWithRatio(o, amount, amount.Amount().Div(subtotal.Amount()))
}

// SplitWithRatio is Split with a caller-supplied ratio, for amounts that were
// themselves derived from a known percentage.
//
// Each item's share is its total times the ratio, truncated toward zero so
// the first pass can only under-allocate, and clamped to the amount still
// unallocated. The leftover is handed out one minimal currency unit at a
// time, round-robin over the allocated items in iteration order. A residue
// finer than the currency unit (possible only when amount itself is not at
// currency precision) lands on the first allocated item.
func SplitWithRatio(o *Order, amount money.Money, ratio decimal.Decimal) map[string]money.Money {
	out := make(map[string]money.Money)
	if amount.IsZero() {
		return out
	}

	remaining := amount
	var allocated []string
	for _, li := range o.Items() {
		if li.TotalPrice().IsZero() {
			continue
		}
		share := li.TotalPrice().Mul(ratio).Round(money.Down)
		if share.Amount().Abs().Cmp(remaining.Amount().Abs()) > 0 {
			share = remaining
		}
		out[li.ID] = share
		allocated = append(allocated, li.ID)
		remaining = remaining.Sub(share)
	}
	if len(allocated) == 0 || remaining.IsZero() {
		return out
	}

	step := amount.Unit()
	if remaining.IsNegative() {
		step = step.Neg()
	}
	for i := 0; remaining.Amount().Abs().Cmp(step.Amount().Abs()) >= 0; i = (i + 1) % len(allocated) {
		id := allocated[i]
		out[id] = out[id].Add(step)
		remaining = remaining.Sub(step)
	}
	if !remaining.IsZero() {
		out[allocated[0]] = out[allocated[0]].Add(remaining)
	}
	return out
}
