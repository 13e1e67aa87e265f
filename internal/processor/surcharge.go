// Package processor ships the order processors registered by default:
// pluggable units that attach adjustments during refresh or quote
// calculation.
package processor

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/commerce-pricing/internal/domain/adjustment"
	"github.com/xenking/commerce-pricing/internal/domain/money"
	"github.com/xenking/commerce-pricing/internal/domain/order"
)

var _ order.Processor = (*Surcharge)(nil)

// Surcharge charges a percentage of the order subtotal as a fee, attributed
// to the line items proportionally so refunds and per-line reporting see
// their exact share. The split never gains or loses a currency unit.
type Surcharge struct {
	registry adjustment.Registry
	label    string
	sourceID string
	rate     decimal.Decimal
}

// NewSurcharge builds a Surcharge applying rate (e.g. 0.02 for 2%) under the
// given label. sourceID keys the produced adjustments for merging and
// removal.
func NewSurcharge(reg adjustment.Registry, label, sourceID string, rate decimal.Decimal) *Surcharge {
	return &Surcharge{registry: reg, label: label, sourceID: sourceID, rate: rate}
}

// Process attaches one fee adjustment per allocated line item.
func (p *Surcharge) Process(_ context.Context, o *order.Order) error {
	if p.rate.IsZero() {
		return nil
	}
	subtotal := o.SubtotalPrice()
	if subtotal.IsZero() {
		return nil
	}

	fee := subtotal.Mul(p.rate).Round(money.HalfUp)
	shares := order.Split(o, fee)

	for _, li := range o.Items() {
		share, ok := shares[li.ID]
		if !ok || share.IsZero() {
			continue
		}
		a, err := adjustment.New(p.registry, adjustment.Params{
			Type:       "fee",
			Label:      p.label,
			Amount:     share,
			SourceID:   p.sourceID,
			Percentage: decimal.NullDecimal{Decimal: p.rate, Valid: true},
		})
		if err != nil {
			return errors.Wrap(err, "build surcharge adjustment")
		}
		li.AddAdjustment(a)
	}
	return nil
}
