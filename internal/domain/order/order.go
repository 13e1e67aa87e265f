// Package order holds the order aggregate, its line items, the proportional
// price splitter, and the refresh orchestration that re-derives prices and
// adjustments from current catalog state.
package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/commerce-pricing/internal/domain/adjustment"
	"github.com/xenking/commerce-pricing/internal/domain/money"
)

// Order states. Only draft orders are mutable and refreshable.
const (
	StateDraft     = "draft"
	StateCompleted = "completed"
	StateCanceled  = "canceled"
)

// RefreshState records when an order wants its totals recomputed.
type RefreshState string

const (
	RefreshNone   RefreshState = "none"
	RefreshOnLoad RefreshState = "on_load"
	RefreshOnSave RefreshState = "on_save"
)

// LineItem is a quantity of a purchasable thing within an order. An empty
// SKU marks a non-catalog item whose unit price is never re-resolved.
type LineItem struct {
	ID        string
	OrderID   string
	SKU       string
	Title     string
	UnitPrice money.Money
	Quantity  decimal.Decimal

	adjustments []adjustment.Adjustment
}

// NewLineItem builds a line item with a fresh ID.
func NewLineItem(sku, title string, unitPrice money.Money, quantity decimal.Decimal) *LineItem {
	return &LineItem{
		ID:        uuid.New().String(),
		SKU:       sku,
		Title:     title,
		UnitPrice: unitPrice,
		Quantity:  quantity,
	}
}

// TotalPrice returns unit price times quantity at full precision.
func (li *LineItem) TotalPrice() money.Money {
	return li.UnitPrice.Mul(li.Quantity)
}

// AdjustedTotal returns the total price plus the item's non-included
// adjustments, optionally restricted to the given types.
func (li *LineItem) AdjustedTotal(types ...string) money.Money {
	total := li.TotalPrice()
	return total.Add(adjustment.Total(adjustment.Filter(li.adjustments, types...), total.Currency()))
}

// AdjustedUnitPrice returns the adjusted total divided back down to a single
// unit, rounded half-up to currency precision.
func (li *LineItem) AdjustedUnitPrice(types ...string) money.Money {
	return li.AdjustedTotal(types...).Div(li.Quantity).Round(money.HalfUp)
}

// Adjustments returns a copy of the item's adjustments, optionally filtered
// by type.
func (li *LineItem) Adjustments(types ...string) []adjustment.Adjustment {
	out := make([]adjustment.Adjustment, len(li.adjustments))
	copy(out, li.adjustments)
	return adjustment.Filter(out, types...)
}

// SetAdjustments replaces the item's adjustment list.
func (li *LineItem) SetAdjustments(adjs []adjustment.Adjustment) {
	li.adjustments = adjs
}

// AddAdjustment appends a to the item's adjustments.
func (li *LineItem) AddAdjustment(a adjustment.Adjustment) {
	li.adjustments = append(li.adjustments, a)
}

// RemoveAdjustment removes the first adjustment matching a.
func (li *LineItem) RemoveAdjustment(a adjustment.Adjustment) {
	li.adjustments = adjustment.Remove(li.adjustments, a)
}

// Order is the aggregate the pricing engine operates on. Its adjustment list
// and totals are mutated by the refresh orchestrator; persistence recomputes
// Subtotal and Total on save.
type Order struct {
	ID         string
	Type       string
	State      string
	Currency   string
	CustomerID string

	Subtotal     money.Money
	Total        money.Money
	RefreshState RefreshState
	UpdatedAt    time.Time

	items       []*LineItem
	adjustments []adjustment.Adjustment
}

// New builds a draft order of the given type and currency.
func New(orderType, currency, customerID string) *Order {
	return &Order{
		ID:           uuid.New().String(),
		Type:         orderType,
		State:        StateDraft,
		Currency:     currency,
		CustomerID:   customerID,
		Subtotal:     money.Zero(currency),
		Total:        money.Zero(currency),
		RefreshState: RefreshNone,
		UpdatedAt:    time.Now(),
	}
}

// Items returns the order's line items in insertion order.
func (o *Order) Items() []*LineItem {
	return o.items
}

// AddItem appends a line item to the order.
func (o *Order) AddItem(li *LineItem) {
	li.OrderID = o.ID
	o.items = append(o.items, li)
}

// SetItems replaces the order's line items.
func (o *Order) SetItems(items []*LineItem) {
	for _, li := range items {
		li.OrderID = o.ID
	}
	o.items = items
}

// Adjustments returns a copy of the order-level adjustments, optionally
// filtered by type. Line item adjustments are not included.
func (o *Order) Adjustments(types ...string) []adjustment.Adjustment {
	out := make([]adjustment.Adjustment, len(o.adjustments))
	copy(out, o.adjustments)
	return adjustment.Filter(out, types...)
}

// SetAdjustments replaces the order-level adjustment list.
func (o *Order) SetAdjustments(adjs []adjustment.Adjustment) {
	o.adjustments = adjs
}

// AddAdjustment appends a to the order-level adjustments.
func (o *Order) AddAdjustment(a adjustment.Adjustment) {
	o.adjustments = append(o.adjustments, a)
}

// RemoveAdjustment removes the first order-level adjustment matching a.
func (o *Order) RemoveAdjustment(a adjustment.Adjustment) {
	o.adjustments = adjustment.Remove(o.adjustments, a)
}

// SubtotalPrice sums the line item totals.
func (o *Order) SubtotalPrice() money.Money {
	sum := money.Zero(o.Currency)
	for _, li := range o.items {
		sum = sum.Add(li.TotalPrice())
	}
	return sum
}

// RecalculateTotals re-derives Subtotal and Total from current line item and
// adjustment state: total = subtotal + non-included order adjustments, exact
// to the currency unit. Persistence calls this on save.
func (o *Order) RecalculateTotals() {
	o.Subtotal = o.SubtotalPrice()
	o.Total = o.Subtotal.Add(adjustment.Total(o.adjustments, o.Currency))
}
