package pricing

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/commerce-pricing/internal/domain/adjustment"
	"github.com/xenking/commerce-pricing/internal/domain/money"
	"github.com/xenking/commerce-pricing/internal/domain/order"
)

// Quote is the outcome of a price calculation: the base catalog price, the
// price after the requested adjustment types, and those adjustments.
type Quote struct {
	CalculatedPrice money.Money
	BasePrice       money.Money
	Adjustments     []adjustment.Adjustment
}

// Calculator computes the calculated price of a catalog item for a given
// quantity and context by running interested processors against a transient,
// never-persisted order. It lets listing pages show promotion- or
// tax-adjusted prices without the cost and side effects of a real order.
//
// A Calculator is request-scoped and not safe for concurrent use: it caches
// one transient order per order type across calls to amortize setup within a
// batch.
type Calculator struct {
	resolver      order.PriceResolver
	transformer   *adjustment.Transformer
	registrations []order.Registration

	transient map[string]*order.Order
}

// NewCalculator wires a Calculator over the shared resolver chain and
// processor registrations.
func NewCalculator(resolver order.PriceResolver, transformer *adjustment.Transformer, registrations []order.Registration) *Calculator {
	regs := make([]order.Registration, len(registrations))
	copy(regs, registrations)
	sort.SliceStable(regs, func(i, j int) bool { return regs[i].Priority < regs[j].Priority })

	return &Calculator{
		resolver:      resolver,
		transformer:   transformer,
		registrations: regs,
		transient:     make(map[string]*order.Order),
	}
}

// Calculate resolves the base price for sku and, when any registered
// processor declares one of the requested adjustment types, derives the
// adjusted price on a transient order. Nothing is ever persisted.
func (c *Calculator) Calculate(ctx context.Context, sku string, quantity decimal.Decimal, pctx order.PriceContext, types []string) (Quote, error) {
	resolved, err := c.resolver.Resolve(ctx, sku, quantity, pctx)
	if err != nil {
		return Quote{}, errors.Wrapf(err, "resolve %q", sku)
	}

	interested := c.interested(types)
	if len(interested) == 0 {
		// Fast path: no transient order at all.
		return Quote{CalculatedPrice: resolved.Price, BasePrice: resolved.Price}, nil
	}

	o := c.transientOrder(pctx)
	o.SetAdjustments(nil)
	li := order.NewLineItem(sku, resolved.Title, resolved.Price, quantity)
	o.SetItems([]*order.LineItem{li})

	for _, reg := range interested {
		if err := reg.Processor.Process(ctx, o); err != nil {
			return Quote{}, errors.Wrapf(err, "processor %q", reg.Name)
		}
	}

	li.SetAdjustments(c.transformer.Process(li.Adjustments()))

	return Quote{
		CalculatedPrice: li.AdjustedUnitPrice(types...),
		BasePrice:       resolved.Price,
		Adjustments:     li.Adjustments(types...),
	}, nil
}

// interested returns the registrations producing any of the requested types,
// in ascending priority order.
func (c *Calculator) interested(types []string) []order.Registration {
	if len(types) == 0 {
		return nil
	}
	var out []order.Registration
	for _, reg := range c.registrations {
		if reg.Produces(types) {
			out = append(out, reg)
		}
	}
	return out
}

// transientOrder returns the cached never-saved order for the context's
// order type, creating it on first use.
func (c *Calculator) transientOrder(pctx order.PriceContext) *order.Order {
	key := pctx.OrderType + "|" + pctx.Currency
	if o, ok := c.transient[key]; ok {
		return o
	}
	o := order.New(pctx.OrderType, pctx.Currency, pctx.CustomerID)
	c.transient[key] = o
	return o
}
