package order

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/commerce-pricing/internal/domain/money"
)

// Repository persists orders and line items. Implementations recompute
// aggregate totals from current adjustment and line item state as a side
// effect of SaveOrder.
type Repository interface {
	SaveOrder(ctx context.Context, o *Order) error
	SaveItem(ctx context.Context, li *LineItem) error
}

// ErrNoPrice is returned by a resolver that has no price for the requested
// SKU; a chain tries the next resolver on it.
var ErrNoPrice = errors.New("no price found")

// ErrNotFound is returned by order lookups for unknown IDs.
var ErrNotFound = errors.New("order not found")

// PriceContext carries the inputs price resolution may depend on.
type PriceContext struct {
	Currency   string
	CustomerID string
	OrderType  string
}

// ResolvedPrice is the outcome of price resolution for one SKU.
type ResolvedPrice struct {
	Price money.Money
	Title string
}

// PriceResolver resolves the current unit price of a catalog SKU for a given
// quantity and context.
type PriceResolver interface {
	Resolve(ctx context.Context, sku string, quantity decimal.Decimal, pctx PriceContext) (ResolvedPrice, error)
}

// Processor is the extension point where promotions, taxes, shipping costs
// and other charges attach adjustments to an order or its line items during
// refresh.
type Processor interface {
	Process(ctx context.Context, o *Order) error
}

// Registration binds a processor to the orchestrator. Priority orders
// execution during refresh (lower first); Types declares which adjustment
// types the processor produces, used by quote-mode calculation to run only
// interested processors.
type Registration struct {
	Name      string
	Processor Processor
	Priority  int
	Types     []string
}

// Produces reports whether the registration declares any of the given types.
func (r Registration) Produces(types []string) bool {
	for _, want := range types {
		for _, have := range r.Types {
			if want == have {
				return true
			}
		}
	}
	return false
}

// sortRegistrations orders registrations by ascending priority, keeping the
// registration order for equal priorities.
func sortRegistrations(regs []Registration) []Registration {
	out := make([]Registration, len(regs))
	copy(out, regs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}
