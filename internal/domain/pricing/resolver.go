// Package pricing computes hypothetical, adjustment-aware prices for catalog
// items without persisting an order, and provides the resolver chain both
// quote and refresh paths share.
package pricing

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/commerce-pricing/internal/domain/order"
)

var _ order.PriceResolver = (*ChainResolver)(nil)

// ChainResolver tries each resolver in registration order and returns the
// first resolved price. Resolvers signal "not mine" with order.ErrNoPrice;
// any other error aborts the chain.
type ChainResolver struct {
	resolvers []order.PriceResolver
}

// NewChainResolver builds a chain over the given resolvers.
func NewChainResolver(resolvers ...order.PriceResolver) *ChainResolver {
	return &ChainResolver{resolvers: resolvers}
}

// Resolve walks the chain for sku.
func (c *ChainResolver) Resolve(ctx context.Context, sku string, quantity decimal.Decimal, pctx order.PriceContext) (order.ResolvedPrice, error) {
	for _, r := range c.resolvers {
		resolved, err := r.Resolve(ctx, sku, quantity, pctx)
		if err == nil {
			return resolved, nil
		}
		if errors.Is(err, order.ErrNoPrice) {
			continue
		}
		return order.ResolvedPrice{}, err
	}
	return order.ResolvedPrice{}, errors.Wrap(order.ErrNoPrice, sku)
}
