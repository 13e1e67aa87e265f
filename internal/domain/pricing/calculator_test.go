package pricing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/commerce-pricing/internal/domain/adjustment"
	"github.com/xenking/commerce-pricing/internal/domain/order"
)

type countingRepo struct {
	orderSaves int
	itemSaves  int
}

func (r *countingRepo) SaveOrder(_ context.Context, _ *order.Order) error {
	r.orderSaves++
	return nil
}

func (r *countingRepo) SaveItem(_ context.Context, _ *order.LineItem) error {
	r.itemSaves++
	return nil
}

type procFunc func(ctx context.Context, o *order.Order) error

func (f procFunc) Process(ctx context.Context, o *order.Order) error { return f(ctx, o) }

func adj(t *testing.T, p adjustment.Params) adjustment.Adjustment {
	t.Helper()
	a, err := adjustment.New(adjustment.DefaultRegistry(), p)
	require.NoError(t, err)
	return a
}

func newCalculator(resolver order.PriceResolver, regs []order.Registration) *Calculator {
	return NewCalculator(resolver, adjustment.NewTransformer(adjustment.DefaultRegistry()), regs)
}

func TestCalculateFastPath(t *testing.T) {
	resolver := &stubResolver{prices: map[string]order.ResolvedPrice{
		"sku-1": {Price: usd(t, "10.00"), Title: "Widget"},
	}}

	procRuns := 0
	regs := []order.Registration{
		{Name: "promo", Priority: 10, Types: []string{"promotion"}, Processor: procFunc(func(_ context.Context, _ *order.Order) error {
			procRuns++
			return nil
		})},
	}
	calc := newCalculator(resolver, regs)
	pctx := order.PriceContext{Currency: "USD", OrderType: "default"}

	// No requested types: no processor runs, no transient order is built.
	quote, err := calc.Calculate(context.Background(), "sku-1", decimal.NewFromInt(1), pctx, nil)
	require.NoError(t, err)
	assert.True(t, quote.CalculatedPrice.Equal(usd(t, "10.00")))
	assert.True(t, quote.BasePrice.Equal(usd(t, "10.00")))
	assert.Empty(t, quote.Adjustments)
	assert.Equal(t, 0, procRuns)
	assert.Empty(t, calc.transient)

	// Requested types nobody produces: same fast path.
	quote, err = calc.Calculate(context.Background(), "sku-1", decimal.NewFromInt(1), pctx, []string{"tax"})
	require.NoError(t, err)
	assert.True(t, quote.CalculatedPrice.Equal(usd(t, "10.00")))
	assert.Equal(t, 0, procRuns)
	assert.Empty(t, calc.transient)
}

func TestCalculateAppliesInterestedProcessors(t *testing.T) {
	resolver := &stubResolver{prices: map[string]order.ResolvedPrice{
		"sku-1": {Price: usd(t, "10.00"), Title: "Widget"},
	}}

	taxRuns := 0
	regs := []order.Registration{
		{Name: "promo", Priority: 10, Types: []string{"promotion"}, Processor: procFunc(func(_ context.Context, o *order.Order) error {
			for _, li := range o.Items() {
				li.AddAdjustment(adj(t, adjustment.Params{
					Type: "promotion", Label: "10% off", Amount: usd(t, "-1.00"), SourceID: "p1",
				}))
			}
			return nil
		})},
		{Name: "tax", Priority: 20, Types: []string{"tax"}, Processor: procFunc(func(_ context.Context, _ *order.Order) error {
			taxRuns++
			return nil
		})},
	}
	calc := newCalculator(resolver, regs)
	pctx := order.PriceContext{Currency: "USD", OrderType: "default"}

	quote, err := calc.Calculate(context.Background(), "sku-1", decimal.NewFromInt(1), pctx, []string{"promotion"})
	require.NoError(t, err)

	assert.True(t, quote.BasePrice.Equal(usd(t, "10.00")))
	assert.True(t, quote.CalculatedPrice.Equal(usd(t, "9.00")))
	require.Len(t, quote.Adjustments, 1)
	assert.Equal(t, "promotion", quote.Adjustments[0].Type())
	// Only processors producing the requested types run, unlike full refresh.
	assert.Equal(t, 0, taxRuns)
}

func TestCalculateReusesTransientOrder(t *testing.T) {
	resolver := &stubResolver{prices: map[string]order.ResolvedPrice{
		"sku-1": {Price: usd(t, "10.00")},
		"sku-2": {Price: usd(t, "4.00")},
	}}

	var seen []*order.Order
	regs := []order.Registration{
		{Name: "promo", Priority: 10, Types: []string{"promotion"}, Processor: procFunc(func(_ context.Context, o *order.Order) error {
			seen = append(seen, o)
			o.AddAdjustment(adj(t, adjustment.Params{
				Type: "promotion", Label: "Promo", Amount: usd(t, "-1.00"), SourceID: "p1",
			}))
			return nil
		})},
	}
	calc := newCalculator(resolver, regs)
	pctx := order.PriceContext{Currency: "USD", OrderType: "default"}

	_, err := calc.Calculate(context.Background(), "sku-1", decimal.NewFromInt(1), pctx, []string{"promotion"})
	require.NoError(t, err)
	_, err = calc.Calculate(context.Background(), "sku-2", decimal.NewFromInt(2), pctx, []string{"promotion"})
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Same(t, seen[0], seen[1])
	// Order-level state is reset between calls.
	assert.Len(t, seen[1].Adjustments(), 1)
	require.Len(t, seen[1].Items(), 1)
	assert.Equal(t, "sku-2", seen[1].Items()[0].SKU)
}

func TestCalculateNeverPersists(t *testing.T) {
	repo := &countingRepo{}
	resolver := &stubResolver{prices: map[string]order.ResolvedPrice{
		"sku-1": {Price: usd(t, "10.00")},
	}}

	regs := []order.Registration{
		{Name: "promo", Priority: 10, Types: []string{"promotion"}, Processor: procFunc(func(_ context.Context, o *order.Order) error {
			for _, li := range o.Items() {
				li.AddAdjustment(adj(t, adjustment.Params{
					Type: "promotion", Label: "Promo", Amount: usd(t, "-1.00"), SourceID: "p1",
				}))
			}
			return nil
		})},
	}
	calc := newCalculator(resolver, regs)
	pctx := order.PriceContext{Currency: "USD", OrderType: "default"}

	_, err := calc.Calculate(context.Background(), "sku-1", decimal.NewFromInt(1), pctx, []string{"promotion"})
	require.NoError(t, err)

	assert.Equal(t, 0, repo.orderSaves)
	assert.Equal(t, 0, repo.itemSaves)
}

func TestCalculateResolverErrorPropagates(t *testing.T) {
	calc := newCalculator(&stubResolver{}, nil)
	pctx := order.PriceContext{Currency: "USD", OrderType: "default"}

	_, err := calc.Calculate(context.Background(), "missing", decimal.NewFromInt(1), pctx, nil)
	assert.ErrorIs(t, err, order.ErrNoPrice)
}
