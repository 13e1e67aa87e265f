package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/commerce-pricing/internal/domain/adjustment"
	"github.com/xenking/commerce-pricing/internal/domain/money"
)

type mockRepo struct {
	orderSaves int
	itemSaves  int
	orderErr   error
	itemErr    error
}

func (m *mockRepo) SaveOrder(_ context.Context, o *Order) error {
	if m.orderErr != nil {
		return m.orderErr
	}
	m.orderSaves++
	o.RecalculateTotals()
	return nil
}

func (m *mockRepo) SaveItem(_ context.Context, _ *LineItem) error {
	if m.itemErr != nil {
		return m.itemErr
	}
	m.itemSaves++
	return nil
}

type staticResolver struct {
	prices map[string]ResolvedPrice
	err    error
}

func (r *staticResolver) Resolve(_ context.Context, sku string, _ decimal.Decimal, _ PriceContext) (ResolvedPrice, error) {
	if r.err != nil {
		return ResolvedPrice{}, r.err
	}
	rp, ok := r.prices[sku]
	if !ok {
		return ResolvedPrice{}, ErrNoPrice
	}
	return rp, nil
}

type procFunc func(ctx context.Context, o *Order) error

func (f procFunc) Process(ctx context.Context, o *Order) error { return f(ctx, o) }

func newTestService(repo Repository, resolver PriceResolver, regs []Registration, policies map[string]RefreshPolicy) *RefreshService {
	return NewRefreshService(
		repo,
		resolver,
		adjustment.NewTransformer(adjustment.DefaultRegistry()),
		regs,
		policies,
		zap.NewNop(),
	)
}

func TestRefreshResolvesPricesAndRunsProcessors(t *testing.T) {
	repo := &mockRepo{}
	resolver := &staticResolver{prices: map[string]ResolvedPrice{
		"sku-1": {Price: money.New(decimal.New(1250, -2), "USD"), Title: "Widget Mk II"},
	}}

	var order []string
	regs := []Registration{
		{Name: "tax", Priority: 20, Types: []string{"tax"}, Processor: procFunc(func(_ context.Context, o *Order) error {
			order = append(order, "tax")
			return nil
		})},
		{Name: "promo", Priority: 10, Types: []string{"promotion"}, Processor: procFunc(func(_ context.Context, o *Order) error {
			order = append(order, "promo")
			o.AddAdjustment(adj(t, adjustment.Params{
				Type: "promotion", Label: "Promo", Amount: usd(t, "-1.00"), SourceID: "p1",
			}))
			return nil
		})},
	}

	svc := newTestService(repo, resolver, regs, nil)

	o := New("default", "USD", "cust-1")
	li := NewLineItem("sku-1", "Widget", usd(t, "9.99"), qty(2))
	o.AddItem(li)

	require.NoError(t, svc.Refresh(context.Background(), o))

	// Processors ran ascending by priority regardless of registration order.
	assert.Equal(t, []string{"promo", "tax"}, order)
	assert.True(t, li.UnitPrice.Equal(usd(t, "12.50")))
	assert.Equal(t, "Widget Mk II", li.Title)
	assert.Equal(t, 1, repo.orderSaves)
	assert.Equal(t, 1, repo.itemSaves)
	assert.True(t, o.Total.Equal(usd(t, "24.00")))
	assert.Equal(t, RefreshNone, o.RefreshState)
}

func TestRefreshPreservesManualAdjustments(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo, &staticResolver{}, nil, nil)

	o := New("default", "USD", "cust-1")
	o.AddAdjustment(adj(t, adjustment.Params{
		Type: adjustment.TypeCustom, Label: "Haggled", Amount: usd(t, "-2.00"),
	}))
	o.AddAdjustment(adj(t, adjustment.Params{
		Type: "promotion", Label: "Stale promo", Amount: usd(t, "-5.00"), SourceID: "p1",
	}))

	require.NoError(t, svc.Refresh(context.Background(), o))

	got := o.Adjustments()
	require.Len(t, got, 1)
	assert.Equal(t, adjustment.TypeCustom, got[0].Type())
}

func TestRefreshClearsLineItemAdjustments(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo, &staticResolver{}, nil, nil)

	o := New("default", "USD", "cust-1")
	li := NewLineItem("", "Custom thing", usd(t, "5.00"), qty(1))
	li.AddAdjustment(adj(t, adjustment.Params{
		Type: "promotion", Label: "Stale", Amount: usd(t, "-1.00"), SourceID: "p1",
	}))
	o.AddItem(li)

	require.NoError(t, svc.Refresh(context.Background(), o))

	assert.Empty(t, li.Adjustments())
	// Empty SKU means no price resolution attempt.
	assert.True(t, li.UnitPrice.Equal(usd(t, "5.00")))
}

func TestRefreshReentrantCallIsNoop(t *testing.T) {
	repo := &mockRepo{}

	var svc *RefreshService
	var innerErr error
	runs := 0
	regs := []Registration{
		{Name: "recursive", Priority: 0, Processor: procFunc(func(ctx context.Context, o *Order) error {
			runs++
			// A processor that loads and saves the order can trigger a nested
			// refresh; the inner call must return without re-running anything.
			innerErr = svc.Refresh(ctx, o)
			return nil
		})},
	}
	svc = newTestService(repo, &staticResolver{}, regs, nil)

	o := New("default", "USD", "cust-1")
	require.NoError(t, svc.Refresh(context.Background(), o))

	assert.NoError(t, innerErr)
	assert.Equal(t, 1, runs)
	assert.Equal(t, 1, repo.orderSaves)
}

func TestRefreshGuardReleasedOnError(t *testing.T) {
	repo := &mockRepo{}
	boom := errors.New("boom")
	regs := []Registration{
		{Name: "failing", Priority: 0, Processor: procFunc(func(_ context.Context, _ *Order) error {
			return boom
		})},
	}
	svc := newTestService(repo, &staticResolver{}, regs, nil)

	o := New("default", "USD", "cust-1")
	err := svc.Refresh(context.Background(), o)
	require.ErrorIs(t, err, boom)

	// A failed refresh must not lock the order out of future attempts.
	err = svc.Refresh(context.Background(), o)
	assert.ErrorIs(t, err, boom)
}

func TestRefreshResolverErrorPropagates(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo, &staticResolver{err: errors.New("resolver down")}, nil, nil)

	o := New("default", "USD", "cust-1")
	o.AddItem(NewLineItem("sku-1", "Widget", usd(t, "9.99"), qty(1)))

	err := svc.Refresh(context.Background(), o)
	assert.Error(t, err)
	assert.Equal(t, 0, repo.orderSaves)
}

func TestNeedsRefresh(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		state   string
		policy  RefreshPolicy
		elapsed time.Duration
		actor   string
		want    bool
	}{
		{name: "draft refreshes", state: StateDraft, elapsed: time.Hour, actor: "cust-1", want: true},
		{name: "completed never refreshes", state: StateCompleted, elapsed: time.Hour, actor: "cust-1", want: false},
		{name: "too recent", state: StateDraft, policy: RefreshPolicy{Frequency: time.Minute}, elapsed: 10 * time.Second, actor: "cust-1", want: false},
		{name: "frequency elapsed", state: StateDraft, policy: RefreshPolicy{Frequency: time.Minute}, elapsed: 2 * time.Minute, actor: "cust-1", want: true},
		{name: "customer only blocks other actor", state: StateDraft, policy: RefreshPolicy{CustomerOnly: true}, elapsed: time.Hour, actor: "admin", want: false},
		{name: "customer only allows owner", state: StateDraft, policy: RefreshPolicy{CustomerOnly: true}, elapsed: time.Hour, actor: "cust-1", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&mockRepo{}, &staticResolver{}, nil, map[string]RefreshPolicy{
				"default": tt.policy,
			})
			svc.now = func() time.Time { return now }

			o := New("default", "USD", "cust-1")
			o.State = tt.state
			o.UpdatedAt = now.Add(-tt.elapsed)

			assert.Equal(t, tt.want, svc.NeedsRefresh(o, tt.actor))
		})
	}
}
