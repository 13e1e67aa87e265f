package order

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/commerce-pricing/internal/domain/adjustment"
)

// RefreshPolicy controls when orders of one type are refreshed.
type RefreshPolicy struct {
	// Frequency is the minimum interval between refreshes.
	Frequency time.Duration
	// CustomerOnly restricts refresh to the owning customer.
	CustomerOnly bool
}

// RefreshService re-derives an order's resolved prices and adjustments from
// current catalog state: it resets derived state, re-resolves line item
// prices, runs the registered processors in priority order, normalizes the
// resulting adjustments and persists the outcome. A guard keyed by order ID
// makes the operation re-entrancy safe.
type RefreshService struct {
	repo          Repository
	resolver      PriceResolver
	transformer   *adjustment.Transformer
	registrations []Registration
	policies      map[string]RefreshPolicy
	now           func() time.Time
	lg            *zap.Logger

	mu         sync.Mutex
	inProgress map[string]struct{}
}

// NewRefreshService wires a RefreshService. Registrations are sorted by
// ascending priority once, at composition time. Policies map order types to
// their refresh policy; unlisted types refresh unconditionally.
func NewRefreshService(
	repo Repository,
	resolver PriceResolver,
	transformer *adjustment.Transformer,
	registrations []Registration,
	policies map[string]RefreshPolicy,
	lg *zap.Logger,
) *RefreshService {
	return &RefreshService{
		repo:          repo,
		resolver:      resolver,
		transformer:   transformer,
		registrations: sortRegistrations(registrations),
		policies:      policies,
		now:           time.Now,
		lg:            lg,
		inProgress:    make(map[string]struct{}),
	}
}

// NeedsRefresh reports whether o should be refreshed when touched by actorID.
// Non-draft orders never refresh; a recent enough refresh or a policy
// restricting refresh to the owner short-circuits to false.
func (s *RefreshService) NeedsRefresh(o *Order, actorID string) bool {
	if o.State != StateDraft {
		return false
	}
	policy := s.policies[o.Type]
	if s.now().Sub(o.UpdatedAt) < policy.Frequency {
		return false
	}
	if policy.CustomerOnly && actorID != o.CustomerID {
		return false
	}
	return true
}

// Refresh recomputes o's prices, adjustments and totals in place.
//
// Manually entered order adjustments survive; everything else is rebuilt:
// line item adjustments are cleared, catalog-backed unit prices re-resolved,
// processors run in priority order, adjustment lists normalized through the
// transformer, and the order saved (which recomputes its totals). A refresh
// triggered from inside a running refresh of the same order returns
// immediately without doing anything. Collaborator errors propagate without
// rollback; the guard is released on every exit path.
func (s *RefreshService) Refresh(ctx context.Context, o *Order) error {
	if !s.begin(o.ID) {
		s.lg.Debug("refresh already in progress", zap.String("order_id", o.ID))
		return nil
	}
	defer s.end(o.ID)

	o.SetAdjustments(o.Adjustments(adjustment.TypeCustom))

	pctx := PriceContext{
		Currency:   o.Currency,
		CustomerID: o.CustomerID,
		OrderType:  o.Type,
	}
	for _, li := range o.Items() {
		li.SetAdjustments(nil)
		if li.SKU != "" {
			resolved, err := s.resolver.Resolve(ctx, li.SKU, li.Quantity, pctx)
			if err != nil {
				return errors.Wrapf(err, "resolve price for %q", li.SKU)
			}
			li.UnitPrice = resolved.Price
			if resolved.Title != "" {
				li.Title = resolved.Title
			}
		}
		if err := s.repo.SaveItem(ctx, li); err != nil {
			return errors.Wrapf(err, "save line item %s", li.ID)
		}
	}

	for _, reg := range s.registrations {
		if err := reg.Processor.Process(ctx, o); err != nil {
			return errors.Wrapf(err, "processor %q", reg.Name)
		}
	}

	o.SetAdjustments(s.transformer.Process(o.Adjustments()))
	for _, li := range o.Items() {
		li.SetAdjustments(s.transformer.Process(li.Adjustments()))
	}

	o.RefreshState = RefreshNone
	o.UpdatedAt = s.now()
	if err := s.repo.SaveOrder(ctx, o); err != nil {
		return errors.Wrapf(err, "save order %s", o.ID)
	}

	s.lg.Debug("order refreshed",
		zap.String("order_id", o.ID),
		zap.Int("items", len(o.Items())),
		zap.Int("adjustments", len(o.Adjustments())),
	)
	return nil
}

// begin marks o.ID as refreshing; it returns false when a refresh of the
// same order is already running on this service.
func (s *RefreshService) begin(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inProgress[id]; busy {
		return false
	}
	s.inProgress[id] = struct{}{}
	return true
}

func (s *RefreshService) end(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inProgress, id)
}
