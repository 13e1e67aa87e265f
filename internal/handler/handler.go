// Package handler exposes the pricing engine over plain net/http: price
// quotes for catalog items and on-demand order refresh.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/commerce-pricing/internal/domain/adjustment"
	"github.com/xenking/commerce-pricing/internal/domain/order"
	"github.com/xenking/commerce-pricing/internal/domain/pricing"
)

// OrderStore is the persistence surface the handler needs: the engine's
// repository plus lookup by ID.
type OrderStore interface {
	order.Repository
	GetByID(ctx context.Context, id string) (*order.Order, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// DefaultCurrency is assumed when a quote request omits the currency.
	DefaultCurrency string
	// DefaultOrderType scopes transient quote orders.
	DefaultOrderType string
}

// Handler serves the HTTP API. Calculators are request-scoped, so one is
// built per quote request from the shared resolver and registrations.
type Handler struct {
	cfg           Config
	store         OrderStore
	refresh       *order.RefreshService
	resolver      order.PriceResolver
	transformer   *adjustment.Transformer
	registrations []order.Registration
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	store OrderStore,
	refresh *order.RefreshService,
	resolver order.PriceResolver,
	transformer *adjustment.Transformer,
	registrations []order.Registration,
) *Handler {
	return &Handler{
		cfg:           cfg,
		store:         store,
		refresh:       refresh,
		resolver:      resolver,
		transformer:   transformer,
		registrations: registrations,
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/quote", h.Quote)
	mux.HandleFunc("POST /api/v1/orders/{id}/refresh", h.RefreshOrder)
}

type quoteRequest struct {
	SKU             string   `json:"sku"`
	Quantity        string   `json:"quantity,omitempty"`
	Currency        string   `json:"currency,omitempty"`
	CustomerID      string   `json:"customer_id,omitempty"`
	AdjustmentTypes []string `json:"adjustment_types,omitempty"`
}

type adjustmentResponse struct {
	Type       string `json:"type"`
	Label      string `json:"label"`
	Amount     string `json:"amount"`
	SourceID   string `json:"source_id,omitempty"`
	Percentage string `json:"percentage,omitempty"`
	Included   bool   `json:"included,omitempty"`
}

type quoteResponse struct {
	SKU             string               `json:"sku"`
	Currency        string               `json:"currency"`
	BasePrice       string               `json:"base_price"`
	CalculatedPrice string               `json:"calculated_price"`
	Adjustments     []adjustmentResponse `json:"adjustments"`
}

// Quote computes the adjusted price of a catalog item without creating an
// order.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SKU == "" {
		writeError(w, http.StatusBadRequest, "sku is required")
		return
	}

	quantity := decimal.NewFromInt(1)
	if req.Quantity != "" {
		var err error
		if quantity, err = decimal.NewFromString(req.Quantity); err != nil || !quantity.IsPositive() {
			writeError(w, http.StatusUnprocessableEntity, "quantity must be a positive decimal")
			return
		}
	}
	currency := req.Currency
	if currency == "" {
		currency = h.cfg.DefaultCurrency
	}

	calc := pricing.NewCalculator(h.resolver, h.transformer, h.registrations)
	quote, err := calc.Calculate(r.Context(), req.SKU, quantity, order.PriceContext{
		Currency:   currency,
		CustomerID: req.CustomerID,
		OrderType:  h.cfg.DefaultOrderType,
	}, req.AdjustmentTypes)
	if err != nil {
		if errors.Is(err, order.ErrNoPrice) {
			writeError(w, http.StatusNotFound, "no price for sku")
			return
		}
		zctx.From(r.Context()).Error("quote failed", zap.String("sku", req.SKU), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not calculate price")
		return
	}

	resp := quoteResponse{
		SKU:             req.SKU,
		Currency:        quote.CalculatedPrice.Currency(),
		BasePrice:       quote.BasePrice.Amount().StringFixed(2),
		CalculatedPrice: quote.CalculatedPrice.Amount().StringFixed(2),
		Adjustments:     mapAdjustments(quote.Adjustments),
	}
	writeJSON(w, http.StatusOK, resp)
}

type refreshResponse struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	Currency  string `json:"currency"`
	Subtotal  string `json:"subtotal"`
	Total     string `json:"total"`
	Refreshed bool   `json:"refreshed"`
}

// RefreshOrder recomputes a stored order's prices and totals when its
// refresh policy allows it.
func (h *Handler) RefreshOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	actor := r.Header.Get("X-Actor-ID")

	o, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		zctx.From(r.Context()).Error("load order failed", zap.String("order_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load order")
		return
	}

	refreshed := false
	if h.refresh.NeedsRefresh(o, actor) {
		if err := h.refresh.Refresh(r.Context(), o); err != nil {
			zctx.From(r.Context()).Error("refresh failed", zap.String("order_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not refresh order")
			return
		}
		refreshed = true
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		ID:        o.ID,
		State:     o.State,
		Currency:  o.Currency,
		Subtotal:  o.Subtotal.Amount().StringFixed(2),
		Total:     o.Total.Amount().StringFixed(2),
		Refreshed: refreshed,
	})
}

func mapAdjustments(adjs []adjustment.Adjustment) []adjustmentResponse {
	out := make([]adjustmentResponse, len(adjs))
	for i, a := range adjs {
		out[i] = adjustmentResponse{
			Type:     a.Type(),
			Label:    a.Label(),
			Amount:   a.Amount().Amount().StringFixed(2),
			SourceID: a.SourceID(),
			Included: a.Included(),
		}
		if pct := a.Percentage(); pct.Valid {
			out[i].Percentage = pct.Decimal.String()
		}
	}
	return out
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Code: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
