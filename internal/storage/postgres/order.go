package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/commerce-pricing/internal/domain/adjustment"
	"github.com/xenking/commerce-pricing/internal/domain/money"
	"github.com/xenking/commerce-pricing/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// execer is satisfied by *pgxpool.Pool and pgx.Tx alike.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// OrderRepository implements order.Repository backed by PostgreSQL. Saving an
// order recomputes its totals from current line item and adjustment state
// before the row is written.
type OrderRepository struct {
	pool     *pgxpool.Pool
	registry adjustment.Registry
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
// The registry rebuilds stored adjustments on load.
func NewOrderRepository(pool *pgxpool.Pool, registry adjustment.Registry) *OrderRepository {
	return &OrderRepository{pool: pool, registry: registry}
}

// SaveOrder recomputes o's totals and upserts the order row together with
// all its line items in one transaction.
func (r *OrderRepository) SaveOrder(ctx context.Context, o *order.Order) error {
	o.RecalculateTotals()

	adjs, err := encodeAdjustments(o.Adjustments())
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, type, state, currency, customer_id, subtotal, total, adjustments, refresh_state, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			subtotal = EXCLUDED.subtotal,
			total = EXCLUDED.total,
			adjustments = EXCLUDED.adjustments,
			refresh_state = EXCLUDED.refresh_state,
			updated_at = EXCLUDED.updated_at`,
		o.ID, o.Type, o.State, o.Currency, o.CustomerID,
		o.Subtotal.Amount(), o.Total.Amount(), adjs, string(o.RefreshState), o.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert order %s", o.ID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, o.ID); err != nil {
		return errors.Wrapf(err, "clear items of order %s", o.ID)
	}
	for pos, li := range o.Items() {
		if err := upsertItem(ctx, tx, li, pos); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// SaveItem upserts a single line item row, keeping its stored position.
func (r *OrderRepository) SaveItem(ctx context.Context, li *order.LineItem) error {
	var pos int
	err := r.pool.QueryRow(ctx,
		`SELECT position FROM order_items WHERE id = $1`, li.ID,
	).Scan(&pos)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return errors.Wrapf(err, "load position of item %s", li.ID)
	}
	return upsertItem(ctx, r.pool, li, pos)
}

func upsertItem(ctx context.Context, db execer, li *order.LineItem, pos int) error {
	adjs, err := encodeAdjustments(li.Adjustments())
	if err != nil {
		return err
	}

	_, err = db.Exec(ctx, `
		INSERT INTO order_items (id, order_id, sku, title, currency, unit_price, quantity, adjustments, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			sku = EXCLUDED.sku,
			title = EXCLUDED.title,
			unit_price = EXCLUDED.unit_price,
			quantity = EXCLUDED.quantity,
			adjustments = EXCLUDED.adjustments,
			position = EXCLUDED.position`,
		li.ID, li.OrderID, li.SKU, li.Title, li.UnitPrice.Currency(),
		li.UnitPrice.Amount(), li.Quantity, adjs, pos,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert line item %s", li.ID)
	}
	return nil
}

// GetByID loads an order with its line items and adjustments.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	o := &order.Order{}
	var (
		subtotal, total decimal.Decimal
		adjsJSON        []byte
		refreshState    string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, type, state, currency, customer_id, subtotal, total, adjustments, refresh_state, updated_at
		FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.Type, &o.State, &o.Currency, &o.CustomerID,
		&subtotal, &total, &adjsJSON, &refreshState, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "load order %s", id)
	}

	o.Subtotal = money.New(subtotal, o.Currency)
	o.Total = money.New(total, o.Currency)
	o.RefreshState = order.RefreshState(refreshState)

	adjs, err := decodeAdjustments(r.registry, adjsJSON)
	if err != nil {
		return nil, err
	}
	o.SetAdjustments(adjs)

	items, err := r.loadItems(ctx, o)
	if err != nil {
		return nil, err
	}
	o.SetItems(items)
	return o, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, o *order.Order) ([]*order.LineItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, sku, title, currency, unit_price, quantity, adjustments
		FROM order_items WHERE order_id = $1 ORDER BY position`, o.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "load items of order %s", o.ID)
	}
	defer rows.Close()

	var items []*order.LineItem
	for rows.Next() {
		li := &order.LineItem{OrderID: o.ID}
		var (
			currency  string
			unitPrice decimal.Decimal
			adjsJSON  []byte
		)
		if err := rows.Scan(&li.ID, &li.SKU, &li.Title, &currency, &unitPrice, &li.Quantity, &adjsJSON); err != nil {
			return nil, errors.Wrap(err, "scan line item")
		}
		li.UnitPrice = money.New(unitPrice, currency)

		adjs, err := decodeAdjustments(r.registry, adjsJSON)
		if err != nil {
			return nil, err
		}
		li.SetAdjustments(adjs)
		items = append(items, li)
	}
	return items, rows.Err()
}
