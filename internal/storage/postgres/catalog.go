package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/commerce-pricing/internal/domain/money"
	"github.com/xenking/commerce-pricing/internal/domain/order"
)

var _ order.PriceResolver = (*CatalogRepository)(nil)

// CatalogRepository stores catalog list prices and acts as the base resolver
// of the price resolution chain.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// UpsertPrice writes a catalog row.
func (r *CatalogRepository) UpsertPrice(ctx context.Context, sku, title, currency string, listPrice decimal.Decimal) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO catalog_prices (sku, title, currency, list_price, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (sku) DO UPDATE SET
			title = EXCLUDED.title,
			currency = EXCLUDED.currency,
			list_price = EXCLUDED.list_price,
			updated_at = now()`,
		sku, title, currency, listPrice,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert price for %q", sku)
	}
	return nil
}

// Resolve returns the stored list price for sku in the context's currency.
// Unknown SKUs and currency mismatches yield order.ErrNoPrice so further
// resolvers in the chain may answer.
func (r *CatalogRepository) Resolve(ctx context.Context, sku string, _ decimal.Decimal, pctx order.PriceContext) (order.ResolvedPrice, error) {
	var (
		title     string
		currency  string
		listPrice decimal.Decimal
	)
	err := r.pool.QueryRow(ctx,
		`SELECT title, currency, list_price FROM catalog_prices WHERE sku = $1`, sku,
	).Scan(&title, &currency, &listPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ResolvedPrice{}, order.ErrNoPrice
		}
		return order.ResolvedPrice{}, errors.Wrapf(err, "resolve price for %q", sku)
	}
	if pctx.Currency != "" && pctx.Currency != currency {
		return order.ResolvedPrice{}, order.ErrNoPrice
	}
	return order.ResolvedPrice{
		Price: money.New(listPrice, currency),
		Title: title,
	}, nil
}
