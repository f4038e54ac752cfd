package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/pod-ledger/internal/domain/pricing"
)

const (
	getProductsByIDsSQL = `SELECT id, name, base_price, colors, sizes, is_active, in_stock, views
		FROM products WHERE id = ANY($1)`

	getTemplatesByIDsSQL = `SELECT id, owner_id, product_id, name, status, colors, sizes, design_config
		FROM templates WHERE id = ANY($1)`

	getSellerPricesSQL = `SELECT product_id, price FROM seller_prices
		WHERE seller_id = $1 AND product_id = ANY($2)`
)

var _ pricing.Catalog = (*CatalogRepository)(nil)

// CatalogRepository implements pricing.Catalog backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// ProductsByIDs returns products matching any of the given IDs.
func (r *CatalogRepository) ProductsByIDs(ctx context.Context, ids []string) ([]pricing.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// TemplatesByIDs returns templates matching any of the given IDs.
func (r *CatalogRepository) TemplatesByIDs(ctx context.Context, ids []string) ([]pricing.Template, error) {
	rows, err := r.pool.Query(ctx, getTemplatesByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting templates by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanTemplate)
}

// SellerPrices returns the seller's override prices keyed by product id.
func (r *CatalogRepository) SellerPrices(ctx context.Context, sellerID string, productIDs []string) (map[string]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, getSellerPricesSQL, sellerID, productIDs)
	if err != nil {
		return nil, fmt.Errorf("getting seller prices of %q: %w", sellerID, err)
	}
	defer rows.Close()

	prices := make(map[string]decimal.Decimal)
	for rows.Next() {
		var (
			id    string
			price decimal.Decimal
		)
		if err := rows.Scan(&id, &price); err != nil {
			return nil, fmt.Errorf("scanning seller price: %w", err)
		}
		prices[id] = price
	}
	return prices, rows.Err()
}

type viewJSON struct {
	Key   string          `json:"key"`
	Price decimal.Decimal `json:"price"`
}

func scanProduct(row pgx.CollectableRow) (pricing.Product, error) {
	var (
		p     pricing.Product
		views []byte
	)
	err := row.Scan(&p.ID, &p.Name, &p.BasePrice, &p.Colors, &p.Sizes, &p.IsActive, &p.InStock, &views)
	if err != nil {
		return p, err
	}
	var vs []viewJSON
	if err := json.Unmarshal(views, &vs); err != nil {
		return p, fmt.Errorf("unmarshaling views of product %q: %w", p.ID, err)
	}
	p.Views = make([]pricing.View, len(vs))
	for i, v := range vs {
		p.Views[i] = pricing.View{Key: v.Key, Price: v.Price}
	}
	return p, nil
}

func scanTemplate(row pgx.CollectableRow) (pricing.Template, error) {
	var (
		t      pricing.Template
		design []byte
	)
	err := row.Scan(&t.ID, &t.OwnerID, &t.ProductID, &t.Name, &t.Status, &t.Colors, &t.Sizes, &design)
	if err != nil {
		return t, err
	}
	if err := json.Unmarshal(design, &t.Design); err != nil {
		return t, fmt.Errorf("unmarshaling design of template %q: %w", t.ID, err)
	}
	return t, nil
}
