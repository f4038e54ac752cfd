package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/pod-ledger/internal/domain/pricing"
)

const (
	upsertUserSQL = `INSERT INTO users (id, name, balance, points, is_verified, referred_by)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			is_verified = EXCLUDED.is_verified,
			referred_by = EXCLUDED.referred_by`

	upsertProductSQL = `INSERT INTO products (id, name, base_price, colors, sizes, is_active, in_stock, views)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			base_price = EXCLUDED.base_price,
			colors = EXCLUDED.colors,
			sizes = EXCLUDED.sizes,
			is_active = EXCLUDED.is_active,
			in_stock = EXCLUDED.in_stock,
			views = EXCLUDED.views`

	upsertTemplateSQL = `INSERT INTO templates (id, owner_id, product_id, name, status, colors, sizes, design_config)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			colors = EXCLUDED.colors,
			sizes = EXCLUDED.sizes,
			design_config = EXCLUDED.design_config`

	upsertSellerPriceSQL = `INSERT INTO seller_prices (seller_id, product_id, price) VALUES ($1, $2, $3)
		ON CONFLICT (seller_id, product_id) DO UPDATE SET price = EXCLUDED.price`

	upsertSettingSQL = `INSERT INTO platform_settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
)

// SeedUser is a user row as written by the seeder. Balance and points only
// apply when the user is created; existing balances are never overwritten.
type SeedUser struct {
	ID         string
	Name       string
	Balance    decimal.Decimal
	Points     int64
	Verified   bool
	ReferredBy string
}

// Seeder upserts reference data. It backs the seed-db command and
// integration fixtures.
type Seeder struct {
	pool *pgxpool.Pool
}

// NewSeeder returns a Seeder that uses the given pool.
func NewSeeder(pool *pgxpool.Pool) *Seeder {
	return &Seeder{pool: pool}
}

// UpsertUser creates or updates a user.
func (s *Seeder) UpsertUser(ctx context.Context, u SeedUser) error {
	_, err := s.pool.Exec(ctx, upsertUserSQL, u.ID, u.Name, u.Balance, u.Points, u.Verified, u.ReferredBy)
	if err != nil {
		return fmt.Errorf("upserting user %q: %w", u.ID, err)
	}
	return nil
}

// UpsertProduct creates or updates a product with its views.
func (s *Seeder) UpsertProduct(ctx context.Context, p pricing.Product) error {
	views := make([]viewJSON, len(p.Views))
	for i, v := range p.Views {
		views[i] = viewJSON{Key: v.Key, Price: v.Price}
	}
	raw, err := json.Marshal(views)
	if err != nil {
		return fmt.Errorf("marshaling views of product %q: %w", p.ID, err)
	}
	_, err = s.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.BasePrice, nonNil(p.Colors), nonNil(p.Sizes), p.IsActive, p.InStock, raw)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

// UpsertTemplate creates or updates a seller template.
func (s *Seeder) UpsertTemplate(ctx context.Context, t pricing.Template) error {
	design := t.Design
	if design == nil {
		design = map[string]json.RawMessage{}
	}
	raw, err := json.Marshal(design)
	if err != nil {
		return fmt.Errorf("marshaling design of template %q: %w", t.ID, err)
	}
	_, err = s.pool.Exec(ctx, upsertTemplateSQL,
		t.ID, t.OwnerID, t.ProductID, t.Name, t.Status, nonNil(t.Colors), nonNil(t.Sizes), raw)
	if err != nil {
		return fmt.Errorf("upserting template %q: %w", t.ID, err)
	}
	return nil
}

// UpsertSellerPrice sets a seller's override price for a product.
func (s *Seeder) UpsertSellerPrice(ctx context.Context, sellerID, productID string, price decimal.Decimal) error {
	if _, err := s.pool.Exec(ctx, upsertSellerPriceSQL, sellerID, productID, price); err != nil {
		return fmt.Errorf("upserting seller price %q/%q: %w", sellerID, productID, err)
	}
	return nil
}

// PutSetting stores a platform setting.
func (s *Seeder) PutSetting(ctx context.Context, key, value string) error {
	if _, err := s.pool.Exec(ctx, upsertSettingSQL, key, value); err != nil {
		return fmt.Errorf("putting setting %q: %w", key, err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
