package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/pod-ledger/internal/domain/order"
)

const upsertCustomerSQL = `INSERT INTO customers (id, seller_id, name, email, phone,
		street, city, postal_code, country, total_orders, total_spent, last_order_date)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11)
	ON CONFLICT (seller_id, phone) DO UPDATE SET
		name = EXCLUDED.name,
		email = COALESCE(NULLIF(EXCLUDED.email, ''), customers.email),
		street = EXCLUDED.street,
		city = EXCLUDED.city,
		postal_code = EXCLUDED.postal_code,
		country = EXCLUDED.country,
		total_orders = customers.total_orders + 1,
		total_spent = customers.total_spent + EXCLUDED.total_spent,
		last_order_date = EXCLUDED.last_order_date
	RETURNING id, total_orders, total_spent, last_order_date`

var _ order.CustomerRepository = (*CustomerRepository)(nil)

// CustomerRepository implements order.CustomerRepository.
type CustomerRepository struct {
	db dbtx
}

// Upsert creates the customer or folds one more order into its aggregates.
func (r *CustomerRepository) Upsert(ctx context.Context, c *order.Customer, amount decimal.Decimal, at time.Time) (*order.Customer, error) {
	out := *c
	err := r.db.QueryRow(ctx, upsertCustomerSQL,
		uuid.NewString(), c.SellerID, c.Name, c.Email, c.Phone,
		c.Address.Street, c.Address.City, c.Address.PostalCode, c.Address.Country,
		amount, at,
	).Scan(&out.ID, &out.TotalOrders, &out.TotalSpent, &out.LastOrderDate)
	if err != nil {
		return nil, fmt.Errorf("upserting customer %q of %q: %w", c.Phone, c.SellerID, err)
	}
	return &out, nil
}
