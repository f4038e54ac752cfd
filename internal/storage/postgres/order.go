package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/pod-ledger/internal/domain/order"
)

const orderColumns = `id, number, seller_id, customer_id, product_id, template_id, items,
	unit_price, total_amount, status, shipping_status, tracking_number,
	allow_reshipping, is_reordered, with_packaging,
	recipient_name, recipient_email, recipient_phone,
	street, city, postal_code, country, note,
	credited_at, last_synced_at, ship_requested_at, created_at, updated_at`

const (
	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`

	getOrderSQL          = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	getOrderForUpdateSQL = getOrderSQL + ` FOR UPDATE`
	getByTrackingLockSQL = `SELECT ` + orderColumns + ` FROM orders WHERE tracking_number = $1 FOR UPDATE`
	markReorderedSQL     = `UPDATE orders SET is_reordered = TRUE, updated_at = now() WHERE id = ANY($1)`
	countBySellerSQL     = `SELECT count(*) FROM orders WHERE seller_id = $1`

	saveOrderSQL = `UPDATE orders SET
		status = $2, shipping_status = $3, tracking_number = $4, allow_reshipping = $5,
		note = $6, credited_at = $7, last_synced_at = $8, ship_requested_at = $9, updated_at = $10
		WHERE id = $1`

	listSyncCandidatesSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE tracking_number IS NOT NULL
			AND status NOT IN ('PAID', 'RETURNED')
			AND (last_synced_at IS NULL OR last_synced_at <= $2)
		ORDER BY last_synced_at NULLS FIRST, created_at
		LIMIT $1`

	nextSequenceSQL = `INSERT INTO order_sequences (period, value) VALUES ($1, 1)
		ON CONFLICT (period) DO UPDATE SET value = order_sequences.value + 1
		RETURNING value`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db dbtx
}

// Create persists a new order. The order items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = r.db.Exec(ctx, createOrderSQL,
		o.ID, o.Number, o.SellerID, nullString(o.CustomerID), nullString(o.ProductID), nullString(o.TemplateID), itemsJSON,
		o.UnitPrice, o.TotalAmount, string(o.Status), o.ShippingStatus, nullString(o.TrackingNumber),
		o.AllowReshipping, o.IsReordered, o.WithPackaging,
		o.Recipient.Name, o.Recipient.Email, o.Recipient.Phone,
		o.Address.Street, o.Address.City, o.Address.PostalCode, o.Address.Country, o.Note,
		o.CreditedAt, o.LastSyncedAt, o.ShipRequestedAt, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "orders_number_key") {
			return order.ErrDuplicateNumber
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Get returns the order with the given id.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.one(ctx, getOrderSQL, id)
}

// GetForUpdate returns the order and locks its row.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.one(ctx, getOrderForUpdateSQL, id)
}

// GetByTrackingForUpdate returns the order holding the tracking number and
// locks its row.
func (r *OrderRepository) GetByTrackingForUpdate(ctx context.Context, trackingNumber string) (*order.Order, error) {
	return r.one(ctx, getByTrackingLockSQL, trackingNumber)
}

func (r *OrderRepository) one(ctx context.Context, sql, arg string) (*order.Order, error) {
	rows, err := r.db.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", arg, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", arg, err)
	}
	return &o, nil
}

// Save writes the lifecycle fields of o.
func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	tag, err := r.db.Exec(ctx, saveOrderSQL,
		o.ID, string(o.Status), o.ShippingStatus, nullString(o.TrackingNumber), o.AllowReshipping,
		o.Note, o.CreditedAt, o.LastSyncedAt, o.ShipRequestedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// MarkReordered flags the given orders as consumed reorder sources.
func (r *OrderRepository) MarkReordered(ctx context.Context, ids []string) error {
	if _, err := r.db.Exec(ctx, markReorderedSQL, ids); err != nil {
		return fmt.Errorf("marking orders reordered: %w", err)
	}
	return nil
}

// CountBySeller returns the number of orders of the seller.
func (r *OrderRepository) CountBySeller(ctx context.Context, sellerID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, countBySellerSQL, sellerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting orders of %q: %w", sellerID, err)
	}
	return n, nil
}

// ListSyncCandidates returns open tracked orders, least recently synced first.
func (r *OrderRepository) ListSyncCandidates(ctx context.Context, limit int, syncedBefore time.Time) ([]order.Order, error) {
	rows, err := r.db.Query(ctx, listSyncCandidatesSQL, limit, syncedBefore)
	if err != nil {
		return nil, fmt.Errorf("listing sync candidates: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// NextSequence increments the order counter of period.
func (r *OrderRepository) NextSequence(ctx context.Context, period string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, nextSequenceSQL, period).Scan(&n); err != nil {
		return 0, fmt.Errorf("next sequence for %s: %w", period, err)
	}
	return n, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                                 order.Order
		customerID, productID, templateID *string
		tracking                          *string
		status                            string
		items                             []byte
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.SellerID, &customerID, &productID, &templateID, &items,
		&o.UnitPrice, &o.TotalAmount, &status, &o.ShippingStatus, &tracking,
		&o.AllowReshipping, &o.IsReordered, &o.WithPackaging,
		&o.Recipient.Name, &o.Recipient.Email, &o.Recipient.Phone,
		&o.Address.Street, &o.Address.City, &o.Address.PostalCode, &o.Address.Country, &o.Note,
		&o.CreditedAt, &o.LastSyncedAt, &o.ShipRequestedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	o.Status = order.Status(status)
	o.CustomerID, o.ProductID, o.TemplateID = deref(customerID), deref(productID), deref(templateID)
	o.TrackingNumber = deref(tracking)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling items of order %q: %w", o.ID, err)
	}
	return o, nil
}
