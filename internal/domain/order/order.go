package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/pod-ledger/internal/domain/ledger"
)

// Order is a funded seller order. It is never deleted.
type Order struct {
	ID         string
	Number     string
	SellerID   string
	CustomerID string
	ProductID  string
	TemplateID string
	Items      []Item
	// UnitPrice is the production cost debited from the seller.
	UnitPrice decimal.Decimal
	// TotalAmount is collected from the customer on delivery and credited
	// to the seller once the order is paid.
	TotalAmount decimal.Decimal
	// Status holds the canonical status, or a verbatim value set by a
	// manual override.
	Status Status
	// ShippingStatus is the last raw carrier status.
	ShippingStatus  string
	TrackingNumber  string
	AllowReshipping bool
	IsReordered     bool
	WithPackaging   bool
	Recipient       Recipient
	Address         Address
	Note            string
	CreditedAt      *time.Time
	LastSyncedAt    *time.Time
	// ShipRequestedAt is set while a parcel creation is in flight.
	ShipRequestedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Item is a persisted order line.
type Item struct {
	ProductID          string          `json:"product_id,omitempty"`
	TemplateID         string          `json:"template_id,omitempty"`
	Name               string          `json:"name"`
	Color              string          `json:"color,omitempty"`
	Size               string          `json:"size,omitempty"`
	Quantity           int             `json:"quantity"`
	UnitCost           decimal.Decimal `json:"unit_cost"`
	ReorderFromOrderID string          `json:"reorder_from_order_id,omitempty"`
}

// Recipient is the end customer receiving the parcel.
type Recipient struct {
	Name  string
	Email string
	Phone string
}

// Address is a shipping address.
type Address struct {
	Street     string
	City       string
	PostalCode string
	Country    string
}

// Customer is a per-seller address book entry keyed by phone.
type Customer struct {
	ID            string
	SellerID      string
	Name          string
	Email         string
	Phone         string
	Address       Address
	TotalOrders   int
	TotalSpent    decimal.Decimal
	LastOrderDate time.Time
}

// Repository persists orders. Methods run on the connection or
// transaction they were obtained from.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// GetForUpdate reads the order and holds a row lock until the
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	GetByTrackingForUpdate(ctx context.Context, trackingNumber string) (*Order, error)
	// Save writes the mutable lifecycle fields.
	Save(ctx context.Context, o *Order) error
	MarkReordered(ctx context.Context, ids []string) error
	CountBySeller(ctx context.Context, sellerID string) (int, error)
	// ListSyncCandidates returns orders with a tracking number and a
	// non-terminal status, oldest sync first. Orders synced after
	// syncedBefore are skipped.
	ListSyncCandidates(ctx context.Context, limit int, syncedBefore time.Time) ([]Order, error)
	// NextSequence atomically increments and returns the counter of period.
	NextSequence(ctx context.Context, period string) (int, error)
}

// CustomerRepository persists customers.
type CustomerRepository interface {
	// Upsert creates or updates the customer of (sellerID, phone) and adds
	// one order of amount to its aggregates.
	Upsert(ctx context.Context, c *Customer, amount decimal.Decimal, at time.Time) (*Customer, error)
}

// Tx is a unit of work spanning orders, customers, and accounts.
type Tx interface {
	Orders() Repository
	Customers() CustomerRepository
	Accounts() ledger.Store
}

// Store opens transactions and serves reads outside of them.
type Store interface {
	Orders() Repository
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID string
	// Privileged is set for admins and holders of the manage-orders
	// capability.
	Privileged bool
}

func (a Actor) canAccess(o *Order) bool {
	return a.Privileged || (a.ID != "" && a.ID == o.SellerID)
}
