package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for order operations.
var (
	ErrNotFound           = errors.New("order not found")
	ErrForbidden          = errors.New("operation not allowed")
	ErrAlreadyShipped     = errors.New("order already has a tracking number")
	ErrReshippingDisabled = errors.New("reshipping is disabled for this order")
	ErrNotShipped         = errors.New("order has no tracking number")
	ErrShipInProgress     = errors.New("order is already being shipped")
	ErrInvalidStatus      = errors.New("status is required")
	// ErrDuplicateNumber is returned by repositories when an order number
	// is already taken.
	ErrDuplicateNumber = errors.New("order number already exists")
)

// ReorderConflictError rejects an item referencing an unusable source order.
type ReorderConflictError struct {
	Index   int
	OrderID string
	Reason  string
}

func (e *ReorderConflictError) Error() string {
	return fmt.Sprintf("item %d: cannot reorder from %s: %s", e.Index, e.OrderID, e.Reason)
}
