// Package ledger moves money and points on seller accounts. Every mutation
// runs inside a caller-provided transaction and appends an entry row.
package ledger

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Points exchange rate: PointsExchangeUnit points buy PointsExchangeValue
// currency units.
const (
	PointsExchangeUnit  = 1000
	PointsExchangeValue = 100
)

// Sentinel errors for account operations.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountNotActivated = errors.New("account not activated: fund an initial deposit before placing orders")
	ErrInvalidAmount       = errors.New("amount must be greater than 0 with at most 2 decimal places")
	ErrPointsNotMultiple   = fmt.Errorf("points must be a positive multiple of %d", PointsExchangeUnit)
)

// InsufficientBalanceError is returned when a debit exceeds the balance.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %s, available %s",
		e.Required.StringFixed(2), e.Available.StringFixed(2))
}

// InsufficientPointsError is returned when an exchange exceeds the points balance.
type InsufficientPointsError struct {
	Requested int64
	Available int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: requested %d, available %d", e.Requested, e.Available)
}

// Account is the monetary state of a seller.
type Account struct {
	ID       string
	Balance  decimal.Decimal
	Points   int64
	Verified bool
	// ReferredBy is the id of the referring user, empty when none.
	ReferredBy string
}

// EntryKind classifies ledger entries.
type EntryKind string

const (
	EntryOrderDebit       EntryKind = "order_debit"
	EntryDeliveryCredit   EntryKind = "delivery_credit"
	EntryDeposit          EntryKind = "deposit"
	EntryWithdrawal       EntryKind = "withdrawal"
	EntryWithdrawalRefund EntryKind = "withdrawal_refund"
	EntryPointsAward      EntryKind = "points_award"
	EntryReferralBonus    EntryKind = "referral_bonus"
	EntryPointsExchange   EntryKind = "points_exchange"
)

// Entry is an immutable record of one balance or points movement. Amount
// and Points are signed.
type Entry struct {
	UserID  string
	Kind    EntryKind
	Amount  decimal.Decimal
	Points  int64
	OrderID string
}

// Store is a transaction-scoped view of accounts. Increments are applied
// atomically by the store (UPDATE ... SET balance = balance + $1).
type Store interface {
	// LockAccount reads the account and holds a row lock until the
	// transaction ends.
	LockAccount(ctx context.Context, id string) (*Account, error)
	AddBalance(ctx context.Context, id string, delta decimal.Decimal) error
	AddPoints(ctx context.Context, id string, delta int64) error
	MarkVerified(ctx context.Context, id string) error
	Record(ctx context.Context, e Entry) error
}

// TxRunner runs fn in a transaction; fn's error rolls everything back.
type TxRunner interface {
	InLedgerTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}
