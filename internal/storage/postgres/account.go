package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/pod-ledger/internal/domain/ledger"
)

const (
	lockAccountSQL = `SELECT id, balance, points, is_verified, referred_by
		FROM users WHERE id = $1 FOR UPDATE`

	addBalanceSQL   = `UPDATE users SET balance = balance + $2 WHERE id = $1`
	addPointsSQL    = `UPDATE users SET points = points + $2 WHERE id = $1`
	markVerifiedSQL = `UPDATE users SET is_verified = TRUE WHERE id = $1`

	recordEntrySQL = `INSERT INTO ledger_entries (user_id, kind, amount, points, order_id)
		VALUES ($1, $2, $3, $4, $5)`
)

var _ ledger.Store = (*AccountRepository)(nil)

// AccountRepository implements ledger.Store. It must run inside a
// transaction for LockAccount to hold its lock.
type AccountRepository struct {
	db dbtx
}

// LockAccount implements ledger.Store.
func (r *AccountRepository) LockAccount(ctx context.Context, id string) (*ledger.Account, error) {
	var (
		a          ledger.Account
		referredBy *string
	)
	err := r.db.QueryRow(ctx, lockAccountSQL, id).Scan(&a.ID, &a.Balance, &a.Points, &a.Verified, &referredBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, fmt.Errorf("locking account %q: %w", id, err)
	}
	a.ReferredBy = deref(referredBy)
	return &a, nil
}

// AddBalance implements ledger.Store.
func (r *AccountRepository) AddBalance(ctx context.Context, id string, delta decimal.Decimal) error {
	return r.exec(ctx, addBalanceSQL, id, delta)
}

// AddPoints implements ledger.Store.
func (r *AccountRepository) AddPoints(ctx context.Context, id string, delta int64) error {
	return r.exec(ctx, addPointsSQL, id, delta)
}

// MarkVerified implements ledger.Store.
func (r *AccountRepository) MarkVerified(ctx context.Context, id string) error {
	return r.exec(ctx, markVerifiedSQL, id)
}

// Record implements ledger.Store.
func (r *AccountRepository) Record(ctx context.Context, e ledger.Entry) error {
	_, err := r.db.Exec(ctx, recordEntrySQL, e.UserID, string(e.Kind), e.Amount, e.Points, nullString(e.OrderID))
	if err != nil {
		return fmt.Errorf("recording %s entry for %q: %w", e.Kind, e.UserID, err)
	}
	return nil
}

func (r *AccountRepository) exec(ctx context.Context, sql, id string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("updating account %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}
