package ledger

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pod-ledger/internal/domain/pricing"
)

// Ledger implements balance and points operations.
type Ledger struct {
	runner   TxRunner
	settings pricing.SettingsProvider
}

// New creates a Ledger. runner is used by the operations that own their
// transaction (deposits, withdrawals, points exchange).
func New(runner TxRunner, settings pricing.SettingsProvider) *Ledger {
	return &Ledger{runner: runner, settings: settings}
}

// RequireActive locks the seller account and fails with
// ErrAccountNotActivated when it has not been verified yet.
func (l *Ledger) RequireActive(ctx context.Context, s Store, sellerID string) (*Account, error) {
	acct, err := s.LockAccount(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if !acct.Verified {
		return nil, ErrAccountNotActivated
	}
	return acct, nil
}

// Reserve debits amount from the seller when the balance covers it. On
// failure nothing is mutated.
func (l *Ledger) Reserve(ctx context.Context, s Store, sellerID string, amount decimal.Decimal, orderID string) error {
	return l.debit(ctx, s, sellerID, amount, EntryOrderDebit, orderID)
}

// Credit adds amount to the seller balance.
func (l *Ledger) Credit(ctx context.Context, s Store, sellerID string, amount decimal.Decimal, kind EntryKind, orderID string) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	if err := s.AddBalance(ctx, sellerID, amount); err != nil {
		return errors.Wrap(err, "add balance")
	}
	return s.Record(ctx, Entry{UserID: sellerID, Kind: kind, Amount: amount, OrderID: orderID})
}

// AwardPoints adds points to the user.
func (l *Ledger) AwardPoints(ctx context.Context, s Store, userID string, points int64, kind EntryKind, orderID string) error {
	if points <= 0 {
		return nil
	}
	if err := s.AddPoints(ctx, userID, points); err != nil {
		return errors.Wrap(err, "add points")
	}
	return s.Record(ctx, Entry{UserID: userID, Kind: kind, Points: points, OrderID: orderID})
}

// AwardOrderPoints grants the per-order points to the seller and, when
// orderCount shows this is the seller's first order, the one-time referral
// bonus to the referrer. orderCount must include the order being created.
func (l *Ledger) AwardOrderPoints(ctx context.Context, s Store, acct *Account, orderID string, orderCount int) error {
	cfg, err := l.settings.Settings(ctx)
	if err != nil {
		return errors.Wrap(err, "load settings")
	}
	if err := l.AwardPoints(ctx, s, acct.ID, cfg.PointsPerOrder, EntryPointsAward, orderID); err != nil {
		return err
	}
	if acct.ReferredBy == "" || orderCount != 1 {
		return nil
	}
	return l.AwardPoints(ctx, s, acct.ReferredBy, cfg.ReferralPointsReferrer, EntryReferralBonus, orderID)
}

// Exchange is the outcome of a points exchange.
type Exchange struct {
	Points  int64
	Amount  decimal.Decimal
	Balance decimal.Decimal
	Left    int64
}

// ExchangePoints converts points into balance at the fixed rate.
func (l *Ledger) ExchangePoints(ctx context.Context, userID string, points int64) (*Exchange, error) {
	if points <= 0 || points%PointsExchangeUnit != 0 {
		return nil, ErrPointsNotMultiple
	}
	amount := decimal.NewFromInt(points / PointsExchangeUnit * PointsExchangeValue)

	var out *Exchange
	err := l.runner.InLedgerTx(ctx, func(ctx context.Context, s Store) error {
		acct, err := s.LockAccount(ctx, userID)
		if err != nil {
			return err
		}
		if acct.Points < points {
			return &InsufficientPointsError{Requested: points, Available: acct.Points}
		}
		if err := s.AddPoints(ctx, userID, -points); err != nil {
			return errors.Wrap(err, "add points")
		}
		if err := s.AddBalance(ctx, userID, amount); err != nil {
			return errors.Wrap(err, "add balance")
		}
		if err := s.Record(ctx, Entry{UserID: userID, Kind: EntryPointsExchange, Amount: amount, Points: -points}); err != nil {
			return err
		}
		out = &Exchange{
			Points:  points,
			Amount:  amount,
			Balance: acct.Balance.Add(amount),
			Left:    acct.Points - points,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Deposit credits a validated deposit and activates the account.
func (l *Ledger) Deposit(ctx context.Context, userID string, amount decimal.Decimal) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	return l.runner.InLedgerTx(ctx, func(ctx context.Context, s Store) error {
		acct, err := s.LockAccount(ctx, userID)
		if err != nil {
			return err
		}
		if !acct.Verified {
			if err := s.MarkVerified(ctx, userID); err != nil {
				return errors.Wrap(err, "mark verified")
			}
		}
		return l.Credit(ctx, s, userID, amount, EntryDeposit, "")
	})
}

// Withdraw debits a withdrawal request.
func (l *Ledger) Withdraw(ctx context.Context, userID string, amount decimal.Decimal) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	return l.runner.InLedgerTx(ctx, func(ctx context.Context, s Store) error {
		return l.debit(ctx, s, userID, amount, EntryWithdrawal, "")
	})
}

// RefundWithdrawal credits back a rejected withdrawal request.
func (l *Ledger) RefundWithdrawal(ctx context.Context, userID string, amount decimal.Decimal) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	return l.runner.InLedgerTx(ctx, func(ctx context.Context, s Store) error {
		return l.Credit(ctx, s, userID, amount, EntryWithdrawalRefund, "")
	})
}

// validAmount accepts positive amounts that fit the two-decimal money columns.
func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}

func (l *Ledger) debit(ctx context.Context, s Store, userID string, amount decimal.Decimal, kind EntryKind, orderID string) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	acct, err := s.LockAccount(ctx, userID)
	if err != nil {
		return err
	}
	if acct.Balance.LessThan(amount) {
		return &InsufficientBalanceError{Required: amount, Available: acct.Balance}
	}
	if amount.IsZero() {
		return nil
	}
	if err := s.AddBalance(ctx, userID, amount.Neg()); err != nil {
		return errors.Wrap(err, "add balance")
	}
	return s.Record(ctx, Entry{UserID: userID, Kind: kind, Amount: amount.Neg(), OrderID: orderID})
}
