package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pod-ledger/internal/domain/ledger"
	"github.com/xenking/pod-ledger/internal/domain/order"
)

var (
	_ order.Store     = (*Store)(nil)
	_ ledger.TxRunner = (*Store)(nil)
	_ order.Tx        = (*txScope)(nil)
)

// Store opens read-committed transactions. Operations that must not race
// take row locks with SELECT ... FOR UPDATE.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a Store over pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Orders returns a repository running on the pool.
func (s *Store) Orders() order.Repository {
	return &OrderRepository{db: s.pool}
}

// InTx runs fn in a transaction, committing when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &txScope{tx: tx})
	})
}

// InLedgerTx implements ledger.TxRunner.
func (s *Store) InLedgerTx(ctx context.Context, fn func(ctx context.Context, st ledger.Store) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &AccountRepository{db: tx})
	})
}

type txScope struct {
	tx pgx.Tx
}

func (t *txScope) Orders() order.Repository            { return &OrderRepository{db: t.tx} }
func (t *txScope) Customers() order.CustomerRepository { return &CustomerRepository{db: t.tx} }
func (t *txScope) Accounts() ledger.Store              { return &AccountRepository{db: t.tx} }
