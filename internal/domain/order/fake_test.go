package order

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/pod-ledger/internal/carrier"
	"github.com/xenking/pod-ledger/internal/domain/ledger"
	"github.com/xenking/pod-ledger/internal/domain/pricing"
)

// --- In-memory store ---

// memDB serializes transactions with txMu, which stands in for row locks.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	orders    map[string]Order
	customers map[string]Customer
	accounts  map[string]ledger.Account
	entries   []ledger.Entry
	seq       map[string]int
	// staleSeq makes NextSequence hand out an already used value this many
	// times.
	staleSeq int
	// locks records row locks in acquisition order.
	locks []string
}

func (db *memDB) lock(row string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.locks = append(db.locks, row)
}

func (db *memDB) takeLocks() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := db.locks
	db.locks = nil
	return out
}

var (
	_ Store        = (*memDB)(nil)
	_ Tx           = (*memDB)(nil)
	_ Repository   = (*memOrders)(nil)
	_ ledger.Store = (*memAccounts)(nil)
)

func newMemDB(accts ...ledger.Account) *memDB {
	db := &memDB{
		orders:    make(map[string]Order),
		customers: make(map[string]Customer),
		accounts:  make(map[string]ledger.Account),
		seq:       make(map[string]int),
	}
	for _, a := range accts {
		db.accounts[a.ID] = a
	}
	return db
}

func (db *memDB) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	orders, customers, accounts := maps.Clone(db.orders), maps.Clone(db.customers), maps.Clone(db.accounts)
	entries, seq := len(db.entries), maps.Clone(db.seq)
	db.mu.Unlock()

	if err := fn(ctx, db); err != nil {
		db.mu.Lock()
		db.orders, db.customers, db.accounts = orders, customers, accounts
		db.entries, db.seq = db.entries[:entries], seq
		db.mu.Unlock()
		return err
	}
	return nil
}

func (db *memDB) InLedgerTx(ctx context.Context, fn func(ctx context.Context, s ledger.Store) error) error {
	return db.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return fn(ctx, tx.Accounts())
	})
}

func (db *memDB) Orders() Repository            { return &memOrders{db} }
func (db *memDB) Customers() CustomerRepository { return &memCustomers{db} }
func (db *memDB) Accounts() ledger.Store        { return &memAccounts{db} }

func (db *memDB) order(id string) Order {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.orders[id]
}

func (db *memDB) account(id string) ledger.Account {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.accounts[id]
}

func (db *memDB) put(o Order) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.orders[o.ID] = o
}

type memOrders struct{ db *memDB }

func (r *memOrders) Create(_ context.Context, o *Order) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.orders {
		if existing.Number == o.Number {
			return ErrDuplicateNumber
		}
	}
	r.db.orders[o.ID] = *o
	return nil
}

func (r *memOrders) Get(_ context.Context, id string) (*Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (r *memOrders) GetForUpdate(ctx context.Context, id string) (*Order, error) {
	r.db.lock("order:" + id)
	return r.Get(ctx, id)
}

func (r *memOrders) GetByTrackingForUpdate(_ context.Context, tracking string) (*Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, o := range r.db.orders {
		if o.TrackingNumber == tracking {
			r.db.locks = append(r.db.locks, "order:"+o.ID)
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memOrders) Save(_ context.Context, o *Order) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.orders[o.ID]; !ok {
		return ErrNotFound
	}
	r.db.orders[o.ID] = *o
	return nil
}

func (r *memOrders) MarkReordered(_ context.Context, ids []string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, id := range ids {
		o := r.db.orders[id]
		o.IsReordered = true
		r.db.orders[id] = o
	}
	return nil
}

func (r *memOrders) CountBySeller(_ context.Context, sellerID string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, o := range r.db.orders {
		if o.SellerID == sellerID {
			n++
		}
	}
	return n, nil
}

func (r *memOrders) ListSyncCandidates(_ context.Context, limit int, syncedBefore time.Time) ([]Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []Order
	for _, o := range r.db.orders {
		if o.TrackingNumber == "" || o.Status.Terminal() {
			continue
		}
		if o.LastSyncedAt != nil && o.LastSyncedAt.After(syncedBefore) {
			continue
		}
		out = append(out, o)
	}
	slices.SortFunc(out, func(a, b Order) int {
		return cmp.Compare(syncedUnix(a), syncedUnix(b))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func syncedUnix(o Order) int64 {
	if o.LastSyncedAt == nil {
		return 0
	}
	return o.LastSyncedAt.UnixNano()
}

func (r *memOrders) NextSequence(_ context.Context, period string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.staleSeq > 0 && r.db.seq[period] > 0 {
		r.db.staleSeq--
		return r.db.seq[period], nil
	}
	r.db.seq[period]++
	return r.db.seq[period], nil
}

type memCustomers struct{ db *memDB }

func (r *memCustomers) Upsert(_ context.Context, c *Customer, amount decimal.Decimal, at time.Time) (*Customer, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	key := c.SellerID + "|" + c.Phone
	cur, ok := r.db.customers[key]
	if !ok {
		cur = Customer{ID: "cust-" + c.Phone, SellerID: c.SellerID, Phone: c.Phone, TotalSpent: decimal.Zero}
	}
	cur.Name, cur.Email, cur.Address = c.Name, c.Email, c.Address
	cur.TotalOrders++
	cur.TotalSpent = cur.TotalSpent.Add(amount)
	cur.LastOrderDate = at
	r.db.customers[key] = cur
	return &cur, nil
}

type memAccounts struct{ db *memDB }

func (a *memAccounts) LockAccount(_ context.Context, id string) (*ledger.Account, error) {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	a.db.locks = append(a.db.locks, "account:"+id)
	acct, ok := a.db.accounts[id]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	return &acct, nil
}

func (a *memAccounts) AddBalance(_ context.Context, id string, delta decimal.Decimal) error {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	a.db.locks = append(a.db.locks, "account:"+id)
	acct := a.db.accounts[id]
	acct.Balance = acct.Balance.Add(delta)
	a.db.accounts[id] = acct
	return nil
}

func (a *memAccounts) AddPoints(_ context.Context, id string, delta int64) error {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	a.db.locks = append(a.db.locks, "account:"+id)
	acct := a.db.accounts[id]
	acct.Points += delta
	a.db.accounts[id] = acct
	return nil
}

func (a *memAccounts) MarkVerified(_ context.Context, id string) error {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	acct := a.db.accounts[id]
	acct.Verified = true
	a.db.accounts[id] = acct
	return nil
}

func (a *memAccounts) Record(_ context.Context, e ledger.Entry) error {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	a.db.entries = append(a.db.entries, e)
	return nil
}

// --- Catalog ---

type memCatalog struct {
	products  map[string]pricing.Product
	templates map[string]pricing.Template
	prices    map[string]decimal.Decimal
}

func (c *memCatalog) ProductsByIDs(_ context.Context, ids []string) ([]pricing.Product, error) {
	var out []pricing.Product
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *memCatalog) TemplatesByIDs(_ context.Context, ids []string) ([]pricing.Template, error) {
	var out []pricing.Template
	for _, id := range ids {
		if t, ok := c.templates[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *memCatalog) SellerPrices(_ context.Context, sellerID string, _ []string) (map[string]decimal.Decimal, error) {
	if sellerID != "seller" {
		return nil, nil
	}
	return c.prices, nil
}

// --- Carrier ---

type mockCarrier struct {
	mu       sync.Mutex
	created  []carrier.Parcel
	code     string
	status   string
	shipErr  error
	trackErr error
}

func (m *mockCarrier) CreateParcel(_ context.Context, p carrier.Parcel) (*carrier.Created, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shipErr != nil {
		return nil, m.shipErr
	}
	m.created = append(m.created, p)
	return &carrier.Created{TrackingCode: m.code, Payload: []byte(`{"ok":true}`)}, nil
}

func (m *mockCarrier) TrackParcel(_ context.Context, code string) (*carrier.Tracking, error) {
	if m.trackErr != nil {
		return nil, m.trackErr
	}
	return &carrier.Tracking{TrackingCode: code, Status: m.status}, nil
}
