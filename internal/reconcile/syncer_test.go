package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pod-ledger/internal/carrier"
	"github.com/xenking/pod-ledger/internal/domain/order"
)

// --- Mock implementations ---

type mockOrders struct {
	mu        sync.Mutex
	orders    []order.Order
	gotLimit  int
	gotMinAge time.Duration
	applied   map[string]string
	applyErr  map[string]error
	listErr   error
}

func (m *mockOrders) SyncCandidates(_ context.Context, limit int, minAge time.Duration) ([]order.Order, error) {
	m.gotLimit, m.gotMinAge = limit, minAge
	if m.listErr != nil {
		return nil, m.listErr
	}
	if len(m.orders) > limit {
		return m.orders[:limit], nil
	}
	return m.orders, nil
}

func (m *mockOrders) ApplyCarrierStatus(_ context.Context, _, tracking, raw string) (*order.StatusUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.applyErr[tracking]; err != nil {
		return nil, err
	}
	if m.applied == nil {
		m.applied = make(map[string]string)
	}
	m.applied[tracking] = raw
	to, _ := order.Classify(raw)
	return &order.StatusUpdate{Change: order.Change{From: order.StatusShipped, To: to}}, nil
}

type mockTracker struct {
	statuses map[string]string
	errs     map[string]error
}

func (m *mockTracker) TrackParcel(_ context.Context, code string) (*carrier.Tracking, error) {
	if err := m.errs[code]; err != nil {
		return nil, err
	}
	return &carrier.Tracking{TrackingCode: code, Status: m.statuses[code]}, nil
}

func tracked(codes ...string) []order.Order {
	out := make([]order.Order, len(codes))
	for i, c := range codes {
		out[i] = order.Order{Number: "POD-" + c, TrackingNumber: c, Status: order.StatusShipped}
	}
	return out
}

// --- Tests ---

func TestRun_Summary(t *testing.T) {
	orders := &mockOrders{
		orders:   tracked("A", "B", "C", "D", "E"),
		applyErr: map[string]error{"E": order.ErrNotFound},
	}
	tracker := &mockTracker{
		statuses: map[string]string{
			"A": "Livré",
			"B": "En transit",
			"C": "",
			"E": "Retour",
		},
		errs: map[string]error{"D": errors.New("carrier timeout")},
	}
	s := NewSyncer(orders, tracker, nil, Config{BatchLimit: 50, Concurrency: 2, MinAge: time.Hour}, nil)

	sum, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Scanned)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 2, sum.Unchanged)
	assert.Equal(t, 2, sum.Failed)
	assert.Len(t, sum.Failures, 2)
	assert.Equal(t, time.Hour, orders.gotMinAge)
	assert.Equal(t, "Livré", orders.applied["A"])
	assert.False(t, s.LastRun().IsZero())
}

func TestRun_ForceAndLimit(t *testing.T) {
	orders := &mockOrders{orders: tracked("A", "B", "C")}
	s := NewSyncer(orders, &mockTracker{}, nil, Config{BatchLimit: 2, MinAge: time.Hour}, nil)

	sum, err := s.Run(context.Background(), Options{Limit: 10, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 2, orders.gotLimit)
	assert.Equal(t, time.Duration(0), orders.gotMinAge)
	assert.Equal(t, 2, sum.Scanned)

	_, err = s.Run(context.Background(), Options{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, orders.gotLimit)
}

func TestRun_ListFailure(t *testing.T) {
	orders := &mockOrders{listErr: errors.New("db down")}
	s := NewSyncer(orders, &mockTracker{}, nil, Config{}, nil)

	_, err := s.Run(context.Background(), Options{})
	require.Error(t, err)
	assert.True(t, s.LastRun().IsZero())
}

func TestRun_SingleFlight(t *testing.T) {
	locker := NewLocalLocker()
	unlock, ok, err := locker.TryLock(context.Background(), lockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	s := NewSyncer(&mockOrders{}, &mockTracker{}, locker, Config{}, nil)
	_, err = s.Run(context.Background(), Options{})
	require.ErrorIs(t, err, ErrRunInProgress)
	assert.False(t, s.LastRun().IsZero(), "a run held elsewhere counts as fresh")

	unlock()
	_, err = s.Run(context.Background(), Options{})
	require.NoError(t, err)
}

func TestStalenessCheck(t *testing.T) {
	s := NewSyncer(&mockOrders{}, &mockTracker{}, nil, Config{}, nil)
	check := StalenessCheck(s, time.Hour)
	require.NoError(t, check(context.Background()))

	s.lastRun.Store(time.Now().Add(-2 * time.Hour).UnixNano())
	require.Error(t, check(context.Background()))

	s.lastRun.Store(time.Now().UnixNano())
	require.NoError(t, check(context.Background()))
}

func TestSchedule_StopsOnCancel(t *testing.T) {
	orders := &mockOrders{orders: tracked("A")}
	s := NewSyncer(orders, &mockTracker{statuses: map[string]string{"A": "Livré"}}, nil, Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Schedule(ctx, s, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return !s.LastRun().IsZero() }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
