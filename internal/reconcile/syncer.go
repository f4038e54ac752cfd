// Package reconcile polls the carrier for orders whose webhook may have
// been lost and applies the reported status.
package reconcile

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/pod-ledger/internal/carrier"
	"github.com/xenking/pod-ledger/internal/domain/order"
)

const lockKey = "pod:reconcile:run"

// ErrRunInProgress is returned when another run holds the lock.
var ErrRunInProgress = errors.New("reconciliation already running")

// Orders is the order side of a reconciliation run.
type Orders interface {
	SyncCandidates(ctx context.Context, limit int, minAge time.Duration) ([]order.Order, error)
	ApplyCarrierStatus(ctx context.Context, source, trackingNumber, raw string) (*order.StatusUpdate, error)
}

// Tracker fetches parcel status from the carrier.
type Tracker interface {
	TrackParcel(ctx context.Context, trackingCode string) (*carrier.Tracking, error)
}

// Config bounds a run.
type Config struct {
	// BatchLimit is the default and maximum number of orders per run.
	BatchLimit  int
	Concurrency int
	// MinAge skips orders synced more recently, unless a run is forced.
	MinAge  time.Duration
	LockTTL time.Duration
}

// Options are per-run parameters.
type Options struct {
	Limit int
	Force bool
}

// Failure is one order that could not be reconciled.
type Failure struct {
	OrderNumber  string `json:"order_number"`
	TrackingCode string `json:"tracking_code"`
	Error        string `json:"error"`
}

// Summary reports a run.
type Summary struct {
	Scanned    int       `json:"scanned"`
	Updated    int       `json:"updated"`
	Unchanged  int       `json:"unchanged"`
	Failed     int       `json:"failed"`
	Failures   []Failure `json:"failures,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Syncer runs reconciliation batches.
type Syncer struct {
	orders  Orders
	tracker Tracker
	locker  Locker
	cfg     Config
	metrics *Metrics
	now     func() time.Time

	lastRun atomic.Int64
}

// NewSyncer creates a Syncer. A nil locker serializes runs in-process.
func NewSyncer(orders Orders, tracker Tracker, locker Locker, cfg Config, m *Metrics) *Syncer {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 200
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if m == nil {
		m = noopMetrics()
	}
	return &Syncer{
		orders:  orders,
		tracker: tracker,
		locker:  locker,
		cfg:     cfg,
		metrics: m,
		now:     time.Now,
	}
}

// LastRun is the finish time of the last completed run, or the time a run
// was found in progress elsewhere. Zero if neither happened yet.
func (s *Syncer) LastRun() time.Time {
	v := s.lastRun.Load()
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v)
}

// Run polls the carrier for every open tracked order. Per-order failures
// are collected in the summary and never abort the batch.
func (s *Syncer) Run(ctx context.Context, opts Options) (*Summary, error) {
	unlock, ok, err := s.locker.TryLock(ctx, lockKey, s.cfg.LockTTL)
	if err != nil {
		return nil, errors.Wrap(err, "acquire lock")
	}
	if !ok {
		// Another replica is reconciling; that keeps the fleet fresh.
		s.lastRun.Store(s.now().UnixNano())
		return nil, ErrRunInProgress
	}
	defer unlock()

	limit := opts.Limit
	if limit <= 0 || limit > s.cfg.BatchLimit {
		limit = s.cfg.BatchLimit
	}
	minAge := s.cfg.MinAge
	if opts.Force {
		minAge = 0
	}

	sum := &Summary{StartedAt: s.now()}
	candidates, err := s.orders.SyncCandidates(ctx, limit, minAge)
	if err != nil {
		return nil, errors.Wrap(err, "list candidates")
	}
	sum.Scanned = len(candidates)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.Concurrency)
	for i := range candidates {
		o := &candidates[i]
		g.Go(func() error {
			changed, err := s.syncOne(ctx, o)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				sum.Failed++
				sum.Failures = append(sum.Failures, Failure{
					OrderNumber:  o.Number,
					TrackingCode: o.TrackingNumber,
					Error:        err.Error(),
				})
			case changed:
				sum.Updated++
			default:
				sum.Unchanged++
			}
			return nil
		})
	}
	_ = g.Wait()

	sum.FinishedAt = s.now()
	s.lastRun.Store(sum.FinishedAt.UnixNano())
	s.metrics.recordRun(ctx, sum)
	zctx.From(ctx).Info("Reconciliation finished",
		zap.Int("scanned", sum.Scanned),
		zap.Int("updated", sum.Updated),
		zap.Int("unchanged", sum.Unchanged),
		zap.Int("failed", sum.Failed),
		zap.Bool("force", opts.Force),
		zap.Duration("took", sum.FinishedAt.Sub(sum.StartedAt)),
	)
	return sum, ctx.Err()
}

func (s *Syncer) syncOne(ctx context.Context, o *order.Order) (bool, error) {
	lg := zctx.From(ctx).With(
		zap.String("order_number", o.Number),
		zap.String("tracking_code", o.TrackingNumber),
	)
	t, err := s.tracker.TrackParcel(ctx, o.TrackingNumber)
	if err != nil {
		lg.Warn("Tracking failed", zap.Error(err))
		return false, err
	}
	if t.Status == "" {
		lg.Warn("Tracking response without status", zap.ByteString("payload", clip(t.Payload)))
		return false, nil
	}
	upd, err := s.orders.ApplyCarrierStatus(ctx, order.SourcePoll, o.TrackingNumber, t.Status)
	if err != nil {
		lg.Warn("Apply status failed", zap.String("raw_status", t.Status), zap.Error(err))
		return false, err
	}
	return upd.Change.Changed(), nil
}

func clip(b []byte) []byte {
	const limit = 512
	if len(b) > limit {
		return b[:limit]
	}
	return b
}
