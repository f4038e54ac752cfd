package reconcile

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Schedule runs s every interval until ctx is done. A non-positive
// interval disables the schedule.
func Schedule(ctx context.Context, s *Syncer, interval time.Duration) {
	if interval <= 0 {
		return
	}
	lg := zctx.From(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := s.Run(ctx, Options{})
			switch {
			case err == nil, errors.Is(err, context.Canceled):
			case errors.Is(err, ErrRunInProgress):
				lg.Debug("Reconciliation skipped, another run holds the lock")
			default:
				lg.Error("Reconciliation run failed", zap.Error(err))
			}
		}
	}
}

// StalenessCheck fails when no run finished within maxAge after the first
// grace period. It is meant for the liveness probe.
func StalenessCheck(s *Syncer, maxAge time.Duration) func(context.Context) error {
	started := time.Now()
	return func(context.Context) error {
		last := s.LastRun()
		if last.IsZero() {
			if time.Since(started) > maxAge {
				return errors.Errorf("no reconciliation run since start %s ago", time.Since(started).Round(time.Second))
			}
			return nil
		}
		if age := time.Since(last); age > maxAge {
			return errors.Errorf("last reconciliation run %s ago", age.Round(time.Second))
		}
		return nil
	}
}
