// Command reconcile runs a single carrier reconciliation pass and exits.
package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/xenking/pod-ledger/internal/app"
	"github.com/xenking/pod-ledger/internal/reconcile"
	"github.com/xenking/pod-ledger/internal/storage/postgres"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := appkg.LoadConfig()
		if err != nil {
			return err
		}

		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		svc, err := appkg.NewServices(cfg, pool, m)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		sum, err := svc.Syncer.Run(ctx, reconcile.Options{
			Limit: cfg.Sync.BatchLimit,
			Force: cfg.Sync.Force,
		})
		if err != nil {
			return errors.Wrap(err, "reconcile")
		}

		lg.Info("Reconciliation finished",
			zap.Int("scanned", sum.Scanned),
			zap.Int("updated", sum.Updated),
			zap.Int("unchanged", sum.Unchanged),
			zap.Int("failed", sum.Failed),
			zap.Duration("duration", sum.FinishedAt.Sub(sum.StartedAt)),
		)
		for _, f := range sum.Failures {
			lg.Warn("Order not reconciled",
				zap.String("order_number", f.OrderNumber),
				zap.String("tracking_code", f.TrackingCode),
				zap.String("error", f.Error),
			)
		}
		return nil
	})
}
