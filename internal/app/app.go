// Package app wires configuration, storage, domain services and the HTTP
// server of the API process.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/pod-ledger/internal/carrier"
	"github.com/xenking/pod-ledger/internal/domain/ledger"
	"github.com/xenking/pod-ledger/internal/domain/order"
	"github.com/xenking/pod-ledger/internal/domain/pricing"
	"github.com/xenking/pod-ledger/internal/handler"
	"github.com/xenking/pod-ledger/internal/reconcile"
	"github.com/xenking/pod-ledger/internal/storage/postgres"
	"github.com/xenking/pod-ledger/pkg/health"
	"github.com/xenking/pod-ledger/pkg/httpmiddleware"
)

const (
	serviceName = "pod-ledger"
	meterName   = "github.com/xenking/pod-ledger"
)

// Services is the domain layer built from a pool and configuration. The
// API server and the one-shot reconcile command share it.
type Services struct {
	Store   *postgres.Store
	Ledger  *ledger.Ledger
	Orders  *order.Service
	Carrier *carrier.Client
	Syncer  *reconcile.Syncer
	Metrics *handler.Metrics

	redis *redis.Client
}

// Close releases the Redis client, if any.
func (s *Services) Close() error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Close()
}

// NewServices builds the domain services on top of pool.
func NewServices(cfg *Config, pool *pgxpool.Pool, t httpmiddleware.Telemetry) (*Services, error) {
	meter := t.MeterProvider().Meter(meterName)
	orderMetrics, err := order.NewMetrics(meter)
	if err != nil {
		return nil, errors.Wrap(err, "order metrics")
	}
	syncMetrics, err := reconcile.NewMetrics(meter)
	if err != nil {
		return nil, errors.Wrap(err, "reconcile metrics")
	}
	handlerMetrics, err := handler.NewMetrics(meter)
	if err != nil {
		return nil, errors.Wrap(err, "handler metrics")
	}

	store := postgres.NewStore(pool)
	settings := pricing.NewCachedSettings(postgres.NewSettingsRepository(pool), cfg.SettingsTTL)
	resolver := pricing.NewResolver(postgres.NewCatalogRepository(pool), settings)
	led := ledger.New(store, settings)

	client := carrier.NewClient(carrier.Config{
		BaseURL:       cfg.Carrier.BaseURL,
		APIKey:        cfg.Carrier.APIKey,
		Timeout:       cfg.Carrier.Timeout,
		RatePerSecond: cfg.Carrier.RatePerSecond,
		Burst:         cfg.Carrier.Burst,
	},
		otelhttp.WithTracerProvider(t.TracerProvider()),
		otelhttp.WithMeterProvider(t.MeterProvider()),
	)
	orders := order.NewService(store, resolver, led, client, order.WithMetrics(orderMetrics))

	s := &Services{
		Store:   store,
		Ledger:  led,
		Orders:  orders,
		Carrier: client,
		Metrics: handlerMetrics,
	}

	var locker reconcile.Locker = reconcile.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		locker = reconcile.NewRedisLocker(s.redis)
	}
	s.Syncer = reconcile.NewSyncer(orders, client, locker, reconcile.Config{
		BatchLimit:  cfg.Sync.BatchLimit,
		Concurrency: cfg.Sync.Concurrency,
		MinAge:      cfg.Sync.MinAge,
		LockTTL:     cfg.Redis.LockTTL,
	}, syncMetrics)
	return s, nil
}

// Run creates all dependencies, starts the HTTP server and the
// reconciliation scheduler, and handles graceful shutdown.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))
	ctx = zctx.Base(ctx, lg)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	svc, err := NewServices(cfg, pool, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			lg.Warn("Close services", zap.Error(err))
		}
	}()

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))
	if cfg.Sync.Interval > 0 && cfg.Sync.MaxStaleness > 0 {
		healthSvc.AddLivenessCheck("reconcile", time.Second,
			reconcile.StalenessCheck(svc.Syncer, cfg.Sync.MaxStaleness))
	}
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	schedCtx, stopSched := context.WithCancel(ctx)
	defer stopSched()
	go reconcile.Schedule(schedCtx, svc.Syncer, cfg.Sync.Interval)

	h := handler.New(
		handler.Config{WebhookToken: cfg.Webhook.Token},
		svc.Orders, svc.Ledger, svc.Syncer, svc.Metrics,
	)
	authn := handler.NewAuthenticator(postgres.NewAPIKeyRepository(pool), []byte(cfg.APIKeyPepper))

	r := chi.NewRouter()
	r.Use(
		httpmiddleware.Labeler(),
		httpmiddleware.LogRequests(),
	)
	healthSvc.Mount(r)
	h.Mount(r, authn)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Ship and track wait on the carrier.
		WriteTimeout:   cfg.Carrier.Timeout + 10*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(r,
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.Instrument(serviceName, m),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
		),
	}

	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		stopSched()
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
