// Package handler exposes the order engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pod-ledger/internal/domain/ledger"
	"github.com/xenking/pod-ledger/internal/domain/order"
	"github.com/xenking/pod-ledger/internal/reconcile"
)

const (
	defaultMaxBodyBytes = 64 << 10
	// maxLoggedBody bounds how much of a rejected webhook body is logged.
	maxLoggedBody = 2 << 10
)

// Orders is the order orchestrator.
type Orders interface {
	CreateFromProduct(ctx context.Context, req order.CreateRequest) (*order.Order, error)
	CreateFromTemplate(ctx context.Context, req order.CreateRequest) (*order.Order, error)
	Get(ctx context.Context, actor order.Actor, id string) (*order.Order, error)
	UpdateStatus(ctx context.Context, actor order.Actor, id string, status order.Status) (*order.StatusUpdate, error)
	Ship(ctx context.Context, actor order.Actor, id, note string) (*order.ShipResult, error)
	Track(ctx context.Context, actor order.Actor, id string) (*order.TrackResult, error)
	ToggleReshipping(ctx context.Context, actor order.Actor, id string) (bool, error)
	ApplyCarrierStatus(ctx context.Context, source, trackingNumber, raw string) (*order.StatusUpdate, error)
}

// Wallet moves seller funds outside of orders.
type Wallet interface {
	ExchangePoints(ctx context.Context, userID string, points int64) (*ledger.Exchange, error)
	Deposit(ctx context.Context, userID string, amount decimal.Decimal) error
	Withdraw(ctx context.Context, userID string, amount decimal.Decimal) error
	RefundWithdrawal(ctx context.Context, userID string, amount decimal.Decimal) error
}

// Reconciler runs a carrier reconciliation pass.
type Reconciler interface {
	Run(ctx context.Context, opts reconcile.Options) (*reconcile.Summary, error)
}

var (
	_ Orders     = (*order.Service)(nil)
	_ Wallet     = (*ledger.Ledger)(nil)
	_ Reconciler = (*reconcile.Syncer)(nil)
)

type walletFunc func(ctx context.Context, userID string, amount decimal.Decimal) error

// Config holds non-dependency handler settings.
type Config struct {
	// WebhookToken is the shared secret the carrier sends with webhooks.
	// Empty disables the check.
	WebhookToken string
	// MaxBodyBytes caps request bodies. Defaults to 64 KiB.
	MaxBodyBytes int64
}

// Handler serves the HTTP API.
type Handler struct {
	orders     Orders
	wallet     Wallet
	reconciler Reconciler
	metrics    *Metrics

	webhookToken string
	maxBody      int64
}

// New constructs a Handler. A nil m records nothing.
func New(cfg Config, orders Orders, wallet Wallet, reconciler Reconciler, m *Metrics) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if m == nil {
		m = noopMetrics()
	}
	return &Handler{
		orders:       orders,
		wallet:       wallet,
		reconciler:   reconciler,
		metrics:      m,
		webhookToken: cfg.WebhookToken,
		maxBody:      cfg.MaxBodyBytes,
	}
}

// Mount registers every route on r. Everything except the carrier webhook
// requires an API key.
func (h *Handler) Mount(r chi.Router, authn *Authenticator) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/webhooks/elitespeed", h.carrierWebhook)

		r.Group(func(r chi.Router) {
			r.Use(authn.Middleware)

			r.Route("/orders", func(r chi.Router) {
				r.Post("/product", h.createFromProduct)
				r.Post("/template", h.createFromTemplate)
				r.Route("/{orderID}", func(r chi.Router) {
					r.Get("/", h.getOrder)
					r.Patch("/status", h.updateStatus)
					r.Post("/ship", h.ship)
					r.Get("/track", h.track)
					r.Post("/reshipping/toggle", h.toggleReshipping)
				})
			})

			r.Post("/points/exchange", h.exchangePoints)
			r.Post("/wallet/withdrawals", h.withdraw)

			r.Route("/admin", func(r chi.Router) {
				r.Use(requirePrivileged)
				r.Post("/sync", h.runSync)
				r.Post("/users/{userID}/deposits", h.deposit)
				r.Post("/users/{userID}/withdrawals/refund", h.refundWithdrawal)
			})
		})
	})
}

// decode reads a JSON body into v, rejecting unknown fields.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return errors.Wrap(err, "decode body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
