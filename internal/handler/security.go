package handler

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pod-ledger/internal/domain/auth"
	"github.com/xenking/pod-ledger/internal/domain/order"
	"github.com/xenking/pod-ledger/pkg/httpmiddleware"
)

type actorKey struct{}

// ActorFromContext returns the authenticated caller.
func ActorFromContext(ctx context.Context) (order.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(order.Actor)
	return a, ok
}

// WithActor stores a in ctx.
func WithActor(ctx context.Context, a order.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// Authenticator resolves the X-API-Key header to an order.Actor using
// HMAC-SHA256 hashed keys.
type Authenticator struct {
	keys   auth.Repository
	pepper []byte
}

// NewAuthenticator creates an Authenticator over the key repository.
func NewAuthenticator(keys auth.Repository, pepper []byte) *Authenticator {
	return &Authenticator{keys: keys, pepper: pepper}
}

// Authenticate returns the actor owning raw.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (order.Actor, error) {
	if raw == "" {
		return order.Actor{}, auth.ErrUnknownKey
	}
	hexHash := auth.HashKey(a.pepper, raw)
	info, err := a.keys.FindByHash(ctx, hexHash)
	if err != nil {
		return order.Actor{}, err
	}

	// The lookup is by value, so re-check the stored hash in constant time.
	want, _ := hex.DecodeString(hexHash)
	got, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(want, got) != 1 {
		return order.Actor{}, auth.ErrUnknownKey
	}
	return order.Actor{
		ID:         info.UserID,
		Privileged: info.HasScope(auth.ScopeManageOrders),
	}, nil
}

// Middleware rejects requests without a valid key with 401 and stores the
// actor in the request context otherwise.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, err := a.Authenticate(ctx, r.Header.Get(httpmiddleware.APIKeyHeader))
		if err != nil {
			if !errors.Is(err, auth.ErrUnknownKey) {
				zctx.From(ctx).Error("API key lookup failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal", "internal server error")
				return
			}
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid api key")
			return
		}
		ctx = zctx.With(ctx, zap.String("actor_id", actor.ID))
		next.ServeHTTP(w, r.WithContext(WithActor(ctx, actor)))
	})
}

func requirePrivileged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a, ok := ActorFromContext(r.Context()); !ok || !a.Privileged {
			writeError(w, http.StatusForbidden, "forbidden", "operation not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actorOf(r *http.Request) order.Actor {
	a, _ := ActorFromContext(r.Context())
	return a
}
