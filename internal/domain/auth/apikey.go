// Package auth resolves API keys to the users acting on the API.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"github.com/go-faster/errors"
)

// ScopeManageOrders grants status overrides, reshipping toggles, shipping
// any order and manual reconciliation runs.
const ScopeManageOrders = "orders:manage"

// ErrUnknownKey is returned when no active key matches.
var ErrUnknownKey = errors.New("unknown api key")

// APIKeyInfo is a stored API key and the user it belongs to.
type APIKeyInfo struct {
	ID      string
	UserID  string
	KeyHash string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key carries scope.
func (k *APIKeyInfo) HasScope(scope string) bool {
	return slices.Contains(k.Scopes, scope)
}

// Repository looks up active API keys by their HMAC hash. Implementations
// return ErrUnknownKey when nothing matches.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// HashKey returns the hex HMAC-SHA256 of a raw key under pepper. Only the
// hash is ever stored.
func HashKey(pepper []byte, raw string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}
