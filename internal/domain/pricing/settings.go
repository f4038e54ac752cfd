package pricing

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// Setting keys stored in the platform settings table.
const (
	KeyPackagingPrice         = "packaging_price"
	KeyShippingHub            = "shipping_casablanca"
	KeyShippingOther          = "shipping_other"
	KeyPointsPerOrder         = "points_per_order"
	KeyReferralPointsReferrer = "referral_points_referrer"
)

// DefaultHubCity is the city billed at the hub shipping rate.
const DefaultHubCity = "casablanca"

// Settings is the set of mutable platform values used by pricing and points.
type Settings struct {
	PackagingPrice         decimal.Decimal
	ShippingHub            decimal.Decimal
	ShippingOther          decimal.Decimal
	PointsPerOrder         int64
	ReferralPointsReferrer int64
	HubCity                string
}

// DefaultSettings returns the fallback values used when a key is missing.
func DefaultSettings() Settings {
	return Settings{
		PackagingPrice:         decimal.RequireFromString("5.00"),
		ShippingHub:            decimal.RequireFromString("20.00"),
		ShippingOther:          decimal.RequireFromString("35.00"),
		PointsPerOrder:         10,
		ReferralPointsReferrer: 100,
		HubCity:                DefaultHubCity,
	}
}

// SettingsProvider returns the current platform settings.
type SettingsProvider interface {
	Settings(ctx context.Context) (Settings, error)
}

// StaticSettings is a SettingsProvider returning fixed values.
type StaticSettings Settings

// Settings implements SettingsProvider.
func (s StaticSettings) Settings(context.Context) (Settings, error) {
	return Settings(s), nil
}

// CachedSettings wraps a provider and memoizes its result for a TTL.
type CachedSettings struct {
	next SettingsProvider
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	value   Settings
	expires time.Time
}

// NewCachedSettings creates a cache in front of next. A non-positive ttl
// disables caching.
func NewCachedSettings(next SettingsProvider, ttl time.Duration) *CachedSettings {
	return &CachedSettings{next: next, ttl: ttl, now: time.Now}
}

// Settings implements SettingsProvider.
func (c *CachedSettings) Settings(ctx context.Context) (Settings, error) {
	if c.ttl <= 0 {
		return c.next.Settings(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Before(c.expires) {
		return c.value, nil
	}
	s, err := c.next.Settings(ctx)
	if err != nil {
		return Settings{}, err
	}
	c.value = s
	c.expires = now.Add(c.ttl)
	return s, nil
}

// NormalizeCity trims and case-folds a city name for comparison.
func NormalizeCity(city string) string {
	// A Caser keeps state between calls, so one is created per call.
	return cases.Fold().String(strings.TrimSpace(city))
}

// ShippingFee selects the flat shipping rate for the destination city.
func (s Settings) ShippingFee(city string) decimal.Decimal {
	hub := s.HubCity
	if hub == "" {
		hub = DefaultHubCity
	}
	if NormalizeCity(city) == NormalizeCity(hub) {
		return s.ShippingHub
	}
	return s.ShippingOther
}
