package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/pod-ledger/internal/domain/pricing"
)

const listSettingsSQL = `SELECT key, value FROM platform_settings WHERE key = ANY($1)`

var _ pricing.SettingsProvider = (*SettingsRepository)(nil)

// SettingsRepository reads platform settings. Missing or unparsable keys
// fall back to pricing.DefaultSettings.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository returns a SettingsRepository that uses the given pool.
func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// Settings implements pricing.SettingsProvider.
func (r *SettingsRepository) Settings(ctx context.Context) (pricing.Settings, error) {
	keys := []string{
		pricing.KeyPackagingPrice,
		pricing.KeyShippingHub,
		pricing.KeyShippingOther,
		pricing.KeyPointsPerOrder,
		pricing.KeyReferralPointsReferrer,
	}
	rows, err := r.pool.Query(ctx, listSettingsSQL, keys)
	if err != nil {
		return pricing.Settings{}, fmt.Errorf("listing settings: %w", err)
	}
	defer rows.Close()

	raw := make(map[string]string, len(keys))
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return pricing.Settings{}, fmt.Errorf("scanning setting: %w", err)
		}
		raw[k] = v
	}
	if err := rows.Err(); err != nil {
		return pricing.Settings{}, fmt.Errorf("listing settings: %w", err)
	}
	return parseSettings(ctx, raw), nil
}

func parseSettings(ctx context.Context, raw map[string]string) pricing.Settings {
	s := pricing.DefaultSettings()
	lg := zctx.From(ctx)

	money := func(key string, dst *decimal.Decimal) {
		v, ok := raw[key]
		if !ok {
			return
		}
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			lg.Warn("Invalid setting, using default", zap.String("key", key), zap.String("value", v))
			return
		}
		*dst = d
	}
	count := func(key string, dst *int64) {
		v, ok := raw[key]
		if !ok {
			return
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			lg.Warn("Invalid setting, using default", zap.String("key", key), zap.String("value", v))
			return
		}
		*dst = n
	}

	money(pricing.KeyPackagingPrice, &s.PackagingPrice)
	money(pricing.KeyShippingHub, &s.ShippingHub)
	money(pricing.KeyShippingOther, &s.ShippingOther)
	count(pricing.KeyPointsPerOrder, &s.PointsPerOrder)
	count(pricing.KeyReferralPointsReferrer, &s.ReferralPointsReferrer)
	return s
}
