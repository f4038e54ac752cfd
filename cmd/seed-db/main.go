package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pod-ledger/internal/domain/auth"
	"github.com/xenking/pod-ledger/internal/domain/pricing"
	"github.com/xenking/pod-ledger/internal/storage/postgres"
)

type catalogJSON struct {
	Users []struct {
		ID         string          `json:"id"`
		Name       string          `json:"name"`
		Balance    decimal.Decimal `json:"balance"`
		Points     int64           `json:"points"`
		Verified   bool            `json:"verified"`
		ReferredBy string          `json:"referred_by"`
	} `json:"users"`
	Products []struct {
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		BasePrice decimal.Decimal `json:"base_price"`
		Colors    []string        `json:"colors"`
		Sizes     []string        `json:"sizes"`
		Views     []struct {
			Key   string          `json:"key"`
			Price decimal.Decimal `json:"price"`
		} `json:"views"`
	} `json:"products"`
	Templates []struct {
		ID        string                     `json:"id"`
		OwnerID   string                     `json:"owner_id"`
		ProductID string                     `json:"product_id"`
		Name      string                     `json:"name"`
		Status    string                     `json:"status"`
		Colors    []string                   `json:"colors"`
		Sizes     []string                   `json:"sizes"`
		Design    map[string]json.RawMessage `json:"design"`
	} `json:"templates"`
	SellerPrices []struct {
		SellerID  string          `json:"seller_id"`
		ProductID string          `json:"product_id"`
		Price     decimal.Decimal `json:"price"`
	} `json:"seller_prices"`
	Settings map[string]string `json:"settings"`
}

type seedKey struct {
	raw    string
	userID string
	name   string
	scopes []string
}

func main() {
	var (
		databaseURL  string
		catalogFile  string
		sellerKey    string
		adminKey     string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.StringVar(&sellerKey, "seller-api-key", "", "API key for seller-1 (or POD_SEED_SELLER_KEY env)")
	flag.StringVar(&adminKey, "admin-api-key", "", "API key for the admin user (or POD_SEED_ADMIN_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or POD_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if sellerKey == "" {
		sellerKey = os.Getenv("POD_SEED_SELLER_KEY")
	}
	if adminKey == "" {
		adminKey = os.Getenv("POD_SEED_ADMIN_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("POD_API_KEY_PEPPER")
	}
	if apiKeyPepper == "" && (sellerKey != "" || adminKey != "") {
		slog.Error("api key pepper is required to seed keys: set --api-key-pepper or POD_API_KEY_PEPPER")
		os.Exit(1)
	}

	var keys []seedKey
	if sellerKey != "" {
		keys = append(keys, seedKey{raw: sellerKey, userID: "seller-1", name: "Seller test key"})
	}
	if adminKey != "" {
		keys = append(keys, seedKey{
			raw: adminKey, userID: "admin", name: "Admin test key",
			scopes: []string{auth.ScopeManageOrders},
		})
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, []byte(apiKeyPepper), keys); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile string, pepper []byte, keys []seedKey) error {
	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}
	var catalog catalogJSON
	if err := json.Unmarshal(data, &catalog); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	seeder := postgres.NewSeeder(pool)

	if err := seedUsers(ctx, seeder, &catalog); err != nil {
		return errors.Wrap(err, "seed users")
	}
	if err := seedCatalog(ctx, seeder, &catalog); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedSettings(ctx, seeder, catalog.Settings); err != nil {
		return errors.Wrap(err, "seed settings")
	}
	if err := seedAPIKeys(ctx, postgres.NewAPIKeyRepository(pool), pepper, keys); err != nil {
		return errors.Wrap(err, "seed api keys")
	}
	return nil
}

func seedUsers(ctx context.Context, seeder *postgres.Seeder, catalog *catalogJSON) error {
	slog.Info("upserting users", slog.Int("count", len(catalog.Users)))

	// Referrers first, so referred_by always points at an existing row.
	for pass := 0; pass < 2; pass++ {
		for _, u := range catalog.Users {
			if (u.ReferredBy == "") != (pass == 0) {
				continue
			}
			if err := seeder.UpsertUser(ctx, postgres.SeedUser{
				ID:         u.ID,
				Name:       u.Name,
				Balance:    u.Balance,
				Points:     u.Points,
				Verified:   u.Verified,
				ReferredBy: u.ReferredBy,
			}); err != nil {
				return err
			}
			slog.Info("upserted user", slog.String("id", u.ID), slog.String("name", u.Name))
		}
	}
	return nil
}

func seedCatalog(ctx context.Context, seeder *postgres.Seeder, catalog *catalogJSON) error {
	slog.Info("upserting products", slog.Int("count", len(catalog.Products)))

	for _, p := range catalog.Products {
		product := pricing.Product{
			ID:        p.ID,
			Name:      p.Name,
			BasePrice: p.BasePrice,
			Colors:    p.Colors,
			Sizes:     p.Sizes,
			IsActive:  true,
			InStock:   true,
		}
		for _, v := range p.Views {
			product.Views = append(product.Views, pricing.View{Key: v.Key, Price: v.Price})
		}
		if err := seeder.UpsertProduct(ctx, product); err != nil {
			return err
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	for _, t := range catalog.Templates {
		if err := seeder.UpsertTemplate(ctx, pricing.Template{
			ID:        t.ID,
			OwnerID:   t.OwnerID,
			ProductID: t.ProductID,
			Name:      t.Name,
			Status:    t.Status,
			Colors:    t.Colors,
			Sizes:     t.Sizes,
			Design:    t.Design,
		}); err != nil {
			return err
		}
		slog.Info("upserted template", slog.String("id", t.ID), slog.String("status", t.Status))
	}

	for _, sp := range catalog.SellerPrices {
		if err := seeder.UpsertSellerPrice(ctx, sp.SellerID, sp.ProductID, sp.Price); err != nil {
			return err
		}
		slog.Info("upserted seller price",
			slog.String("seller_id", sp.SellerID),
			slog.String("product_id", sp.ProductID),
			slog.String("price", sp.Price.StringFixed(2)),
		)
	}
	return nil
}

func seedSettings(ctx context.Context, seeder *postgres.Seeder, settings map[string]string) error {
	for k, v := range settings {
		if err := seeder.PutSetting(ctx, k, v); err != nil {
			return err
		}
		slog.Info("stored setting", slog.String("key", k), slog.String("value", v))
	}
	return nil
}

func seedAPIKeys(ctx context.Context, repo *postgres.APIKeyRepository, pepper []byte, keys []seedKey) error {
	for _, k := range keys {
		id, err := repo.Put(ctx, auth.APIKeyInfo{
			UserID:  k.userID,
			KeyHash: auth.HashKey(pepper, k.raw),
			Name:    k.name,
			Scopes:  k.scopes,
		})
		if err != nil {
			return errors.Wrapf(err, "put key for %s", k.userID)
		}
		slog.Info("upserted API key", slog.String("id", id), slog.String("user_id", k.userID), slog.String("name", k.name))
	}
	return nil
}
