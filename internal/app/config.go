package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (POD_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string        `usage:"PostgreSQL connection URL (POD_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string        `usage:"HMAC pepper for API key hashing (POD_API_KEY_PEPPER)" flag:"api-key-pepper"`
	SettingsTTL  time.Duration `default:"1m" usage:"How long platform settings are cached" flag:"settings-ttl"`
	Carrier      CarrierConfig
	Webhook      WebhookConfig
	Sync         SyncConfig
	Redis        RedisConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// CarrierConfig points at the EliteSpeed API.
type CarrierConfig struct {
	BaseURL       string        `default:"https://api.elitespeed.ma/v1" usage:"Carrier API base URL"`
	APIKey        string        `usage:"Carrier API key"`
	Timeout       time.Duration `default:"15s" usage:"Per-request carrier timeout"`
	RatePerSecond float64       `default:"5" usage:"Outbound carrier requests per second (0 disables)"`
	Burst         int           `default:"5" usage:"Outbound carrier burst"`
}

// WebhookConfig secures the carrier webhook.
type WebhookConfig struct {
	Token string `usage:"Shared secret expected in X-Webhook-Token or ?token= (empty disables the check)"`
}

// SyncConfig controls the background reconciliation job.
type SyncConfig struct {
	Interval    time.Duration `default:"15m" usage:"Reconciliation interval (0 disables the scheduler)"`
	BatchLimit  int           `default:"200" usage:"Maximum orders polled per run"`
	Concurrency int           `default:"4" usage:"Concurrent carrier calls per run"`
	MinAge      time.Duration `default:"10m" usage:"Skip orders synced more recently unless forced" flag:"sync-min-age"`
	// MaxStaleness fails the liveness probe when no run finished for this
	// long. Zero disables the check.
	MaxStaleness time.Duration `default:"2h" usage:"Liveness fails when the last run is older" flag:"sync-max-staleness"`
	// Force only affects the one-shot reconcile command.
	Force bool `default:"false" usage:"Poll every order regardless of sync-min-age" flag:"sync-force"`
}

// RedisConfig enables the cross-replica reconciliation lock.
type RedisConfig struct {
	Addr     string        `usage:"Redis address; empty uses an in-process lock"`
	Password string        `usage:"Redis password"`
	DB       int           `default:"0" usage:"Redis database"`
	LockTTL  time.Duration `default:"10m" usage:"Reconciliation lock TTL" flag:"redis-lock-ttl"`
}

// RateLimitConfig controls the per-client token buckets.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Requests a client may burst"`
	Window time.Duration `default:"1m"  usage:"Time to refill an empty bucket"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "POD",
		Files:     []string{"config.yaml", "/etc/pod/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set POD_DATABASE_URL or DATABASE_URL")
	case c.APIKeyPepper == "":
		return errors.New("api key pepper is required: set POD_API_KEY_PEPPER")
	case c.Carrier.BaseURL == "":
		return errors.New("carrier base URL is required")
	case c.Sync.BatchLimit <= 0:
		return errors.Errorf("sync batch limit must be positive, got %d", c.Sync.BatchLimit)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided DATABASE_URL and PORT to the
// POD_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
