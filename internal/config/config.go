package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Credential store backends.
const (
	CredentialStoreFile  = "file"
	CredentialStoreRedis = "redis"
)

// Config holds the process configuration loaded from the environment.
type Config struct {
	Env            string
	APIBaseURL     string
	RequestTimeout time.Duration
	ListenAddr     string
	RunLocal       bool

	CredentialStore string
	CredentialFile  string
	CredentialKey   string
	RedisURL        string

	CheckoutTable     string
	CheckoutTTL       time.Duration
	ReconcileQueueURL string

	CloudWatchEnabled   bool
	CloudWatchNamespace string

	DeliveryFee       decimal.Decimal
	LogoutOnForbidden bool

	// WorkerAPIToken is the service credential the reconciliation worker
	// presents to the inventory API.
	WorkerAPIToken string
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:                 getEnv("APP_ENV", "development"),
		APIBaseURL:          getEnv("API_BASE_URL", "http://localhost:8080"),
		ListenAddr:          getEnv("LISTEN_ADDR", ":8000"),
		CredentialStore:     getEnv("CREDENTIAL_STORE", CredentialStoreFile),
		CredentialFile:      getEnv("CREDENTIAL_FILE", ".storefront-token"),
		CredentialKey:       getEnv("CREDENTIAL_KEY", "token"),
		RedisURL:            os.Getenv("REDIS_URL"),
		CheckoutTable:       os.Getenv("CHECKOUT_TABLE"),
		ReconcileQueueURL:   os.Getenv("RECONCILE_QUEUE_URL"),
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "Storefront"),
		WorkerAPIToken:      os.Getenv("WORKER_API_TOKEN"),
	}

	var err error
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return cfg, err
	}
	if cfg.CheckoutTTL, err = getDuration("CHECKOUT_TTL", 48*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.RunLocal, err = getBool("RUN_LOCAL", false); err != nil {
		return cfg, err
	}
	if cfg.CloudWatchEnabled, err = getBool("CLOUDWATCH_ENABLED", false); err != nil {
		return cfg, err
	}
	if cfg.LogoutOnForbidden, err = getBool("LOGOUT_ON_FORBIDDEN", true); err != nil {
		return cfg, err
	}

	fee := getEnv("DELIVERY_FEE", "9")
	if cfg.DeliveryFee, err = decimal.NewFromString(fee); err != nil {
		return cfg, fmt.Errorf("invalid DELIVERY_FEE %q: %w", fee, err)
	}
	if cfg.DeliveryFee.IsNegative() {
		return cfg, fmt.Errorf("invalid DELIVERY_FEE %q: must not be negative", fee)
	}

	if cfg.ReconcileQueueURL != "" && cfg.CheckoutTable == "" {
		return cfg, fmt.Errorf("RECONCILE_QUEUE_URL requires CHECKOUT_TABLE")
	}

	switch cfg.CredentialStore {
	case CredentialStoreFile:
	case CredentialStoreRedis:
		if cfg.RedisURL == "" {
			return cfg, fmt.Errorf("CREDENTIAL_STORE=redis requires REDIS_URL")
		}
	default:
		return cfg, fmt.Errorf("unknown CREDENTIAL_STORE %q", cfg.CredentialStore)
	}

	return cfg, nil
}

// IsProduction reports whether the process runs with production settings.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return b, nil
}
