package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; DATABASE_URL, the provider
// credentials, and the poll secret are required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Delivery provider
	ProviderDSN        string
	ProviderAPIKey     string
	ProviderTimeout    time.Duration
	ProviderRatePerSec int

	// Scheduler-facing ingestion
	PollSecret    string
	PollBatchSize int

	// Anti-detection pacing window applied before every provider send
	PacingMin time.Duration
	PacingMax time.Duration

	// Queue depth gauge refresh
	DepthInterval time.Duration
}

func Load() (*Config, error) {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	providerDSN := os.Getenv("PROVIDER_DSN")
	if providerDSN == "" {
		return nil, fmt.Errorf("PROVIDER_DSN is required")
	}
	providerKey := os.Getenv("PROVIDER_API_KEY")
	if providerKey == "" {
		return nil, fmt.Errorf("PROVIDER_API_KEY is required")
	}
	pollSecret := os.Getenv("POLL_SECRET")
	if pollSecret == "" {
		return nil, fmt.Errorf("POLL_SECRET is required")
	}

	cfg := &Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		ReadTimeout: getDuration("READ_TIMEOUT", 5*time.Second),
		// Task handling holds the connection through the pacing delay, so
		// the write timeout sits well above the pacing ceiling.
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		ProviderDSN:        providerDSN,
		ProviderAPIKey:     providerKey,
		ProviderTimeout:    getDuration("PROVIDER_TIMEOUT", 15*time.Second),
		ProviderRatePerSec: getInt("PROVIDER_RATE_PER_SEC", 5),

		PollSecret:    pollSecret,
		PollBatchSize: getInt("POLL_BATCH_SIZE", 10),

		PacingMin: getDuration("PACING_MIN", 10*time.Second),
		PacingMax: getDuration("PACING_MAX", 20*time.Second),

		DepthInterval: getDuration("DEPTH_INTERVAL", 15*time.Second),
	}

	if cfg.PacingMax < cfg.PacingMin {
		return nil, fmt.Errorf("PACING_MAX must be >= PACING_MIN")
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
