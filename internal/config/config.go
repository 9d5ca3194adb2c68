package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the engine needs at process start. Values come
// from the environment, optionally seeded from a .env file.
type Config struct {
	RPCEndpoints []string
	WSEndpoint   string

	DatabasePath  string
	TelegramToken string

	// Outbound RPC calls per second across the whole process.
	RateLimit int

	PollInterval  time.Duration
	OrderInterval time.Duration

	// Default compute unit price in micro-lamports, used where a policy
	// does not carry its own gas settings.
	ComputeUnitPrice uint64

	LogLevel string
}

// Load reads configuration from the environment. A missing .env file is not
// an error; missing RPC endpoints are.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath:     envOr("DATABASE_PATH", "pump_copy.db"),
		TelegramToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		WSEndpoint:       os.Getenv("SOLANA_WS_ENDPOINT"),
		RateLimit:        envInt("RPC_RATE_LIMIT", 3),
		PollInterval:     envDuration("POLL_INTERVAL", 5*time.Second),
		OrderInterval:    envDuration("LIMIT_ORDER_INTERVAL", 15*time.Second),
		ComputeUnitPrice: uint64(envInt("COMPUTE_UNIT_PRICE", 100_000)),
		LogLevel:         envOr("LOG_LEVEL", "info"),
	}

	raw := envOr("SOLANA_RPC_ENDPOINTS", os.Getenv("RPC_ENDPOINT"))
	for _, ep := range strings.Split(raw, ",") {
		if ep = strings.TrimSpace(ep); ep != "" {
			cfg.RPCEndpoints = append(cfg.RPCEndpoints, ep)
		}
	}
	if len(cfg.RPCEndpoints) == 0 {
		return nil, fmt.Errorf("config: SOLANA_RPC_ENDPOINTS is not set")
	}
	if cfg.RateLimit <= 0 {
		return nil, fmt.Errorf("config: RPC_RATE_LIMIT must be positive, got %d", cfg.RateLimit)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
