package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"namereg/internal/registry/models"
	"namereg/pkg/domain"
)

// Config captures everything main needs to wire the service.
type Config struct {
	Addr          string
	JWTSigningKey string

	// Optional backends. Empty means "not configured": the service falls
	// back to the in-memory store, the static oracle, and the log publisher.
	PostgresURL  string
	RedisURL     string
	KafkaBrokers []string
	KafkaTopic   string

	OracleURL      string
	OracleCacheTTL time.Duration

	// Registry construction parameters. TokenAddress is immutable after
	// construction; the rest are admin-mutable at runtime.
	Registry models.Params
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:           envOr("NAMEREG_ADDR", ":8080"),
		JWTSigningKey:  envOr("NAMEREG_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresURL:    os.Getenv("NAMEREG_POSTGRES_URL"),
		RedisURL:       os.Getenv("NAMEREG_REDIS_URL"),
		KafkaTopic:     envOr("NAMEREG_KAFKA_TOPIC", "namereg.events"),
		OracleURL:      os.Getenv("NAMEREG_ORACLE_URL"),
		OracleCacheTTL: envDuration("NAMEREG_ORACLE_CACHE_TTL", 30*time.Second),
		Registry: models.Params{
			TokenAddress: os.Getenv("NAMEREG_TOKEN_ADDRESS"),
			MinBalance:   envUint("NAMEREG_MIN_BALANCE", 0),
			Duration:     time.Duration(envUint("NAMEREG_DURATION_SECONDS", 31536000)) * time.Second,
			Label:        envOr("NAMEREG_LABEL", "reg"),
			Admin:        domain.Identity(os.Getenv("NAMEREG_ADMIN")),
		},
	}
	if brokers := os.Getenv("NAMEREG_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envUint(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
