// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string
	JWTSigningKey  string
	AdminTokenHash string
}

// Postgres captures connection settings for the two database pools: the
// session document store (pgx) and the audit/approval stores (database/sql).
type Postgres struct {
	DSN string
}

// RedisConfig captures go-redis client settings. An empty URL disables
// Redis and the service falls back to in-memory locks and broadcast.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures the notification publisher settings. Empty brokers
// disable Kafka publishing; the coordinator still emits events internally.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Workflow captures coordinator tunables.
type Workflow struct {
	StepLockTTL time.Duration
}

// Config is the full runtime configuration.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    RedisConfig
	Kafka    Kafka
	Workflow Workflow
}

// FromEnv builds a Config from environment variables, with development
// defaults for everything except secrets.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:           envOr("SCREENFLOW_ADDR", ":8080"),
			JWTSigningKey:  envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			AdminTokenHash: os.Getenv("ADMIN_TOKEN_HASH"),
		},
		Postgres: Postgres{
			DSN: os.Getenv("POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOr("KAFKA_NOTIFY_TOPIC", "screenflow.notifications"),
		},
		Workflow: Workflow{
			StepLockTTL: envDuration("STEP_LOCK_TTL", 30*time.Minute),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
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

func splitNonEmpty(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
