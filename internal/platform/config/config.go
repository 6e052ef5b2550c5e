package config

import (
	"os"
	"strconv"
	"time"
)

// Config aggregates all service configuration. FromEnv builds it from
// COMPLYD_* environment variables so main stays lean.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
	Auth     Auth
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Postgres captures the record and audit store connection. An empty URL
// selects the in-memory stores (dev and unit-test mode).
type Postgres struct {
	URL string
}

// Redis captures the dashboard cache connection. An empty URL disables
// caching.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures the audit outbox relay target. An empty broker list keeps
// audit events in the outbox table only.
type Kafka struct {
	Brokers      []string
	AuditTopic   string
	PollInterval time.Duration
}

// Auth captures actor token verification material.
type Auth struct {
	JWTSigningKey  string
	JWTIssuer      string
	AdminTokenHash string
}

// DashboardCacheTTL bounds staleness of cached dashboard aggregates.
var DashboardCacheTTL = 30 * time.Second

// FromEnv builds a Config from environment variables with development
// defaults.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            envOr("COMPLYD_ADDR", ":8080"),
			RequestTimeout:  envDuration("COMPLYD_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: envDuration("COMPLYD_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Postgres: Postgres{
			URL: os.Getenv("COMPLYD_POSTGRES_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("COMPLYD_REDIS_URL"),
			PoolSize:     envInt("COMPLYD_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("COMPLYD_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("COMPLYD_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("COMPLYD_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("COMPLYD_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:      splitNonEmpty(os.Getenv("COMPLYD_KAFKA_BROKERS")),
			AuditTopic:   envOr("COMPLYD_AUDIT_TOPIC", "complyd.audit"),
			PollInterval: envDuration("COMPLYD_OUTBOX_POLL_INTERVAL", time.Second),
		},
		Auth: Auth{
			// Default exists for development only; override in production.
			JWTSigningKey:  envOr("COMPLYD_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:      envOr("COMPLYD_JWT_ISSUER", "complyd"),
			AdminTokenHash: os.Getenv("COMPLYD_ADMIN_TOKEN_HASH"),
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

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if part := s[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
