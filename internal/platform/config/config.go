package config

import (
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	id "safemint/pkg/domain"
)

// Server captures process-level configuration for the ledger service.
type Server struct {
	Addr          string
	JWTSigningKey string

	// Fee schedule applied to future operations; admins can change these at
	// runtime through the admin endpoints.
	ProjectPrice   *big.Int
	AuditPrice     *big.Int
	ChallengePrice *big.Int

	// Custody accounts holding escrowed fees.
	RegistryCustody id.Account
	AuditCustody    id.Account

	DatabaseURL  string
	KafkaBrokers []string
	KafkaTopic   string
	EventBuffer  int

	Redis RedisConfig
}

// RedisConfig holds connection tuning for the optional Redis-backed role store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("SAFEMINT_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	cfg := Server{
		Addr:            addr,
		JWTSigningKey:   jwtSigningKey,
		ProjectPrice:    amountFromEnv("SAFEMINT_PROJECT_PRICE", id.Units(100)),
		AuditPrice:      amountFromEnv("SAFEMINT_AUDIT_PRICE", id.Units(10)),
		ChallengePrice:  amountFromEnv("SAFEMINT_CHALLENGE_PRICE", id.Units(10)),
		RegistryCustody: id.Account(envOr("SAFEMINT_REGISTRY_CUSTODY", "custody:registry")),
		AuditCustody:    id.Account(envOr("SAFEMINT_AUDIT_CUSTODY", "custody:audit")),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		KafkaTopic:      envOr("KAFKA_EVENTS_TOPIC", "safemint.ledger.events"),
		EventBuffer:     intFromEnv("SAFEMINT_EVENT_BUFFER", 0),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intFromEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: intFromEnv("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intFromEnv(key string, fallback int) int {
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

// amountFromEnv reads a base-unit token amount, keeping the fallback on any
// malformed value rather than failing startup.
func amountFromEnv(key string, fallback *big.Int) *big.Int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	amount, ok := id.ParseAmount(v)
	if !ok {
		return fallback
	}
	return amount
}
