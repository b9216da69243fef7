// Package config loads process configuration from the environment.
package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Empty DATABASE_URL runs the server on the in-memory store
	// (development only; nothing persists).
	DatabaseURL string `env:"DATABASE_URL"`

	// Empty REDIS_URL disables the product cache.
	RedisURL string        `env:"REDIS_URL"`
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"30s"`

	JWTSecret     string        `env:"JWT_SECRET"`
	JWTExpiration time.Duration `env:"JWT_EXPIRATION" envDefault:"24h"`

	// Wallet balance granted to every new registration.
	InitialWalletBalance string `env:"INITIAL_WALLET_BALANCE" envDefault:"10000"`
}

// MustLoad reads .env (if present) and the environment, exiting on
// malformed values.
func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	return cfg
}
