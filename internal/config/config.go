package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser      string
	DBPass      string
	DBHost      string
	DBPort      string
	DBName      string
	SSLMode     string
	RedisHost   string
	RedisPort   string
	NatsHost    string
	NatsPort    string
	ApiPort     string
	ApiEnabled  string
	BusProvider string
	ResetCron   string
}

// New loads and validates configuration from environment variables.
// HTTP server is optional: if QUOTALEDGER_API_ENABLED != "true", ApiAddr()
// returns an error and the HTTP server simply won't start. The bus provider
// may be "none" for single-instance deployments without NATS; events are
// then dropped and the audit mirror is not maintained.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:      os.Getenv("QUOTALEDGER_POSTGRES_USER"),
		DBPass:      os.Getenv("QUOTALEDGER_POSTGRES_PASSWORD"),
		DBHost:      os.Getenv("QUOTALEDGER_POSTGRES_HOST"),
		DBPort:      os.Getenv("QUOTALEDGER_POSTGRES_PORT"),
		DBName:      os.Getenv("QUOTALEDGER_POSTGRES_DB"),
		SSLMode:     os.Getenv("QUOTALEDGER_POSTGRES_SSLMODE"),
		RedisHost:   os.Getenv("QUOTALEDGER_REDIS_HOST"),
		RedisPort:   os.Getenv("QUOTALEDGER_REDIS_PORT"),
		NatsHost:    os.Getenv("QUOTALEDGER_NATS_HOST"),
		NatsPort:    os.Getenv("QUOTALEDGER_NATS_PORT"),
		ApiPort:     os.Getenv("QUOTALEDGER_API_PORT"),
		ApiEnabled:  os.Getenv("QUOTALEDGER_API_ENABLED"),
		BusProvider: os.Getenv("QUOTALEDGER_BUS_PROVIDER"),
		ResetCron:   os.Getenv("QUOTALEDGER_RESET_CRON"),
	}

	// Required: database
	if cfg.DBUser == "" || cfg.DBHost == "" || cfg.DBName == "" || cfg.SSLMode == "" {
		return nil, fmt.Errorf("missing required env for database: QUOTALEDGER_POSTGRES_USER/HOST/DB/SSLMODE")
	}

	// Required: redis
	if cfg.RedisHost == "" || cfg.RedisPort == "" {
		return nil, fmt.Errorf("missing required env for redis: QUOTALEDGER_REDIS_HOST/PORT")
	}

	// Required: bus provider
	if cfg.BusProvider == "" {
		return nil, fmt.Errorf("missing required env: QUOTALEDGER_BUS_PROVIDER (nats|none)")
	}
	if cfg.BusProvider != "nats" && cfg.BusProvider != "none" {
		return nil, fmt.Errorf("invalid bus provider %q, must be 'nats' or 'none'", cfg.BusProvider)
	}
	if cfg.BusProvider == "nats" && (cfg.NatsHost == "" || cfg.NatsPort == "") {
		return nil, fmt.Errorf("missing required env for nats bus: QUOTALEDGER_NATS_HOST/PORT")
	}

	// Optional: period reset cadence. Empty disables the in-process scheduler;
	// an external trigger can still run resets via the service.
	// Optional: HTTP API; ApiAddr() will return an error if not enabled.

	return cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName, c.SSLMode)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func (c *Config) NatsAddr() string {
	return fmt.Sprintf("nats://%s:%s", c.NatsHost, c.NatsPort)
}

// ApiAddr returns the HTTP listen address if the API is enabled.
// Returns an error if QUOTALEDGER_API_ENABLED != "true"; callers should
// skip starting the HTTP server.
func (c *Config) ApiAddr() (string, error) {
	if c.ApiEnabled == "true" {
		if c.ApiPort == "" {
			return "", fmt.Errorf("QUOTALEDGER_API_PORT is required when QUOTALEDGER_API_ENABLED=true")
		}
		return ":" + c.ApiPort, nil
	}
	return "", fmt.Errorf("HTTP API is disabled (QUOTALEDGER_API_ENABLED != true)")
}
