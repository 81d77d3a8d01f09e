package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	EventStore EventStoreConfig
	Auth       AuthConfig
	SMTP       SMTPConfig
	Escalation EscalationConfig
	Legacy     LegacyConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// EventStoreConfig holds configuration for the EventStoreDB event bus.
type EventStoreConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	Insecure bool
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// SMTPConfig holds configuration for outbound status-change mail.
type SMTPConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Addr returns the host:port of the SMTP relay
func (c SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EscalationConfig holds configuration for the escalation sweeper.
type EscalationConfig struct {
	Enabled  bool
	Interval time.Duration
}

// LegacyConfig holds configuration for the legacy helpdesk import.
type LegacyConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Table    string
}

// Load reads configuration from the environment, with an optional .env file
func Load() (*Config, error) {
	// .env is a development convenience; absence is not an error
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("PORT", 8080),
			Env:  env("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     env("DB_HOST", "localhost"),
			Port:     envInt("DB_PORT", 5432),
			Name:     env("DB_NAME", "grievance"),
			User:     env("DB_USER", "grievance"),
			Password: env("DB_PASSWORD", "grievance"),
			SSLMode:  env("DB_SSLMODE", "disable"),
		},
		EventStore: EventStoreConfig{
			Enabled:  envBool("EVENTSTORE_ENABLED", false),
			Host:     env("EVENTSTORE_HOST", "localhost"),
			Port:     envInt("EVENTSTORE_PORT", 2113),
			Username: env("EVENTSTORE_USER", ""),
			Password: env("EVENTSTORE_PASSWORD", ""),
			Insecure: envBool("EVENTSTORE_INSECURE", true),
		},
		Auth: AuthConfig{
			JWTSecret: env("JWT_SECRET", "dev-secret-change-me"),
			Issuer:    env("JWT_ISSUER", "grievance-platform"),
		},
		SMTP: SMTPConfig{
			Enabled:  envBool("SMTP_ENABLED", false),
			Host:     env("SMTP_HOST", "localhost"),
			Port:     envInt("SMTP_PORT", 587),
			Username: env("SMTP_USER", ""),
			Password: env("SMTP_PASSWORD", ""),
			From:     env("SMTP_FROM", "no-reply@resolveit.local"),
		},
		Escalation: EscalationConfig{
			Enabled:  envBool("ESCALATION_ENABLED", true),
			Interval: envDuration("ESCALATION_INTERVAL", time.Hour),
		},
		Legacy: LegacyConfig{
			Enabled:  envBool("LEGACY_IMPORT_ENABLED", false),
			Host:     env("LEGACY_DB_HOST", "localhost"),
			Port:     envInt("LEGACY_DB_PORT", 1433),
			Database: env("LEGACY_DB_NAME", "helpdesk"),
			User:     env("LEGACY_DB_USER", "sa"),
			Password: env("LEGACY_DB_PASSWORD", ""),
			Table:    env("LEGACY_DB_TABLE", "dbo.Tickets"),
		},
	}

	if cfg.Server.Env == "production" && cfg.Auth.JWTSecret == "dev-secret-change-me" {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}

	return cfg, nil
}

func env(key, fallback string) string {
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

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
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
