// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/keyxmakerx/gatekeeper/internal/logging"
)

// Supported values for DB_DRIVER. The names match the database/sql driver
// registrations and the goose dialect names.
const (
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Supported values for AUTH_TYPE.
const (
	AuthNone         = "none"
	AuthBase         = "auth"
	AuthBasic        = "basic_auth"
	AuthSession      = "session_auth"
	AuthSessionExp   = "session_exp_auth"
	AuthSessionDB    = "session_db_auth"
	AuthSessionRedis = "session_redis_auth"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Host is the HTTP listen address (default: "0.0.0.0").
	Host string

	// Port is the HTTP listen port (default: 5000).
	Port int

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// RedactFields lists log attribute names whose values are masked.
	RedactFields []string

	// CORSOrigins lists origins allowed to call the API from a browser.
	// Empty disables CORS handling.
	CORSOrigins []string

	// TrustedProxies lists CIDRs whose forwarding headers are believed.
	TrustedProxies []string

	// Database holds relational store connection settings.
	Database DatabaseConfig

	// Redis holds Redis connection settings.
	Redis RedisConfig

	// Auth holds authentication-related settings.
	Auth AuthConfig
}

// DatabaseConfig holds connection parameters. Individual fields (Host, User,
// Password, Name) are read from separate env vars. If DATABASE_URL is set, it
// takes precedence over the individual fields.
type DatabaseConfig struct {
	// Driver selects the SQL backend: mysql, sqlite3 or pgx.
	Driver string

	// Host is the server address in host:port format. Ignored for sqlite3.
	Host string

	// User is the database username.
	User string

	// Password is the database password.
	Password string

	// Name is the database name, or the file path for sqlite3.
	Name string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	// MaxOpenConns is the maximum number of open connections in the pool.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int

	// ConnMaxLifetime is how long a connection can be reused.
	ConnMaxLifetime time.Duration
}

// DSN returns the driver-specific connection string. If DATABASE_URL was
// set, it is returned as-is.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	switch d.Driver {
	case DriverSQLite:
		return d.Name
	case DriverPostgres:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(d.User, d.Password),
			Host:     ensurePort(d.Host, "5432"),
			Path:     "/" + d.Name,
			RawQuery: "sslmode=disable",
		}
		return u.String()
	default:
		// Config.FormatDSN safely handles special characters in passwords.
		cfg := mysql.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = ensurePort(d.Host, "3306")
		cfg.DBName = d.Name
		cfg.ParseTime = true
		// Report matched rather than changed rows so updates that write
		// identical values are not mistaken for missing ids.
		cfg.ClientFoundRows = true
		return cfg.FormatDSN()
	}
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// Type selects the authenticator variant (AUTH_TYPE).
	Type string

	// SessionName is the name of the session cookie.
	SessionName string

	// SessionDuration is how long sessions last. Zero or less disables
	// expiration for the expiring variants.
	SessionDuration time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error for unknown driver or authenticator names.
func Load() (*Config, error) {
	cfg := &Config{
		Env:          getEnv("ENV", "development"),
		Host:         getEnv("API_HOST", "0.0.0.0"),
		Port:         getEnvInt("API_PORT", 5000),
		LogLevel:     getEnv("LOG_LEVEL", "debug"),
		RedactFields: getEnvList("LOG_REDACT_FIELDS", slices.Clone(logging.PIIFields)),

		CORSOrigins:    getEnvList("CORS_ORIGINS", nil),
		TrustedProxies: getEnvList("TRUSTED_PROXIES", []string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}),

		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", DriverSQLite),
			Host:            getEnv("DB_HOST", "localhost"),
			User:            getEnv("DB_USER", "gatekeeper"),
			Password:        getEnv("DB_PASSWORD", "gatekeeper"),
			Name:            getEnv("DB_NAME", "gatekeeper.db"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},

		Auth: AuthConfig{
			Type:            getEnv("AUTH_TYPE", AuthSession),
			SessionName:     getEnv("SESSION_NAME", "session_id"),
			SessionDuration: time.Duration(getEnvInt("SESSION_DURATION", 0)) * time.Second,
		},
	}

	switch cfg.Database.Driver {
	case DriverMySQL, DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}

	switch cfg.Auth.Type {
	case AuthNone, AuthBase, AuthBasic, AuthSession, AuthSessionExp, AuthSessionDB, AuthSessionRedis:
	default:
		return nil, fmt.Errorf("unsupported AUTH_TYPE %q", cfg.Auth.Type)
	}

	if cfg.Auth.SessionName == "" {
		return nil, fmt.Errorf("SESSION_NAME must not be empty")
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "5m") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvList reads a comma-separated env var or returns the default.
func getEnvList(key string, defaultVal []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
