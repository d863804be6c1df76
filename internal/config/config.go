package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrMissingJWTSecret is returned when JWT_SECRET is not set.
var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set")

// Config holds the application configuration.
type Config struct {
	ServerPort int
	AppEnv     string

	DatabaseDriver string // "sqlite" or "pgx"
	DatabaseURL    string // file path for sqlite, connection string for pgx

	JWTSecret       string
	TokenTTL        time.Duration
	BcryptCost      int
	HashConcurrency int

	CORSAllowedOrigins []string

	AuditLogPath string // empty means stderr
	AuditBuffer  int

	SeedAdminEmail    string
	SeedAdminPassword string
	SeedDemoUsers     bool

	InactiveReportSchedule string // cron spec, empty disables the report

	LogLevel  string
	LogPretty bool
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load loads configuration from environment variables or sets defaults.
func Load() (*Config, error) {
	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return nil, err
	}
	ttl, err := getEnvDuration("TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	cost, err := getEnvInt("BCRYPT_COST", bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}
	hashConcurrency, err := getEnvInt("HASH_CONCURRENCY", runtime.NumCPU())
	if err != nil {
		return nil, err
	}
	if hashConcurrency < 1 {
		hashConcurrency = 1
	}
	auditBuffer, err := getEnvInt("AUDIT_BUFFER", 256)
	if err != nil {
		return nil, err
	}
	seedDemo, err := getEnvBool("SEED_DEMO_USERS", false)
	if err != nil {
		return nil, err
	}
	logPretty, err := getEnvBool("LOG_PRETTY", false)
	if err != nil {
		return nil, err
	}

	driver := getEnv("DATABASE_DRIVER", "sqlite")
	if driver != "sqlite" && driver != "pgx" {
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", driver)
	}

	secret := getEnv("JWT_SECRET", "")
	if secret == "" {
		return nil, ErrMissingJWTSecret
	}

	return &Config{
		ServerPort:             port,
		AppEnv:                 getEnv("APP_ENV", "development"),
		DatabaseDriver:         driver,
		DatabaseURL:            getEnv("DATABASE_URL", "./accounts.db"),
		JWTSecret:              secret,
		TokenTTL:               ttl,
		BcryptCost:             cost,
		HashConcurrency:        hashConcurrency,
		CORSAllowedOrigins:     splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		AuditLogPath:           getEnv("AUDIT_LOG_PATH", ""),
		AuditBuffer:            auditBuffer,
		SeedAdminEmail:         getEnv("SEED_ADMIN_EMAIL", "admin@example.com"),
		SeedAdminPassword:      getEnv("SEED_ADMIN_PASSWORD", ""),
		SeedDemoUsers:          seedDemo,
		InactiveReportSchedule: getEnv("INACTIVE_REPORT_SCHEDULE", "@daily"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogPretty:              logPretty,
	}, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
