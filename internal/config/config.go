// Package config loads the server configuration from the environment.
//
// CONFIGURATION FLOW:
//
//	.env file (optional, development only) → process environment → Config
//
// Load runs once at startup in main.go. The resulting Config is treated as
// immutable and passed down to whatever needs it; nothing else in the
// program reads environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Auth providers accepted in AUTH_PROVIDER.
const (
	AuthProviderFirebase = "firebase"
	AuthProviderLocal    = "local"
)

// Config holds the application configuration.
type Config struct {
	// Server
	Port int

	// Database: a SQLite file path, ":memory:", or a postgres:// URL.
	DatabaseURL string

	// Admin list. AdminEmail is the owner; AdditionalAdminEmails come from a
	// comma-separated list.
	AdminEmail            string
	AdditionalAdminEmails []string

	// Identity
	AuthProvider               string
	FirebaseProjectID          string
	FirebaseServiceAccountJSON string // optional; enables revocation checks
	CheckRevoked               bool   // revocation check on admin routes
	LocalAuthSecret            string

	// HTTP
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	ShutdownTimeout    time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// AdminEmails returns the owner plus any additional admins.
func (c *Config) AdminEmails() []string {
	emails := make([]string, 0, 1+len(c.AdditionalAdminEmails))
	if c.AdminEmail != "" {
		emails = append(emails, c.AdminEmail)
	}
	return append(emails, c.AdditionalAdminEmails...)
}

// Load reads a .env file if one exists, then builds the Config from the
// environment. Variables already set in the environment win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:                       getEnvInt("PORT", 8080),
		DatabaseURL:                getEnvString("DATABASE_URL", "data/blog.db"),
		AdminEmail:                 strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdditionalAdminEmails:      getEnvList("ADDITIONAL_ADMIN_EMAILS"),
		AuthProvider:               strings.ToLower(getEnvString("AUTH_PROVIDER", AuthProviderFirebase)),
		FirebaseProjectID:          os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseServiceAccountJSON: os.Getenv("FIREBASE_SERVICE_ACCOUNT_KEY"),
		CheckRevoked:               getEnvBool("AUTH_CHECK_REVOKED", true),
		LocalAuthSecret:            os.Getenv("LOCAL_AUTH_SECRET"),
		CORSAllowedOrigins:         getEnvList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:               getEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:             getEnvInt("RATE_LIMIT_BURST", 30),
		ShutdownTimeout:            getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		LogLevel:                   strings.ToLower(getEnvString("LOG_LEVEL", "info")),
		LogFormat:                  strings.ToLower(getEnvString("LOG_FORMAT", "text")),
	}

	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"http://localhost:3000"}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate collects every problem so a misconfigured deploy fails once with
// the full list instead of one variable at a time.
func (c *Config) validate() error {
	var problems []string

	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT must be 1-65535, got %d", c.Port))
	}

	switch c.AuthProvider {
	case AuthProviderFirebase:
		if c.FirebaseProjectID == "" {
			problems = append(problems, "FIREBASE_PROJECT_ID is required when AUTH_PROVIDER=firebase")
		}
	case AuthProviderLocal:
		if len(c.LocalAuthSecret) < 16 {
			problems = append(problems, "LOCAL_AUTH_SECRET must be at least 16 characters when AUTH_PROVIDER=local")
		}
	default:
		problems = append(problems, fmt.Sprintf("AUTH_PROVIDER must be %q or %q, got %q",
			AuthProviderFirebase, AuthProviderLocal, c.AuthProvider))
	}

	if c.RateLimitRPS < 0 {
		problems = append(problems, "RATE_LIMIT_RPS must not be negative")
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		problems = append(problems, "RATE_LIMIT_BURST must be at least 1")
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList splits a comma-separated variable, dropping blank entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
