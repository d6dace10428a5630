// Package main is the entry point for the blog CMS API server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main" package.
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (environment, optional .env file)
// 2. Create dependencies (logger, token verifier)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/service, etc.).
//
// WHY cmd/server/?
// The cmd/ directory is a Go convention for executable entry points. This
// project has two: cmd/server (this API) and cmd/devtoken (mints local
// development tokens).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sakif/quantfident-cms/internal/auth"
	"github.com/sakif/quantfident-cms/internal/config"
	"github.com/sakif/quantfident-cms/internal/logger"
	"github.com/sakif/quantfident-cms/internal/middleware"
	"github.com/sakif/quantfident-cms/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		// No logger yet: the log format itself comes from the config.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	log := logger.Setup(logger.Config{Format: cfg.LogFormat, Level: cfg.LogLevel})

	if len(cfg.AdminEmails()) == 0 {
		log.Warn("ADMIN_EMAIL is not set: nobody can be elevated to admin")
	}

	// === 3. DATABASE DIRECTORY ===
	// A SQLite file needs its directory to exist. Postgres URLs and
	// ":memory:" are left alone.
	if isSQLiteFile(cfg.DatabaseURL) {
		dbDir := filepath.Dir(cfg.DatabaseURL)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			log.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 4. TOKEN VERIFIER ===
	verifier, checkRevoked, err := buildVerifier(context.Background(), cfg, log)
	if err != nil {
		log.Error("failed to set up token verification", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 5. CREATE AND START THE SERVER ===
	srv, err := server.New(server.Config{
		Port:           cfg.Port,
		DatabaseURL:    cfg.DatabaseURL,
		AdminEmails:    cfg.AdminEmails(),
		CheckRevoked:   checkRevoked,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit: middleware.RateLimitConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		},
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, verifier, log)
	if err != nil {
		log.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// buildVerifier picks the token verifier for AUTH_PROVIDER and reports
// whether admin routes can ask for revocation checks.
//
// firebase: ID tokens checked by the Firebase Admin SDK. Revocation checks
// need a service account (FIREBASE_SERVICE_ACCOUNT_KEY); without one they
// are switched off with a warning rather than failing every admin request.
//
// local: HS256 tokens signed with LOCAL_AUTH_SECRET, minted by cmd/devtoken.
func buildVerifier(ctx context.Context, cfg *config.Config, log *slog.Logger) (auth.Verifier, bool, error) {
	switch cfg.AuthProvider {
	case config.AuthProviderLocal:
		log.Warn("AUTH_PROVIDER=local: tokens are self-signed, never use this in production")
		v, err := auth.NewLocalVerifier(cfg.LocalAuthSecret)
		return v, false, err

	case config.AuthProviderFirebase:
		var serviceAccount []byte
		checkRevoked := cfg.CheckRevoked
		if cfg.FirebaseServiceAccountJSON != "" {
			serviceAccount = []byte(cfg.FirebaseServiceAccountJSON)
		} else if checkRevoked {
			log.Warn("FIREBASE_SERVICE_ACCOUNT_KEY is not set: revocation checks disabled")
			checkRevoked = false
		}

		v, err := auth.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, serviceAccount)
		if err != nil {
			return nil, false, err
		}
		log.Info("verifying Firebase ID tokens",
			slog.String("project", cfg.FirebaseProjectID),
			slog.Bool("checkRevoked", checkRevoked),
		)
		return v, checkRevoked, nil

	default:
		return nil, false, fmt.Errorf("unknown auth provider %q", cfg.AuthProvider)
	}
}

func isSQLiteFile(dsn string) bool {
	lower := strings.ToLower(dsn)
	return dsn != ":memory:" &&
		!strings.HasPrefix(lower, "postgres://") &&
		!strings.HasPrefix(lower, "postgresql://") &&
		!strings.HasPrefix(lower, "file:")
}
