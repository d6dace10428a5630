package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/quantfident-cms/internal/apperror"
	"github.com/sakif/quantfident-cms/internal/auth"
	"github.com/sakif/quantfident-cms/internal/metrics"
	"github.com/sakif/quantfident-cms/internal/model"
	"github.com/sakif/quantfident-cms/internal/repository"
)

// Forbidden messages, shown to the client as-is.
const (
	msgAdminRequired        = "Admin access required"
	msgVerificationRequired = "Email verification required"
)

// IdentityGate turns a bearer token into a local user and enforces admin
// access.
//
//	IdentityGate → auth.Verifier          (is the token genuine? who is it?)
//	             → repository.UserRepository (sign-in bookkeeping, elevation)
//
// ADMIN ELEVATION:
// There is no "make admin" endpoint. A user becomes ADMIN when they sign in
// with a verified email address that is on the configured admin list. The
// check runs on every verification, so adding an address to the list takes
// effect on that person's next request. Elevation is one-way: removing an
// address from the list does not demote anyone.
type IdentityGate struct {
	verifier     auth.Verifier
	users        repository.UserRepository
	adminEmails  map[string]struct{}
	checkRevoked bool
	logger       *slog.Logger
	now          func() time.Time
	metrics      metrics.Recorder
}

// NewIdentityGate creates an IdentityGate.
//
// adminEmails are matched case-insensitively. checkRevokedForAdmin controls
// whether RequireAdmin asks the verifier for a revocation check.
func NewIdentityGate(
	verifier auth.Verifier,
	users repository.UserRepository,
	adminEmails []string,
	checkRevokedForAdmin bool,
	logger *slog.Logger,
	opts ...Option,
) *IdentityGate {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	emails := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = normalizeEmail(e); e != "" {
			emails[e] = struct{}{}
		}
	}

	return &IdentityGate{
		verifier:     verifier,
		users:        users,
		adminEmails:  emails,
		checkRevoked: checkRevokedForAdmin,
		logger:       logger,
		now:          o.now,
		metrics:      o.metrics,
	}
}

// Verify validates token and records the sign-in.
//
// Steps:
//  1. The verifier checks the token (signature, claims, optionally revocation).
//  2. The local user is upserted: created on first sight, otherwise the login
//     counter and last-login time move forward and the profile is refreshed.
//  3. If the verified email is an admin address, the user is elevated.
//
// Token problems are returned as apperror.ErrUnauthorized. Anything else (the
// certificate endpoint is down, the database failed) is returned as a plain
// wrapped error and becomes a 500: it says nothing about the caller's token.
func (g *IdentityGate) Verify(ctx context.Context, token string, checkRevoked bool) (*model.User, error) {
	user, err := g.verify(ctx, token, checkRevoked)
	if err != nil {
		return nil, err
	}
	g.metrics.RecordVerification(metrics.OutcomeOK)
	return user, nil
}

// RequireAdmin verifies token and admits only verified administrators.
//
//	invalid token             → apperror.ErrUnauthorized (401)
//	role != ADMIN             → apperror.ErrForbidden    (403)
//	email not verified        → apperror.ErrForbidden    (403)
//
// Each call records exactly one verification outcome.
func (g *IdentityGate) RequireAdmin(ctx context.Context, token string) (*model.User, error) {
	user, err := g.verify(ctx, token, g.checkRevoked)
	if err != nil {
		return nil, err
	}

	if !user.IsAdmin() {
		g.metrics.RecordVerification(metrics.OutcomeForbidden)
		return nil, apperror.Forbidden(msgAdminRequired)
	}
	if !user.EmailVerified {
		g.metrics.RecordVerification(metrics.OutcomeForbidden)
		return nil, apperror.Forbidden(msgVerificationRequired)
	}

	g.metrics.RecordVerification(metrics.OutcomeOK)
	return user, nil
}

// verify does the work of Verify. It records an outcome only on failure;
// success is recorded by the caller, which may still turn the user away.
func (g *IdentityGate) verify(ctx context.Context, token string, checkRevoked bool) (*model.User, error) {
	if token == "" {
		g.metrics.RecordVerification(metrics.OutcomeInvalidToken)
		return nil, apperror.Unauthorized(auth.ErrInvalidToken)
	}

	identity, err := g.verifier.Verify(ctx, token, checkRevoked)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			g.metrics.RecordVerification(metrics.OutcomeInvalidToken)
			g.logger.Debug("token rejected", slog.String("reason", err.Error()))
			return nil, apperror.Unauthorized(err)
		}
		g.metrics.RecordVerification(metrics.OutcomeError)
		g.logger.Error("token verification failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("verifying token: %w", err)
	}

	user, err := g.users.UpsertLogin(ctx, *identity, g.now())
	if err != nil {
		g.metrics.RecordVerification(metrics.OutcomeError)
		g.logger.Error("failed to record sign-in",
			slog.String("uid", identity.UID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("recording sign-in: %w", err)
	}

	if g.shouldElevate(user, identity) {
		if err := g.users.PromoteToAdmin(ctx, user.ID); err != nil {
			g.metrics.RecordVerification(metrics.OutcomeError)
			g.logger.Error("failed to elevate admin",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("elevating user %s: %w", user.ID, err)
		}
		user.Role = model.RoleAdmin
		g.metrics.RecordAdminElevation()
		g.logger.Info("user elevated to admin",
			slog.String("userID", user.ID),
			slog.String("email", user.Email),
		)
	}

	return user, nil
}

// IsAdminEmail reports whether email is on the configured admin list.
func (g *IdentityGate) IsAdminEmail(email string) bool {
	_, ok := g.adminEmails[normalizeEmail(email)]
	return ok
}

func (g *IdentityGate) shouldElevate(user *model.User, identity *model.Identity) bool {
	return !user.IsAdmin() && identity.EmailVerified && g.IsAdminEmail(identity.Email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// compile-time check that *IdentityGate satisfies the middleware's contract
var _ auth.Gate = (*IdentityGate)(nil)
