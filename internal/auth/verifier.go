// Package auth verifies the ID tokens that front-end clients send as
// "Authorization: Bearer <token>".
//
// IDENTITY FLOW OVERVIEW:
// 1. The browser signs in with the identity provider (Firebase Authentication)
//    and receives a short-lived ID token (an RS256-signed JWT).
// 2. Every write request carries that token in the Authorization header.
// 3. A Verifier checks the signature and claims and returns the Identity
//    the token asserts: uid, email, email_verified, display name, photo.
// 4. The service layer (service.IdentityGate) turns that Identity into a
//    local user record and decides whether the user may act as an admin.
//
// This package knows nothing about users, roles or the database. It answers
// exactly one question: "is this token genuine, and who does it say you are?"
//
// Two implementations are provided:
//   - FirebaseVerifier: production. Built on the Firebase Admin SDK, which
//     checks tokens against Google's published signing certificates and can
//     look the user up to catch revoked sessions and disabled accounts.
//   - LocalVerifier: development and tests. HS256 tokens signed with a shared
//     secret, minted by cmd/devtoken.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/sakif/quantfident-cms/internal/model"
)

// Verifier validates a raw ID token.
//
// checkRevoked asks the verifier to also confirm the token has not been
// revoked since it was issued. That needs a network round trip, so callers
// only request it where it matters (admin operations).
type Verifier interface {
	Verify(ctx context.Context, token string, checkRevoked bool) (*model.Identity, error)
}

// Sentinel errors.
//
// Every reason to reject a token wraps ErrInvalidToken, so callers can make a
// single errors.Is(err, ErrInvalidToken) check to tell "bad token" (401) apart
// from "could not check the token" (500, e.g. the certificate endpoint is down).
var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrTokenRevoked = fmt.Errorf("%w: token has been revoked", ErrInvalidToken)
	ErrUserDisabled = fmt.Errorf("%w: user account is disabled", ErrInvalidToken)
	ErrUserNotFound = fmt.Errorf("%w: no user for token subject", ErrInvalidToken)
)

// invalid wraps a reason under ErrInvalidToken.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidToken}, args...)...)
}
