package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/quantfident-cms/internal/model"
)

// localIssuer is the "iss" claim of every locally minted token.
const localIssuer = "quantfident-local"

// DefaultLocalTokenTTL matches the one-hour lifetime of Firebase ID tokens.
const DefaultLocalTokenTTL = time.Hour

// LocalVerifier issues and validates HS256 ID tokens signed with a shared
// secret. It stands in for Firebase in local development (AUTH_PROVIDER=local)
// and in tests, so the whole identity gate can run without network access.
//
// The claims deliberately mirror a Firebase ID token (sub, email,
// email_verified, name, picture, auth_time), which means everything
// downstream of the Verifier interface behaves identically for both.
//
// Signing algorithm: HS256 (HMAC-SHA256)
// - Symmetric: same key for signing and verifying
// - Never use this in production: anyone holding the secret can mint an
//   admin token for any email address.
type LocalVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewLocalVerifier creates a LocalVerifier with the given secret.
// Example: LOCAL_AUTH_SECRET=$(openssl rand -hex 32)
func NewLocalVerifier(secret string) (*LocalVerifier, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: local auth secret must be at least 16 characters")
	}
	return &LocalVerifier{secret: []byte(secret), now: time.Now}, nil
}

// localClaims is the JWT payload. It embeds jwt.RegisteredClaims which holds
// iss, sub, exp and iat; the rest match the Firebase claim names.
type localClaims struct {
	jwt.RegisteredClaims
	AuthTime      int64  `json:"auth_time"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Issue signs a token asserting identity, valid for ttl.
// identity.AuthTime defaults to now when zero.
func (v *LocalVerifier) Issue(identity model.Identity, ttl time.Duration) (string, error) {
	if identity.UID == "" {
		return "", errors.New("auth: identity UID is required")
	}

	now := v.now()
	authTime := identity.AuthTime
	if authTime.IsZero() {
		authTime = now
	}

	c := localClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    localIssuer,
		},
		AuthTime:      authTime.Unix(),
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
		Name:          identity.DisplayName,
		Picture:       identity.PhotoURL,
	}

	// jwt.NewWithClaims creates an unsigned token with the given algorithm.
	// SignedString(key) signs it and returns the complete JWT string.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Verify implements Verifier. Local tokens cannot be revoked, so checkRevoked
// is accepted and ignored.
//
// ALGORITHM CONFUSION ATTACK:
// Without checking the algorithm, an attacker could send a token signed with
// "none" and the library might accept it. Passing jwt.WithValidMethods prevents this.
func (v *LocalVerifier) Verify(_ context.Context, raw string, _ bool) (*model.Identity, error) {
	if raw == "" {
		return nil, invalid("empty token")
	}

	token, err := jwt.ParseWithClaims(
		raw,
		&localClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(localIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, invalid("token expired")
		}
		return nil, invalid("%v", err)
	}

	c, ok := token.Claims.(*localClaims)
	if !ok || !token.Valid {
		return nil, invalid("invalid token claims")
	}

	if c.Subject == "" {
		return nil, invalid("token has no subject")
	}

	return &model.Identity{
		UID:           c.Subject,
		Email:         c.Email,
		EmailVerified: c.EmailVerified,
		DisplayName:   c.Name,
		PhotoURL:      c.Picture,
		AuthTime:      time.Unix(c.AuthTime, 0),
	}, nil
}
