package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/sakif/quantfident-cms/internal/model"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. If you use a plain string like
// context.WithValue(ctx, "user", u), ANY package that knows the string "user"
// can read or shadow your value. Using a package-private type prevents collisions:
// only THIS package can create a key of type contextKey.
type contextKey string

const userKey contextKey = "user"

// Gate is the part of service.IdentityGate the middleware needs. Declaring it
// here keeps auth free of a dependency on the service package.
type Gate interface {
	Verify(ctx context.Context, token string, checkRevoked bool) (*model.User, error)
	RequireAdmin(ctx context.Context, token string) (*model.User, error)
}

// ErrorWriter renders a gate error as an HTTP response. The handler package
// supplies one so error bodies look the same everywhere.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// RequireAdmin is a middleware that admits only verified administrators.
//
// It reads the bearer token, runs it through gate.RequireAdmin and stores the
// resulting user in the request context. A missing or invalid token is a 401,
// a valid token for a non-admin is a 403; both stop the chain.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware is a function that takes an http.Handler and returns a new
// http.Handler. The new handler "wraps" the original:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... do stuff before the handler ...
//	        next.ServeHTTP(w, r)
//	    })
//	}
func RequireAdmin(gate Gate, writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, _ := BearerToken(r)

			user, err := gate.RequireAdmin(r.Context(), token)
			if err != nil {
				writeErr(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// AdminIfPresent lets anonymous requests through untouched, but once a caller
// presents a token it must belong to an admin.
//
// Used on GET /posts/{id}: readers see published posts without signing in,
// while the admin editor loads drafts with its token. A bad token is an
// error rather than a silent downgrade to anonymous, so the editor notices
// an expired session instead of getting a confusing 404.
func AdminIfPresent(gate Gate, writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			user, err := gate.RequireAdmin(r.Context(), token)
			if err != nil {
				writeErr(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext retrieves the authenticated user from the request context.
//
// Returns (nil, false) if the request is anonymous.
//
// Usage in handlers:
//
//	user, ok := auth.UserFromContext(r.Context())
//	if !ok {
//	    // anonymous reader
//	}
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
//
// The scheme is matched case-insensitively. Anything else (no header, another
// scheme, an empty token) reports ok=false and is treated as "no token".
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
