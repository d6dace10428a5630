package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/quantfident-cms/internal/apperror"
	"github.com/sakif/quantfident-cms/internal/auth"
	"github.com/sakif/quantfident-cms/internal/model"
)

// SessionHandler tells the frontend who the bearer of a token is.
//
// The browser signs in with the identity provider on its own and only ever
// hands us the resulting ID token. This endpoint is how the site turns that
// token into "who am I, and may I open the admin editor?".
type SessionHandler struct {
	gate   auth.Gate
	logger *slog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(gate auth.Gate, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{gate: gate, logger: logger}
}

type sessionResponse struct {
	User    *model.User `json:"user"`
	IsAdmin bool        `json:"isAdmin"`
}

// HandleSession verifies the caller's token and returns the local user.
//
// HTTP: GET /api/auth/session
// RESPONSE: 200 {"user": {...}, "isAdmin": true}
//
// Verification records a sign-in (login counter, last login) and applies
// admin elevation, exactly like any other authenticated call. Revocation is
// not checked here; RequireAdmin does that on the routes that mutate data.
func (h *SessionHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r)
	if !ok {
		writeError(w, r, apperror.Unauthorized(nil))
		return
	}

	user, err := h.gate.Verify(r.Context(), token, false)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		User:    user,
		IsAdmin: user.IsAdmin() && user.EmailVerified,
	})
}
