package handler

// Every response body is JSON. Errors share one shape:
//
//	{"error": "not_found", "message": "post not found with id abc123"}
//
// "error" is a stable machine-readable type, "message" is safe to show a
// user. Internal details (SQL, file paths, verification failures) are only
// ever logged.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/quantfident-cms/internal/apperror"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON sends data as JSON with the given status code.
// Headers must be set before WriteHeader; after the body starts they are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Status is already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
// This is where domain errors (from the service layer) get translated to HTTP.
//
//	apperror.ErrValidation   → 400
//	apperror.ErrUnauthorized → 401 (message is always "authorization required")
//	apperror.ErrForbidden    → 403
//	apperror.ErrNotFound     → 404
//	apperror.ErrConflict     → 409
//	anything else            → 500 with a generic message
//
// errors.Is() UNWRAPPING:
// errors.Is(err, target) walks the entire error chain (via Unwrap())
// to see if `target` appears anywhere:
//
//	service returns: fmt.Errorf("creating post: %w", apperror.ValidationFailed(...))
//	which wraps:     AppError{Err: ErrValidation, Message: "..."}
//	errors.Is walks: outer error → AppError → ErrValidation ✓ match!
//
// The signature matches auth.ErrorWriter so the auth middleware renders its
// 401/403 responses through here too.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest // 400
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized // 401
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden // 403
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound // 404
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict // 409
			errorType = "conflict"
		}

		if status != http.StatusInternalServerError {
			if appErr.Cause != nil {
				slog.Debug("request rejected",
					slog.String("requestID", middleware.GetReqID(r.Context())),
					slog.String("type", errorType),
					slog.String("cause", appErr.Cause.Error()),
				)
			}
			writeJSON(w, status, ErrorResponse{
				Error:   errorType,
				Message: appErr.Message,
			})
			return
		}
	}

	// Anything unrecognised is a 500 with a generic message.
	slog.Error("request failed",
		slog.String("requestID", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// maxBodyBytes caps JSON request bodies. Post content is HTML from a rich
// text editor, so this is generous.
const maxBodyBytes = 2 << 20

// decodeJSON reads a JSON body into dst. Malformed JSON is a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ValidationFailed("body", "request body too large")
		}
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}

// WriteError is writeError for callers outside this package. The server
// hands it to the auth middleware so 401/403 bodies match every other error.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, err)
}
