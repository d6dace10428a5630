package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/quantfident-cms/internal/apperror"
	"github.com/sakif/quantfident-cms/internal/metrics"
	"github.com/sakif/quantfident-cms/internal/model"
)

const testAdminEmail = "Owner@QuantFident.com"

func newTestGate(t *testing.T, checkRevoked bool) (*IdentityGate, *fakeVerifier, *fakeUserRepo) {
	t.Helper()
	verifier := &fakeVerifier{identities: map[string]model.Identity{
		"admin-token": {
			UID: "uid-admin", Email: "owner@quantfident.com", EmailVerified: true, DisplayName: "Owner",
		},
		"admin-unverified-token": {
			UID: "uid-admin-2", Email: "owner@quantfident.com", EmailVerified: false,
		},
		"second-admin-token": {
			UID: "uid-admin-3", Email: "editor@quantfident.com", EmailVerified: true,
		},
		"reader-token": {
			UID: "uid-reader", Email: "reader@example.com", EmailVerified: true, DisplayName: "Reader",
		},
	}}
	users := newFakeUserRepo()
	clock := newTestClock()

	gate := NewIdentityGate(verifier, users,
		[]string{testAdminEmail, " editor@quantfident.com ", ""},
		checkRevoked, discardLogger(), WithClock(clock.Now))
	return gate, verifier, users
}

// =========================================================================
// VERIFY
// =========================================================================

func TestVerify_FirstSightingCreatesUser(t *testing.T) {
	gate, _, users := newTestGate(t, false)

	user, err := gate.Verify(context.Background(), "reader-token", false)
	require.NoError(t, err)

	assert.Equal(t, "uid-reader", user.FirebaseUID)
	assert.Equal(t, int64(1), user.TotalLogins)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.Len(t, users.byUID, 1)
}

func TestVerify_RepeatSightingCountsLogins(t *testing.T) {
	gate, _, users := newTestGate(t, false)

	first, err := gate.Verify(context.Background(), "reader-token", false)
	require.NoError(t, err)
	second, err := gate.Verify(context.Background(), "reader-token", false)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "one local record per external id")
	assert.Equal(t, int64(2), second.TotalLogins)
	assert.Len(t, users.byUID, 1)
}

func TestVerify_InvalidToken(t *testing.T) {
	gate, _, users := newTestGate(t, false)

	for _, token := range []string{"", "forged-token"} {
		_, err := gate.Verify(context.Background(), token, false)
		assert.True(t, errors.Is(err, apperror.ErrUnauthorized), "token %q: got %v", token, err)
	}
	assert.Empty(t, users.byUID, "rejected tokens must not create users")
}

func TestVerify_PassesRevocationFlag(t *testing.T) {
	gate, verifier, _ := newTestGate(t, false)

	_, err := gate.Verify(context.Background(), "reader-token", true)
	require.NoError(t, err)
	assert.True(t, verifier.lastRevoked)
}

func TestVerify_InfrastructureFailuresAreNotUnauthorized(t *testing.T) {
	t.Run("verifier outage", func(t *testing.T) {
		gate, _, _ := newTestGate(t, false)

		_, err := gate.Verify(context.Background(), "outage", false)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errOutage))
		assert.False(t, errors.Is(err, apperror.ErrUnauthorized))
	})

	t.Run("store failure", func(t *testing.T) {
		gate, _, users := newTestGate(t, false)
		users.failWith = errors.New("database is locked")

		_, err := gate.Verify(context.Background(), "reader-token", false)
		require.Error(t, err)
		assert.False(t, errors.Is(err, apperror.ErrUnauthorized))
	})
}

// =========================================================================
// ADMIN ELEVATION
// =========================================================================

func TestVerify_ElevatesConfiguredAdmin(t *testing.T) {
	gate, _, users := newTestGate(t, false)

	user, err := gate.Verify(context.Background(), "admin-token", false)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, user.Role)

	stored, err := users.GetUserByFirebaseUID(context.Background(), "uid-admin")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, stored.Role, "elevation must be persisted")
}

func TestVerify_ElevatesAdditionalAdmin(t *testing.T) {
	gate, _, _ := newTestGate(t, false)

	user, err := gate.Verify(context.Background(), "second-admin-token", false)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, user.Role)
}

func TestVerify_NoElevationWithoutVerifiedEmail(t *testing.T) {
	gate, _, _ := newTestGate(t, false)

	user, err := gate.Verify(context.Background(), "admin-unverified-token", false)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, user.Role)
}

func TestVerify_NoElevationForOtherEmails(t *testing.T) {
	gate, _, _ := newTestGate(t, false)

	user, err := gate.Verify(context.Background(), "reader-token", false)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, user.Role)
}

func TestIsAdminEmail(t *testing.T) {
	gate, _, _ := newTestGate(t, false)

	tests := []struct {
		email string
		want  bool
	}{
		{"owner@quantfident.com", true},
		{"OWNER@QUANTFIDENT.COM", true},
		{"  owner@quantfident.com ", true},
		{"editor@quantfident.com", true},
		{"reader@example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, gate.IsAdminEmail(tt.email))
		})
	}
}

// =========================================================================
// REQUIRE ADMIN
// =========================================================================

func TestRequireAdmin_ElevatesOnFirstCallAndPassesAfter(t *testing.T) {
	gate, _, _ := newTestGate(t, false)

	first, err := gate.RequireAdmin(context.Background(), "admin-token")
	require.NoError(t, err)
	assert.True(t, first.IsAdmin())

	second, err := gate.RequireAdmin(context.Background(), "admin-token")
	require.NoError(t, err)
	assert.True(t, second.IsAdmin())
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(2), second.TotalLogins)
}

func TestRequireAdmin_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"admin", "admin-token", nil},
		{"non-admin is forbidden, not unauthorized", "reader-token", apperror.ErrForbidden},
		{"admin email unverified", "admin-unverified-token", apperror.ErrForbidden},
		{"missing token", "", apperror.ErrUnauthorized},
		{"invalid token", "forged-token", apperror.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate, _, _ := newTestGate(t, false)

			_, err := gate.RequireAdmin(context.Background(), tt.token)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestRequireAdmin_AdminWhoLostVerificationIsForbidden(t *testing.T) {
	gate, verifier, _ := newTestGate(t, false)

	_, err := gate.RequireAdmin(context.Background(), "admin-token")
	require.NoError(t, err)

	// Same account, but the provider now reports the email as unverified
	// (e.g. the address was changed). Role stays ADMIN; access does not.
	id := verifier.identities["admin-token"]
	id.EmailVerified = false
	verifier.identities["admin-token"] = id

	_, err = gate.RequireAdmin(context.Background(), "admin-token")
	assert.True(t, errors.Is(err, apperror.ErrForbidden), "got %v", err)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, msgVerificationRequired, appErr.Message)
}

func TestRequireAdmin_UsesConfiguredRevocationCheck(t *testing.T) {
	for _, checkRevoked := range []bool{true, false} {
		gate, verifier, _ := newTestGate(t, checkRevoked)

		_, err := gate.RequireAdmin(context.Background(), "admin-token")
		require.NoError(t, err)
		assert.Equal(t, checkRevoked, verifier.lastRevoked)
	}
}

func TestRequireAdmin_RecordsOneOutcomePerCall(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"admin", "admin-token", metrics.OutcomeOK},
		{"reader", "reader-token", metrics.OutcomeForbidden},
		{"unverified admin email", "admin-unverified-token", metrics.OutcomeForbidden},
		{"missing token", "", metrics.OutcomeInvalidToken},
		{"forged token", "forged-token", metrics.OutcomeInvalidToken},
		{"verifier outage", "outage", metrics.OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingMetrics{}
			gate := NewIdentityGate(&fakeVerifier{identities: map[string]model.Identity{
				"admin-token":            {UID: "uid-admin", Email: "owner@quantfident.com", EmailVerified: true},
				"admin-unverified-token": {UID: "uid-admin-2", Email: "owner@quantfident.com"},
				"reader-token":           {UID: "uid-reader", Email: "reader@example.com", EmailVerified: true},
			}}, newFakeUserRepo(), []string{testAdminEmail}, false, discardLogger(), WithMetrics(rec))

			_, _ = gate.RequireAdmin(context.Background(), tt.token)
			assert.Equal(t, []string{tt.want}, rec.outcomes)
		})
	}
}

func TestVerify_RecordsOneOutcomePerCall(t *testing.T) {
	rec := &recordingMetrics{}
	gate := NewIdentityGate(&fakeVerifier{identities: map[string]model.Identity{
		"reader-token": {UID: "uid-reader", Email: "reader@example.com", EmailVerified: true},
	}}, newFakeUserRepo(), nil, false, discardLogger(), WithMetrics(rec))

	_, err := gate.Verify(context.Background(), "reader-token", false)
	require.NoError(t, err)
	_, err = gate.Verify(context.Background(), "forged-token", false)
	require.Error(t, err)

	assert.Equal(t, []string{metrics.OutcomeOK, metrics.OutcomeInvalidToken}, rec.outcomes)
}
