package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sakif/quantfident-cms/internal/model"
)

// newTestLocalVerifier creates a LocalVerifier for testing.
// It uses a fixed, known secret so tests are deterministic.
func newTestLocalVerifier(t *testing.T) *LocalVerifier {
	t.Helper()
	v, err := NewLocalVerifier("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewLocalVerifier: %v", err)
	}
	return v
}

func testIdentity(uid string) model.Identity {
	return model.Identity{
		UID:           uid,
		Email:         uid + "@example.com",
		EmailVerified: true,
		DisplayName:   "Test User",
		PhotoURL:      "https://example.com/p.png",
	}
}

// =========================================================================
// CONSTRUCTION TESTS
// =========================================================================

func TestNewLocalVerifier_ShortSecret(t *testing.T) {
	_, err := NewLocalVerifier("short")
	if err == nil {
		t.Fatal("NewLocalVerifier() should reject secrets shorter than 16 chars")
	}
}

func TestNewLocalVerifier_ValidSecret(t *testing.T) {
	_, err := NewLocalVerifier("this-is-16-chars")
	if err != nil {
		t.Fatalf("NewLocalVerifier() unexpected error for valid secret: %v", err)
	}
}

// =========================================================================
// ISSUE TESTS
// =========================================================================

func TestIssue_ReturnsJWT(t *testing.T) {
	v := newTestLocalVerifier(t)

	token, err := v.Issue(testIdentity("user-123"), time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	// JWT tokens have 3 dot-separated parts: header.payload.signature
	if got := strings.Count(token, "."); got != 2 {
		t.Errorf("Issue() token doesn't look like a JWT (expected 2 dots, got %d)", got)
	}
}

func TestIssue_RequiresUID(t *testing.T) {
	v := newTestLocalVerifier(t)

	if _, err := v.Issue(model.Identity{Email: "a@example.com"}, time.Hour); err == nil {
		t.Fatal("Issue() should reject an identity without a UID")
	}
}

// =========================================================================
// VERIFY TESTS
// =========================================================================

func TestVerify_RoundTrip(t *testing.T) {
	v := newTestLocalVerifier(t)
	want := testIdentity("user-abc-123")

	token, err := v.Issue(want, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	got, err := v.Verify(context.Background(), token, true)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got.UID != want.UID {
		t.Errorf("UID = %q, want %q", got.UID, want.UID)
	}
	if got.Email != want.Email {
		t.Errorf("Email = %q, want %q", got.Email, want.Email)
	}
	if !got.EmailVerified {
		t.Error("EmailVerified = false, want true")
	}
	if got.DisplayName != want.DisplayName {
		t.Errorf("DisplayName = %q, want %q", got.DisplayName, want.DisplayName)
	}
	if got.PhotoURL != want.PhotoURL {
		t.Errorf("PhotoURL = %q, want %q", got.PhotoURL, want.PhotoURL)
	}
	if got.AuthTime.IsZero() {
		t.Error("AuthTime should default to the issue time")
	}
}

func TestVerify_Rejections(t *testing.T) {
	v := newTestLocalVerifier(t)
	other, _ := NewLocalVerifier("wrong-secret-32-chars-long!!!!!!")

	valid, _ := v.Issue(testIdentity("user-123"), time.Hour)
	expired, _ := v.Issue(testIdentity("user-123"), -time.Second)
	foreign, _ := other.Issue(testIdentity("user-123"), time.Hour)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt.token"},
		{"expired", expired},
		// Flip the end of the signature to simulate tampering
		{"tampered", valid[:len(valid)-3] + "xxx"},
		{"wrong secret", foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token, false)
			if err == nil {
				t.Fatal("Verify() should fail")
			}
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("error should wrap ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestVerify_SatisfiesInterface(t *testing.T) {
	var _ Verifier = newTestLocalVerifier(t)
}
