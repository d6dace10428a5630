// Package model defines the data structures used throughout the application.
package model

import (
	"strings"
	"time"
)

// Role is the canonical authorization role of a local user.
// Stored and serialized in upper case; compare roles only through this type.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole normalises a stored or external role string.
// Unknown values fall back to RoleUser so a bad row can never grant access.
func ParseRole(s string) Role {
	if Role(strings.ToUpper(strings.TrimSpace(s))) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// User is the local record of an identity verified by the external provider.
//
// FirebaseUID is the provider's stable subject ("sub" claim). The UNIQUE
// constraint on firebase_uid guarantees one local row per external identity;
// the row is created on first verification and updated on every later one.
//
// DisplayName and PhotoURL are optional on the provider side; an empty string
// means "not set".
type User struct {
	ID            string    `json:"id"            db:"id"`
	FirebaseUID   string    `json:"firebaseUid"   db:"firebase_uid"`
	Email         string    `json:"email"         db:"email"`
	EmailVerified bool      `json:"emailVerified" db:"email_verified"`
	DisplayName   string    `json:"displayName,omitempty" db:"display_name"`
	PhotoURL      string    `json:"photoURL,omitempty"    db:"photo_url"`
	Role          Role      `json:"role"          db:"role"`
	TotalLogins   int64     `json:"totalLogins"   db:"total_logins"`
	CreatedAt     time.Time `json:"createdAt"     db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt"     db:"updated_at"`
	LastLoginAt   time.Time `json:"lastLoginAt"   db:"last_login_at"`
}

// IsAdmin reports whether the user currently holds the ADMIN role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Identity is what the external provider asserts about a caller after a
// successful token verification. It is the input to the local user upsert.
type Identity struct {
	UID           string
	Email         string
	EmailVerified bool
	DisplayName   string
	PhotoURL      string
	AuthTime      time.Time
}
