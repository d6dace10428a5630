package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/quantfident-cms/internal/apperror"
	"github.com/sakif/quantfident-cms/internal/model"
	"github.com/sakif/quantfident-cms/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `
	id, firebase_uid, email, email_verified, display_name, photo_url,
	role, total_logins, created_at, updated_at, last_login_at`

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	err := row.Scan(
		&u.ID, &u.FirebaseUID, &u.Email, &u.EmailVerified, &u.DisplayName, &u.PhotoURL,
		&role, &u.TotalLogins, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = model.ParseRole(role)
	return &u, nil
}

// UpsertLogin records a successful sign-in for the external identity.
//
// ON CONFLICT DO UPDATE:
// The first sign-in inserts a row with total_logins = 1. Every later sign-in
// hits the UNIQUE(firebase_uid) constraint and turns into an UPDATE of the
// existing row instead: the login counter goes up, last_login_at moves, and
// the profile fields are refreshed from the token. The local id and role are
// never touched by the update branch, so a user keeps their id forever and an
// admin is never demoted by signing in again.
//
// Empty display names and photo URLs keep whatever was stored before; a token
// that happens to omit them should not wipe the profile.
//
// Both SQLite (3.24+) and PostgreSQL understand this syntax, including the
// "excluded" pseudo-table.
func (db *DB) UpsertLogin(ctx context.Context, identity model.Identity, at time.Time) (*model.User, error) {
	at = at.UTC()

	_, err := db.conn.ExecContext(ctx, db.rebind(
		`INSERT INTO users (
			id, firebase_uid, email, email_verified, display_name, photo_url,
			role, total_logins, created_at, updated_at, last_login_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT (firebase_uid) DO UPDATE SET
			email          = excluded.email,
			email_verified = excluded.email_verified,
			display_name   = COALESCE(NULLIF(excluded.display_name, ''), users.display_name),
			photo_url      = COALESCE(NULLIF(excluded.photo_url, ''), users.photo_url),
			total_logins   = users.total_logins + 1,
			updated_at     = excluded.updated_at,
			last_login_at  = excluded.last_login_at`),
		xid.New().String(),
		identity.UID,
		identity.Email,
		identity.EmailVerified,
		identity.DisplayName,
		identity.PhotoURL,
		string(model.RoleUser),
		at,
		at,
		at,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: upserting user (uid=%s): %w", identity.UID, err)
	}

	return db.GetUserByFirebaseUID(ctx, identity.UID)
}

// GetUserByID retrieves a user by their internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx, db.rebind(
		`SELECT `+userColumns+` FROM users WHERE id = ?`), id)

	user, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlstore: getting user %s: %w", id, err)
	}
	return user, nil
}

// GetUserByFirebaseUID retrieves a user by the identity provider's uid.
func (db *DB) GetUserByFirebaseUID(ctx context.Context, uid string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx, db.rebind(
		`SELECT `+userColumns+` FROM users WHERE firebase_uid = ?`), uid)

	user, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", uid)
		}
		return nil, fmt.Errorf("sqlstore: getting user by uid %s: %w", uid, err)
	}
	return user, nil
}

// PromoteToAdmin sets the user's role to ADMIN. Promoting an admin is a no-op.
func (db *DB) PromoteToAdmin(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, db.rebind(
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`),
		string(model.RoleAdmin), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlstore: promoting user %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}
