// Package repository declares the storage contracts the service layer depends on.
// Implementations live in sub-packages (see repository/sqlstore).
package repository

import (
	"context"
	"time"

	"github.com/sakif/quantfident-cms/internal/model"
)

// PostFilter selects and orders posts for List.
//
// A zero Status means "any status". Limit <= 0 means "no limit".
// Published lists are ordered by published_at DESC, everything else by
// created_at DESC.
type PostFilter struct {
	Status model.PostStatus
	Limit  int
}

// PostChanges is a partial update. Only non-nil fields are written; the
// service fills in the derived columns (slug, reading time, published_at)
// alongside the fields the caller changed.
type PostChanges struct {
	Title         *string
	Slug          *string
	Content       *string
	Excerpt       *string
	Status        *model.PostStatus
	Tags          *[]string
	Category      *string
	FeaturedImage *string
	ReadingTime   *int
	PublishedAt   *time.Time
}

// IsEmpty reports whether the change set writes nothing.
func (c PostChanges) IsEmpty() bool {
	return c.Title == nil && c.Slug == nil && c.Content == nil && c.Excerpt == nil &&
		c.Status == nil && c.Tags == nil && c.Category == nil && c.FeaturedImage == nil &&
		c.ReadingTime == nil && c.PublishedAt == nil
}

type PostRepository interface {
	Create(ctx context.Context, post *model.BlogPost) error
	GetByID(ctx context.Context, id string) (*model.BlogPost, error)
	GetBySlug(ctx context.Context, slug string) (*model.BlogPost, error)
	List(ctx context.Context, filter PostFilter) ([]model.BlogPost, error)
	Update(ctx context.Context, id string, changes PostChanges) error
	Delete(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) error
}

type UserRepository interface {
	// UpsertLogin records a successful verification: it inserts the user on
	// first sight (total_logins = 1) or refreshes the profile, bumps
	// total_logins and sets last_login_at. Returns the stored row.
	UpsertLogin(ctx context.Context, identity model.Identity, at time.Time) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByFirebaseUID(ctx context.Context, uid string) (*model.User, error)
	// PromoteToAdmin sets role = ADMIN. It never lowers a role.
	PromoteToAdmin(ctx context.Context, id string) error
}
