package model

import (
	"fmt"
	"strings"
	"time"
)

// PostStatus is the lifecycle state of a blog post.
//
//	DRAFT ⇄ PUBLISHED → ARCHIVED
//
// The canonical representation is upper case. Clients may send any casing
// ("published", "Published"); ParsePostStatus normalises it at the boundary.
type PostStatus string

const (
	StatusDraft     PostStatus = "DRAFT"
	StatusPublished PostStatus = "PUBLISHED"
	StatusArchived  PostStatus = "ARCHIVED"
)

// ParsePostStatus converts a client or database string into a PostStatus.
func ParsePostStatus(s string) (PostStatus, error) {
	switch PostStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusDraft:
		return StatusDraft, nil
	case StatusPublished:
		return StatusPublished, nil
	case StatusArchived:
		return StatusArchived, nil
	default:
		return "", fmt.Errorf("unknown post status %q", s)
	}
}

// BlogPost is a single article on the site blog.
//
// Slug and ReadingTime are derived values: the service recomputes them from
// Title and Content, callers never set them directly. PublishedAt is nil until
// the post first enters StatusPublished and is never overwritten afterwards.
type BlogPost struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Content       string     `json:"content"`
	Excerpt       string     `json:"excerpt"`
	AuthorID      string     `json:"authorId"`
	AuthorName    string     `json:"authorName"`
	AuthorEmail   string     `json:"authorEmail"`
	Status        PostStatus `json:"status"`
	Tags          []string   `json:"tags"`
	Category      string     `json:"category"`
	FeaturedImage string     `json:"featuredImage,omitempty"`
	ReadingTime   int        `json:"readingTime"`
	Views         int64      `json:"views"`
	Likes         int64      `json:"likes"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	PublishedAt   *time.Time `json:"publishedAt,omitempty"`
}

// IsPublished reports whether the post is visible to anonymous readers.
func (p *BlogPost) IsPublished() bool {
	return p != nil && p.Status == StatusPublished
}

// Categories offered by the admin editor.
var Categories = []string{
	"Quant Finance",
	"Career Advice",
	"Interview Prep",
	"Market Analysis",
	"Technology",
	"Community",
}
