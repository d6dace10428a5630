// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Two services live here:
//   - PostService: blog post CRUD and the DRAFT → PUBLISHED → ARCHIVED
//     lifecycle, including the derived fields (slug, reading time,
//     published_at) that must never be set directly by a client.
//   - IdentityGate: turns a bearer token into a local user record and
//     decides whether that user may act as an admin.
//
// DEPENDENCY INJECTION:
// Both services take repository interfaces, NOT a *sqlstore.DB. In tests we
// pass in-memory fakes (see post_test.go); in main.go the real store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/quantfident-cms/internal/apperror"
	"github.com/sakif/quantfident-cms/internal/content"
	"github.com/sakif/quantfident-cms/internal/metrics"
	"github.com/sakif/quantfident-cms/internal/model"
	"github.com/sakif/quantfident-cms/internal/repository"
)

// Validation constants.
const (
	MaxTitleLength   = 200
	MaxExcerptLength = 500
	MaxContentLength = 500_000 // sanitized HTML
	MaxTags          = 20
)

// Option configures a service.
type Option func(*options)

type options struct {
	now     func() time.Time
	metrics metrics.Recorder
}

func defaultOptions() options {
	return options{now: time.Now, metrics: metrics.Nop{}}
}

// WithClock overrides time.Now. Tests use it to pin timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMetrics records service events on m.
func WithMetrics(m metrics.Recorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// PostService handles business logic for blog posts.
type PostService struct {
	repo    repository.PostRepository
	logger  *slog.Logger
	now     func() time.Time
	metrics metrics.Recorder
}

// NewPostService creates a new PostService.
func NewPostService(repo repository.PostRepository, logger *slog.Logger, opts ...Option) *PostService {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &PostService{
		repo:    repo,
		logger:  logger,
		now:     o.now,
		metrics: o.metrics,
	}
}

// CreatePostInput is everything a client may set on a new post.
// Slug, reading time, counters and timestamps are derived, never accepted.
type CreatePostInput struct {
	Title         string
	Content       string
	Excerpt       string
	Status        model.PostStatus // empty means DRAFT
	Tags          []string
	Category      string
	FeaturedImage string
}

// UpdatePostInput is a partial update: nil fields are left unchanged.
type UpdatePostInput struct {
	Title         *string
	Content       *string
	Excerpt       *string
	Status        *model.PostStatus
	Tags          *[]string
	Category      *string
	FeaturedImage *string
}

// ListPublished returns PUBLISHED posts, newest publishedAt first.
// limit <= 0 returns all of them.
func (s *PostService) ListPublished(ctx context.Context, limit int) ([]model.BlogPost, error) {
	posts, err := s.repo.List(ctx, repository.PostFilter{
		Status: model.StatusPublished,
		Limit:  limit,
	})
	if err != nil {
		s.logger.Error("failed to list published posts", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing published posts: %w", err)
	}
	return posts, nil
}

// ListAll returns posts in every status, newest first, for the admin dashboard.
func (s *PostService) ListAll(ctx context.Context) ([]model.BlogPost, error) {
	posts, err := s.repo.List(ctx, repository.PostFilter{})
	if err != nil {
		s.logger.Error("failed to list posts", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}

// GetBySlug returns a post only if it is PUBLISHED. Drafts and archived posts
// are reported as NotFound so their existence does not leak to readers.
func (s *PostService) GetBySlug(ctx context.Context, slug string) (*model.BlogPost, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, apperror.NotFound("post", slug)
	}

	post, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !post.IsPublished() {
		return nil, apperror.NotFound("post", slug)
	}
	return post, nil
}

// GetByID returns a post regardless of status. Callers gate visibility.
func (s *PostService) GetByID(ctx context.Context, id string) (*model.BlogPost, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "post ID is required")
	}
	return s.repo.GetByID(ctx, id)
}

// Create validates input, derives slug and reading time, and stores a new
// post authored by authorID.
//
// DERIVED FIELDS:
//   - slug        ← content.Slug(title)
//   - content     ← content.Sanitize(content) (stored HTML is always safe)
//   - readingTime ← content.ReadingTime(content)
//   - publishedAt ← now, only when the initial status is PUBLISHED
//   - views, likes ← 0
func (s *PostService) Create(ctx context.Context, authorID string, in CreatePostInput) (*model.BlogPost, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}

	body, err := cleanContent(in.Content)
	if err != nil {
		return nil, err
	}

	slug := content.Slug(title)
	if slug == "" {
		return nil, apperror.ValidationFailed("title", "title must contain at least one letter or digit")
	}

	status := in.Status
	if status == "" {
		status = model.StatusDraft
	}
	if status != model.StatusDraft && status != model.StatusPublished {
		return nil, apperror.ValidationFailed("status", "new posts must be DRAFT or PUBLISHED")
	}

	excerpt, err := cleanExcerpt(in.Excerpt)
	if err != nil {
		return nil, err
	}

	tags := content.NormalizeTags(in.Tags)
	if len(tags) > MaxTags {
		return nil, apperror.ValidationFailed("tags", fmt.Sprintf("at most %d tags are allowed", MaxTags))
	}

	if err := s.ensureSlugFree(ctx, slug, ""); err != nil {
		return nil, err
	}

	post := &model.BlogPost{
		Title:         title,
		Slug:          slug,
		Content:       body,
		Excerpt:       excerpt,
		AuthorID:      authorID,
		Status:        status,
		Tags:          tags,
		Category:      strings.TrimSpace(in.Category),
		FeaturedImage: strings.TrimSpace(in.FeaturedImage),
		ReadingTime:   content.ReadingTime(body),
	}
	post.CreatedAt = s.now().UTC()
	if status == model.StatusPublished {
		publishedAt := post.CreatedAt
		post.PublishedAt = &publishedAt
	}

	if err := s.repo.Create(ctx, post); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to create post",
			slog.String("title", title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.metrics.RecordPostMutation("create")
	s.logger.Info("post created",
		slog.String("id", post.ID),
		slog.String("slug", post.Slug),
		slog.String("status", string(post.Status)),
		slog.String("authorID", authorID),
	)

	return post, nil
}

// Update applies a partial update.
//
// STRATEGY: "Fetch then update"
// The current post is loaded first so we can (a) return NotFound before any
// write, (b) know whether publishedAt is already set, and (c) re-derive only
// the fields whose inputs changed:
//   - title present   → slug re-derived
//   - content present → content re-sanitized, readingTime re-derived
//   - status becomes PUBLISHED and publishedAt unset → publishedAt = now
//
// publishedAt is never overwritten or cleared once set, so unpublishing and
// republishing keeps the original publication date.
func (s *PostService) Update(ctx context.Context, id string, in UpdatePostInput) error {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var changes repository.PostChanges

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return apperror.ValidationFailed("title", "title cannot be empty")
		}
		if utf8.RuneCountInString(title) > MaxTitleLength {
			return apperror.ValidationFailed("title",
				fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
		}
		slug := content.Slug(title)
		if slug == "" {
			return apperror.ValidationFailed("title", "title must contain at least one letter or digit")
		}
		if slug != current.Slug {
			if err := s.ensureSlugFree(ctx, slug, current.ID); err != nil {
				return err
			}
		}
		changes.Title = &title
		changes.Slug = &slug
	}

	if in.Content != nil {
		body, err := cleanContent(*in.Content)
		if err != nil {
			return err
		}
		readingTime := content.ReadingTime(body)
		changes.Content = &body
		changes.ReadingTime = &readingTime
	}

	if in.Excerpt != nil {
		excerpt, err := cleanExcerpt(*in.Excerpt)
		if err != nil {
			return err
		}
		changes.Excerpt = &excerpt
	}

	if in.Status != nil {
		status := *in.Status
		changes.Status = &status
		if status == model.StatusPublished && current.PublishedAt == nil {
			publishedAt := s.now().UTC()
			changes.PublishedAt = &publishedAt
		}
	}

	if in.Tags != nil {
		tags := content.NormalizeTags(*in.Tags)
		if len(tags) > MaxTags {
			return apperror.ValidationFailed("tags", fmt.Sprintf("at most %d tags are allowed", MaxTags))
		}
		changes.Tags = &tags
	}

	if in.Category != nil {
		category := strings.TrimSpace(*in.Category)
		changes.Category = &category
	}

	if in.FeaturedImage != nil {
		image := strings.TrimSpace(*in.FeaturedImage)
		changes.FeaturedImage = &image
	}

	if changes.IsEmpty() {
		return nil
	}

	if err := s.repo.Update(ctx, current.ID, changes); err != nil {
		if errors.Is(err, apperror.ErrNotFound) || errors.Is(err, apperror.ErrConflict) {
			return err
		}
		s.logger.Error("failed to update post",
			slog.String("id", current.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("updating post: %w", err)
	}

	s.metrics.RecordPostMutation("update")
	s.logger.Info("post updated", slog.String("id", current.ID))
	return nil
}

// Publish moves a post to PUBLISHED, setting publishedAt on first publication.
func (s *PostService) Publish(ctx context.Context, id string) error {
	status := model.StatusPublished
	return s.Update(ctx, id, UpdatePostInput{Status: &status})
}

// Archive moves a post to ARCHIVED. publishedAt is kept.
func (s *PostService) Archive(ctx context.Context, id string) error {
	status := model.StatusArchived
	return s.Update(ctx, id, UpdatePostInput{Status: &status})
}

// Delete removes a post. The existence check runs first, so deleting an
// unknown id returns NotFound without issuing any write.
func (s *PostService) Delete(ctx context.Context, id string) error {
	post, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, post.ID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		s.logger.Error("failed to delete post",
			slog.String("id", post.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("deleting post: %w", err)
	}

	s.metrics.RecordPostMutation("delete")
	s.logger.Info("post deleted", slog.String("id", post.ID), slog.String("slug", post.Slug))
	return nil
}

// IncrementViews bumps the view counter. It is best effort: failures are
// logged and swallowed so a broken counter never breaks page rendering.
func (s *PostService) IncrementViews(ctx context.Context, id string) {
	if err := s.repo.IncrementViews(ctx, id); err != nil {
		s.metrics.RecordViewIncrement(false)
		s.logger.Warn("failed to increment views",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return
	}
	s.metrics.RecordViewIncrement(true)
}

// ensureSlugFree returns Conflict if slug belongs to a post other than selfID.
// The UNIQUE index is the real guard; this check exists to return a clean
// error before attempting the write.
func (s *PostService) ensureSlugFree(ctx context.Context, slug, selfID string) error {
	existing, err := s.repo.GetBySlug(ctx, slug)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("checking slug %q: %w", slug, err)
	case existing.ID == selfID:
		return nil
	default:
		return apperror.AlreadyExists("post", "slug", slug)
	}
}

// cleanContent sanitizes HTML and enforces the non-empty rule on the result,
// so content made only of stripped markup (e.g. a lone <script>) is rejected.
func cleanContent(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", apperror.ValidationFailed("content", "content is required")
	}

	body := strings.TrimSpace(content.Sanitize(raw))
	if body == "" {
		return "", apperror.ValidationFailed("content", "content is required")
	}
	if utf8.RuneCountInString(body) > MaxContentLength {
		return "", apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or less", MaxContentLength))
	}
	return body, nil
}

// cleanExcerpt trims the plain-text summary. It is not run through the HTML
// policy: excerpts are rendered as text, and sanitizing would entity-encode
// characters like "&".
func cleanExcerpt(raw string) (string, error) {
	excerpt := strings.TrimSpace(raw)
	if utf8.RuneCountInString(excerpt) > MaxExcerptLength {
		return "", apperror.ValidationFailed("excerpt",
			fmt.Sprintf("excerpt must be %d characters or less", MaxExcerptLength))
	}
	return excerpt, nil
}
