package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/quantfident-cms/internal/apperror"
	"github.com/sakif/quantfident-cms/internal/model"
	"github.com/sakif/quantfident-cms/internal/repository"
)

// compile-time check that *DB implements repository.PostRepository
var _ repository.PostRepository = (*DB)(nil)

// anonymousAuthor is shown when the author has no display name.
const anonymousAuthor = "Anonymous"

// postColumns is the SELECT list shared by every post query. The author's
// name and email come from a LEFT JOIN so a post always loads.
const postColumns = `
	p.id, p.title, p.slug, p.content, p.excerpt, p.author_id,
	p.status, p.tags, p.category, p.featured_image, p.reading_time,
	p.views, p.likes, p.created_at, p.updated_at, p.published_at,
	COALESCE(u.display_name, ''), COALESCE(u.email, '')`

const postFrom = `
	FROM blog_posts p
	LEFT JOIN users u ON u.id = p.author_id`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*model.BlogPost, error) {
	var (
		p           model.BlogPost
		status      string
		tags        string
		publishedAt sql.NullTime
	)

	err := row.Scan(
		&p.ID, &p.Title, &p.Slug, &p.Content, &p.Excerpt, &p.AuthorID,
		&status, &tags, &p.Category, &p.FeaturedImage, &p.ReadingTime,
		&p.Views, &p.Likes, &p.CreatedAt, &p.UpdatedAt, &publishedAt,
		&p.AuthorName, &p.AuthorEmail,
	)
	if err != nil {
		return nil, err
	}

	p.Status, err = model.ParsePostStatus(status)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", p.ID, err)
	}

	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("post %s: decoding tags: %w", p.ID, err)
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}

	if publishedAt.Valid {
		t := publishedAt.Time
		p.PublishedAt = &t
	}

	if p.AuthorName == "" {
		p.AuthorName = anonymousAuthor
	}

	return &p, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encoding tags: %w", err)
	}
	return string(b), nil
}

// Create inserts a new post. ID is assigned here, as are CreatedAt and
// UpdatedAt unless the caller already set CreatedAt. The caller supplies
// everything else, including the derived slug and
// reading time. A duplicate slug returns apperror.ErrConflict.
func (db *DB) Create(ctx context.Context, post *model.BlogPost) error {
	post.ID = xid.New().String()

	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	post.CreatedAt = post.CreatedAt.UTC()
	post.UpdatedAt = post.CreatedAt
	post.Views = 0
	post.Likes = 0

	tags, err := encodeTags(post.Tags)
	if err != nil {
		return fmt.Errorf("sqlstore: creating post: %w", err)
	}

	var publishedAt sql.NullTime
	if post.PublishedAt != nil {
		publishedAt = sql.NullTime{Time: post.PublishedAt.UTC(), Valid: true}
	}

	_, err = db.conn.ExecContext(ctx, db.rebind(
		`INSERT INTO blog_posts (
			id, title, slug, content, excerpt, author_id, status, tags, category,
			featured_image, reading_time, views, likes, created_at, updated_at, published_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?, ?)`),
		post.ID,
		post.Title,
		post.Slug,
		post.Content,
		post.Excerpt,
		post.AuthorID,
		string(post.Status),
		tags,
		post.Category,
		post.FeaturedImage,
		post.ReadingTime,
		post.CreatedAt,
		post.UpdatedAt,
		publishedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.AlreadyExists("post", "slug", post.Slug)
		}
		return fmt.Errorf("sqlstore: creating post: %w", err)
	}

	return nil
}

// GetByID retrieves a post by ID regardless of status.
func (db *DB) GetByID(ctx context.Context, id string) (*model.BlogPost, error) {
	row := db.conn.QueryRowContext(ctx, db.rebind(
		`SELECT `+postColumns+postFrom+` WHERE p.id = ?`), id)

	post, err := scanPost(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlstore: getting post %s: %w", id, err)
	}

	return post, nil
}

// GetBySlug retrieves a post by slug regardless of status. Visibility rules
// belong to the service layer.
func (db *DB) GetBySlug(ctx context.Context, slug string) (*model.BlogPost, error) {
	row := db.conn.QueryRowContext(ctx, db.rebind(
		`SELECT `+postColumns+postFrom+` WHERE p.slug = ?`), slug)

	post, err := scanPost(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("post", slug)
		}
		return nil, fmt.Errorf("sqlstore: getting post by slug %s: %w", slug, err)
	}

	return post, nil
}

// List returns posts matching filter. Published lists are ordered by
// published_at, everything else by created_at; newest first in both cases.
func (db *DB) List(ctx context.Context, filter repository.PostFilter) ([]model.BlogPost, error) {
	var (
		query strings.Builder
		args  []any
	)

	query.WriteString(`SELECT ` + postColumns + postFrom)

	if filter.Status != "" {
		query.WriteString(` WHERE p.status = ?`)
		args = append(args, string(filter.Status))
	}

	if filter.Status == model.StatusPublished {
		query.WriteString(` ORDER BY p.published_at DESC, p.id DESC`)
	} else {
		query.WriteString(` ORDER BY p.created_at DESC, p.id DESC`)
	}

	capacity := 16
	if filter.Limit > 0 {
		query.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
		capacity = filter.Limit
	}

	rows, err := db.conn.QueryContext(ctx, db.rebind(query.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.BlogPost, 0, capacity)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scanning post row: %w", err)
		}
		posts = append(posts, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating posts: %w", err)
	}

	return posts, nil
}

// Update writes the non-nil fields of changes plus updated_at in a single
// statement. Concurrent updates to the same post are last-write-wins.
func (db *DB) Update(ctx context.Context, id string, changes repository.PostChanges) error {
	var (
		sets []string
		args []any
	)

	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if changes.Title != nil {
		set("title", *changes.Title)
	}
	if changes.Slug != nil {
		set("slug", *changes.Slug)
	}
	if changes.Content != nil {
		set("content", *changes.Content)
	}
	if changes.Excerpt != nil {
		set("excerpt", *changes.Excerpt)
	}
	if changes.Status != nil {
		set("status", string(*changes.Status))
	}
	if changes.Tags != nil {
		tags, err := encodeTags(*changes.Tags)
		if err != nil {
			return fmt.Errorf("sqlstore: updating post %s: %w", id, err)
		}
		set("tags", tags)
	}
	if changes.Category != nil {
		set("category", *changes.Category)
	}
	if changes.FeaturedImage != nil {
		set("featured_image", *changes.FeaturedImage)
	}
	if changes.ReadingTime != nil {
		set("reading_time", *changes.ReadingTime)
	}
	if changes.PublishedAt != nil {
		set("published_at", changes.PublishedAt.UTC())
	}
	set("updated_at", time.Now().UTC())

	args = append(args, id)

	result, err := db.conn.ExecContext(ctx, db.rebind(
		`UPDATE blog_posts SET `+strings.Join(sets, ", ")+` WHERE id = ?`), args...)
	if err != nil {
		if isUniqueViolation(err) && changes.Slug != nil {
			return apperror.AlreadyExists("post", "slug", *changes.Slug)
		}
		return fmt.Errorf("sqlstore: updating post %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("post", id)
	}

	return nil
}

// Delete removes a post by its ID.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, db.rebind(
		`DELETE FROM blog_posts WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting post %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("post", id)
	}

	return nil
}

// IncrementViews bumps the view counter in one statement. It does not touch
// updated_at: a read is not an edit.
func (db *DB) IncrementViews(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, db.rebind(
		`UPDATE blog_posts SET views = views + 1 WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("sqlstore: incrementing views for %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("post", id)
	}

	return nil
}
