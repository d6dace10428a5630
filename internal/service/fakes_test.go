package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sakif/quantfident-cms/internal/apperror"
	"github.com/sakif/quantfident-cms/internal/auth"
	"github.com/sakif/quantfident-cms/internal/metrics"
	"github.com/sakif/quantfident-cms/internal/model"
	"github.com/sakif/quantfident-cms/internal/repository"
)

// =========================================================================
// FAKE REPOSITORIES
// =========================================================================
//
// Hand-written in-memory implementations of the repository interfaces.
// They mirror what sqlstore does (NotFound on unknown ids, Conflict on a
// duplicate slug) and count every write so tests can assert that an
// operation did NOT touch the store.

type fakePostRepo struct {
	mu     sync.Mutex
	posts  map[string]*model.BlogPost
	nextID int

	writes   int   // Create + Update + Delete calls
	failWith error // returned by every call when set
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: make(map[string]*model.BlogPost)}
}

func (m *fakePostRepo) Create(_ context.Context, post *model.BlogPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.failWith != nil {
		return m.failWith
	}
	for _, p := range m.posts {
		if p.Slug == post.Slug {
			return apperror.AlreadyExists("post", "slug", post.Slug)
		}
	}
	m.nextID++
	post.ID = fmt.Sprintf("post-%d", m.nextID)
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	post.UpdatedAt = post.CreatedAt
	stored := *post
	m.posts[post.ID] = &stored
	return nil
}

func (m *fakePostRepo) GetByID(_ context.Context, id string) (*model.BlogPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	p, ok := m.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	result := *p
	return &result, nil
}

func (m *fakePostRepo) GetBySlug(_ context.Context, slug string) (*model.BlogPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, p := range m.posts {
		if p.Slug == slug {
			result := *p
			return &result, nil
		}
	}
	return nil, apperror.NotFound("post", slug)
}

func (m *fakePostRepo) List(_ context.Context, filter repository.PostFilter) ([]model.BlogPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	result := make([]model.BlogPost, 0, len(m.posts))
	for _, p := range m.posts {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool {
		if filter.Status == model.StatusPublished {
			return result[i].PublishedAt.After(*result[j].PublishedAt)
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *fakePostRepo) Update(_ context.Context, id string, c repository.PostChanges) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.failWith != nil {
		return m.failWith
	}
	p, ok := m.posts[id]
	if !ok {
		return apperror.NotFound("post", id)
	}
	if c.Title != nil {
		p.Title = *c.Title
	}
	if c.Slug != nil {
		p.Slug = *c.Slug
	}
	if c.Content != nil {
		p.Content = *c.Content
	}
	if c.Excerpt != nil {
		p.Excerpt = *c.Excerpt
	}
	if c.Status != nil {
		p.Status = *c.Status
	}
	if c.Tags != nil {
		p.Tags = *c.Tags
	}
	if c.Category != nil {
		p.Category = *c.Category
	}
	if c.FeaturedImage != nil {
		p.FeaturedImage = *c.FeaturedImage
	}
	if c.ReadingTime != nil {
		p.ReadingTime = *c.ReadingTime
	}
	if c.PublishedAt != nil {
		t := *c.PublishedAt
		p.PublishedAt = &t
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *fakePostRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.posts[id]; !ok {
		return apperror.NotFound("post", id)
	}
	delete(m.posts, id)
	return nil
}

func (m *fakePostRepo) IncrementViews(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	p, ok := m.posts[id]
	if !ok {
		return apperror.NotFound("post", id)
	}
	p.Views++
	return nil
}

type fakeUserRepo struct {
	mu       sync.Mutex
	byUID    map[string]*model.User
	nextID   int
	failWith error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byUID: make(map[string]*model.User)}
}

func (m *fakeUserRepo) UpsertLogin(_ context.Context, id model.Identity, at time.Time) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	u, ok := m.byUID[id.UID]
	if !ok {
		m.nextID++
		u = &model.User{
			ID:          fmt.Sprintf("user-%d", m.nextID),
			FirebaseUID: id.UID,
			Role:        model.RoleUser,
			CreatedAt:   at,
		}
		m.byUID[id.UID] = u
	}
	u.Email = id.Email
	u.EmailVerified = id.EmailVerified
	if id.DisplayName != "" {
		u.DisplayName = id.DisplayName
	}
	if id.PhotoURL != "" {
		u.PhotoURL = id.PhotoURL
	}
	u.TotalLogins++
	u.UpdatedAt = at
	u.LastLoginAt = at
	result := *u
	return &result, nil
}

func (m *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byUID {
		if u.ID == id {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", id)
}

func (m *fakeUserRepo) GetUserByFirebaseUID(_ context.Context, uid string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byUID[uid]
	if !ok {
		return nil, apperror.NotFound("user", uid)
	}
	result := *u
	return &result, nil
}

func (m *fakeUserRepo) PromoteToAdmin(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byUID {
		if u.ID == id {
			u.Role = model.RoleAdmin
			return nil
		}
	}
	return apperror.NotFound("user", id)
}

// =========================================================================
// FAKE VERIFIER
// =========================================================================

// fakeVerifier maps raw token strings to identities. Unknown tokens are
// invalid; the token "outage" simulates an infrastructure failure.
type fakeVerifier struct {
	identities   map[string]model.Identity
	lastRevoked  bool
	verifyCalled int
}

var errOutage = errors.New("certificate endpoint unreachable")

func (f *fakeVerifier) Verify(_ context.Context, token string, checkRevoked bool) (*model.Identity, error) {
	f.verifyCalled++
	f.lastRevoked = checkRevoked
	if token == "outage" {
		return nil, errOutage
	}
	id, ok := f.identities[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return &id, nil
}

// =========================================================================
// FAKE METRICS
// =========================================================================

// recordingMetrics keeps every verification outcome in order.
type recordingMetrics struct {
	metrics.Nop
	outcomes []string
}

func (r *recordingMetrics) RecordVerification(outcome string) {
	r.outcomes = append(r.outcomes, outcome)
}

// discardLogger keeps test output quiet.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }
