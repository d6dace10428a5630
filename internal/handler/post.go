package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/quantfident-cms/internal/apperror"
	"github.com/sakif/quantfident-cms/internal/auth"
	"github.com/sakif/quantfident-cms/internal/model"
	"github.com/sakif/quantfident-cms/internal/service"
	"github.com/sakif/quantfident-cms/internal/validation"
)

// PostHandler serves the /api/blog endpoints.
//
// The handler only deals with HTTP: decoding bodies, reading URL and query
// parameters, mapping errors to status codes. Every rule about posts
// (required fields, derived slug, publishedAt) lives in service.PostService.
type PostHandler struct {
	posts    *service.PostService
	validate *validation.Validator
	logger   *slog.Logger
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(posts *service.PostService, validate *validation.Validator, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, validate: validate, logger: logger}
}

// createPostRequest is the body of POST /api/blog/posts.
//
// Presence rules (title and content must be non-empty after trimming) are
// enforced by the service so every caller gets them; the tags here only
// bound sizes and formats.
type createPostRequest struct {
	Title         string   `json:"title" validate:"max=200"`
	Content       string   `json:"content"`
	Excerpt       string   `json:"excerpt" validate:"max=500"`
	Status        string   `json:"status"`
	Tags          []string `json:"tags" validate:"max=20,dive,max=50"`
	Category      string   `json:"category" validate:"max=100"`
	FeaturedImage string   `json:"featuredImage" validate:"omitempty,http_url,max=2048"`
}

// updatePostRequest is the body of PUT /api/blog/posts/{id}.
// Pointer fields distinguish "absent" (nil, leave unchanged) from "empty".
type updatePostRequest struct {
	Title         *string   `json:"title,omitempty" validate:"omitempty,max=200"`
	Content       *string   `json:"content,omitempty"`
	Excerpt       *string   `json:"excerpt,omitempty" validate:"omitempty,max=500"`
	Status        *string   `json:"status,omitempty"`
	Tags          *[]string `json:"tags,omitempty" validate:"omitempty,max=20,dive,max=50"`
	Category      *string   `json:"category,omitempty" validate:"omitempty,max=100"`
	FeaturedImage *string   `json:"featuredImage,omitempty" validate:"omitempty,http_url,max=2048"`
}

type postResponse struct {
	Post *model.BlogPost `json:"post"`
}

type postsResponse struct {
	Posts []model.BlogPost `json:"posts"`
}

type createPostResponse struct {
	PostID  string `json:"postId"`
	Message string `json:"message"`
	Author  string `json:"author"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// HandleListPublished returns published posts, newest first.
//
// HTTP: GET /api/blog/posts?limit=N
func (h *PostHandler) HandleListPublished(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, apperror.ValidationFailed("limit", "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	posts, err := h.posts.ListPublished(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, postsResponse{Posts: posts})
}

// HandleListAll returns every post regardless of status (admin dashboard).
//
// HTTP: GET /api/blog/admin/posts
func (h *PostHandler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, postsResponse{Posts: posts})
}

// HandleGet returns one post by ID.
//
// HTTP: GET /api/blog/posts/{id}
//
// Runs behind auth.AdminIfPresent: a request that got this far either carries
// an admin's token (any status is visible) or no token at all (only
// PUBLISHED posts resolve; everything else is a 404, not a 403, so drafts do
// not reveal that they exist).
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, isAdmin := auth.UserFromContext(r.Context()); !isAdmin && !post.IsPublished() {
		writeError(w, r, apperror.NotFound("post", post.ID))
		return
	}

	writeJSON(w, http.StatusOK, postResponse{Post: post})
}

// HandleGetBySlug is the public reader path. It resolves published posts
// only and counts the view.
//
// HTTP: GET /api/blog/posts/slug/{slug}
func (h *PostHandler) HandleGetBySlug(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Best effort: failures are logged inside the service and never reach
	// the reader.
	h.posts.IncrementViews(r.Context(), post.ID)

	writeJSON(w, http.StatusOK, postResponse{Post: post})
}

// HandleCreate creates a post authored by the calling admin.
//
// HTTP: POST /api/blog/posts
// REQUEST BODY: {"title": "...", "content": "<p>...</p>", "status": "DRAFT", ...}
// RESPONSE: 201 {"postId": "...", "message": "Post created successfully", "author": "..."}
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, apperror.Unauthorized(nil))
		return
	}

	var req createPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validate.Validate(req); err != nil {
		writeError(w, r, err)
		return
	}

	var status model.PostStatus
	if req.Status != "" {
		parsed, err := model.ParsePostStatus(req.Status)
		if err != nil {
			writeError(w, r, apperror.ValidationFailed("status", err.Error()))
			return
		}
		status = parsed
	}

	post, err := h.posts.Create(r.Context(), user.ID, service.CreatePostInput{
		Title:         req.Title,
		Content:       req.Content,
		Excerpt:       req.Excerpt,
		Status:        status,
		Tags:          req.Tags,
		Category:      req.Category,
		FeaturedImage: req.FeaturedImage,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createPostResponse{
		PostID:  post.ID,
		Message: "Post created successfully",
		Author:  authorName(user),
	})
}

// HandleUpdate applies a partial update.
//
// HTTP: PUT /api/blog/posts/{id}
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updatePostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validate.Validate(req); err != nil {
		writeError(w, r, err)
		return
	}

	in := service.UpdatePostInput{
		Title:         req.Title,
		Content:       req.Content,
		Excerpt:       req.Excerpt,
		Tags:          req.Tags,
		Category:      req.Category,
		FeaturedImage: req.FeaturedImage,
	}
	if req.Status != nil {
		status, err := model.ParsePostStatus(*req.Status)
		if err != nil {
			writeError(w, r, apperror.ValidationFailed("status", err.Error()))
			return
		}
		in.Status = &status
	}

	if err := h.posts.Update(r.Context(), chi.URLParam(r, "id"), in); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Post updated successfully"})
}

// HandlePublish moves a post to PUBLISHED.
//
// HTTP: POST /api/blog/posts/{id}/publish
func (h *PostHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	if err := h.posts.Publish(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Post published successfully"})
}

// HandleArchive moves a post to ARCHIVED.
//
// HTTP: POST /api/blog/posts/{id}/archive
func (h *PostHandler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	if err := h.posts.Archive(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Post archived successfully"})
}

// HandleDelete removes a post.
//
// HTTP: DELETE /api/blog/posts/{id}
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.posts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Post deleted successfully"})
}

// HandleCategories lists the fixed category names the editor offers.
//
// HTTP: GET /api/blog/categories
func (h *PostHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"categories": model.Categories})
}

// authorName is the display name shown in the create response.
func authorName(u *model.User) string {
	switch {
	case u.DisplayName != "":
		return u.DisplayName
	case u.Email != "":
		return u.Email
	default:
		return "Anonymous"
	}
}
