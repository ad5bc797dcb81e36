package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"microblog/internal/httputil"
	"microblog/internal/model"
	"microblog/internal/service"
	"microblog/internal/transport/http/middleware"
	"microblog/internal/validation"
)

// PostHandler serves post CRUD and per-user timelines.
type PostHandler struct {
	postService *service.PostService
	forms       *validation.Forms
}

func NewPostHandler(postService *service.PostService, forms *validation.Forms) *PostHandler {
	return &PostHandler{
		postService: postService,
		forms:       forms,
	}
}

// Create handles POST /posts.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	var form validation.PostForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if fieldErrs := h.forms.Post(form); len(fieldErrs) > 0 {
		httputil.WriteValidationFailed(w, fieldErrs)
		return
	}

	post, err := h.postService.Create(r.Context(), userID, model.CreatePostRequest{Body: form.Body})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrEmptyBody):
			httputil.WriteBadRequest(w, "Post body cannot be empty")
		case errors.Is(err, model.ErrBodyTooLong):
			httputil.WriteBadRequest(w, "Post body exceeds 140 characters")
		default:
			log.Printf("[ERROR] CreatePost handler: user=%d err=%v", userID, err)
			httputil.WriteInternalError(w, "Failed to create post")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, post)
}

// GetByID handles GET /posts/{id}.
func (h *PostHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	postID, err := parseIDParam(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}

	post, err := h.postService.GetByID(r.Context(), postID)
	if err != nil {
		if errors.Is(err, model.ErrPostNotFound) {
			httputil.WriteNotFound(w, "Post not found")
			return
		}
		log.Printf("[ERROR] GetPost handler: post=%d err=%v", postID, err)
		httputil.WriteInternalError(w, "Failed to get post")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, post)
}

// Delete handles DELETE /posts/{id}. Only the author may delete.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	postID, err := parseIDParam(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}

	if err := h.postService.Delete(r.Context(), postID, userID); err != nil {
		switch {
		case errors.Is(err, model.ErrPostNotFound):
			httputil.WriteNotFound(w, "Post not found")
		case errors.Is(err, model.ErrNotPostOwner):
			httputil.WriteForbidden(w, "You can only delete your own posts")
		default:
			log.Printf("[ERROR] DeletePost handler: post=%d user=%d err=%v", postID, userID, err)
			httputil.WriteInternalError(w, "Failed to delete post")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Post deleted",
	})
}

// GetUserPosts handles GET /users/{id}/posts with cursor pagination.
func (h *PostHandler) GetUserPosts(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid user ID")
		return
	}

	cursor, err := parseTimeCursor(r)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid cursor")
		return
	}
	limit := parseLimit(r, service.PostsDefaultLimit, service.PostsMaxLimit)

	resp, err := h.postService.GetUserPosts(r.Context(), userID, cursor, limit)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteNotFound(w, "User not found")
			return
		}
		log.Printf("[ERROR] GetUserPosts handler: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to get posts")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// parseTimeCursor reads an optional RFC3339Nano "cursor" query parameter.
func parseTimeCursor(r *http.Request) (*time.Time, error) {
	raw := r.URL.Query().Get("cursor")
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseLimit reads an optional "limit" query parameter, clamped to [1, max].
func parseLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
