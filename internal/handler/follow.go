package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"microblog/internal/httputil"
	"microblog/internal/model"
	"microblog/internal/service"
	"microblog/internal/transport/http/middleware"
)

// FollowHandler serves follow/unfollow and the follower/following lists.
type FollowHandler struct {
	followService *service.FollowService
}

func NewFollowHandler(followService *service.FollowService) *FollowHandler {
	return &FollowHandler{followService: followService}
}

// Follow handles POST /users/{id}/follow.
func (h *FollowHandler) Follow(w http.ResponseWriter, r *http.Request) {
	followerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	followedID, err := parseIDParam(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid user ID")
		return
	}

	if err := h.followService.Follow(r.Context(), followerID, followedID); err != nil {
		switch {
		case errors.Is(err, model.ErrCannotFollowSelf):
			httputil.WriteBadRequest(w, "You cannot follow yourself")
		case errors.Is(err, model.ErrUserNotFound):
			httputil.WriteNotFound(w, "User not found")
		case errors.Is(err, model.ErrAlreadyFollowing):
			httputil.WriteConflict(w, "Already following this user")
		default:
			log.Printf("[ERROR] Follow handler: follower=%d followed=%d err=%v", followerID, followedID, err)
			httputil.WriteInternalError(w, "Failed to follow user")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Followed successfully",
	})
}

// Unfollow handles DELETE /users/{id}/follow.
func (h *FollowHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	followerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	followedID, err := parseIDParam(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid user ID")
		return
	}

	if err := h.followService.Unfollow(r.Context(), followerID, followedID); err != nil {
		switch {
		case errors.Is(err, model.ErrNotFollowing):
			httputil.WriteConflict(w, "Not following this user")
		default:
			log.Printf("[ERROR] Unfollow handler: follower=%d followed=%d err=%v", followerID, followedID, err)
			httputil.WriteInternalError(w, "Failed to unfollow user")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Unfollowed successfully",
	})
}

// GetFollowers handles GET /users/{id}/followers.
func (h *FollowHandler) GetFollowers(w http.ResponseWriter, r *http.Request) {
	h.listEdges(w, r, h.followService.GetFollowers)
}

// GetFollowing handles GET /users/{id}/following.
func (h *FollowHandler) GetFollowing(w http.ResponseWriter, r *http.Request) {
	h.listEdges(w, r, h.followService.GetFollowing)
}

func (h *FollowHandler) listEdges(
	w http.ResponseWriter,
	r *http.Request,
	list func(ctx context.Context, userID int64, cursor *time.Time, limit int, viewerID *int64) (*model.FollowListResponse, error),
) {
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
	limit := parseLimit(r, service.FollowListDefaultLimit, service.FollowListMaxLimit)

	var viewerID *int64
	if id, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		viewerID = &id
	}

	resp, err := list(r.Context(), userID, cursor, limit, viewerID)
	if err != nil {
		log.Printf("[ERROR] Follow list handler: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to get users")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}
