package handler

import (
	"log"
	"net/http"
	"strings"

	"microblog/internal/httputil"
	"microblog/internal/service"
	"microblog/internal/transport/http/middleware"
)

// FeedHandler serves the authenticated user's aggregated feed.
type FeedHandler struct {
	feedService *service.FeedService
}

func NewFeedHandler(feedService *service.FeedService) *FeedHandler {
	return &FeedHandler{feedService: feedService}
}

// GetFeed handles GET /feed.
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	var cursor *string
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor = &raw
	}
	limit := parseLimit(r, service.FeedDefaultLimit, service.FeedMaxLimit)

	resp, err := h.feedService.GetFeed(r.Context(), userID, cursor, limit)
	if err != nil {
		if strings.Contains(err.Error(), "invalid cursor") {
			httputil.WriteBadRequest(w, "Invalid cursor")
			return
		}
		log.Printf("[ERROR] GetFeed handler: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to get feed")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}
