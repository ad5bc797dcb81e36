package worker

import (
	"context"
	"fmt"
	"log"

	"microblog/internal/cache"
	"microblog/internal/queue"
)

// BackfillLimit is how many recent posts to copy into a follower's feed
// cache when they follow someone.
const BackfillLimit = 50

// FollowerProvider abstracts the follower lookup so the worker doesn't
// depend on the repository package directly.
type FollowerProvider interface {
	// GetFollowerIDs returns all follower IDs for a given user.
	GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error)
}

// RecentPostsProvider abstracts the recent-posts lookup used for backfill.
type RecentPostsProvider interface {
	// GetRecentPostsByUser returns recent posts as (postID, timestamp) pairs.
	GetRecentPostsByUser(ctx context.Context, userID int64, limit int) ([]cache.PostScore, error)
}

// Handler processes feed events from the queue.
type Handler struct {
	feedCache        cache.FeedCache
	followerProvider FollowerProvider
	postsProvider    RecentPostsProvider
}

// NewHandler creates a new event handler.
func NewHandler(
	feedCache cache.FeedCache,
	followerProvider FollowerProvider,
	postsProvider RecentPostsProvider,
) *Handler {
	return &Handler{
		feedCache:        feedCache,
		followerProvider: followerProvider,
		postsProvider:    postsProvider,
	}
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.FeedEvent) error {
	var err error

	switch event.Type {
	case queue.EventPostCreated:
		err = h.handlePostCreated(ctx, event)
	case queue.EventPostDeleted:
		err = h.handlePostDeleted(ctx, event)
	case queue.EventUserFollowed:
		err = h.handleUserFollowed(ctx, event)
	case queue.EventUserUnfollowed:
		err = h.handleUserUnfollowed(ctx, event)
	default:
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	if err != nil {
		log.Printf("[Worker] HandleEvent FAILED: type=%s err=%v", event.Type, err)
		return err
	}
	return nil
}

// handlePostCreated fans out a new post to all followers' feed caches,
// plus the author's own feed.
func (h *Handler) handlePostCreated(ctx context.Context, event queue.FeedEvent) error {
	followers, err := h.followerProvider.GetFollowerIDs(ctx, event.AuthorID)
	if err != nil {
		return fmt.Errorf("get followers: %w", err)
	}

	log.Printf("[Worker] PostCreated: post=%d author=%d fanout=%d", event.PostID, event.AuthorID, len(followers))

	for _, followerID := range followers {
		if err := h.feedCache.AddPost(ctx, followerID, event.PostID, event.Timestamp); err != nil {
			// One failed cache write must not abort the rest of the fan-out
			log.Printf("[Worker] PostCreated: failed to add to user=%d err=%v", followerID, err)
		}
	}

	if err := h.feedCache.AddPost(ctx, event.AuthorID, event.PostID, event.Timestamp); err != nil {
		log.Printf("[Worker] PostCreated: failed to add to author's own feed err=%v", err)
	}

	return nil
}

// handlePostDeleted removes a post from all followers' feed caches.
func (h *Handler) handlePostDeleted(ctx context.Context, event queue.FeedEvent) error {
	followers, err := h.followerProvider.GetFollowerIDs(ctx, event.AuthorID)
	if err != nil {
		return fmt.Errorf("get followers: %w", err)
	}

	log.Printf("[Worker] PostDeleted: post=%d author=%d fanout=%d", event.PostID, event.AuthorID, len(followers))

	for _, followerID := range followers {
		if err := h.feedCache.RemovePost(ctx, followerID, event.PostID); err != nil {
			log.Printf("[Worker] PostDeleted: failed to remove from user=%d err=%v", followerID, err)
		}
	}

	if err := h.feedCache.RemovePost(ctx, event.AuthorID, event.PostID); err != nil {
		log.Printf("[Worker] PostDeleted: failed to remove from author's own feed err=%v", err)
	}

	return nil
}

// handleUserFollowed backfills the followed user's recent posts into the
// follower's feed cache.
func (h *Handler) handleUserFollowed(ctx context.Context, event queue.FeedEvent) error {
	// Skip backfill for a cold cache: the next feed read warms it from the
	// database with the new edge already in place.
	exists, err := h.feedCache.Exists(ctx, event.FollowerID)
	if err != nil {
		return fmt.Errorf("check cache: %w", err)
	}
	if !exists {
		return nil
	}

	posts, err := h.postsProvider.GetRecentPostsByUser(ctx, event.FollowedID, BackfillLimit)
	if err != nil {
		return fmt.Errorf("get recent posts: %w", err)
	}

	log.Printf("[Worker] UserFollowed: follower=%d followed=%d backfill=%d", event.FollowerID, event.FollowedID, len(posts))
	return h.feedCache.WarmCache(ctx, event.FollowerID, posts)
}

// handleUserUnfollowed removes the unfollowed user's posts from the
// follower's feed cache.
func (h *Handler) handleUserUnfollowed(ctx context.Context, event queue.FeedEvent) error {
	posts, err := h.postsProvider.GetRecentPostsByUser(ctx, event.FollowedID, cache.FeedCacheCap)
	if err != nil {
		return fmt.Errorf("get recent posts: %w", err)
	}

	log.Printf("[Worker] UserUnfollowed: follower=%d followed=%d removing=%d", event.FollowerID, event.FollowedID, len(posts))

	for _, p := range posts {
		if err := h.feedCache.RemovePost(ctx, event.FollowerID, p.PostID); err != nil {
			log.Printf("[Worker] UserUnfollowed: failed to remove post=%d err=%v", p.PostID, err)
		}
	}
	return nil
}
