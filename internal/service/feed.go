package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"microblog/internal/avatar"
	"microblog/internal/cache"
	"microblog/internal/model"
	"microblog/internal/repository"
)

const (
	// FeedDefaultLimit is the default number of posts per page
	FeedDefaultLimit = 10

	// FeedMaxLimit is the maximum number of posts per page
	FeedMaxLimit = 50

	// CacheWarmLimit is max posts to fetch when warming a cold cache
	CacheWarmLimit = 500
)

// FeedService assembles a user's aggregated feed: their own posts plus
// posts from everyone they follow, newest first.
type FeedService struct {
	feedCache  cache.FeedCache
	postRepo   repository.PostRepository
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	avatars    *avatar.Service
}

func NewFeedService(
	feedCache cache.FeedCache,
	postRepo repository.PostRepository,
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	avatars *avatar.Service,
) *FeedService {
	return &FeedService{
		feedCache:  feedCache,
		postRepo:   postRepo,
		followRepo: followRepo,
		userRepo:   userRepo,
		avatars:    avatars,
	}
}

// GetFeed retrieves the user's feed with cursor-based pagination.
//
// Flow: check cache, warm it on miss from the database, read a page of
// post IDs from the sorted set, hydrate full rows from Postgres, and
// derive the next cursor from the last post's score.
func (s *FeedService) GetFeed(ctx context.Context, userID int64, cursor *string, limit int) (*model.FeedResponse, error) {
	if limit <= 0 {
		limit = FeedDefaultLimit
	}
	if limit > FeedMaxLimit {
		limit = FeedMaxLimit
	}

	exists, err := s.feedCache.Exists(ctx, userID)
	if err != nil {
		log.Printf("[FeedService] Cache check failed for user=%d: %v", userID, err)
	}

	if !exists {
		if err := s.warmCache(ctx, userID); err != nil {
			log.Printf("[FeedService] Cache warm failed for user=%d: %v", userID, err)
		}
	}

	var cursorScore *float64
	if cursor != nil {
		score, _, err := parseFeedCursor(*cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
		cursorScore = &score
	}

	postIDs, scores, err := s.feedCache.GetFeed(ctx, userID, cursorScore, limit)
	if err != nil {
		return nil, fmt.Errorf("get feed from cache: %w", err)
	}

	if len(postIDs) == 0 {
		return &model.FeedResponse{Posts: []model.FeedPost{}}, nil
	}

	posts, err := s.hydratePosts(ctx, userID, postIDs)
	if err != nil {
		return nil, fmt.Errorf("hydrate posts: %w", err)
	}

	// Paginate on the cache read, not the hydrated count: soft-deleted
	// posts hydrate to nothing but older entries may still follow.
	var nextCursor *string
	hasMore := len(postIDs) == limit
	if hasMore {
		c := formatFeedCursor(scores[len(scores)-1], postIDs[len(postIDs)-1])
		nextCursor = &c
	}

	return &model.FeedResponse{
		Posts:      posts,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// warmCache populates the user's feed cache from the database.
func (s *FeedService) warmCache(ctx context.Context, userID int64) error {
	followedIDs, err := s.followRepo.GetFollowedIDs(ctx, userID)
	if err != nil {
		return fmt.Errorf("get followed ids: %w", err)
	}

	// A user's own posts belong in their feed too
	followedIDs = append(followedIDs, userID)

	posts, err := s.postRepo.GetFeedPostIDs(ctx, followedIDs, CacheWarmLimit)
	if err != nil {
		return fmt.Errorf("get feed post ids: %w", err)
	}

	if len(posts) == 0 {
		return nil
	}

	if err := s.feedCache.WarmCache(ctx, userID, posts); err != nil {
		return fmt.Errorf("warm cache: %w", err)
	}

	log.Printf("[FeedService] Cache warmed: user=%d posts=%d", userID, len(posts))
	return nil
}

// hydratePosts fetches full post rows and enriches them with author info
// and the viewer's follow status.
func (s *FeedService) hydratePosts(ctx context.Context, viewerID int64, postIDs []int64) ([]model.FeedPost, error) {
	posts, err := s.postRepo.GetByIDs(ctx, postIDs)
	if err != nil {
		return nil, fmt.Errorf("get posts by ids: %w", err)
	}

	authorIDSet := make(map[int64]struct{})
	for _, p := range posts {
		authorIDSet[p.UserID] = struct{}{}
	}
	authorIDs := make([]int64, 0, len(authorIDSet))
	for id := range authorIDSet {
		authorIDs = append(authorIDs, id)
	}

	authors := make(map[int64]model.UserSummary)
	for _, authorID := range authorIDs {
		user, err := s.userRepo.GetByID(ctx, authorID)
		if err != nil {
			log.Printf("[FeedService] Failed to get author %d: %v", authorID, err)
			continue
		}
		authors[authorID] = model.UserSummary{
			ID:        user.ID,
			Username:  user.Username,
			AvatarURL: s.avatars.URL(user.Email, ListAvatarSize),
		}
	}

	followStatus, err := s.followRepo.CheckFollows(ctx, viewerID, authorIDs)
	if err != nil {
		log.Printf("[FeedService] Failed to check follows: %v", err)
	}

	feedPosts := make([]model.FeedPost, len(posts))
	for i, p := range posts {
		author := authors[p.UserID]
		if followStatus != nil {
			author.IsFollowing = followStatus[p.UserID]
		}
		feedPosts[i] = model.FeedPost{
			Post:   p,
			Author: author,
		}
	}

	return feedPosts, nil
}

// parseFeedCursor parses an "id:timestamp" cursor into (score, id).
func parseFeedCursor(cursor string) (float64, int64, error) {
	parts := strings.Split(cursor, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid cursor format, expected id:timestamp")
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid post id in cursor: %w", err)
	}

	score, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid timestamp in cursor: %w", err)
	}

	return score, id, nil
}

// formatFeedCursor creates an "id:timestamp" cursor.
func formatFeedCursor(score float64, id int64) string {
	return fmt.Sprintf("%d:%.0f", id, score)
}
