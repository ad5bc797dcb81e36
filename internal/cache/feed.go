package cache

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// FeedCachePrefix is the key prefix for user feed caches
	FeedCachePrefix = "feed:user:"

	// FeedCacheCap is the maximum number of posts to cache per user
	FeedCacheCap = 500

	// FeedCacheTTL is the TTL for feed cache (7 days)
	FeedCacheTTL = 7 * 24 * time.Hour
)

// PostScore is a post ID with its creation time as a sorted-set score.
type PostScore struct {
	PostID    int64
	Timestamp int64 // Unix timestamp
}

// FeedCache defines the interface for feed cache operations.
// Using an interface enables testing with mocks and potential future backends.
type FeedCache interface {
	// AddPost adds a post to a user's feed cache.
	AddPost(ctx context.Context, userID, postID int64, timestamp int64) error

	// RemovePost removes a post from a user's feed cache.
	RemovePost(ctx context.Context, userID, postID int64) error

	// GetFeed retrieves post IDs from a user's feed cache, newest first.
	// A nil cursorScore starts from the top; otherwise only posts with a
	// score strictly below the cursor are returned.
	GetFeed(ctx context.Context, userID int64, cursorScore *float64, limit int) (postIDs []int64, scores []float64, err error)

	// WarmCache bulk-inserts posts into a user's feed cache.
	WarmCache(ctx context.Context, userID int64, posts []PostScore) error

	// Exists checks if a user has a feed cache entry. False means the key
	// is missing (new user or TTL expired) and the service should warm it.
	Exists(ctx context.Context, userID int64) (bool, error)
}

// RedisFeedCache implements FeedCache using Redis Sorted Sets keyed per user,
// post creation time as score.
type RedisFeedCache struct {
	client *redis.Client
}

// NewFeedCache creates a new FeedCache backed by Redis.
func NewFeedCache(client *redis.Client) FeedCache {
	return &RedisFeedCache{client: client}
}

func feedKey(userID int64) string {
	return fmt.Sprintf("%s%d", FeedCachePrefix, userID)
}

// AddPost adds a post via pipeline: ZADD, trim to cap, refresh TTL.
func (c *RedisFeedCache) AddPost(ctx context.Context, userID, postID int64, timestamp int64) error {
	key := feedKey(userID)

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(timestamp),
		Member: strconv.FormatInt(postID, 10),
	})
	// ZREMRANGEBYRANK keeps only the FeedCacheCap newest scores
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-FeedCacheCap-1))
	pipe.Expire(ctx, key, FeedCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[FeedCache] AddPost FAILED: user=%d post=%d err=%v", userID, postID, err)
		return fmt.Errorf("add post to feed: %w", err)
	}
	return nil
}

// RemovePost removes a post from a user's feed cache.
func (c *RedisFeedCache) RemovePost(ctx context.Context, userID, postID int64) error {
	key := feedKey(userID)
	member := strconv.FormatInt(postID, 10)

	if err := c.client.ZRem(ctx, key, member).Err(); err != nil {
		log.Printf("[FeedCache] RemovePost FAILED: user=%d post=%d err=%v", userID, postID, err)
		return fmt.Errorf("remove post from feed: %w", err)
	}
	return nil
}

// GetFeed retrieves post IDs newest first. With a cursor it uses an
// exclusive upper bound so the page after the cursor never repeats it.
func (c *RedisFeedCache) GetFeed(ctx context.Context, userID int64, cursorScore *float64, limit int) ([]int64, []float64, error) {
	key := feedKey(userID)

	var results []redis.Z
	var err error

	if cursorScore == nil {
		results, err = c.client.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	} else {
		results, err = c.client.ZRevRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
			Min:    "-inf",
			Max:    fmt.Sprintf("(%f", *cursorScore), // "(" marks the bound exclusive
			Offset: 0,
			Count:  int64(limit),
		}).Result()
	}
	if err != nil {
		log.Printf("[FeedCache] GetFeed FAILED: user=%d err=%v", userID, err)
		return nil, nil, fmt.Errorf("get feed: %w", err)
	}

	// Refresh TTL on access
	c.client.Expire(ctx, key, FeedCacheTTL)

	postIDs := make([]int64, len(results))
	scores := make([]float64, len(results))
	for i, z := range results {
		id, err := strconv.ParseInt(z.Member.(string), 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("parse post id: %w", err)
		}
		postIDs[i] = id
		scores[i] = z.Score
	}

	return postIDs, scores, nil
}

// WarmCache bulk-inserts posts using a single pipeline.
func (c *RedisFeedCache) WarmCache(ctx context.Context, userID int64, posts []PostScore) error {
	if len(posts) == 0 {
		return nil
	}

	key := feedKey(userID)

	members := make([]redis.Z, len(posts))
	for i, p := range posts {
		members[i] = redis.Z{
			Score:  float64(p.Timestamp),
			Member: strconv.FormatInt(p.PostID, 10),
		}
	}

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, members...)
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-FeedCacheCap-1))
	pipe.Expire(ctx, key, FeedCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[FeedCache] WarmCache FAILED: user=%d posts=%d err=%v", userID, len(posts), err)
		return fmt.Errorf("warm cache: %w", err)
	}

	log.Printf("[FeedCache] WarmCache OK: user=%d posts=%d", userID, len(posts))
	return nil
}

// Exists checks if a user has a feed cache entry.
func (c *RedisFeedCache) Exists(ctx context.Context, userID int64) (bool, error) {
	exists, err := c.client.Exists(ctx, feedKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("check cache exists: %w", err)
	}
	return exists > 0, nil
}
