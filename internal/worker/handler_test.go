package worker

import (
	"context"
	"sort"
	"testing"

	"microblog/internal/cache"
	"microblog/internal/queue"
)

// =============================================================================
// Mock Implementations
// =============================================================================

// memFeedCache is an in-memory FeedCache for unit tests: one sorted set
// of (postID -> score) per user.
type memFeedCache struct {
	feeds map[int64]map[int64]int64 // userID -> postID -> timestamp
}

func newMemFeedCache() *memFeedCache {
	return &memFeedCache{feeds: make(map[int64]map[int64]int64)}
}

func (m *memFeedCache) touch(userID int64) map[int64]int64 {
	if m.feeds[userID] == nil {
		m.feeds[userID] = make(map[int64]int64)
	}
	return m.feeds[userID]
}

func (m *memFeedCache) AddPost(ctx context.Context, userID, postID int64, timestamp int64) error {
	m.touch(userID)[postID] = timestamp
	return nil
}

func (m *memFeedCache) RemovePost(ctx context.Context, userID, postID int64) error {
	delete(m.touch(userID), postID)
	return nil
}

func (m *memFeedCache) GetFeed(ctx context.Context, userID int64, cursorScore *float64, limit int) ([]int64, []float64, error) {
	feed := m.touch(userID)
	ids := make([]int64, 0, len(feed))
	for id := range feed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return feed[ids[i]] > feed[ids[j]] })

	postIDs := make([]int64, 0, limit)
	scores := make([]float64, 0, limit)
	for _, id := range ids {
		score := float64(feed[id])
		if cursorScore != nil && score >= *cursorScore {
			continue
		}
		postIDs = append(postIDs, id)
		scores = append(scores, score)
		if len(postIDs) == limit {
			break
		}
	}
	return postIDs, scores, nil
}

func (m *memFeedCache) WarmCache(ctx context.Context, userID int64, posts []cache.PostScore) error {
	feed := m.touch(userID)
	for _, p := range posts {
		feed[p.PostID] = p.Timestamp
	}
	return nil
}

func (m *memFeedCache) Exists(ctx context.Context, userID int64) (bool, error) {
	return len(m.feeds[userID]) > 0, nil
}

// mockFollowerProvider simulates the follower repository.
type mockFollowerProvider struct {
	followers map[int64][]int64 // userID -> follower IDs
}

func (m *mockFollowerProvider) GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	return m.followers[userID], nil
}

// mockPostsProvider simulates the posts repository.
type mockPostsProvider struct {
	posts map[int64][]cache.PostScore // authorID -> recent posts
}

func (m *mockPostsProvider) GetRecentPostsByUser(ctx context.Context, userID int64, limit int) ([]cache.PostScore, error) {
	posts := m.posts[userID]
	if len(posts) > limit {
		return posts[:limit], nil
	}
	return posts, nil
}

// =============================================================================
// Fan-out tests
// =============================================================================

func TestHandler_PostCreated_FanOut(t *testing.T) {
	feedCache := newMemFeedCache()
	followers := &mockFollowerProvider{followers: map[int64][]int64{
		1: {2, 3}, // users 2 and 3 follow user 1
	}}
	h := NewHandler(feedCache, followers, &mockPostsProvider{})

	event := queue.NewPostCreatedEvent(100, 1)
	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Both followers and the author see the post
	for _, userID := range []int64{1, 2, 3} {
		if _, ok := feedCache.touch(userID)[100]; !ok {
			t.Errorf("post 100 missing from user %d's feed", userID)
		}
	}

	// A non-follower does not
	if _, ok := feedCache.touch(4)[100]; ok {
		t.Error("post 100 leaked into a non-follower's feed")
	}
}

func TestHandler_PostDeleted_Withdraw(t *testing.T) {
	feedCache := newMemFeedCache()
	followers := &mockFollowerProvider{followers: map[int64][]int64{
		1: {2},
	}}
	h := NewHandler(feedCache, followers, &mockPostsProvider{})

	if err := h.HandleEvent(context.Background(), queue.NewPostCreatedEvent(100, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.HandleEvent(context.Background(), queue.NewPostDeletedEvent(100, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, userID := range []int64{1, 2} {
		if _, ok := feedCache.touch(userID)[100]; ok {
			t.Errorf("post 100 still in user %d's feed after delete", userID)
		}
	}
}

func TestHandler_UserFollowed_Backfill(t *testing.T) {
	feedCache := newMemFeedCache()
	posts := &mockPostsProvider{posts: map[int64][]cache.PostScore{
		2: {{PostID: 201, Timestamp: 1000}, {PostID: 202, Timestamp: 2000}},
	}}
	h := NewHandler(feedCache, &mockFollowerProvider{}, posts)

	// Warm cache: follower 1 already has a feed
	feedCache.AddPost(context.Background(), 1, 100, 500)

	if err := h.HandleEvent(context.Background(), queue.NewUserFollowedEvent(1, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	feed := feedCache.touch(1)
	if _, ok := feed[201]; !ok {
		t.Error("backfill missing post 201")
	}
	if _, ok := feed[202]; !ok {
		t.Error("backfill missing post 202")
	}
}

func TestHandler_UserFollowed_ColdCacheSkipsBackfill(t *testing.T) {
	feedCache := newMemFeedCache()
	posts := &mockPostsProvider{posts: map[int64][]cache.PostScore{
		2: {{PostID: 201, Timestamp: 1000}},
	}}
	h := NewHandler(feedCache, &mockFollowerProvider{}, posts)

	// Follower 1 has no cache entry; the next feed read warms it with the
	// new edge already in place, so the worker must not create one here.
	if err := h.HandleEvent(context.Background(), queue.NewUserFollowedEvent(1, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exists, _ := feedCache.Exists(context.Background(), 1); exists {
		t.Error("cold cache should stay cold after a follow event")
	}
}

func TestHandler_UserUnfollowed_RemovesPosts(t *testing.T) {
	feedCache := newMemFeedCache()
	posts := &mockPostsProvider{posts: map[int64][]cache.PostScore{
		2: {{PostID: 201, Timestamp: 1000}, {PostID: 202, Timestamp: 2000}},
	}}
	h := NewHandler(feedCache, &mockFollowerProvider{}, posts)

	// Follower 1's feed holds posts from user 2 and one of their own
	feedCache.AddPost(context.Background(), 1, 201, 1000)
	feedCache.AddPost(context.Background(), 1, 202, 2000)
	feedCache.AddPost(context.Background(), 1, 100, 3000)

	if err := h.HandleEvent(context.Background(), queue.NewUserUnfollowedEvent(1, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	feed := feedCache.touch(1)
	if _, ok := feed[201]; ok {
		t.Error("post 201 should be withdrawn after unfollow")
	}
	if _, ok := feed[202]; ok {
		t.Error("post 202 should be withdrawn after unfollow")
	}
	if _, ok := feed[100]; !ok {
		t.Error("unrelated post 100 should survive the unfollow")
	}
}

func TestHandler_UnknownEventType(t *testing.T) {
	h := NewHandler(newMemFeedCache(), &mockFollowerProvider{}, &mockPostsProvider{})

	err := h.HandleEvent(context.Background(), queue.FeedEvent{Type: "bogus"})
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}
}
