package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"microblog/internal/avatar"
	"microblog/internal/cache"
	"microblog/internal/model"
	"microblog/internal/queue"
)

type mockPostRepository struct {
	createFn         func(ctx context.Context, userID int64, body string) (*model.Post, error)
	getByIDFn        func(ctx context.Context, postID int64) (*model.Post, error)
	getByIDsFn       func(ctx context.Context, postIDs []int64) ([]model.Post, error)
	deleteFn         func(ctx context.Context, postID, userID int64) error
	getByUserFn      func(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.Post, *time.Time, error)
	getFeedPostIDsFn func(ctx context.Context, authorIDs []int64, limit int) ([]cache.PostScore, error)
}

func (m *mockPostRepository) Create(ctx context.Context, userID int64, body string) (*model.Post, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, body)
	}
	return &model.Post{ID: 1, UserID: userID, Body: body, CreatedAt: time.Now()}, nil
}

func (m *mockPostRepository) GetByID(ctx context.Context, postID int64) (*model.Post, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, postID)
	}
	return nil, model.ErrPostNotFound
}

func (m *mockPostRepository) GetByIDs(ctx context.Context, postIDs []int64) ([]model.Post, error) {
	if m.getByIDsFn != nil {
		return m.getByIDsFn(ctx, postIDs)
	}
	return nil, nil
}

func (m *mockPostRepository) Delete(ctx context.Context, postID, userID int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, postID, userID)
	}
	return nil
}

func (m *mockPostRepository) GetByUser(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.Post, *time.Time, error) {
	if m.getByUserFn != nil {
		return m.getByUserFn(ctx, userID, cursor, limit)
	}
	return nil, nil, nil
}

func (m *mockPostRepository) GetRecentPostsByUser(ctx context.Context, userID int64, limit int) ([]cache.PostScore, error) {
	return nil, nil
}

func (m *mockPostRepository) GetFeedPostIDs(ctx context.Context, authorIDs []int64, limit int) ([]cache.PostScore, error) {
	if m.getFeedPostIDsFn != nil {
		return m.getFeedPostIDsFn(ctx, authorIDs, limit)
	}
	return nil, nil
}

// mockPublisher records every event published to the stream.
type mockPublisher struct {
	events []queue.FeedEvent
}

func (m *mockPublisher) Publish(ctx context.Context, stream string, event queue.FeedEvent) (string, error) {
	m.events = append(m.events, event)
	return "1-0", nil
}

func newTestPostService(repo *mockPostRepository, userRepo *mockUserRepository, pub *mockPublisher) *PostService {
	if userRepo == nil {
		userRepo = &mockUserRepository{}
	}
	return NewPostService(repo, userRepo, pub, avatar.New("", nil))
}

// =============================================================================
// CREATE TESTS
// =============================================================================

func TestPostService_Create(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{name: "single character", body: "x", wantErr: nil},
		{name: "at limit", body: strings.Repeat("a", 140), wantErr: nil},
		{name: "empty", body: "", wantErr: model.ErrEmptyBody},
		{name: "over limit", body: strings.Repeat("a", 141), wantErr: model.ErrBodyTooLong},
		// Length is counted in runes, not bytes
		{name: "140 multibyte runes", body: strings.Repeat("ü", 140), wantErr: nil},
		{name: "141 multibyte runes", body: strings.Repeat("ü", 141), wantErr: model.ErrBodyTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			svc := newTestPostService(&mockPostRepository{}, nil, pub)

			post, err := svc.Create(context.Background(), 1, model.CreatePostRequest{Body: tt.body})

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				if len(pub.events) != 0 {
					t.Error("no event should be published for a rejected post")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if post.Body != tt.body {
				t.Errorf("body = %q, want %q", post.Body, tt.body)
			}

			if len(pub.events) != 1 {
				t.Fatalf("published %d events, want 1", len(pub.events))
			}
			if pub.events[0].Type != queue.EventPostCreated {
				t.Errorf("event type = %q, want %q", pub.events[0].Type, queue.EventPostCreated)
			}
		})
	}
}

func TestPostService_Create_RepoError(t *testing.T) {
	dbError := errors.New("insert failed")
	repo := &mockPostRepository{
		createFn: func(ctx context.Context, userID int64, body string) (*model.Post, error) {
			return nil, dbError
		},
	}
	pub := &mockPublisher{}
	svc := newTestPostService(repo, nil, pub)

	_, err := svc.Create(context.Background(), 1, model.CreatePostRequest{Body: "hello"})
	if !errors.Is(err, dbError) {
		t.Errorf("error = %v, want %v", err, dbError)
	}
	if len(pub.events) != 0 {
		t.Error("no event should be published when the insert fails")
	}
}

// =============================================================================
// DELETE TESTS
// =============================================================================

func TestPostService_Delete(t *testing.T) {
	tests := []struct {
		name      string
		deleteErr error
		wantEvent bool
	}{
		{name: "owner deletes", deleteErr: nil, wantEvent: true},
		{name: "not the owner", deleteErr: model.ErrNotPostOwner, wantEvent: false},
		{name: "missing post", deleteErr: model.ErrPostNotFound, wantEvent: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockPostRepository{
				deleteFn: func(ctx context.Context, postID, userID int64) error {
					return tt.deleteErr
				},
			}
			pub := &mockPublisher{}
			svc := newTestPostService(repo, nil, pub)

			err := svc.Delete(context.Background(), 5, 1)

			if tt.deleteErr != nil {
				if !errors.Is(err, tt.deleteErr) {
					t.Errorf("error = %v, want %v", err, tt.deleteErr)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			gotEvent := len(pub.events) == 1 && pub.events[0].Type == queue.EventPostDeleted
			if gotEvent != tt.wantEvent {
				t.Errorf("event published = %v, want %v", gotEvent, tt.wantEvent)
			}
		})
	}
}

// =============================================================================
// LIST TESTS
// =============================================================================

func TestPostService_GetUserPosts_UnknownUser(t *testing.T) {
	svc := newTestPostService(&mockPostRepository{}, &mockUserRepository{}, nil)

	_, err := svc.GetUserPosts(context.Background(), 999, nil, 20)
	if !errors.Is(err, model.ErrUserNotFound) {
		t.Errorf("error = %v, want %v", err, model.ErrUserNotFound)
	}
}

func TestPostService_GetUserPosts_Pagination(t *testing.T) {
	now := time.Now()
	userRepo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*model.User, error) {
			return &model.User{ID: id, Username: "susan"}, nil
		},
	}

	var gotLimit int
	repo := &mockPostRepository{
		getByUserFn: func(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.Post, *time.Time, error) {
			gotLimit = limit
			return []model.Post{{ID: 1, UserID: userID, Body: "hi", CreatedAt: now}}, &now, nil
		},
	}
	svc := newTestPostService(repo, userRepo, nil)

	resp, err := svc.GetUserPosts(context.Background(), 1, nil, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Requested limit is clamped to the maximum
	if gotLimit != PostsMaxLimit {
		t.Errorf("limit passed to repo = %d, want %d", gotLimit, PostsMaxLimit)
	}

	if !resp.HasMore {
		t.Error("expected has_more when repo returns a next cursor")
	}
	if resp.NextCursor == nil {
		t.Fatal("expected a next cursor")
	}
	if _, err := time.Parse(time.RFC3339Nano, *resp.NextCursor); err != nil {
		t.Errorf("next cursor %q is not RFC3339Nano: %v", *resp.NextCursor, err)
	}
}
