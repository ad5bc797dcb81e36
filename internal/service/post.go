package service

import (
	"context"
	"log"
	"time"
	"unicode/utf8"

	"microblog/internal/avatar"
	"microblog/internal/model"
	"microblog/internal/queue"
	"microblog/internal/repository"
)

const (
	// PostsDefaultLimit is the default page size for a user's post list
	PostsDefaultLimit = 20

	// PostsMaxLimit is the maximum page size for a user's post list
	PostsMaxLimit = 100
)

// PostService handles business logic for posts.
type PostService struct {
	repo      repository.PostRepository
	userRepo  repository.UserRepository
	publisher queue.Publisher
	avatars   *avatar.Service
}

func NewPostService(
	repo repository.PostRepository,
	userRepo repository.UserRepository,
	publisher queue.Publisher,
	avatars *avatar.Service,
) *PostService {
	return &PostService{
		repo:      repo,
		userRepo:  userRepo,
		publisher: publisher,
		avatars:   avatars,
	}
}

// Create publishes a new post for the user. Body bounds are enforced here
// as well as in the form layer; posts are immutable once created.
func (s *PostService) Create(ctx context.Context, userID int64, req model.CreatePostRequest) (*model.Post, error) {
	length := utf8.RuneCountInString(req.Body)
	if length < model.MinPostBodyLength {
		return nil, model.ErrEmptyBody
	}
	if length > model.MaxPostBodyLength {
		return nil, model.ErrBodyTooLong
	}

	post, err := s.repo.Create(ctx, userID, req.Body)
	if err != nil {
		return nil, err
	}

	// Publish after commit; the worker fans the post out to follower feeds
	if s.publisher != nil {
		event := queue.NewPostCreatedEvent(post.ID, userID)
		if _, err := s.publisher.Publish(ctx, queue.StreamFeed, event); err != nil {
			log.Printf("[PostService] Failed to publish PostCreated: post=%d author=%d err=%v",
				post.ID, userID, err)
		}
	}

	return post, nil
}

// GetByID retrieves a single post with its author attached.
func (s *PostService) GetByID(ctx context.Context, postID int64) (*model.Post, error) {
	post, err := s.repo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	if author, err := s.userRepo.GetByID(ctx, post.UserID); err == nil {
		post.Author = &model.UserSummary{
			ID:        author.ID,
			Username:  author.Username,
			AvatarURL: s.avatars.URL(author.Email, ListAvatarSize),
		}
	}

	return post, nil
}

// Delete soft-deletes a post owned by the user and tells the worker to
// withdraw it from follower feeds.
func (s *PostService) Delete(ctx context.Context, postID, userID int64) error {
	if err := s.repo.Delete(ctx, postID, userID); err != nil {
		return err
	}

	if s.publisher != nil {
		event := queue.NewPostDeletedEvent(postID, userID)
		if _, err := s.publisher.Publish(ctx, queue.StreamFeed, event); err != nil {
			log.Printf("[PostService] Failed to publish PostDeleted: post=%d author=%d err=%v",
				postID, userID, err)
		}
	}

	return nil
}

// GetUserPosts lists a user's own posts, newest first, cursor-paginated.
func (s *PostService) GetUserPosts(ctx context.Context, userID int64, cursor *time.Time, limit int) (*model.PostListResponse, error) {
	if limit <= 0 {
		limit = PostsDefaultLimit
	}
	if limit > PostsMaxLimit {
		limit = PostsMaxLimit
	}

	// 404 for an unknown user rather than an empty list
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	posts, nextCursor, err := s.repo.GetByUser(ctx, userID, cursor, limit)
	if err != nil {
		return nil, err
	}

	var nextCursorStr *string
	if nextCursor != nil {
		str := nextCursor.Format(time.RFC3339Nano)
		nextCursorStr = &str
	}

	return &model.PostListResponse{
		Posts:      posts,
		NextCursor: nextCursorStr,
		HasMore:    nextCursor != nil,
	}, nil
}
