package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"

	"microblog/internal/avatar"
	"microblog/internal/model"
	"microblog/internal/queue"
	"microblog/internal/repository"
)

const (
	// FollowListDefaultLimit is the default page size for follower/following lists
	FollowListDefaultLimit = 20

	// FollowListMaxLimit is the maximum page size for follower/following lists
	FollowListMaxLimit = 100
)

// FollowService manages the follow edge set. Edge insert/delete and the
// denormalized counters move in one transaction; feed cache upkeep happens
// asynchronously via the event stream after commit.
type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	db         *sqlx.DB
	publisher  queue.Publisher
	avatars    *avatar.Service
}

func NewFollowService(
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	db *sqlx.DB,
	publisher queue.Publisher,
	avatars *avatar.Service,
) *FollowService {
	return &FollowService{
		followRepo: followRepo,
		userRepo:   userRepo,
		db:         db,
		publisher:  publisher,
		avatars:    avatars,
	}
}

// Follow adds the (follower, followed) edge. Self-follows are rejected and
// a duplicate edge surfaces as ErrAlreadyFollowing via the composite key.
func (s *FollowService) Follow(ctx context.Context, followerID, followedID int64) error {
	if followerID == followedID {
		return model.ErrCannotFollowSelf
	}

	if _, err := s.userRepo.GetByID(ctx, followedID); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted, err := s.followRepo.Create(ctx, tx, followerID, followedID)
	if err != nil {
		return err
	}
	if !inserted {
		return model.ErrAlreadyFollowing
	}

	if err := s.userRepo.IncrementFollowerCount(ctx, tx, followedID, 1); err != nil {
		return err
	}
	if err := s.userRepo.IncrementFollowingCount(ctx, tx, followerID, 1); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	// Publish after commit so the worker never sees an uncommitted edge
	if s.publisher != nil {
		event := queue.NewUserFollowedEvent(followerID, followedID)
		if _, err := s.publisher.Publish(ctx, queue.StreamFeed, event); err != nil {
			log.Printf("[FollowService] Failed to publish UserFollowed: follower=%d followed=%d err=%v",
				followerID, followedID, err)
		}
	}

	return nil
}

// Unfollow removes the (follower, followed) edge.
func (s *FollowService) Unfollow(ctx context.Context, followerID, followedID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.followRepo.Delete(ctx, tx, followerID, followedID); err != nil {
		return err
	}

	if err := s.userRepo.IncrementFollowerCount(ctx, tx, followedID, -1); err != nil {
		return err
	}
	if err := s.userRepo.IncrementFollowingCount(ctx, tx, followerID, -1); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	if s.publisher != nil {
		event := queue.NewUserUnfollowedEvent(followerID, followedID)
		if _, err := s.publisher.Publish(ctx, queue.StreamFeed, event); err != nil {
			log.Printf("[FollowService] Failed to publish UserUnfollowed: follower=%d followed=%d err=%v",
				followerID, followedID, err)
		}
	}

	return nil
}

// GetFollowers lists who follows the user, cursor-paginated, enriched with
// avatar URLs and (when a viewer is known) the viewer's follow status.
func (s *FollowService) GetFollowers(ctx context.Context, userID int64, cursor *time.Time, limit int, viewerID *int64) (*model.FollowListResponse, error) {
	users, nextCursor, err := s.followRepo.GetFollowers(ctx, userID, cursor, limit)
	if err != nil {
		return nil, err
	}
	return s.buildListResponse(ctx, users, nextCursor, viewerID), nil
}

// GetFollowing lists who the user follows. See GetFollowers.
func (s *FollowService) GetFollowing(ctx context.Context, userID int64, cursor *time.Time, limit int, viewerID *int64) (*model.FollowListResponse, error) {
	users, nextCursor, err := s.followRepo.GetFollowing(ctx, userID, cursor, limit)
	if err != nil {
		return nil, err
	}
	return s.buildListResponse(ctx, users, nextCursor, viewerID), nil
}

func (s *FollowService) buildListResponse(ctx context.Context, users []model.UserSummary, nextCursor *time.Time, viewerID *int64) *model.FollowListResponse {
	for i := range users {
		users[i].AvatarURL = s.avatars.URL(users[i].Email, ListAvatarSize)
	}

	if viewerID != nil {
		users = s.enrichWithFollowStatus(ctx, *viewerID, users)
	}

	var nextCursorStr *string
	if nextCursor != nil {
		str := nextCursor.Format(time.RFC3339Nano)
		nextCursorStr = &str
	}

	return &model.FollowListResponse{
		Users:      users,
		NextCursor: nextCursorStr,
		HasMore:    nextCursor != nil,
	}
}

// enrichWithFollowStatus batch-checks which listed users the viewer
// follows: one query, not N. If the check fails the list is returned with
// is_following=false rather than failing the request.
func (s *FollowService) enrichWithFollowStatus(ctx context.Context, viewerID int64, users []model.UserSummary) []model.UserSummary {
	if len(users) == 0 {
		return users
	}

	userIDs := make([]int64, len(users))
	for i, user := range users {
		userIDs[i] = user.ID
	}

	followMap, err := s.followRepo.CheckFollows(ctx, viewerID, userIDs)
	if err != nil {
		return users
	}

	for i := range users {
		users[i].IsFollowing = followMap[users[i].ID]
	}

	return users
}
