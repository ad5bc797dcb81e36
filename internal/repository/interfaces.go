package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"microblog/internal/cache"
	"microblog/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdateProfile(ctx context.Context, id int64, username string, aboutMe *string) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	TouchLastSeen(ctx context.Context, id int64) error
	IncrementFollowerCount(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error
	IncrementFollowingCount(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error
}

type PostRepository interface {
	Create(ctx context.Context, userID int64, body string) (*model.Post, error)
	GetByID(ctx context.Context, postID int64) (*model.Post, error)
	GetByIDs(ctx context.Context, postIDs []int64) ([]model.Post, error)
	Delete(ctx context.Context, postID, userID int64) error
	GetByUser(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.Post, *time.Time, error)
	GetRecentPostsByUser(ctx context.Context, userID int64, limit int) ([]cache.PostScore, error)
	GetFeedPostIDs(ctx context.Context, authorIDs []int64, limit int) ([]cache.PostScore, error)
}

type FollowRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, followerID, followedID int64) (bool, error)
	Delete(ctx context.Context, tx *sqlx.Tx, followerID, followedID int64) error
	Exists(ctx context.Context, followerID, followedID int64) (bool, error)
	GetFollowers(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error)
	GetFollowing(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error)
	CheckFollows(ctx context.Context, followerID int64, followedIDs []int64) (map[int64]bool, error)
	GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error)
	GetFollowedIDs(ctx context.Context, userID int64) ([]int64, error)
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	Revoke(ctx context.Context, id string, replacedBy *string) error
	RevokeAllForUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}
