package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"microblog/internal/model"
)

type followRepository struct {
	db *sqlx.DB
}

func NewFollowRepository(db *sqlx.DB) FollowRepository {
	return &followRepository{db: db}
}

// Create inserts a follow edge. The composite primary key makes a duplicate
// follow a no-op; the bool reports whether a row was actually inserted.
func (r *followRepository) Create(ctx context.Context, tx *sqlx.Tx, followerID, followedID int64) (bool, error) {
	query := `
		INSERT INTO followers (follower_id, followed_id)
		VALUES ($1, $2)
		ON CONFLICT (follower_id, followed_id) DO NOTHING
	`
	result, err := tx.ExecContext(ctx, query, followerID, followedID)
	if err != nil {
		return false, fmt.Errorf("failed to create follow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *followRepository) Delete(ctx context.Context, tx *sqlx.Tx, followerID, followedID int64) error {
	query := `DELETE FROM followers WHERE follower_id = $1 AND followed_id = $2`
	result, err := tx.ExecContext(ctx, query, followerID, followedID)
	if err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrNotFollowing
	}

	return nil
}

func (r *followRepository) Exists(ctx context.Context, followerID, followedID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM followers WHERE follower_id = $1 AND followed_id = $2)`
	var exists bool
	err := r.db.GetContext(ctx, &exists, query, followerID, followedID)
	if err != nil {
		return false, fmt.Errorf("failed to check follow existence: %w", err)
	}
	return exists, nil
}

// GetFollowers retrieves users who follow the specified user with
// cursor-based pagination on the edge's created_at. We fetch limit+1 rows:
// getting more than limit means another page exists, and the last kept
// row's timestamp becomes the next cursor. Cursor pagination stays
// consistent when new followers arrive mid-pagination and seeks via the
// (followed_id, created_at DESC) index instead of scanning an offset.
func (r *followRepository) GetFollowers(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
	var query string
	var args []interface{}

	if cursor == nil {
		query = `
			SELECT u.id, u.username, u.email, f.created_at
			FROM followers f
			JOIN users u ON u.id = f.follower_id
			WHERE f.followed_id = $1
			ORDER BY f.created_at DESC
			LIMIT $2
		`
		args = []interface{}{userID, limit + 1}
	} else {
		query = `
			SELECT u.id, u.username, u.email, f.created_at
			FROM followers f
			JOIN users u ON u.id = f.follower_id
			WHERE f.followed_id = $1 AND f.created_at < $2
			ORDER BY f.created_at DESC
			LIMIT $3
		`
		args = []interface{}{userID, cursor, limit + 1}
	}

	return r.selectEdgeUsers(ctx, query, args, limit)
}

// GetFollowing retrieves users that the specified user follows with
// cursor-based pagination. See GetFollowers for the cursor scheme.
func (r *followRepository) GetFollowing(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
	var query string
	var args []interface{}

	if cursor == nil {
		query = `
			SELECT u.id, u.username, u.email, f.created_at
			FROM followers f
			JOIN users u ON u.id = f.followed_id
			WHERE f.follower_id = $1
			ORDER BY f.created_at DESC
			LIMIT $2
		`
		args = []interface{}{userID, limit + 1}
	} else {
		query = `
			SELECT u.id, u.username, u.email, f.created_at
			FROM followers f
			JOIN users u ON u.id = f.followed_id
			WHERE f.follower_id = $1 AND f.created_at < $2
			ORDER BY f.created_at DESC
			LIMIT $3
		`
		args = []interface{}{userID, cursor, limit + 1}
	}

	return r.selectEdgeUsers(ctx, query, args, limit)
}

func (r *followRepository) selectEdgeUsers(ctx context.Context, query string, args []interface{}, limit int) ([]model.UserSummary, *time.Time, error) {
	type userWithTime struct {
		model.UserSummary
		CreatedAt time.Time `db:"created_at"`
	}

	var results []userWithTime
	err := r.db.SelectContext(ctx, &results, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get follow edge users: %w", err)
	}

	var users []model.UserSummary
	var nextCursor *time.Time

	if len(results) > limit {
		results = results[:limit]
		nextCursor = &results[len(results)-1].CreatedAt
	}

	for _, result := range results {
		users = append(users, result.UserSummary)
	}

	return users, nextCursor, nil
}

// CheckFollows batch-checks which of the given users the follower follows.
// One query with ANY($2) instead of N lookups.
func (r *followRepository) CheckFollows(ctx context.Context, followerID int64, followedIDs []int64) (map[int64]bool, error) {
	if len(followedIDs) == 0 {
		return make(map[int64]bool), nil
	}

	query := `SELECT followed_id FROM followers WHERE follower_id = $1 AND followed_id = ANY($2)`
	var found []int64
	err := r.db.SelectContext(ctx, &found, query, followerID, pq.Array(followedIDs))
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check follows: %w", err)
	}

	result := make(map[int64]bool)
	for _, id := range followedIDs {
		result[id] = false
	}
	for _, id := range found {
		result[id] = true
	}

	return result, nil
}

func (r *followRepository) GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	query := `SELECT follower_id FROM followers WHERE followed_id = $1`
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get follower ids: %w", err)
	}
	return ids, nil
}

func (r *followRepository) GetFollowedIDs(ctx context.Context, userID int64) ([]int64, error) {
	query := `SELECT followed_id FROM followers WHERE follower_id = $1`
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get followed ids: %w", err)
	}
	return ids, nil
}
