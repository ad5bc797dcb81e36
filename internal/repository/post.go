package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"microblog/internal/cache"
	"microblog/internal/model"
)

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts a new post and bumps the author's post count in one
// transaction.
func (r *postRepository) Create(ctx context.Context, userID int64, body string) (*model.Post, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var post model.Post
	query := `
		INSERT INTO posts (user_id, body)
		VALUES ($1, $2)
		RETURNING id, user_id, body, created_at
	`
	err = tx.GetContext(ctx, &post, query, userID, body)
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE users SET post_count = post_count + 1 WHERE id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("increment post count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return &post, nil
}

// GetByID retrieves a single post.
func (r *postRepository) GetByID(ctx context.Context, postID int64) (*model.Post, error) {
	query := `
		SELECT id, user_id, body, created_at
		FROM posts
		WHERE id = $1 AND deleted_at IS NULL
	`
	var post model.Post
	err := r.db.GetContext(ctx, &post, query, postID)
	if err == sql.ErrNoRows {
		return nil, model.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	return &post, nil
}

// GetByIDs retrieves multiple posts by their IDs, preserving input order.
// Used for hydrating the feed from cache.
func (r *postRepository) GetByIDs(ctx context.Context, postIDs []int64) ([]model.Post, error) {
	if len(postIDs) == 0 {
		return []model.Post{}, nil
	}

	query := `
		SELECT id, user_id, body, created_at
		FROM posts
		WHERE id = ANY($1) AND deleted_at IS NULL
	`
	var posts []model.Post
	err := r.db.SelectContext(ctx, &posts, query, pq.Array(postIDs))
	if err != nil {
		return nil, fmt.Errorf("get posts by ids: %w", err)
	}

	// Re-order posts to match input order (important for feed ordering)
	postsMap := make(map[int64]model.Post, len(posts))
	for _, p := range posts {
		postsMap[p.ID] = p
	}
	ordered := make([]model.Post, 0, len(postIDs))
	for _, id := range postIDs {
		if p, ok := postsMap[id]; ok {
			ordered = append(ordered, p)
		}
	}

	return ordered, nil
}

// Delete performs a soft delete on a post after verifying ownership.
func (r *postRepository) Delete(ctx context.Context, postID, userID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE posts SET deleted_at = NOW()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, postID, userID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		// Disambiguate not-found from not-owner inside the same tx so a
		// read failure never masquerades as a missing post.
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1 AND deleted_at IS NULL)`, postID); err != nil {
			return fmt.Errorf("check post existence: %w", err)
		}
		if exists {
			return model.ErrNotPostOwner
		}
		return model.ErrPostNotFound
	}

	_, err = tx.ExecContext(ctx, `UPDATE users SET post_count = post_count - 1 WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("decrement post count: %w", err)
	}

	return tx.Commit()
}

// GetByUser retrieves a user's posts with cursor-based pagination, newest
// first. See FollowRepository.GetFollowers for the cursor rationale.
func (r *postRepository) GetByUser(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.Post, *time.Time, error) {
	var query string
	var args []interface{}

	if cursor == nil {
		query = `
			SELECT id, user_id, body, created_at
			FROM posts
			WHERE user_id = $1 AND deleted_at IS NULL
			ORDER BY created_at DESC
			LIMIT $2
		`
		args = []interface{}{userID, limit + 1}
	} else {
		query = `
			SELECT id, user_id, body, created_at
			FROM posts
			WHERE user_id = $1 AND deleted_at IS NULL AND created_at < $2
			ORDER BY created_at DESC
			LIMIT $3
		`
		args = []interface{}{userID, cursor, limit + 1}
	}

	var posts []model.Post
	err := r.db.SelectContext(ctx, &posts, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("get posts by user: %w", err)
	}

	var nextCursor *time.Time
	if len(posts) > limit {
		posts = posts[:limit]
		nextCursor = &posts[len(posts)-1].CreatedAt
	}

	return posts, nextCursor, nil
}

// GetRecentPostsByUser returns recent posts by a user as (postID, timestamp)
// pairs for cache backfill when someone follows them.
func (r *postRepository) GetRecentPostsByUser(ctx context.Context, userID int64, limit int) ([]cache.PostScore, error) {
	query := `
		SELECT id, EXTRACT(EPOCH FROM created_at)::bigint as timestamp
		FROM posts
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2
	`
	type row struct {
		ID        int64 `db:"id"`
		Timestamp int64 `db:"timestamp"`
	}
	var rows []row
	err := r.db.SelectContext(ctx, &rows, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent posts: %w", err)
	}

	scores := make([]cache.PostScore, len(rows))
	for i, rw := range rows {
		scores[i] = cache.PostScore{PostID: rw.ID, Timestamp: rw.Timestamp}
	}
	return scores, nil
}

// GetFeedPostIDs returns the newest post IDs across the given authors,
// used to warm a cold feed cache.
func (r *postRepository) GetFeedPostIDs(ctx context.Context, authorIDs []int64, limit int) ([]cache.PostScore, error) {
	if len(authorIDs) == 0 {
		return []cache.PostScore{}, nil
	}

	query := `
		SELECT id, EXTRACT(EPOCH FROM created_at)::bigint as timestamp
		FROM posts
		WHERE user_id = ANY($1) AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2
	`
	type row struct {
		ID        int64 `db:"id"`
		Timestamp int64 `db:"timestamp"`
	}
	var rows []row
	err := r.db.SelectContext(ctx, &rows, query, pq.Array(authorIDs), limit)
	if err != nil {
		return nil, fmt.Errorf("get feed post ids: %w", err)
	}

	scores := make([]cache.PostScore, len(rows))
	for i, rw := range rows {
		scores[i] = cache.PostScore{PostID: rw.ID, Timestamp: rw.Timestamp}
	}
	return scores, nil
}
