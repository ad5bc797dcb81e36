package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"microblog/internal/model"
)

// userRepository implements UserRepository using sqlx
type userRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, username, email, password_hash, about_me, last_seen,
       follower_count, following_count, post_count, created_at, updated_at`

// Create inserts a new user. The unique indexes on username and email are
// the safety net for concurrent signups: losing the check-then-act race
// surfaces here as ErrUsernameTaken or ErrEmailTaken instead of a silent
// duplicate.
func (r *userRepository) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, about_me, last_seen, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW(), NOW())
		RETURNING id, last_seen, follower_count, following_count, post_count, created_at, updated_at
	`

	row := r.db.QueryRowxContext(ctx, query,
		u.Username,
		u.Email,
		u.PasswordHash,
		u.AboutMe,
	)

	err := row.Scan(
		&u.ID,
		&u.LastSeen,
		&u.FollowerCount,
		&u.FollowingCount,
		&u.PostCount,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if conflict := uniqueViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var u model.User
	err := r.db.GetContext(ctx, &u, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return &u, nil
}

// GetByUsername retrieves a user by their username
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	var u model.User
	err := r.db.GetContext(ctx, &u, query, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}

	return &u, nil
}

// GetByEmail retrieves a user by their email, matched case-insensitively.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	var u model.User
	err := r.db.GetContext(ctx, &u, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &u, nil
}

// ExistsByUsername checks if a username is already taken
func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, username)
	if err != nil {
		return false, fmt.Errorf("failed to check username existence: %w", err)
	}

	return exists, nil
}

// ExistsByEmail checks if an email is already registered
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1))`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, email)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}

	return exists, nil
}

// UpdateProfile stores the editable profile fields.
func (r *userRepository) UpdateProfile(ctx context.Context, id int64, username string, aboutMe *string) error {
	query := `
		UPDATE users SET username = $2, about_me = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, username, aboutMe)
	if err != nil {
		if conflict := uniqueViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *userRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// TouchLastSeen records activity for the user. Called on every
// authenticated request, so it stays a single cheap UPDATE.
func (r *userRepository) TouchLastSeen(ctx context.Context, id int64) error {
	query := `UPDATE users SET last_seen = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to touch last_seen: %w", err)
	}
	return nil
}

func (r *userRepository) IncrementFollowerCount(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error {
	query := `UPDATE users SET follower_count = follower_count + $1 WHERE id = $2`
	_, err := tx.ExecContext(ctx, query, delta, userID)
	if err != nil {
		return fmt.Errorf("failed to increment follower count: %w", err)
	}
	return nil
}

func (r *userRepository) IncrementFollowingCount(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error {
	query := `UPDATE users SET following_count = following_count + $1 WHERE id = $2`
	_, err := tx.ExecContext(ctx, query, delta, userID)
	if err != nil {
		return fmt.Errorf("failed to increment following count: %w", err)
	}
	return nil
}

// uniqueViolation maps a Postgres 23505 on the users table to the
// corresponding conflict error, or nil for any other error.
func uniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil
	}
	if strings.Contains(pqErr.Constraint, "email") {
		return model.ErrEmailTaken
	}
	return model.ErrUsernameTaken
}
