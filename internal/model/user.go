package model

import (
	"errors"
	"time"
)

// MaxAboutMeLength bounds the free-text bio on a profile.
const MaxAboutMeLength = 140

// User represents a registered account.
type User struct {
	ID             int64     `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	Email          string    `db:"email" json:"email"`
	PasswordHash   string    `db:"password_hash" json:"-"` // "-" hides from JSON output
	AboutMe        *string   `db:"about_me" json:"about_me"`
	LastSeen       time.Time `db:"last_seen" json:"last_seen"`
	FollowerCount  int       `db:"follower_count" json:"follower_count"`
	FollowingCount int       `db:"following_count" json:"following_count"`
	PostCount      int       `db:"post_count" json:"post_count"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// RegisterRequest carries the validated signup form fields.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the data needed to log in.
type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// UpdateProfileRequest carries the editable profile fields.
type UpdateProfileRequest struct {
	Username string  `json:"username"`
	AboutMe  *string `json:"about_me"`
}

// ProfileResponse is a user profile enriched with the viewer's follow status.
type ProfileResponse struct {
	User        *User  `json:"user"`
	AvatarURL   string `json:"avatar_url"`
	IsFollowing bool   `json:"is_following"`
}

var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameTaken is returned when attempting to claim a taken username
	ErrUsernameTaken = errors.New("username already taken")

	// ErrEmailTaken is returned when attempting to claim a registered email
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials is returned when login credentials are incorrect
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidResetToken is returned for an expired or malformed password reset token
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
)
