package model

import (
	"errors"
	"time"
)

// Post body bounds. Posts are short text only.
const (
	MinPostBodyLength = 1
	MaxPostBodyLength = 140
)

// Post represents a user's short text post.
type Post struct {
	ID        int64      `db:"id" json:"id"`
	UserID    int64      `db:"user_id" json:"user_id"`
	Body      string     `db:"body" json:"body"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`

	// Joined field, not in the posts table
	Author *UserSummary `json:"author,omitempty"`
}

// CreatePostRequest is the request body for creating a post.
type CreatePostRequest struct {
	Body string `json:"body"`
}

// FeedPost is a post enriched with its author for feed display.
type FeedPost struct {
	Post
	Author UserSummary `json:"author"`
}

// FeedResponse is the paginated feed response.
type FeedResponse struct {
	Posts      []FeedPost `json:"posts"`
	NextCursor *string    `json:"next_cursor,omitempty"`
	HasMore    bool       `json:"has_more"`
}

// PostListResponse is the paginated list of a single user's posts.
type PostListResponse struct {
	Posts      []Post  `json:"posts"`
	NextCursor *string `json:"next_cursor,omitempty"`
	HasMore    bool    `json:"has_more"`
}

// Post errors
var (
	ErrPostNotFound = errors.New("post not found")
	ErrNotPostOwner = errors.New("not the owner of this post")
	ErrEmptyBody    = errors.New("post body is required")
	ErrBodyTooLong  = errors.New("post body too long")
)
