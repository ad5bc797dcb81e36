package model

import (
	"errors"
	"time"
)

// Follow is the edge "follower follows followed". It has no identity beyond
// the ordered pair; the composite primary key enforces edge uniqueness.
type Follow struct {
	FollowerID int64     `db:"follower_id" json:"follower_id"`
	FollowedID int64     `db:"followed_id" json:"followed_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// UserSummary is a lightweight user representation for lists and post authors.
type UserSummary struct {
	ID          int64  `db:"id" json:"id"`
	Username    string `db:"username" json:"username"`
	AvatarURL   string `json:"avatar_url"`
	IsFollowing bool   `json:"is_following"`

	// Email is needed to derive the avatar digest; never serialized in lists.
	Email string `db:"email" json:"-"`
}

// FollowListResponse is the paginated follower/following listing.
type FollowListResponse struct {
	Users      []UserSummary `json:"users"`
	NextCursor *string       `json:"next_cursor,omitempty"`
	HasMore    bool          `json:"has_more"`
}

var (
	ErrAlreadyFollowing = errors.New("already following this user")
	ErrNotFollowing     = errors.New("not following this user")
	ErrCannotFollowSelf = errors.New("cannot follow yourself")
)
