package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the feed stream
const (
	EventPostCreated    = "post_created"
	EventPostDeleted    = "post_deleted"
	EventUserFollowed   = "user_followed"
	EventUserUnfollowed = "user_unfollowed"
)

// StreamFeed is the Redis stream carrying feed fan-out events.
const StreamFeed = "stream:feed"

// ConsumerGroupFeed is the consumer group name for feed workers.
const ConsumerGroupFeed = "feed_workers"

// FeedEvent represents an event published to the feed stream.
// All feed-related events share this structure.
type FeedEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // Unix timestamp when event occurred

	// Post events
	PostID   int64 `json:"post_id,omitempty"`
	AuthorID int64 `json:"author_id,omitempty"`

	// Follow events
	FollowerID int64 `json:"follower_id,omitempty"`
	FollowedID int64 `json:"followed_id,omitempty"`
}

// NewPostCreatedEvent creates an event for a newly published post.
// The worker fans the post out to all followers' feed caches.
func NewPostCreatedEvent(postID, authorID int64) FeedEvent {
	return FeedEvent{
		Type:      EventPostCreated,
		Timestamp: time.Now().Unix(),
		PostID:    postID,
		AuthorID:  authorID,
	}
}

// NewPostDeletedEvent creates an event for a deleted post.
// The worker removes the post from all followers' feed caches.
func NewPostDeletedEvent(postID, authorID int64) FeedEvent {
	return FeedEvent{
		Type:      EventPostDeleted,
		Timestamp: time.Now().Unix(),
		PostID:    postID,
		AuthorID:  authorID,
	}
}

// NewUserFollowedEvent creates an event for a new follow edge.
// The worker backfills recent posts of the followed user into the
// follower's feed cache.
func NewUserFollowedEvent(followerID, followedID int64) FeedEvent {
	return FeedEvent{
		Type:       EventUserFollowed,
		Timestamp:  time.Now().Unix(),
		FollowerID: followerID,
		FollowedID: followedID,
	}
}

// NewUserUnfollowedEvent creates an event for a removed follow edge.
// The worker removes the unfollowed user's posts from the follower's cache.
func NewUserUnfollowedEvent(followerID, followedID int64) FeedEvent {
	return FeedEvent{
		Type:       EventUserUnfollowed,
		Timestamp:  time.Now().Unix(),
		FollowerID: followerID,
		FollowedID: followedID,
	}
}

// ToMap converts the event to a map for Redis XADD. Streams store
// field-value pairs, so the full event travels as JSON in a "data" field.
func (e FeedEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseFeedEvent parses a FeedEvent from Redis stream message values.
func ParseFeedEvent(values map[string]interface{}) (FeedEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return FeedEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event FeedEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return FeedEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
