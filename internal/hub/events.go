package hub

import (
	"fmt"

	"github.com/bumpring/bumpring/internal/database/types"
	"github.com/bytedance/sonic"
)

// EventType tags an outbound live-channel event. The set is closed so
// consumers can match exhaustively instead of probing optional fields.
type EventType string

const (
	EventReactionChanged EventType = "reaction-changed"
	EventCommentAdded    EventType = "comment-added"
	EventCommentUpdated  EventType = "comment-updated"
	EventCommentRemoved  EventType = "comment-removed"
	EventWarmthUpdated   EventType = "warmth-updated"
	EventError           EventType = "error"
)

// Event is one tagged variant of the outbound event set. Every variant
// carries the affected ids plus the freshly recomputed summary or score, so
// receivers never need a follow-up fetch.
type Event interface {
	EventType() EventType
}

// ReactionChanged reports that a user's reaction on a target was set,
// replaced or cleared, with the target's updated summary.
type ReactionChanged struct {
	PostID   string                 `json:"postId"`
	TargetID string                 `json:"targetId"` // Post or comment the reaction sits on
	ActorID  string                 `json:"actorId"`
	Summary  *types.ReactionSummary `json:"summary"`
	Warmth   *types.WarmthScore     `json:"warmth"`
}

func (ReactionChanged) EventType() EventType { return EventReactionChanged }

// CommentAdded reports a new comment with the post's updated counters.
type CommentAdded struct {
	PostID       string             `json:"postId"`
	ActorID      string             `json:"actorId"`
	Comment      *types.Comment     `json:"comment"`
	CommentCount int                `json:"commentCount"`
	Warmth       *types.WarmthScore `json:"warmth"`
}

func (CommentAdded) EventType() EventType { return EventCommentAdded }

// CommentUpdated reports an edited comment body.
type CommentUpdated struct {
	PostID  string         `json:"postId"`
	ActorID string         `json:"actorId"`
	Comment *types.Comment `json:"comment"`
}

func (CommentUpdated) EventType() EventType { return EventCommentUpdated }

// CommentRemoved reports a deleted comment. Tombstoned nodes arrive with
// the placeholder body; fully removed leaves arrive with Removed set.
type CommentRemoved struct {
	PostID       string             `json:"postId"`
	ActorID      string             `json:"actorId"`
	CommentID    string             `json:"commentId"`
	Tombstone    *types.Comment     `json:"tombstone,omitempty"`
	Removed      bool               `json:"removed"`
	CommentCount int                `json:"commentCount"`
	Warmth       *types.WarmthScore `json:"warmth"`
}

func (CommentRemoved) EventType() EventType { return EventCommentRemoved }

// WarmthUpdated reports a recomputed warmth score for a post.
type WarmthUpdated struct {
	PostID string             `json:"postId"`
	Warmth *types.WarmthScore `json:"warmth"`
}

func (WarmthUpdated) EventType() EventType { return EventWarmthUpdated }

// ErrorEvent reports a server-side channel error to the client.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (ErrorEvent) EventType() EventType { return EventError }

// envelope is the wire framing for outbound events.
type envelope struct {
	Type EventType `json:"type"`
	Data Event     `json:"data"`
}

// MarshalEvent encodes an event into its wire form.
func MarshalEvent(event Event) ([]byte, error) {
	data, err := sonic.Marshal(envelope{Type: event.EventType(), Data: event})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", event.EventType(), err)
	}

	return data, nil
}

