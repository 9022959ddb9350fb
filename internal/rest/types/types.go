// Package types defines the REST API request and response shapes.
package types

import (
	dbTypes "github.com/bumpring/bumpring/internal/database/types"
	"github.com/bumpring/bumpring/internal/engage/thread"
)

// ReactionBody is the request body for setting or clearing a reaction.
// TargetID selects a comment on the post; empty targets the post itself.
// ClientRef is the client-generated placeholder id echoed back so the
// client can resolve its optimistic update.
type ReactionBody struct {
	Type      string `json:"type"`
	Intensity int    `json:"intensity"`
	Milestone bool   `json:"milestone"`
	TargetID  string `json:"targetId,omitempty"`
	ClientRef string `json:"clientRef,omitempty"`
}

// CommentBody is the request body for creating a comment.
type CommentBody struct {
	Body      string `json:"body"`
	ParentID  string `json:"parentId,omitempty"`
	ClientRef string `json:"clientRef,omitempty"`
}

// EditCommentBody is the request body for editing a comment.
type EditCommentBody struct {
	Body      string `json:"body"`
	ClientRef string `json:"clientRef,omitempty"`
}

// GetPostResponse carries a post's engagement state plus the requesting
// user's own reaction. Served bypassing the cache so the reader always
// sees their own mutation.
type GetPostResponse struct {
	Post        *dbTypes.Post     `json:"post"`
	OwnReaction *dbTypes.Reaction `json:"ownReaction,omitempty"`
}

// GetThreadResponse carries a post's bounded-depth comment tree.
type GetThreadResponse struct {
	Thread *thread.Thread `json:"thread"`
}

// GetFeedResponse carries one page of a group's posts with their derived
// engagement fields.
type GetFeedResponse struct {
	GroupID string          `json:"groupId"`
	Posts   []*dbTypes.Post `json:"posts"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
	// Seconds until the client may retry, present on rate limit errors.
	RetryAfter int `json:"retryAfter,omitempty"`
}
