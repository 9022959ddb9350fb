// Package storage defines the persistence contract consumed by the
// engagement engine. Two implementations exist: the bun-backed PostgreSQL
// store in internal/database and an in-memory store used by tests and
// local development.
package storage

import (
	"context"

	"github.com/bumpring/bumpring/internal/database/types"
)

// Store is the persistent store for posts, reactions, comments and group
// membership. Implementations must provide per-post atomic read-modify-write
// for the reaction and comment operations; callers additionally serialize
// mutations per post, so the store never sees interleaved writes for the
// same post.
type Store interface {
	// GetPost returns the post or types.ErrNotFound.
	GetPost(ctx context.Context, postID string) (*types.Post, error)
	// SavePostDerived persists the post's derived fields: reaction summary,
	// warmth score and comment count. Other post fields are untouched.
	SavePostDerived(ctx context.Context, post *types.Post) error
	// FeedPosts returns a page of the group's posts, newest first.
	FeedPosts(ctx context.Context, groupID string, limit, offset int) ([]*types.Post, error)

	// UpsertReaction inserts the reaction, replacing any previous reaction by
	// the same user on the same target. Returns the replaced reaction or nil.
	UpsertReaction(ctx context.Context, reaction *types.Reaction) (*types.Reaction, error)
	// DeleteReaction removes the user's reaction from the target. Returns the
	// removed reaction, or types.ErrNotFound when none was active.
	DeleteReaction(ctx context.Context, targetID, userID string) (*types.Reaction, error)
	// ReactionsForTarget returns every active reaction on the target.
	ReactionsForTarget(ctx context.Context, targetID string) ([]*types.Reaction, error)
	// ReactionsForPost returns every active reaction on the post or any of
	// its comments, oldest first. Warmth scoring reads this so comment
	// reactions count toward the post.
	ReactionsForPost(ctx context.Context, postID string) ([]*types.Reaction, error)

	// CreateComment persists a new comment node.
	CreateComment(ctx context.Context, comment *types.Comment) error
	// GetComment returns the comment or types.ErrNotFound.
	GetComment(ctx context.Context, commentID string) (*types.Comment, error)
	// SaveComment persists edits to an existing comment (body, mentions,
	// edited timestamp, tombstone flag). Depth and path never change.
	SaveComment(ctx context.Context, comment *types.Comment) error
	// DeleteComment removes the comment row entirely.
	DeleteComment(ctx context.Context, commentID string) error
	// CommentsForPost returns all comments on a post, oldest first.
	CommentsForPost(ctx context.Context, postID string) ([]*types.Comment, error)
	// ReplyCount returns the number of descendants of the comment, found by
	// matching the comment id anywhere in descendant paths.
	ReplyCount(ctx context.Context, commentID string) (int, error)

	// GroupMembers returns the membership of a pregnancy group.
	GroupMembers(ctx context.Context, groupID string) ([]*types.GroupMember, error)
}
