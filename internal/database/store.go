package database

import (
	"context"

	"github.com/bumpring/bumpring/internal/database/types"
)

// The Client delegates the persistence contract to its model repositories,
// so the engagement engine can run against either PostgreSQL or the
// in-memory store.

// GetPost returns the post or types.ErrNotFound.
func (c *Client) GetPost(ctx context.Context, postID string) (*types.Post, error) {
	return c.repo.Posts().Get(ctx, postID)
}

// SavePostDerived persists the post's derived engagement fields.
func (c *Client) SavePostDerived(ctx context.Context, post *types.Post) error {
	return c.repo.Posts().SaveDerived(ctx, post)
}

// FeedPosts returns a page of the group's posts, newest first.
func (c *Client) FeedPosts(ctx context.Context, groupID string, limit, offset int) ([]*types.Post, error) {
	return c.repo.Posts().FeedPage(ctx, groupID, limit, offset)
}

// UpsertReaction inserts the reaction, replacing any previous reaction by
// the same user on the same target.
func (c *Client) UpsertReaction(ctx context.Context, reaction *types.Reaction) (*types.Reaction, error) {
	return c.repo.Reactions().Upsert(ctx, reaction)
}

// DeleteReaction removes the user's reaction from the target.
func (c *Client) DeleteReaction(ctx context.Context, targetID, userID string) (*types.Reaction, error) {
	return c.repo.Reactions().Delete(ctx, targetID, userID)
}

// ReactionsForTarget returns every active reaction on the target.
func (c *Client) ReactionsForTarget(ctx context.Context, targetID string) ([]*types.Reaction, error) {
	return c.repo.Reactions().ForTarget(ctx, targetID)
}

// ReactionsForPost returns every active reaction on the post or its comments.
func (c *Client) ReactionsForPost(ctx context.Context, postID string) ([]*types.Reaction, error) {
	return c.repo.Reactions().ForPost(ctx, postID)
}

// CreateComment persists a new comment node.
func (c *Client) CreateComment(ctx context.Context, comment *types.Comment) error {
	return c.repo.Comments().Create(ctx, comment)
}

// GetComment returns the comment or types.ErrNotFound.
func (c *Client) GetComment(ctx context.Context, commentID string) (*types.Comment, error) {
	return c.repo.Comments().Get(ctx, commentID)
}

// SaveComment persists edits to an existing comment.
func (c *Client) SaveComment(ctx context.Context, comment *types.Comment) error {
	return c.repo.Comments().Save(ctx, comment)
}

// DeleteComment removes the comment row entirely.
func (c *Client) DeleteComment(ctx context.Context, commentID string) error {
	return c.repo.Comments().Delete(ctx, commentID)
}

// CommentsForPost returns all comments on a post, oldest first.
func (c *Client) CommentsForPost(ctx context.Context, postID string) ([]*types.Comment, error) {
	return c.repo.Comments().ForPost(ctx, postID)
}

// ReplyCount returns the number of descendants of the comment.
func (c *Client) ReplyCount(ctx context.Context, commentID string) (int, error) {
	return c.repo.Comments().ReplyCount(ctx, commentID)
}

// GroupMembers returns the membership of a pregnancy group.
func (c *Client) GroupMembers(ctx context.Context, groupID string) ([]*types.GroupMember, error) {
	return c.repo.Groups().Members(ctx, groupID)
}
