package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bumpring/bumpring/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// PostModel handles database operations for posts and their derived
// engagement fields.
type PostModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewPost creates a new post model.
func NewPost(db *bun.DB, logger *zap.Logger) *PostModel {
	return &PostModel{
		db:     db,
		logger: logger.Named("db_post"),
	}
}

// Get retrieves a post by id.
func (r *PostModel) Get(ctx context.Context, postID string) (*types.Post, error) {
	post := new(types.Post)

	err := r.db.NewSelect().
		Model(post).
		Where("id = ?", postID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("post %s: %w", postID, types.ErrNotFound)
		}

		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	if post.ReactionSummary == nil {
		post.ReactionSummary = types.NewReactionSummary()
	}

	return post, nil
}

// SaveDerived persists only the derived engagement fields of the post. The
// post body and metadata are owned by the wider application and untouched.
func (r *PostModel) SaveDerived(ctx context.Context, post *types.Post) error {
	_, err := r.db.NewUpdate().
		Model(post).
		Column("reaction_summary", "warmth_score", "comment_count").
		Where("id = ?", post.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save post derived fields: %w", err)
	}

	return nil
}

// FeedPage retrieves one page of a group's posts, newest first.
func (r *PostModel) FeedPage(ctx context.Context, groupID string, limit, offset int) ([]*types.Post, error) {
	var posts []*types.Post

	err := r.db.NewSelect().
		Model(&posts).
		Where("group_id = ?", groupID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get feed page: %w", err)
	}

	return posts, nil
}
