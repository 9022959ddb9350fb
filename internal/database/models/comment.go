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

// CommentModel handles database operations for comments.
type CommentModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewComment creates a new comment model.
func NewComment(db *bun.DB, logger *zap.Logger) *CommentModel {
	return &CommentModel{
		db:     db,
		logger: logger.Named("db_comment"),
	}
}

// Create inserts a new comment.
func (r *CommentModel) Create(ctx context.Context, comment *types.Comment) error {
	_, err := r.db.NewInsert().
		Model(comment).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}

	return nil
}

// Get retrieves a comment by id.
func (r *CommentModel) Get(ctx context.Context, commentID string) (*types.Comment, error) {
	comment := new(types.Comment)

	err := r.db.NewSelect().
		Model(comment).
		Where("id = ?", commentID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("comment %s: %w", commentID, types.ErrNotFound)
		}

		return nil, fmt.Errorf("failed to get comment: %w", err)
	}

	return comment, nil
}

// Save updates an existing comment.
func (r *CommentModel) Save(ctx context.Context, comment *types.Comment) error {
	res, err := r.db.NewUpdate().
		Model(comment).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save comment: %w", err)
	}

	rows, err := res.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("comment %s: %w", comment.ID, types.ErrNotFound)
	}

	return nil
}

// Delete removes a comment row entirely.
func (r *CommentModel) Delete(ctx context.Context, commentID string) error {
	res, err := r.db.NewDelete().
		Model((*types.Comment)(nil)).
		Where("id = ?", commentID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	rows, err := res.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("comment %s: %w", commentID, types.ErrNotFound)
	}

	return nil
}

// ForPost retrieves all comments on a post, oldest first.
func (r *CommentModel) ForPost(ctx context.Context, postID string) ([]*types.Comment, error) {
	var comments []*types.Comment

	err := r.db.NewSelect().
		Model(&comments).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get comments for post: %w", err)
	}

	return comments, nil
}

// ReplyCount returns the number of descendants of a comment, at any depth.
func (r *CommentModel) ReplyCount(ctx context.Context, commentID string) (int, error) {
	count, err := r.db.NewSelect().
		Model((*types.Comment)(nil)).
		Where("? = ANY(path)", commentID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count replies: %w", err)
	}

	return count, nil
}
