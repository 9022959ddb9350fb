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

// ReactionModel handles database operations for reactions.
type ReactionModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewReaction creates a new reaction model.
func NewReaction(db *bun.DB, logger *zap.Logger) *ReactionModel {
	return &ReactionModel{
		db:     db,
		logger: logger.Named("db_reaction"),
	}
}

// Upsert saves a reaction, replacing the user's previous reaction on the
// same target if one exists. Returns the replaced reaction or nil.
func (r *ReactionModel) Upsert(ctx context.Context, reaction *types.Reaction) (*types.Reaction, error) {
	var previous *types.Reaction

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := new(types.Reaction)

		err := tx.NewSelect().
			Model(existing).
			Where("target_id = ? AND user_id = ?", reaction.TargetID, reaction.UserID).
			For("UPDATE").
			Scan(ctx)

		switch {
		case err == nil:
			previous = existing
		case errors.Is(err, sql.ErrNoRows):
			// First reaction from this user on this target.
		default:
			return fmt.Errorf("failed to get existing reaction: %w", err)
		}

		_, err = tx.NewInsert().
			Model(reaction).
			On("CONFLICT (target_id, user_id) DO UPDATE").
			Set("type = EXCLUDED.type").
			Set("intensity = EXCLUDED.intensity").
			Set("milestone = EXCLUDED.milestone").
			Set("created_at = EXCLUDED.created_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to upsert reaction: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return previous, nil
}

// Delete removes a user's reaction from a target and returns it.
// Returns types.ErrNotFound when no reaction exists.
func (r *ReactionModel) Delete(ctx context.Context, targetID, userID string) (*types.Reaction, error) {
	removed := new(types.Reaction)

	err := r.db.NewDelete().
		Model(removed).
		Where("target_id = ? AND user_id = ?", targetID, userID).
		Returning("*").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reaction on %s by %s: %w", targetID, userID, types.ErrNotFound)
		}

		return nil, fmt.Errorf("failed to delete reaction: %w", err)
	}

	return removed, nil
}

// ForTarget retrieves all reactions on a target.
func (r *ReactionModel) ForTarget(ctx context.Context, targetID string) ([]*types.Reaction, error) {
	var reactions []*types.Reaction

	err := r.db.NewSelect().
		Model(&reactions).
		Where("target_id = ?", targetID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get reactions for target: %w", err)
	}

	return reactions, nil
}

// ForPost retrieves all reactions on the post or any of its comments.
func (r *ReactionModel) ForPost(ctx context.Context, postID string) ([]*types.Reaction, error) {
	var reactions []*types.Reaction

	err := r.db.NewSelect().
		Model(&reactions).
		Where("target_id = ? OR target_id IN (SELECT id FROM comments WHERE post_id = ?)", postID, postID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get reactions for post: %w", err)
	}

	return reactions, nil
}
