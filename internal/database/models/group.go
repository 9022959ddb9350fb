package models

import (
	"context"
	"fmt"

	"github.com/bumpring/bumpring/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// GroupModel handles database operations for group membership.
type GroupModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewGroup creates a new group model.
func NewGroup(db *bun.DB, logger *zap.Logger) *GroupModel {
	return &GroupModel{
		db:     db,
		logger: logger.Named("db_group"),
	}
}

// Members retrieves all members of a group.
func (r *GroupModel) Members(ctx context.Context, groupID string) ([]*types.GroupMember, error) {
	var members []*types.GroupMember

	err := r.db.NewSelect().
		Model(&members).
		Where("group_id = ?", groupID).
		Order("joined_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}

	return members, nil
}
