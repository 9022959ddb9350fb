package database

import (
	"github.com/bumpring/bumpring/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	posts     *models.PostModel
	reactions *models.ReactionModel
	comments  *models.CommentModel
	groups    *models.GroupModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		posts:     models.NewPost(db, logger),
		reactions: models.NewReaction(db, logger),
		comments:  models.NewComment(db, logger),
		groups:    models.NewGroup(db, logger),
	}
}

// Posts returns the post model repository.
func (r *Repository) Posts() *models.PostModel {
	return r.posts
}

// Reactions returns the reaction model repository.
func (r *Repository) Reactions() *models.ReactionModel {
	return r.reactions
}

// Comments returns the comment model repository.
func (r *Repository) Comments() *models.CommentModel {
	return r.comments
}

// Groups returns the group membership model repository.
func (r *Repository) Groups() *models.GroupModel {
	return r.groups
}
