package engage

import (
	"context"
	"fmt"

	"github.com/bumpring/bumpring/internal/storage"
)

// VisibilityGate decides whether a user may view a post. Evaluated before
// any mutation is accepted; the rule engine behind it belongs to the wider
// application.
type VisibilityGate interface {
	CanView(ctx context.Context, userID, postID string) (bool, error)
}

// GroupVisibility is the default gate: a post is visible to the members of
// its pregnancy group.
type GroupVisibility struct {
	store storage.Store
}

// NewGroupVisibility creates the membership-based visibility gate.
func NewGroupVisibility(store storage.Store) *GroupVisibility {
	return &GroupVisibility{store: store}
}

func (g *GroupVisibility) CanView(ctx context.Context, userID, postID string) (bool, error) {
	post, err := g.store.GetPost(ctx, postID)
	if err != nil {
		return false, fmt.Errorf("failed to load post: %w", err)
	}

	members, err := g.store.GroupMembers(ctx, post.GroupID)
	if err != nil {
		return false, fmt.Errorf("failed to load group members: %w", err)
	}

	for _, member := range members {
		if member.UserID == userID {
			return true, nil
		}
	}

	return false, nil
}
