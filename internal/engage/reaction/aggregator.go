// Package reaction owns per-target reaction state: the uniqueness invariant
// for (target, user) pairs, the per-type count summary, and the warmth delta
// each reaction feeds into the post's score.
package reaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bumpring/bumpring/internal/database/types"
	"github.com/bumpring/bumpring/internal/storage"
	"go.uber.org/zap"
)

var (
	ErrInvalidType      = errors.New("invalid reaction type")
	ErrInvalidIntensity = errors.New("reaction intensity out of range")
)

// Fixed warmth multiplier tables. These are the authoritative per-deployment
// constants; the normalization applied on top of the summed deltas lives in
// the warmth scorer.
var (
	baseValues = map[types.ReactionType]float64{
		types.ReactionLove:    1.0,
		types.ReactionExcited: 0.9,
		types.ReactionSupport: 0.8,
		types.ReactionPray:    0.7,
		types.ReactionLaugh:   0.6,
	}

	intensityMultipliers = map[int]float64{
		1: 1.0,
		2: 1.25,
		3: 1.5,
	}
)

// MilestoneMultiplier boosts reactions tied to a significant pregnancy event.
const MilestoneMultiplier = 2.0

// DefaultMaxUserWarmth caps the cumulative warmth delta a single heavy
// reactor can contribute to one post.
const DefaultMaxUserWarmth = 3.0

// Delta returns the warmth contribution of a single reaction:
// base value scaled by intensity and the milestone multiplier.
func Delta(r *types.Reaction) float64 {
	delta := baseValues[r.Type] * intensityMultipliers[r.Intensity]
	if r.Milestone {
		delta *= MilestoneMultiplier
	}

	return delta
}

// Aggregator maintains reaction summaries on top of the store. Callers hold
// the per-post lock, so aggregator operations for one post never interleave.
type Aggregator struct {
	store         storage.Store
	maxUserWarmth float64
	logger        *zap.Logger
}

// New creates a reaction aggregator. maxUserWarmth <= 0 selects the default.
func New(store storage.Store, maxUserWarmth float64, logger *zap.Logger) *Aggregator {
	if maxUserWarmth <= 0 {
		maxUserWarmth = DefaultMaxUserWarmth
	}

	return &Aggregator{
		store:         store,
		maxUserWarmth: maxUserWarmth,
		logger:        logger.Named("reaction"),
	}
}

// SetReaction records the user's reaction on the target, replacing any
// previous reaction by the same user so the pair stays unique. Returns the
// updated summary together with the stored reaction.
func (a *Aggregator) SetReaction(
	ctx context.Context, targetID, userID string,
	reactionType types.ReactionType, intensity int, milestone bool,
) (*types.ReactionSummary, *types.Reaction, error) {
	if !reactionType.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidType, reactionType)
	}

	if intensity < types.MinIntensity || intensity > types.MaxIntensity {
		return nil, nil, fmt.Errorf("%w: %d", ErrInvalidIntensity, intensity)
	}

	r := &types.Reaction{
		TargetID:  targetID,
		UserID:    userID,
		Type:      reactionType,
		Intensity: intensity,
		Milestone: milestone,
		CreatedAt: time.Now().UTC(),
	}

	previous, err := a.store.UpsertReaction(ctx, r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to upsert reaction: %w", err)
	}

	if previous != nil {
		a.logger.Debug("Replaced existing reaction",
			zap.String("targetID", targetID),
			zap.String("userID", userID),
			zap.String("oldType", string(previous.Type)),
			zap.String("newType", string(reactionType)))
	}

	summary, err := a.Summary(ctx, targetID)
	if err != nil {
		return nil, nil, err
	}

	return summary, r, nil
}

// ClearReaction removes the user's reaction from the target. Clearing when
// no reaction is active is a no-op; the current summary is still returned.
func (a *Aggregator) ClearReaction(ctx context.Context, targetID, userID string) (*types.ReactionSummary, error) {
	_, err := a.store.DeleteReaction(ctx, targetID, userID)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return nil, fmt.Errorf("failed to delete reaction: %w", err)
	}

	return a.Summary(ctx, targetID)
}

// Summary rebuilds the target's reaction summary from the active reaction
// rows. Per-type counts always sum to the total by construction.
func (a *Aggregator) Summary(ctx context.Context, targetID string) (*types.ReactionSummary, error) {
	reactions, err := a.store.ReactionsForTarget(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reactions: %w", err)
	}

	summary := types.NewReactionSummary()
	for _, r := range reactions {
		summary.Counts[r.Type]++
		summary.Total++
	}

	return summary, nil
}

// UserReaction returns the user's active reaction on the target, or nil.
func (a *Aggregator) UserReaction(ctx context.Context, targetID, userID string) (*types.Reaction, error) {
	reactions, err := a.store.ReactionsForTarget(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reactions: %w", err)
	}

	for _, r := range reactions {
		if r.UserID == userID {
			return r, nil
		}
	}

	return nil, nil
}

// WarmthInput sums the warmth deltas of all active reactions on the post
// and its comments, clamping each user's cumulative contribution so one
// heavy reactor cannot run the score away.
func (a *Aggregator) WarmthInput(ctx context.Context, postID string) (float64, error) {
	reactions, err := a.store.ReactionsForPost(ctx, postID)
	if err != nil {
		return 0, fmt.Errorf("failed to load reactions: %w", err)
	}

	perUser := make(map[string]float64, len(reactions))
	for _, r := range reactions {
		perUser[r.UserID] += Delta(r)
	}

	var total float64

	for _, contribution := range perUser {
		if contribution > a.maxUserWarmth {
			contribution = a.maxUserWarmth
		}

		total += contribution
	}

	return total, nil
}
