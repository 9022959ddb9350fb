// Package warmth derives the family warmth score of a post from its
// reactions and comment thread. Scores are pure functions of store state:
// recomputing without an intervening mutation yields the identical score.
package warmth

import (
	"context"
	"fmt"
	"time"

	"github.com/bumpring/bumpring/internal/database/types"
	"github.com/bumpring/bumpring/internal/engage/reaction"
	"github.com/bumpring/bumpring/internal/engage/thread"
	"github.com/bumpring/bumpring/internal/storage"
	"go.uber.org/zap"
)

// Config holds the normalization constants and combination weights for the
// warmth formula. Weights must sum to 1; the final score is clamped to [0,1].
type Config struct {
	// Divisor normalizing summed reaction deltas.
	ReactionNorm float64
	// Divisor normalizing the weighted comment count.
	CommentNorm float64
	// Weight of a reply relative to a top-level comment.
	ReplyWeight float64
	// Window for the engagement velocity sub-score.
	VelocityWindow time.Duration
	// Interactions within the window that count as full velocity.
	VelocityExpected float64
	// Sub-score combination weights.
	WeightReaction      float64
	WeightComment       float64
	WeightVelocity      float64
	WeightParticipation float64
}

// DefaultConfig returns the deployment defaults for the warmth formula.
func DefaultConfig() Config {
	return Config{
		ReactionNorm:        10,
		CommentNorm:         8,
		ReplyWeight:         0.5,
		VelocityWindow:      6 * time.Hour,
		VelocityExpected:    10,
		WeightReaction:      0.35,
		WeightComment:       0.30,
		WeightVelocity:      0.15,
		WeightParticipation: 0.20,
	}
}

// Scorer recomputes warmth scores. It reads through the aggregator and
// thread manager so the scoring inputs match what those components serve.
type Scorer struct {
	store      storage.Store
	aggregator *reaction.Aggregator
	threads    *thread.Manager
	config     Config
	now        func() time.Time
	logger     *zap.Logger
}

// NewScorer creates a warmth scorer using the wall clock.
func NewScorer(
	store storage.Store, aggregator *reaction.Aggregator, threads *thread.Manager,
	config Config, logger *zap.Logger,
) *Scorer {
	return &Scorer{
		store:      store,
		aggregator: aggregator,
		threads:    threads,
		config:     config,
		now:        time.Now,
		logger:     logger.Named("warmth"),
	}
}

// WithClock replaces the scorer's clock. Velocity depends on the current
// time, so tests inject a fixed clock to assert determinism.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	s.now = now
	return s
}

// Recompute derives the post's warmth score from current store state.
// Invoked inside the per-post critical section after every reaction or
// comment mutation, so mutation responses always carry a consistent score.
func (s *Scorer) Recompute(ctx context.Context, postID string) (*types.WarmthScore, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}

	reactionInput, err := s.aggregator.WarmthInput(ctx, postID)
	if err != nil {
		return nil, err
	}

	weightedComments, err := s.threads.WeightedCount(ctx, postID, s.config.ReplyWeight)
	if err != nil {
		return nil, err
	}

	reactions, err := s.store.ReactionsForPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reactions: %w", err)
	}

	comments, err := s.store.CommentsForPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}

	members, err := s.store.GroupMembers(ctx, post.GroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load group members: %w", err)
	}

	score := &types.WarmthScore{
		ReactionWarmth:     clamp01(reactionInput / s.config.ReactionNorm),
		CommentWarmth:      clamp01(weightedComments / s.config.CommentNorm),
		EngagementVelocity: s.velocity(reactions, comments),
		ParticipationRate:  s.participation(post, reactions, comments, members),
		ComputedAt:         s.now().UTC(),
	}

	score.Overall = clamp01(s.config.WeightReaction*score.ReactionWarmth +
		s.config.WeightComment*score.CommentWarmth +
		s.config.WeightVelocity*score.EngagementVelocity +
		s.config.WeightParticipation*score.ParticipationRate)

	s.logger.Debug("Recomputed warmth score",
		zap.String("postID", postID),
		zap.Float64("overall", score.Overall))

	return score, nil
}

// velocity measures how quickly the family is responding: interactions
// within the recent window against the expected rate. Rapid response, not
// raw volume, drives this sub-score.
func (s *Scorer) velocity(reactions []*types.Reaction, comments []*types.Comment) float64 {
	cutoff := s.now().Add(-s.config.VelocityWindow)

	recent := 0

	for _, r := range reactions {
		if r.CreatedAt.After(cutoff) {
			recent++
		}
	}

	for _, c := range comments {
		if !c.Deleted && c.CreatedAt.After(cutoff) {
			recent++
		}
	}

	return clamp01(float64(recent) / s.config.VelocityExpected)
}

// participation is the share of the family group that interacted with the
// post. The post's author is excluded on both sides of the ratio.
func (s *Scorer) participation(
	post *types.Post, reactions []*types.Reaction,
	comments []*types.Comment, members []*types.GroupMember,
) float64 {
	groupSize := 0

	for _, member := range members {
		if member.UserID != post.AuthorID {
			groupSize++
		}
	}

	if groupSize == 0 {
		return 0
	}

	interacted := make(map[string]struct{})

	for _, r := range reactions {
		if r.UserID != post.AuthorID {
			interacted[r.UserID] = struct{}{}
		}
	}

	for _, c := range comments {
		if !c.Deleted && c.AuthorID != post.AuthorID {
			interacted[c.AuthorID] = struct{}{}
		}
	}

	return clamp01(float64(len(interacted)) / float64(groupSize))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
