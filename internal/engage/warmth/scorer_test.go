package warmth_test

import (
	"testing"
	"time"

	"github.com/bumpring/bumpring/internal/database/types"
	"github.com/bumpring/bumpring/internal/engage/reaction"
	"github.com/bumpring/bumpring/internal/engage/thread"
	"github.com/bumpring/bumpring/internal/engage/warmth"
	"github.com/bumpring/bumpring/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTest(t *testing.T) (*warmth.Scorer, *reaction.Aggregator, *thread.Manager, *memory.Store) {
	t.Helper()

	store := memory.New()
	store.AddPost(&types.Post{ID: "post-1", GroupID: "group-1", AuthorID: "mom"})
	store.AddMember(&types.GroupMember{GroupID: "group-1", UserID: "mom", DisplayName: "Sarah"})
	store.AddMember(&types.GroupMember{GroupID: "group-1", UserID: "dad", DisplayName: "Tom"})
	store.AddMember(&types.GroupMember{GroupID: "group-1", UserID: "grandma", DisplayName: "Linda"})

	logger := zap.NewNop()
	aggregator := reaction.New(store, 0, logger)
	threads := thread.NewManager(store, logger)
	scorer := warmth.NewScorer(store, aggregator, threads, warmth.DefaultConfig(), logger)

	return scorer, aggregator, threads, store
}

func TestRecomputeNoEngagement(t *testing.T) {
	t.Parallel()

	scorer, _, _, _ := setupTest(t)

	score, err := scorer.Recompute(t.Context(), "post-1")
	require.NoError(t, err)

	assert.Zero(t, score.ReactionWarmth)
	assert.Zero(t, score.CommentWarmth)
	assert.Zero(t, score.EngagementVelocity)
	assert.Zero(t, score.ParticipationRate)
	assert.Zero(t, score.Overall)
	assert.False(t, score.ComputedAt.IsZero())
}

func TestRecomputeSingleReaction(t *testing.T) {
	t.Parallel()

	scorer, aggregator, _, _ := setupTest(t)
	ctx := t.Context()

	// love at intensity 2 contributes a delta of 1.25
	_, _, err := aggregator.SetReaction(ctx, "post-1", "grandma", types.ReactionLove, 2, false)
	require.NoError(t, err)

	score, err := scorer.Recompute(ctx, "post-1")
	require.NoError(t, err)

	assert.InDelta(t, 0.125, score.ReactionWarmth, 1e-9)
	assert.Zero(t, score.CommentWarmth)
	assert.InDelta(t, 0.1, score.EngagementVelocity, 1e-9)
	// One of two non-author members interacted
	assert.InDelta(t, 0.5, score.ParticipationRate, 1e-9)

	expected := 0.35*0.125 + 0.15*0.1 + 0.20*0.5
	assert.InDelta(t, expected, score.Overall, 1e-9)
	assert.Greater(t, score.Overall, 0.0)
}

func TestRecomputeIncludesCommentReactions(t *testing.T) {
	t.Parallel()

	scorer, aggregator, threads, _ := setupTest(t)
	ctx := t.Context()

	comment, err := threads.AddComment(ctx, "post-1", "", "mom", "first kick today!")
	require.NoError(t, err)

	// A reaction on the comment warms the post just like one on the post
	_, _, err = aggregator.SetReaction(ctx, comment.ID, "grandma", types.ReactionLove, 2, false)
	require.NoError(t, err)

	score, err := scorer.Recompute(ctx, "post-1")
	require.NoError(t, err)

	assert.InDelta(t, 0.125, score.ReactionWarmth, 1e-9)
	assert.Greater(t, score.EngagementVelocity, 0.0)
	assert.InDelta(t, 0.5, score.ParticipationRate, 1e-9)
}

func TestRecomputeBounds(t *testing.T) {
	t.Parallel()

	scorer, aggregator, threads, _ := setupTest(t)
	ctx := t.Context()

	// Pile on engagement well past every normalization constant
	for _, user := range []string{"dad", "grandma"} {
		_, _, err := aggregator.SetReaction(ctx, "post-1", user, types.ReactionLove, 3, true)
		require.NoError(t, err)
	}

	for range 20 {
		_, err := threads.AddComment(ctx, "post-1", "", "dad", "amazing news")
		require.NoError(t, err)
	}

	score, err := scorer.Recompute(ctx, "post-1")
	require.NoError(t, err)

	for name, sub := range map[string]float64{
		"reaction":      score.ReactionWarmth,
		"comment":       score.CommentWarmth,
		"velocity":      score.EngagementVelocity,
		"participation": score.ParticipationRate,
		"overall":       score.Overall,
	} {
		assert.GreaterOrEqual(t, sub, 0.0, name)
		assert.LessOrEqual(t, sub, 1.0, name)
	}

	assert.InDelta(t, 1.0, score.CommentWarmth, 1e-9)
}

func TestRecomputeDeterministic(t *testing.T) {
	t.Parallel()

	scorer, aggregator, threads, _ := setupTest(t)
	ctx := t.Context()

	_, _, err := aggregator.SetReaction(ctx, "post-1", "dad", types.ReactionExcited, 2, false)
	require.NoError(t, err)

	root, err := threads.AddComment(ctx, "post-1", "", "grandma", "wonderful")
	require.NoError(t, err)

	_, err = threads.AddComment(ctx, "post-1", root.ID, "dad", "so exciting")
	require.NoError(t, err)

	// Pin the clock so velocity cannot drift between the two computations
	fixed := time.Now().UTC()
	scorer.WithClock(func() time.Time { return fixed })

	first, err := scorer.Recompute(ctx, "post-1")
	require.NoError(t, err)

	second, err := scorer.Recompute(ctx, "post-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestVelocityIgnoresOldInteractions(t *testing.T) {
	t.Parallel()

	scorer, aggregator, _, _ := setupTest(t)
	ctx := t.Context()

	_, _, err := aggregator.SetReaction(ctx, "post-1", "dad", types.ReactionSupport, 1, false)
	require.NoError(t, err)

	// Move the clock a day ahead: the reaction falls out of the window but
	// still counts toward reaction warmth and participation
	scorer.WithClock(func() time.Time { return time.Now().Add(24 * time.Hour) })

	score, err := scorer.Recompute(ctx, "post-1")
	require.NoError(t, err)

	assert.Zero(t, score.EngagementVelocity)
	assert.Greater(t, score.ReactionWarmth, 0.0)
	assert.Greater(t, score.ParticipationRate, 0.0)
}
