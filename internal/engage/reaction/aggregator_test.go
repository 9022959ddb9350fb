package reaction_test

import (
	"testing"

	"github.com/bumpring/bumpring/internal/database/types"
	"github.com/bumpring/bumpring/internal/engage/reaction"
	"github.com/bumpring/bumpring/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTest(t *testing.T) (*reaction.Aggregator, *memory.Store) {
	t.Helper()

	store := memory.New()
	aggregator := reaction.New(store, 0, zap.NewNop())

	return aggregator, store
}

func TestSetReaction(t *testing.T) {
	t.Parallel()

	aggregator, _ := setupTest(t)
	ctx := t.Context()

	summary, own, err := aggregator.SetReaction(ctx, "post-1", "user-1", types.ReactionLove, 2, false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Counts[types.ReactionLove])
	require.NotNil(t, own)
	assert.Equal(t, types.ReactionLove, own.Type)
	assert.Equal(t, 2, own.Intensity)
}

func TestSetReactionReplacesPrevious(t *testing.T) {
	t.Parallel()

	aggregator, _ := setupTest(t)
	ctx := t.Context()

	_, _, err := aggregator.SetReaction(ctx, "post-1", "user-1", types.ReactionLove, 1, false)
	require.NoError(t, err)

	// Same user reacting again replaces, never stacks
	summary, _, err := aggregator.SetReaction(ctx, "post-1", "user-1", types.ReactionExcited, 3, false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 0, summary.Counts[types.ReactionLove])
	assert.Equal(t, 1, summary.Counts[types.ReactionExcited])
}

func TestSetReactionValidation(t *testing.T) {
	t.Parallel()

	aggregator, _ := setupTest(t)
	ctx := t.Context()

	_, _, err := aggregator.SetReaction(ctx, "post-1", "user-1", "sparkle", 1, false)
	require.ErrorIs(t, err, reaction.ErrInvalidType)

	_, _, err = aggregator.SetReaction(ctx, "post-1", "user-1", types.ReactionLove, 0, false)
	require.ErrorIs(t, err, reaction.ErrInvalidIntensity)

	_, _, err = aggregator.SetReaction(ctx, "post-1", "user-1", types.ReactionLove, 4, false)
	require.ErrorIs(t, err, reaction.ErrInvalidIntensity)
}

func TestSummaryCountsSumToTotal(t *testing.T) {
	t.Parallel()

	aggregator, _ := setupTest(t)
	ctx := t.Context()

	users := []struct {
		id           string
		reactionType types.ReactionType
	}{
		{"user-1", types.ReactionLove},
		{"user-2", types.ReactionLove},
		{"user-3", types.ReactionPray},
		{"user-4", types.ReactionSupport},
	}

	var summary *types.ReactionSummary

	for _, u := range users {
		var err error

		summary, _, err = aggregator.SetReaction(t.Context(), "post-1", u.id, u.reactionType, 1, false)
		require.NoError(t, err)
	}

	sum := 0
	for _, count := range summary.Counts {
		sum += count
	}

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, summary.Total, sum)

	// Clearing one brings both total and its type count down
	summary, err := aggregator.ClearReaction(ctx, "post-1", "user-3")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 0, summary.Counts[types.ReactionPray])
}

func TestClearReactionIdempotent(t *testing.T) {
	t.Parallel()

	aggregator, _ := setupTest(t)
	ctx := t.Context()

	// Clearing a reaction that was never set is a no-op
	summary, err := aggregator.ClearReaction(ctx, "post-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
}

func TestDelta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		reaction types.Reaction
		expected float64
	}{
		{"love base", types.Reaction{Type: types.ReactionLove, Intensity: 1}, 1.0},
		{"love boosted", types.Reaction{Type: types.ReactionLove, Intensity: 2}, 1.25},
		{"love max", types.Reaction{Type: types.ReactionLove, Intensity: 3}, 1.5},
		{"laugh base", types.Reaction{Type: types.ReactionLaugh, Intensity: 1}, 0.6},
		{"pray milestone", types.Reaction{Type: types.ReactionPray, Intensity: 1, Milestone: true}, 1.4},
		{"excited milestone max", types.Reaction{Type: types.ReactionExcited, Intensity: 3, Milestone: true}, 2.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.expected, reaction.Delta(&tt.reaction), 1e-9)
		})
	}
}

func TestWarmthInputClampsPerUser(t *testing.T) {
	t.Parallel()

	store := memory.New()
	aggregator := reaction.New(store, 1.0, zap.NewNop())
	ctx := t.Context()

	// Milestone love at max intensity is worth 3.0 raw, clamped to 1.0
	_, _, err := aggregator.SetReaction(ctx, "post-1", "user-1", types.ReactionLove, 3, true)
	require.NoError(t, err)

	_, _, err = aggregator.SetReaction(ctx, "post-1", "user-2", types.ReactionLaugh, 1, false)
	require.NoError(t, err)

	input, err := aggregator.WarmthInput(ctx, "post-1")
	require.NoError(t, err)
	assert.InDelta(t, 1.6, input, 1e-9)
}

func TestWarmthInputIncludesCommentReactions(t *testing.T) {
	t.Parallel()

	aggregator, store := setupTest(t)
	ctx := t.Context()

	require.NoError(t, store.CreateComment(ctx, &types.Comment{
		ID: "comment-1", PostID: "post-1", AuthorID: "mom", Body: "so happy",
	}))

	// laugh on the post (0.6) plus love on its comment (1.0)
	_, _, err := aggregator.SetReaction(ctx, "post-1", "user-1", types.ReactionLaugh, 1, false)
	require.NoError(t, err)

	_, _, err = aggregator.SetReaction(ctx, "comment-1", "user-2", types.ReactionLove, 1, false)
	require.NoError(t, err)

	input, err := aggregator.WarmthInput(ctx, "post-1")
	require.NoError(t, err)
	assert.InDelta(t, 1.6, input, 1e-9)
}

func TestUserReaction(t *testing.T) {
	t.Parallel()

	aggregator, _ := setupTest(t)
	ctx := t.Context()

	own, err := aggregator.UserReaction(ctx, "post-1", "user-1")
	require.NoError(t, err)
	assert.Nil(t, own)

	_, _, err = aggregator.SetReaction(ctx, "post-1", "user-1", types.ReactionSupport, 1, false)
	require.NoError(t, err)

	own, err = aggregator.UserReaction(ctx, "post-1", "user-1")
	require.NoError(t, err)
	require.NotNil(t, own)
	assert.Equal(t, types.ReactionSupport, own.Type)
}
