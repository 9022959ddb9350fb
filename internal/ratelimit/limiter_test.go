package ratelimit_test

import (
	"testing"
	"time"

	"github.com/bumpring/bumpring/internal/ratelimit"
	"github.com/bumpring/bumpring/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTest(t *testing.T) *ratelimit.Limiter {
	t.Helper()

	cfg := &config.RateLimit{
		Reactions: config.OperationLimit{PerMinute: 60, Burst: 3},
		Comments:  config.OperationLimit{PerMinute: 6, Burst: 1},
	}

	return ratelimit.New(cfg, zap.NewNop())
}

func TestAllowWithinBurst(t *testing.T) {
	t.Parallel()

	limiter := setupTest(t)

	for range 3 {
		allowed, err := limiter.Allow("user-1", ratelimit.OpReaction)
		require.NoError(t, err)
		assert.True(t, allowed)

		limiter.Record("user-1", ratelimit.OpReaction)
	}
}

func TestAllowRejectsAboveThreshold(t *testing.T) {
	t.Parallel()

	limiter := setupTest(t)

	allowed, err := limiter.Allow("user-1", ratelimit.OpComment)
	require.NoError(t, err)
	assert.True(t, allowed)
	limiter.Record("user-1", ratelimit.OpComment)

	allowed, err = limiter.Allow("user-1", ratelimit.OpComment)
	assert.False(t, allowed)

	var rateErr *ratelimit.Error
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, ratelimit.OpComment, rateErr.Operation)
	assert.GreaterOrEqual(t, rateErr.RetryAfter, time.Second)
}

func TestAllowDoesNotConsume(t *testing.T) {
	t.Parallel()

	limiter := setupTest(t)

	// Repeated checks without Record never exhaust the window
	for range 10 {
		allowed, err := limiter.Allow("user-1", ratelimit.OpComment)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestOperationsIsolated(t *testing.T) {
	t.Parallel()

	limiter := setupTest(t)

	limiter.Record("user-1", ratelimit.OpComment)

	// Burning the comment allowance leaves reactions untouched
	allowed, err := limiter.Allow("user-1", ratelimit.OpComment)
	assert.False(t, allowed)
	require.Error(t, err)

	allowed, err = limiter.Allow("user-1", ratelimit.OpReaction)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestUsersIsolated(t *testing.T) {
	t.Parallel()

	limiter := setupTest(t)

	limiter.Record("user-1", ratelimit.OpComment)

	allowed, err := limiter.Allow("user-2", ratelimit.OpComment)
	require.NoError(t, err)
	assert.True(t, allowed)
}
