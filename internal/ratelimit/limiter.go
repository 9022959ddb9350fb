// Package ratelimit bounds how often each user may perform an operation
// class. Sliding windows are kept per (user, operation) with distinct
// thresholds per class; callers receive a structured rejection with a
// retry-after duration rather than being queued or delayed.
package ratelimit

import (
	"fmt"
	"time"

	"github.com/bumpring/bumpring/internal/setup/config"
	"github.com/bumpring/bumpring/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Operation classes. Reactions are cheap and get the higher allowance;
// comments are more expensive to produce and moderate.
const (
	OpReaction = "reaction"
	OpComment  = "comment"
)

// limiterTTL controls how long an idle (user, operation) window survives
// before its state is discarded.
const limiterTTL = 10 * time.Minute

// Error is the structured rejection returned when a user exceeds their
// allowance. RetryAfter tells the client when the next attempt can succeed.
type Error struct {
	Operation  string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Operation, e.RetryAfter)
}

// Limiter tracks per-user sliding windows for each operation class.
type Limiter struct {
	limiters *utils.TTLMap[string, *rate.Limiter]
	config   *config.RateLimit
	logger   *zap.Logger
}

// New creates a rate limiter from the per-class configuration.
func New(config *config.RateLimit, logger *zap.Logger) *Limiter {
	return &Limiter{
		limiters: utils.NewTTLMap[string, *rate.Limiter](limiterTTL),
		config:   config,
		logger:   logger.Named("ratelimit"),
	}
}

// Allow reports whether the user may perform the operation right now. It
// does not consume from the window; callers invoke Record once the
// operation has actually been applied, so rejected mutations never burn
// allowance. On rejection the returned error carries the retry-after.
func (l *Limiter) Allow(userID, operation string) (bool, error) {
	limiter := l.getLimiter(userID, operation)

	reservation := limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()

	if delay > 0 {
		l.logger.Debug("Rate limit exceeded",
			zap.String("userID", userID),
			zap.String("operation", operation),
			zap.Duration("retryAfter", delay))

		retryAfter := delay.Round(time.Second)
		if retryAfter == 0 {
			retryAfter = time.Second
		}

		return false, &Error{Operation: operation, RetryAfter: retryAfter}
	}

	return true, nil
}

// Record consumes one slot of the user's window for the operation.
func (l *Limiter) Record(userID, operation string) {
	l.getLimiter(userID, operation).Allow()
}

// getLimiter retrieves or creates the sliding window for (user, operation).
func (l *Limiter) getLimiter(userID, operation string) *rate.Limiter {
	key := userID + ":" + operation

	if limiter, ok := l.limiters.Get(key); ok {
		return limiter
	}

	opLimit := l.opLimit(operation)
	limiter := rate.NewLimiter(rate.Limit(opLimit.PerMinute/60.0), opLimit.Burst)
	l.limiters.Set(key, limiter)

	return limiter
}

func (l *Limiter) opLimit(operation string) config.OperationLimit {
	switch operation {
	case OpComment:
		return l.config.Comments
	default:
		return l.config.Reactions
	}
}
