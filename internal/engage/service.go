// Package engage orchestrates the engagement engine: rate limiting,
// visibility checks, the per-post critical section around aggregation and
// scoring, cache invalidation and live fan-out. Mutation responses carry
// the authoritative state so the acting client can resolve its optimistic
// placeholder without a second round trip.
package engage

import (
	"context"
	"errors"
	"fmt"

	"github.com/bumpring/bumpring/internal/database/types"
	"github.com/bumpring/bumpring/internal/engage/reaction"
	"github.com/bumpring/bumpring/internal/engage/thread"
	"github.com/bumpring/bumpring/internal/engage/warmth"
	"github.com/bumpring/bumpring/internal/hub"
	"github.com/bumpring/bumpring/internal/ratelimit"
	"github.com/bumpring/bumpring/internal/storage"
	"go.uber.org/zap"
)

// ErrNotAllowed is returned when the visibility gate denies the user access
// to the target post. No state changes and nothing is broadcast.
var ErrNotAllowed = errors.New("user may not view this post")

// Invalidator evicts cached read models by pattern. Implemented by the
// cache layer; a failing invalidation degrades to eventual consistency and
// never fails the mutation.
type Invalidator interface {
	InvalidateAll(ctx context.Context, patterns ...string) (int, error)
}

// Broadcaster fans events out to a pregnancy group's live connections.
type Broadcaster interface {
	Broadcast(groupID string, event hub.Event, excludeUserID string)
}

// CachePatterns derives the eviction patterns for a post mutation: every
// key scoped to the post plus the owning group's feed listings.
type CachePatterns func(groupID, postID string) []string

// Service is the engagement engine facade consumed by the REST layer.
type Service struct {
	store      storage.Store
	gate       VisibilityGate
	limiter    *ratelimit.Limiter
	aggregator *reaction.Aggregator
	threads    *thread.Manager
	scorer     *warmth.Scorer
	cache      Invalidator
	broadcast  Broadcaster
	patterns   CachePatterns
	locks      *postLocks
	logger     *zap.Logger
}

// NewService wires the engagement engine. cache and broadcast may be nil;
// the engine then runs without read-model eviction or live fan-out, which
// tests and degraded deployments use.
func NewService(
	store storage.Store, gate VisibilityGate, limiter *ratelimit.Limiter,
	aggregator *reaction.Aggregator, threads *thread.Manager, scorer *warmth.Scorer,
	cache Invalidator, broadcast Broadcaster, patterns CachePatterns,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:      store,
		gate:       gate,
		limiter:    limiter,
		aggregator: aggregator,
		threads:    threads,
		scorer:     scorer,
		cache:      cache,
		broadcast:  broadcast,
		patterns:   patterns,
		locks:      newPostLocks(),
		logger:     logger.Named("engage"),
	}
}

// ReactionRequest mutates the acting user's reaction on a target. TargetID
// may be the post itself or one of its comments; empty means the post.
// ClientRef is the client-generated temp id echoed back for optimistic
// reconciliation.
type ReactionRequest struct {
	PostID    string
	TargetID  string
	UserID    string
	Type      types.ReactionType
	Intensity int
	Milestone bool
	ClientRef string
}

// ReactionResult is the authoritative outcome of a reaction mutation.
type ReactionResult struct {
	ClientRef   string                 `json:"clientRef,omitempty"`
	PostID      string                 `json:"postId"`
	TargetID    string                 `json:"targetId"`
	Summary     *types.ReactionSummary `json:"summary"`
	OwnReaction *types.Reaction        `json:"ownReaction,omitempty"`
	Warmth      *types.WarmthScore     `json:"warmth"`
}

// React sets or replaces the user's reaction on the target.
func (s *Service) React(ctx context.Context, req ReactionRequest) (*ReactionResult, error) {
	if err := s.admit(ctx, req.UserID, req.PostID, ratelimit.OpReaction); err != nil {
		return nil, err
	}

	targetID := req.TargetID
	if targetID == "" {
		targetID = req.PostID
	}

	var (
		summary *types.ReactionSummary
		own     *types.Reaction
		score   *types.WarmthScore
		groupID string
	)

	err := s.withPost(ctx, req.PostID, func(ctx context.Context, post *types.Post) error {
		groupID = post.GroupID

		if err := s.checkReactionTarget(ctx, post.ID, targetID); err != nil {
			return err
		}

		var err error

		summary, own, err = s.aggregator.SetReaction(ctx, targetID, req.UserID,
			req.Type, req.Intensity, req.Milestone)
		if err != nil {
			return err
		}

		score, err = s.scorer.Recompute(ctx, req.PostID)
		if err != nil {
			return err
		}

		if targetID == post.ID {
			post.ReactionSummary = summary
		}

		post.WarmthScore = score

		return s.store.SavePostDerived(ctx, post)
	})
	if err != nil {
		return nil, err
	}

	s.limiter.Record(req.UserID, ratelimit.OpReaction)
	s.finishMutation(ctx, groupID, req.PostID, req.UserID, hub.ReactionChanged{
		PostID:   req.PostID,
		TargetID: targetID,
		ActorID:  req.UserID,
		Summary:  summary,
		Warmth:   score,
	})

	return &ReactionResult{
		ClientRef:   req.ClientRef,
		PostID:      req.PostID,
		TargetID:    targetID,
		Summary:     summary,
		OwnReaction: own,
		Warmth:      score,
	}, nil
}

// Unreact clears the user's reaction from the target.
func (s *Service) Unreact(ctx context.Context, req ReactionRequest) (*ReactionResult, error) {
	if err := s.admit(ctx, req.UserID, req.PostID, ratelimit.OpReaction); err != nil {
		return nil, err
	}

	targetID := req.TargetID
	if targetID == "" {
		targetID = req.PostID
	}

	var (
		summary *types.ReactionSummary
		score   *types.WarmthScore
		groupID string
	)

	err := s.withPost(ctx, req.PostID, func(ctx context.Context, post *types.Post) error {
		groupID = post.GroupID

		if err := s.checkReactionTarget(ctx, post.ID, targetID); err != nil {
			return err
		}

		var err error

		summary, err = s.aggregator.ClearReaction(ctx, targetID, req.UserID)
		if err != nil {
			return err
		}

		score, err = s.scorer.Recompute(ctx, req.PostID)
		if err != nil {
			return err
		}

		if targetID == post.ID {
			post.ReactionSummary = summary
		}

		post.WarmthScore = score

		return s.store.SavePostDerived(ctx, post)
	})
	if err != nil {
		return nil, err
	}

	s.limiter.Record(req.UserID, ratelimit.OpReaction)
	s.finishMutation(ctx, groupID, req.PostID, req.UserID, hub.ReactionChanged{
		PostID:   req.PostID,
		TargetID: targetID,
		ActorID:  req.UserID,
		Summary:  summary,
		Warmth:   score,
	})

	return &ReactionResult{
		ClientRef: req.ClientRef,
		PostID:    req.PostID,
		TargetID:  targetID,
		Summary:   summary,
		Warmth:    score,
	}, nil
}

// CommentRequest creates a comment, optionally nested under ParentID.
type CommentRequest struct {
	PostID    string
	ParentID  string
	AuthorID  string
	Body      string
	ClientRef string
}

// CommentResult is the authoritative outcome of a comment mutation.
type CommentResult struct {
	ClientRef    string             `json:"clientRef,omitempty"`
	PostID       string             `json:"postId"`
	Comment      *types.Comment     `json:"comment,omitempty"`
	CommentCount int                `json:"commentCount"`
	Warmth       *types.WarmthScore `json:"warmth"`
	Removed      bool               `json:"removed,omitempty"`
}

// Comment adds a comment to the post.
func (s *Service) Comment(ctx context.Context, req CommentRequest) (*CommentResult, error) {
	if err := s.admit(ctx, req.AuthorID, req.PostID, ratelimit.OpComment); err != nil {
		return nil, err
	}

	var (
		comment *types.Comment
		score   *types.WarmthScore
		count   int
		groupID string
	)

	err := s.withPost(ctx, req.PostID, func(ctx context.Context, post *types.Post) error {
		groupID = post.GroupID

		var err error

		comment, err = s.threads.AddComment(ctx, req.PostID, req.ParentID, req.AuthorID, req.Body)
		if err != nil {
			return err
		}

		count, err = s.threads.CommentCount(ctx, req.PostID)
		if err != nil {
			return err
		}

		score, err = s.scorer.Recompute(ctx, req.PostID)
		if err != nil {
			return err
		}

		post.CommentCount = count
		post.WarmthScore = score

		return s.store.SavePostDerived(ctx, post)
	})
	if err != nil {
		return nil, err
	}

	s.limiter.Record(req.AuthorID, ratelimit.OpComment)
	s.finishMutation(ctx, groupID, req.PostID, req.AuthorID, hub.CommentAdded{
		PostID:       req.PostID,
		ActorID:      req.AuthorID,
		Comment:      comment,
		CommentCount: count,
		Warmth:       score,
	})

	return &CommentResult{
		ClientRef:    req.ClientRef,
		PostID:       req.PostID,
		Comment:      comment,
		CommentCount: count,
		Warmth:       score,
	}, nil
}

// EditComment replaces a comment's body.
func (s *Service) EditComment(ctx context.Context, commentID, editorID, body, clientRef string) (*CommentResult, error) {
	existing, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load comment: %w", err)
	}

	if err := s.admit(ctx, editorID, existing.PostID, ratelimit.OpComment); err != nil {
		return nil, err
	}

	var (
		comment *types.Comment
		groupID string
	)

	err = s.withPost(ctx, existing.PostID, func(ctx context.Context, post *types.Post) error {
		groupID = post.GroupID

		comment, err = s.threads.EditComment(ctx, commentID, editorID, body)

		return err
	})
	if err != nil {
		return nil, err
	}

	s.limiter.Record(editorID, ratelimit.OpComment)
	s.finishMutation(ctx, groupID, existing.PostID, editorID, hub.CommentUpdated{
		PostID:  existing.PostID,
		ActorID: editorID,
		Comment: comment,
	})

	return &CommentResult{
		ClientRef: clientRef,
		PostID:    existing.PostID,
		Comment:   comment,
	}, nil
}

// DeleteComment removes a comment, tombstoning it when replies exist.
func (s *Service) DeleteComment(ctx context.Context, commentID, userID, clientRef string) (*CommentResult, error) {
	existing, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load comment: %w", err)
	}

	if err := s.admit(ctx, userID, existing.PostID, ratelimit.OpComment); err != nil {
		return nil, err
	}

	var (
		comment    *types.Comment
		tombstoned bool
		score      *types.WarmthScore
		count      int
		groupID    string
	)

	err = s.withPost(ctx, existing.PostID, func(ctx context.Context, post *types.Post) error {
		groupID = post.GroupID

		var err error

		comment, tombstoned, err = s.threads.DeleteComment(ctx, commentID, userID)
		if err != nil {
			return err
		}

		count, err = s.threads.CommentCount(ctx, existing.PostID)
		if err != nil {
			return err
		}

		score, err = s.scorer.Recompute(ctx, existing.PostID)
		if err != nil {
			return err
		}

		post.CommentCount = count
		post.WarmthScore = score

		return s.store.SavePostDerived(ctx, post)
	})
	if err != nil {
		return nil, err
	}

	removed := !tombstoned

	event := hub.CommentRemoved{
		PostID:       existing.PostID,
		ActorID:      userID,
		CommentID:    commentID,
		Removed:      removed,
		CommentCount: count,
		Warmth:       score,
	}
	if tombstoned {
		event.Tombstone = comment
	}

	s.limiter.Record(userID, ratelimit.OpComment)
	s.finishMutation(ctx, groupID, existing.PostID, userID, event)

	return &CommentResult{
		ClientRef:    clientRef,
		PostID:       existing.PostID,
		Comment:      comment,
		CommentCount: count,
		Warmth:       score,
		Removed:      removed,
	}, nil
}

// Thread returns the post's bounded-depth comment tree.
func (s *Service) Thread(ctx context.Context, userID, postID string, maxDepth, pageSize int) (*thread.Thread, error) {
	allowed, err := s.gate.CanView(ctx, userID, postID)
	if err != nil {
		return nil, fmt.Errorf("visibility check failed: %w", err)
	}

	if !allowed {
		return nil, ErrNotAllowed
	}

	return s.threads.GetThread(ctx, postID, maxDepth, pageSize)
}

// Post returns the post with its derived fields plus the user's own
// reaction, the fresh read served right after a mutation.
func (s *Service) Post(ctx context.Context, userID, postID string) (*types.Post, *types.Reaction, error) {
	allowed, err := s.gate.CanView(ctx, userID, postID)
	if err != nil {
		return nil, nil, fmt.Errorf("visibility check failed: %w", err)
	}

	if !allowed {
		return nil, nil, ErrNotAllowed
	}

	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, nil, err
	}

	own, err := s.aggregator.UserReaction(ctx, postID, userID)
	if err != nil {
		return nil, nil, err
	}

	return post, own, nil
}

// CanView reports whether the user may view the post. Exposed for read
// paths that must gate before consulting the cache.
func (s *Service) CanView(ctx context.Context, userID, postID string) (bool, error) {
	return s.gate.CanView(ctx, userID, postID)
}

// Member reports whether the user belongs to the pregnancy group. Feed
// reads check membership before touching the cached page so cache hits
// never leak another family's posts.
func (s *Service) Member(ctx context.Context, userID, groupID string) (bool, error) {
	members, err := s.store.GroupMembers(ctx, groupID)
	if err != nil {
		return false, fmt.Errorf("failed to load group members: %w", err)
	}

	for _, m := range members {
		if m.UserID == userID {
			return true, nil
		}
	}

	return false, nil
}

// Feed returns a page of the group's posts, newest first. Only group
// members may read the feed.
func (s *Service) Feed(ctx context.Context, userID, groupID string, limit, offset int) ([]*types.Post, error) {
	member, err := s.Member(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}

	if !member {
		return nil, ErrNotAllowed
	}

	return s.store.FeedPosts(ctx, groupID, limit, offset)
}

// admit runs the rate limit and visibility checks shared by all mutations.
func (s *Service) admit(ctx context.Context, userID, postID, operation string) error {
	if allowed, err := s.limiter.Allow(userID, operation); !allowed {
		return err
	}

	allowed, err := s.gate.CanView(ctx, userID, postID)
	if err != nil {
		return fmt.Errorf("visibility check failed: %w", err)
	}

	if !allowed {
		return ErrNotAllowed
	}

	return nil
}

// checkReactionTarget verifies the reaction target belongs to the post the
// visibility gate admitted: the post itself or one of its own comments. A
// target on another post would slip past the gate, so anything else is
// rejected before any state changes.
func (s *Service) checkReactionTarget(ctx context.Context, postID, targetID string) error {
	if targetID == postID {
		return nil
	}

	comment, err := s.store.GetComment(ctx, targetID)
	if err != nil {
		return fmt.Errorf("failed to load reaction target: %w", err)
	}

	if comment.PostID != postID {
		return fmt.Errorf("reaction target %s: %w", targetID, types.ErrNotFound)
	}

	return nil
}

// withPost runs fn inside the post's critical section with a fresh copy of
// the post row. The lock is held only around store reads/writes and score
// computation, never across cache or broadcast I/O.
func (s *Service) withPost(ctx context.Context, postID string, fn func(context.Context, *types.Post) error) error {
	unlock := s.locks.Lock(postID)
	defer unlock()

	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return fmt.Errorf("failed to load post: %w", err)
	}

	return fn(ctx, post)
}

// finishMutation runs the after-commit path: evict affected cache entries
// before the caller responds, then fan the event out to the rest of the
// family. Both steps degrade to eventual consistency on failure. The group
// id comes from the post copy the mutation already loaded, so a committed
// mutation never skips invalidation over a failed re-read.
func (s *Service) finishMutation(ctx context.Context, groupID, postID, actorID string, event hub.Event) {
	if s.cache != nil && s.patterns != nil {
		if _, err := s.cache.InvalidateAll(ctx, s.patterns(groupID, postID)...); err != nil {
			s.logger.Warn("Cache invalidation failed, relying on TTL expiry",
				zap.String("postID", postID), zap.Error(err))
		}
	}

	if s.broadcast != nil {
		go s.broadcast.Broadcast(groupID, event, actorID)
	}
}
