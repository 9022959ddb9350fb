// Package thread owns the hierarchical comment structure of a post: bounded
// nesting depth, ancestor paths for subtree queries, mention resolution and
// tombstoning. Comments are stored flat; trees are rebuilt from paths.
package thread

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bumpring/bumpring/internal/database/types"
	"github.com/bumpring/bumpring/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrThreadTooDeep  = errors.New("thread too deep")
	ErrEmptyBody      = errors.New("comment body is empty")
	ErrBodyTooLong    = errors.New("comment body too long")
	ErrParentMismatch = errors.New("parent comment belongs to a different post")
	ErrNotAuthor      = errors.New("only the comment author may modify it")
)

// DefaultViewDepth is the nesting level GetThread expands when the caller
// does not specify one. Replies below the cutoff are collapsed into counts.
const DefaultViewDepth = 3

// Node is one comment in a rendered thread view with its expanded replies.
// HiddenReplies counts descendants below the view's depth cutoff, so
// clients can show an "N more replies" marker instead of losing them.
type Node struct {
	Comment       *types.Comment `json:"comment"`
	Replies       []*Node        `json:"replies,omitempty"`
	HiddenReplies int            `json:"hiddenReplies,omitempty"`
}

// Thread is a bounded-depth view of a post's comments.
type Thread struct {
	PostID    string  `json:"postId"`
	Roots     []*Node `json:"roots"`
	Total     int     `json:"total"`     // All live comments on the post
	MoreRoots int     `json:"moreRoots"` // Root comments beyond the requested page
}

// Manager coordinates comment mutations and thread retrieval on top of the
// store. Callers hold the per-post lock for mutations.
type Manager struct {
	store  storage.Store
	logger *zap.Logger
}

// NewManager creates a comment thread manager.
func NewManager(store storage.Store, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger.Named("thread"),
	}
}

// AddComment creates a comment on the post, nested under parentID when it
// is non-empty. Depth and path are computed from the parent, never supplied
// by the caller; a reply to a comment already at the maximum depth is
// rejected with ErrThreadTooDeep rather than flattened.
func (m *Manager) AddComment(ctx context.Context, postID, parentID, authorID, body string) (*types.Comment, error) {
	if err := validateBody(body); err != nil {
		return nil, err
	}

	post, err := m.store.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}

	comment := &types.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	if parentID != "" {
		parent, err := m.store.GetComment(ctx, parentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load parent comment: %w", err)
		}

		if parent.PostID != postID {
			return nil, ErrParentMismatch
		}

		if parent.Depth >= types.MaxCommentDepth {
			return nil, fmt.Errorf("%w: parent at depth %d", ErrThreadTooDeep, parent.Depth)
		}

		comment.ParentID = parent.ID
		comment.Depth = parent.Depth + 1
		comment.Path = append(append([]string{}, parent.Path...), parent.ID)
	}

	mentions, err := m.resolveMentions(ctx, post.GroupID, body)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve mentions: %w", err)
	}

	comment.Mentions = mentions

	if err := m.store.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	m.logger.Debug("Added comment",
		zap.String("postID", postID),
		zap.String("commentID", comment.ID),
		zap.Int("depth", comment.Depth))

	return comment, nil
}

// EditComment replaces the comment body. Depth and path are preserved;
// mentions are re-resolved against the group.
func (m *Manager) EditComment(ctx context.Context, commentID, editorID, body string) (*types.Comment, error) {
	if err := validateBody(body); err != nil {
		return nil, err
	}

	comment, err := m.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load comment: %w", err)
	}

	if comment.AuthorID != editorID {
		return nil, ErrNotAuthor
	}

	post, err := m.store.GetPost(ctx, comment.PostID)
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}

	mentions, err := m.resolveMentions(ctx, post.GroupID, body)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve mentions: %w", err)
	}

	comment.Body = body
	comment.Mentions = mentions
	comment.EditedAt = time.Now().UTC()

	if err := m.store.SaveComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to save comment: %w", err)
	}

	return comment, nil
}

// DeleteComment removes the comment. A comment with existing replies is
// tombstoned (body replaced, node kept) so descendants keep their thread
// structure; a leaf comment is removed outright. The returned bool reports
// whether the node survived as a tombstone.
func (m *Manager) DeleteComment(ctx context.Context, commentID, userID string) (*types.Comment, bool, error) {
	comment, err := m.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load comment: %w", err)
	}

	if comment.AuthorID != userID {
		return nil, false, ErrNotAuthor
	}

	replies, err := m.store.ReplyCount(ctx, commentID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to count replies: %w", err)
	}

	if replies > 0 {
		comment.Body = types.TombstoneBody
		comment.Mentions = nil
		comment.Deleted = true

		if err := m.store.SaveComment(ctx, comment); err != nil {
			return nil, false, fmt.Errorf("failed to tombstone comment: %w", err)
		}

		m.logger.Debug("Tombstoned comment with replies",
			zap.String("commentID", commentID),
			zap.Int("replies", replies))

		return comment, true, nil
	}

	if err := m.store.DeleteComment(ctx, commentID); err != nil {
		return nil, false, fmt.Errorf("failed to delete comment: %w", err)
	}

	comment.Deleted = true

	return comment, false, nil
}

// GetThread returns a bounded-depth tree of the post's comments. maxDepth
// limits expansion (DefaultViewDepth when <= 0); descendants below the
// cutoff are surfaced as HiddenReplies counts. pageSize bounds the number
// of root comments returned (all roots when <= 0).
func (m *Manager) GetThread(ctx context.Context, postID string, maxDepth, pageSize int) (*Thread, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultViewDepth
	}

	comments, err := m.store.CommentsForPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}

	nodes := make(map[string]*Node, len(comments))
	hiddenBelow := make(map[string]int)

	var roots []*Node

	total := 0

	for _, comment := range comments {
		if !comment.Deleted {
			total++
		}

		if comment.Depth > maxDepth {
			// Collapsed: attribute the comment to its shallowest visible
			// ancestor, found at position maxDepth of the path.
			if !comment.Deleted && len(comment.Path) > maxDepth {
				hiddenBelow[comment.Path[maxDepth]]++
			}

			continue
		}

		node := &Node{Comment: comment}
		nodes[comment.ID] = node

		if comment.IsRoot() {
			roots = append(roots, node)
			continue
		}

		if parent, ok := nodes[comment.ParentID]; ok {
			parent.Replies = append(parent.Replies, node)
		}
	}

	for id, hidden := range hiddenBelow {
		if node, ok := nodes[id]; ok {
			node.HiddenReplies = hidden
		}
	}

	moreRoots := 0
	if pageSize > 0 && len(roots) > pageSize {
		moreRoots = len(roots) - pageSize
		roots = roots[:pageSize]
	}

	return &Thread{
		PostID:    postID,
		Roots:     roots,
		Total:     total,
		MoreRoots: moreRoots,
	}, nil
}

// CommentCount returns the number of live (non-tombstoned) comments.
func (m *Manager) CommentCount(ctx context.Context, postID string) (int, error) {
	comments, err := m.store.CommentsForPost(ctx, postID)
	if err != nil {
		return 0, fmt.Errorf("failed to load comments: %w", err)
	}

	count := 0

	for _, comment := range comments {
		if !comment.Deleted {
			count++
		}
	}

	return count, nil
}

// WeightedCount sums live comments with replies discounted by replyWeight,
// feeding the comment_warmth sub-score.
func (m *Manager) WeightedCount(ctx context.Context, postID string, replyWeight float64) (float64, error) {
	comments, err := m.store.CommentsForPost(ctx, postID)
	if err != nil {
		return 0, fmt.Errorf("failed to load comments: %w", err)
	}

	var weighted float64

	for _, comment := range comments {
		if comment.Deleted {
			continue
		}

		if comment.IsRoot() {
			weighted += 1.0
		} else {
			weighted += replyWeight
		}
	}

	return weighted, nil
}

func validateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return ErrEmptyBody
	}

	if utf8.RuneCountInString(body) > types.MaxCommentLength {
		return ErrBodyTooLong
	}

	return nil
}
