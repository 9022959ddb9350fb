// Package memory implements storage.Store with plain in-process maps.
// It backs the engine's unit tests and local development without PostgreSQL.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bumpring/bumpring/internal/database/types"
)

// Store holds all records in memory behind a single RWMutex. Good enough
// for tests; the mutex makes every operation atomic, mirroring the per-post
// atomicity the PostgreSQL store provides through transactions.
type Store struct {
	mu        sync.RWMutex
	posts     map[string]*types.Post
	reactions map[string]map[string]*types.Reaction // targetID -> userID -> reaction
	comments  map[string]*types.Comment
	byPost    map[string][]string // postID -> comment ids in creation order
	members   map[string][]*types.GroupMember
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		posts:     make(map[string]*types.Post),
		reactions: make(map[string]map[string]*types.Reaction),
		comments:  make(map[string]*types.Comment),
		byPost:    make(map[string][]string),
		members:   make(map[string][]*types.GroupMember),
	}
}

// AddPost seeds a post. Test helper, not part of storage.Store.
func (s *Store) AddPost(post *types.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}

	if post.ReactionSummary == nil {
		post.ReactionSummary = types.NewReactionSummary()
	}

	s.posts[post.ID] = post
}

// AddMember seeds a group member. Test helper, not part of storage.Store.
func (s *Store) AddMember(member *types.GroupMember) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now().UTC()
	}

	s.members[member.GroupID] = append(s.members[member.GroupID], member)
}

func (s *Store) GetPost(_ context.Context, postID string) (*types.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[postID]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", postID, types.ErrNotFound)
	}

	clone := *post

	return &clone, nil
}

func (s *Store) SavePostDerived(_ context.Context, post *types.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.posts[post.ID]
	if !ok {
		return fmt.Errorf("post %s: %w", post.ID, types.ErrNotFound)
	}

	existing.ReactionSummary = post.ReactionSummary
	existing.WarmthScore = post.WarmthScore
	existing.CommentCount = post.CommentCount

	return nil
}

func (s *Store) FeedPosts(_ context.Context, groupID string, limit, offset int) ([]*types.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var posts []*types.Post

	for _, post := range s.posts {
		if post.GroupID == groupID {
			clone := *post
			posts = append(posts, &clone)
		}
	}

	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	if offset >= len(posts) {
		return []*types.Post{}, nil
	}

	end := offset + limit
	if end > len(posts) {
		end = len(posts)
	}

	return posts[offset:end], nil
}

func (s *Store) UpsertReaction(_ context.Context, reaction *types.Reaction) (*types.Reaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byUser, ok := s.reactions[reaction.TargetID]
	if !ok {
		byUser = make(map[string]*types.Reaction)
		s.reactions[reaction.TargetID] = byUser
	}

	previous := byUser[reaction.UserID]

	clone := *reaction
	byUser[reaction.UserID] = &clone

	return previous, nil
}

func (s *Store) DeleteReaction(_ context.Context, targetID, userID string) (*types.Reaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byUser := s.reactions[targetID]

	previous, ok := byUser[userID]
	if !ok {
		return nil, fmt.Errorf("reaction on %s by %s: %w", targetID, userID, types.ErrNotFound)
	}

	delete(byUser, userID)

	return previous, nil
}

func (s *Store) ReactionsForTarget(_ context.Context, targetID string) ([]*types.Reaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byUser := s.reactions[targetID]

	reactions := make([]*types.Reaction, 0, len(byUser))
	for _, reaction := range byUser {
		clone := *reaction
		reactions = append(reactions, &clone)
	}

	sort.Slice(reactions, func(i, j int) bool {
		return reactions[i].CreatedAt.Before(reactions[j].CreatedAt)
	})

	return reactions, nil
}

func (s *Store) ReactionsForPost(_ context.Context, postID string) ([]*types.Reaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	targets := make([]string, 0, len(s.byPost[postID])+1)
	targets = append(targets, postID)
	targets = append(targets, s.byPost[postID]...)

	var reactions []*types.Reaction

	for _, target := range targets {
		for _, reaction := range s.reactions[target] {
			clone := *reaction
			reactions = append(reactions, &clone)
		}
	}

	sort.Slice(reactions, func(i, j int) bool {
		return reactions[i].CreatedAt.Before(reactions[j].CreatedAt)
	})

	return reactions, nil
}

func (s *Store) CreateComment(_ context.Context, comment *types.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.comments[comment.ID]; exists {
		return fmt.Errorf("comment %s already exists", comment.ID)
	}

	clone := *comment
	s.comments[comment.ID] = &clone
	s.byPost[comment.PostID] = append(s.byPost[comment.PostID], comment.ID)

	return nil
}

func (s *Store) GetComment(_ context.Context, commentID string) (*types.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comment, ok := s.comments[commentID]
	if !ok {
		return nil, fmt.Errorf("comment %s: %w", commentID, types.ErrNotFound)
	}

	clone := *comment

	return &clone, nil
}

func (s *Store) SaveComment(_ context.Context, comment *types.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[comment.ID]; !ok {
		return fmt.Errorf("comment %s: %w", comment.ID, types.ErrNotFound)
	}

	clone := *comment
	s.comments[comment.ID] = &clone

	return nil
}

func (s *Store) DeleteComment(_ context.Context, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.comments[commentID]
	if !ok {
		return fmt.Errorf("comment %s: %w", commentID, types.ErrNotFound)
	}

	delete(s.comments, commentID)

	ids := s.byPost[comment.PostID]
	for i, id := range ids {
		if id == commentID {
			s.byPost[comment.PostID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}

	return nil
}

func (s *Store) CommentsForPost(_ context.Context, postID string) ([]*types.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byPost[postID]

	comments := make([]*types.Comment, 0, len(ids))
	for _, id := range ids {
		clone := *s.comments[id]
		comments = append(comments, &clone)
	}

	return comments, nil
}

func (s *Store) ReplyCount(_ context.Context, commentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0

	for _, comment := range s.comments {
		if comment.HasAncestor(commentID) {
			count++
		}
	}

	return count, nil
}

func (s *Store) GroupMembers(_ context.Context, groupID string) ([]*types.GroupMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]*types.GroupMember, 0, len(s.members[groupID]))
	members = append(members, s.members[groupID]...)

	return members, nil
}
