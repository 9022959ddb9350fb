package types

import (
	"time"
)

// MaxCommentDepth is the deepest nesting level a comment may occupy.
// Roots sit at depth 0; a reply to a comment already at this depth is
// rejected outright rather than flattened.
const MaxCommentDepth = 4

// MaxCommentLength bounds the comment body in runes.
const MaxCommentLength = 2000

// TombstoneBody replaces the body of a deleted comment that still has
// replies, preserving thread structure for its descendants.
const TombstoneBody = "[comment removed]"

// Comment represents one node of a post's discussion thread. Comments are
// stored flat; the tree is reconstructed from ParentID and Path, which holds
// the ordered ancestor ids and enables subtree queries by prefix match.
type Comment struct {
	ID        string    `bun:",pk,notnull" json:"id"`
	PostID    string    `bun:",notnull"    json:"postId"`
	ParentID  string    `bun:",nullzero"   json:"parentId,omitempty"` // Empty for root comments
	Depth     int       `bun:",notnull"    json:"depth"`
	Path      []string  `bun:",array"      json:"path"`
	AuthorID  string    `bun:",notnull"    json:"authorId"`
	Body      string    `bun:",notnull"    json:"body"`
	Mentions  []string  `bun:",array"      json:"mentions,omitempty"`
	CreatedAt time.Time `bun:",notnull"    json:"createdAt"`
	EditedAt  time.Time `bun:",nullzero"   json:"editedAt,omitempty"`
	Deleted   bool      `bun:",notnull"    json:"deleted"`
}

// IsRoot reports whether the comment is a top-level comment on its post.
func (c *Comment) IsRoot() bool {
	return c.ParentID == ""
}

// HasAncestor reports whether id appears in the comment's ancestor path.
func (c *Comment) HasAncestor(id string) bool {
	for _, p := range c.Path {
		if p == id {
			return true
		}
	}

	return false
}
