package types

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Post represents a pregnancy update shared with a family group. The post
// body and media are owned by the wider application; the engagement engine
// only mutates the derived fields (ReactionSummary, WarmthScore,
// CommentCount).
type Post struct {
	ID              string           `bun:",pk,notnull"  json:"id"`
	GroupID         string           `bun:",notnull"     json:"groupId"` // Owning pregnancy group
	AuthorID        string           `bun:",notnull"     json:"authorId"`
	CreatedAt       time.Time        `bun:",notnull"     json:"createdAt"`
	ReactionSummary *ReactionSummary `bun:"type:jsonb"   json:"reactionSummary"`
	WarmthScore     *WarmthScore     `bun:"type:jsonb"   json:"warmthScore"`
	CommentCount    int              `bun:",notnull"     json:"commentCount"`
}

// WarmthScore is the derived family engagement score for a post. Each
// sub-score and the overall score are normalized to [0,1]. Scores are
// recomputed from store state after every mutation, never edited directly.
type WarmthScore struct {
	ReactionWarmth     float64   `json:"reactionWarmth"`
	CommentWarmth      float64   `json:"commentWarmth"`
	EngagementVelocity float64   `json:"engagementVelocity"`
	ParticipationRate  float64   `json:"participationRate"`
	Overall            float64   `json:"overall"`
	ComputedAt         time.Time `json:"computedAt"`
}

// GroupMember represents one member of a pregnancy group, the family/friend
// circle that scopes visibility, mentions and broadcasts.
type GroupMember struct {
	GroupID     string    `bun:",pk,notnull" json:"groupId"`
	UserID      string    `bun:",pk,notnull" json:"userId"`
	DisplayName string    `bun:",notnull"    json:"displayName"` // Mention handle within the group; a single word, no spaces
	Role        string    `bun:",notnull"    json:"role"`
	JoinedAt    time.Time `bun:",notnull"    json:"joinedAt"`
}
