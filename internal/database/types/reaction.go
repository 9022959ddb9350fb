package types

import (
	"time"
)

// ReactionType identifies the kind of reaction a family member left on a
// post or comment. The set is closed; unknown types are rejected at the API
// boundary rather than coerced.
type ReactionType string

const (
	ReactionLove    ReactionType = "love"
	ReactionExcited ReactionType = "excited"
	ReactionSupport ReactionType = "support"
	ReactionLaugh   ReactionType = "laugh"
	ReactionPray    ReactionType = "pray"
)

// ReactionTypes lists every valid reaction type.
var ReactionTypes = []ReactionType{
	ReactionLove,
	ReactionExcited,
	ReactionSupport,
	ReactionLaugh,
	ReactionPray,
}

// Valid reports whether t is a member of the closed reaction type set.
func (t ReactionType) Valid() bool {
	switch t {
	case ReactionLove, ReactionExcited, ReactionSupport, ReactionLaugh, ReactionPray:
		return true
	default:
		return false
	}
}

// Intensity bounds for a reaction. The ordinal scales the warmth delta a
// reaction contributes.
const (
	MinIntensity = 1
	MaxIntensity = 3
)

// Reaction represents one family member's active reaction on a target
// (post or comment). A (target, user) pair has at most one active reaction;
// re-reacting replaces the previous row.
type Reaction struct {
	TargetID  string       `bun:",pk,notnull" json:"targetId"`
	UserID    string       `bun:",pk,notnull" json:"userId"`
	Type      ReactionType `bun:",notnull"    json:"type"`
	Intensity int          `bun:",notnull"    json:"intensity"`
	Milestone bool         `bun:",notnull"    json:"milestone"` // Tied to a pregnancy milestone event
	CreatedAt time.Time    `bun:",notnull"    json:"createdAt"`
}

// ReactionSummary is the derived per-target read model: the total active
// reaction count and a per-type breakdown. Invariant: the per-type counts
// always sum to Total.
type ReactionSummary struct {
	Total  int                  `json:"total"`
	Counts map[ReactionType]int `json:"counts"`
}

// NewReactionSummary returns an empty summary with all known types zeroed.
func NewReactionSummary() *ReactionSummary {
	counts := make(map[ReactionType]int, len(ReactionTypes))
	for _, t := range ReactionTypes {
		counts[t] = 0
	}

	return &ReactionSummary{Counts: counts}
}
