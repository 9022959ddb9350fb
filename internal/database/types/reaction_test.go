package types

import (
	"testing"
)

func TestReactionTypeValid(t *testing.T) {
	for _, rt := range ReactionTypes {
		if !rt.Valid() {
			t.Errorf("Expected %q to be valid", rt)
		}
	}

	for _, invalid := range []ReactionType{"", "sparkle", "LOVE", "like"} {
		if invalid.Valid() {
			t.Errorf("Expected %q to be invalid", invalid)
		}
	}
}

func TestNewReactionSummary(t *testing.T) {
	summary := NewReactionSummary()

	if summary.Total != 0 {
		t.Errorf("Expected total 0, got %d", summary.Total)
	}

	if len(summary.Counts) != len(ReactionTypes) {
		t.Errorf("Expected %d zeroed counts, got %d", len(ReactionTypes), len(summary.Counts))
	}

	for _, rt := range ReactionTypes {
		if count, ok := summary.Counts[rt]; !ok || count != 0 {
			t.Errorf("Expected zeroed count for %q, got %d (present: %v)", rt, count, ok)
		}
	}
}

func TestCommentAncestry(t *testing.T) {
	root := &Comment{ID: "root", PostID: "post-1"}
	if !root.IsRoot() {
		t.Error("Expected comment without parent to be a root")
	}

	child := &Comment{ID: "child", PostID: "post-1", ParentID: "root", Depth: 1, Path: []string{"root"}}
	if child.IsRoot() {
		t.Error("Expected comment with parent not to be a root")
	}

	if !child.HasAncestor("root") {
		t.Error("Expected child to have root as ancestor")
	}

	if child.HasAncestor("child") {
		t.Error("Expected comment not to be its own ancestor")
	}

	if root.HasAncestor("root") {
		t.Error("Expected root to have no ancestors")
	}
}
