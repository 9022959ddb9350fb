package thread

import (
	"context"
	"regexp"
	"strings"

	"github.com/bumpring/bumpring/internal/database/types"
)

// mentionPattern matches @handle tokens in a comment body. Handles are a
// single word of letters, digits or underscore in any script; display names
// containing spaces cannot be mentioned.
var mentionPattern = regexp.MustCompile(`@([\p{L}\p{N}_]+)`)

// ParseMentions extracts the candidate mention handles from a comment body,
// without the leading @ and without duplicates, in order of appearance.
func ParseMentions(body string) []string {
	matches := mentionPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))

	var handles []string

	for _, match := range matches {
		handle := match[1]

		key := strings.ToLower(handle)
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		handles = append(handles, handle)
	}

	return handles
}

// resolveMentions maps mention handles to user ids of the post's family
// group. Handles that match no member stay plain text and are dropped from
// the resolved list; they are never an error.
func (m *Manager) resolveMentions(ctx context.Context, groupID, body string) ([]string, error) {
	handles := ParseMentions(body)
	if len(handles) == 0 {
		return nil, nil
	}

	members, err := m.store.GroupMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}

	byHandle := make(map[string]*types.GroupMember, len(members))
	for _, member := range members {
		byHandle[strings.ToLower(member.DisplayName)] = member
	}

	var resolved []string

	for _, handle := range handles {
		if member, ok := byHandle[strings.ToLower(handle)]; ok {
			resolved = append(resolved, member.UserID)
		}
	}

	return resolved, nil
}
