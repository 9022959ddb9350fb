package cache

import "fmt"

// Cache keys are structured as resource:scope:params so that every key
// touched by a post mutation can be evicted with two pattern deletes:
// everything scoped to the post and everything scoped to the owning
// group's feed listings.

// PostKey is the cache key for a single post read model.
func PostKey(postID string) string {
	return "post:" + postID
}

// ThreadKey is the cache key for one rendered thread view of a post.
func ThreadKey(postID string, maxDepth, pageSize int) string {
	return fmt.Sprintf("thread:%s:d%d:p%d", postID, maxDepth, pageSize)
}

// FeedKey is the cache key for one page of a group's feed.
func FeedKey(groupID string, limit, offset int) string {
	return fmt.Sprintf("feed:%s:l%d:o%d", groupID, limit, offset)
}

// PostPattern matches every key scoped to the post itself.
func PostPattern(postID string) string {
	return "post:" + postID + "*"
}

// ThreadPattern matches every cached thread view of the post.
func ThreadPattern(postID string) string {
	return "thread:" + postID + ":*"
}

// FeedPattern matches every cached feed page of the group.
func FeedPattern(groupID string) string {
	return "feed:" + groupID + ":*"
}

// MutationPatterns returns the eviction patterns for a mutation on the
// post: the post itself, its thread views and the group's feed pages.
func MutationPatterns(groupID, postID string) []string {
	return []string{
		PostPattern(postID),
		ThreadPattern(postID),
		FeedPattern(groupID),
	}
}
