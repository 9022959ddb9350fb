package engage

import "sync"

// postLocks provides a mutual-exclusion scope per post id, so concurrent
// mutations on the same post serialize while unrelated posts proceed
// independently. Entries are reference-counted and removed when idle, so
// the map does not grow with the post table.
type postLocks struct {
	mu    sync.Mutex
	locks map[string]*postLock
}

type postLock struct {
	mu   sync.Mutex
	refs int
}

func newPostLocks() *postLocks {
	return &postLocks{locks: make(map[string]*postLock)}
}

// Lock acquires the post's mutex and returns the matching release func.
func (p *postLocks) Lock(postID string) func() {
	p.mu.Lock()

	lock, ok := p.locks[postID]
	if !ok {
		lock = &postLock{}
		p.locks[postID] = lock
	}

	lock.refs++
	p.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		p.mu.Lock()

		lock.refs--
		if lock.refs == 0 {
			delete(p.locks, postID)
		}

		p.mu.Unlock()
	}
}
