// Package optimistic tracks client-side speculative state for engagement
// mutations. An update is applied locally the moment the user acts,
// resolved by the server's synchronous response echoing the client
// reference, and rolled back if no confirmation arrives within the timeout
// window regardless of whether the request secretly succeeded. Server state
// arriving later is reconciled with last-server-write-wins per target.
package optimistic

import (
	"sync"
	"time"
)

// Status of a speculative update.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// DefaultTimeout is the confirmation window before a pending update is
// rolled back.
const DefaultTimeout = 10 * time.Second

// Update is one speculative mutation awaiting server confirmation.
type Update struct {
	TempID    string
	TargetID  string // Post or comment the speculation applies to
	Payload   any
	CreatedAt time.Time
	Status    Status
}

// Tracker owns the pending update set and the per-target server-write
// clock used for reconciliation.
type Tracker struct {
	mu         sync.Mutex
	pending    map[string]*Update
	timers     map[string]*time.Timer
	lastWrite  map[string]time.Time // targetID -> latest applied server write
	timeout    time.Duration
	onRollback func(*Update)
	now        func() time.Time
}

// New creates a tracker. onRollback fires when a pending update times out
// or fails, so the UI can revert the speculative effect; it may be nil.
// A non-positive timeout selects DefaultTimeout.
func New(timeout time.Duration, onRollback func(*Update)) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Tracker{
		pending:    make(map[string]*Update),
		timers:     make(map[string]*time.Timer),
		lastWrite:  make(map[string]time.Time),
		timeout:    timeout,
		onRollback: onRollback,
		now:        time.Now,
	}
}

// Begin registers a speculative update and starts its rollback timer.
func (t *Tracker) Begin(tempID, targetID string, payload any) *Update {
	t.mu.Lock()
	defer t.mu.Unlock()

	update := &Update{
		TempID:    tempID,
		TargetID:  targetID,
		Payload:   payload,
		CreatedAt: t.now(),
		Status:    StatusPending,
	}

	t.pending[tempID] = update
	t.timers[tempID] = time.AfterFunc(t.timeout, func() {
		t.expire(tempID)
	})

	return update
}

// Confirm resolves a pending update with the server's authoritative state.
// Returns whether the server state should be applied to the target per the
// last-server-write-wins rule. A response arriving after the rollback
// window finds no pending update; callers then reconcile the carried state
// directly via Reconcile.
func (t *Tracker) Confirm(tempID string, serverTime time.Time) bool {
	t.mu.Lock()

	update, ok := t.pending[tempID]
	if ok {
		update.Status = StatusConfirmed
		t.remove(tempID)
	}

	t.mu.Unlock()

	if !ok {
		return false
	}

	return t.Reconcile(update.TargetID, serverTime)
}

// Fail marks a pending update failed and rolls it back immediately.
func (t *Tracker) Fail(tempID string) {
	t.mu.Lock()

	update, ok := t.pending[tempID]
	if ok {
		update.Status = StatusFailed
		t.remove(tempID)
	}

	t.mu.Unlock()

	if ok && t.onRollback != nil {
		t.onRollback(update)
	}
}

// Abandon drops a pending update without invoking the rollback callback.
// The server-side mutation, once accepted, is not cancellable; abandoning
// only forgets the local speculation.
func (t *Tracker) Abandon(tempID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.remove(tempID)
}

// Reconcile decides whether server state for a target should be applied:
// only writes at or after the target's last applied server write win.
func (t *Tracker) Reconcile(targetID string, serverTime time.Time) bool {
	if targetID == "" {
		return false
	}

	return t.applyWrite(targetID, serverTime)
}

// Pending returns the update if it is still awaiting confirmation.
func (t *Tracker) Pending(tempID string) (*Update, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	update, ok := t.pending[tempID]

	return update, ok
}

// PendingCount returns the number of unresolved updates.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.pending)
}

func (t *Tracker) applyWrite(targetID string, serverTime time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if serverTime.Before(t.lastWrite[targetID]) {
		return false
	}

	t.lastWrite[targetID] = serverTime

	return true
}

// expire rolls back an update whose confirmation window elapsed.
func (t *Tracker) expire(tempID string) {
	t.mu.Lock()

	update, ok := t.pending[tempID]
	if ok {
		update.Status = StatusFailed
		t.remove(tempID)
	}

	t.mu.Unlock()

	if ok && t.onRollback != nil {
		t.onRollback(update)
	}
}

// remove drops the update and stops its timer. Caller holds t.mu.
func (t *Tracker) remove(tempID string) {
	if timer, ok := t.timers[tempID]; ok {
		timer.Stop()
		delete(t.timers, tempID)
	}

	delete(t.pending, tempID)
}
