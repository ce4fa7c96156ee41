// Package cooldown tracks the resend-verification cooldown per user. A key
// is either idle (resend allowed) or cooling down for the remainder of a
// fixed window. The window starts only after a successful send; provider
// failures leave the key idle.
package cooldown

import (
	"sync"
	"time"
)

// Window is how long a user waits between verification emails.
const Window = 240 * time.Second

// Tracker is an in-memory cooldown table.
type Tracker struct {
	mu        sync.Mutex
	deadlines map[int64]time.Time
	now       func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		deadlines: make(map[int64]time.Time),
		now:       time.Now,
	}
}

// Start puts the key into cooldown for a full window, replacing any
// remainder of an earlier one.
func (t *Tracker) Start(key int64) {
	t.mu.Lock()
	t.deadlines[key] = t.now().Add(Window)
	t.mu.Unlock()
}

// Remaining returns the whole seconds left in the key's cooldown, or 0 if
// the key is idle.
func (t *Tracker) Remaining(key int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	deadline, ok := t.deadlines[key]
	if !ok {
		return 0
	}
	left := deadline.Sub(t.now())
	if left <= 0 {
		delete(t.deadlines, key)
		return 0
	}
	return int(left.Seconds())
}

// Idle reports whether a resend is currently allowed for the key.
func (t *Tracker) Idle(key int64) bool {
	return t.Remaining(key) == 0
}

// Cleanup removes elapsed deadlines.
func (t *Tracker) Cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for key, deadline := range t.deadlines {
		if !deadline.After(now) {
			delete(t.deadlines, key)
		}
	}
}
