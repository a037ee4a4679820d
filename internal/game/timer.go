package game

import (
	"sync"
	"time"
)

// roundTimer is the session's single guess-timeout task. Each Arm bumps a
// generation counter so a timer belonging to an earlier round can never fire
// against a later one, even if time.AfterFunc already called back.
type roundTimer struct {
	mu    sync.Mutex
	gen   uint64
	timer *time.Timer
}

// Arm schedules fn after d, cancelling any previously armed timeout. fn runs
// on the timer goroutine only if no Arm or Stop happened in between.
func (t *roundTimer) Arm(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(d, func() {
		if t.current(gen) {
			fn()
		}
	})
}

// Stop cancels the pending timeout, if any. Safe to call on every
// round-ending path; a no-op when nothing is armed.
func (t *roundTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *roundTimer) current(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen == gen
}
