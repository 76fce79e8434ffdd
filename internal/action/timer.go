package action

import (
	"sync"
	"time"
)

// Timer is a single-shot, cancellable deadline. onExpire runs on the timer's
// own goroutine, concurrently with event handling.
type Timer interface {
	// Arm starts the countdown. It returns false and does nothing if a
	// previous countdown is still pending.
	Arm(d time.Duration, onExpire func()) bool
	// Cancel stops a pending countdown; no-op if already fired or cancelled.
	Cancel()
}

// AfterFuncTimer implements Timer on time.AfterFunc.
type AfterFuncTimer struct {
	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	gen     uint64
}

func NewAfterFuncTimer() *AfterFuncTimer {
	return &AfterFuncTimer{}
}

func (t *AfterFuncTimer) Arm(d time.Duration, onExpire func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending {
		return false
	}
	t.pending = true
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		if !t.pending || t.gen != gen {
			t.mu.Unlock()
			return
		}
		t.pending = false
		t.mu.Unlock()
		onExpire()
	})
	return true
}

func (t *AfterFuncTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.pending {
		return
	}
	t.pending = false
	if t.timer != nil {
		t.timer.Stop()
	}
}

// Pending reports whether a countdown is armed and has not fired.
func (t *AfterFuncTimer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}
