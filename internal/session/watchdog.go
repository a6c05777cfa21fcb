package session

import (
	"sync"
	"time"
)

// Watchdog owns one cancellable countdown per session. Each Arm supersedes
// the previous countdown for that user. Correctness does not depend on
// cancellation alone: the fire callback re-fetches session state and acts
// only if the session is still collecting, so a stale fire is a no-op.
type Watchdog struct {
	mu     sync.Mutex
	window time.Duration
	fire   func(userID int64)
	timers map[int64]*time.Timer
	closed bool
}

// NewWatchdog builds a watchdog firing after window of inactivity.
func NewWatchdog(window time.Duration, fire func(userID int64)) *Watchdog {
	return &Watchdog{
		window: window,
		fire:   fire,
		timers: make(map[int64]*time.Timer),
	}
}

// Arm starts or restarts the countdown for the user.
func (w *Watchdog) Arm(userID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.timers[userID]; ok {
		t.Stop()
	}
	w.timers[userID] = time.AfterFunc(w.window, func() {
		w.expire(userID)
	})
}

// Cancel stops the countdown for the user if one is running.
func (w *Watchdog) Cancel(userID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[userID]; ok {
		t.Stop()
		delete(w.timers, userID)
	}
}

// Close stops every pending countdown. Armed timers never fire afterwards.
func (w *Watchdog) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
}

func (w *Watchdog) expire(userID int64) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	delete(w.timers, userID)
	fire := w.fire
	w.mu.Unlock()

	if fire != nil {
		fire(userID)
	}
}
