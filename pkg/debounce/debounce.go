// Package debounce coalesces bursts of work keyed by name. The board
// client uses it to collapse per-keystroke edits into one persistence
// call per field once typing pauses.
package debounce

import (
	"sync"
	"time"
)

// Scheduler coalesces calls per key: scheduling a key that already has
// a pending call replaces it and restarts the delay, so only the last
// call within a burst runs.
type Scheduler struct {
	mu      sync.Mutex
	pending map[string]*pendingCall
	stopped bool
}

type pendingCall struct {
	timer *time.Timer
	fn    func()
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{pending: make(map[string]*pendingCall)}
}

// Schedule arranges for fn to run after delay. A pending call under the
// same key is replaced and its delay restarted. Calls under different
// keys are independent.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	if prev, ok := s.pending[key]; ok {
		prev.timer.Stop()
	}

	call := &pendingCall{fn: fn}
	call.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		// The call may have been replaced or flushed between the timer
		// firing and the lock; only the current owner runs.
		current, ok := s.pending[key]
		if !ok || current != call {
			s.mu.Unlock()
			return
		}
		delete(s.pending, key)
		s.mu.Unlock()
		fn()
	})
	s.pending[key] = call
}

// Flush runs a pending call immediately instead of waiting out its
// delay. No-op if nothing is pending under key.
func (s *Scheduler) Flush(key string) {
	s.mu.Lock()
	call, ok := s.pending[key]
	if ok {
		call.timer.Stop()
		delete(s.pending, key)
	}
	s.mu.Unlock()

	if ok {
		call.fn()
	}
}

// Cancel drops a pending call without running it.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if call, ok := s.pending[key]; ok {
		call.timer.Stop()
		delete(s.pending, key)
	}
}

// Pending reports whether a call is waiting under key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Stop cancels all pending calls and rejects new ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, call := range s.pending {
		call.timer.Stop()
		delete(s.pending, key)
	}
	s.stopped = true
}
