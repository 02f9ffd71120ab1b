package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

// TestScheduler_CoalescesBurst verifies that a rapid burst under one
// key results in exactly one call, with the last function winning.
func TestScheduler_CoalescesBurst(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var calls atomic.Int32
	var last atomic.Int32

	for i := 1; i <= 5; i++ {
		i := i
		s.Schedule("note:melina", 30*time.Millisecond, func() {
			calls.Add(1)
			last.Store(int32(i))
		})
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
	if got := last.Load(); got != 5 {
		t.Errorf("expected last scheduled function to run, got %d", got)
	}
}

func TestScheduler_KeysAreIndependent(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var a, b atomic.Int32
	s.Schedule("a", 10*time.Millisecond, func() { a.Add(1) })
	s.Schedule("b", 10*time.Millisecond, func() { b.Add(1) })

	time.Sleep(50 * time.Millisecond)

	if a.Load() != 1 || b.Load() != 1 {
		t.Errorf("expected both keys to fire once, got a=%d b=%d", a.Load(), b.Load())
	}
}

func TestScheduler_Flush(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var calls atomic.Int32
	s.Schedule("k", time.Hour, func() { calls.Add(1) })

	s.Flush("k")
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected flush to run the call, got %d", got)
	}
	if s.Pending("k") {
		t.Error("expected no pending call after flush")
	}

	// Flushing again is a no-op.
	s.Flush("k")
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 call after double flush, got %d", got)
	}
}

func TestScheduler_Cancel(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var calls atomic.Int32
	s.Schedule("k", 10*time.Millisecond, func() { calls.Add(1) })
	s.Cancel("k")

	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("expected cancelled call not to run, got %d", got)
	}
}

func TestScheduler_StopRejectsNewWork(t *testing.T) {
	s := NewScheduler()

	var calls atomic.Int32
	s.Schedule("k", 10*time.Millisecond, func() { calls.Add(1) })
	s.Stop()
	s.Schedule("k", 10*time.Millisecond, func() { calls.Add(1) })

	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("expected no calls after stop, got %d", got)
	}
}
