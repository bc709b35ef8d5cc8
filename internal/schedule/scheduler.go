// Package schedule provides cancellable delayed tasks. Callers that need
// deterministic timing in tests swap the real clock for a Manual scheduler.
package schedule

import "time"

// Timer is a pending callback.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call
	// stopped the timer (false if it already fired or was stopped).
	Stop() bool
}

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// Real schedules on the wall clock via time.AfterFunc.
type Real struct{}

// AfterFunc implements Scheduler.
func (Real) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Task is a single slot for a pending callback keyed by a generation
// counter. Scheduling again or cancelling bumps the generation, so a
// callback that already started firing can tell it is stale.
//
// Task has no lock of its own: every method, including the Current check
// inside the callback, must run under the owner's mutex.
type Task struct {
	sched Scheduler
	gen   uint64
	timer Timer
}

// NewTask returns a Task bound to s. A nil scheduler means Real.
func NewTask(s Scheduler) *Task {
	if s == nil {
		s = Real{}
	}
	return &Task{sched: s}
}

// Schedule replaces any pending callback with fn, run after d. fn receives
// the generation it was scheduled under.
func (t *Task) Schedule(d time.Duration, fn func(gen uint64)) uint64 {
	t.stop()
	t.gen++
	gen := t.gen
	t.timer = t.sched.AfterFunc(d, func() { fn(gen) })
	return gen
}

// Cancel drops the pending callback, if any.
func (t *Task) Cancel() {
	t.stop()
	t.gen++
}

// Current reports whether gen is still the live generation.
func (t *Task) Current(gen uint64) bool {
	return t.timer != nil && t.gen == gen
}

// Pending reports whether a callback is scheduled and not yet consumed.
func (t *Task) Pending() bool {
	return t.timer != nil
}

// Done marks the live generation as consumed. Call it from the callback
// after Current returned true.
func (t *Task) Done() {
	t.timer = nil
}

func (t *Task) stop() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
