package bubble

import (
	"sync"
	"time"
)

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// TimeScheduler schedules on the runtime timers.
type TimeScheduler struct{}

func (TimeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// throttle coalesces triggers into at most one pending call. Triggers arriving while
// a call is pending are absorbed; after Stop, a call that already fired does nothing.
type throttle struct {
	mu       sync.Mutex
	sched    Scheduler
	interval time.Duration
	fn       func()
	timer    Timer
	pending  bool
	stopped  bool
}

func newThrottle(sched Scheduler, interval time.Duration, fn func()) *throttle {
	return &throttle{sched: sched, interval: interval, fn: fn}
}

// Trigger schedules fn unless a call is already pending. It reports whether a new
// call was scheduled.
func (t *throttle) Trigger() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.pending {
		return false
	}
	t.pending = true
	t.timer = t.sched.AfterFunc(t.interval, t.fire)
	return true
}

func (t *throttle) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.pending = false
	t.timer = nil
	t.mu.Unlock()

	t.fn()
}

// Stop cancels the pending call, if any, and disables the throttle for good.
func (t *throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.pending = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
