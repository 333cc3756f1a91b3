package dates

import (
	"sync"
	"time"
)

// CancelFunc stops a scheduled rollover. It is safe to call more than once.
type CancelFunc func()

type rollover struct {
	mu        sync.Mutex
	clock     Clock
	callback  func()
	timer     Timer
	last      time.Time
	cancelled bool
}

// ScheduleDailyRollover calls callback once at each local midnight and
// re-arms itself after every call. The callback runs at most once per
// midnight boundary. After cancel returns, callback is not called again,
// unless a call was already in progress.
func ScheduleDailyRollover(clock Clock, callback func()) CancelFunc {
	r := &rollover{clock: clock, callback: callback}
	r.mu.Lock()
	r.armLocked()
	r.mu.Unlock()
	return r.cancel
}

func (r *rollover) armLocked() {
	now := r.clock.Now()
	boundary := NextMidnight(now)
	r.timer = r.clock.AfterFunc(boundary.Sub(now), func() { r.fire(boundary) })
}

func (r *rollover) fire(boundary time.Time) {
	r.mu.Lock()
	if r.cancelled {
		r.mu.Unlock()
		return
	}
	// The timer can fire before the wall clock reaches the boundary when
	// the system clock is stepped back; wait for the same boundary again.
	if r.clock.Now().Before(boundary) {
		now := r.clock.Now()
		r.timer = r.clock.AfterFunc(boundary.Sub(now), func() { r.fire(boundary) })
		r.mu.Unlock()
		return
	}
	if !boundary.After(r.last) {
		r.armLocked()
		r.mu.Unlock()
		return
	}
	r.last = boundary
	r.mu.Unlock()

	r.callback()

	r.mu.Lock()
	if !r.cancelled {
		r.armLocked()
	}
	r.mu.Unlock()
}

func (r *rollover) cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled {
		return
	}
	r.cancelled = true
	if r.timer != nil {
		r.timer.Stop()
	}
}
