package eventfsm

import (
	"math"
	"sync"
	"time"
)

// MaxTimeout is the longest countdown a wrapping millisecond clock can measure
const MaxTimeout = time.Duration(math.MaxUint32) * time.Millisecond

// Timer is a single-shot countdown.
//
// Arm schedules fire to run once after d, replacing any countdown in
// progress. Cancel stops the countdown and is safe to call when inactive.
// Poll gives timers without an autonomous time source the chance to fire;
// it reports whether fire was invoked.
type Timer interface {
	Arm(d time.Duration, fire func())
	Cancel()
	Active() bool
	Poll() bool
}

// TimerFactory creates the timer backing one timeout entry
type TimerFactory func(clock Clock) Timer

// AsyncTimers is a TimerFactory producing AsyncTimer instances
func AsyncTimers(Clock) Timer {
	return NewAsyncTimer()
}

// PollingTimers is a TimerFactory producing PollingTimer instances
func PollingTimers(clock Clock) Timer {
	return NewPollingTimer(clock)
}

// AsyncTimer fires on its own goroutine via time.AfterFunc, independent
// of the caller's update loop.
type AsyncTimer struct {
	mu     sync.Mutex
	timer  *time.Timer
	seq    uint64
	active bool
}

// NewAsyncTimer creates an inactive AsyncTimer
func NewAsyncTimer() *AsyncTimer {
	return &AsyncTimer{}
}

// Arm implements Timer
func (t *AsyncTimer) Arm(d time.Duration, fire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.seq++
	seq := t.seq
	t.active = true

	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		// Check the countdown wasn't cancelled or re-armed meanwhile
		if t.seq != seq || !t.active {
			t.mu.Unlock()
			return
		}
		t.active = false
		t.mu.Unlock()

		fire()
	})
}

// Cancel implements Timer
func (t *AsyncTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.seq++
	t.active = false
}

// Active implements Timer
func (t *AsyncTimer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Poll implements Timer. Async timers fire on their own, so this never fires.
func (t *AsyncTimer) Poll() bool {
	return false
}

// PollingTimer never fires on its own; its owner must call Poll
// periodically. Expiry is (now - start) >= duration in clock milliseconds.
type PollingTimer struct {
	mu       sync.Mutex
	clock    Clock
	start    uint32
	duration uint32
	fire     func()
	active   bool
}

// NewPollingTimer creates an inactive PollingTimer reading the given clock
func NewPollingTimer(clock Clock) *PollingTimer {
	if clock == nil {
		clock = SystemClock()
	}
	return &PollingTimer{clock: clock}
}

// Arm implements Timer. Durations below one millisecond round up to one,
// durations above MaxTimeout are clamped to it.
func (t *PollingTimer) Arm(d time.Duration, fire func()) {
	ms := min(max(d.Milliseconds(), 1), math.MaxUint32)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.start = t.clock.Millis()
	t.duration = uint32(ms)
	t.fire = fire
	t.active = true
}

// Cancel implements Timer
func (t *PollingTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
	t.fire = nil
}

// Active implements Timer
func (t *PollingTimer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Poll implements Timer
func (t *PollingTimer) Poll() bool {
	t.mu.Lock()
	if !t.active || t.clock.Millis()-t.start < t.duration {
		t.mu.Unlock()
		return false
	}
	fire := t.fire
	t.active = false
	t.fire = nil
	t.mu.Unlock()

	// fire may cancel or re-arm this timer, so it runs unlocked
	if fire != nil {
		fire()
	}
	return true
}
