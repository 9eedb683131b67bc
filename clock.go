package eventfsm

import (
	"sync/atomic"
	"time"
)

// Clock is a monotonic millisecond counter. It wraps around like a
// microcontroller millis() counter, so callers must only ever subtract
// two readings, never compare them directly.
type Clock interface {
	Millis() uint32
}

type systemClock struct {
	start time.Time
}

func (c systemClock) Millis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

var defaultClock Clock = systemClock{start: time.Now()}

// SystemClock returns a clock backed by the process monotonic time
func SystemClock() Clock {
	return defaultClock
}

// ManualClock is a clock that only moves when told to.
// Safe for concurrent use.
type ManualClock struct {
	ms atomic.Uint32
}

// NewManualClock creates a manual clock reading start milliseconds
func NewManualClock(start uint32) *ManualClock {
	c := &ManualClock{}
	c.ms.Store(start)
	return c
}

// Millis implements Clock
func (c *ManualClock) Millis() uint32 {
	return c.ms.Load()
}

// Advance moves the clock forward by d, truncated to whole milliseconds
func (c *ManualClock) Advance(d time.Duration) {
	c.ms.Add(uint32(d.Milliseconds()))
}

// Set forces the clock to ms
func (c *ManualClock) Set(ms uint32) {
	c.ms.Store(ms)
}

// Elapsed returns the time passed since the reading since, correct across
// a single wraparound of the counter.
func Elapsed(clock Clock, since uint32) time.Duration {
	return time.Duration(clock.Millis()-since) * time.Millisecond
}
