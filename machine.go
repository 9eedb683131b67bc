package eventfsm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultTickInterval is the Update cadence used by Run when none is given
const DefaultTickInterval = 10 * time.Millisecond

// Machine is an event-driven state machine over a fixed set of numbered states.
//
// Engine state is guarded by a mutex that is never held while application
// callbacks run, so callbacks may call back into the machine (including
// SetState). Timeout callbacks of machines built with WithAsyncTimers run on
// timer goroutines, concurrently with the goroutine driving SetState and
// Update; they should do as little as possible, e.g. signal the main loop.
type Machine struct {
	id     string
	states []stateRecord
	before callbackList[GlobalFunc]
	after  callbackList[GlobalFunc]

	current   StateID
	previous  StateID
	changed   bool
	enteredAt uint32
	stopped   bool

	mode    TransitionMode
	depth   int
	pending []StateID

	mu sync.Mutex

	clock    Clock
	newTimer TimerFactory
	limit    int
	debug    atomic.Bool
	logger   *slog.Logger
}

// MachineOption is a functional option for configuring a Machine
type MachineOption func(*Machine)

// WithLogger sets the logger used for debug tracing
func WithLogger(logger *slog.Logger) MachineOption {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock sets the millisecond clock used for timing
func WithClock(clock Clock) MachineOption {
	return func(m *Machine) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithTimers sets the factory creating the timer behind each timeout
func WithTimers(factory TimerFactory) MachineOption {
	return func(m *Machine) {
		if factory != nil {
			m.newTimer = factory
		}
	}
}

// WithAsyncTimers makes timeouts fire on their own goroutines
func WithAsyncTimers() MachineOption {
	return WithTimers(AsyncTimers)
}

// WithPollingTimers makes timeouts fire only from Update. This is the default.
func WithPollingTimers() MachineOption {
	return WithTimers(PollingTimers)
}

// WithCapacity bounds every callback container to n entries.
// Registrations beyond the bound fail and return false. Zero means unbounded.
func WithCapacity(n int) MachineOption {
	return func(m *Machine) {
		if n >= 0 {
			m.limit = n
		}
	}
}

// WithQueuedTransitions defers SetState calls made during a transition
// until the outermost transition completes.
func WithQueuedTransitions() MachineOption {
	return func(m *Machine) {
		m.mode = TransitionsQueued
	}
}

// WithDebug sets the initial debug tracing flag
func WithDebug(enabled bool) MachineOption {
	return func(m *Machine) {
		m.debug.Store(enabled)
	}
}

// WithID sets the identifier attached to the machine's log records
func WithID(id string) MachineOption {
	return func(m *Machine) {
		if id != "" {
			m.id = id
		}
	}
}

// New creates a machine with numStates states, starting in state 0.
// No callbacks run until the first SetState.
func New(numStates int, opts ...MachineOption) (*Machine, error) {
	if numStates <= 0 {
		return nil, fmt.Errorf("new machine with %d states: %w", numStates, ErrNoStates)
	}

	m := &Machine{
		clock:    SystemClock(),
		newTimer: PollingTimers,
		logger:   Logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.id == "" {
		m.id = uuid.NewString()
	}
	m.logger = m.logger.With("machine", m.id)

	m.states = make([]stateRecord, numStates)
	for i := range m.states {
		m.states[i] = newStateRecord(m.limit)
	}
	m.before = newCallbackList[GlobalFunc](m.limit)
	m.after = newCallbackList[GlobalFunc](m.limit)
	m.changed = true
	m.enteredAt = m.clock.Millis()

	return m, nil
}

// MustNew is like New but panics on error
func MustNew(numStates int, opts ...MachineOption) *Machine {
	m, err := New(numStates, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Stop cancels every timer of every state. After Stop no timeout fires,
// registrations fail and SetState and Update do nothing.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	m.stopped = true
	m.pending = nil
	for s := range m.states {
		for _, e := range m.states[s].timeouts.items {
			e.disarm()
		}
	}
	m.trace("machine stopped")
}

// ID returns the identifier attached to log records
func (m *Machine) ID() string {
	return m.id
}

// NumStates returns the fixed number of states
func (m *Machine) NumStates() int {
	return len(m.states)
}

// IsValidState reports whether state is in range
func (m *Machine) IsValidState(state StateID) bool {
	return state >= 0 && int(state) < len(m.states)
}

// SetDebug enables or disables tracing of transitions and timers
func (m *Machine) SetDebug(enabled bool) {
	m.debug.Store(enabled)
}

// Debug reports whether tracing is enabled
func (m *Machine) Debug() bool {
	return m.debug.Load()
}

// CurrentState returns the current state
func (m *Machine) CurrentState() StateID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// PreviousState returns the state before the last transition
func (m *Machine) PreviousState() StateID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previous
}

// IsStateChanged reports whether a transition happened since the last Update
func (m *Machine) IsStateChanged() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed
}

// TimeInCurrentState returns the time elapsed since the last transition
func (m *Machine) TimeInCurrentState() time.Duration {
	m.mu.Lock()
	enteredAt := m.enteredAt
	m.mu.Unlock()
	return Elapsed(m.clock, enteredAt)
}

// ConfigureState registers every non-nil callback on state. The timeout is
// only added when both timeout > 0 and onTimeout is non-nil.
func (m *Machine) ConfigureState(state StateID, timeout time.Duration, onEnter TransitionFunc, onState StateFunc, onExit TransitionFunc, onTimeout TransitionFunc) {
	if !m.IsValidState(state) {
		return
	}
	if onEnter != nil {
		m.AddOnEnter(state, onEnter)
	}
	if onState != nil {
		m.AddOnState(state, onState)
	}
	if onExit != nil {
		m.AddOnExit(state, onExit)
	}
	if timeout > 0 && onTimeout != nil {
		m.AddTimeout(state, timeout, onTimeout)
	}
}

// AddTimeout adds a timeout to state. It is armed each time state is
// entered, so adding one to the current state takes effect on the next entry.
// Durations must be in (0, MaxTimeout].
func (m *Machine) AddTimeout(state StateID, duration time.Duration, fn TransitionFunc) bool {
	if fn == nil || !validTimeout(duration) {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.recordLocked(state)
	if rec == nil {
		return false
	}
	entry := &timeoutEntry{
		duration: duration,
		callback: fn,
		timer:    m.newTimer(m.clock),
	}
	return m.registered(rec.timeouts.add(entry), "timeout", state)
}

// AddOnEnter adds an entry callback to state
func (m *Machine) AddOnEnter(state StateID, fn TransitionFunc) bool {
	if fn == nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.recordLocked(state)
	if rec == nil {
		return false
	}
	return m.registered(rec.onEnter.add(fn), "on_enter", state)
}

// AddOnState adds a callback run by Update while state is current
func (m *Machine) AddOnState(state StateID, fn StateFunc) bool {
	if fn == nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.recordLocked(state)
	if rec == nil {
		return false
	}
	return m.registered(rec.onState.add(fn), "on_state", state)
}

// AddOnExit adds an exit callback to state
func (m *Machine) AddOnExit(state StateID, fn TransitionFunc) bool {
	if fn == nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.recordLocked(state)
	if rec == nil {
		return false
	}
	return m.registered(rec.onExit.add(fn), "on_exit", state)
}

// RemoveTimeout removes the first timeout of state with the given duration,
// cancelling its timer.
func (m *Machine) RemoveTimeout(state StateID, duration time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.recordLocked(state)
	if rec == nil {
		return false
	}
	var removed *timeoutEntry
	ok := rec.timeouts.removeFirst(func(e *timeoutEntry) bool {
		if e.duration != duration {
			return false
		}
		removed = e
		return true
	})
	if ok {
		removed.disarm()
	}
	return ok
}

// RemoveOnEnter removes the first matching entry callback of state
func (m *Machine) RemoveOnEnter(state StateID, fn TransitionFunc) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.recordLocked(state)
	if rec == nil {
		return false
	}
	return rec.onEnter.removeFirst(sameFunc(fn))
}

// RemoveOnState removes the first matching state callback of state
func (m *Machine) RemoveOnState(state StateID, fn StateFunc) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.recordLocked(state)
	if rec == nil {
		return false
	}
	return rec.onState.removeFirst(sameFunc(fn))
}

// RemoveOnExit removes the first matching exit callback of state
func (m *Machine) RemoveOnExit(state StateID, fn TransitionFunc) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.recordLocked(state)
	if rec == nil {
		return false
	}
	return rec.onExit.removeFirst(sameFunc(fn))
}

// AddBeforeStateChangeHandler adds a handler run before every transition.
// Nil handlers are ignored.
func (m *Machine) AddBeforeStateChangeHandler(fn GlobalFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.stopped {
		m.registered(m.before.add(fn), "before_change", -1)
	}
}

// AddAfterStateChangeHandler adds a handler run after every transition.
// Nil handlers are ignored.
func (m *Machine) AddAfterStateChangeHandler(fn GlobalFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.stopped {
		m.registered(m.after.add(fn), "after_change", -1)
	}
}

// RemoveBeforeStateChangeHandler removes the first matching before-change handler
func (m *Machine) RemoveBeforeStateChangeHandler(fn GlobalFunc) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.before.removeFirst(sameFunc(fn))
}

// RemoveAfterStateChangeHandler removes the first matching after-change handler
func (m *Machine) RemoveAfterStateChangeHandler(fn GlobalFunc) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.after.removeFirst(sameFunc(fn))
}

// Timeouts returns the number of timeouts registered on state
func (m *Machine) Timeouts(state StateID) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.recordLocked(state)
	if rec == nil {
		return 0
	}
	return rec.timeouts.len()
}

// TimeoutActive reports whether the first timeout of state with the given
// duration is counting down.
func (m *Machine) TimeoutActive(state StateID, duration time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.recordLocked(state)
	if rec == nil {
		return false
	}
	for _, e := range rec.timeouts.items {
		if e.duration == duration {
			return e.active
		}
	}
	return false
}

// Update runs one cycle: it polls the current state's timers, dispatching
// any that expired, then runs the state callbacks of the current state and
// clears the changed flag. It never blocks.
func (m *Machine) Update() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	state := m.current
	entries := m.states[state].timeouts.snapshot()
	m.mu.Unlock()

	for _, e := range entries {
		if e.timer.Poll() && m.CurrentState() != state {
			// A timeout moved the machine on; the rest belong to a state we left
			break
		}
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	current := m.current
	onState := m.states[current].onState.snapshot()
	m.mu.Unlock()

	for _, fn := range onState {
		fn(current)
	}

	m.mu.Lock()
	m.changed = false
	m.mu.Unlock()
}

// Run calls Update every interval until ctx is done or the machine is stopped
func (m *Machine) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if m.isStopped() {
				return nil
			}
			m.Update()
		}
	}
}

// dispatchTimeout delivers a timer fire for the entry at index of state,
// armed as generation gen. Fires for a state that is no longer current, or
// for an entry that was removed, disarmed or re-armed since, are dropped.
func (m *Machine) dispatchTimeout(state StateID, index int, entry *timeoutEntry, gen uint64) {
	m.mu.Lock()
	if m.stopped || state != m.current {
		m.mu.Unlock()
		m.trace("stale timeout suppressed", "state", state, "index", index)
		return
	}
	items := m.states[state].timeouts.items
	if index >= len(items) || items[index] != entry {
		// Entries before this one may have been removed
		index = -1
		for i, e := range items {
			if e == entry {
				index = i
				break
			}
		}
	}
	if index < 0 || !entry.active || entry.gen != gen {
		m.mu.Unlock()
		m.trace("stale timeout suppressed", "state", state, "index", index)
		return
	}
	entry.active = false
	current, previous := m.current, m.previous
	m.mu.Unlock()

	m.trace("timeout fired", "state", state, "index", index, "duration", entry.duration)
	entry.callback(current, previous)
}

func validTimeout(d time.Duration) bool {
	return d > 0 && d <= MaxTimeout
}

func (m *Machine) recordLocked(state StateID) *stateRecord {
	if m.stopped || !m.IsValidState(state) {
		return nil
	}
	return &m.states[state]
}

func (m *Machine) registered(ok bool, kind string, state StateID) bool {
	if !ok {
		m.trace("registration rejected", "kind", kind, "state", state, "capacity", m.limit)
	}
	return ok
}

func (m *Machine) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// trace logs at Info so SetDebug alone is enough to see the output
func (m *Machine) trace(msg string, args ...any) {
	if m.debug.Load() {
		m.logger.Info(msg, args...)
	}
}
