package eventfsm

// SetState transitions to next. Out-of-range states and transitions to the
// current state are ignored.
//
// The steps run in this order: before-change handlers (current, next);
// cancel the current state's timers; exit callbacks (current, next); switch
// states; entry callbacks (current, previous); arm the new state's timeouts;
// after-change handlers (previous, current).
//
// With the default TransitionsReentrant mode a SetState issued from any of
// these callbacks runs to completion right away, and the outer transition
// then carries on with its remaining steps using whatever state is current
// by then. Callers that need strict sequencing should build the machine with
// WithQueuedTransitions.
func (m *Machine) SetState(next StateID) {
	m.mu.Lock()
	if m.stopped || !m.IsValidState(next) || next == m.current {
		m.mu.Unlock()
		return
	}
	if m.mode == TransitionsQueued && m.depth > 0 {
		m.pending = append(m.pending, next)
		m.mu.Unlock()
		m.trace("transition queued", "to", next)
		return
	}
	m.depth++
	m.mu.Unlock()

	m.transition(next)

	for {
		m.mu.Lock()
		if m.stopped || len(m.pending) == 0 {
			m.pending = nil
			m.depth--
			m.mu.Unlock()
			return
		}
		queued := m.pending[0]
		m.pending = m.pending[1:]
		skip := queued == m.current
		m.mu.Unlock()

		if !skip {
			m.transition(queued)
		}
	}
}

func (m *Machine) transition(next StateID) {
	m.mu.Lock()
	before := m.before.snapshot()
	m.trace("state transition", "from", m.current, "to", next)
	m.mu.Unlock()

	for _, fn := range before {
		fn(m.CurrentState(), next)
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	exiting := &m.states[m.current]
	for _, e := range exiting.timeouts.items {
		e.disarm()
	}
	onExit := exiting.onExit.snapshot()
	m.mu.Unlock()

	for _, fn := range onExit {
		fn(m.CurrentState(), next)
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.previous = m.current
	m.current = next
	m.enteredAt = m.clock.Millis()
	m.changed = true
	onEnter := m.states[next].onEnter.snapshot()
	m.mu.Unlock()

	for _, fn := range onEnter {
		current, previous := m.snapshotStates()
		fn(current, previous)
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.armLocked(m.current)
	after := m.after.snapshot()
	m.mu.Unlock()

	for _, fn := range after {
		current, previous := m.snapshotStates()
		fn(previous, current)
	}
}

// armLocked (re)starts every timeout of state. Each fire closure carries
// the state, the entry's index, the entry itself and its arm generation so
// dispatchTimeout can tell whether it still applies.
func (m *Machine) armLocked(state StateID) {
	for i, e := range m.states[state].timeouts.items {
		i, e := i, e // per-iteration copies for the closure below (pre-Go 1.22 loop semantics)
		e.active = true
		e.gen++
		gen := e.gen
		e.timer.Arm(e.duration, func() {
			m.dispatchTimeout(state, i, e, gen)
		})
		m.trace("timer armed", "state", state, "index", i, "duration", e.duration)
	}
}

// snapshotStates returns the current and previous state
func (m *Machine) snapshotStates() (StateID, StateID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.previous
}
