package eventfsm

import (
	"fmt"
	"slices"
)

// Definition declares a machine's states before building it
type Definition struct {
	numStates int
	states    map[StateID]*stateSpec
	order     []StateID
	initial   StateID
}

// NewDefinition creates a new definition builder for numStates states
func NewDefinition(numStates int) *Definition {
	return &Definition{
		numStates: numStates,
		states:    make(map[StateID]*stateSpec),
	}
}

// State declares callbacks for a state. Declaring the same state again adds to it.
func (d *Definition) State(id StateID, opts ...StateOption) *Definition {
	s, ok := d.states[id]
	if !ok {
		s = &stateSpec{}
		d.states[id] = s
		d.order = append(d.order, id)
	}
	for _, opt := range opts {
		opt(s)
	}
	return d
}

// Initial sets the state Build seeds with SetState. Defaults to 0, which
// is where every machine starts, so no callbacks run for it.
func (d *Definition) Initial(id StateID) *Definition {
	d.initial = id
	return d
}

// Validate checks the definition for errors
func (d *Definition) Validate() error {
	if d.numStates <= 0 {
		return ErrNoStates
	}

	valid := func(id StateID) bool {
		return id >= 0 && int(id) < d.numStates
	}

	if !valid(d.initial) {
		return fmt.Errorf("initial state %d: %w", d.initial, ErrInvalidState)
	}

	for _, id := range d.order {
		if !valid(id) {
			return fmt.Errorf("state %d: %w", id, ErrInvalidState)
		}
		s := d.states[id]
		if slices.ContainsFunc(s.onEnter, isNilTransition) || slices.ContainsFunc(s.onExit, isNilTransition) {
			return fmt.Errorf("state %d transition callback: %w", id, ErrNilCallback)
		}
		for _, fn := range s.onState {
			if fn == nil {
				return fmt.Errorf("state %d state callback: %w", id, ErrNilCallback)
			}
		}
		for _, t := range s.timeouts {
			if !validTimeout(t.duration) {
				return fmt.Errorf("state %d timeout %s: %w", id, t.duration, ErrInvalidTimeout)
			}
			if t.callback == nil {
				return fmt.Errorf("state %d timeout %s: %w", id, t.duration, ErrNilCallback)
			}
		}
	}

	return nil
}

// Build creates a Machine from the definition
func (d *Definition) Build(opts ...MachineOption) (*Machine, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid definition: %w", err)
	}

	m, err := New(d.numStates, opts...)
	if err != nil {
		return nil, err
	}

	for _, id := range d.order {
		if err := d.register(m, id, d.states[id]); err != nil {
			m.Stop()
			return nil, err
		}
	}

	if d.initial != 0 {
		m.SetState(d.initial)
	}

	return m, nil
}

func isNilTransition(fn TransitionFunc) bool {
	return fn == nil
}

func (d *Definition) register(m *Machine, id StateID, s *stateSpec) error {
	for _, fn := range s.onEnter {
		if !m.AddOnEnter(id, fn) {
			return fmt.Errorf("state %d on_enter: %w", id, ErrRegistration)
		}
	}
	for _, fn := range s.onState {
		if !m.AddOnState(id, fn) {
			return fmt.Errorf("state %d on_state: %w", id, ErrRegistration)
		}
	}
	for _, fn := range s.onExit {
		if !m.AddOnExit(id, fn) {
			return fmt.Errorf("state %d on_exit: %w", id, ErrRegistration)
		}
	}
	for _, t := range s.timeouts {
		if !m.AddTimeout(id, t.duration, t.callback) {
			return fmt.Errorf("state %d timeout %s: %w", id, t.duration, ErrRegistration)
		}
	}
	return nil
}
