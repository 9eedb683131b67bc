package eventfsm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitionBuild(t *testing.T) {
	clock := NewManualClock(0)
	var log callLog

	m, err := NewDefinition(3).
		State(stateRun,
			WithOnEnter(func(c, p StateID) { log.add("enter %d %d", c, p) }),
			WithOnState(func(c StateID) { log.add("during %d", c) }),
			WithOnExit(func(c, n StateID) { log.add("exit %d %d", c, n) }),
			WithTimeout(50*time.Millisecond, func(c, p StateID) { log.add("timeout %d %d", c, p) }),
		).
		State(stateRun, WithOnEnter(func(c, p StateID) { log.add("second enter %d", c) })).
		Initial(stateRun).
		Build(WithClock(clock))
	require.NoError(t, err)
	defer m.Stop()

	assert.Equal(t, stateRun, m.CurrentState(), "initial state is seeded")
	assert.Equal(t, 1, m.Timeouts(stateRun))

	clock.Advance(50 * time.Millisecond)
	m.Update()
	m.SetState(stateDone)

	assert.Equal(t, []string{
		"enter 1 0",
		"second enter 1",
		"timeout 1 0",
		"during 1",
		"exit 1 2",
	}, log.list())
}

func TestDefinitionInitialZero(t *testing.T) {
	var entered bool

	m, err := NewDefinition(2).
		State(stateIdle, WithOnEnter(func(StateID, StateID) { entered = true })).
		Build()
	require.NoError(t, err)
	defer m.Stop()

	assert.Equal(t, stateIdle, m.CurrentState())
	assert.False(t, entered, "machines start in state 0 without entering it")
}

func TestDefinitionValidate(t *testing.T) {
	cb := func(StateID, StateID) {}

	tests := []struct {
		name string
		def  *Definition
		want error
	}{
		{"no states", NewDefinition(0), ErrNoStates},
		{"state out of range", NewDefinition(2).State(2), ErrInvalidState},
		{"negative state", NewDefinition(2).State(-1), ErrInvalidState},
		{"initial out of range", NewDefinition(2).Initial(4), ErrInvalidState},
		{"nil enter", NewDefinition(2).State(1, WithOnEnter(nil)), ErrNilCallback},
		{"nil exit", NewDefinition(2).State(1, WithOnExit(nil)), ErrNilCallback},
		{"nil state callback", NewDefinition(2).State(1, WithOnState(nil)), ErrNilCallback},
		{"nil timeout callback", NewDefinition(2).State(1, WithTimeout(time.Second, nil)), ErrNilCallback},
		{"zero timeout", NewDefinition(2).State(1, WithTimeout(0, cb)), ErrInvalidTimeout},
		{"timeout too long", NewDefinition(2).State(1, WithTimeout(MaxTimeout+time.Millisecond, cb)), ErrInvalidTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.def.Validate(), tt.want)

			m, err := tt.def.Build()
			assert.Nil(t, m)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.NoError(t, NewDefinition(2).State(1, WithTimeout(time.Second, cb)).Validate())
	assert.NoError(t, NewDefinition(2).State(1, WithTimeout(MaxTimeout, cb)).Validate())
}

func TestDefinitionBuildRegistrationRejected(t *testing.T) {
	cb := func(StateID, StateID) {}

	m, err := NewDefinition(2).
		State(1, WithOnEnter(cb), WithOnEnter(cb), WithOnEnter(cb)).
		Build(WithCapacity(2))

	assert.Nil(t, m)
	assert.ErrorIs(t, err, ErrRegistration)
}
