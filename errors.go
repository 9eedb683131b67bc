package eventfsm

import "errors"

var (
	// ErrNoStates is returned when a machine is constructed with fewer than one state
	ErrNoStates = errors.New("number of states must be greater than zero")

	// ErrInvalidState is returned by definition validation for an out-of-range state id
	ErrInvalidState = errors.New("invalid state")

	// ErrNilCallback is returned by definition validation for a nil callback
	ErrNilCallback = errors.New("nil callback")

	// ErrInvalidTimeout is returned by definition validation for a duration outside (0, MaxTimeout]
	ErrInvalidTimeout = errors.New("timeout duration out of range")

	// ErrRegistration is returned when the machine refuses a registration, e.g. a full container
	ErrRegistration = errors.New("registration rejected")
)
