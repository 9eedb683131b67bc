package eventfsm

import "log/slog"

// StateID identifies a state by its index in [0, NumStates)
type StateID int

// TransitionFunc is invoked on state entry, exit and timeout.
// For entry and timeout, other is the previous state; for exit it is the state being entered.
type TransitionFunc func(current, other StateID)

// StateFunc is invoked on every Update while its state is current
type StateFunc func(current StateID)

// GlobalFunc is invoked around every transition regardless of the states involved
type GlobalFunc func(from, to StateID)

// TransitionMode controls how SetState behaves when called from inside a transition
type TransitionMode int

const (
	// TransitionsReentrant runs a nested SetState to completion immediately.
	// The outer transition then resumes its remaining steps against whatever
	// state is current at that point.
	TransitionsReentrant TransitionMode = iota
	// TransitionsQueued defers a nested SetState until the outermost transition
	// has completed, then runs queued transitions in FIFO order.
	TransitionsQueued
)

// Logger is the default logger used when none is provided
var Logger = slog.Default()
