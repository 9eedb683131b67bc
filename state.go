package eventfsm

import "time"

// timeoutEntry is a one-shot countdown owned by a single state.
// It is armed every time its state is entered and disarmed on exit.
type timeoutEntry struct {
	duration time.Duration
	callback TransitionFunc
	timer    Timer
	active   bool
	// gen counts arms; a fire carrying an older value is stale
	gen uint64
}

func (e *timeoutEntry) disarm() {
	e.timer.Cancel()
	e.active = false
}

// stateRecord holds everything registered on one state
type stateRecord struct {
	timeouts callbackList[*timeoutEntry]
	onEnter  callbackList[TransitionFunc]
	onState  callbackList[StateFunc]
	onExit   callbackList[TransitionFunc]
}

func newStateRecord(limit int) stateRecord {
	return stateRecord{
		timeouts: newCallbackList[*timeoutEntry](limit),
		onEnter:  newCallbackList[TransitionFunc](limit),
		onState:  newCallbackList[StateFunc](limit),
		onExit:   newCallbackList[TransitionFunc](limit),
	}
}

// stateSpec collects the callbacks declared for a state in a Definition
type stateSpec struct {
	onEnter  []TransitionFunc
	onState  []StateFunc
	onExit   []TransitionFunc
	timeouts []timeoutSpec
}

type timeoutSpec struct {
	duration time.Duration
	callback TransitionFunc
}

// StateOption is a functional option for declaring a state's callbacks
type StateOption func(*stateSpec)

// WithOnEnter adds an entry callback
func WithOnEnter(fn TransitionFunc) StateOption {
	return func(s *stateSpec) {
		s.onEnter = append(s.onEnter, fn)
	}
}

// WithOnState adds a callback run on every Update while the state is current
func WithOnState(fn StateFunc) StateOption {
	return func(s *stateSpec) {
		s.onState = append(s.onState, fn)
	}
}

// WithOnExit adds an exit callback
func WithOnExit(fn TransitionFunc) StateOption {
	return func(s *stateSpec) {
		s.onExit = append(s.onExit, fn)
	}
}

// WithTimeout adds a timeout that is armed on entry and cancelled on exit
func WithTimeout(duration time.Duration, fn TransitionFunc) StateOption {
	return func(s *stateSpec) {
		s.timeouts = append(s.timeouts, timeoutSpec{duration: duration, callback: fn})
	}
}
