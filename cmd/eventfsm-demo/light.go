package main

import (
	"log/slog"
	"sync/atomic"

	"github.com/librescoot/eventfsm"
	"github.com/librescoot/eventfsm/internal/config"
)

// Traffic light states. The machine starts in stateOff and is seeded
// into red (or the recovered state) at startup.
const (
	stateOff eventfsm.StateID = iota
	stateRed
	stateGreen
	stateYellow

	numStates = iota
)

var stateNames = map[eventfsm.StateID]string{
	stateOff:    "off",
	stateRed:    "red",
	stateGreen:  "green",
	stateYellow: "yellow",
}

const noRequest = -1

// light advances the machine from Update instead of from the timeout
// callbacks, so async timer goroutines only ever store a request.
type light struct {
	machine *eventfsm.Machine
	logger  *slog.Logger
	request atomic.Int64
}

// newLight builds the machine from cfg; opts are applied after the config's
func newLight(cfg config.Config, logger *slog.Logger, opts ...eventfsm.MachineOption) (*light, error) {
	l := &light{logger: logger}
	l.request.Store(noRequest)

	m, err := eventfsm.NewDefinition(numStates).
		State(stateRed,
			eventfsm.WithTimeout(cfg.Durations.Red, l.next(stateGreen)),
			eventfsm.WithOnEnter(l.entered),
			eventfsm.WithOnState(l.apply),
		).
		State(stateGreen,
			eventfsm.WithTimeout(cfg.Durations.Green, l.next(stateYellow)),
			eventfsm.WithOnEnter(l.entered),
			eventfsm.WithOnState(l.apply),
		).
		State(stateYellow,
			eventfsm.WithTimeout(cfg.Durations.Yellow, l.next(stateRed)),
			eventfsm.WithOnEnter(l.entered),
			eventfsm.WithOnState(l.apply),
		).
		Build(append(cfg.MachineOptions(logger), opts...)...)
	if err != nil {
		return nil, err
	}
	l.machine = m
	return l, nil
}

func (l *light) next(to eventfsm.StateID) eventfsm.TransitionFunc {
	return func(_, _ eventfsm.StateID) {
		l.request.Store(int64(to))
	}
}

func (l *light) apply(eventfsm.StateID) {
	if to := l.request.Swap(noRequest); to != noRequest {
		l.machine.SetState(eventfsm.StateID(to))
	}
}

func (l *light) entered(current, previous eventfsm.StateID) {
	l.logger.Info("light changed", "state", stateNames[current], "previous", stateNames[previous])
}
