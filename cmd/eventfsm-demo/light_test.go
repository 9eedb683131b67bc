package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librescoot/eventfsm"
	"github.com/librescoot/eventfsm/internal/config"
)

func TestLightCycle(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	logger, err := newLogger(cfg, &buf)
	require.NoError(t, err)

	clock := eventfsm.NewManualClock(0)
	l, err := newLight(cfg, logger, eventfsm.WithClock(clock))
	require.NoError(t, err)
	m := l.machine
	defer m.Stop()

	m.SetState(stateRed)
	m.Update()
	assert.Equal(t, stateRed, m.CurrentState())

	steps := []struct {
		wait time.Duration
		want eventfsm.StateID
	}{
		{cfg.Durations.Red, stateGreen},
		{cfg.Durations.Green, stateYellow},
		{cfg.Durations.Yellow, stateRed},
	}
	for _, step := range steps {
		from := m.CurrentState()

		clock.Advance(step.wait - time.Millisecond)
		m.Update()
		assert.Equal(t, from, m.CurrentState(), "%s holds until its timeout", stateNames[from])

		clock.Advance(time.Millisecond)
		m.Update()
		assert.Equal(t, step.want, m.CurrentState())
		assert.Equal(t, from, m.PreviousState())
		assert.Equal(t, int64(noRequest), l.request.Load(), "request consumed")
	}

	out := buf.String()
	assert.Equal(t, 4, strings.Count(out, "light changed"))
	assert.Contains(t, out, "state=green previous=red")
	assert.Contains(t, out, "state=yellow previous=green")
	assert.Contains(t, out, "state=red previous=yellow")
	assert.Contains(t, out, "service=eventfsm-demo")
}

func TestLightWithoutRequestStays(t *testing.T) {
	cfg := config.Default()
	logger, err := newLogger(cfg, &bytes.Buffer{})
	require.NoError(t, err)

	clock := eventfsm.NewManualClock(0)
	l, err := newLight(cfg, logger, eventfsm.WithClock(clock))
	require.NoError(t, err)
	defer l.machine.Stop()

	l.machine.SetState(stateGreen)
	l.apply(stateGreen)
	assert.Equal(t, stateGreen, l.machine.CurrentState())

	l.next(stateYellow)(stateGreen, stateRed)
	l.apply(stateGreen)
	assert.Equal(t, stateYellow, l.machine.CurrentState())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	cfg.LogFormat = config.LogFormatJSON
	cfg.LogLevel = "warn"

	logger, err := newLogger(cfg, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "state", "red")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "eventfsm-demo", rec["service"])
	assert.Equal(t, "red", rec["state"])

	cfg.LogLevel = "loud"
	_, err = newLogger(cfg, &buf)
	assert.Error(t, err)
}
