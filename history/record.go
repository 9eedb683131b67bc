// Package history persists state transitions as text lines and recovers
// the last state on restart.
//
// The engine never touches storage itself. A Recorder attaches to a
// machine's after-change hook and appends one line per transition:
//
//	timestamp,from,to
//
// Recover reads the last non-empty line back and returns its trailing field.
package history

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/librescoot/eventfsm"
)

var (
	// ErrNoHistory is returned by Recover when there is nothing to recover from
	ErrNoHistory = errors.New("no transition history")

	// ErrMalformedRecord is returned when a line is not timestamp,from,to
	ErrMalformedRecord = errors.New("malformed transition record")
)

// Record is one persisted transition
type Record struct {
	Timestamp uint32
	From      eventfsm.StateID
	To        eventfsm.StateID
}

// String formats the record as a line without the trailing newline
func (r Record) String() string {
	return fmt.Sprintf("%d,%d,%d", r.Timestamp, r.From, r.To)
}

// ParseRecord parses a single line, ignoring surrounding whitespace
func ParseRecord(line string) (Record, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 3 {
		return Record{}, fmt.Errorf("%q: %w", line, ErrMalformedRecord)
	}

	ts, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("%q timestamp: %w", line, errors.Join(ErrMalformedRecord, err))
	}
	from, err := parseState(fields[1])
	if err != nil {
		return Record{}, fmt.Errorf("%q from: %w", line, err)
	}
	to, err := parseState(fields[2])
	if err != nil {
		return Record{}, fmt.Errorf("%q to: %w", line, err)
	}

	return Record{Timestamp: uint32(ts), From: from, To: to}, nil
}

func parseState(field string) (eventfsm.StateID, error) {
	n, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil {
		return 0, errors.Join(ErrMalformedRecord, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative state %d: %w", n, ErrMalformedRecord)
	}
	return eventfsm.StateID(n), nil
}

// lastLine returns the last non-empty line of data
func lastLine(data []byte) (string, bool) {
	lines := strings.Split(string(data), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line, true
		}
	}
	return "", false
}
