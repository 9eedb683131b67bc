package history

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/librescoot/eventfsm"
)

// DefaultWriteTimeout bounds a single append
const DefaultWriteTimeout = time.Second

// Recorder appends a Record to a Store after every transition of the
// machines it is attached to.
type Recorder struct {
	store        Store
	clock        eventfsm.Clock
	logger       *slog.Logger
	writeTimeout time.Duration
	handler      eventfsm.GlobalFunc

	mu  sync.Mutex
	err error
}

// RecorderOption is a functional option for configuring a Recorder
type RecorderOption func(*Recorder)

// WithLogger sets the logger append failures are reported to
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithWriteTimeout bounds each append
func WithWriteTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// NewRecorder creates a recorder stamping records with clock
func NewRecorder(store Store, clock eventfsm.Clock, opts ...RecorderOption) *Recorder {
	if clock == nil {
		clock = eventfsm.SystemClock()
	}
	r := &Recorder{
		store:        store,
		clock:        clock,
		logger:       eventfsm.Logger,
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.handler = r.record
	return r
}

// Attach registers the recorder as an after-change handler of m
func (r *Recorder) Attach(m *eventfsm.Machine) {
	m.AddAfterStateChangeHandler(r.handler)
}

// Detach removes the recorder from m
func (r *Recorder) Detach(m *eventfsm.Machine) bool {
	return m.RemoveAfterStateChangeHandler(r.handler)
}

// Err returns the error of the most recent failed append, if any
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) record(from, to eventfsm.StateID) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	rec := Record{Timestamp: r.clock.Millis(), From: from, To: to}
	if err := r.store.Append(ctx, []byte(rec.String()+"\n")); err != nil {
		r.logger.Error("failed to persist transition", "from", from, "to", to, "error", err)
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
	}
}

// Recover returns the target state of the last persisted transition
func Recover(ctx context.Context, store Store) (eventfsm.StateID, error) {
	data, err := readExisting(ctx, store)
	if err != nil {
		return 0, err
	}

	line, ok := lastLine(data)
	if !ok {
		return 0, ErrNoHistory
	}
	rec, err := ParseRecord(line)
	if err != nil {
		return 0, fmt.Errorf("recover: %w", err)
	}
	return rec.To, nil
}

// Load returns every persisted transition in order, skipping blank lines
func Load(ctx context.Context, store Store) ([]Record, error) {
	data, err := readExisting(ctx, store)
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := ParseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("load: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func readExisting(ctx context.Context, store Store) ([]byte, error) {
	ok, err := store.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoHistory
	}

	data, err := store.ReadAll(ctx)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoHistory
	}
	return data, err
}
