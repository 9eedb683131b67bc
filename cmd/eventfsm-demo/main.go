// Command eventfsm-demo runs a traffic light on the eventfsm engine,
// persisting every transition and resuming from the last one on restart.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/librescoot/eventfsm"
	"github.com/librescoot/eventfsm/history"
	"github.com/librescoot/eventfsm/internal/config"
)

const statusInterval = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := history.NewFileStore(cfg.HistoryPath)
	if err != nil {
		return err
	}

	l, err := newLight(cfg, logger)
	if err != nil {
		return fmt.Errorf("build machine: %w", err)
	}
	m := l.machine

	recorder := history.NewRecorder(store, eventfsm.SystemClock(), history.WithLogger(logger))
	recorder.Attach(m)

	initial := stateRed
	recovered, err := history.Recover(ctx, store)
	switch {
	case err == nil && recovered != stateOff && m.IsValidState(recovered):
		logger.Info("recovered state", "state", stateNames[recovered], "path", store.Path())
		initial = recovered
	case err != nil && !errors.Is(err, history.ErrNoHistory):
		logger.Warn("ignoring unreadable history", "path", store.Path(), "error", err)
	}
	m.SetState(initial)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := m.Run(gctx, cfg.TickInterval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				m.Stop()
				return nil
			case <-ticker.C:
				logger.Info("status",
					"state", stateNames[m.CurrentState()],
					"in_state", m.TimeInCurrentState(),
					"history_error", recorder.Err(),
				)
			}
		}
	})

	err = g.Wait()
	logger.Info("stopped", "state", stateNames[m.CurrentState()])
	return err
}

func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == config.LogFormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("service", "eventfsm-demo"), nil
}
