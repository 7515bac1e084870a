package cli

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/tickwatch/tickwatch/internal/api/http"
	"github.com/tickwatch/tickwatch/internal/builder"
	"github.com/tickwatch/tickwatch/internal/cliutil"
	"github.com/tickwatch/tickwatch/internal/config"
	"github.com/tickwatch/tickwatch/internal/eventbus"
	"github.com/tickwatch/tickwatch/internal/events"
	"github.com/tickwatch/tickwatch/internal/metrics"
	"github.com/tickwatch/tickwatch/internal/watcher"
)

const teardownTimeout = 5 * time.Second

func teardownContext() (stdcontext.Context, stdcontext.CancelFunc) {
	return stdcontext.WithTimeout(stdcontext.Background(), teardownTimeout)
}

func newRunCmd(ctx *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build, spawn and supervise the timechanged helper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			return runWatch(cmd, cfg)
		},
	}
	return cmd
}

// runState tracks the current child for the status endpoint and the signal
// handlers.
type runState struct {
	mu        sync.Mutex
	current   *watcher.Watcher
	enabled   bool
	restarts  int
	startedAt time.Time
}

func (s *runState) setCurrent(w *watcher.Watcher, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = w
	s.enabled = enabled
	s.startedAt = time.Now()
}

func (s *runState) clearCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.enabled = false
}

func (s *runState) setEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

func (s *runState) addRestart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restarts++
}

func (s *runState) snapshot() httpapi.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := httpapi.Status{
		Enabled:   s.enabled,
		Restarts:  s.restarts,
		StartedAt: s.startedAt,
	}
	if s.current != nil {
		status.Running = true
		status.Pid = s.current.Pid()
	}
	return status
}

func runWatch(cmd *cobra.Command, cfg *config.Manifest) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = stdcontext.Background()
	}

	b, err := builder.New(cfg.BuilderConfig())
	if err != nil {
		return err
	}

	state := &runState{}
	bus := eventbus.New(cfg.Events.BufferSize)

	encoder := json.NewEncoder(cmd.OutOrStdout())
	outputDone := make(chan struct{})
	go func() {
		defer close(outputDone)
		for evt := range bus.Output() {
			cliutil.EncodeLogEvent(encoder, cmd.ErrOrStderr(), evt)
		}
	}()

	serverCtx, stopServer := stdcontext.WithCancel(ctx)
	defer stopServer()
	serverDone := make(chan error, 1)
	if cfg.Metrics != nil && cfg.Metrics.Listen != "" {
		srv, err := httpapi.NewServer(httpapi.Config{
			Addr:     cfg.Metrics.Listen,
			Registry: metrics.Registry(),
			Status:   state.snapshot,
		})
		if err != nil {
			bus.Close()
			<-outputDone
			return err
		}
		go func() {
			serverDone <- srv.Run(serverCtx)
		}()
	} else {
		serverDone <- nil
	}

	sigCh := make(chan os.Signal, 1)
	if sigs := notifySignals(); len(sigs) > 0 {
		signal.Notify(sigCh, sigs...)
		defer signal.Stop(sigCh)
	}

	runErr := superviseLoop(ctx, cfg, b, bus, state, sigCh)

	bus.Close()
	<-outputDone
	stopServer()
	if err := <-serverDone; err != nil && runErr == nil {
		runErr = fmt.Errorf("metrics server: %w", err)
	}
	return runErr
}

// superviseLoop owns the respawn cycle. Construction failures abort
// immediately; unexpected child exits are retried under the restart policy;
// a cancelled context tears the child down cleanly and ends the loop.
func superviseLoop(ctx stdcontext.Context, cfg *config.Manifest, b builder.Builder, bus *eventbus.Bus, state *runState, sigCh <-chan os.Signal) error {
	policy := cfg.RestartPolicy()
	restarts := 0
	base := policy.Min

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		publish(bus, events.TypeStarting, "starting timechanged helper", nil, restarts)

		w, err := watcher.Start(ctx, watcher.Options{
			BuildPath: cfg.Watcher.BuildPath,
			Builder:   b,
			OnChange: func() {
				metrics.IncChangeEvent()
				evt := events.New(events.TypeChange, "clock changed", nil)
				evt.Source = events.SourceStdout
				bus.Publish(evt)
			},
			OnError: func(err error) {
				publishRuntimeError(bus, err)
			},
		})
		if err != nil {
			// Build and spawn failures are fatal to construction, never
			// retried.
			return err
		}

		enabled := cfg.Watcher.EnableOnStart != nil && *cfg.Watcher.EnableOnStart
		state.setCurrent(w, enabled)
		metrics.SetChildUp(true)
		if enabled {
			w.Enable()
		}
		publish(bus, events.TypeStarted, fmt.Sprintf("helper running (pid %d)", w.Pid()), nil, restarts)

		clean, exitErr := superviseChild(ctx, w, bus, state, sigCh)
		state.clearCurrent()
		metrics.SetChildUp(false)

		if clean {
			publish(bus, events.TypeStopped, "helper stopped", nil, restarts)
			return nil
		}

		if exitErr == nil {
			exitErr = errors.New("helper exited unexpectedly")
		}
		publish(bus, events.TypeCrashed, "helper exited unexpectedly", exitErr, restarts)

		if !policy.Allow(restarts) {
			publish(bus, events.TypeSystem, "restart retries exhausted", exitErr, restarts)
			return exitErr
		}
		restarts++
		state.addRestart()
		metrics.IncChildRestart()
		if err := policy.SleepBackoff(ctx, base); err != nil {
			return nil
		}
		base = policy.Next(base)
	}
}

// superviseChild waits on one child lifetime. It returns clean=true when the
// context was cancelled and the child was torn down via the exit command.
func superviseChild(ctx stdcontext.Context, w *watcher.Watcher, bus *eventbus.Bus, state *runState, sigCh <-chan os.Signal) (clean bool, exitErr error) {
	for {
		select {
		case <-ctx.Done():
			publish(bus, events.TypeStopping, "stopping helper", nil, 0)
			closeCtx, cancel := teardownContext()
			err := w.Close(closeCtx)
			cancel()
			if err != nil {
				publish(bus, events.TypeSystem, "teardown did not complete", err, 0)
			}
			return true, nil
		case <-w.Done():
			return false, w.Err()
		case sig := <-sigCh:
			switch actionForSignal(sig) {
			case actionEnable:
				w.Enable()
				state.setEnabled(true)
				publish(bus, events.TypeSystem, "notifications enabled", nil, 0)
			case actionDisable:
				w.Disable()
				state.setEnabled(false)
				publish(bus, events.TypeSystem, "notifications disabled", nil, 0)
			}
		}
	}
}

func publish(bus *eventbus.Bus, t events.Type, message string, err error, attempt int) {
	evt := events.New(t, message, err)
	evt.Attempt = attempt
	if err != nil {
		evt.Level = "error"
	}
	bus.Publish(evt)
}

// publishRuntimeError translates watcher callback errors into events. The
// taxonomy matters downstream: diagnostics are routine, stream errors mark a
// dead read loop.
func publishRuntimeError(bus *eventbus.Bus, err error) {
	var diag *watcher.ChildDiagnostic
	var streamErr *watcher.StreamError
	switch {
	case errors.As(err, &diag):
		metrics.IncChildDiagnostic()
		evt := events.New(events.TypeDiagnostic, err.Error(), nil)
		evt.Source = events.SourceStderr
		evt.Level = ""
		bus.Publish(evt)
	case errors.As(err, &streamErr):
		evt := events.New(events.TypeStreamError, err.Error(), streamErr.Err)
		evt.Level = "error"
		if streamErr.Stream == "stdout" {
			evt.Source = events.SourceStdout
		} else {
			evt.Source = events.SourceStderr
		}
		bus.Publish(evt)
	default:
		evt := events.New(events.TypeSystem, err.Error(), err)
		evt.Level = "warn"
		bus.Publish(evt)
	}
}
