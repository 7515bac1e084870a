package cli

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tickwatch/tickwatch/internal/builder"
	"github.com/tickwatch/tickwatch/internal/events"
	"github.com/tickwatch/tickwatch/internal/metrics"
	"github.com/tickwatch/tickwatch/internal/tui"
	"github.com/tickwatch/tickwatch/internal/watcher"
)

func newTuiCmd(ctx *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch the interactive event viewer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !supportsInteractiveOutput(cmd) {
				return fmt.Errorf("tui requires an interactive terminal")
			}

			cfg, err := ctx.loadManifest()
			if err != nil {
				return err
			}

			b, err := builder.New(cfg.BuilderConfig())
			if err != nil {
				return err
			}

			// The UI exists before the watcher so the read loops always have
			// somewhere to deliver; the commander is bound once the child is
			// running.
			commander := &lazyCommander{}
			ui := tui.New(commander)

			w, err := watcher.Start(cmd.Context(), watcher.Options{
				BuildPath: cfg.Watcher.BuildPath,
				Builder:   b,
				OnChange: func() {
					metrics.IncChangeEvent()
					evt := events.New(events.TypeChange, "clock changed", nil)
					evt.Source = events.SourceStdout
					ui.Handle(evt)
				},
				OnError: func(err error) {
					publishRuntimeErrorToUI(ui, err)
				},
			})
			if err != nil {
				return err
			}
			commander.bind(w)

			enabled := cfg.Watcher.EnableOnStart != nil && *cfg.Watcher.EnableOnStart
			if enabled {
				w.Enable()
			}
			ui.SetEnabled(enabled)

			runErr := ui.Run(cmd.Context())

			closeCtx, cancel := teardownContext()
			defer cancel()
			if err := w.Close(closeCtx); err != nil && runErr == nil {
				runErr = err
			}
			return runErr
		},
	}

	return cmd
}

type lazyCommander struct {
	mu sync.Mutex
	w  *watcher.Watcher
}

func (c *lazyCommander) bind(w *watcher.Watcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w = w
}

func (c *lazyCommander) Enable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w != nil {
		c.w.Enable()
	}
}

func (c *lazyCommander) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w != nil {
		c.w.Disable()
	}
}

func publishRuntimeErrorToUI(ui *tui.UI, err error) {
	evt := events.New(events.TypeDiagnostic, err.Error(), nil)
	evt.Source = events.SourceStderr
	evt.Level = "warn"
	var streamErr *watcher.StreamError
	if errors.As(err, &streamErr) {
		evt.Type = events.TypeStreamError
		evt.Level = "error"
	} else {
		metrics.IncChildDiagnostic()
	}
	ui.Handle(evt)
}

func supportsInteractiveOutput(cmd *cobra.Command) bool {
	out, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(out.Fd()))
}
