// Package tui implements the interactive event viewer backed by tview. It
// shows a running header with child state and counters above a scrolling log
// of change notifications and diagnostics, and forwards enable/disable
// keystrokes to the supervised child.
package tui

import (
	"context"
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/tickwatch/tickwatch/internal/events"
)

const (
	logsTitle        = "Events"
	defaultEventSize = 64
)

// Commander relays protocol commands to the supervised child.
type Commander interface {
	Enable()
	Disable()
}

// UI coordinates the interactive event viewer.
type UI struct {
	app       *tview.Application
	header    *tview.TextView
	logs      *tview.TextView
	events    chan events.Event
	commander Commander

	mu          sync.Mutex
	enabled     bool
	changes     int
	diagnostics int
	restarts    int

	stopOnce sync.Once
	done     chan struct{}
}

// New constructs a UI that relays e/d keystrokes to the given commander. A
// nil commander disables the keystrokes.
func New(commander Commander) *UI {
	app := tview.NewApplication()

	header := tview.NewTextView().SetDynamicColors(true)
	header.SetBorder(true).SetTitle("tickwatch")

	logs := tview.NewTextView().SetDynamicColors(true).SetWrap(false).SetScrollable(true)
	logs.SetBorder(true).SetTitle(logsTitle)
	logs.SetChangedFunc(func() {
		app.Draw()
	})

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, 3, 0, false).
		AddItem(logs, 0, 1, true)

	ui := &UI{
		app:       app,
		header:    header,
		logs:      logs,
		events:    make(chan events.Event, defaultEventSize),
		commander: commander,
		done:      make(chan struct{}),
	}

	app.SetRoot(flex, true)
	app.SetInputCapture(ui.handleKey)
	ui.renderHeader()

	return ui
}

// Handle enqueues an event for display without blocking the producer.
func (u *UI) Handle(evt events.Event) {
	select {
	case u.events <- evt:
	default:
	}
}

// SetEnabled records the child's notification state shown in the header.
func (u *UI) SetEnabled(enabled bool) {
	u.mu.Lock()
	u.enabled = enabled
	u.mu.Unlock()
	u.renderHeader()
}

// Run drives the application until Stop is called, a quit key is pressed or
// ctx is cancelled.
func (u *UI) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		select {
		case <-ctx.Done():
			u.Stop()
		case <-u.done:
		}
	}()
	go u.consume()
	defer u.Stop()
	return u.app.Run()
}

// Stop terminates the UI. Safe to call multiple times.
func (u *UI) Stop() {
	u.stopOnce.Do(func() {
		close(u.done)
		u.app.Stop()
	})
}

func (u *UI) consume() {
	for {
		select {
		case <-u.done:
			return
		case evt := <-u.events:
			u.apply(evt)
		}
	}
}

func (u *UI) apply(evt events.Event) {
	u.mu.Lock()
	switch evt.Type {
	case events.TypeChange:
		u.changes++
	case events.TypeDiagnostic, events.TypeStreamError:
		u.diagnostics++
	case events.TypeCrashed:
		u.restarts++
	}
	u.mu.Unlock()

	message := evt.Message
	if evt.Err != nil && message == "" {
		message = evt.Err.Error()
	}
	fmt.Fprintf(u.logs, "%s [%s]%-12s[-] %s\n",
		evt.Timestamp.Format("15:04:05"), levelColor(evt.Level), evt.Type, tview.Escape(message))
	u.renderHeader()
}

func (u *UI) renderHeader() {
	u.mu.Lock()
	enabled := u.enabled
	changes := u.changes
	diagnostics := u.diagnostics
	restarts := u.restarts
	u.mu.Unlock()

	state := "[red]disabled[-]"
	if enabled {
		state = "[green]enabled[-]"
	}
	u.header.SetText(fmt.Sprintf(" notifications: %s   changes: %d   diagnostics: %d   restarts: %d   (e)nable (d)isable (q)uit",
		state, changes, diagnostics, restarts))
}

func (u *UI) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		u.Stop()
		return nil
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q', 'Q':
			u.Stop()
			return nil
		case 'e':
			if u.commander != nil {
				u.commander.Enable()
				u.SetEnabled(true)
			}
			return nil
		case 'd':
			if u.commander != nil {
				u.commander.Disable()
				u.SetEnabled(false)
			}
			return nil
		}
	}
	return ev
}

func levelColor(level string) string {
	switch level {
	case "error":
		return "red"
	case "warn":
		return "yellow"
	default:
		return "white"
	}
}
