package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/tickwatch/tickwatch/internal/events"
)

type fakeCommander struct {
	calls []string
}

func (c *fakeCommander) Enable()  { c.calls = append(c.calls, "enable") }
func (c *fakeCommander) Disable() { c.calls = append(c.calls, "disable") }

func TestHandleKeyRelaysCommands(t *testing.T) {
	commander := &fakeCommander{}
	ui := New(commander)

	enable := tcell.NewEventKey(tcell.KeyRune, 'e', tcell.ModNone)
	if res := ui.handleKey(enable); res != nil {
		t.Fatalf("expected enable keystroke to be consumed")
	}
	disable := tcell.NewEventKey(tcell.KeyRune, 'd', tcell.ModNone)
	if res := ui.handleKey(disable); res != nil {
		t.Fatalf("expected disable keystroke to be consumed")
	}

	if len(commander.calls) != 2 || commander.calls[0] != "enable" || commander.calls[1] != "disable" {
		t.Fatalf("unexpected command relay: %v", commander.calls)
	}

	other := tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)
	if res := ui.handleKey(other); res != other {
		t.Fatalf("expected unbound rune to pass through")
	}
}

func TestHandleKeyQuits(t *testing.T) {
	ui := New(nil)

	quit := tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)
	if res := ui.handleKey(quit); res != nil {
		t.Fatalf("expected quit keystroke to be consumed")
	}

	select {
	case <-ui.done:
	default:
		t.Fatalf("expected done channel to be closed after quit")
	}
}

func TestApplyTracksCounters(t *testing.T) {
	ui := New(nil)

	ui.apply(events.Event{Timestamp: time.Unix(0, 0), Type: events.TypeChange, Message: "clock changed"})
	ui.apply(events.Event{Timestamp: time.Unix(0, 0), Type: events.TypeDiagnostic, Message: "timechanged: warn: skew", Level: "warn"})
	ui.apply(events.Event{Timestamp: time.Unix(0, 0), Type: events.TypeCrashed, Message: "child exited"})

	ui.mu.Lock()
	changes, diagnostics, restarts := ui.changes, ui.diagnostics, ui.restarts
	ui.mu.Unlock()

	if changes != 1 || diagnostics != 1 || restarts != 1 {
		t.Fatalf("unexpected counters: changes=%d diagnostics=%d restarts=%d", changes, diagnostics, restarts)
	}

	text := ui.logs.GetText(true)
	if !strings.Contains(text, "clock changed") || !strings.Contains(text, "skew") {
		t.Fatalf("expected event messages in log view, got %q", text)
	}
}
