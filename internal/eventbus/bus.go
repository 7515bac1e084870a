// Package eventbus decouples watcher callbacks from the command layer. The
// callbacks run on the watcher's read loops and must never block on a slow
// consumer, so the bus delivers events through a bounded channel and drops
// when the buffer would overflow, later surfacing the number of discarded
// entries as a synthesized warning event.
package eventbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/tickwatch/tickwatch/internal/events"
)

// Bus fans events from producer goroutines into a bounded output channel.
type Bus struct {
	out chan events.Event

	mu      sync.Mutex
	dropped int
	closed  bool
}

// New constructs a bus backed by a channel of the provided size. A size of
// zero results in a minimally buffered channel.
func New(size int) *Bus {
	if size <= 0 {
		size = 1
	}
	return &Bus{out: make(chan events.Event, size)}
}

// Output exposes the event channel. It is closed by Close.
func (b *Bus) Output() <-chan events.Event {
	return b.out
}

// Publish delivers an event without blocking. Events published after Close
// or while the buffer is full are counted as drops; pending drop counts are
// flushed ahead of the next successful delivery so ordering context is
// preserved.
func (b *Bus) Publish(evt events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	evt = normalize(evt)
	if b.dropped > 0 {
		if !b.trySend(dropEvent(b.dropped)) {
			b.dropped++
			return
		}
		b.dropped = 0
	}
	if !b.trySend(evt) {
		b.dropped++
	}
}

// Close emits any pending drop accounting and closes the output channel.
// Publish calls after Close are ignored. The drop flush may block on the
// consumer, so it happens outside the mutex; closed is already set by then,
// which keeps concurrent Publish calls from touching the channel.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	dropped := b.dropped
	b.dropped = 0
	b.mu.Unlock()

	if dropped > 0 {
		b.out <- dropEvent(dropped)
	}
	close(b.out)
}

func (b *Bus) trySend(evt events.Event) bool {
	select {
	case b.out <- evt:
		return true
	default:
		return false
	}
}

func dropEvent(dropped int) events.Event {
	evt := events.New(events.TypeSystem, fmt.Sprintf("dropped=%d", dropped), nil)
	evt.Level = "warn"
	return evt
}

func normalize(evt events.Event) events.Event {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	if evt.Source == "" {
		evt.Source = events.SourceSystem
	}
	if evt.Level == "" {
		if evt.Source == events.SourceStderr {
			evt.Level = "warn"
		} else {
			evt.Level = "info"
		}
	}
	return evt
}
