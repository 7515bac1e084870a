package events

import "time"

// Type captures high level lifecycle notifications emitted by the watcher
// and the command layer.
type Type string

const (
	TypeStarting    Type = "starting"
	TypeStarted     Type = "started"
	TypeChange      Type = "change"
	TypeDiagnostic  Type = "diagnostic"
	TypeStreamError Type = "stream_error"
	TypeCrashed     Type = "crashed"
	TypeStopping    Type = "stopping"
	TypeStopped     Type = "stopped"
	TypeSystem      Type = "system"
)

// Known event sources. Stdout carries change notifications, stderr carries
// child diagnostics, and system marks events synthesized by tickwatch itself.
const (
	SourceStdout = "stdout"
	SourceStderr = "stderr"
	SourceSystem = "system"
)

// Event represents a single lifecycle, change or diagnostic notification.
type Event struct {
	Timestamp time.Time
	Type      Type
	Message   string
	Level     string
	Source    string
	Err       error
	Attempt   int
}

// New constructs an event stamped with the current time. The level defaults
// to "info" and the source to system; callers adjust both as needed.
func New(t Type, message string, err error) Event {
	return Event{
		Timestamp: time.Now(),
		Type:      t,
		Message:   message,
		Level:     "info",
		Source:    SourceSystem,
		Err:       err,
	}
}
