package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/tickwatch/tickwatch/internal/events"
)

// LogRecord represents a structured log event ready for JSON encoding.
type LogRecord struct {
	Timestamp time.Time `json:"ts"`
	Event     string    `json:"event"`
	Level     string    `json:"level"`
	Message   string    `json:"msg"`
	Source    string    `json:"source"`
	Attempt   int       `json:"attempt,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NewLogRecord converts a watcher event into a structured log record.
func NewLogRecord(evt events.Event) LogRecord {
	level := evt.Level
	if level == "" {
		if inferred := inferLogLevel(evt.Message); inferred != "" {
			level = inferred
		} else {
			level = "info"
		}
	}
	source := evt.Source
	if source == "" {
		source = events.SourceSystem
	}
	record := LogRecord{
		Timestamp: evt.Timestamp,
		Event:     string(evt.Type),
		Level:     level,
		Message:   evt.Message,
		Source:    source,
		Attempt:   evt.Attempt,
	}
	if evt.Err != nil {
		record.Error = evt.Err.Error()
	}
	return record
}

var levelTokenPattern = regexp.MustCompile(`(?i)\b(error|warn|info)\b`)

// inferLogLevel guesses a level from tokens inside child diagnostic lines,
// which carry no structured severity of their own.
func inferLogLevel(message string) string {
	matches := levelTokenPattern.FindStringSubmatch(message)
	if len(matches) < 2 {
		return ""
	}
	switch strings.ToLower(matches[1]) {
	case "error":
		return "error"
	case "warn":
		return "warn"
	case "info":
		return "info"
	default:
		return ""
	}
}

// EncodeLogEvent encodes an event to JSON, reporting errors to stderr if needed.
func EncodeLogEvent(enc *json.Encoder, stderr io.Writer, evt events.Event) {
	if enc == nil {
		return
	}
	record := NewLogRecord(evt)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := enc.Encode(&record); err != nil {
		fmt.Fprintf(stderr, "error: encode log: %v\n", err)
	}
}
