package watcher

import "fmt"

// SpawnError reports that the child executable could not be launched after a
// successful build.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ChildDiagnostic carries one non-empty line from the child's error stream.
// It is delivered through the error callback and is not fatal; the watcher
// keeps running.
type ChildDiagnostic struct {
	Line string
}

func (e *ChildDiagnostic) Error() string {
	return "timechanged: " + e.Line
}

// StreamError reports a read failure on one of the child's streams outside
// of orderly shutdown. It terminates the affected read loop only.
type StreamError struct {
	Stream string
	Err    error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("read child %s: %v", e.Stream, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}
