package watcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/tickwatch/tickwatch/internal/builder"
)

// ChildBinaryName is the fixed name of the helper executable the build step
// produces inside the build directory.
const ChildBinaryName = "timechanged"

const (
	commandEnable  = "enable"
	commandDisable = "disable"
	commandExit    = "exit"
)

// Options configures Start.
type Options struct {
	// BuildPath is the directory containing the build descriptor and, after
	// a successful build, the child executable.
	BuildPath string

	// Builder runs the build step. When nil the default exec-backed builder
	// is constructed, which probes PATH for the required tools.
	Builder builder.Builder

	// OnChange is invoked once per line the child writes to stdout. It runs
	// on the notification reader goroutine; invocations are delivered in
	// stream order.
	OnChange func()

	// OnError receives runtime failures: *ChildDiagnostic for stderr lines,
	// *StreamError for read failures and wrapped write errors from Enable
	// and Disable. It runs on whichever goroutine observed the failure.
	OnError func(error)
}

// Watcher owns one supervised child process and its three streams. At most
// two read loops exist per watcher, one per output stream.
type Watcher struct {
	path  string
	cmd   *exec.Cmd
	stdin io.WriteCloser

	onChange atomic.Pointer[func()]
	onError  func(error)

	stopped atomic.Bool
	writeMu sync.Mutex
	readers sync.WaitGroup
	done    chan struct{}

	mu      sync.Mutex
	exitErr error

	closeOnce sync.Once
	closeErr  error
}

// Start runs the build step in opts.BuildPath, spawns the child executable
// and begins both read loops before returning. Build and spawn failures are
// returned synchronously; once Start succeeds all further failures flow
// through the error callback.
func Start(ctx context.Context, opts Options) (*Watcher, error) {
	if opts.BuildPath == "" {
		return nil, errors.New("watcher requires a build path")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	b := opts.Builder
	if b == nil {
		var err error
		b, err = builder.New(builder.Config{})
		if err != nil {
			return nil, err
		}
	}
	if err := b.Build(ctx, opts.BuildPath); err != nil {
		return nil, err
	}

	bin := filepath.Join(opts.BuildPath, ChildBinaryName)
	cmd := exec.Command(bin)
	cmd.Dir = opts.BuildPath

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &SpawnError{Path: bin, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Path: bin, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Path: bin, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Path: bin, Err: err}
	}

	w := &Watcher{
		path:    bin,
		cmd:     cmd,
		stdin:   stdin,
		onError: opts.OnError,
		done:    make(chan struct{}),
	}
	if w.onError == nil {
		w.onError = func(error) {}
	}
	change := opts.OnChange
	if change == nil {
		change = func() {}
	}
	w.onChange.Store(&change)

	w.readers.Add(2)
	go w.watchChanges(stdout)
	go w.watchDiagnostics(stderr)

	go func() {
		w.readers.Wait()
		err := cmd.Wait()
		w.mu.Lock()
		w.exitErr = err
		w.mu.Unlock()
		close(w.done)
	}()

	return w, nil
}

// Enable asks the child to start emitting change notifications.
//
// The write is fire and forget: a failure (for example a broken pipe after
// the child already exited) is delivered through the error callback instead
// of being returned, because these methods are typically invoked from event
// handlers that have nowhere useful to propagate a synchronous error.
func (w *Watcher) Enable() {
	w.sendReported(commandEnable)
}

// Disable asks the child to stop emitting change notifications. Failures
// are reported the same way as for Enable.
func (w *Watcher) Disable() {
	w.sendReported(commandDisable)
}

// Close tears the watcher down: it silences the change callback, sets the
// stop flag, asks the child to exit and blocks until the child has been
// reaped or ctx expires. The child closing its streams on exit is what
// unblocks a reader stuck in a line read, so Close never force-kills.
// Subsequent calls return the first call's result without re-reaping.
func (w *Watcher) Close(ctx context.Context) error {
	w.closeOnce.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		noop := func() {}
		w.onChange.Store(&noop)
		w.stopped.Store(true)
		// A failed write means the child is already gone; its exit is
		// observed below either way.
		_ = w.send(commandExit)
		select {
		case <-w.done:
		case <-ctx.Done():
			w.closeErr = ctx.Err()
		}
		_ = w.stdin.Close()
	})
	return w.closeErr
}

// Done is closed once the child process has exited and been reaped.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Err returns the child's exit error. It is meaningful once Done is closed
// and nil for a clean exit.
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exitErr
}

// Pid returns the child's process identifier.
func (w *Watcher) Pid() int {
	if w.cmd.Process == nil {
		return 0
	}
	return w.cmd.Process.Pid
}

func (w *Watcher) sendReported(command string) {
	if err := w.send(command); err != nil {
		w.onError(fmt.Errorf("send %q command: %w", command, err))
	}
}

func (w *Watcher) send(command string) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_, err := io.WriteString(w.stdin, command+"\n")
	return err
}

// watchChanges is the notification read loop. Any line on stdout, regardless
// of content, is the change signal.
func (w *Watcher) watchChanges(r io.Reader) {
	defer w.readers.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if w.stopped.Load() {
			return
		}
		fn := w.onChange.Load()
		(*fn)()
	}
	if err := scanner.Err(); err != nil && !w.stopped.Load() {
		w.onError(&StreamError{Stream: "stdout", Err: err})
	}
}

// watchDiagnostics is the error read loop. Empty lines are dropped; a read
// failure ends this loop only.
func (w *Watcher) watchDiagnostics(r io.Reader) {
	defer w.readers.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if w.stopped.Load() {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		w.onError(&ChildDiagnostic{Line: line})
	}
	if err := scanner.Err(); err != nil && !w.stopped.Load() {
		w.onError(&StreamError{Stream: "stderr", Err: err})
	}
}
