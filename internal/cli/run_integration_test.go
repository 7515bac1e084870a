package cli

import (
	"bytes"
	stdcontext "context"
	"encoding/json"
	"os"
	"path/filepath"
	stdruntime "runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tickwatch/tickwatch/internal/watcher"
)

// syncBuffer lets the test poll command output while the command is running.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeHelper(t *testing.T, dir, body string) {
	t.Helper()
	path := filepath.Join(dir, watcher.ChildBinaryName)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write helper script: %v", err)
	}
}

func writeRunManifest(t *testing.T, dir, extra string) string {
	t.Helper()
	manifest := `watcher:
  buildPath: .
  buildDriver: "true"
  compiler: sh
` + extra
	path := filepath.Join(dir, "tickwatch.yaml")
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestRunCommandStreamsEventsAndStopsCleanly(t *testing.T) {
	if stdruntime.GOOS == "windows" {
		t.Skip("run integration test relies on shell script children")
	}

	dir := t.TempDir()
	writeHelper(t, dir, `echo changed
echo "warn: clock skew" >&2
while read line; do
  [ "$line" = "exit" ] && exit 0
done
`)
	manifest := writeRunManifest(t, dir, "")

	out := &syncBuffer{}
	errOut := &syncBuffer{}
	root := NewRootCmd()
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetArgs([]string{"-f", manifest, "run"})

	ctx, cancel := stdcontext.WithCancel(stdcontext.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- root.ExecuteContext(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		output := out.String()
		if strings.Contains(output, `"event":"change"`) && strings.Contains(output, "warn: clock skew") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for events, output so far:\n%s", output)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run command: %v\nstderr: %s", err, errOut.String())
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for run command to stop")
	}

	output := out.String()
	if !strings.Contains(output, `"event":"stopped"`) {
		t.Fatalf("expected stopped event in output:\n%s", output)
	}

	// Every line must be a well-formed log record.
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("malformed log line %q: %v", line, err)
		}
	}
}

func TestRunCommandRetriesThenFails(t *testing.T) {
	if stdruntime.GOOS == "windows" {
		t.Skip("run integration test relies on shell script children")
	}

	dir := t.TempDir()
	writeHelper(t, dir, "exit 1\n")
	manifest := writeRunManifest(t, dir, `restartPolicy:
  maxRetries: 1
  backoff:
    min: 10ms
    max: 20ms
    factor: 2
`)

	out := &syncBuffer{}
	root := NewRootCmd()
	root.SetOut(out)
	root.SetErr(&syncBuffer{})
	root.SetArgs([]string{"-f", manifest, "run"})

	ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), 10*time.Second)
	defer cancel()

	err := root.ExecuteContext(ctx)
	if err == nil {
		t.Fatalf("expected run to fail after exhausting retries, output:\n%s", out.String())
	}

	output := out.String()
	if got := strings.Count(output, `"event":"crashed"`); got != 2 {
		t.Fatalf("expected 2 crash events (initial plus one retry), got %d:\n%s", got, output)
	}
	if !strings.Contains(output, "restart retries exhausted") {
		t.Fatalf("expected retry exhaustion marker:\n%s", output)
	}
}

func TestRunCommandFailsFastOnBuildError(t *testing.T) {
	if stdruntime.GOOS == "windows" {
		t.Skip("run integration test relies on shell script children")
	}

	dir := t.TempDir()
	// No helper: the driver itself fails before a spawn is attempted.
	driver := filepath.Join(dir, "broken-driver")
	if err := os.WriteFile(driver, []byte("#!/bin/sh\necho 'syntax error' >&2\nexit 2\n"), 0o755); err != nil {
		t.Fatalf("write driver: %v", err)
	}
	manifest := filepath.Join(dir, "tickwatch.yaml")
	if err := os.WriteFile(manifest, []byte(`watcher:
  buildPath: .
  buildDriver: `+driver+`
  compiler: sh
`), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	root := NewRootCmd()
	root.SetOut(&syncBuffer{})
	root.SetErr(&syncBuffer{})
	root.SetArgs([]string{"-f", manifest, "run"})

	err := root.ExecuteContext(stdcontext.Background())
	if err == nil {
		t.Fatalf("expected build failure to abort the run")
	}
	if !strings.Contains(err.Error(), "syntax error") {
		t.Fatalf("expected captured build stderr in error, got %v", err)
	}
}
