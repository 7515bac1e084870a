package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeManifest(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "tickwatch.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `version: "1"
watcher:
  buildPath: helper
`)

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}

	if doc.Watcher.BuildPath != filepath.Join(dir, "helper") {
		t.Fatalf("expected build path resolved against manifest dir, got %q", doc.Watcher.BuildPath)
	}
	if doc.Watcher.BuildDriver != "make" || doc.Watcher.Compiler != "cc" {
		t.Fatalf("expected default tools, got %q/%q", doc.Watcher.BuildDriver, doc.Watcher.Compiler)
	}
	if doc.Watcher.EnableOnStart == nil || !*doc.Watcher.EnableOnStart {
		t.Fatalf("expected enableOnStart to default to true")
	}
	if doc.Events.BufferSize != defaultEventBuffer {
		t.Fatalf("expected default event buffer, got %d", doc.Events.BufferSize)
	}
}

func TestLoadParsesRestartPolicy(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `watcher:
  buildPath: /opt/timechanged
restartPolicy:
  maxRetries: -1
  backoff:
    min: 500ms
    max: 10s
    factor: 3
`)

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}

	pol := doc.RestartPolicy()
	if pol.MaxRetries != -1 {
		t.Fatalf("expected unbounded retries, got %d", pol.MaxRetries)
	}
	if pol.Min != 500*time.Millisecond || pol.Max != 10*time.Second || pol.Factor != 3 {
		t.Fatalf("unexpected backoff: %+v", pol)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `watcher:
  buildPath: helper
  unexpected: true
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown field to be rejected")
	}
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `version: "2"
watcher:
  buildPath: helper
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected schema violation")
	}
	if !strings.Contains(err.Error(), "schema validation failed") {
		t.Fatalf("expected schema validation error, got %v", err)
	}
}

func TestLoadRequiresBuildPath(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `watcher: {}
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected missing build path to be rejected")
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TICKWATCH_TEST_HELPER_DIR", "expanded")
	path := writeManifest(t, dir, `watcher:
  buildPath: ${TICKWATCH_TEST_HELPER_DIR}
`)

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if doc.Watcher.BuildPath != filepath.Join(dir, "expanded") {
		t.Fatalf("expected env expansion, got %q", doc.Watcher.BuildPath)
	}
}
