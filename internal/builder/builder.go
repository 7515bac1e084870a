package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Default external tools required to produce the timechanged helper. The
// driver runs the build, the compiler is what the driver invokes; both must
// be discoverable on PATH.
const (
	DefaultDriver   = "make"
	DefaultCompiler = "cc"
)

// Builder runs the build step that produces the child executable inside a
// source directory. Implementations must be safe to invoke more than once
// on the same directory.
type Builder interface {
	Build(ctx context.Context, dir string) error
}

// Config controls construction of the exec-backed builder.
type Config struct {
	// Driver is the build driver executable, DefaultDriver when empty.
	Driver string
	// Compiler is the compiler the driver depends on, DefaultCompiler when
	// empty. It is only probed for presence, never invoked directly.
	Compiler string
}

type execBuilder struct {
	driver string
}

// New locates the required build tools and returns a builder that shells out
// to the build driver. Missing tools yield a *MissingToolError before any
// command runs.
func New(cfg Config) (Builder, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DefaultDriver
	}
	compiler := cfg.Compiler
	if compiler == "" {
		compiler = DefaultCompiler
	}

	var missing []string
	driverPath, err := exec.LookPath(driver)
	if err != nil {
		missing = append(missing, driver)
	}
	if _, err := exec.LookPath(compiler); err != nil {
		missing = append(missing, compiler)
	}
	if len(missing) > 0 {
		return nil, &MissingToolError{Tools: missing}
	}

	return &execBuilder{driver: driverPath}, nil
}

func (b *execBuilder) Build(ctx context.Context, dir string) error {
	cmd := exec.CommandContext(ctx, b.driver)
	cmd.Dir = dir
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &BuildError{
				ExitCode: exitErr.ExitCode(),
				Output:   strings.TrimSpace(stderr.String()),
			}
		}
		return fmt.Errorf("run build driver: %w", err)
	}
	return nil
}

// MissingToolError reports required build tools absent from PATH. Its message
// is user-facing and names a remediation.
type MissingToolError struct {
	Tools []string
}

func (e *MissingToolError) Error() string {
	return fmt.Sprintf(
		"required build tools not found on PATH: %s (install them, e.g. `apt install build-essential`)",
		strings.Join(e.Tools, ", "),
	)
}

// BuildError reports a build driver that exited non-zero, carrying whatever
// the driver wrote to its error stream.
type BuildError struct {
	ExitCode int
	Output   string
}

func (e *BuildError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("build failed with exit status %d", e.ExitCode)
	}
	return fmt.Sprintf("build failed with exit status %d: %s", e.ExitCode, e.Output)
}
