package config

import (
	"fmt"
	"time"

	"github.com/tickwatch/tickwatch/internal/builder"
	"github.com/tickwatch/tickwatch/internal/watcher"
)

const defaultEventBuffer = 64

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// Manifest mirrors the tickwatch.yaml document structure.
type Manifest struct {
	Version string       `yaml:"version"`
	Watcher WatcherSpec  `yaml:"watcher"`
	Restart *RestartSpec `yaml:"restartPolicy"`
	Events  *EventsSpec  `yaml:"events"`
	Metrics *MetricsSpec `yaml:"metrics"`
}

// WatcherSpec configures the supervised child and its build step.
type WatcherSpec struct {
	BuildPath     string `yaml:"buildPath"`
	BuildDriver   string `yaml:"buildDriver"`
	Compiler      string `yaml:"compiler"`
	EnableOnStart *bool  `yaml:"enableOnStart"`
}

// RestartSpec configures respawning after unexpected child exits.
type RestartSpec struct {
	MaxRetries int          `yaml:"maxRetries"`
	Backoff    *BackoffSpec `yaml:"backoff"`
}

// BackoffSpec bounds the delay between respawn attempts.
type BackoffSpec struct {
	Min    Duration `yaml:"min"`
	Max    Duration `yaml:"max"`
	Factor float64  `yaml:"factor"`
}

// EventsSpec sizes the event delivery buffer.
type EventsSpec struct {
	BufferSize int `yaml:"bufferSize"`
}

// MetricsSpec enables the metrics/health listener when a listen address is
// provided.
type MetricsSpec struct {
	Listen string `yaml:"listen"`
}

// ApplyDefaults fills unset fields with their defaults.
func (m *Manifest) ApplyDefaults() {
	if m.Version == "" {
		m.Version = "1"
	}
	if m.Watcher.BuildDriver == "" {
		m.Watcher.BuildDriver = builder.DefaultDriver
	}
	if m.Watcher.Compiler == "" {
		m.Watcher.Compiler = builder.DefaultCompiler
	}
	if m.Watcher.EnableOnStart == nil {
		enabled := true
		m.Watcher.EnableOnStart = &enabled
	}
	if m.Events == nil {
		m.Events = &EventsSpec{}
	}
	if m.Events.BufferSize <= 0 {
		m.Events.BufferSize = defaultEventBuffer
	}
}

// Validate checks cross-field constraints the schema cannot express.
func (m *Manifest) Validate() error {
	if m.Watcher.BuildPath == "" {
		return fmt.Errorf("watcher.buildPath is required")
	}
	if m.Restart != nil && m.Restart.MaxRetries < -1 {
		return fmt.Errorf("restartPolicy.maxRetries must be >= -1")
	}
	if m.Restart != nil && m.Restart.Backoff != nil {
		b := m.Restart.Backoff
		if b.Min.IsSet() && b.Max.IsSet() && b.Max.Duration < b.Min.Duration {
			return fmt.Errorf("restartPolicy.backoff.max must not be below min")
		}
	}
	return nil
}

// RestartPolicy derives the watcher policy from the manifest.
func (m *Manifest) RestartPolicy() watcher.Policy {
	pol := watcher.DefaultPolicy()
	if m.Restart == nil {
		return pol
	}
	pol.MaxRetries = m.Restart.MaxRetries
	if b := m.Restart.Backoff; b != nil {
		if b.Min.Duration > 0 {
			pol.Min = b.Min.Duration
		}
		if b.Max.Duration > 0 {
			pol.Max = b.Max.Duration
		}
		if b.Factor > 0 {
			pol.Factor = b.Factor
		}
	}
	return pol.Normalize()
}

// BuilderConfig derives the build tool configuration from the manifest.
func (m *Manifest) BuilderConfig() builder.Config {
	return builder.Config{
		Driver:   m.Watcher.BuildDriver,
		Compiler: m.Watcher.Compiler,
	}
}
