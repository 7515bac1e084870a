package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	changeEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tickwatch",
		Name:      "change_events_total",
		Help:      "Total number of clock/timezone change notifications received from the child.",
	})

	childDiagnostics = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tickwatch",
		Name:      "child_diagnostics_total",
		Help:      "Total number of diagnostic lines received on the child's error stream.",
	})

	childRestarts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tickwatch",
		Name:      "child_restarts_total",
		Help:      "Total number of respawns after unexpected child exits.",
	})

	childUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tickwatch",
		Name:      "child_up",
		Help:      "Whether the supervised child process is currently running (1=up, 0=down).",
	})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tickwatch",
		Name:      "build_info",
		Help:      "Build metadata for the running tickwatch binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(changeEvents, childDiagnostics, childRestarts, childUp, buildInfo)
}

// Registry returns the Prometheus registry containing all tickwatch metrics.
func Registry() *prometheus.Registry {
	return registry
}

// IncChangeEvent records one change notification.
func IncChangeEvent() {
	changeEvents.Inc()
}

// IncChildDiagnostic records one diagnostic line from the child.
func IncChildDiagnostic() {
	childDiagnostics.Inc()
}

// IncChildRestart records one respawn of the child.
func IncChildRestart() {
	childRestarts.Inc()
}

// SetChildUp records whether the child is currently running.
func SetChildUp(up bool) {
	value := 0.0
	if up {
		value = 1.0
	}
	childUp.Set(value)
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
