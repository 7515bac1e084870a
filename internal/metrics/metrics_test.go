package metrics_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tickwatch/tickwatch/internal/metrics"
)

func TestRegistryExposesMetrics(t *testing.T) {
	metrics.EmitBuildInfo()
	metrics.IncChangeEvent()
	metrics.IncChildDiagnostic()
	metrics.SetChildUp(true)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("unexpected status code from metrics handler: %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"tickwatch_change_events_total",
		"tickwatch_child_diagnostics_total",
		"tickwatch_child_up 1",
		"tickwatch_build_info{",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics body:\n%s", want, body)
		}
	}
	if !strings.Contains(body, "go_version=") {
		t.Fatalf("expected go_version label on build info metric:\n%s", body)
	}
}
