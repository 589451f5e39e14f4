package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()
	Init()

	checks := []struct {
		name   string
		metric any
	}{
		{"AssetsDiscoveredTotal", AssetsDiscoveredTotal},
		{"DiscoveryErrorsTotal", DiscoveryErrorsTotal},
		{"AssetsDeletedTotal", AssetsDeletedTotal},
		{"AssetsSkippedTotal", AssetsSkippedTotal},
		{"DeleteFailuresTotal", DeleteFailuresTotal},
		{"DeleteRetriesTotal", DeleteRetriesTotal},
		{"AssetsCopiedTotal", AssetsCopiedTotal},
		{"AssetsMovedTotal", AssetsMovedTotal},
		{"RunsTotal", RunsTotal},
		{"CancellationsTotal", CancellationsTotal},
		{"RunDuration", RunDuration},
		{"LastRunTimestamp", LastRunTimestamp},
	}
	for _, c := range checks {
		if c.metric == nil {
			t.Errorf("%s was not initialized", c.name)
		}
	}
}

func TestMetricsAreRegistered(t *testing.T) {
	Init()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gathering metrics: %v", err)
	}
	found := make(map[string]bool)
	for _, mf := range mfs {
		found[*mf.Name] = true
	}

	expected := []string{
		"assetsweep_assets_discovered_total",
		"assetsweep_discovery_errors_total",
		"assetsweep_assets_deleted_total",
		"assetsweep_assets_skipped_total",
		"assetsweep_delete_failures_total",
		"assetsweep_delete_retries_total",
		"assetsweep_assets_copied_total",
		"assetsweep_assets_moved_total",
		"assetsweep_runs_total",
		"assetsweep_cancellations_total",
		"assetsweep_run_duration_seconds",
		"assetsweep_last_run_timestamp_seconds",
	}
	for _, name := range expected {
		if !found[name] {
			t.Errorf("metric %s not found in registry", name)
		}
	}
}

func TestHelperFunctions(t *testing.T) {
	if c := NewCounter("test_counter", "test"); c == nil {
		t.Error("NewCounter returned nil")
	}
	if g := NewGauge("test_gauge", "test"); g == nil {
		t.Error("NewGauge returned nil")
	}
	if h := NewDurationHistogram("test_duration", "test"); h == nil {
		t.Error("NewDurationHistogram returned nil")
	}
}

func TestMetricUpdatesDoNotPanic(t *testing.T) {
	Init()

	AssetsDeletedTotal.Inc()
	DeleteRetriesTotal.Add(3)
	RunDuration.Observe(1.5)
	LastRunTimestamp.Set(1234567890)
}
