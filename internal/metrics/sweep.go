package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sweep subsystem metrics
var (
	AssetsDiscoveredTotal prometheus.Counter
	DiscoveryErrorsTotal  prometheus.Counter

	AssetsDeletedTotal  prometheus.Counter
	AssetsSkippedTotal  prometheus.Counter
	DeleteFailuresTotal prometheus.Counter
	DeleteRetriesTotal  prometheus.Counter

	AssetsCopiedTotal prometheus.Counter
	AssetsMovedTotal  prometheus.Counter

	RunsTotal          prometheus.Counter
	CancellationsTotal prometheus.Counter
	RunDuration        prometheus.Histogram
	LastRunTimestamp   prometheus.Gauge
)

func initSweepMetrics() {
	AssetsDiscoveredTotal = NewCounter(
		"assetsweep_assets_discovered_total",
		"Total assets discovered under requested roots.")
	DiscoveryErrorsTotal = NewCounter(
		"assetsweep_discovery_errors_total",
		"Total per-node discovery errors (subtree skipped).")

	AssetsDeletedTotal = NewCounter(
		"assetsweep_assets_deleted_total",
		"Total assets deleted from the remote catalog.")
	AssetsSkippedTotal = NewCounter(
		"assetsweep_assets_skipped_total",
		"Total assets skipped by the safety validator.")
	DeleteFailuresTotal = NewCounter(
		"assetsweep_delete_failures_total",
		"Total assets whose deletion failed terminally.")
	DeleteRetriesTotal = NewCounter(
		"assetsweep_delete_retries_total",
		"Total deletion retries across all assets.")

	AssetsCopiedTotal = NewCounter(
		"assetsweep_assets_copied_total",
		"Total assets copied between catalog paths.")
	AssetsMovedTotal = NewCounter(
		"assetsweep_assets_moved_total",
		"Total assets moved between catalog paths.")

	RunsTotal = NewCounter(
		"assetsweep_runs_total",
		"Total sweep runs started.")
	CancellationsTotal = NewCounter(
		"assetsweep_cancellations_total",
		"Total runs stopped by an operator interrupt.")
	RunDuration = NewDurationHistogram(
		"assetsweep_run_duration_seconds",
		"End-to-end run duration in seconds.")
	LastRunTimestamp = NewGauge(
		"assetsweep_last_run_timestamp_seconds",
		"Unix timestamp of the last completed run.")
}

func registerSweepMetrics() {
	prometheus.MustRegister(
		AssetsDiscoveredTotal,
		DiscoveryErrorsTotal,
		AssetsDeletedTotal,
		AssetsSkippedTotal,
		DeleteFailuresTotal,
		DeleteRetriesTotal,
		AssetsCopiedTotal,
		AssetsMovedTotal,
		RunsTotal,
		CancellationsTotal,
		RunDuration,
		LastRunTimestamp,
	)
}
