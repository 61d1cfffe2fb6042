// Package metrics exposes run counters in the Prometheus text format so a
// node_exporter textfile collector can pick them up after each run.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iglennon-qualys/ResetAssetGroups/pkg/remediate"
)

// Recorder collects counters for one process.
type Recorder struct {
	registry    *prometheus.Registry
	groups      *prometheus.CounterVec
	runs        *prometheus.CounterVec
	lastRun     prometheus.Gauge
	lastSuccess prometheus.Gauge
	duration    prometheus.Gauge
}

// New registers the collectors on a private registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		groups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reset_asset_groups_groups_total",
			Help: "Asset groups handled, by action.",
		}, []string{"action"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reset_asset_groups_runs_total",
			Help: "Remediation runs, by result.",
		}, []string{"result"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reset_asset_groups_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reset_asset_groups_last_success_timestamp_seconds",
			Help: "Unix time the last successful run finished.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reset_asset_groups_last_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
	}
	r.registry.MustRegister(r.groups, r.runs, r.lastRun, r.lastSuccess, r.duration)
	return r
}

// Observe implements remediate.Observer.
func (r *Recorder) Observe(_ context.Context, _ string, o remediate.Outcome) error {
	r.groups.WithLabelValues(string(o.Action)).Inc()
	return nil
}

// RunFinished records the end of a run.
func (r *Recorder) RunFinished(res *remediate.Result, runErr error) {
	result := "success"
	if runErr != nil {
		result = "failure"
	}
	r.runs.WithLabelValues(result).Inc()
	if res == nil || res.FinishedAt.IsZero() {
		return
	}
	finished := float64(res.FinishedAt.Unix())
	r.lastRun.Set(finished)
	if runErr == nil {
		r.lastSuccess.Set(finished)
	}
	r.duration.Set(res.FinishedAt.Sub(res.StartedAt).Seconds())
}

// WriteTextfile atomically writes the current values to path.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
