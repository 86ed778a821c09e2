// Package metrics records build timings and outcomes.
//
// Components take a Recorder; NoopRecorder is the default so callers never
// check for nil. PrometheusRecorder registers its collectors on a registry
// that can be written to a node_exporter textfile after the run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "nodebuilder"

// ResultLabel enumerates stage results.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultSkipped ResultLabel = "skipped"
	ResultFailed  ResultLabel = "failed"
)

// Recorder receives build observations.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome string)
	AddArtifacts(target string, n int)
	SetBundleSize(bytes int64)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncBuildOutcome(string)                     {}
func (NoopRecorder) AddArtifacts(string, int)                   {}
func (NoopRecorder) SetBundleSize(int64)                        {}

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	stageResults  *prometheus.CounterVec
	buildDuration prometheus.Histogram
	buildOutcome  *prometheus.CounterVec
	artifacts     *prometheus.CounterVec
	bundleSize    prometheus.Gauge
}

// NewPrometheusRecorder registers the build collectors on reg, or on a new
// registry when reg is nil.
func NewPrometheusRecorder(reg *prometheus.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"stage"}),
		stageResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "stage_results_total",
			Help:      "Stage results by outcome.",
		}, []string{"stage", "result"}),
		buildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		buildOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "build_outcomes_total",
			Help:      "Builds by final status.",
		}, []string{"outcome"}),
		artifacts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "artifacts_written_total",
			Help:      "Files written per target directory.",
		}, []string{"target"}),
		bundleSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "bundle_size_bytes",
			Help:      "Size of the JavaScript bundle.",
		}),
	}
}

func (r *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	r.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (r *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	r.buildDuration.Observe(d.Seconds())
}

func (r *PrometheusRecorder) IncBuildOutcome(outcome string) {
	r.buildOutcome.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRecorder) AddArtifacts(target string, n int) {
	r.artifacts.WithLabelValues(target).Add(float64(n))
}

func (r *PrometheusRecorder) SetBundleSize(bytes int64) {
	r.bundleSize.Set(float64(bytes))
}

// WriteTextfile writes the current values in the text exposition format,
// atomically replacing path.
func (r *PrometheusRecorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
