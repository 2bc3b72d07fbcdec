package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	topicDuration    *prom.HistogramVec
	resolveDuration  prom.Histogram
	topicResults     *prom.CounterVec
	diagnostics      *prom.CounterVec
	buildConcurrency prom.Gauge
}

// NewPrometheusRecorder constructs and registers the run metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		topicDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "db4sphinx",
			Name:      "topic_build_duration_seconds",
			Help:      "Duration of individual topic file parse+build operations",
			Buckets:   prom.DefBuckets,
		}, []string{"result"}),
		resolveDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "db4sphinx",
			Name:      "assembly_resolve_duration_seconds",
			Help:      "Total duration of one assembly resolution run",
			Buckets:   prom.DefBuckets,
		}),
		topicResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "db4sphinx",
			Name:      "topic_results_total",
			Help:      "Topic build results by success/failure",
		}, []string{"result"}),
		diagnostics: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "db4sphinx",
			Name:      "diagnostics_total",
			Help:      "Recorded diagnostics by code",
		}, []string{"code"}),
		buildConcurrency: prom.NewGauge(prom.GaugeOpts{
			Namespace: "db4sphinx",
			Name:      "build_concurrency",
			Help:      "Configured per-file build concurrency of the last run",
		}),
	}
	reg.MustRegister(pr.topicDuration, pr.resolveDuration, pr.topicResults, pr.diagnostics, pr.buildConcurrency)
	return pr
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func (pr *PrometheusRecorder) ObserveTopicBuildDuration(d time.Duration, success bool) {
	pr.topicDuration.WithLabelValues(resultLabel(success)).Observe(d.Seconds())
}

func (pr *PrometheusRecorder) ObserveResolveDuration(d time.Duration) {
	pr.resolveDuration.Observe(d.Seconds())
}

func (pr *PrometheusRecorder) IncTopicResult(success bool) {
	pr.topicResults.WithLabelValues(resultLabel(success)).Inc()
}

func (pr *PrometheusRecorder) IncDiagnostic(code string) {
	pr.diagnostics.WithLabelValues(code).Inc()
}

func (pr *PrometheusRecorder) SetBuildConcurrency(n int) {
	pr.buildConcurrency.Set(float64(n))
}
