package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder_Counters(t *testing.T) {
	reg := prom.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.IncTopicResult(true)
	rec.IncTopicResult(true)
	rec.IncTopicResult(false)
	rec.IncDiagnostic("duplicate-id")
	rec.SetBuildConcurrency(8)

	assert.Equal(t, float64(2), testutil.ToFloat64(rec.topicResults.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.topicResults.WithLabelValues("failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.diagnostics.WithLabelValues("duplicate-id")))
	assert.Equal(t, float64(8), testutil.ToFloat64(rec.buildConcurrency))
}

func TestPrometheusRecorder_Histograms(t *testing.T) {
	reg := prom.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveTopicBuildDuration(10*time.Millisecond, true)
	rec.ObserveResolveDuration(50 * time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["db4sphinx_topic_build_duration_seconds"])
	assert.True(t, names["db4sphinx_assembly_resolve_duration_seconds"])
}

func TestNoopRecorder_IsSafe(t *testing.T) {
	var rec Recorder = NoopRecorder{}
	assert.NotPanics(t, func() {
		rec.ObserveTopicBuildDuration(time.Second, false)
		rec.ObserveResolveDuration(time.Second)
		rec.IncTopicResult(true)
		rec.IncDiagnostic("x")
		rec.SetBuildConcurrency(1)
	})
}
