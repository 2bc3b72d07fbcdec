// Package metrics provides observability hooks for assembly resolution.
//
// Components receive a Recorder through dependency injection and default
// to NoopRecorder, so metrics impose zero overhead until a real
// implementation (Prometheus) is injected.
package metrics

import "time"

// Recorder defines the hooks recorded during one resolution run.
// Implementations must be safe for concurrent use; topic files build in
// parallel.
type Recorder interface {
	ObserveTopicBuildDuration(d time.Duration, success bool)
	ObserveResolveDuration(d time.Duration)
	IncTopicResult(success bool)
	IncDiagnostic(code string)
	SetBuildConcurrency(n int)
}

// NoopRecorder is the default Recorder; every method does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveTopicBuildDuration(time.Duration, bool) {}
func (NoopRecorder) ObserveResolveDuration(time.Duration)         {}
func (NoopRecorder) IncTopicResult(bool)                          {}
func (NoopRecorder) IncDiagnostic(string)                         {}
func (NoopRecorder) SetBuildConcurrency(int)                      {}
