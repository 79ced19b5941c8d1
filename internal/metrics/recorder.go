// Package metrics defines the observability hooks for stage orchestration
// and their Prometheus implementation.
package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	// ResultSuccess: orchestration completed and the tool exited zero.
	ResultSuccess ResultLabel = "success"
	// ResultToolError: orchestration completed but the tool exited nonzero.
	ResultToolError ResultLabel = "tool_error"
	// ResultOrchestrationError: workspace, file, or launch failure.
	ResultOrchestrationError ResultLabel = "orchestration_error"
)

// Recorder defines observability hooks for stage metrics. Implementations
// must be safe for nil receivers when using the NoopRecorder (allowing
// optional injection).
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncToolExitNonzero(stage string)
	AddInFlight(delta int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncToolExitNonzero(string)                  {}
func (NoopRecorder) AddInFlight(int)                            {}
