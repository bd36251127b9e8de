// Package metrics records build outcomes for watch mode's Prometheus
// endpoint. One-shot builds use NoopRecorder so the pipeline never needs a
// nil check.
package metrics

import "time"

// Recorder receives build pipeline measurements.
type Recorder interface {
	// RecordBuild counts a finished build by status and observes its duration.
	RecordBuild(status string, d time.Duration)
	// RecordStage observes one stage's duration.
	RecordStage(stage string, d time.Duration)
	// SetLastSuccess marks the wall-clock time of the latest good build.
	SetLastSuccess(t time.Time)
}

// NoopRecorder discards all measurements.
type NoopRecorder struct{}

func (NoopRecorder) RecordBuild(string, time.Duration) {}
func (NoopRecorder) RecordStage(string, time.Duration) {}
func (NoopRecorder) SetLastSuccess(time.Time)          {}
