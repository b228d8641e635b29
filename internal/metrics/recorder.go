// Package metrics records build observations. The default recorder does
// nothing; the Prometheus recorder backs the development server's /metrics
// endpoint.
package metrics

import "time"

// Build outcomes.
const (
	OutcomePublished = "published"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Recorder receives build observations.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome string)
	SetPosts(state string, n int)
	AddFileChanges(change string, n int)
}

// NoopRecorder discards every observation.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncBuildOutcome(string)                     {}
func (NoopRecorder) SetPosts(string, int)                       {}
func (NoopRecorder) AddFileChanges(string, int)                 {}
