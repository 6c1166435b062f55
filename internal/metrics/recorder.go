// Package metrics records request, render and export measurements. Components
// take a Recorder and default to NoopRecorder; the dev server wires a
// PrometheusRecorder and exposes it over HTTP.
package metrics

import "time"

// Recorder receives measurements. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// ObserveRequest records one HTTP request by status code.
	ObserveRequest(status int, d time.Duration)
	// ObserveRender records one runtime load by outcome kind.
	ObserveRender(outcome string, d time.Duration)
	// IncURLMapRebuild counts URL map rebuilds.
	IncURLMapRebuild(ok bool)
	// IncExportedPage counts pages visited by an export by outcome kind.
	IncExportedPage(outcome string)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) ObserveRequest(int, time.Duration)   {}
func (NoopRecorder) ObserveRender(string, time.Duration) {}
func (NoopRecorder) IncURLMapRebuild(bool)               {}
func (NoopRecorder) IncExportedPage(string)              {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
