package metrics

import "github.com/kilianp07/railsched/core/events"

// MetricsSink records finished optimization runs.
type MetricsSink interface {
	RecordRun(ev events.RunEvent) error
}

// StageRecorder is implemented by sinks able to record hybrid stage events.
type StageRecorder interface {
	RecordStage(ev events.StageEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(events.RunEvent) error     { return nil }
func (NopSink) RecordStage(events.StageEvent) error { return nil }
