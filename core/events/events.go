package events

import "time"

// Event is anything published on the optimization bus.
type Event interface {
	EventRunID() string
}

// Stage actions.
const (
	ActionStarted   = "started"
	ActionCompleted = "completed"
	ActionFailed    = "failed"
	ActionFallback  = "fallback"
)

// StageEvent is emitted by the hybrid pipeline around each stage.
type StageEvent struct {
	RunID    string
	Stage    string
	Action   string
	Score    float64
	Duration time.Duration
	Err      error
	// Fitness statistics of the stage's convergence trajectory, zero when the
	// stage does not track one.
	FitnessMean   float64
	FitnessStdDev float64
	Time          time.Time
}

func (e StageEvent) EventRunID() string { return e.RunID }

// RunEvent is emitted once per optimization call.
type RunEvent struct {
	RunID             string
	Method            string
	Success           bool
	TotalDelay        float64
	Duration          time.Duration
	Trains            int
	ConflictsResolved int
	FitnessHistory    []float64
	Err               string
	Time              time.Time
}

func (e RunEvent) EventRunID() string { return e.RunID }
