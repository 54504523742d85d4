package model

import (
	"encoding/json"
	"time"
)

// SectionVisit is one timed entry of a train's schedule.
type SectionVisit struct {
	SectionID  string    `json:"section_id"`
	Entry      ClockTime `json:"entry_time"`
	Exit       ClockTime `json:"exit_time"`
	DelayAdded float64   `json:"delay_added"`
}

// Schedule maps a train id to its section visits ordered by entry time.
type Schedule map[string][]SectionVisit

// StageSummary describes one stage of a composed optimization.
type StageSummary struct {
	Method   string        `json:"method"`
	Success  bool          `json:"success"`
	Score    float64       `json:"score"`
	Duration time.Duration `json:"-"`
	Error    string        `json:"error,omitempty"`
}

// OptimizationResult is the single contract returned by every strategy.
// Order keeps the schedule's insertion order since Schedule is a map.
type OptimizationResult struct {
	RunID             string         `json:"run_id,omitempty"`
	Method            string         `json:"method"`
	Success           bool           `json:"success"`
	TotalDelay        float64        `json:"total_delay"`
	ComputationTime   time.Duration  `json:"-"`
	Throughput        int            `json:"throughput"`
	Order             []string       `json:"order,omitempty"`
	Schedule          Schedule       `json:"schedule"`
	ConflictsResolved int            `json:"conflicts_resolved"`
	FitnessHistory    []float64      `json:"fitness_history,omitempty"`
	Stages            []StageSummary `json:"stages,omitempty"`
	Error             string         `json:"error,omitempty"`
}

// NewResult returns an empty result tagged with method.
func NewResult(method string) OptimizationResult {
	return OptimizationResult{Method: method, Schedule: Schedule{}}
}

// Failed returns an unsuccessful result carrying err.
func Failed(method string, err error) OptimizationResult {
	r := NewResult(method)
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// TrustedSchedule returns the schedule only when the result succeeded.
func (r OptimizationResult) TrustedSchedule() (Schedule, bool) {
	if !r.Success {
		return nil, false
	}
	return r.Schedule, true
}

type resultJSON OptimizationResult

// MarshalJSON emits computation_time in seconds alongside the other fields.
func (r OptimizationResult) MarshalJSON() ([]byte, error) {
	type stageJSON struct {
		StageSummary
		Seconds float64 `json:"computation_time"`
	}
	stages := make([]stageJSON, len(r.Stages))
	for i, s := range r.Stages {
		stages[i] = stageJSON{StageSummary: s, Seconds: s.Duration.Seconds()}
	}
	sched := r.Schedule
	if !r.Success {
		sched = Schedule{}
	}
	out := struct {
		resultJSON
		Schedule Schedule    `json:"schedule"`
		Seconds  float64     `json:"computation_time"`
		Stages   []stageJSON `json:"stages,omitempty"`
	}{resultJSON: resultJSON(r), Schedule: sched, Seconds: r.ComputationTime.Seconds(), Stages: stages}
	return json.Marshal(out)
}

// UnmarshalJSON restores a result encoded by MarshalJSON.
func (r *OptimizationResult) UnmarshalJSON(b []byte) error {
	type stageJSON struct {
		StageSummary
		Seconds float64 `json:"computation_time"`
	}
	var in struct {
		resultJSON
		Seconds float64     `json:"computation_time"`
		Stages  []stageJSON `json:"stages,omitempty"`
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*r = OptimizationResult(in.resultJSON)
	r.ComputationTime = time.Duration(in.Seconds * float64(time.Second))
	r.Stages = nil
	for _, s := range in.Stages {
		st := s.StageSummary
		st.Duration = time.Duration(s.Seconds * float64(time.Second))
		r.Stages = append(r.Stages, st)
	}
	return nil
}
