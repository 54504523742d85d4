package optimizer

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FitnessSummary describes the spread of one generation.
type FitnessSummary struct {
	Best   float64 `json:"best"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// SummarizeFitness returns the best, mean and standard deviation of scores.
// A single score has zero deviation.
func SummarizeFitness(scores []float64) FitnessSummary {
	if len(scores) == 0 {
		return FitnessSummary{}
	}
	s := FitnessSummary{
		Best: floats.Min(scores),
		Mean: stat.Mean(scores, nil),
	}
	if len(scores) > 1 {
		s.StdDev = stat.StdDev(scores, nil)
	}
	return s
}

// Improvement returns how much the last value of a best-so-far trajectory
// improved on the first one.
func Improvement(history []float64) float64 {
	if len(history) < 2 {
		return 0
	}
	return history[0] - history[len(history)-1]
}
