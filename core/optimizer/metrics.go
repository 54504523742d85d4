package optimizer

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	bestFitness   *prometheus.GaugeVec
	stageOutcomes *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.HistogramVec, *prometheus.GaugeVec, *prometheus.CounterVec) {
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimizer_runs_total",
			Help: "Number of optimization runs",
		},
		[]string{"method", "success"},
	)
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "optimizer_run_duration_seconds",
			Help:    "Wall time of one optimization run",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	best := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "optimizer_best_fitness",
			Help: "Total delay or fitness reported by the last run",
		},
		[]string{"method"},
	)
	stages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimizer_stage_outcomes_total",
			Help: "Hybrid stage results by stage and outcome",
		},
		[]string{"stage", "success"},
	)
	return runs, dur, best, stages
}

func init() {
	runsTotal, runDuration, bestFitness, stageOutcomes = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers optimizer metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(runsTotal, runDuration, bestFitness, stageOutcomes)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	runsTotal, runDuration, bestFitness, stageOutcomes = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

func observeRun(method string, success bool, seconds, fitness float64, stages []stageOutcome) {
	runsTotal.WithLabelValues(method, strconv.FormatBool(success)).Inc()
	runDuration.WithLabelValues(method).Observe(seconds)
	if success {
		bestFitness.WithLabelValues(method).Set(fitness)
	}
	for _, s := range stages {
		stageOutcomes.WithLabelValues(s.method, strconv.FormatBool(s.success)).Inc()
	}
}

type stageOutcome struct {
	method  string
	success bool
}
