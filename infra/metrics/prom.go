package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/railsched/core/events"
	coremetrics "github.com/kilianp07/railsched/core/metrics"
	"github.com/kilianp07/railsched/core/optimizer"
)

// PromSink records run and stage events in Prometheus metrics. Per-run
// counters are maintained by the optimizer package itself; this sink adds
// the views derived from the event stream.
type PromSink struct {
	stageDuration *prometheus.HistogramVec
	stageEvents   *prometheus.CounterVec
	trains        prometheus.Gauge
	improvement   *prometheus.GaugeVec
}

// NewPromSink registers the sink metrics on the default Prometheus registerer.
// The Prometheus server should be started separately with StartPromServer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hybrid_stage_duration_seconds",
		Help:    "Wall time of each hybrid pipeline stage",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage", "action"})
	stageEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hybrid_stage_events_total",
		Help: "Hybrid stage events by stage and action",
	}, []string{"stage", "action"})
	trains := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "optimizer_last_run_trains",
		Help: "Number of trains in the last optimization run",
	})
	improvement := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "optimizer_fitness_improvement",
		Help: "Fitness gained between the first and last generation of the last run",
	}, []string{"method"})

	var err error
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if stageEvents, err = register(reg, stageEvents); err != nil {
		return nil, err
	}
	if trains, err = register(reg, trains); err != nil {
		return nil, err
	}
	if improvement, err = register(reg, improvement); err != nil {
		return nil, err
	}
	return &PromSink{stageDuration: duration, stageEvents: stageEvents, trains: trains, improvement: improvement}, nil
}

// register returns the collector already registered under the same
// descriptor when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRun updates the per-run gauges.
func (s *PromSink) RecordRun(ev events.RunEvent) error {
	s.trains.Set(float64(ev.Trains))
	if ev.Success {
		s.improvement.WithLabelValues(ev.Method).Set(optimizer.Improvement(ev.FitnessHistory))
	}
	return nil
}

// RecordStage counts stage events and observes finished stage durations.
func (s *PromSink) RecordStage(ev events.StageEvent) error {
	s.stageEvents.WithLabelValues(ev.Stage, ev.Action).Inc()
	if ev.Action == events.ActionCompleted || ev.Action == events.ActionFailed {
		s.stageDuration.WithLabelValues(ev.Stage, ev.Action).Observe(ev.Duration.Seconds())
	}
	return nil
}
