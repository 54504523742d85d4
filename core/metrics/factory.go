package metrics

import (
	"errors"
	"fmt"

	"github.com/kilianp07/railsched/core/factory"
)

var sinkRegistry = factory.NewRegistry[MetricsSink]()

// RegisterMetricsSink adds a metrics sink factory identified by name.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinkRegistry.Register(name, f)
}

// SinkTypes lists the registered sink types.
func SinkTypes() []string { return sinkRegistry.Names() }

// NewMetricsSink builds the sinks run and stage events are recorded to.
// "nop" entries are skipped, and a sink that fails to build closes the ones
// already created.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	var sinks []MetricsSink
	for i, c := range cfgs {
		if c.Type == "nop" {
			continue
		}
		s, err := sinkRegistry.Create(c)
		if err != nil {
			closeAll(sinks)
			return nil, fmt.Errorf("sink %d (%s): %w", i, c.Type, err)
		}
		sinks = append(sinks, s)
	}
	switch len(sinks) {
	case 0:
		return NopSink{}, nil
	case 1:
		return sinks[0], nil
	}
	return NewMultiSink(sinks...), nil
}

// Validate checks the sink list: every entry needs a type, and the
// prometheus collectors can only be registered once per process.
func (c Config) Validate() error {
	var errs []error
	prom := 0
	for i, s := range c.Sinks {
		switch s.Type {
		case "":
			errs = append(errs, fmt.Errorf("sink %d: missing type", i))
		case "prometheus":
			prom++
		}
	}
	if prom > 1 {
		errs = append(errs, errors.New("prometheus sink configured more than once"))
	}
	return errors.Join(errs...)
}

func closeAll(sinks []MetricsSink) {
	for _, s := range sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
