package metrics

import (
	"context"

	"github.com/kilianp07/railsched/core/events"
	coremetrics "github.com/kilianp07/railsched/core/metrics"
	"github.com/kilianp07/railsched/infra/logger"
	"github.com/kilianp07/railsched/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and forwards run and stage
// events to sink. It stops when the context is canceled or the bus closes.
// The returned channel is closed once the collector has stopped.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus[events.Event], sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	log := logger.New("event-collector")
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				var err error
				switch e := ev.(type) {
				case events.RunEvent:
					err = sink.RecordRun(e)
				case events.StageEvent:
					if r, ok := sink.(coremetrics.StageRecorder); ok {
						err = r.RecordStage(e)
					}
				}
				if err != nil {
					log.Warnf("record event for run %s: %v", ev.EventRunID(), err)
				}
			}
		}
	}()
	return done
}
