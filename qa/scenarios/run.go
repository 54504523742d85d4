package scenarios

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/kilianp07/railsched/core/events"
	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/optimizer"
	"github.com/kilianp07/railsched/core/realtime"
)

// Recorder collects published events.
type Recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *Recorder) Publish(e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of what was published so far.
func (r *Recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

// Outcome is what one scenario produced.
type Outcome struct {
	Result model.OptimizationResult
	Events []events.Event
	Err    error
}

// Run executes sc through a fresh Runner. Disruption scenarios go through
// the real-time reoptimizer.
func Run(ctx context.Context, sc *Scenario) Outcome {
	rec := &Recorder{}
	runner, err := optimizer.NewRunner(optimizer.Config{Seed: sc.Seed}, nil, optimizer.Deps{Publisher: rec})
	if err != nil {
		return Outcome{Err: err}
	}
	var res model.OptimizationResult
	if sc.Disruption != nil {
		var out realtime.Outcome
		out, err = realtime.NewReoptimizer(runner, nil).Handle(ctx, sc.Data(), sc.Disruption.ToModel(sc.Method, sc.Overrides))
		res = out.Result
	} else {
		res, err = runner.RunRequest(ctx, optimizer.Request{
			Snapshot:  sc.Data(),
			Method:    sc.Method,
			Overrides: sc.Overrides,
		})
	}
	return Outcome{Result: res, Events: rec.Events(), Err: err}
}

// Check compares out against the expectations and returns every mismatch.
func Check(sc *Scenario, out Outcome) []string {
	exp := sc.Expected
	res := out.Result
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	if res.Success != exp.Success {
		fail("success = %v, want %v (error %q)", res.Success, exp.Success, res.Error)
	}
	if exp.Error != "" && !strings.Contains(res.Error, exp.Error) {
		fail("error %q does not mention %q", res.Error, exp.Error)
	}
	if exp.Method != "" && res.Method != exp.Method {
		fail("method = %q, want %q", res.Method, exp.Method)
	}
	if res.Throughput != exp.Throughput {
		fail("throughput = %d, want %d", res.Throughput, exp.Throughput)
	}
	if exp.First != "" && (len(res.Order) == 0 || res.Order[0] != exp.First) {
		fail("first train = %v, want %s", res.Order, exp.First)
	}
	for _, pair := range exp.Before {
		a, b := slices.Index(res.Order, pair[0]), slices.Index(res.Order, pair[1])
		if a < 0 || b < 0 || a > b {
			fail("%s should precede %s in %v", pair[0], pair[1], res.Order)
		}
	}
	if exp.MaxTotalDelay > 0 && res.TotalDelay > exp.MaxTotalDelay {
		fail("total delay %g exceeds %g", res.TotalDelay, exp.MaxTotalDelay)
	}
	if res.Success {
		if got, want := len(res.Schedule), len(sc.Data().Trains); got != want {
			fail("schedule covers %d trains, want %d", got, want)
		}
	}
	return problems
}
