package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/railsched/core/events"
	"github.com/kilianp07/railsched/core/factory"
	"github.com/kilianp07/railsched/core/logger"
	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/priority"
)

// Request describes one optimization call.
type Request struct {
	Snapshot model.Snapshot
	// Method selects the strategy; empty uses the configured default.
	Method string
	// Overrides are decoded on top of the configured parameters, e.g.
	// {"ga": {"generations": 10}}.
	Overrides map[string]any
}

// Runner is the entry point used by the service layer. It indexes the
// snapshot, applies the timeout, tags the result with a run id and records
// metrics. Runner is safe for concurrent use; every call owns its data.
type Runner struct {
	base   Config
	engine *priority.Engine
	reg    *factory.Registry[Optimizer]
	pub    Publisher
	log    logger.Logger
}

// NewRunner validates base and prepares the strategy registry. A nil engine
// uses the default priority table.
func NewRunner(base Config, eng *priority.Engine, deps Deps) (*Runner, error) {
	base.SetDefaults()
	if err := base.Validate(); err != nil {
		return nil, err
	}
	if eng == nil {
		eng = priority.NewDefaultEngine()
	}
	return &Runner{
		base:   base,
		engine: eng,
		reg:    NewRegistry(base, deps),
		pub:    deps.Publisher,
		log:    logger.OrNop(deps.Logger),
	}, nil
}

// Config returns the base configuration.
func (r *Runner) Config() Config { return r.base }

// Engine returns the priority engine used to score trains.
func (r *Runner) Engine() *priority.Engine { return r.engine }

// Methods lists the strategy names the runner accepts.
func (r *Runner) Methods() []string { return r.reg.Names() }

// Run optimizes snap with the configured default method.
func (r *Runner) Run(ctx context.Context, snap model.Snapshot) (model.OptimizationResult, error) {
	return r.RunRequest(ctx, Request{Snapshot: snap})
}

// RunRequest optimizes req. Invalid requests return an error together with a
// failed result; algorithmic failures only show in the result.
func (r *Runner) RunRequest(ctx context.Context, req Request) (model.OptimizationResult, error) {
	start := time.Now()
	id := uuid.NewString()

	cfg, err := Overlay(r.base, req.Overrides)
	if err != nil {
		return r.reject(id, req.Method, err)
	}
	method := req.Method
	if method == "" {
		method = cfg.Method
	}
	opt, err := r.reg.Create(factory.ModuleConfig{Type: method, Conf: req.Overrides})
	if err != nil {
		return r.reject(id, method, fmt.Errorf("optimizer %q: %w", method, err))
	}
	p, err := NewProblem(req.Snapshot, r.engine)
	if err != nil {
		return r.reject(id, method, err)
	}
	if n := p.Orphans(); n > 0 {
		r.log.Warnf("run %s: ignored %d section usages of unknown trains", id, n)
	}

	ctx = WithRunID(ctx, id)
	if d := cfg.Timeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	r.log.Infow("optimization started", map[string]any{
		"run_id": id,
		"method": method,
		"trains": p.Len(),
	})
	res := opt.Optimize(ctx, p)
	res.RunID = id
	elapsed := time.Since(start)

	outcomes := make([]stageOutcome, len(res.Stages))
	for i, s := range res.Stages {
		outcomes[i] = stageOutcome{method: s.Method, success: s.Success}
	}
	observeRun(method, res.Success, elapsed.Seconds(), res.TotalDelay, outcomes)
	r.publish(res, p.Len(), elapsed)
	r.log.Infow("optimization finished", map[string]any{
		"run_id":      id,
		"method":      res.Method,
		"success":     res.Success,
		"total_delay": res.TotalDelay,
		"duration_ms": elapsed.Milliseconds(),
	})
	return res, nil
}

func (r *Runner) reject(id, method string, err error) (model.OptimizationResult, error) {
	r.log.Errorf("run %s rejected: %v", id, err)
	res := model.Failed(method, err)
	res.RunID = id
	return res, err
}

func (r *Runner) publish(res model.OptimizationResult, trains int, d time.Duration) {
	if r.pub == nil {
		return
	}
	r.pub.Publish(events.RunEvent{
		RunID:             res.RunID,
		Method:            res.Method,
		Success:           res.Success,
		TotalDelay:        res.TotalDelay,
		Duration:          d,
		Trains:            trains,
		ConflictsResolved: res.ConflictsResolved,
		FitnessHistory:    res.FitnessHistory,
		Err:               res.Error,
		Time:              time.Now(),
	})
}
