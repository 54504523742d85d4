package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/kilianp07/railsched/core/events"
	"github.com/kilianp07/railsched/core/logger"
	"github.com/kilianp07/railsched/core/model"
)

// Publisher receives pipeline events. *eventbus.Bus[events.Event] satisfies it.
type Publisher interface {
	Publish(events.Event)
}

// Seeder produces the first-stage result whose ordering seeds later stages.
type Seeder interface {
	Optimize(ctx context.Context, p *Problem) model.OptimizationResult
}

// Colony searches orderings starting from an optional seed.
type Colony interface {
	Search(ctx context.Context, p *Problem, seed []string) (ACOOutcome, error)
	Config() ACOConfig
}

// Evolver evolves orderings from a seeded population.
type Evolver interface {
	Evolve(ctx context.Context, p *Problem, seeds [][]string) (GAOutcome, error)
	Config() GAConfig
}

// HybridOption customizes a Hybrid.
type HybridOption func(*Hybrid)

// WithSeeder replaces the heuristic stage.
func WithSeeder(s Seeder) HybridOption { return func(h *Hybrid) { h.seeder = s } }

// WithColony replaces the ant colony stage.
func WithColony(c Colony) HybridOption { return func(h *Hybrid) { h.colony = c } }

// WithEvolver replaces the genetic stage.
func WithEvolver(e Evolver) HybridOption { return func(h *Hybrid) { h.evolver = e } }

// WithPublisher sets the destination of stage events.
func WithPublisher(p Publisher) HybridOption { return func(h *Hybrid) { h.pub = p } }

// WithLogger sets the pipeline logger.
func WithLogger(l logger.Logger) HybridOption { return func(h *Hybrid) { h.log = logger.OrNop(l) } }

// Hybrid chains heuristic, ant colony and genetic stages. Each stage failure
// is absorbed and routed through the fallback chain; the pipeline only fails
// when every stage did.
type Hybrid struct {
	seeder  Seeder
	colony  Colony
	evolver Evolver
	pub     Publisher
	log     logger.Logger
}

// NewHybrid builds the default stages from cfg, sharing one generator seeded
// with cfg.Seed, then applies opts.
func NewHybrid(cfg Config, opts ...HybridOption) (*Hybrid, error) {
	cfg.SetDefaults()
	h := &Hybrid{log: logger.Nop{}}
	for _, o := range opts {
		o(h)
	}
	rng := NewRand(cfg.Seed)
	if h.seeder == nil {
		s, err := NewHeuristic(cfg.Heuristic, rng, h.log)
		if err != nil {
			return nil, err
		}
		h.seeder = s
	}
	if h.colony == nil {
		c, err := NewACO(cfg.ACO, rng, h.log)
		if err != nil {
			return nil, err
		}
		h.colony = c
	}
	if h.evolver == nil {
		e, err := NewGA(cfg.GA, rng, h.log)
		if err != nil {
			return nil, err
		}
		h.evolver = e
	}
	return h, nil
}

func (h *Hybrid) Name() string { return StrategyHybrid }

// Optimize implements Optimizer.
func (h *Hybrid) Optimize(ctx context.Context, p *Problem) model.OptimizationResult {
	start := time.Now()
	run := RunID(ctx)
	var (
		stages    []model.StageSummary
		conflicts int
		stageErrs []error
	)

	// Heuristic.
	h.emit(run, StrategyHeuristic, events.ActionStarted, 0, 0, nil, FitnessSummary{})
	var hres model.OptimizationResult
	err := guard(StrategyHeuristic, func() error {
		hres = h.seeder.Optimize(ctx, p)
		if !hres.Success {
			return stageError(hres)
		}
		return nil
	})
	var heurOrder []string
	heurOK := err == nil
	if heurOK {
		heurOrder = p.CompleteOrder(hres.Order)
		conflicts += hres.ConflictsResolved
		h.log.Infof("heuristic stage: %d trains, delay %.1f", len(heurOrder), hres.TotalDelay)
	} else {
		stageErrs = append(stageErrs, err)
		h.log.Warnf("heuristic stage failed, colony starts unseeded: %v", err)
	}
	stages = append(stages, summary(MethodHeuristic, hres.TotalDelay, hres.ComputationTime, err))
	h.emitDone(run, StrategyHeuristic, hres.TotalDelay, hres.ComputationTime, err, FitnessSummary{})

	// Ant colony.
	h.emit(run, StrategyACO, events.ActionStarted, 0, 0, nil, FitnessSummary{})
	acoStart := time.Now()
	var aco ACOOutcome
	err = guard(StrategyACO, func() error {
		var e error
		aco, e = h.colony.Search(ctx, p, heurOrder)
		return e
	})
	acoDur := time.Since(acoStart)
	acoOK := err == nil
	carryOrder, carryScore := heurOrder, hres.TotalDelay
	if acoOK {
		carryOrder, carryScore = aco.Order, aco.Score
		c := h.colony.Config()
		conflicts += c.PopulationSize * c.Iterations
		h.log.Infof("aco stage: best score %.1f after %d iterations", aco.Score, aco.Iterations)
	} else {
		stageErrs = append(stageErrs, err)
		h.log.Warnf("aco stage failed, carrying heuristic order forward: %v", err)
	}
	stages = append(stages, summary(MethodACO, aco.Score, acoDur, err))
	h.emitDone(run, StrategyACO, aco.Score, acoDur, err, SummarizeFitness(aco.History))

	// Genetic.
	var seeds [][]string
	if acoOK {
		seeds = append(seeds, aco.Order)
	}
	if heurOK && (!acoOK || !slices.Equal(heurOrder, aco.Order)) {
		seeds = append(seeds, heurOrder)
	}
	h.emit(run, StrategyGA, events.ActionStarted, 0, 0, nil, FitnessSummary{})
	gaStart := time.Now()
	var ga GAOutcome
	var res model.OptimizationResult
	err = guard(StrategyGA, func() error {
		var e error
		if ga, e = h.evolver.Evolve(ctx, p, seeds); e != nil {
			return e
		}
		res, e = ScheduleFromOrder(p, MethodHybrid, ga.Order, gaDelayFactor)
		return e
	})
	gaDur := time.Since(gaStart)
	stages = append(stages, summary(MethodGA, ga.Fitness, gaDur, err))
	h.emitDone(run, StrategyGA, ga.Fitness, gaDur, err, ga.Final)

	if err == nil {
		conflicts += h.evolver.Config().PopulationSize * len(ga.History)
		res.TotalDelay = ga.Fitness
		res.FitnessHistory = ga.History
		h.log.Infof("ga stage: best fitness %.1f over %d generations", ga.Fitness, len(ga.History))
	} else {
		stageErrs = append(stageErrs, err)
		res = h.fallback(run, p, acoOK, carryOrder, carryScore, heurOK, hres, err)
		if !res.Success {
			res = model.Failed(MethodHybrid, errors.Join(stageErrs...))
		}
	}
	res.ConflictsResolved = conflicts
	res.Stages = stages
	res.RunID = run
	res.ComputationTime = time.Since(start)
	return res
}

// fallback returns the best output still available once the genetic stage
// failed: the colony's ordering if it scored finitely, else the heuristic
// result.
func (h *Hybrid) fallback(run string, p *Problem, acoOK bool, order []string, score float64, heurOK bool, hres model.OptimizationResult, cause error) model.OptimizationResult {
	if acoOK && !math.IsInf(score, 0) && !math.IsNaN(score) {
		res, err := ScheduleFromOrder(p, MethodHybridACOFallback, order, acoDelayFactor)
		if err == nil {
			res.TotalDelay = score
			h.log.Warnf("ga stage failed, using colony ordering: %v", cause)
			h.emit(run, StrategyACO, events.ActionFallback, score, 0, cause, FitnessSummary{})
			return res
		}
	}
	if heurOK {
		res := hres
		res.Method = MethodHybridHeuristic
		h.log.Warnf("ga stage failed, using heuristic result: %v", cause)
		h.emit(run, StrategyHeuristic, events.ActionFallback, res.TotalDelay, 0, cause, FitnessSummary{})
		return res
	}
	h.log.Errorf("every hybrid stage failed: %v", cause)
	return model.Failed(MethodHybrid, cause)
}

func (h *Hybrid) emitDone(run, stage string, score float64, d time.Duration, err error, fs FitnessSummary) {
	action := events.ActionCompleted
	if err != nil {
		action = events.ActionFailed
	}
	h.emit(run, stage, action, score, d, err, fs)
}

func (h *Hybrid) emit(run, stage, action string, score float64, d time.Duration, err error, fs FitnessSummary) {
	if h.pub == nil {
		return
	}
	h.pub.Publish(events.StageEvent{
		RunID:         run,
		Stage:         stage,
		Action:        action,
		Score:         score,
		Duration:      d,
		Err:           err,
		FitnessMean:   fs.Mean,
		FitnessStdDev: fs.StdDev,
		Time:          time.Now(),
	})
}

func summary(method string, score float64, d time.Duration, err error) model.StageSummary {
	s := model.StageSummary{Method: method, Success: err == nil, Score: score, Duration: d}
	if err != nil {
		s.Score = 0
		s.Error = err.Error()
	}
	return s
}

func stageError(r model.OptimizationResult) error {
	if r.Error != "" {
		return fmt.Errorf("%s: %s", r.Method, r.Error)
	}
	return fmt.Errorf("%s: unsuccessful", r.Method)
}
