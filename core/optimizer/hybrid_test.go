package optimizer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railsched/core/events"
	"github.com/kilianp07/railsched/core/model"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) stages(action string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if se, ok := e.(events.StageEvent); ok && se.Action == action {
			out = append(out, se.Stage)
		}
	}
	return out
}

type failingSeeder struct{}

func (failingSeeder) Optimize(context.Context, *Problem) model.OptimizationResult {
	return model.Failed(MethodHeuristic, errors.New("forced failure"))
}

type panickingSeeder struct{}

func (panickingSeeder) Optimize(context.Context, *Problem) model.OptimizationResult {
	panic("boom")
}

type failingColony struct{ cfg ACOConfig }

func (f failingColony) Search(context.Context, *Problem, []string) (ACOOutcome, error) {
	return ACOOutcome{}, errors.New("colony down")
}
func (f failingColony) Config() ACOConfig { return f.cfg }

type failingEvolver struct{}

func (failingEvolver) Evolve(context.Context, *Problem, [][]string) (GAOutcome, error) {
	return GAOutcome{}, errors.New("evolver down")
}
func (failingEvolver) Config() GAConfig { return DefaultGAConfig() }

// seedSpy records the seeds handed to the genetic stage.
type seedSpy struct {
	Evolver
	seeds [][]string
}

func (s *seedSpy) Evolve(ctx context.Context, p *Problem, seeds [][]string) (GAOutcome, error) {
	s.seeds = seeds
	return s.Evolver.Evolve(ctx, p, seeds)
}

func smallConfig() Config {
	return Config{
		Seed: 42,
		ACO:  ACOConfig{PopulationSize: 4, Iterations: 5},
		GA:   GAConfig{PopulationSize: 6, Generations: 8},
	}
}

func newTestHybrid(t *testing.T, opts ...HybridOption) *Hybrid {
	t.Helper()
	h, err := NewHybrid(smallConfig(), opts...)
	require.NoError(t, err)
	return h
}

func TestHybridFullPipeline(t *testing.T) {
	rec := &recorder{}
	p := mustProblem(t, fourTrains())
	res := newTestHybrid(t, WithPublisher(rec)).Optimize(WithRunID(context.Background(), "run-1"), p)

	require.True(t, res.Success)
	assert.Equal(t, MethodHybrid, res.Method)
	assert.Equal(t, "run-1", res.RunID)
	requirePermutation(t, p, res.Order)
	assert.Len(t, res.Schedule, 4)
	assert.Len(t, res.FitnessHistory, 8)
	// 4 heuristic + 4*5 colony + 6*8 genetic.
	assert.Equal(t, 4+20+48, res.ConflictsResolved)
	require.Len(t, res.Stages, 3)
	for _, s := range res.Stages {
		assert.True(t, s.Success, s.Method)
	}
	assert.Equal(t, []string{StrategyHeuristic, StrategyACO, StrategyGA}, rec.stages(events.ActionStarted))
	assert.Equal(t, []string{StrategyHeuristic, StrategyACO, StrategyGA}, rec.stages(events.ActionCompleted))
	for _, e := range rec.events {
		assert.Equal(t, "run-1", e.EventRunID())
	}
}

func TestHybridSeedsGAWithDistinctOrders(t *testing.T) {
	ga, err := NewGA(smallConfig().GA, NewRand(1), nil)
	require.NoError(t, err)
	spy := &seedSpy{Evolver: ga}
	p := mustProblem(t, fourTrains())
	res := newTestHybrid(t, WithEvolver(spy)).Optimize(context.Background(), p)
	require.True(t, res.Success)
	require.NotEmpty(t, spy.seeds)
	for _, s := range spy.seeds {
		requirePermutation(t, p, s)
	}
	if len(spy.seeds) == 2 {
		assert.NotEqual(t, spy.seeds[0], spy.seeds[1])
	}
}

func TestHybridFallbackWhenHeuristicFails(t *testing.T) {
	rec := &recorder{}
	p := mustProblem(t, fourTrains())
	res := newTestHybrid(t, WithSeeder(failingSeeder{}), WithPublisher(rec)).Optimize(context.Background(), p)

	require.True(t, res.Success)
	assert.Equal(t, MethodHybrid, res.Method)
	requirePermutation(t, p, res.Order)
	assert.Equal(t, 20+48, res.ConflictsResolved)
	assert.False(t, res.Stages[0].Success)
	assert.Contains(t, res.Stages[0].Error, "forced failure")
	assert.Equal(t, []string{StrategyHeuristic}, rec.stages(events.ActionFailed))
}

func TestHybridRecoversFromPanickingStage(t *testing.T) {
	p := mustProblem(t, fourTrains())
	res := newTestHybrid(t, WithSeeder(panickingSeeder{})).Optimize(context.Background(), p)
	require.True(t, res.Success)
	assert.Contains(t, res.Stages[0].Error, "panic: boom")
}

func TestHybridFallsBackToColony(t *testing.T) {
	rec := &recorder{}
	p := mustProblem(t, fourTrains())
	res := newTestHybrid(t, WithEvolver(failingEvolver{}), WithPublisher(rec)).Optimize(context.Background(), p)

	require.True(t, res.Success)
	assert.Equal(t, MethodHybridACOFallback, res.Method)
	requirePermutation(t, p, res.Order)
	for pos, id := range res.Order {
		assert.Equal(t, float64(pos)*2, res.Schedule[id][0].DelayAdded)
	}
	assert.Equal(t, res.Stages[1].Score, res.TotalDelay)
	assert.Equal(t, []string{StrategyACO}, rec.stages(events.ActionFallback))
}

func TestHybridFallsBackToHeuristic(t *testing.T) {
	p := mustProblem(t, fourTrains())
	res := newTestHybrid(t,
		WithColony(failingColony{cfg: DefaultACOConfig()}),
		WithEvolver(failingEvolver{}),
	).Optimize(context.Background(), p)

	require.True(t, res.Success)
	assert.Equal(t, MethodHybridHeuristic, res.Method)
	assert.Len(t, res.Schedule, 4)
	assert.Equal(t, 4, res.ConflictsResolved)
}

func TestHybridEveryStageFails(t *testing.T) {
	p := mustProblem(t, fourTrains())
	res := newTestHybrid(t,
		WithSeeder(failingSeeder{}),
		WithColony(failingColony{cfg: DefaultACOConfig()}),
		WithEvolver(failingEvolver{}),
	).Optimize(context.Background(), p)

	assert.False(t, res.Success)
	assert.Equal(t, MethodHybrid, res.Method)
	assert.Empty(t, res.Schedule)
	assert.Contains(t, res.Error, "forced failure")
	assert.Contains(t, res.Error, "evolver down")
	_, ok := res.TrustedSchedule()
	assert.False(t, ok)
}

func TestHybridEmptyInputKeepsHeuristicResult(t *testing.T) {
	res := newTestHybrid(t).Optimize(context.Background(), mustProblem(t, model.Snapshot{}))
	require.True(t, res.Success)
	assert.Equal(t, MethodHybridHeuristic, res.Method)
	assert.Equal(t, 0, res.Throughput)
	assert.False(t, res.Stages[1].Success)
	assert.False(t, res.Stages[2].Success)
}

func TestHybridCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := newTestHybrid(t).Optimize(ctx, mustProblem(t, fourTrains()))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, context.Canceled.Error())
}
