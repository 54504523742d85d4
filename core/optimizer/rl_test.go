package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railsched/core/model"
)

func newTestRL(t *testing.T, cfg RLConfig) *RL {
	t.Helper()
	r, err := NewRL(cfg, NewRand(17), nil)
	require.NoError(t, err)
	return r
}

func TestRLPermutationValidity(t *testing.T) {
	for n := 1; n <= 12; n++ {
		p := mustProblem(t, chain(n))
		out, err := newTestRL(t, RLConfig{Episodes: 5}).Train(context.Background(), p)
		require.NoError(t, err)
		requirePermutation(t, p, out.Order)
		assert.Len(t, out.History, 5)
		assert.Equal(t, colonyScore(p, mustIndices(t, p, out.Order)), out.Score)
	}
}

func TestRLFindsCheapestOrdering(t *testing.T) {
	p := mustProblem(t, fourTrains())
	out, err := newTestRL(t, RLConfig{Episodes: 400}).Train(context.Background(), p)
	require.NoError(t, err)
	// Only RAJ001, LOC004, EXP002, FRT003 avoids every shared-section
	// neighbour at the price of a single inversion.
	assert.Equal(t, InversionPenalty, out.Score)
	assert.Equal(t, []string{"RAJ001", "LOC004", "EXP002", "FRT003"}, out.Order)
	for i := 1; i < len(out.History); i++ {
		assert.LessOrEqual(t, out.History[i], out.History[i-1])
	}
	assert.Positive(t, out.States)
}

func TestRLStepCostsSumToColonyScore(t *testing.T) {
	p := mustProblem(t, fourTrains())
	order := mustIndices(t, p, []string{"LOC004", "RAJ001", "FRT003", "EXP002"})
	var sum float64
	for i := range order {
		sum += stepCost(p, order[:i], order[i])
	}
	assert.Equal(t, colonyScore(p, order), sum)
}

func TestRLOptimize(t *testing.T) {
	p := mustProblem(t, fourTrains())
	res := newTestRL(t, RLConfig{Episodes: 50}).Optimize(context.Background(), p)
	require.True(t, res.Success)
	assert.Equal(t, MethodRL, res.Method)
	assert.Equal(t, 4, res.Throughput)
	assert.Len(t, res.Schedule, 4)
	assert.Len(t, res.FitnessHistory, 50)
	last := res.Order[len(res.Order)-1]
	assert.Equal(t, 3.0, res.Schedule[last][0].DelayAdded)

	res = newTestRL(t, RLConfig{}).Optimize(context.Background(), mustProblem(t, model.Snapshot{}))
	assert.False(t, res.Success)
}

func TestRLCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestRL(t, RLConfig{}).Train(ctx, mustProblem(t, chain(3)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRLConfigValidate(t *testing.T) {
	_, err := NewRL(RLConfig{LearningRate: 2}, nil, nil)
	assert.Error(t, err)
	_, err = NewRL(RLConfig{Episodes: -1}, nil, nil)
	assert.Error(t, err)

	cfg, err := Overlay(DefaultConfig(), map[string]any{"rl": map[string]any{"epsilon": 0, "episodes": 7}})
	require.NoError(t, err)
	assert.Zero(t, cfg.RL.Epsilon)
	assert.Equal(t, 7, cfg.RL.Episodes)
}

func mustIndices(t *testing.T, p *Problem, ids []string) []int {
	t.Helper()
	idx, err := p.toIndices(ids)
	require.NoError(t, err)
	return idx
}
