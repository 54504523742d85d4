package optimizer

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railsched/core/model"
)

func newTestACO(t *testing.T, cfg ACOConfig) *ACO {
	t.Helper()
	a, err := NewACO(cfg, NewRand(11), nil)
	require.NoError(t, err)
	return a
}

func TestACOPermutationValidity(t *testing.T) {
	for n := 1; n <= 9; n++ {
		p := mustProblem(t, chain(n))
		out, err := newTestACO(t, ACOConfig{PopulationSize: 5, Iterations: 4}).Search(context.Background(), p, nil)
		require.NoError(t, err)
		requirePermutation(t, p, out.Order)
		assert.Len(t, out.History, 4)
		assert.False(t, math.IsInf(out.Score, 0))
	}
}

func TestACOHistoryIsMonotonic(t *testing.T) {
	p := mustProblem(t, chain(8))
	out, err := newTestACO(t, ACOConfig{PopulationSize: 6, Iterations: 15}).Search(context.Background(), p, nil)
	require.NoError(t, err)
	for i := 1; i < len(out.History); i++ {
		assert.LessOrEqual(t, out.History[i], out.History[i-1])
	}
	assert.Equal(t, out.History[len(out.History)-1], out.Score)
}

func TestACONoTrains(t *testing.T) {
	_, err := newTestACO(t, ACOConfig{}).Search(context.Background(), mustProblem(t, model.Snapshot{}), nil)
	assert.ErrorIs(t, err, ErrNoTrains)

	res := newTestACO(t, ACOConfig{}).Optimize(context.Background(), mustProblem(t, model.Snapshot{}))
	assert.False(t, res.Success)
	assert.Empty(t, res.Schedule)
}

func TestColonyScore(t *testing.T) {
	p := mustProblem(t, fourTrains())
	idx := func(ids ...string) []int {
		out, err := p.toIndices(ids)
		require.NoError(t, err)
		return out
	}
	// RAJ001 and EXP002 share SEC001, FRT003 and LOC004 share SEC002.
	assert.Equal(t, 2*AdjacencyPenalty, colonyScore(p, idx("RAJ001", "EXP002", "LOC004", "FRT003")))
	assert.Equal(t, InversionPenalty, colonyScore(p, idx("RAJ001", "LOC004", "EXP002", "FRT003")))
	// Fully reversed: six inversions among distinct priorities 1,2,4,5.
	assert.Equal(t, 6*InversionPenalty+2*AdjacencyPenalty, colonyScore(p, idx("FRT003", "LOC004", "EXP002", "RAJ001")))
}

func TestPheromoneFloor(t *testing.T) {
	m := newPheromones(5)
	for i := 0; i < 200; i++ {
		m.evaporate(0.9)
		assert.GreaterOrEqual(t, m.min(), PheromoneFloor)
	}
	m.deposit([]int{0, 1, 2}, 10)
	assert.InDelta(t, PheromoneFloor+0.1, m.at(0, 1), 1e-12)
	assert.InDelta(t, PheromoneFloor, m.at(1, 0), 1e-12)

	m.deposit([]int{3, 4}, 0)
	assert.InDelta(t, PheromoneFloor, m.at(3, 4), 1e-12)
}

func TestACODegenerateWeightsFallBackToUniform(t *testing.T) {
	// eta^beta underflows to zero for every pair with distinct priorities.
	a := newTestACO(t, ACOConfig{PopulationSize: 3, Iterations: 2, Beta: 5000})
	p := mustProblem(t, chain(5))
	out, err := a.Search(context.Background(), p, nil)
	require.NoError(t, err)
	requirePermutation(t, p, out.Order)
}

func TestACOSeedPheromone(t *testing.T) {
	p := mustProblem(t, fourTrains())
	seed := []string{"RAJ001", "LOC004", "EXP002", "FRT003"}
	out, err := newTestACO(t, ACOConfig{PopulationSize: 1, Iterations: 1, SeedPheromone: true}).Search(context.Background(), p, seed)
	require.NoError(t, err)
	assert.LessOrEqual(t, out.Score, InversionPenalty)

	_, err = newTestACO(t, ACOConfig{SeedPheromone: true}).Search(context.Background(), p, []string{"RAJ001"})
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestACOStandaloneResult(t *testing.T) {
	p := mustProblem(t, fourTrains())
	res := newTestACO(t, ACOConfig{PopulationSize: 4, Iterations: 5}).Optimize(context.Background(), p)
	require.True(t, res.Success)
	assert.Equal(t, MethodACO, res.Method)
	assert.Equal(t, 20, res.ConflictsResolved)
	requirePermutation(t, p, res.Order)
	for pos, id := range res.Order {
		assert.Equal(t, float64(pos)*2, res.Schedule[id][0].DelayAdded)
	}
}

func TestACOCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestACO(t, ACOConfig{}).Search(ctx, mustProblem(t, chain(4)), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestACOConfigValidation(t *testing.T) {
	_, err := NewACO(ACOConfig{EvaporationRate: 1.5}, nil, nil)
	assert.Error(t, err)
	_, err = NewACO(ACOConfig{PopulationSize: -1}, nil, nil)
	assert.Error(t, err)
}
