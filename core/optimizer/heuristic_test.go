package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railsched/core/model"
)

func newTestHeuristic(t *testing.T) *Heuristic {
	t.Helper()
	h, err := NewHeuristic(HeuristicConfig{}, NewRand(7), nil)
	require.NoError(t, err)
	return h
}

func TestHeuristicFourTrains(t *testing.T) {
	p := mustProblem(t, fourTrains())
	res := newTestHeuristic(t).Optimize(context.Background(), p)

	require.True(t, res.Success)
	assert.Equal(t, MethodHeuristic, res.Method)
	assert.Equal(t, 4, res.ConflictsResolved)
	assert.Equal(t, 4, res.Throughput)
	assert.Len(t, res.Schedule, 4)
	for _, id := range []string{"RAJ001", "EXP002", "FRT003", "LOC004"} {
		require.Contains(t, res.Schedule, id)
		require.Len(t, res.Schedule[id], 1)
	}
	assert.Equal(t, []string{"RAJ001", "EXP002", "LOC004", "FRT003"}, res.Order)
}

func TestHeuristicDelayTiers(t *testing.T) {
	p := mustProblem(t, fourTrains())
	for i := 0; i < 50; i++ {
		res := newTestHeuristic(t).Optimize(context.Background(), p)
		require.True(t, res.Success)
		raj := res.Schedule["RAJ001"][0].DelayAdded
		loc := res.Schedule["LOC004"][0].DelayAdded
		frt := res.Schedule["FRT003"][0].DelayAdded
		assert.GreaterOrEqual(t, raj, 0.0)
		assert.LessOrEqual(t, raj, 5.0)
		assert.GreaterOrEqual(t, loc, 2.0)
		assert.LessOrEqual(t, loc, 10.0)
		assert.GreaterOrEqual(t, frt, 5.0)
		assert.LessOrEqual(t, frt, 20.0)

		var extra float64
		for _, v := range res.Schedule {
			extra += v[0].DelayAdded
		}
		// FRT003 carries 15 minutes of base delay.
		assert.InDelta(t, 15+extra, res.TotalDelay, 1e-9)
	}
}

func TestHeuristicEmptyInput(t *testing.T) {
	p := mustProblem(t, model.Snapshot{})
	res := newTestHeuristic(t).Optimize(context.Background(), p)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.Throughput)
	assert.Empty(t, res.Schedule)
	assert.Zero(t, res.TotalDelay)
}

func TestHeuristicDefaultPriority(t *testing.T) {
	snap := model.Snapshot{Trains: []model.Train{
		{ID: "A"},
		{ID: "B", Priority: 6},
		{ID: "C", Priority: 1},
	}}
	res := newTestHeuristic(t).Optimize(context.Background(), mustProblem(t, snap))
	require.True(t, res.Success)
	assert.Equal(t, []string{"C", "A", "B"}, res.Order)
}

func TestHeuristicCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := newTestHeuristic(t).Optimize(ctx, mustProblem(t, fourTrains()))
	assert.False(t, res.Success)
	assert.Empty(t, res.Schedule)
	assert.Contains(t, res.Error, context.Canceled.Error())
}

func TestHeuristicConfigValidation(t *testing.T) {
	_, err := NewHeuristic(HeuristicConfig{Tiers: []DelayTier{{Min: 5, Max: 1}}}, nil, nil)
	assert.Error(t, err)
}
