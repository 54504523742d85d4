package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railsched/core/model"
)

func TestNewProblemRejectsDuplicates(t *testing.T) {
	snap := fourTrains()
	snap.Trains = append(snap.Trains, model.Train{ID: "RAJ001"})
	_, err := NewProblem(snap, nil)
	require.ErrorIs(t, err, ErrDuplicateTrain)
}

func TestNewProblemCountsOrphans(t *testing.T) {
	snap := fourTrains()
	snap.Usages = append(snap.Usages, usage("GHOST", "SEC001", "09:00", "09:10"))
	p := mustProblem(t, snap)
	assert.Equal(t, 1, p.Orphans())
	assert.Equal(t, 4, p.Len())
}

func TestNewProblemDoesNotMutateInput(t *testing.T) {
	snap := fourTrains()
	snap.Usages[0], snap.Usages[1] = snap.Usages[1], snap.Usages[0]
	before := snap.Clone()
	p := mustProblem(t, snap)
	_, err := ScheduleFromOrder(p, MethodGA, p.IDs(), 1)
	require.NoError(t, err)
	assert.Equal(t, before, snap)
}

func TestProblemSharedSections(t *testing.T) {
	p := mustProblem(t, fourTrains())
	assert.True(t, p.shareSection(0, 1))
	assert.False(t, p.shareSection(0, 2))
	assert.True(t, p.shareSection(2, 3))
}

func TestValidatePermutation(t *testing.T) {
	p := mustProblem(t, fourTrains())
	assert.NoError(t, p.ValidatePermutation([]string{"LOC004", "RAJ001", "FRT003", "EXP002"}))
	assert.ErrorIs(t, p.ValidatePermutation([]string{"RAJ001", "EXP002", "FRT003"}), ErrInvalidSeed)
	assert.ErrorIs(t, p.ValidatePermutation([]string{"RAJ001", "RAJ001", "FRT003", "LOC004"}), ErrInvalidSeed)
	assert.ErrorIs(t, p.ValidatePermutation([]string{"RAJ001", "EXP002", "FRT003", "XXX"}), ErrInvalidSeed)
}

func TestCompleteOrder(t *testing.T) {
	p := mustProblem(t, fourTrains())
	got := p.CompleteOrder([]string{"FRT003", "unknown", "FRT003", "EXP002"})
	assert.Equal(t, []string{"FRT003", "EXP002", "RAJ001", "LOC004"}, got)
}

func TestScheduleFromOrderPlaceholderDelay(t *testing.T) {
	p := mustProblem(t, fourTrains())
	res, err := ScheduleFromOrder(p, MethodACO, []string{"EXP002", "RAJ001", "LOC004", "FRT003"}, 2)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 4, res.Throughput)
	assert.Equal(t, []string{"EXP002", "RAJ001", "LOC004", "FRT003"}, res.Order)
	assert.Equal(t, 0.0, res.Schedule["EXP002"][0].DelayAdded)
	assert.Equal(t, 6.0, res.Schedule["FRT003"][0].DelayAdded)
	assert.Equal(t, "SEC002", res.Schedule["LOC004"][0].SectionID)

	_, err = ScheduleFromOrder(p, MethodACO, []string{"EXP002"}, 2)
	assert.ErrorIs(t, err, ErrInvalidSeed)
}
