package priority

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railsched/core/model"
)

func train(id, typ, start string, delay float64) model.Train {
	t := model.Train{ID: id, Type: typ, DelayMinutes: delay}
	if c, err := model.ParseClock(start); err == nil {
		t.ScheduledStart = c
	}
	return t
}

func TestEngine_TypePriority(t *testing.T) {
	e := NewDefaultEngine()
	raj := e.Score(train("RAJ001", "Rajdhani", "12:00", 0))
	frt := e.Score(train("FRT001", "Freight", "12:00", 0))
	assert.Less(t, raj, frt)
	assert.InDelta(t, 1.0, raj, 1e-9)
	assert.InDelta(t, 6.0, frt, 1e-9)
}

func TestEngine_UnknownTypeDefaultsToPassenger(t *testing.T) {
	e := NewDefaultEngine()
	assert.InDelta(t, 4.0, e.Score(train("X", "Hovercraft", "12:00", 0)), 1e-9)
}

func TestEngine_TimeOfDay(t *testing.T) {
	e := NewDefaultEngine()
	peak := e.Score(train("A", "Express", "08:00", 0))
	normal := e.Score(train("B", "Express", "13:00", 0))
	night := e.Score(train("C", "Express", "02:00", 0))
	assert.Less(t, peak, normal)
	assert.Less(t, normal, night)
	assert.InDelta(t, 2.4, peak, 1e-9)
	assert.InDelta(t, 3.6, night, 1e-9)
}

func TestEngine_MalformedTimeIsNeutral(t *testing.T) {
	e := NewDefaultEngine()
	bad := model.Train{ID: "A", Type: "Express"}
	require.NoError(t, bad.ScheduledStart.UnmarshalJSON([]byte(`"not-a-time"`)))
	assert.InDelta(t, 3.0, e.Score(bad), 1e-9)
}

func TestEngine_DelayPenaltyCapped(t *testing.T) {
	e := NewDefaultEngine()
	base := e.Score(train("A", "Express", "12:00", 0))
	some := e.Score(train("A", "Express", "12:00", 20))
	huge := e.Score(train("A", "Express", "12:00", 10000))
	assert.InDelta(t, base+0.2, some, 1e-9)
	assert.InDelta(t, base+0.5, huge, 1e-9)
	assert.Less(t, huge, e.Score(train("B", "Passenger", "12:00", 0)))
}

func TestEngine_PriorityMonotonic(t *testing.T) {
	e := NewDefaultEngine()
	for _, typ := range []string{"Rajdhani", "Express", "Freight", ""} {
		for _, start := range []string{"08:00", "13:00", "02:00"} {
			prev := -1.0
			for p := 1; p <= 8; p++ {
				tr := train("A", typ, start, 7)
				tr.Priority = p
				s := e.Score(tr)
				assert.GreaterOrEqual(t, s, prev, "type=%s start=%s p=%d", typ, start, p)
				prev = s
			}
		}
	}
}

func TestEngine_CustomPriorityTakesMinimum(t *testing.T) {
	e := NewDefaultEngine()
	tr := train("A", "Freight", "12:00", 0)
	tr.Priority = 2
	assert.InDelta(t, 2.0, e.Score(tr), 1e-9)
	tr = train("B", "Rajdhani", "12:00", 0)
	tr.Priority = 5
	assert.InDelta(t, 1.0, e.Score(tr), 1e-9)
}

func TestEngine_ResolveConflict(t *testing.T) {
	e := NewDefaultEngine()
	a := train("RAJ001", "Rajdhani", "08:00", 0)
	b := train("FRT001", "Freight", "08:00", 0)
	assert.Equal(t, "RAJ001", e.ResolveConflict(a, b))
	assert.Equal(t, "RAJ001", e.ResolveConflict(b, a))
}

func TestEngine_ResolveConflictSymmetric(t *testing.T) {
	e := NewDefaultEngine()
	trains := []model.Train{
		train("E1", "Express", "13:00", 0),
		train("E2", "Express", "14:00", 0),
		train("E3", "Express", "13:00", 0),
		train("E4", "Express", "", 0),
		train("L1", "Local", "08:00", 30),
		train("M1", "Mail", "bogus", 0),
	}
	for _, a := range trains {
		for _, b := range trains {
			assert.Equal(t, e.ResolveConflict(a, b), e.ResolveConflict(b, a), "%s vs %s", a.ID, b.ID)
		}
	}
	assert.Equal(t, "E1", e.ResolveConflict(trains[1], trains[0]))
	assert.Equal(t, "E1", e.ResolveConflict(trains[2], trains[0]))
}

func TestEngine_ConfigOverride(t *testing.T) {
	e, err := NewEngine(Config{TypePriority: map[string]int{"Freight": 2}, PeakMultiplier: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 2, e.TypeLevel("Freight"))
	assert.Equal(t, 1, e.TypeLevel("Rajdhani"))
	assert.InDelta(t, 1.0, e.Score(train("F", "Freight", "08:00", 0)), 1e-9)

	_, err = NewEngine(Config{PeakWindows: []HourWindow{{Start: 3, End: 30}}})
	assert.Error(t, err)
}

func TestEngine_RankAndExplain(t *testing.T) {
	e := NewDefaultEngine()
	rows := e.Rank([]model.Train{
		train("FRT001", "Freight", "10:00", 15),
		train("RAJ001", "Rajdhani", "08:00", 0),
		train("EXP002", "Express", "02:00", 0),
	})
	require.Len(t, rows, 3)
	assert.Equal(t, "RAJ001", rows[0].TrainID)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "FRT001", rows[2].TrainID)
	assert.Contains(t, rows[0].Explanation, "Peak hours")
	assert.Contains(t, rows[2].Explanation, "Delayed by 15 minutes")
	assert.Contains(t, rows[1].Explanation, "Night hours")
}
