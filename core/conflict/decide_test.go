package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/priority"
)

// Midday trains have a time factor of one so scores equal the type level.
func middaySnapshot() model.Snapshot {
	noon := model.At(12, 0)
	return model.Snapshot{
		Trains: []model.Train{
			{ID: "RAJ", Type: "Rajdhani", ScheduledStart: noon},
			{ID: "FRT", Type: "Freight", ScheduledStart: noon},
			{ID: "LOC", Type: "Local", ScheduledStart: noon},
		},
		Sections: []model.Section{{ID: "S", MaxTrains: 1}},
		Usages: []model.TrainSectionUsage{
			usage("RAJ", "S", model.At(12, 0), model.At(12, 40)),
			usage("FRT", "S", model.At(12, 5), model.At(12, 40)),
			usage("LOC", "S", model.At(12, 10), model.At(12, 40)),
		},
	}
}

func byTrain(ds []Decision) map[string]Decision {
	out := make(map[string]Decision, len(ds))
	for _, d := range ds {
		out[d.TrainID] = d
	}
	return out
}

func TestDecideProceedAndHold(t *testing.T) {
	cases := []struct {
		name    string
		conds   Conditions
		proceed string
		holds   map[string]int
	}{
		{"clear", Conditions{}, "RAJ", map[string]int{"LOC": 5, "FRT": 5}},
		{"storm", Conditions{Weather: "Storm"}, "RAJ", map[string]int{"LOC": 14, "FRT": 15}},
		{"red signal shifts every score", Conditions{Signal: "Red", Weather: "Fog"}, "RAJ", map[string]int{"LOC": 9, "FRT": 10}},
		{"no platform", Conditions{PlatformAvailability: map[string]bool{"RAJ": false, "LOC": true}}, "LOC", map[string]int{"FRT": 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap := middaySnapshot()
			rep := Analyze(priority.NewDefaultEngine(), snap, map[string]Conditions{"S": tc.conds})
			require.Len(t, rep.Alerts, 1)
			require.Len(t, rep.Decisions, 1+len(tc.holds))

			got := byTrain(rep.Decisions)
			assert.Equal(t, tc.proceed, rep.Decisions[0].TrainID)
			assert.Equal(t, ActionProceed, got[tc.proceed].Action)
			assert.Zero(t, got[tc.proceed].HoldMinutes)
			for id, minutes := range tc.holds {
				assert.Equal(t, ActionHold, got[id].Action, id)
				assert.Equal(t, minutes, got[id].HoldMinutes, id)
				assert.Contains(t, got[id].Message, "section S")
			}
		})
	}
}

func TestDecideCapacityTwo(t *testing.T) {
	snap := middaySnapshot()
	snap.Sections[0].MaxTrains = 2
	snap.Usages = append(snap.Usages, usage("EXP", "S", model.At(12, 15), model.At(12, 40)))
	snap.Trains = append(snap.Trains, model.Train{ID: "EXP", Type: "Express", ScheduledStart: model.At(12, 0)})

	rep := Analyze(nil, snap, nil)
	require.Len(t, rep.Alerts, 1)
	got := byTrain(rep.Decisions)
	assert.Equal(t, ActionProceed, got["RAJ"].Action)
	assert.Equal(t, ActionProceed, got["EXP"].Action)
	assert.Equal(t, ActionHold, got["LOC"].Action)
	assert.Equal(t, ActionHold, got["FRT"].Action)
}

func TestDecideWithoutCapacityHoldsEveryone(t *testing.T) {
	a := Alert{ID: "A001", SectionID: "S", Trains: []string{"X", "Y"}}
	ds := Decide(nil, model.Snapshot{}, []Alert{a}, nil)
	require.Len(t, ds, 2)
	for _, d := range ds {
		assert.Equal(t, ActionHold, d.Action)
		assert.Equal(t, fallbackHoldMinutes, d.HoldMinutes)
	}
}

func TestAnalyzeWithoutConflicts(t *testing.T) {
	rep := Analyze(nil, model.Snapshot{}, nil)
	assert.NotNil(t, rep.Alerts)
	assert.Empty(t, rep.Alerts)
	assert.Empty(t, rep.Decisions)
}

func TestConditionsValidate(t *testing.T) {
	assert.NoError(t, Conditions{}.Validate())
	assert.NoError(t, Conditions{Signal: "Yellow", Weather: "Fog"}.Validate())
	assert.Error(t, Conditions{Weather: "Hail"}.Validate())
	assert.Error(t, Conditions{Signal: "Blue"}.Validate())
}
