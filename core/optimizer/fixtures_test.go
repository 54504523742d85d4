package optimizer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railsched/core/model"
)

func usage(train, section, entry, exit string) model.TrainSectionUsage {
	return model.TrainSectionUsage{
		TrainID:   train,
		SectionID: section,
		Entry:     model.MustParseClock(entry),
		Exit:      model.MustParseClock(exit),
	}
}

// fourTrains is the canonical mixed-priority sample.
func fourTrains() model.Snapshot {
	return model.Snapshot{
		Trains: []model.Train{
			{ID: "RAJ001", Name: "Rajdhani", Type: "Rajdhani", Priority: 1, ScheduledStart: model.At(8, 0)},
			{ID: "EXP002", Name: "Express", Type: "Express", Priority: 2, ScheduledStart: model.At(8, 30)},
			{ID: "FRT003", Name: "Freight", Type: "Freight", Priority: 5, DelayMinutes: 15, ScheduledStart: model.At(10, 0)},
			{ID: "LOC004", Name: "Local", Type: "Local", Priority: 4, ScheduledStart: model.At(14, 0)},
		},
		Sections: []model.Section{
			{ID: "SEC001", FromStation: "NDLS", ToStation: "GZB", LengthKM: 25, MaxTrains: 2},
			{ID: "SEC002", FromStation: "GZB", ToStation: "ALJN", LengthKM: 105, MaxTrains: 1},
		},
		Usages: []model.TrainSectionUsage{
			usage("RAJ001", "SEC001", "08:00", "08:30"),
			usage("EXP002", "SEC001", "08:15", "08:45"),
			usage("FRT003", "SEC002", "10:00", "11:30"),
			usage("LOC004", "SEC002", "14:00", "14:40"),
		},
	}
}

// chain returns n trains each occupying its own one-hour window on a single
// section, with priorities cycling through 1..5.
func chain(n int) model.Snapshot {
	var snap model.Snapshot
	snap.Sections = []model.Section{{ID: "S1", MaxTrains: 1}}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("T%03d", i)
		snap.Trains = append(snap.Trains, model.Train{ID: id, Type: "Express", Priority: i%5 + 1})
		snap.Usages = append(snap.Usages, model.TrainSectionUsage{
			TrainID:   id,
			SectionID: "S1",
			Entry:     model.ClockTime{Minutes: i * 60, Valid: true},
			Exit:      model.ClockTime{Minutes: i*60 + 45, Valid: true},
		})
	}
	return snap
}

func mustProblem(t *testing.T, snap model.Snapshot) *Problem {
	t.Helper()
	p, err := NewProblem(snap, nil)
	require.NoError(t, err)
	return p
}

func requirePermutation(t *testing.T, p *Problem, order []string) {
	t.Helper()
	require.Len(t, order, p.Len())
	require.NoError(t, p.ValidatePermutation(order))
}
