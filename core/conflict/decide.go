package conflict

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/priority"
)

// Actions returned in a Decision.
const (
	ActionProceed = "proceed"
	ActionHold    = "hold"
)

const (
	minHoldMinutes      = 5
	fallbackHoldMinutes = 10
)

// weatherDelay is the extra minutes charged per weather condition.
var weatherDelay = map[string]float64{
	"Clear": 0,
	"Rain":  2,
	"Fog":   5,
	"Storm": 10,
}

var signalPenalty = map[string]float64{
	"Green":  0,
	"Yellow": 10,
	"Red":    20,
}

// Conditions are the live observations on one section. Trains missing from
// PlatformAvailability are treated as available.
type Conditions struct {
	Signal               string          `json:"signal_state,omitempty" validate:"omitempty,oneof=Green Yellow Red"`
	Weather              string          `json:"weather_condition,omitempty" validate:"omitempty,oneof=Clear Rain Fog Storm"`
	PlatformAvailability map[string]bool `json:"platform_availability,omitempty"`
}

var validate = validator.New()

// Validate rejects unknown signal states and weather conditions.
func (c Conditions) Validate() error { return validate.Struct(c) }

func (c Conditions) available(trainID string) bool {
	ok, set := c.PlatformAvailability[trainID]
	return !set || ok
}

// Decision tells one train what to do on the section of an alert.
type Decision struct {
	AlertID     string  `json:"alert_id"`
	SectionID   string  `json:"section_id"`
	TrainID     string  `json:"train_id"`
	Action      string  `json:"action"`
	HoldMinutes int     `json:"hold_minutes,omitempty"`
	Score       float64 `json:"score"`
	Message     string  `json:"message"`
}

// Report bundles the alerts of a snapshot with the decisions taken for them.
type Report struct {
	Alerts    []Alert    `json:"alerts"`
	Decisions []Decision `json:"decisions"`
}

// Analyze detects the alerts of snap and decides each of them. conds is keyed
// by section id.
func Analyze(eng *priority.Engine, snap model.Snapshot, conds map[string]Conditions) Report {
	alerts := Detect(snap)
	if alerts == nil {
		alerts = []Alert{}
	}
	return Report{Alerts: alerts, Decisions: Decide(eng, snap, alerts, conds)}
}

// Decide ranks the trains of every alert and lets the capacity of the section
// proceed while the rest hold. A train is scored by the priority engine plus
// the weather delay and signal penalty of its section; lower goes first.
// Trains without a platform are left out. Holding trains wait for the score
// gap to the last proceeding train plus the weather delay, and never less
// than five minutes.
func Decide(eng *priority.Engine, snap model.Snapshot, alerts []Alert, conds map[string]Conditions) []Decision {
	if eng == nil {
		eng = priority.NewDefaultEngine()
	}
	trains := make(map[string]model.Train, len(snap.Trains))
	for _, t := range snap.Trains {
		trains[t.ID] = t
	}
	out := []Decision{}
	for _, a := range alerts {
		out = append(out, decideAlert(eng, trains, a, conds[a.SectionID])...)
	}
	return out
}

type scored struct {
	id    string
	score float64
	start int
}

func decideAlert(eng *priority.Engine, trains map[string]model.Train, a Alert, c Conditions) []Decision {
	weather := weatherDelay[c.Weather]
	signal := signalPenalty[c.Signal]

	var queue []scored
	for _, id := range a.Trains {
		if !c.available(id) {
			continue
		}
		t, ok := trains[id]
		if !ok {
			t = model.Train{ID: id}
		}
		queue = append(queue, scored{
			id:    id,
			score: eng.Score(t) + weather + signal,
			start: t.ScheduledStart.Minutes,
		})
	}
	sort.SliceStable(queue, func(i, j int) bool {
		if queue[i].score != queue[j].score {
			return queue[i].score < queue[j].score
		}
		if queue[i].start != queue[j].start {
			return queue[i].start < queue[j].start
		}
		return queue[i].id < queue[j].id
	})

	proceed := min(a.Capacity, len(queue))
	out := make([]Decision, 0, len(queue))
	for i, s := range queue {
		d := Decision{AlertID: a.ID, SectionID: a.SectionID, TrainID: s.id, Score: s.score}
		if i < proceed {
			d.Action = ActionProceed
			d.Message = fmt.Sprintf("Proceed first on section %s", a.SectionID)
		} else {
			d.Action = ActionHold
			d.HoldMinutes = holdMinutes(s.score, queue, proceed, weather)
			d.Message = fmt.Sprintf("Hold for %d minutes to let other trains pass on section %s", d.HoldMinutes, a.SectionID)
		}
		out = append(out, d)
	}
	return out
}

func holdMinutes(score float64, queue []scored, proceed int, weather float64) int {
	if proceed == 0 {
		return fallbackHoldMinutes
	}
	gap := int(score-queue[proceed-1].score) + int(weather)
	return max(gap, minHoldMinutes)
}
