package priority

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kilianp07/railsched/core/model"
)

// Engine computes priority scores. It is immutable once built and safe for
// concurrent use.
type Engine struct {
	table        map[string]int
	defaultLevel int
	peak         []HourWindow
	night        HourWindow
	peakMul      float64
	nightMul     float64
	delayRate    float64
	delayCap     float64
	defaultStart model.ClockTime
}

// NewEngine builds an engine from cfg after applying defaults.
func NewEngine(cfg Config) (*Engine, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start, err := model.ParseClock(cfg.DefaultStart)
	if err != nil {
		return nil, fmt.Errorf("default start: %w", err)
	}
	table := make(map[string]int, len(cfg.TypePriority))
	for k, v := range cfg.TypePriority {
		table[k] = v
	}
	return &Engine{
		table:        table,
		defaultLevel: cfg.DefaultTypePriority,
		peak:         append([]HourWindow(nil), cfg.PeakWindows...),
		night:        *cfg.NightWindow,
		peakMul:      cfg.PeakMultiplier,
		nightMul:     cfg.NightMultiplier,
		delayRate:    cfg.DelayPenaltyPerMinute,
		delayCap:     cfg.MaxDelayPenalty,
		defaultStart: start,
	}, nil
}

// NewDefaultEngine returns an engine using DefaultConfig.
func NewDefaultEngine() *Engine {
	e, err := NewEngine(Config{})
	if err != nil {
		panic(err)
	}
	return e
}

// TypeLevel returns the table level for a train type.
func (e *Engine) TypeLevel(trainType string) int {
	if lvl, ok := e.table[trainType]; ok {
		return lvl
	}
	return e.defaultLevel
}

// Score returns the priority score of t. Lower means more urgent.
func (e *Engine) Score(t model.Train) float64 {
	base := e.TypeLevel(t.Type)
	if t.HasPriority() && t.Priority < base {
		base = t.Priority
	}
	return float64(base)*e.TimeFactor(t.ScheduledStart) + e.delayPenalty(t.DelayMinutes)
}

// TimeFactor returns the time-of-day multiplier. Unknown times map to the
// default start, malformed ones never fail.
func (e *Engine) TimeFactor(c model.ClockTime) float64 {
	hour := c.Or(e.defaultStart).Hour()
	for _, w := range e.peak {
		if w.Contains(hour) {
			return e.peakMul
		}
	}
	if e.night.Contains(hour) {
		return e.nightMul
	}
	return 1.0
}

func (e *Engine) delayPenalty(minutes float64) float64 {
	if minutes <= 0 {
		return 0
	}
	return math.Min(minutes*e.delayRate, e.delayCap)
}

// ResolveConflict returns the id of the train that should go first. The lower
// score wins; ties go to the earlier scheduled start and then to the smaller
// id so the outcome does not depend on argument order.
func (e *Engine) ResolveConflict(a, b model.Train) string {
	sa, sb := e.Score(a), e.Score(b)
	switch {
	case sa < sb:
		return a.ID
	case sb < sa:
		return b.ID
	}
	ta := a.ScheduledStart.Or(e.defaultStart).Minutes
	tb := b.ScheduledStart.Or(e.defaultStart).Minutes
	switch {
	case ta < tb:
		return a.ID
	case tb < ta:
		return b.ID
	}
	if a.ID <= b.ID {
		return a.ID
	}
	return b.ID
}

// Explain returns a human readable account of the score.
func (e *Engine) Explain(t model.Train) string {
	typ := t.Type
	if typ == "" {
		typ = "Unknown"
	}
	parts := []string{fmt.Sprintf("Train Type: %s (Priority Level %d)", typ, e.TypeLevel(t.Type))}
	if t.HasPriority() && t.Priority < e.TypeLevel(t.Type) {
		parts = append(parts, fmt.Sprintf("Declared priority %d", t.Priority))
	}
	if t.DelayMinutes > 0 {
		parts = append(parts, fmt.Sprintf("Delayed by %g minutes", t.DelayMinutes))
	}
	switch f := e.TimeFactor(t.ScheduledStart); {
	case f < 1:
		parts = append(parts, "Peak hours - Higher priority")
	case f > 1:
		parts = append(parts, "Night hours - Lower priority")
	}
	return strings.Join(parts, " | ")
}

// Ranking is one row of the priority matrix.
type Ranking struct {
	Rank           int             `json:"rank"`
	TrainID        string          `json:"train_id"`
	TrainName      string          `json:"train_name"`
	TrainType      string          `json:"train_type"`
	Score          float64         `json:"priority_score"`
	Explanation    string          `json:"explanation"`
	ScheduledStart model.ClockTime `json:"scheduled_time"`
	DelayMinutes   float64         `json:"delay_minutes"`
}

// Rank scores every train and returns them ordered from most to least urgent.
func (e *Engine) Rank(trains []model.Train) []Ranking {
	rows := make([]Ranking, len(trains))
	for i, t := range trains {
		rows[i] = Ranking{
			TrainID:        t.ID,
			TrainName:      t.Name,
			TrainType:      t.Type,
			Score:          e.Score(t),
			Explanation:    e.Explain(t),
			ScheduledStart: t.ScheduledStart,
			DelayMinutes:   t.DelayMinutes,
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score < rows[j].Score
		}
		return rows[i].TrainID < rows[j].TrainID
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}
