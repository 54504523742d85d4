// Package conflict finds sections scheduled beyond their capacity and decides
// which of the competing trains proceed and which hold.
package conflict

import (
	"fmt"
	"sort"

	"github.com/kilianp07/railsched/core/model"
)

// TypeCapacityExceeded is the alert type raised when more trains occupy a
// section than it allows.
const TypeCapacityExceeded = "Capacity Exceeded"

// Severity bounds. 1 is low, 5 is high.
const (
	MinSeverity = 1
	MaxSeverity = 5
)

// Alert describes one period during which a section is over capacity.
type Alert struct {
	ID             string          `json:"alert_id"`
	SectionID      string          `json:"section_id"`
	Trains         []string        `json:"conflicting_trains"`
	Type           string          `json:"alert_type"`
	Severity       int             `json:"severity_level"`
	Capacity       int             `json:"capacity"`
	PeakTrains     int             `json:"peak_trains"`
	Start          model.ClockTime `json:"start_time"`
	End            model.ClockTime `json:"end_time"`
	OverlapMinutes int             `json:"overlap_minutes"`
}

// Capacity returns how many trains s admits at once. Zero means one.
func Capacity(s model.Section) int {
	if s.MaxTrains > 0 {
		return s.MaxTrains
	}
	return 1
}

type event struct {
	at    int
	enter bool
	train string
}

// Detect scans every section of snap and returns one alert per period of
// over-occupancy, ordered by section id then start time. Usages with unknown
// times are ignored and sections not declared in snap have capacity one.
// Touching windows do not overlap.
func Detect(snap model.Snapshot) []Alert {
	sections := make(map[string]model.Section, len(snap.Sections))
	for _, s := range snap.Sections {
		sections[s.ID] = s
	}
	bySection := make(map[string][]event)
	for _, u := range snap.Usages {
		if !u.Entry.Valid || !u.Exit.Valid || u.Exit.Minutes <= u.Entry.Minutes {
			continue
		}
		bySection[u.SectionID] = append(bySection[u.SectionID],
			event{at: u.Entry.Minutes, enter: true, train: u.TrainID},
			event{at: u.Exit.Minutes, train: u.TrainID},
		)
	}
	ids := make([]string, 0, len(bySection))
	for id := range bySection {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var alerts []Alert
	for _, id := range ids {
		sec, ok := sections[id]
		if !ok {
			sec = model.Section{ID: id}
		}
		for _, a := range sweep(sec, bySection[id]) {
			a.ID = fmt.Sprintf("A%03d", len(alerts)+1)
			alerts = append(alerts, a)
		}
	}
	return alerts
}

// sweep walks the entry and exit events of one section in time order.
func sweep(sec model.Section, evs []event) []Alert {
	sort.Slice(evs, func(i, j int) bool {
		if evs[i].at != evs[j].at {
			return evs[i].at < evs[j].at
		}
		if evs[i].enter != evs[j].enter {
			return !evs[i].enter
		}
		return evs[i].train < evs[j].train
	})
	capacity := Capacity(sec)
	active := make(map[string]int)
	var (
		out     []Alert
		open    bool
		start   int
		peak    int
		members map[string]bool
	)
	for _, ev := range evs {
		if ev.enter {
			active[ev.train]++
		} else if active[ev.train]--; active[ev.train] == 0 {
			delete(active, ev.train)
		}
		load := 0
		for _, n := range active {
			load += n
		}
		switch {
		case !open && load > capacity:
			open, start, peak = true, ev.at, load
			members = make(map[string]bool, len(active))
			for t := range active {
				members[t] = true
			}
		case open && ev.enter:
			members[ev.train] = true
			peak = max(peak, load)
		case open && load <= capacity:
			open = false
			out = append(out, newAlert(sec, capacity, members, peak, start, ev.at))
		}
	}
	return out
}

func newAlert(sec model.Section, capacity int, members map[string]bool, peak, start, end int) Alert {
	trains := make([]string, 0, len(members))
	for t := range members {
		trains = append(trains, t)
	}
	sort.Strings(trains)
	return Alert{
		SectionID:      sec.ID,
		Trains:         trains,
		Type:           TypeCapacityExceeded,
		Severity:       severity(sec, peak-capacity),
		Capacity:       capacity,
		PeakTrains:     peak,
		Start:          model.Offset(start),
		End:            model.Offset(end),
		OverlapMinutes: end - start,
	}
}

// severity grows with the number of trains above capacity and by one on
// junctions.
func severity(sec model.Section, excess int) int {
	s := MinSeverity + excess
	if sec.JunctionFlag {
		s++
	}
	return min(max(s, MinSeverity), MaxSeverity)
}
