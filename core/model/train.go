package model

// DefaultPriority is used when a train declares no priority. It sits in the
// middle of the 1 (most urgent) .. 6 (freight) scale.
const DefaultPriority = 5

// Train is a service contending for track sections. Priority uses the
// lower-is-more-urgent convention; zero means not declared.
type Train struct {
	ID             string    `json:"train_id" validate:"required"`
	Name           string    `json:"train_name,omitempty"`
	Type           string    `json:"train_type,omitempty"`
	Priority       int       `json:"priority,omitempty" validate:"gte=0"`
	DelayMinutes   float64   `json:"delay_minutes" validate:"gte=0"`
	ScheduledStart ClockTime `json:"scheduled_start_time"`
	Origin         string    `json:"origin_station,omitempty"`
	Destination    string    `json:"destination_station,omitempty"`
}

// DeclaredPriority returns the declared priority or DefaultPriority.
func (t Train) DeclaredPriority() int {
	if t.Priority > 0 {
		return t.Priority
	}
	return DefaultPriority
}

// HasPriority reports whether the train declares a custom priority.
func (t Train) HasPriority() bool { return t.Priority > 0 }

// Section is a track segment between two stations.
type Section struct {
	ID           string  `json:"section_id" validate:"required"`
	FromStation  string  `json:"from_station"`
	ToStation    string  `json:"to_station"`
	LengthKM     float64 `json:"length_km,omitempty" validate:"gte=0"`
	TrackType    string  `json:"track_type,omitempty"`
	MaxTrains    int     `json:"max_trains_allowed,omitempty" validate:"gte=0"`
	JunctionFlag bool    `json:"junction_flag,omitempty"`
}

// TrainSectionUsage is a scheduled occupancy window of one train on one section.
type TrainSectionUsage struct {
	TrainID   string    `json:"train_id" validate:"required"`
	SectionID string    `json:"section_id" validate:"required"`
	Entry     ClockTime `json:"scheduled_entry_time"`
	Exit      ClockTime `json:"scheduled_exit_time"`
}

// Overlaps reports whether both windows share any instant. Touching windows
// (one exits when the other enters) do not overlap.
func (u TrainSectionUsage) Overlaps(start, end int) bool {
	return !(u.Exit.Minutes <= start || u.Entry.Minutes >= end)
}

// Snapshot groups the three record collections consumed by the optimizers.
type Snapshot struct {
	Trains   []Train             `json:"trains"`
	Sections []Section           `json:"sections"`
	Usages   []TrainSectionUsage `json:"train_sections"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Trains:   append([]Train(nil), s.Trains...),
		Sections: append([]Section(nil), s.Sections...),
		Usages:   append([]TrainSectionUsage(nil), s.Usages...),
	}
}

// TrainIDs returns the train identifiers in declaration order.
func (s Snapshot) TrainIDs() []string {
	ids := make([]string, len(s.Trains))
	for i, t := range s.Trains {
		ids[i] = t.ID
	}
	return ids
}

// HasWork reports whether the snapshot carries trains or usages to schedule.
// Sections alone describe the network and do not count.
func (s Snapshot) HasWork() bool {
	return len(s.Trains) > 0 || len(s.Usages) > 0
}

// OrDefault returns s when it has work, def otherwise.
func (s Snapshot) OrDefault(def Snapshot) Snapshot {
	if s.HasWork() {
		return s
	}
	return def
}
