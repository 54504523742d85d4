package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kilianp07/railsched/core/model"
)

// File names read by LoadDir.
const (
	TrainsFile        = "trains.csv"
	SectionsFile      = "sections.csv"
	TrainSectionsFile = "train_sections.csv"
)

// LoadDir reads the three CSV files of dir. sections.csv is optional.
// Columns are matched by header name; unknown columns are ignored and
// missing ones take their zero value.
func LoadDir(dir string) (model.Snapshot, error) {
	var snap model.Snapshot
	err := readCSV(filepath.Join(dir, TrainsFile), func(r row) error {
		t, err := trainFromRow(r)
		if err == nil {
			snap.Trains = append(snap.Trains, t)
		}
		return err
	})
	if err != nil {
		return model.Snapshot{}, err
	}
	err = readCSV(filepath.Join(dir, SectionsFile), func(r row) error {
		s, err := sectionFromRow(r)
		if err == nil {
			snap.Sections = append(snap.Sections, s)
		}
		return err
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return model.Snapshot{}, err
	}
	err = readCSV(filepath.Join(dir, TrainSectionsFile), func(r row) error {
		snap.Usages = append(snap.Usages, model.TrainSectionUsage{
			TrainID:   r.get("train_id"),
			SectionID: r.get("section_id"),
			Entry:     r.clock("scheduled_entry_time"),
			Exit:      r.clock("scheduled_exit_time"),
		})
		return nil
	})
	if err != nil {
		return model.Snapshot{}, err
	}
	return snap, nil
}

type row struct {
	line   int
	header map[string]int
	fields []string
}

func (r row) get(col string) string {
	i, ok := r.header[col]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// clock parses a time column; malformed values stay invalid.
func (r row) clock(col string) model.ClockTime {
	c, err := model.ParseClock(r.get(col))
	if err != nil {
		return model.ClockTime{}
	}
	return c
}

func (r row) atoi(col string) (int, error) {
	v := r.get(col)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("line %d: %s: %w", r.line, col, err)
	}
	return n, nil
}

func (r row) atof(col string) (float64, error) {
	v := r.get(col)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: %s: %w", r.line, col, err)
	}
	return f, nil
}

func (r row) flag(col string) bool {
	switch strings.ToLower(r.get(col)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

func trainFromRow(r row) (model.Train, error) {
	prio, err := r.atoi("priority")
	if err != nil {
		return model.Train{}, err
	}
	delay, err := r.atof("delay_minutes")
	if err != nil {
		return model.Train{}, err
	}
	return model.Train{
		ID:             r.get("train_id"),
		Name:           r.get("train_name"),
		Type:           r.get("train_type"),
		Priority:       prio,
		DelayMinutes:   delay,
		ScheduledStart: r.clock("scheduled_start_time"),
		Origin:         r.get("origin_station"),
		Destination:    r.get("destination_station"),
	}, nil
}

func sectionFromRow(r row) (model.Section, error) {
	length, err := r.atof("length_km")
	if err != nil {
		return model.Section{}, err
	}
	maxTrains, err := r.atoi("max_trains_allowed")
	if err != nil {
		return model.Section{}, err
	}
	return model.Section{
		ID:           r.get("section_id"),
		FromStation:  r.get("from_station"),
		ToStation:    r.get("to_station"),
		LengthKM:     length,
		TrackType:    r.get("track_type"),
		MaxTrains:    maxTrains,
		JunctionFlag: r.flag("junction_flag"),
	}, nil
}

func readCSV(path string, fn func(row) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	rd := csv.NewReader(f)
	rd.FieldsPerRecord = -1
	rd.TrimLeadingSpace = true
	head, err := rd.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	header := make(map[string]int, len(head))
	for i, h := range head {
		header[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for line := 2; ; line++ {
		rec, err := rd.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := fn(row{line: line, header: header, fields: rec}); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
}
