// Package scenarios runs YAML described scheduling situations through the
// full optimization pipeline and checks the outcome against expectations.
package scenarios

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/realtime"
	"github.com/kilianp07/railsched/infra/dataset"
)

type DisruptionDef struct {
	TrainID      string  `yaml:"train_id"`
	DelayMinutes float64 `yaml:"delay_minutes"`
}

func (d DisruptionDef) ToModel(method string, overrides map[string]any) realtime.Disruption {
	return realtime.Disruption{
		TrainID:      d.TrainID,
		DelayMinutes: d.DelayMinutes,
		Method:       method,
		Overrides:    overrides,
	}
}

type Expected struct {
	Success bool   `yaml:"success"`
	Method  string `yaml:"method,omitempty"`
	// First names the train that must be served first.
	First string `yaml:"first,omitempty"`
	// Before lists [a, b] pairs where a must precede b.
	Before     [][2]string `yaml:"before,omitempty"`
	Throughput int         `yaml:"throughput"`
	// MaxTotalDelay bounds the reported total delay when positive.
	MaxTotalDelay float64 `yaml:"max_total_delay,omitempty"`
	// Error must appear in the result error when set.
	Error string `yaml:"error,omitempty"`
}

type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Method      string         `yaml:"method,omitempty"`
	Seed        int64          `yaml:"seed"`
	Overrides   map[string]any `yaml:"overrides,omitempty"`
	Snapshot    yaml.Node      `yaml:"snapshot"`
	Disruption  *DisruptionDef `yaml:"disruption,omitempty"`
	Expected    Expected       `yaml:"expected"`

	snap model.Snapshot
}

// Data returns the decoded snapshot.
func (s *Scenario) Data() model.Snapshot { return s.snap.Clone() }

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("%s: scenario name is required", path)
	}
	if sc.Snapshot.Kind == 0 {
		return &sc, nil
	}
	// The snapshot goes through the dataset decoder so clock strings and
	// validation behave exactly like loaded data files.
	raw, err := yaml.Marshal(&sc.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.snap, err = dataset.Decode(bytes.NewReader(raw), dataset.FormatYAML)
	if err != nil {
		return nil, fmt.Errorf("%s: snapshot: %w", path, err)
	}
	if err := dataset.Validate(sc.snap); err != nil {
		return nil, fmt.Errorf("%s: snapshot: %w", path, err)
	}
	return &sc, nil
}
