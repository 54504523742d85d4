package optimizer

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/priority"
)

var (
	// ErrNoTrains is returned by searches that need at least one train.
	ErrNoTrains = errors.New("optimizer: no trains to order")
	// ErrDuplicateTrain indicates two trains share an identifier.
	ErrDuplicateTrain = errors.New("optimizer: duplicate train id")
	// ErrInvalidSeed indicates a seed ordering is not a permutation of the trains.
	ErrInvalidSeed = errors.New("optimizer: seed is not a permutation of the train set")
)

type trainInfo struct {
	train      model.Train
	priority   int
	score      float64
	usages     []model.TrainSectionUsage
	sections   map[string]struct{}
	firstEntry int
	lastExit   int
}

// Problem is the read-only view of one optimization call. It owns copies of
// the caller's records.
type Problem struct {
	ids      []string
	index    map[string]int
	trains   []trainInfo
	sections []model.Section
	orphans  int
}

// NewProblem indexes snap. Usages referencing unknown trains are ignored and
// counted in Orphans. A nil engine uses the default priority table.
func NewProblem(snap model.Snapshot, eng *priority.Engine) (*Problem, error) {
	if eng == nil {
		eng = priority.NewDefaultEngine()
	}
	p := &Problem{
		ids:      make([]string, 0, len(snap.Trains)),
		index:    make(map[string]int, len(snap.Trains)),
		trains:   make([]trainInfo, 0, len(snap.Trains)),
		sections: append([]model.Section(nil), snap.Sections...),
	}
	for _, t := range snap.Trains {
		if t.ID == "" {
			return nil, fmt.Errorf("optimizer: train without id")
		}
		if _, dup := p.index[t.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTrain, t.ID)
		}
		p.index[t.ID] = len(p.trains)
		p.ids = append(p.ids, t.ID)
		p.trains = append(p.trains, trainInfo{
			train:    t,
			priority: t.DeclaredPriority(),
			score:    eng.Score(t),
			sections: make(map[string]struct{}),
		})
	}
	for _, u := range snap.Usages {
		i, ok := p.index[u.TrainID]
		if !ok {
			p.orphans++
			continue
		}
		ti := &p.trains[i]
		ti.usages = append(ti.usages, u)
		ti.sections[u.SectionID] = struct{}{}
	}
	for i := range p.trains {
		ti := &p.trains[i]
		sort.SliceStable(ti.usages, func(a, b int) bool {
			return ti.usages[a].Entry.Minutes < ti.usages[b].Entry.Minutes
		})
		if len(ti.usages) == 0 {
			continue
		}
		ti.firstEntry = ti.usages[0].Entry.Minutes
		for _, u := range ti.usages {
			if u.Exit.Minutes > ti.lastExit {
				ti.lastExit = u.Exit.Minutes
			}
		}
	}
	return p, nil
}

// Len returns the number of trains.
func (p *Problem) Len() int { return len(p.trains) }

// IDs returns the train ids in declaration order.
func (p *Problem) IDs() []string { return append([]string(nil), p.ids...) }

// Orphans returns how many usages referenced unknown trains.
func (p *Problem) Orphans() int { return p.orphans }

// Train returns the record for id.
func (p *Problem) Train(id string) (model.Train, bool) {
	i, ok := p.index[id]
	if !ok {
		return model.Train{}, false
	}
	return p.trains[i].train, true
}

// Trains returns a copy of the train records in declaration order.
func (p *Problem) Trains() []model.Train {
	out := make([]model.Train, len(p.trains))
	for i, t := range p.trains {
		out[i] = t.train
	}
	return out
}

// Sections returns a copy of the section records.
func (p *Problem) Sections() []model.Section {
	return append([]model.Section(nil), p.sections...)
}

// PriorityScore returns the priority model score of train id.
func (p *Problem) PriorityScore(id string) float64 {
	if i, ok := p.index[id]; ok {
		return p.trains[i].score
	}
	return 0
}

func (p *Problem) shareSection(i, j int) bool {
	a, b := p.trains[i].sections, p.trains[j].sections
	if len(a) > len(b) {
		a, b = b, a
	}
	for s := range a {
		if _, ok := b[s]; ok {
			return true
		}
	}
	return false
}

// toIndices converts an ordering of ids into indices, checking it is a
// permutation of the train set.
func (p *Problem) toIndices(order []string) ([]int, error) {
	if len(order) != len(p.trains) {
		return nil, fmt.Errorf("%w: %d ids for %d trains", ErrInvalidSeed, len(order), len(p.trains))
	}
	seen := make([]bool, len(p.trains))
	out := make([]int, len(order))
	for k, id := range order {
		i, ok := p.index[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown train %s", ErrInvalidSeed, id)
		}
		if seen[i] {
			return nil, fmt.Errorf("%w: train %s repeated", ErrInvalidSeed, id)
		}
		seen[i] = true
		out[k] = i
	}
	return out, nil
}

func (p *Problem) toIDs(order []int) []string {
	out := make([]string, len(order))
	for k, i := range order {
		out[k] = p.ids[i]
	}
	return out
}

// ValidatePermutation returns nil when order lists every train exactly once.
func (p *Problem) ValidatePermutation(order []string) error {
	_, err := p.toIndices(order)
	return err
}

// CompleteOrder keeps the known ids of order, drops repeats and appends the
// missing trains in declaration order.
func (p *Problem) CompleteOrder(order []string) []string {
	seen := make(map[string]bool, len(p.ids))
	out := make([]string, 0, len(p.ids))
	for _, id := range order {
		if _, ok := p.index[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range p.ids {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out
}
