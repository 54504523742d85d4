// Package realtime handles disruptions by recomputing a schedule from a
// modified snapshot. Nothing is patched incrementally: every disruption is
// applied to a copy of the base data and fed through the optimizer again.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/railsched/core/logger"
	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/optimizer"
)

// ErrUnknownTrain is returned when a disruption names a train that is not
// part of the snapshot.
var ErrUnknownTrain = errors.New("realtime: unknown train")

// Disruption delays one train.
type Disruption struct {
	TrainID      string  `json:"train_id" validate:"required"`
	DelayMinutes float64 `json:"delay_minutes" validate:"gte=0"`
	// Method optionally selects the strategy used to recompute.
	Method string `json:"method,omitempty"`
	// Overrides tune the strategy for this recomputation only.
	Overrides map[string]any `json:"overrides,omitempty"`
}

// SimulateDelay returns a copy of snap in which train id carries minutes of
// additional delay. The input is never modified. When id is unknown the copy
// is returned unchanged together with ErrUnknownTrain.
func SimulateDelay(snap model.Snapshot, id string, minutes float64) (model.Snapshot, error) {
	out := snap.Clone()
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return out, fmt.Errorf("realtime: invalid delay %v", minutes)
	}
	for i := range out.Trains {
		if out.Trains[i].ID == id {
			out.Trains[i].DelayMinutes += minutes
			return out, nil
		}
	}
	return out, fmt.Errorf("%w: %s", ErrUnknownTrain, id)
}

// Outcome pairs the disrupted snapshot with its recomputed result.
type Outcome struct {
	Disruption Disruption               `json:"disruption"`
	Snapshot   model.Snapshot           `json:"-"`
	Result     model.OptimizationResult `json:"result"`
}

// Reoptimizer recomputes schedules through a Runner.
type Reoptimizer struct {
	runner *optimizer.Runner
	log    logger.Logger
}

// NewReoptimizer returns a Reoptimizer backed by r.
func NewReoptimizer(r *optimizer.Runner, log logger.Logger) *Reoptimizer {
	return &Reoptimizer{runner: r, log: logger.OrNop(log)}
}

// Reoptimize runs the hybrid pipeline on snap.
func (r *Reoptimizer) Reoptimize(ctx context.Context, snap model.Snapshot) (model.OptimizationResult, error) {
	return r.ReoptimizeWithConfig(ctx, snap, nil)
}

// ReoptimizeWithConfig runs the hybrid pipeline on snap with per-call
// parameter overrides, e.g. {"aco": {"iterations": 10}}.
func (r *Reoptimizer) ReoptimizeWithConfig(ctx context.Context, snap model.Snapshot, overrides map[string]any) (model.OptimizationResult, error) {
	return r.runner.RunRequest(ctx, optimizer.Request{
		Snapshot:  snap,
		Method:    optimizer.StrategyHybrid,
		Overrides: overrides,
	})
}

// Handle applies d to a copy of base and recomputes. base is left untouched,
// so successive disruptions never accumulate.
func (r *Reoptimizer) Handle(ctx context.Context, base model.Snapshot, d Disruption) (Outcome, error) {
	snap, err := SimulateDelay(base, d.TrainID, d.DelayMinutes)
	if err != nil {
		return Outcome{Disruption: d, Snapshot: snap}, err
	}
	r.log.Infow("disruption applied", map[string]any{
		"train_id":      d.TrainID,
		"delay_minutes": d.DelayMinutes,
	})
	method := d.Method
	if method == "" {
		method = optimizer.StrategyHybrid
	}
	res, err := r.runner.RunRequest(ctx, optimizer.Request{
		Snapshot:  snap,
		Method:    method,
		Overrides: d.Overrides,
	})
	return Outcome{Disruption: d, Snapshot: snap, Result: res}, err
}
