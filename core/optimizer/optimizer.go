package optimizer

import (
	"context"
	"fmt"
	"math/rand"
	"runtime/debug"
	"time"

	"github.com/kilianp07/railsched/core/model"
)

// Optimizer is implemented by every strategy.
type Optimizer interface {
	Name() string
	Optimize(ctx context.Context, p *Problem) model.OptimizationResult
}

type runIDKey struct{}

// WithRunID attaches a run identifier used to correlate stage events.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run identifier carried by ctx, if any.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// NewRand returns a generator seeded with seed, or with the clock when seed
// is zero.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// guard converts a panic raised by fn into an error so that no failure
// crosses a stage boundary.
func guard(stage string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v\n%s", stage, r, debug.Stack())
		}
	}()
	return fn()
}
