package optimizer

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/kilianp07/railsched/core/logger"
	"github.com/kilianp07/railsched/core/model"
)

// Heuristic orders trains by declared priority and estimates delays with a
// random draw per priority tier. It is fast and approximate; its job is to
// hand later stages a reasonable starting point.
type Heuristic struct {
	cfg HeuristicConfig
	rng *rand.Rand
	log logger.Logger
}

// NewHeuristic returns a heuristic using cfg (defaults applied).
func NewHeuristic(cfg HeuristicConfig, rng *rand.Rand, log logger.Logger) (*Heuristic, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = NewRand(0)
	}
	return &Heuristic{cfg: cfg, rng: rng, log: logger.OrNop(log)}, nil
}

func (h *Heuristic) Name() string { return StrategyHeuristic }

// Optimize implements Optimizer. An empty train set is a valid, successful
// input with zero throughput.
func (h *Heuristic) Optimize(ctx context.Context, p *Problem) model.OptimizationResult {
	start := time.Now()
	res := model.NewResult(MethodHeuristic)
	err := guard(StrategyHeuristic, func() error {
		order := make([]int, p.Len())
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			ta, tb := p.trains[order[a]], p.trains[order[b]]
			if ta.priority != tb.priority {
				return ta.priority < tb.priority
			}
			return ta.score < tb.score
		})

		extra := make([]float64, p.Len())
		var total float64
		for _, i := range order {
			if err := ctx.Err(); err != nil {
				return err
			}
			ti := p.trains[i]
			extra[i] = h.draw(ti.priority)
			total += ti.train.DelayMinutes + extra[i]
			res.ConflictsResolved++
		}
		res.Schedule, res.Order = buildSchedule(p, order, func(_, i int) float64 { return extra[i] })
		res.TotalDelay = total
		res.Throughput = p.Len()
		return nil
	})
	if err != nil {
		h.log.Errorf("heuristic optimization failed: %v", err)
		res = model.Failed(MethodHeuristic, err)
	} else {
		res.Success = true
	}
	res.ComputationTime = time.Since(start)
	return res
}

func (h *Heuristic) draw(prio int) float64 {
	tiers := h.cfg.Tiers
	tier := tiers[len(tiers)-1]
	for _, t := range tiers[:len(tiers)-1] {
		if prio <= t.MaxPriority {
			tier = t
			break
		}
	}
	return tier.Min + h.rng.Float64()*(tier.Max-tier.Min)
}
