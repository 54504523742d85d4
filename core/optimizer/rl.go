package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/kilianp07/railsched/core/logger"
	"github.com/kilianp07/railsched/core/model"
)

const rlDelayFactor = 1.0

// RLOutcome is the best ordering found over all episodes.
type RLOutcome struct {
	Order    []string
	Score    float64
	Episodes int
	// States is the number of distinct states in the Q-table.
	States int
	// History holds the best-so-far score after each episode.
	History []float64
}

// RL learns a train ordering with tabular Q-learning. A state is the set of
// trains already placed and an action places one more train. The reward of a
// step is minus the ordering cost it adds, so the return of an episode is
// minus its colony score.
type RL struct {
	cfg RLConfig
	rng *rand.Rand
	log logger.Logger
}

// NewRL returns an agent using cfg (defaults applied).
func NewRL(cfg RLConfig, rng *rand.Rand, log logger.Logger) (*RL, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = NewRand(0)
	}
	return &RL{cfg: cfg, rng: rng, log: logger.OrNop(log)}, nil
}

func (r *RL) Name() string { return StrategyRL }

// Config returns the effective parameters.
func (r *RL) Config() RLConfig { return r.cfg }

// Train runs the configured number of episodes and keeps the cheapest
// ordering seen.
func (r *RL) Train(ctx context.Context, p *Problem) (RLOutcome, error) {
	n := p.Len()
	if n == 0 {
		return RLOutcome{}, ErrNoTrains
	}
	q := make(map[string][]float64)
	var best []int
	bestScore := math.Inf(1)
	history := make([]float64, 0, r.cfg.Episodes)

	for ep := 0; ep < r.cfg.Episodes; ep++ {
		if err := ctx.Err(); err != nil {
			return RLOutcome{}, fmt.Errorf("rl: episode %d: %w", ep, err)
		}
		placed := newTrainSet(n)
		order := make([]int, 0, n)
		var score float64
		for len(order) < n {
			state := placed.key()
			a := r.choose(q, state, placed, n)
			cost := stepCost(p, order, a)
			score += cost
			order = append(order, a)
			placed.add(a)

			next := placed.key()
			var nextMax float64
			if len(order) < n {
				nextMax = maxOver(q[next], placed)
			}
			row := q[state]
			if row == nil {
				row = make([]float64, n)
				q[state] = row
			}
			row[a] += r.cfg.LearningRate * (-cost + r.cfg.Discount*nextMax - row[a])
		}
		if score < bestScore {
			bestScore = score
			best = order
		}
		history = append(history, bestScore)
	}
	r.log.Debugw("rl training done", map[string]any{
		"episodes": r.cfg.Episodes,
		"states":   len(q),
		"best":     bestScore,
	})
	return RLOutcome{
		Order:    p.toIDs(best),
		Score:    bestScore,
		Episodes: r.cfg.Episodes,
		States:   len(q),
		History:  history,
	}, nil
}

// Optimize implements Optimizer with a placeholder delay of one minute per
// position.
func (r *RL) Optimize(ctx context.Context, p *Problem) model.OptimizationResult {
	start := time.Now()
	var res model.OptimizationResult
	err := guard(StrategyRL, func() error {
		out, err := r.Train(ctx, p)
		if err != nil {
			return err
		}
		res, err = ScheduleFromOrder(p, MethodRL, out.Order, rlDelayFactor)
		if err != nil {
			return err
		}
		res.TotalDelay = out.Score
		res.ConflictsResolved = out.States
		res.FitnessHistory = out.History
		return nil
	})
	if err != nil {
		r.log.Errorf("rl optimization failed: %v", err)
		res = model.Failed(MethodRL, err)
	}
	res.ComputationTime = time.Since(start)
	return res
}

// choose is epsilon-greedy over the trains not placed yet. Unknown states are
// explored at random.
func (r *RL) choose(q map[string][]float64, state string, placed trainSet, n int) int {
	row, seen := q[state]
	if !seen || r.rng.Float64() < r.cfg.Epsilon {
		free := placed.free(n)
		return free[r.rng.Intn(len(free))]
	}
	best, bestQ := -1, math.Inf(-1)
	for i, v := range row {
		if !placed.has(i) && v > bestQ {
			best, bestQ = i, v
		}
	}
	return best
}

// stepCost is the colony score added by appending train a to order.
func stepCost(p *Problem, order []int, a int) float64 {
	var cost float64
	pa := p.trains[a].priority
	for _, j := range order {
		if p.trains[j].priority > pa {
			cost += InversionPenalty
		}
	}
	if len(order) > 0 && p.shareSection(order[len(order)-1], a) {
		cost += AdjacencyPenalty
	}
	return cost
}

// maxOver returns the best Q-value among the free actions of row, zero for an
// unseen state.
func maxOver(row []float64, placed trainSet) float64 {
	if row == nil {
		return 0
	}
	m := math.Inf(-1)
	for i, v := range row {
		if !placed.has(i) && v > m {
			m = v
		}
	}
	if math.IsInf(m, -1) {
		return 0
	}
	return m
}

// trainSet is a bitset of train indices.
type trainSet []byte

func newTrainSet(n int) trainSet { return make(trainSet, (n+7)/8) }

func (s trainSet) add(i int)      { s[i/8] |= 1 << (i % 8) }
func (s trainSet) has(i int) bool { return s[i/8]&(1<<(i%8)) != 0 }
func (s trainSet) key() string    { return string(s) }

// free lists the indices below n not in the set.
func (s trainSet) free(n int) []int {
	var out []int
	for i := 0; i < n; i++ {
		if !s.has(i) {
			out = append(out, i)
		}
	}
	return out
}
