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

const (
	// InversionPenalty is charged for every pair placed out of priority order.
	InversionPenalty = 100.0
	// AdjacencyPenalty is charged for every pair of neighbouring trains that
	// share a section.
	AdjacencyPenalty = 1000.0

	acoDelayFactor = 2.0
)

// ACOOutcome is the best ordering a colony found.
type ACOOutcome struct {
	Order      []string
	Score      float64
	Iterations int
	// History holds the best-so-far score after each iteration.
	History []float64
}

// ACO searches train orderings with an ant colony.
type ACO struct {
	cfg ACOConfig
	rng *rand.Rand
	log logger.Logger
}

// NewACO returns a colony using cfg (defaults applied).
func NewACO(cfg ACOConfig, rng *rand.Rand, log logger.Logger) (*ACO, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = NewRand(0)
	}
	return &ACO{cfg: cfg, rng: rng, log: logger.OrNop(log)}, nil
}

func (a *ACO) Name() string { return StrategyACO }

// Config returns the effective parameters.
func (a *ACO) Config() ACOConfig { return a.cfg }

// Search runs the colony for the configured number of iterations. seed is
// optional; it is only used when SeedPheromone is enabled and must then be a
// permutation of the trains.
func (a *ACO) Search(ctx context.Context, p *Problem, seed []string) (ACOOutcome, error) {
	n := p.Len()
	if n == 0 {
		return ACOOutcome{}, ErrNoTrains
	}
	tau := newPheromones(n)
	eta := similarity(p)

	var best []int
	bestScore := math.Inf(1)
	if a.cfg.SeedPheromone && len(seed) > 0 {
		idx, err := p.toIndices(seed)
		if err != nil {
			return ACOOutcome{}, err
		}
		best, bestScore = idx, colonyScore(p, idx)
		tau.deposit(idx, bestScore)
	}

	history := make([]float64, 0, a.cfg.Iterations)
	ants := make([][]int, a.cfg.PopulationSize)
	scores := make([]float64, a.cfg.PopulationSize)
	for it := 0; it < a.cfg.Iterations; it++ {
		iterBest := 0
		for k := range ants {
			if err := ctx.Err(); err != nil {
				return ACOOutcome{}, fmt.Errorf("aco: iteration %d: %w", it, err)
			}
			ants[k] = a.construct(p, tau, eta)
			scores[k] = colonyScore(p, ants[k])
			if scores[k] < scores[iterBest] {
				iterBest = k
			}
			if scores[k] < bestScore {
				bestScore = scores[k]
				best = ants[k]
			}
		}
		tau.evaporate(a.cfg.EvaporationRate)
		tau.deposit(ants[iterBest], scores[iterBest])
		history = append(history, bestScore)
		a.log.Debugw("aco iteration", map[string]any{
			"iteration": it,
			"best":      bestScore,
			"iter_best": scores[iterBest],
		})
	}
	return ACOOutcome{
		Order:      p.toIDs(best),
		Score:      bestScore,
		Iterations: a.cfg.Iterations,
		History:    history,
	}, nil
}

// Optimize implements Optimizer, turning the best ordering into a schedule
// with a placeholder delay of two minutes per position.
func (a *ACO) Optimize(ctx context.Context, p *Problem) model.OptimizationResult {
	start := time.Now()
	var res model.OptimizationResult
	err := guard(StrategyACO, func() error {
		out, err := a.Search(ctx, p, nil)
		if err != nil {
			return err
		}
		res, err = ScheduleFromOrder(p, MethodACO, out.Order, acoDelayFactor)
		if err != nil {
			return err
		}
		res.TotalDelay = out.Score
		res.ConflictsResolved = a.cfg.PopulationSize * a.cfg.Iterations
		res.FitnessHistory = out.History
		return nil
	})
	if err != nil {
		a.log.Errorf("aco optimization failed: %v", err)
		res = model.Failed(MethodACO, err)
	}
	res.ComputationTime = time.Since(start)
	return res
}

// construct builds one ordering from a uniformly random start.
func (a *ACO) construct(p *Problem, tau *pheromones, eta []float64) []int {
	n := p.Len()
	order := make([]int, 0, n)
	unvisited := make([]int, n)
	for i := range unvisited {
		unvisited[i] = i
	}
	take := func(k int) int {
		t := unvisited[k]
		unvisited[k] = unvisited[len(unvisited)-1]
		unvisited = unvisited[:len(unvisited)-1]
		return t
	}
	current := take(a.rng.Intn(n))
	order = append(order, current)
	weights := make([]float64, n)
	for len(unvisited) > 0 {
		var sum float64
		for k, t := range unvisited {
			w := math.Pow(tau.at(current, t), a.cfg.Alpha) * math.Pow(eta[current*n+t], a.cfg.Beta)
			weights[k] = w
			sum += w
		}
		var k int
		if sum > 0 && !math.IsInf(sum, 0) && !math.IsNaN(sum) {
			k = roulette(a.rng, weights[:len(unvisited)], sum)
		} else {
			k = a.rng.Intn(len(unvisited))
		}
		current = take(k)
		order = append(order, current)
	}
	return order
}

// roulette samples index k with probability weights[k]/sum.
func roulette(rng *rand.Rand, weights []float64, sum float64) int {
	r := rng.Float64() * sum
	var acc float64
	for k, w := range weights {
		acc += w
		if r <= acc {
			return k
		}
	}
	return len(weights) - 1
}

// colonyScore scores an ordering; lower is better.
func colonyScore(p *Problem, order []int) float64 {
	var score float64
	for i := 1; i < len(order); i++ {
		pi := p.trains[order[i]].priority
		for j := 0; j < i; j++ {
			if p.trains[order[j]].priority > pi {
				score += InversionPenalty
			}
		}
		if p.shareSection(order[i-1], order[i]) {
			score += AdjacencyPenalty
		}
	}
	return score
}

// similarity holds 1/(|Δpriority|+1) for every ordered pair.
func similarity(p *Problem) []float64 {
	n := p.Len()
	eta := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := p.trains[i].priority - p.trains[j].priority
			if d < 0 {
				d = -d
			}
			eta[i*n+j] = 1 / float64(d+1)
		}
	}
	return eta
}
