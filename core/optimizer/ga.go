package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/railsched/core/logger"
	"github.com/kilianp07/railsched/core/model"
)

const (
	gaDelayFactor = 1.5
	minScore      = 0.1
)

// GAOutcome is the result of one evolution.
type GAOutcome struct {
	Order       []string
	Fitness     float64
	Generations int
	// History holds the best-so-far fitness after each generation.
	History []float64
	// Final summarizes the last evaluated generation.
	Final FitnessSummary
	// Seeded counts the seed orderings accepted into generation zero.
	Seeded int
}

// GA evolves train orderings with truncation selection, order crossover and
// swap mutation.
type GA struct {
	cfg GAConfig
	rng *rand.Rand
	log logger.Logger
}

// NewGA returns an algorithm using cfg (defaults applied).
func NewGA(cfg GAConfig, rng *rand.Rand, log logger.Logger) (*GA, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = NewRand(0)
	}
	return &GA{cfg: cfg, rng: rng, log: logger.OrNop(log)}, nil
}

func (g *GA) Name() string { return StrategyGA }

// Config returns the effective parameters.
func (g *GA) Config() GAConfig { return g.cfg }

// Fitness scores an ordering of train ids; lower is better.
func (g *GA) Fitness(p *Problem, order []string) (float64, error) {
	idx, err := p.toIndices(order)
	if err != nil {
		return 0, err
	}
	return g.fitness(p, idx), nil
}

// Evolve runs the configured number of generations. Seeds that are not
// permutations of the train set are skipped.
func (g *GA) Evolve(ctx context.Context, p *Problem, seeds [][]string) (GAOutcome, error) {
	n := p.Len()
	if n == 0 {
		return GAOutcome{}, ErrNoTrains
	}
	size := g.cfg.PopulationSize
	pop := make([][]int, 0, size)
	for _, s := range seeds {
		if len(pop) == size {
			break
		}
		idx, err := p.toIndices(s)
		if err != nil {
			g.log.Warnf("ga: skipping seed: %v", err)
			continue
		}
		pop = append(pop, idx)
	}
	out := GAOutcome{Seeded: len(pop)}
	for len(pop) < size {
		pop = append(pop, g.rng.Perm(n))
	}

	var best []int
	bestFit := math.Inf(1)
	scores := make([]float64, size)
	out.History = make([]float64, 0, g.cfg.Generations)
	for gen := 0; gen < g.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return GAOutcome{}, fmt.Errorf("ga: generation %d: %w", gen, err)
		}
		for k, ind := range pop {
			scores[k] = g.fitness(p, ind)
		}
		if k := floats.MinIdx(scores); scores[k] < bestFit {
			bestFit = scores[k]
			best = append([]int(nil), pop[k]...)
		}
		out.History = append(out.History, bestFit)
		out.Final = SummarizeFitness(scores)
		g.log.Debugw("ga generation", map[string]any{
			"generation": gen,
			"best":       bestFit,
			"mean":       out.Final.Mean,
		})

		parents := g.selectBest(pop, scores)
		next := make([][]int, 0, size)
		for len(next) < size {
			i := g.rng.Intn(len(parents))
			j := g.rng.Intn(len(parents) - 1)
			if j >= i {
				j++
			}
			c1, c2 := g.crossover(parents[i], parents[j])
			next = append(next, g.mutate(c1))
			if len(next) < size {
				next = append(next, g.mutate(c2))
			}
		}
		pop = next
	}
	out.Order = p.toIDs(best)
	out.Fitness = bestFit
	out.Generations = g.cfg.Generations
	return out, nil
}

// OptimizeSeeded evolves from seeds and converts the best ordering into a
// schedule with a placeholder delay of 1.5 minutes per position.
func (g *GA) OptimizeSeeded(ctx context.Context, p *Problem, seeds [][]string) model.OptimizationResult {
	start := time.Now()
	var res model.OptimizationResult
	err := guard(StrategyGA, func() error {
		out, err := g.Evolve(ctx, p, seeds)
		if err != nil {
			return err
		}
		res, err = ScheduleFromOrder(p, MethodGA, out.Order, gaDelayFactor)
		if err != nil {
			return err
		}
		res.TotalDelay = out.Fitness
		res.ConflictsResolved = g.cfg.PopulationSize * len(out.History)
		res.FitnessHistory = out.History
		return nil
	})
	if err != nil {
		g.log.Errorf("ga optimization failed: %v", err)
		res = model.Failed(MethodGA, err)
	}
	res.ComputationTime = time.Since(start)
	return res
}

// Optimize implements Optimizer with a purely random initial population.
func (g *GA) Optimize(ctx context.Context, p *Problem) model.OptimizationResult {
	return g.OptimizeSeeded(ctx, p, nil)
}

// fitness walks the ordering, charging ConflictPenalty for every window that
// overlaps one already claimed on the same section and IdleWeight per minute
// of gap after the previous train. The priority bonus is normalized to at
// most PriorityBonus so it can never outweigh a single conflict.
func (g *GA) fitness(p *Problem, order []int) float64 {
	n := len(order)
	claimed := make(map[string][]model.TrainSectionUsage)
	var score, weighted, total float64
	for pos, i := range order {
		ti := p.trains[i]
		for _, u := range ti.usages {
			for _, c := range claimed[u.SectionID] {
				if c.Overlaps(u.Entry.Minutes, u.Exit.Minutes) {
					score += g.cfg.ConflictPenalty
				}
			}
			claimed[u.SectionID] = append(claimed[u.SectionID], u)
		}
		if pos > 0 && len(ti.usages) > 0 {
			prev := p.trains[order[pos-1]]
			if idle := ti.firstEntry - prev.lastExit; idle > 0 {
				score += float64(idle) * g.cfg.IdleWeight
			}
		}
		w := 1 / math.Max(ti.score, minScore)
		weighted += w * float64(n-pos)
		total += w
	}
	if total > 0 {
		score -= g.cfg.PriorityBonus * weighted / (float64(n) * total)
	}
	return score
}

// selectBest keeps the better half of the population, never fewer than two.
func (g *GA) selectBest(pop [][]int, scores []float64) [][]int {
	idx := make([]int, len(pop))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })
	keep := len(pop) / 2
	if keep < 2 {
		keep = 2
	}
	out := make([][]int, keep)
	for k := range out {
		out[k] = pop[idx[k]]
	}
	return out
}

// crossover draws two distinct cut points and applies order crossover.
func (g *GA) crossover(p1, p2 []int) ([]int, []int) {
	n := len(p1)
	if n < 2 {
		return append([]int(nil), p1...), append([]int(nil), p2...)
	}
	a := g.rng.Intn(n)
	b := g.rng.Intn(n - 1)
	if b >= a {
		b++
	}
	if a > b {
		a, b = b, a
	}
	return orderCrossover(p1, p2, a, b), orderCrossover(p2, p1, a, b)
}

// orderCrossover copies keep[a:b] in place and fills the other positions with
// the genes of fill in their relative order.
func orderCrossover(keep, fill []int, a, b int) []int {
	n := len(keep)
	child := make([]int, n)
	taken := make([]bool, n)
	for k := a; k < b; k++ {
		child[k] = keep[k]
		taken[keep[k]] = true
	}
	pos := 0
	for _, gene := range fill {
		if taken[gene] {
			continue
		}
		for pos >= a && pos < b {
			pos++
		}
		child[pos] = gene
		pos++
	}
	return child
}

// mutate swaps two random positions with probability MutationRate.
func (g *GA) mutate(ind []int) []int {
	if len(ind) < 2 || g.rng.Float64() >= g.cfg.MutationRate {
		return ind
	}
	i := g.rng.Intn(len(ind))
	j := g.rng.Intn(len(ind) - 1)
	if j >= i {
		j++
	}
	ind[i], ind[j] = ind[j], ind[i]
	return ind
}
