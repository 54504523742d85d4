package optimizer

import (
	"fmt"
	"time"
)

// Strategy names accepted by the registry.
const (
	StrategyHeuristic = "heuristic"
	StrategyACO       = "aco"
	StrategyGA        = "ga"
	StrategyHybrid    = "hybrid"
	StrategyRL        = "rl"
)

// Method tags reported in results.
const (
	MethodHeuristic         = "Priority Heuristic"
	MethodACO               = "ACO (Ant Colony Optimization)"
	MethodGA                = "GA (Genetic Algorithm)"
	MethodHybrid            = "Comprehensive Hybrid (Heuristic → ACO → GA)"
	MethodHybridACOFallback = "Comprehensive Hybrid (ACO Fallback)"
	MethodHybridHeuristic   = "Comprehensive Hybrid (Heuristic Fallback)"
	MethodRL                = "RL (Q-Learning)"
)

// DelayTier is the random extra delay range drawn by the heuristic for
// trains whose declared priority is at most MaxPriority.
type DelayTier struct {
	MaxPriority int     `json:"max_priority"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
}

// HeuristicConfig tunes the priority heuristic.
type HeuristicConfig struct {
	// Tiers are checked in order; the last one catches every remaining train.
	Tiers []DelayTier `json:"tiers"`
}

// DefaultHeuristicConfig returns tight ranges for urgent trains and wider
// ones for low tiers, which absorb more variance.
func DefaultHeuristicConfig() HeuristicConfig {
	return HeuristicConfig{Tiers: []DelayTier{
		{MaxPriority: 2, Min: 0, Max: 5},
		{MaxPriority: 4, Min: 2, Max: 10},
		{MaxPriority: 0, Min: 5, Max: 20},
	}}
}

// SetDefaults fills unset fields.
func (c *HeuristicConfig) SetDefaults() {
	if len(c.Tiers) == 0 {
		c.Tiers = DefaultHeuristicConfig().Tiers
	}
}

// Validate checks the ranges.
func (c HeuristicConfig) Validate() error {
	for _, t := range c.Tiers {
		if t.Min < 0 || t.Max < t.Min {
			return fmt.Errorf("heuristic: invalid delay range [%g,%g]", t.Min, t.Max)
		}
	}
	return nil
}

// ACOConfig tunes the ant colony search.
type ACOConfig struct {
	PopulationSize  int     `json:"population_size"`
	Iterations      int     `json:"iterations"`
	Alpha           float64 `json:"alpha"`
	Beta            float64 `json:"beta"`
	EvaporationRate float64 `json:"evaporation_rate"`
	// SeedPheromone deposits the seed ordering's edges before the first
	// iteration and counts the seed as the initial best. Off by default: the
	// colony then explores independently of upstream stages.
	SeedPheromone bool `json:"seed_pheromone"`

	defaulted bool
}

// DefaultACOConfig returns the documented defaults.
func DefaultACOConfig() ACOConfig {
	return ACOConfig{PopulationSize: 20, Iterations: 30, Alpha: 1.0, Beta: 5.0, EvaporationRate: 0.5, defaulted: true}
}

// SetDefaults fills zero fields once. A defaulted value keeps zeros decoded
// over it later, so alpha: 0 or beta: 0 stay explicit.
func (c *ACOConfig) SetDefaults() {
	if c.defaulted {
		return
	}
	c.defaulted = true
	d := DefaultACOConfig()
	if c.PopulationSize == 0 {
		c.PopulationSize = d.PopulationSize
	}
	if c.Iterations == 0 {
		c.Iterations = d.Iterations
	}
	if c.Alpha == 0 {
		c.Alpha = d.Alpha
	}
	if c.Beta == 0 {
		c.Beta = d.Beta
	}
	if c.EvaporationRate == 0 {
		c.EvaporationRate = d.EvaporationRate
	}
}

// Validate checks the parameters.
func (c ACOConfig) Validate() error {
	if c.PopulationSize < 1 {
		return fmt.Errorf("aco: population_size must be positive")
	}
	if c.Iterations < 1 {
		return fmt.Errorf("aco: iterations must be positive")
	}
	if c.Alpha < 0 || c.Beta < 0 {
		return fmt.Errorf("aco: alpha and beta must not be negative")
	}
	if c.EvaporationRate <= 0 || c.EvaporationRate > 1 {
		return fmt.Errorf("aco: evaporation_rate must be in (0,1]")
	}
	return nil
}

// GAConfig tunes the genetic algorithm.
type GAConfig struct {
	PopulationSize int     `json:"population_size"`
	Generations    int     `json:"generations"`
	MutationRate   float64 `json:"mutation_rate"`
	// ConflictPenalty is added per overlapping window on a shared section.
	ConflictPenalty float64 `json:"conflict_penalty"`
	// IdleWeight multiplies the gap between consecutive trains, in minutes.
	IdleWeight float64 `json:"idle_weight"`
	// PriorityBonus bounds the reward for urgent trains placed early. It must
	// stay below ConflictPenalty so a conflict always outweighs any ordering
	// bonus.
	PriorityBonus float64 `json:"priority_bonus"`

	defaulted bool
}

// DefaultGAConfig returns the documented defaults.
func DefaultGAConfig() GAConfig {
	return GAConfig{
		PopulationSize:  30,
		Generations:     40,
		MutationRate:    0.05,
		ConflictPenalty: 100,
		IdleWeight:      2,
		PriorityBonus:   50,
		defaulted:       true,
	}
}

// SetDefaults fills zero fields once, like ACOConfig.SetDefaults.
func (c *GAConfig) SetDefaults() {
	if c.defaulted {
		return
	}
	c.defaulted = true
	d := DefaultGAConfig()
	if c.PopulationSize == 0 {
		c.PopulationSize = d.PopulationSize
	}
	if c.Generations == 0 {
		c.Generations = d.Generations
	}
	if c.MutationRate == 0 {
		c.MutationRate = d.MutationRate
	}
	if c.ConflictPenalty == 0 {
		c.ConflictPenalty = d.ConflictPenalty
	}
	if c.IdleWeight == 0 {
		c.IdleWeight = d.IdleWeight
	}
	if c.PriorityBonus == 0 {
		c.PriorityBonus = d.PriorityBonus
	}
}

// Validate checks the parameters.
func (c GAConfig) Validate() error {
	if c.PopulationSize < 2 {
		return fmt.Errorf("ga: population_size must be at least 2")
	}
	if c.Generations < 1 {
		return fmt.Errorf("ga: generations must be positive")
	}
	if c.MutationRate < 0 || c.MutationRate > 1 {
		return fmt.Errorf("ga: mutation_rate must be in [0,1]")
	}
	if c.IdleWeight < 0 || c.PriorityBonus < 0 {
		return fmt.Errorf("ga: weights must not be negative")
	}
	if c.PriorityBonus >= c.ConflictPenalty {
		return fmt.Errorf("ga: priority_bonus (%g) must be lower than conflict_penalty (%g)", c.PriorityBonus, c.ConflictPenalty)
	}
	return nil
}

// RLConfig tunes the tabular Q-learning agent.
type RLConfig struct {
	Episodes     int     `json:"episodes"`
	LearningRate float64 `json:"learning_rate"`
	Discount     float64 `json:"discount"`
	Epsilon      float64 `json:"epsilon"`

	defaulted bool
}

// DefaultRLConfig returns the documented defaults.
func DefaultRLConfig() RLConfig {
	return RLConfig{Episodes: 100, LearningRate: 0.1, Discount: 0.9, Epsilon: 0.2, defaulted: true}
}

// SetDefaults fills zero fields once, like ACOConfig.SetDefaults.
func (c *RLConfig) SetDefaults() {
	if c.defaulted {
		return
	}
	c.defaulted = true
	d := DefaultRLConfig()
	if c.Episodes == 0 {
		c.Episodes = d.Episodes
	}
	if c.LearningRate == 0 {
		c.LearningRate = d.LearningRate
	}
	if c.Discount == 0 {
		c.Discount = d.Discount
	}
	if c.Epsilon == 0 {
		c.Epsilon = d.Epsilon
	}
}

// Validate checks the parameters.
func (c RLConfig) Validate() error {
	if c.Episodes < 1 {
		return fmt.Errorf("rl: episodes must be positive")
	}
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		return fmt.Errorf("rl: learning_rate must be in (0,1]")
	}
	if c.Discount < 0 || c.Discount > 1 {
		return fmt.Errorf("rl: discount must be in [0,1]")
	}
	if c.Epsilon < 0 || c.Epsilon > 1 {
		return fmt.Errorf("rl: epsilon must be in [0,1]")
	}
	return nil
}

// Config gathers the strategy bundles. Each bundle is independently
// overridable; zero fields of a literal take the documented defaults, while
// values decoded over DefaultConfig keep explicit zeros.
type Config struct {
	Method         string          `json:"method"`
	Seed           int64           `json:"seed"`
	TimeoutSeconds int             `json:"timeout_seconds"`
	Heuristic      HeuristicConfig `json:"heuristic"`
	ACO            ACOConfig       `json:"aco"`
	GA             GAConfig        `json:"ga"`
	RL             RLConfig        `json:"rl"`
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	c := Config{}
	c.SetDefaults()
	return c
}

// SetDefaults fills unset fields of every bundle.
func (c *Config) SetDefaults() {
	if c.Method == "" {
		c.Method = StrategyHybrid
	}
	c.Heuristic.SetDefaults()
	c.ACO.SetDefaults()
	c.GA.SetDefaults()
	c.RL.SetDefaults()
}

// Validate checks every bundle.
func (c Config) Validate() error {
	switch c.Method {
	case StrategyHeuristic, StrategyACO, StrategyGA, StrategyHybrid, StrategyRL:
	default:
		return fmt.Errorf("unknown optimization method %q", c.Method)
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative")
	}
	if err := c.Heuristic.Validate(); err != nil {
		return err
	}
	if err := c.ACO.Validate(); err != nil {
		return err
	}
	if err := c.RL.Validate(); err != nil {
		return err
	}
	return c.GA.Validate()
}

// Timeout returns the configured bound for one call, zero meaning none.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
