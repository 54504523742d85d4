package optimizer

import (
	"fmt"

	"github.com/kilianp07/railsched/core/factory"
	"github.com/kilianp07/railsched/core/logger"
)

// Deps are the collaborators shared by every strategy a registry builds.
type Deps struct {
	Logger    logger.Logger
	Publisher Publisher
}

// NewRegistry returns a registry of every strategy. Each factory decodes
// its raw configuration as overrides on top of base.
func NewRegistry(base Config, deps Deps) *factory.Registry[Optimizer] {
	reg := factory.NewRegistry[Optimizer]()
	build := func(name string, fn func(Config) (Optimizer, error)) {
		if err := reg.Register(name, func(raw map[string]any) (Optimizer, error) {
			cfg, err := Overlay(base, raw)
			if err != nil {
				return nil, err
			}
			return fn(cfg)
		}); err != nil {
			panic(err)
		}
	}
	log := logger.OrNop(deps.Logger)
	build(StrategyHeuristic, func(c Config) (Optimizer, error) {
		return NewHeuristic(c.Heuristic, NewRand(c.Seed), log)
	})
	build(StrategyACO, func(c Config) (Optimizer, error) {
		return NewACO(c.ACO, NewRand(c.Seed), log)
	})
	build(StrategyGA, func(c Config) (Optimizer, error) {
		return NewGA(c.GA, NewRand(c.Seed), log)
	})
	build(StrategyRL, func(c Config) (Optimizer, error) {
		return NewRL(c.RL, NewRand(c.Seed), log)
	})
	build(StrategyHybrid, func(c Config) (Optimizer, error) {
		return NewHybrid(c, WithLogger(log), WithPublisher(deps.Publisher))
	})
	return reg
}

// Overlay decodes raw over a copy of base and validates the result. Keys
// absent from raw keep the base value; explicit zeros are kept as given.
// A tiers list replaces the base tiers instead of merging into them.
func Overlay(base Config, raw map[string]any) (Config, error) {
	base.SetDefaults()
	cfg := base
	cfg.Heuristic.Tiers = append([]DelayTier(nil), base.Heuristic.Tiers...)
	if h, ok := raw["heuristic"].(map[string]any); ok {
		if _, ok := h["tiers"]; ok {
			cfg.Heuristic.Tiers = nil
		}
	}
	if len(raw) > 0 {
		if err := factory.Decode(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode optimizer overrides: %w", err)
		}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
