package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/railsched/api/optimize"
	"github.com/kilianp07/railsched/core/metrics"
	"github.com/kilianp07/railsched/core/optimizer"
	"github.com/kilianp07/railsched/core/priority"
	"github.com/kilianp07/railsched/core/runlog"
	"github.com/kilianp07/railsched/infra/dataset"
	"github.com/kilianp07/railsched/infra/mqtt"
)

type Config struct {
	Optimizer optimizer.Config `json:"optimizer"`
	Priority  priority.Config  `json:"priority"`
	Metrics   metrics.Config   `json:"metrics"`
	MQTT      mqtt.Config      `json:"mqtt"`
	RunLog    runlog.Config    `json:"runlog"`
	API       optimize.Config  `json:"api"`
	Dataset   dataset.Config   `json:"dataset"`
	Logging   LoggingConfig    `json:"logging"`
}

// Load reads path, applies K_ prefixed environment overrides
// (K_OPTIMIZER__SEED=7 sets optimizer.seed), then fills defaults and
// validates every section.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	// The optimizer section is decoded over its defaults so explicit zeros
	// such as ga.mutation_rate: 0 survive. Tiers are replaced, not merged.
	cfg := Config{Optimizer: optimizer.DefaultConfig()}
	if k.Exists("optimizer.heuristic.tiers") {
		cfg.Optimizer.Heuristic.Tiers = nil
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every section defaulted, used when
// no file is given.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults fills unset fields in every section.
func (c *Config) SetDefaults() {
	c.Optimizer.SetDefaults()
	c.Priority.SetDefaults()
	c.RunLog.SetDefaults()
	c.API.SetDefaults()
	c.Logging.SetDefaults()
	if c.MQTT.Enabled() {
		c.MQTT.SetDefaults()
	}
}

// Validate reports every invalid section at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(section string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}
	add("optimizer", c.Optimizer.Validate())
	add("priority", c.Priority.Validate())
	add("metrics", c.Metrics.Validate())
	add("runlog", c.RunLog.Validate())
	add("logging", c.Logging.Validate())
	add("mqtt", c.MQTT.Validate())
	return errors.Join(errs...)
}
