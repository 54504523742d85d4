package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// LoggingConfig defines the process wide log level.
type LoggingConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks the level name.
func (c LoggingConfig) Validate() error {
	if _, err := c.level(); err != nil {
		return err
	}
	return nil
}

func (c LoggingConfig) level() (zerolog.Level, error) {
	switch strings.ToLower(c.Level) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.NoLevel, fmt.Errorf("logging: unknown level %q", c.Level)
}

// Apply sets the global zerolog level. Per-logger levels still apply.
func (c LoggingConfig) Apply() {
	if lvl, err := c.level(); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
}
