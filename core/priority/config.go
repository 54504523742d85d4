package priority

import "fmt"

// HourWindow is an inclusive range of hours. When Start > End the window wraps
// past midnight (e.g. 23..5).
type HourWindow struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether hour falls in the window.
func (w HourWindow) Contains(hour int) bool {
	if w.Start <= w.End {
		return hour >= w.Start && hour <= w.End
	}
	return hour >= w.Start || hour <= w.End
}

func (w HourWindow) validate() error {
	if w.Start < 0 || w.Start > 23 || w.End < 0 || w.End > 23 {
		return fmt.Errorf("hour window %d-%d out of range", w.Start, w.End)
	}
	return nil
}

// Config defines the priority table and time-of-day modulation.
type Config struct {
	TypePriority          map[string]int `json:"type_priority"`
	DefaultTypePriority   int            `json:"default_type_priority"`
	PeakMultiplier        float64        `json:"peak_multiplier"`
	NightMultiplier       float64        `json:"night_multiplier"`
	PeakWindows           []HourWindow   `json:"peak_windows"`
	NightWindow           *HourWindow    `json:"night_window"`
	DelayPenaltyPerMinute float64        `json:"delay_penalty_per_minute"`
	MaxDelayPenalty       float64        `json:"max_delay_penalty"`
	DefaultStart          string         `json:"default_start"`
}

// DefaultTypeTable returns the Indian Railways classification used by default.
func DefaultTypeTable() map[string]int {
	return map[string]int{
		"Rajdhani":     1,
		"Shatabdi":     1,
		"Vande Bharat": 1,
		"Duronto":      2,
		"Express":      3,
		"Mail":         3,
		"Superfast":    3,
		"Passenger":    4,
		"Local":        5,
		"MEMU":         5,
		"DEMU":         5,
		"Freight":      6,
	}
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	c := Config{}
	c.SetDefaults()
	return c
}

// SetDefaults fills unset fields. Entries present in TypePriority override the
// stock table, they do not replace it.
func (c *Config) SetDefaults() {
	table := DefaultTypeTable()
	for k, v := range c.TypePriority {
		table[k] = v
	}
	c.TypePriority = table
	if c.DefaultTypePriority <= 0 {
		c.DefaultTypePriority = table["Passenger"]
	}
	if c.PeakMultiplier == 0 {
		c.PeakMultiplier = 0.8
	}
	if c.NightMultiplier == 0 {
		c.NightMultiplier = 1.2
	}
	if len(c.PeakWindows) == 0 {
		c.PeakWindows = []HourWindow{{Start: 7, End: 10}, {Start: 17, End: 20}}
	}
	if c.NightWindow == nil {
		c.NightWindow = &HourWindow{Start: 23, End: 5}
	}
	if c.DelayPenaltyPerMinute == 0 {
		c.DelayPenaltyPerMinute = 0.01
	}
	if c.MaxDelayPenalty == 0 {
		c.MaxDelayPenalty = 0.5
	}
	if c.DefaultStart == "" {
		c.DefaultStart = "12:00"
	}
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if c.PeakMultiplier <= 0 || c.NightMultiplier <= 0 {
		return fmt.Errorf("time multipliers must be positive")
	}
	if c.DelayPenaltyPerMinute < 0 || c.MaxDelayPenalty < 0 {
		return fmt.Errorf("delay penalty must not be negative")
	}
	for _, w := range c.PeakWindows {
		if err := w.validate(); err != nil {
			return err
		}
	}
	if c.NightWindow != nil {
		if err := c.NightWindow.validate(); err != nil {
			return err
		}
	}
	for k, v := range c.TypePriority {
		if v <= 0 {
			return fmt.Errorf("type %s: priority must be positive", k)
		}
	}
	return nil
}
