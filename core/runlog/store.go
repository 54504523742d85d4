// Package runlog persists every served optimization so runs can be audited
// and compared later. Records can be kept in a plain JSONL file, a rotating
// JSONL file or a SQLite database.
package runlog

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kilianp07/railsched/core/model"
)

// LogRecord captures one optimization run.
type LogRecord struct {
	RunID      string                   `json:"run_id"`
	Timestamp  time.Time                `json:"timestamp"`
	Trigger    string                   `json:"trigger"`
	Method     string                   `json:"method"`
	Success    bool                     `json:"success"`
	TotalDelay float64                  `json:"total_delay"`
	DurationMS int64                    `json:"duration_ms"`
	TrainIDs   []string                 `json:"train_ids"`
	Result     model.OptimizationResult `json:"result"`
}

// NewRecord builds a record for res computed over trains.
func NewRecord(res model.OptimizationResult, trigger string, trains []string, at time.Time) LogRecord {
	return LogRecord{
		RunID:      res.RunID,
		Timestamp:  at,
		Trigger:    trigger,
		Method:     res.Method,
		Success:    res.Success,
		TotalDelay: res.TotalDelay,
		DurationMS: res.ComputationTime.Milliseconds(),
		TrainIDs:   append([]string(nil), trains...),
		Result:     res,
	}
}

// LogQuery defines filters for retrieving records. Zero fields match
// everything.
type LogQuery struct {
	Start   time.Time
	End     time.Time
	Method  string
	Success *bool
	TrainID string
	// Limit keeps the most recent records when positive.
	Limit int
}

// Match reports whether r satisfies every filter except Limit.
func (q LogQuery) Match(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Method != "" && r.Method != q.Method {
		return false
	}
	if q.Success != nil && r.Success != *q.Success {
		return false
	}
	if q.TrainID != "" && !slices.Contains(r.TrainIDs, q.TrainID) {
		return false
	}
	return true
}

func (q LogQuery) limit(recs []LogRecord) []LogRecord {
	if q.Limit > 0 && len(recs) > q.Limit {
		return recs[len(recs)-q.Limit:]
	}
	return recs
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

// Config selects and tunes the store backend.
type Config struct {
	// Backend is one of "jsonl", "sqlite" or "none".
	Backend    string `json:"backend"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		switch c.Backend {
		case "sqlite":
			c.Path = "runs.db"
		default:
			c.Path = "runs.jsonl"
		}
	}
}

// Validate checks the backend name.
func (c Config) Validate() error {
	switch c.Backend {
	case "jsonl", "sqlite", "none":
		return nil
	}
	return fmt.Errorf("runlog: unknown backend %q", c.Backend)
}

// Open returns the store described by cfg. A jsonl backend with a positive
// MaxSizeMB rotates its file. The "none" backend returns a nil store.
func Open(cfg Config) (LogStore, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "none":
		return nil, nil
	}
	if cfg.MaxSizeMB > 0 {
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	}
	return NewJSONLStore(cfg.Path)
}
