// Package journal records every inbound command batch together with the
// outcome of each entry, for diagnostics. Backends: plain JSONL, rotated
// JSONL and SQLite.
package journal

import (
	"context"
	"fmt"
	"time"
)

// Entry is the outcome of one command of a batch.
type Entry struct {
	Name    string `json:"name"`
	Arg     string `json:"arg"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// Record captures one inbound message.
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Topic     string    `json:"topic"`
	Entries   []Entry   `json:"entries"`
	// Error is set when the payload could not be decoded at all.
	Error string `json:"error,omitempty"`
}

// Query defines filters for retrieving records.
type Query struct {
	Start time.Time
	End   time.Time
	// Command keeps records containing an entry with this name.
	Command string
}

func (q Query) match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Command == "" {
		return true
	}
	for _, e := range r.Entries {
		if e.Name == q.Command {
			return true
		}
	}
	return false
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Backends accepted by Config.Backend.
const (
	BackendNone     = "none"
	BackendJSONL    = "jsonl"
	BackendRotating = "rotating"
	BackendSQLite   = "sqlite"
)

// Config selects and sizes the journal backend.
type Config struct {
	// Backend is one of none, jsonl, rotating or sqlite.
	Backend string `json:"backend"`
	// Path is the file location of the store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendNone
	}
	if c.Path == "" && c.Backend != BackendNone {
		if c.Backend == BackendSQLite {
			c.Path = "commands.db"
		} else {
			c.Path = "commands.jsonl"
		}
	}
	if c.Backend == BackendRotating && c.MaxSizeMB == 0 {
		c.MaxSizeMB = 5
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendNone:
		return nil
	case BackendJSONL, BackendRotating, BackendSQLite:
	default:
		return fmt.Errorf("unknown journal backend %q", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("journal path is required")
	}
	return nil
}

// Open creates the store described by cfg.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return NopStore{}, nil
	case BackendJSONL:
		return NewJSONLStore(cfg.Path)
	case BackendRotating:
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case BackendSQLite:
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown journal backend %q", cfg.Backend)
	}
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error          { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
