// Package journal records every tool call in an append-only audit table.
// SQLite and PostgreSQL share one schema so records read back identically.
package journal

import (
	"context"
	"time"
)

// Record is the persisted representation of one tool call.
type Record struct {
	ID   string
	Tool string
	Path string
	// Code is the errmodel code of a failed call, empty on success.
	Code      string
	Bytes     int64
	Duration  time.Duration
	CreatedAt time.Time
}

// Journal persists and lists call records.
type Journal interface {
	Append(ctx context.Context, r Record) error
	// List returns the newest records first.
	List(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// Nop discards records; used when no journal DSN is configured.
type Nop struct{}

func (Nop) Append(context.Context, Record) error        { return nil }
func (Nop) List(context.Context, int) ([]Record, error) { return nil, nil }
func (Nop) Close() error                                { return nil }
