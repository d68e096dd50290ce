// Package store persists normalized records, fusion events, and scored
// leads. Two implementations exist: SQLite for single-machine runs and
// Postgres for shared deployments.
package store

import (
	"context"

	"github.com/sells-group/openings-cli/internal/model"
)

// RecordFilter specifies criteria for listing normalized records.
type RecordFilter struct {
	City    string `json:"city,omitempty"`
	Dataset string `json:"dataset,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// LeadFilter specifies criteria for listing leads. Results are always
// ordered by score descending, creation time descending.
type LeadFilter struct {
	City     string  `json:"city,omitempty"`
	MinScore float64 `json:"min_score,omitempty"`
	Limit    int     `json:"limit,omitempty"`
	Offset   int     `json:"offset,omitempty"`
}

// Store defines the persistence interface for the fusion pipeline.
type Store interface {
	// Records
	InsertRecords(ctx context.Context, records []model.NormalizedRecord) (int, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.NormalizedRecord, error)

	// Events and leads
	SaveEvents(ctx context.Context, events []model.Event) error
	ListEvents(ctx context.Context, city string) ([]model.Event, error)
	SaveLeads(ctx context.Context, leads []model.Lead) error
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	DeleteLead(ctx context.Context, id string) error

	// Run history
	SaveRun(ctx context.Context, city string, stats model.RunStats) (string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
