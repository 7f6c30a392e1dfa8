// Package runmeta assembles the machine-readable run summary. The record is
// accumulated stage by stage through a builder and materialized exactly once,
// after Load has succeeded; it is never mutated afterwards, so it always
// reflects the just-written outputs.
package runmeta

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Metrics holds the two derived data-quality metrics. Pointers distinguish
// "not computable" (column absent) from a genuine zero.
type Metrics struct {
	// MissingCreatedAt is the number of analytics rows whose timestamp failed
	// to parse (the soft-fail path's visibility).
	MissingCreatedAt *int64 `json:"missing_created_at"`
	// CountryMatchRate is the fraction of analytics rows whose joined country
	// is non-null.
	CountryMatchRate *float64 `json:"country_match_rate"`
}

// Meta is the run summary artifact, written once per run.
type Meta struct {
	RunID            string  `json:"run_id"`
	Status           string  `json:"status"`
	StartedAt        string  `json:"started_at"`
	DurationMS       int64   `json:"duration_ms"`
	RowsInOrdersRaw  int     `json:"rows_in_orders_raw"`
	RowsInUsers      int     `json:"rows_in_users"`
	RowsOutAnalytics int     `json:"rows_out_analytics"`
	Metrics          Metrics `json:"metrics"`
	Config           any     `json:"config"`
}

// Builder accumulates fields from each stage's return value. Keeping the
// record out of shared run-global state keeps the orchestrator's steps
// independently testable.
type Builder struct {
	meta  Meta
	start time.Time
	now   func() time.Time
}

// NewBuilder starts a run record with a fresh run id. now is a clock seam
// for tests; nil means time.Now.
func NewBuilder(now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	start := now()
	return &Builder{
		meta: Meta{
			RunID:     uuid.NewString(),
			StartedAt: start.UTC().Format(time.RFC3339),
		},
		start: start,
		now:   now,
	}
}

func (b *Builder) RunID() string { return b.meta.RunID }

func (b *Builder) SetInputCounts(ordersRaw, users int) {
	b.meta.RowsInOrdersRaw = ordersRaw
	b.meta.RowsInUsers = users
}

func (b *Builder) SetOutputCount(analytics int) {
	b.meta.RowsOutAnalytics = analytics
}

func (b *Builder) SetMissingCreatedAt(n int64) {
	b.meta.Metrics.MissingCreatedAt = &n
}

func (b *Builder) SetCountryMatchRate(r float64) {
	b.meta.Metrics.CountryMatchRate = &r
}

func (b *Builder) SetConfig(cfg any) {
	b.meta.Config = cfg
}

// Build finalizes the record with the terminal status and elapsed duration.
func (b *Builder) Build(status string) Meta {
	m := b.meta
	m.Status = status
	m.DurationMS = b.now().Sub(b.start).Milliseconds()
	return m
}

// WriteFile persists the record as indented JSON at path, overwriting any
// prior run's artifact (idempotent re-run). Parent directories are created.
func WriteFile(path string, m Meta) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("runmeta: mkdir: %w", err)
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("runmeta: marshal: %w", err)
	}
	b = append(b, '\n')
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("runmeta: write %s: %w", path, err)
	}
	return nil
}
