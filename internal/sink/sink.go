// Package sink defines the writer contract the pipeline core hands finished
// datasets to, plus the backend factory registry. Persisting a dataset must
// be an idempotent overwrite: re-running a pipeline against the same
// destination replaces the prior output, and a subsequent read reproduces the
// same columns and row order.
package sink

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Config is the minimal configuration needed to construct a writer backend.
type Config struct {
	// Kind selects a registered backend: "csv", "sqlite", "postgres", "mssql".
	Kind string
	// DSN is backend-specific (connection string; unused by the csv backend).
	DSN string
}

// Writer persists datasets. Destination meaning is backend-specific: a file
// path for the csv backend, a table name for database backends.
type Writer interface {
	// Close releases backend resources. Call once at the end of a run.
	Close()

	// WriteDataset persists d at dest, replacing any prior content there.
	WriteDataset(ctx context.Context, dest string, d Dataset) error
}

// Dataset is the minimal read surface the writers need. It is satisfied by
// *dataset.Dataset; keeping the dependency inverted lets backend packages
// stay free of the core's types in tests.
type Dataset interface {
	ColumnNames() []string
	NumRows() int
	Row(i int) []any
}

// WriteError wraps a collaborator I/O failure during Load. It is fatal and
// not retried by the core.
type WriteError struct {
	Dest string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("sink: write %s: %v", e.Dest, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ---- backend factory registry ----

type factory func(ctx context.Context, cfg Config) (Writer, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a writer backend under a kind. Call from an init()
// function in a backend package.
//
// Panics:
//   - If kind is empty, f is nil, or kind is already registered. Failing
//     fast avoids ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("sink: Register called with empty kind")
	}
	if f == nil {
		panic("sink: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("sink: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Writer using the registered backend factory.
func New(ctx context.Context, cfg Config) (Writer, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("sink: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("sink: unsupported kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// FormatCell renders a cell for text destinations. nil becomes the empty
// string; timestamps are RFC3339Nano in UTC for stable round-trips.
func FormatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
