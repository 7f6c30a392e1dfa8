// Package csvsink writes datasets to CSV files. Destination is a file path;
// the file is truncated on every run, which gives the overwrite semantics the
// pipeline relies on for idempotent re-runs.
package csvsink

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"

	"ordersetl/internal/sink"
)

type writer struct{}

func init() {
	sink.Register("csv", New)
}

// New constructs the csv writer backend. cfg.DSN is unused.
func New(ctx context.Context, cfg sink.Config) (sink.Writer, error) {
	return writer{}, nil
}

func (writer) Close() {}

func (writer) WriteDataset(ctx context.Context, dest string, d sink.Dataset) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &sink.WriteError{Dest: dest, Err: err}
	}

	f, err := os.Create(dest)
	if err != nil {
		return &sink.WriteError{Dest: dest, Err: err}
	}

	if err := writeAll(ctx, f, d); err != nil {
		_ = f.Close()
		return &sink.WriteError{Dest: dest, Err: err}
	}
	if err := f.Close(); err != nil {
		return &sink.WriteError{Dest: dest, Err: err}
	}
	return nil
}

func writeAll(ctx context.Context, f *os.File, d sink.Dataset) error {
	w := csv.NewWriter(f)
	if err := w.Write(d.ColumnNames()); err != nil {
		return err
	}

	n := d.NumRows()
	rec := make([]string, len(d.ColumnNames()))
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		for j, v := range d.Row(i) {
			rec[j] = sink.FormatCell(v)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
