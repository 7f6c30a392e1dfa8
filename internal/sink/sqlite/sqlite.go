// Package sqlite implements the dataset writer for SQLite.
//
// SQLite stores timestamps with TEXT affinity regardless of the declared
// type, so time.Time cells are written as RFC3339Nano strings for reliable
// round-trip behavior and easy debugging.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ordersetl/internal/sink"
)

type writer struct {
	db *sql.DB
}

func init() {
	sink.Register("sqlite", New)
}

// New opens (or creates) the SQLite database named by cfg.DSN.
func New(ctx context.Context, cfg sink.Config) (sink.Writer, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &writer{db: db}, nil
}

func (w *writer) Close() { _ = w.db.Close() }

// WriteDataset replaces the destination table with the dataset's contents.
// Drop-and-recreate keeps the stored schema in lockstep with the dataset and
// makes re-runs idempotent.
func (w *writer) WriteDataset(ctx context.Context, dest string, d sink.Dataset) error {
	if err := w.writeDataset(ctx, dest, d); err != nil {
		return &sink.WriteError{Dest: dest, Err: err}
	}
	return nil
}

func (w *writer) writeDataset(ctx context.Context, table string, d sink.Dataset) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqlIdent(table)); err != nil {
		return fmt.Errorf("drop table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, buildCreateSQL(table, d)); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	cols := d.ColumnNames()
	const maxBatch = 200
	for start := 0; start < d.NumRows(); start += maxBatch {
		end := start + maxBatch
		if end > d.NumRows() {
			end = d.NumRows()
		}
		q, args := buildInsertSQL(table, cols, d, start, end)
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert rows %d..%d: %w", start, end, err)
		}
	}

	return tx.Commit()
}

// buildCreateSQL generates the CREATE TABLE statement for a dataset. Pure, so
// the DDL mapping is unit-testable without a database.
func buildCreateSQL(table string, d sink.Dataset) string {
	names := d.ColumnNames()
	kinds := sink.InferColumnKinds(d)

	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = sqlIdent(n) + " " + sqliteType(kinds[i])
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", sqlIdent(table), strings.Join(parts, ",\n  "))
}

func sqliteType(k sink.ColumnKind) string {
	switch k {
	case sink.KindReal:
		return "REAL"
	case sink.KindInteger:
		return "INTEGER"
	case sink.KindBool:
		return "BOOLEAN"
	case sink.KindTime:
		return "TEXT"
	default:
		return "TEXT"
	}
}

func buildInsertSQL(table string, cols []string, d sink.Dataset, start, end int) (string, []any) {
	colList := make([]string, len(cols))
	for i, c := range cols {
		colList[i] = sqlIdent(c)
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(cols)), ",") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, (end-start)*len(cols))
	for i := start; i < end; i++ {
		if i > start {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		for _, v := range d.Row(i) {
			args = append(args, bindValue(v))
		}
	}
	return b.String(), args
}

// bindValue converts cells to driver-friendly values. Timestamps become
// RFC3339Nano text.
func bindValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
