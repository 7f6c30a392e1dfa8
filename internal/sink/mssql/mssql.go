// Package mssql implements the dataset writer for Microsoft SQL Server.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"ordersetl/internal/sink"
)

type writer struct {
	db *sql.DB
}

func init() {
	sink.Register("mssql", New)
}

// New connects to the server named by cfg.DSN. Pool limits stay conservative;
// the pipeline writes from a single goroutine.
func New(ctx context.Context, cfg sink.Config) (sink.Writer, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}
	return &writer{db: db}, nil
}

func (w *writer) Close() { _ = w.db.Close() }

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

	drop := fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s;",
		strings.ReplaceAll(table, "'", "''"), sqlIdent(table))
	if _, err := tx.ExecContext(ctx, drop); err != nil {
		return fmt.Errorf("drop table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, buildCreateSQL(table, d)); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	cols := d.ColumnNames()
	// SQL Server caps statements at 2100 parameters; keep batches well under.
	maxBatch := 2000 / len(cols)
	if maxBatch < 1 {
		maxBatch = 1
	}
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

func buildCreateSQL(table string, d sink.Dataset) string {
	names := d.ColumnNames()
	kinds := sink.InferColumnKinds(d)

	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = sqlIdent(n) + " " + mssqlType(kinds[i])
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", sqlIdent(table), strings.Join(parts, ",\n  "))
}

func mssqlType(k sink.ColumnKind) string {
	switch k {
	case sink.KindReal:
		return "FLOAT"
	case sink.KindInteger:
		return "BIGINT"
	case sink.KindBool:
		return "BIT"
	case sink.KindTime:
		return "DATETIMEOFFSET"
	default:
		return "NVARCHAR(MAX)"
	}
}

// buildInsertSQL generates a multi-row INSERT with @pN placeholders and the
// matching positional args.
func buildInsertSQL(table string, cols []string, d sink.Dataset, start, end int) (string, []any) {
	colList := make([]string, len(cols))
	for i, c := range cols {
		colList[i] = sqlIdent(c)
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, (end-start)*len(cols))
	n := 1
	for i := start; i < end; i++ {
		if i > start {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, v := range d.Row(i) {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "@p%d", n)
			args = append(args, sql.Named(fmt.Sprintf("p%d", n), v))
			n++
		}
		b.WriteString(")")
	}
	return b.String(), args
}

func sqlIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}
