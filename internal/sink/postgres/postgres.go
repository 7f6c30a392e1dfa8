// Package postgres implements the dataset writer for PostgreSQL using a pgx
// connection pool.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"ordersetl/internal/sink"
)

type writer struct {
	pool *pgxpool.Pool
}

func init() {
	sink.Register("postgres", New)
}

// New connects to the database named by cfg.DSN and verifies the connection.
func New(ctx context.Context, cfg sink.Config) (sink.Writer, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &writer{pool: pool}, nil
}

func (w *writer) Close() { w.pool.Close() }

// WriteDataset replaces the destination table with the dataset's contents,
// inside a single transaction so readers never observe a half-written table.
func (w *writer) WriteDataset(ctx context.Context, dest string, d sink.Dataset) error {
	if err := w.writeDataset(ctx, dest, d); err != nil {
		return &sink.WriteError{Dest: dest, Err: err}
	}
	return nil
}

func (w *writer) writeDataset(ctx context.Context, table string, d sink.Dataset) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+sqlIdent(table)); err != nil {
		return fmt.Errorf("drop table: %w", err)
	}
	if _, err := tx.Exec(ctx, buildCreateSQL(table, d)); err != nil {
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
		if _, err := tx.Exec(ctx, q, args...); err != nil {
			return fmt.Errorf("insert rows %d..%d: %w", start, end, err)
		}
	}

	return tx.Commit(ctx)
}

func buildCreateSQL(table string, d sink.Dataset) string {
	names := d.ColumnNames()
	kinds := sink.InferColumnKinds(d)

	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = sqlIdent(n) + " " + pgType(kinds[i])
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", sqlIdent(table), strings.Join(parts, ",\n  "))
}

func pgType(k sink.ColumnKind) string {
	switch k {
	case sink.KindReal:
		return "DOUBLE PRECISION"
	case sink.KindInteger:
		return "BIGINT"
	case sink.KindBool:
		return "BOOLEAN"
	case sink.KindTime:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

// buildInsertSQL generates a multi-row INSERT with $n placeholders. Split out
// for unit testing without a live database.
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
			fmt.Fprintf(&b, "$%d", n)
			n++
			args = append(args, v)
		}
		b.WriteString(")")
	}
	return b.String(), args
}

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
