// Package dataset defines the in-memory tabular dataset the pipeline operates
// on: an ordered collection of named, equal-length columns. A nil cell is the
// null value.
//
// Ownership contract:
//   - Each pipeline stage produces a Dataset and hands it to the next stage.
//   - Stages must not mutate a Dataset they did not produce. Helpers that
//     "modify" a Dataset (WithColumn, Drop, ...) return a new Dataset and
//     leave the receiver untouched.
package dataset

import (
	"fmt"
)

// Column is a named sequence of cell values. Values uses nil for null.
type Column struct {
	Name   string
	Values []any
}

// Dataset is an ordered set of equal-length columns, row-aligned by position.
type Dataset struct {
	cols  []Column
	index map[string]int
}

// New constructs a Dataset and enforces the shared-row-count invariant.
//
// Errors:
//   - Returns an error on duplicate column names.
//   - Returns an error if any column's length differs from the first.
func New(cols ...Column) (*Dataset, error) {
	d := &Dataset{
		cols:  make([]Column, 0, len(cols)),
		index: make(map[string]int, len(cols)),
	}
	rows := -1
	for _, c := range cols {
		if c.Name == "" {
			return nil, fmt.Errorf("dataset: empty column name")
		}
		if _, dup := d.index[c.Name]; dup {
			return nil, fmt.Errorf("dataset: duplicate column %q", c.Name)
		}
		if rows == -1 {
			rows = len(c.Values)
		} else if len(c.Values) != rows {
			return nil, fmt.Errorf("dataset: column %q has %d rows, want %d", c.Name, len(c.Values), rows)
		}
		d.index[c.Name] = len(d.cols)
		d.cols = append(d.cols, c)
	}
	return d, nil
}

// MustNew is New for fixtures and tests; it panics on invalid input.
func MustNew(cols ...Column) *Dataset {
	d, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return d
}

// NumRows returns the shared row count. An empty Dataset has zero rows.
func (d *Dataset) NumRows() int {
	if len(d.cols) == 0 {
		return 0
	}
	return len(d.cols[0].Values)
}

// NumColumns returns the number of columns.
func (d *Dataset) NumColumns() int { return len(d.cols) }

// ColumnNames returns column names in positional order.
func (d *Dataset) ColumnNames() []string {
	out := make([]string, len(d.cols))
	for i, c := range d.cols {
		out[i] = c.Name
	}
	return out
}

// HasColumn reports whether a column exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Column returns the values of a named column. The returned slice is the
// dataset's backing storage; callers must treat it as read-only.
func (d *Dataset) Column(name string) ([]any, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.cols[i].Values, true
}

// Columns returns the columns in positional order. Read-only.
func (d *Dataset) Columns() []Column { return d.cols }

// WithColumn returns a new Dataset with the named column appended, or
// replaced in place if it already exists. The receiver is not modified.
//
// Errors:
//   - Returns an error if len(values) differs from the dataset's row count
//     (unless the dataset has no columns yet).
func (d *Dataset) WithColumn(name string, values []any) (*Dataset, error) {
	if len(d.cols) > 0 && len(values) != d.NumRows() {
		return nil, fmt.Errorf("dataset: column %q has %d rows, want %d", name, len(values), d.NumRows())
	}

	cols := make([]Column, len(d.cols), len(d.cols)+1)
	copy(cols, d.cols)

	if i, ok := d.index[name]; ok {
		cols[i] = Column{Name: name, Values: values}
	} else {
		cols = append(cols, Column{Name: name, Values: values})
	}
	return New(cols...)
}

// Drop returns a new Dataset without the named columns. Unknown names are
// ignored so callers can drop "whatever user-side columns made it through".
func (d *Dataset) Drop(names ...string) *Dataset {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	cols := make([]Column, 0, len(d.cols))
	for _, c := range d.cols {
		if skip[c.Name] {
			continue
		}
		cols = append(cols, c)
	}
	out, err := New(cols...)
	if err != nil {
		// Dropping columns cannot break the row invariant of a valid Dataset.
		panic(err)
	}
	return out
}

// Row materializes row i as a positional slice aligned with ColumnNames.
func (d *Dataset) Row(i int) []any {
	out := make([]any, len(d.cols))
	for j, c := range d.cols {
		out[j] = c.Values[i]
	}
	return out
}

// NullCount returns the number of nil cells in the named column.
// The second return is false when the column does not exist.
func (d *Dataset) NullCount(name string) (int, bool) {
	vals, ok := d.Column(name)
	if !ok {
		return 0, false
	}
	n := 0
	for _, v := range vals {
		if v == nil {
			n++
		}
	}
	return n, true
}
