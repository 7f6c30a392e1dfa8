package transform

import (
	"fmt"

	"ordersetl/internal/dataset"
)

// MissingFlagSuffix is appended to a column name to form its indicator column.
const MissingFlagSuffix = "_missing"

// AddMissingFlags adds, for each named column, a boolean "{col}_missing"
// column that is true exactly where the source cell is null. The source
// column itself is left untouched: detecting absence and deciding what to do
// about it are separate concerns, and this pipeline never imputes.
func AddMissingFlags(d *dataset.Dataset, cols []string) (*dataset.Dataset, error) {
	out := d
	for _, name := range cols {
		vals, ok := d.Column(name)
		if !ok {
			return nil, fmt.Errorf("transform: missing flags: column %q not found", name)
		}
		flags := make([]any, len(vals))
		for i, v := range vals {
			flags[i] = v == nil
		}
		next, err := out.WithColumn(name+MissingFlagSuffix, flags)
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}

// MissingnessReport produces a diagnostic dataset with one row per column:
// name, null count, and null fraction. It is an artifact for humans and
// dashboards; nothing downstream consumes it.
func MissingnessReport(d *dataset.Dataset) *dataset.Dataset {
	names := d.ColumnNames()
	rows := d.NumRows()

	colNames := make([]any, len(names))
	nullCounts := make([]any, len(names))
	nullFracs := make([]any, len(names))

	for i, name := range names {
		n, _ := d.NullCount(name)
		colNames[i] = name
		nullCounts[i] = int64(n)
		if rows == 0 {
			nullFracs[i] = nil
		} else {
			nullFracs[i] = float64(n) / float64(rows)
		}
	}

	return dataset.MustNew(
		dataset.Column{Name: "column", Values: colNames},
		dataset.Column{Name: "null_count", Values: nullCounts},
		dataset.Column{Name: "null_fraction", Values: nullFracs},
	)
}
