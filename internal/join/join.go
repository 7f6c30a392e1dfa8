// Package join implements the cardinality-checked left join between the
// many-side (orders) and one-side (users) datasets.
//
// The join explosion guard lives in two independent places by design:
// cardinality validation here, before the join materializes, and the caller's
// row-count preservation check afterwards. A quiet fan-out corrupts every
// downstream aggregate, so both checks are kept even though they overlap.
package join

import (
	"fmt"

	"ordersetl/internal/dataset"
	"ordersetl/internal/quality"
)

// Cardinality declares the expected key relationship between left and right.
type Cardinality string

// ManyToOne: each left row matches at most one right row (right key unique).
const ManyToOne Cardinality = "many_to_one"

// CardinalityError reports a declared join cardinality that does not hold.
type CardinalityError struct {
	Validate Cardinality
	Side     string
	Column   string
	Value    string
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("join: %s cardinality violated: %s key %s has duplicate value %q",
		e.Validate, e.Side, e.Column, e.Value)
}

// RowCountMismatchError reports an unexpected row multiplication or loss
// across the join (measured by the caller against the left input).
type RowCountMismatchError struct {
	Want, Got int
}

func (e *RowCountMismatchError) Error() string {
	return fmt.Sprintf("join: row count changed across join: want %d rows, got %d", e.Want, e.Got)
}

// SafeLeftJoin performs a left outer join of left and right on the named key
// column, preserving every left row. Left rows with no match get nulls in the
// right side's non-key columns. Right-side columns whose names collide with a
// left column are renamed with suffix.
//
// Before materializing anything, the declared cardinality is verified on the
// right side; a duplicated right key fails with *CardinalityError instead of
// silently fanning out.
func SafeLeftJoin(left, right *dataset.Dataset, on string, validate Cardinality, suffix string) (*dataset.Dataset, error) {
	if validate != ManyToOne {
		return nil, fmt.Errorf("join: unsupported cardinality %q", validate)
	}
	leftKeys, ok := left.Column(on)
	if !ok {
		return nil, fmt.Errorf("join: left dataset has no column %q", on)
	}
	rightKeys, ok := right.Column(on)
	if !ok {
		return nil, fmt.Errorf("join: right dataset has no column %q", on)
	}

	// Right-side key index; building it doubles as the uniqueness check.
	index := make(map[string]int, len(rightKeys))
	for i, v := range rightKeys {
		k := quality.KeyString(v)
		if _, dup := index[k]; dup {
			return nil, &CardinalityError{Validate: validate, Side: "right", Column: on, Value: k}
		}
		index[k] = i
	}

	// Row mapping: left row i -> right row or -1.
	matches := make([]int, len(leftKeys))
	for i, v := range leftKeys {
		if ri, ok := index[quality.KeyString(v)]; ok {
			matches[i] = ri
		} else {
			matches[i] = -1
		}
	}

	cols := make([]dataset.Column, 0, left.NumColumns()+right.NumColumns()-1)
	for _, c := range left.Columns() {
		vals := make([]any, len(c.Values))
		copy(vals, c.Values)
		cols = append(cols, dataset.Column{Name: c.Name, Values: vals})
	}

	for _, c := range right.Columns() {
		if c.Name == on {
			continue
		}
		name := c.Name
		if left.HasColumn(name) {
			name += suffix
		}
		vals := make([]any, len(leftKeys))
		for i, ri := range matches {
			if ri >= 0 {
				vals[i] = c.Values[ri]
			}
		}
		cols = append(cols, dataset.Column{Name: name, Values: vals})
	}

	return dataset.New(cols...)
}

// CheckRowCount verifies the joined dataset preserved the left row count.
// Any deviation is fatal for the run.
func CheckRowCount(left, joined *dataset.Dataset) error {
	if joined.NumRows() != left.NumRows() {
		return &RowCountMismatchError{Want: left.NumRows(), Got: joined.NumRows()}
	}
	return nil
}
