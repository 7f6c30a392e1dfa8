// Package quality implements the fail-fast data-quality gate: pure validation
// predicates over a dataset. Every check either returns nil or fails with a
// typed error naming the dataset and column involved; there is no soft-fail
// mode here. Checks must run before any transform that assumes the property
// they verify.
package quality

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"ordersetl/internal/dataset"
)

// SchemaError reports expected columns that are absent from a dataset.
type SchemaError struct {
	Dataset string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("quality: dataset %s missing required columns: %s", e.Dataset, strings.Join(e.Missing, ", "))
}

// EmptyDatasetError reports a zero-row dataset where input is required.
type EmptyDatasetError struct {
	Dataset string
}

func (e *EmptyDatasetError) Error() string {
	return fmt.Sprintf("quality: dataset %s has zero rows", e.Dataset)
}

// UniquenessError reports a duplicated key value.
type UniquenessError struct {
	Dataset string
	Column  string
	Value   string
	Count   int
}

func (e *UniquenessError) Error() string {
	return fmt.Sprintf("quality: dataset %s key column %s has duplicate value %q (%d occurrences)", e.Dataset, e.Column, e.Value, e.Count)
}

// RangeError reports a non-null value outside the allowed bound.
type RangeError struct {
	Dataset string
	Column  string
	Row     int
	Value   float64
	Lo, Hi  float64
}

func (e *RangeError) Error() string {
	hi := "+inf"
	if !math.IsInf(e.Hi, 1) {
		hi = strconv.FormatFloat(e.Hi, 'g', -1, 64)
	}
	return fmt.Sprintf("quality: dataset %s column %s row %d value %v outside [%v, %s]",
		e.Dataset, e.Column, e.Row, e.Value, e.Lo, hi)
}

// RequireColumns fails with *SchemaError if any of names is absent.
func RequireColumns(d *dataset.Dataset, label string, names []string) error {
	var missing []string
	for _, n := range names {
		if !d.HasColumn(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Dataset: label, Missing: missing}
	}
	return nil
}

// AssertNonEmpty fails with *EmptyDatasetError if the dataset has zero rows.
func AssertNonEmpty(d *dataset.Dataset, label string) error {
	if d.NumRows() == 0 {
		return &EmptyDatasetError{Dataset: label}
	}
	return nil
}

// AssertUniqueKey fails with *UniquenessError if any value of keyColumn
// repeats. Null keys are treated as values here: two null keys are a
// duplicate, since a join on the column could not distinguish them.
func AssertUniqueKey(d *dataset.Dataset, label, keyColumn string) error {
	vals, ok := d.Column(keyColumn)
	if !ok {
		return &SchemaError{Dataset: label, Missing: []string{keyColumn}}
	}

	seen := make(map[string]int, len(vals))
	for _, v := range vals {
		k := KeyString(v)
		seen[k]++
		if seen[k] == 2 {
			// Count the remainder so the error reports the full multiplicity.
			total := 0
			for _, w := range vals {
				if KeyString(w) == k {
					total++
				}
			}
			return &UniquenessError{Dataset: label, Column: keyColumn, Value: k, Count: total}
		}
	}
	return nil
}

// AssertInRange fails with *RangeError if any non-null numeric value of the
// column falls outside [lo, hi]. Null values are exempt; their absence is
// tracked separately by the missingness flags. Use math.Inf(1) for an
// unbounded hi.
//
// Non-numeric cells are a schema defect at this point in the pipeline and
// fail with a plain error rather than being skipped.
func AssertInRange(d *dataset.Dataset, label, column string, lo, hi float64) error {
	vals, ok := d.Column(column)
	if !ok {
		return &SchemaError{Dataset: label, Missing: []string{column}}
	}
	for i, v := range vals {
		if v == nil {
			continue
		}
		f, ok := asFloat(v)
		if !ok {
			return fmt.Errorf("quality: dataset %s column %s row %d is not numeric (%T)", label, column, i, v)
		}
		if f < lo || f > hi {
			return &RangeError{Dataset: label, Column: column, Row: i, Value: f, Lo: lo, Hi: hi}
		}
	}
	return nil
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

// KeyString produces the stable string form used for uniqueness checks and
// join key lookups. Strings are trimmed; common primitive types avoid
// fmt.Sprint. nil maps to the empty string.
func KeyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
