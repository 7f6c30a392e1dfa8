package transform

import (
	"fmt"
	"sort"

	"ordersetl/internal/dataset"
)

// OutlierFlagSuffix is appended to a column name to form its outlier column.
const OutlierFlagSuffix = "_outlier"

// DefaultIQRFactor is the conventional Tukey fence multiplier.
const DefaultIQRFactor = 1.5

// Bounds holds distributional capping bounds for one numeric column.
// OK is false when the column had no non-null values to derive bounds from;
// in that case capping and flagging are no-ops.
type Bounds struct {
	Lo, Hi float64
	OK     bool
}

// IQRBounds computes Tukey fences [q1-k*iqr, q3+k*iqr] over the non-null
// numeric values of a column. Quartiles use linear interpolation between
// order statistics. Capping and flagging MUST both derive from this single
// computation so the capped value and the flag never disagree.
func IQRBounds(col []any, k float64) Bounds {
	xs := make([]float64, 0, len(col))
	for _, v := range col {
		if f, ok := v.(float64); ok {
			xs = append(xs, f)
		}
	}
	if len(xs) == 0 {
		return Bounds{}
	}
	sort.Float64s(xs)

	q1 := quantile(xs, 0.25)
	q3 := quantile(xs, 0.75)
	iqr := q3 - q1
	return Bounds{Lo: q1 - k*iqr, Hi: q3 + k*iqr, OK: true}
}

// quantile interpolates linearly between closest ranks; xs must be sorted.
func quantile(xs []float64, p float64) float64 {
	n := len(xs)
	if n == 1 {
		return xs[0]
	}
	pos := p * float64(n-1)
	lo := int(pos)
	frac := pos - float64(lo)
	if lo+1 >= n {
		return xs[n-1]
	}
	return xs[lo] + frac*(xs[lo+1]-xs[lo])
}

// Winsorize clamps values outside b to the bound value and returns a new
// column. Nulls pass through unchanged. Applying Winsorize twice with the
// same bounds is identical to applying it once.
func Winsorize(col []any, b Bounds) []any {
	out := make([]any, len(col))
	copy(out, col)
	if !b.OK {
		return out
	}
	for i, v := range col {
		f, ok := v.(float64)
		if !ok {
			continue
		}
		switch {
		case f < b.Lo:
			out[i] = b.Lo
		case f > b.Hi:
			out[i] = b.Hi
		}
	}
	return out
}

// AddOutlierFlag adds a boolean "{col}_outlier" column marking rows whose
// value falls outside b. It must run on the PRE-cap column: after capping,
// every value sits inside the bounds and the flags would all be false.
func AddOutlierFlag(d *dataset.Dataset, col string, b Bounds) (*dataset.Dataset, error) {
	vals, ok := d.Column(col)
	if !ok {
		return nil, fmt.Errorf("transform: outlier flag: column %q not found", col)
	}
	flags := make([]any, len(vals))
	for i, v := range vals {
		f, isNum := v.(float64)
		flags[i] = b.OK && isNum && (f < b.Lo || f > b.Hi)
	}
	return d.WithColumn(col+OutlierFlagSuffix, flags)
}

// CapOutliers flags then caps a numeric column using one shared bounds
// computation. This is the composition the orchestrator uses.
func CapOutliers(d *dataset.Dataset, col string, k float64) (*dataset.Dataset, error) {
	vals, ok := d.Column(col)
	if !ok {
		return nil, fmt.Errorf("transform: cap outliers: column %q not found", col)
	}
	b := IQRBounds(vals, k)

	out, err := AddOutlierFlag(d, col, b)
	if err != nil {
		return nil, err
	}
	return out.WithColumn(col, Winsorize(vals, b))
}
