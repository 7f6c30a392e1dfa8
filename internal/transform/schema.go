package transform

import (
	"strings"

	"github.com/spf13/cast"

	"ordersetl/internal/dataset"
)

// ColumnType is the target type for schema coercion.
type ColumnType string

const (
	TypeText    ColumnType = "text"
	TypeNumeric ColumnType = "numeric"
)

// EnforceSchema coerces the named columns to their declared types and returns
// a new dataset. Cells that fail numeric coercion become null; that happens
// BEFORE AddMissingFlags runs in the pipeline, so a garbage "amount" surfaces
// as amount_missing=true instead of a silent zero. Columns absent from the
// dataset are ignored here; RequireColumns guards presence beforehand.
func EnforceSchema(d *dataset.Dataset, types map[string]ColumnType) (*dataset.Dataset, error) {
	out := d
	for _, name := range d.ColumnNames() {
		ct, ok := types[name]
		if !ok {
			continue
		}
		vals, _ := d.Column(name)

		coerced := make([]any, len(vals))
		for i, v := range vals {
			if v == nil {
				continue
			}
			switch ct {
			case TypeNumeric:
				f, err := cast.ToFloat64E(v)
				if err != nil {
					coerced[i] = nil
					continue
				}
				coerced[i] = f
			case TypeText:
				s, err := cast.ToStringE(v)
				if err != nil {
					coerced[i] = nil
					continue
				}
				if strings.TrimSpace(s) == "" {
					coerced[i] = nil
					continue
				}
				coerced[i] = s
			default:
				coerced[i] = v
			}
		}

		next, err := out.WithColumn(name, coerced)
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}
