package sink

import "time"

// ColumnKind classifies a dataset column for DDL generation. Database
// backends map kinds onto their own type names.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindReal
	KindInteger
	KindBool
	KindTime
)

// InferColumnKinds derives one kind per column from the first non-null cell.
// All-null columns default to text.
func InferColumnKinds(d Dataset) []ColumnKind {
	names := d.ColumnNames()
	kinds := make([]ColumnKind, len(names))
	resolved := make([]bool, len(names))

	for i := 0; i < d.NumRows(); i++ {
		row := d.Row(i)
		done := true
		for j, v := range row {
			if resolved[j] {
				continue
			}
			if v == nil {
				done = false
				continue
			}
			kinds[j] = kindOf(v)
			resolved[j] = true
		}
		if done {
			break
		}
	}
	return kinds
}

func kindOf(v any) ColumnKind {
	switch v.(type) {
	case float64, float32:
		return KindReal
	case int, int64:
		return KindInteger
	case bool:
		return KindBool
	case time.Time:
		return KindTime
	default:
		return KindText
	}
}
