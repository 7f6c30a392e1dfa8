// Package transform implements the per-column cleaning steps of the pipeline:
// text normalization and controlled-vocabulary mapping, schema coercion,
// missingness tracking, timestamp decomposition, and outlier capping.
//
// Every function here is a pure function from input dataset/column to output;
// nulls (nil cells) pass through unchanged unless a function documents
// otherwise. Mutating transforms return fresh slices and never write into
// their input.
package transform

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// UnmappedPrefix marks values that survived normalization but have no entry
// in the controlled vocabulary. The prefix keeps them distinguishable from
// every legitimate mapped output (ValidateMapping enforces that) so
// downstream consumers can detect unexpected vocabulary instead of silently
// losing it.
const UnmappedPrefix = "unmapped:"

var lowerCaser = cases.Lower(language.Und)

// NormalizeText canonicalizes free-text cells: Unicode NFC, lowercase,
// trimmed, with internal whitespace runs collapsed to a single space.
// Nulls pass through; non-string cells are stringified first.
func NormalizeText(col []any) []any {
	out := make([]any, len(col))
	for i, v := range col {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		out[i] = normalizeString(s)
	}
	return out
}

func normalizeString(s string) string {
	s = norm.NFC.String(s)
	s = lowerCaser.String(s)
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// ApplyMapping replaces each cell via exact-match lookup in mapping.
// Cells with no match are preserved as UnmappedPrefix+value rather than
// dropped or nulled. Nulls pass through. Inputs are expected to be
// normalized already (mapping keys are defined in normalized form).
func ApplyMapping(col []any, mapping map[string]string) []any {
	out := make([]any, len(col))
	for i, v := range col {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		if mapped, ok := mapping[s]; ok {
			out[i] = mapped
		} else {
			out[i] = UnmappedPrefix + s
		}
	}
	return out
}

// ValidateMapping rejects vocabularies whose outputs could collide with the
// unmapped sentinel, which would make Unmapped detection ambiguous.
func ValidateMapping(mapping map[string]string) error {
	for k, v := range mapping {
		if strings.HasPrefix(v, UnmappedPrefix) {
			return fmt.Errorf("transform: mapping %q -> %q collides with unmapped sentinel prefix", k, v)
		}
	}
	return nil
}

// IsUnmapped reports whether a mapped cell is the unmapped sentinel, and if
// so returns the original (normalized) value.
func IsUnmapped(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	if !strings.HasPrefix(s, UnmappedPrefix) {
		return "", false
	}
	return strings.TrimPrefix(s, UnmappedPrefix), true
}
