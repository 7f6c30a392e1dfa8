package transform

import (
	"reflect"
	"testing"
)

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []any
		want []any
	}{
		{
			name: "lower_trim_collapse",
			in:   []any{"Paid", " REFUNDED ", "  two   words "},
			want: []any{"paid", "refunded", "two words"},
		},
		{
			name: "nulls_pass_through",
			in:   []any{nil, "OK", nil},
			want: []any{nil, "ok", nil},
		},
		{
			name: "non_string_stringified",
			in:   []any{int64(7)},
			want: []any{"7"},
		},
		{
			name: "whitespace_only_becomes_empty",
			in:   []any{"   "},
			want: []any{""},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := NormalizeText(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("NormalizeText(%v)=%v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

// TestNormalizeThenMap_Deterministic verifies that normalize followed by
// mapping is a pure function: repeated application over the same input yields
// identical output, unmapped values surface as the sentinel instead of
// throwing, and the input column is never written to.
func TestNormalizeThenMap_Deterministic(t *testing.T) {
	t.Parallel()

	mapping := map[string]string{"paid": "paid", "refund": "refund", "refunded": "refund"}
	in := []any{"Paid", " REFUNDED ", "paid", "weird status", nil}
	inCopy := append([]any(nil), in...)

	first := ApplyMapping(NormalizeText(in), mapping)
	second := ApplyMapping(NormalizeText(in), mapping)

	want := []any{"paid", "refund", "paid", UnmappedPrefix + "weird status", nil}
	if !reflect.DeepEqual(first, want) {
		t.Fatalf("mapped=%v, want %v", first, want)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("not deterministic: first=%v second=%v", first, second)
	}
	if !reflect.DeepEqual(in, inCopy) {
		t.Fatalf("input mutated: %v", in)
	}
}

func TestIsUnmapped(t *testing.T) {
	t.Parallel()

	if orig, ok := IsUnmapped(UnmappedPrefix + "weird"); !ok || orig != "weird" {
		t.Fatalf("IsUnmapped(sentinel)=(%q,%v), want (weird,true)", orig, ok)
	}
	if _, ok := IsUnmapped("paid"); ok {
		t.Fatalf("IsUnmapped(mapped value)=true")
	}
	if _, ok := IsUnmapped(nil); ok {
		t.Fatalf("IsUnmapped(nil)=true")
	}
	if _, ok := IsUnmapped(42); ok {
		t.Fatalf("IsUnmapped(non-string)=true")
	}
}

func TestValidateMapping(t *testing.T) {
	t.Parallel()

	if err := ValidateMapping(map[string]string{"paid": "paid"}); err != nil {
		t.Fatalf("ValidateMapping(clean) err=%v", err)
	}
	bad := map[string]string{"x": UnmappedPrefix + "x"}
	if err := ValidateMapping(bad); err == nil {
		t.Fatalf("ValidateMapping(sentinel collision) err=nil, want error")
	}
}
