// Package csvsrc loads CSV extracts into datasets. Header names are
// normalized to snake_case identifiers; empty fields become null.
package csvsrc

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"ordersetl/internal/dataset"
	"ordersetl/internal/source"
)

// Loader reads one CSV file per Load call.
type Loader struct {
	// Comma is the field delimiter; zero means ','.
	Comma rune
	// TrimSpace trims leading/trailing whitespace on every field.
	TrimSpace bool
}

// NewLoader returns a Loader with the defaults used for the raw extracts:
// comma-delimited, trimmed fields.
func NewLoader() *Loader {
	return &Loader{Comma: ',', TrimSpace: true}
}

// Load reads the CSV at location into a dataset. The first record is the
// header; remaining records become rows. Records with a divergent field count
// fail the load: a ragged extract is a source defect, not something to
// paper over.
func (l *Loader) Load(ctx context.Context, location string) (*dataset.Dataset, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, &source.ReadError{Location: location, Err: err}
	}
	defer f.Close()

	d, err := l.read(ctx, f)
	if err != nil {
		return nil, &source.ReadError{Location: location, Err: err}
	}
	return d, nil
}

func (l *Loader) read(ctx context.Context, r io.Reader) (*dataset.Dataset, error) {
	comma := l.Comma
	if comma == 0 {
		comma = ','
	}

	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.ReuseRecord = true

	hdr, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	names := make([]string, len(hdr))
	for i, h := range hdr {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		names[i] = normalizeHeader(h)
	}

	values := make([][]any, len(names))
	line := 1
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) != len(names) {
			return nil, fmt.Errorf("line %d: %d fields, want %d", line, len(rec), len(names))
		}
		for i, v := range rec {
			if l.TrimSpace {
				v = strings.TrimSpace(v)
			}
			if v == "" {
				values[i] = append(values[i], nil)
			} else {
				values[i] = append(values[i], v)
			}
		}
	}

	cols := make([]dataset.Column, len(names))
	for i, n := range names {
		if values[i] == nil {
			values[i] = []any{}
		}
		cols[i] = dataset.Column{Name: n, Values: values[i]}
	}
	return dataset.New(cols...)
}

func normalizeHeader(h string) string {
	return strings.ReplaceAll(strings.ToLower(h), " ", "_")
}
