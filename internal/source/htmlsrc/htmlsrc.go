// Package htmlsrc loads a tabular extract embedded in an HTML page, for
// sources that publish reports as rendered tables rather than files. The
// first table matching the configured selector becomes the dataset.
package htmlsrc

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ordersetl/internal/dataset"
	"ordersetl/internal/source"
)

// Loader extracts one HTML table per Load call.
type Loader struct {
	// Selector locates the table element; empty means "table".
	Selector string
}

func NewLoader() *Loader { return &Loader{Selector: "table"} }

// Load parses the HTML document at location and extracts the first matching
// table. Header cells come from thead th elements, or from the first row when
// there is no thead. Empty cells become null.
func (l *Loader) Load(ctx context.Context, location string) (*dataset.Dataset, error) {
	b, err := os.ReadFile(location)
	if err != nil {
		return nil, &source.ReadError{Location: location, Err: err}
	}
	d, err := l.Parse(string(b))
	if err != nil {
		return nil, &source.ReadError{Location: location, Err: err}
	}
	_ = ctx
	return d, nil
}

// Parse extracts the table from an HTML string. Split out from Load so tests
// can run without file I/O.
func (l *Loader) Parse(html string) (*dataset.Dataset, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	sel := l.Selector
	if sel == "" {
		sel = "table"
	}
	table := doc.Find(sel).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("no table matches selector %q", sel)
	}

	var names []string
	table.Find("thead th").Each(func(_ int, th *goquery.Selection) {
		names = append(names, normalizeHeader(th.Text()))
	})

	rowsSel := table.Find("tbody tr")
	if rowsSel.Length() == 0 {
		rowsSel = table.Find("tr")
	}

	var values [][]any
	rowsSel.Each(func(ri int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			// Header row rendered as th inside tbody/tr.
			if len(names) == 0 {
				tr.Find("th").Each(func(_ int, th *goquery.Selection) {
					names = append(names, normalizeHeader(th.Text()))
				})
			}
			return
		}
		if len(names) == 0 {
			// Headerless table: synthesize positional names.
			cells.Each(func(ci int, _ *goquery.Selection) {
				names = append(names, fmt.Sprintf("col_%d", ci))
			})
		}
		if values == nil {
			values = make([][]any, len(names))
		}
		cells.Each(func(ci int, td *goquery.Selection) {
			if ci >= len(names) {
				return
			}
			v := strings.TrimSpace(td.Text())
			if v == "" {
				values[ci] = append(values[ci], nil)
			} else {
				values[ci] = append(values[ci], v)
			}
		})
		// Short rows pad with nulls so columns stay equal length.
		for ci := cells.Length(); ci < len(names); ci++ {
			values[ci] = append(values[ci], nil)
		}
	})

	if len(names) == 0 {
		return nil, fmt.Errorf("table has no header or rows")
	}
	if values == nil {
		values = make([][]any, len(names))
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
	h = strings.TrimSpace(h)
	return strings.ReplaceAll(strings.ToLower(h), " ", "_")
}
