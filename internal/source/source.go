// Package source defines the loader contract the pipeline core consumes:
// something that turns a raw-data location into an in-memory dataset. The
// core does not know about file formats or paths beyond this seam.
package source

import (
	"context"
	"fmt"

	"ordersetl/internal/dataset"
)

// Loader produces a raw dataset from a location. All cells are raw strings
// (or nil for empty); schema coercion happens inside the pipeline.
type Loader interface {
	Load(ctx context.Context, location string) (*dataset.Dataset, error)
}

// ReadError wraps a collaborator I/O failure. It is fatal and not retried by
// the core.
type ReadError struct {
	Location string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("source: read %s: %v", e.Location, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// LoaderFunc adapts a function to the Loader interface (test seam).
type LoaderFunc func(ctx context.Context, location string) (*dataset.Dataset, error)

func (f LoaderFunc) Load(ctx context.Context, location string) (*dataset.Dataset, error) {
	return f(ctx, location)
}
