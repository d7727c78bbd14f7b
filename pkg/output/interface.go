package output

import (
	"context"
	"io"
)

// Formatter renders a run report in a specific format.
type Formatter interface {
	// Format renders the report to the given writer.
	Format(ctx context.Context, report *Report, w io.Writer) error

	// Name returns the format name (text, json, xlsx).
	Name() string
}

// FormatOptions controls formatter behavior.
type FormatOptions struct {
	// Verbose includes per-finding source locations and run timing.
	Verbose bool

	// Quiet emits summary totals only.
	Quiet bool
}
