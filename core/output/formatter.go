// Package output provides output formatting interfaces.
// This package produces human and machine-readable outputs.
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"parcel-rate/core/engine"
	"parcel-rate/core/ratetable"
	"parcel-rate/core/types"
	rerrors "parcel-rate/internal/errors"
)

// Format represents output format type
type Format string

const (
	// FormatCLI is a human-readable CLI table
	FormatCLI Format = "cli"

	// FormatJSON is machine-readable JSON
	FormatJSON Format = "json"

	// FormatCSV is a spreadsheet-friendly table
	FormatCSV Format = "csv"

	// FormatYAML is machine-readable YAML
	FormatYAML Format = "yaml"
)

// Formatter produces output in a specific format
type Formatter interface {
	// Format returns the format type
	Format() Format

	// Render produces output for the given report
	Render(w io.Writer, report *Report) error
}

// Report is everything a command can print. Unset sections are skipped.
type Report struct {
	// Results are the priced shipments, in input order
	Results []types.PricedShipment `json:"results,omitempty"`

	// Summary aggregates Results
	Summary *engine.Summary `json:"summary,omitempty"`

	// RateTable is a generated rate card
	RateTable *ratetable.Grid `json:"rate_table,omitempty"`

	// Metadata contains execution context
	Metadata Metadata `json:"metadata"`
}

// Metadata contains execution context
type Metadata struct {
	// RunID identifies the pricing batch
	RunID string `json:"run_id,omitempty" yaml:"run_id,omitempty"`

	// GeneratedAt is when the report was produced
	GeneratedAt string `json:"generated_at" yaml:"generated_at"`

	// Duration is how long pricing took
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Reference is the reference data fingerprint
	Reference string `json:"reference,omitempty" yaml:"reference,omitempty"`

	// Source is the shipment input
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Version is the tool version
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

// NewReport builds a report for a priced batch
func NewReport(batch *engine.Batch, source, version string) *Report {
	summary := engine.Summarize(batch.Results)
	return &Report{
		Results: batch.Results,
		Summary: &summary,
		Metadata: Metadata{
			RunID:       batch.RunID,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			Duration:    batch.Duration.Round(time.Millisecond).String(),
			Reference:   batch.Fingerprint,
			Source:      source,
			Version:     version,
		},
	}
}

// Registry manages formatter registration
type Registry struct {
	formatters map[Format]Formatter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{formatters: make(map[Format]Formatter)}
}

// DefaultRegistry holds every built-in formatter
func DefaultRegistry(opts CLIOptions) *Registry {
	r := NewRegistry()
	r.Register(NewCLIFormatter(opts))
	r.Register(&JSONFormatter{Indent: true})
	r.Register(&CSVFormatter{})
	r.Register(&YAMLFormatter{})
	return r
}

// Register adds a formatter, replacing any for the same format
func (r *Registry) Register(f Formatter) {
	r.formatters[f.Format()] = f
}

// Get returns the formatter for a format name
func (r *Registry) Get(name string) (Formatter, error) {
	f, ok := r.formatters[Format(strings.ToLower(strings.TrimSpace(name)))]
	if !ok {
		return nil, rerrors.Input(fmt.Sprintf("unknown output format %q (want one of %s)",
			name, strings.Join(r.Formats(), ", ")))
	}
	return f, nil
}

// Formats lists the registered format names
func (r *Registry) Formats() []string {
	names := make([]string, 0, len(r.formatters))
	for f := range r.formatters {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return names
}
