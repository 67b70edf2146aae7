// Package formatting renders the service catalog for the command line.
//
// Output is a go-pretty table by default; JSON and YAML are available for
// scripts.
package formatting

import (
	"io"

	"berth/internal/api"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Color  bool // Enable colored output
	// ShowStatus adds the status column. Offline scans leave it out.
	ShowStatus bool
}

// Formatter renders catalog data.
type Formatter interface {
	FormatCatalog(w io.Writer, services []api.ServiceInfo) error
	FormatTree(w io.Writer, root *api.ServiceGroup) error
}

// New creates the formatter for options.Format.
func New(options Options) Formatter {
	switch options.Format {
	case FormatJSON:
		return &jsonFormatter{}
	case FormatYAML:
		return &yamlFormatter{}
	default:
		return &CatalogTable{options: options}
	}
}
