// Package output serializes extraction results for the CLI.
package output

import (
	"fmt"
	"io"

	"github.com/pagesift/pagesift/pkg/pagesift"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// Writer serializes extraction results.
type Writer interface {
	// Write outputs a single result.
	Write(res *pagesift.Result) error

	// WriteAll outputs multiple results.
	WriteAll(results []*pagesift.Result) error

	// Flush ensures all data is written.
	Flush() error

	// Close releases resources.
	Close() error
}

// WriterOption configures a writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	pretty   bool
	indent   string
	dataOnly bool
}

// WithPretty enables pretty-printing.
func WithPretty(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.pretty = enabled
	}
}

// WithIndent sets the indentation string.
func WithIndent(indent string) WriterOption {
	return func(c *writerConfig) {
		c.indent = indent
	}
}

// WithDataOnly emits just the extracted field mapping for successful
// results instead of the full result envelope. Failed results keep
// the envelope so the error is visible.
func WithDataOnly(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.dataOnly = enabled
	}
}

// payload picks what gets serialized for one result.
func (c *writerConfig) payload(res *pagesift.Result) any {
	if c.dataOnly && res.Success {
		return res.Data
	}
	return res
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format, opts ...WriterOption) (Writer, error) {
	cfg := &writerConfig{
		pretty: true,
		indent: "  ",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatJSON:
		return newJSONWriter(w, cfg), nil
	case FormatJSONL:
		return newJSONLWriter(w, cfg), nil
	case FormatYAML:
		return newYAMLWriter(w, cfg), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: json, jsonl, yaml)", format)
	}
}
