// Package extractor turns page content plus a field schema into
// structured data via an AI provider.
package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/pagesift/pagesift/pkg/llm"
	"github.com/pagesift/pagesift/pkg/schema"
)

// Extractor extracts structured data from content.
type Extractor interface {
	// Extract performs extraction from content using the provided schema.
	Extract(ctx context.Context, content string, s schema.Schema, opts Options) (*Result, error)

	// Name returns the extractor identifier.
	Name() string
}

// Options carries per-call extraction settings.
type Options struct {
	// Instructions is appended to the prompt as caller guidance.
	Instructions string
}

// Result holds the extraction output.
type Result struct {
	// Data is the extracted field mapping, normalized so that every
	// schema field is present (null when the model omitted it).
	Data map[string]any

	// Raw is the raw provider response text, kept for diagnostics
	// and cache storage.
	Raw string

	// Usage tracks token consumption.
	Usage llm.Usage

	// Model is the actual model used.
	Model string

	// Provider is the provider name.
	Provider string

	// Duration is the time spent on the provider call.
	Duration time.Duration
}

// ParseError reports a provider response that was not valid or
// salvageable JSON. Raw carries a truncated payload for diagnosis.
type ParseError struct {
	Raw string
	Err error
}

// rawSnippetLen bounds the payload carried inside a ParseError.
const rawSnippetLen = 500

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse provider response as JSON: %v (raw: %q)", e.Err, e.Raw)
}

func (e *ParseError) Unwrap() error { return e.Err }

func newParseError(raw string, err error) *ParseError {
	if len(raw) > rawSnippetLen {
		raw = raw[:rawSnippetLen] + "..."
	}
	return &ParseError{Raw: raw, Err: err}
}
