// Package fetcher provides the page retrieval strategies: a static
// HTTP fetch, a rendered (headless-browser) fetch, and a fallback
// fetcher composing the two.
package fetcher

import (
	"context"
	"fmt"
	"time"
)

// Mode selects the preferred retrieval strategy.
type Mode string

const (
	// ModeStatic prefers the plain HTTP fetch, falling back to the
	// browser only when the fallback policy decides to.
	ModeStatic Mode = "static"
	// ModeRendered prefers the headless browser, falling back to the
	// plain HTTP fetch on failure.
	ModeRendered Mode = "rendered"
)

// Fetcher abstracts page fetching strategies.
type Fetcher interface {
	// Fetch retrieves page content from a URL.
	Fetch(ctx context.Context, url string, opts Options) (Content, error)

	// Close releases any resources (browser instances, etc.).
	Close() error

	// Type returns a string identifying the fetcher type
	// (e.g., "static", "rendered").
	Type() string
}

// Options controls fetching behavior.
type Options struct {
	UserAgent       string
	Timeout         time.Duration
	Headers         map[string]string
	WaitForSelector string   // CSS selector to wait for (rendered fetch)
	WaitPredicate   string   // JS boolean expression polled until true (rendered fetch)
	WaitDuration    time.Duration
	RemoveSelectors []string // DOM nodes to strip before serializing (rendered fetch)
	BlockImages     bool     // skip image requests (rendered fetch)

	// IsRetry marks a retry attempt; the static-preferred fallback
	// policy escalates to the browser when set.
	IsRetry bool
}

// Content represents fetched page data.
type Content struct {
	URL         string
	HTML        string
	Text        string // Extracted readable text
	Title       string
	StatusCode  int
	ContentType string
	FetchedAt   time.Time
	Links       []string
}

// ScrapeError reports a static-fetch network or HTTP failure.
type ScrapeError struct {
	URL        string
	StatusCode int // 0 when the request never completed
	Err        error
}

func (e *ScrapeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("scrape %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("scrape %s: %v", e.URL, e.Err)
}

func (e *ScrapeError) Unwrap() error { return e.Err }

// RenderedError reports a browser-automation failure.
type RenderedError struct {
	URL string
	Err error
}

func (e *RenderedError) Error() string {
	return fmt.Sprintf("rendered fetch %s: %v", e.URL, e.Err)
}

func (e *RenderedError) Unwrap() error { return e.Err }

// TimeoutError reports a deadline exceeded on a network or browser
// operation. The underlying request is abandoned, not aborted; the
// remote side may still be doing work.
type TimeoutError struct {
	Op      string
	URL     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s: timed out after %s", e.Op, e.URL, e.Timeout)
}
