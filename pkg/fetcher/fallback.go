package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pagesift/pagesift/internal/logger"
)

// RenderPredicate decides whether a failed static fetch should be
// retried with the browser. It receives the static fetch error.
type RenderPredicate func(err error) bool

// dynamicContentTokens are substrings in static-fetch error text that
// suggest the page needs JavaScript rendering. The list is a
// heuristic, not an exhaustive catalog; replace the predicate via
// WithRenderPredicate for anything smarter.
var dynamicContentTokens = []string{
	"javascript", "react", "vue", "angular", "spa",
	"dynamic", "empty", "no content",
}

// DefaultRenderPredicate matches the static error text against the
// dynamic-content token list.
func DefaultRenderPredicate(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	for _, token := range dynamicContentTokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}

// FallbackFetcher composes the static and rendered fetchers under a
// preference policy:
//
//   - rendered-preferred: browser first, static on failure
//   - static-preferred (default): static first; browser only when the
//     attempt is a retry or the render predicate fires
//
// If both strategies fail, the returned error names both failures.
type FallbackFetcher struct {
	static    Fetcher
	rendered  Fetcher
	prefer    Mode
	predicate RenderPredicate
}

// FallbackOption configures a FallbackFetcher.
type FallbackOption func(*FallbackFetcher)

// WithRenderPredicate replaces the default dynamic-content heuristic.
func WithRenderPredicate(p RenderPredicate) FallbackOption {
	return func(f *FallbackFetcher) {
		f.predicate = p
	}
}

// NewFallback composes two fetchers under the given preference.
func NewFallback(static, rendered Fetcher, prefer Mode, opts ...FallbackOption) *FallbackFetcher {
	f := &FallbackFetcher{
		static:    static,
		rendered:  rendered,
		prefer:    prefer,
		predicate: DefaultRenderPredicate,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch runs the fallback policy.
func (f *FallbackFetcher) Fetch(ctx context.Context, url string, opts Options) (Content, error) {
	if f.prefer == ModeRendered {
		return f.fetchRenderedPreferred(ctx, url, opts)
	}
	return f.fetchStaticPreferred(ctx, url, opts)
}

func (f *FallbackFetcher) fetchRenderedPreferred(ctx context.Context, url string, opts Options) (Content, error) {
	content, rErr := f.rendered.Fetch(ctx, url, opts)
	if rErr == nil {
		return content, nil
	}

	logger.Debug("rendered fetch failed, falling back to static", "url", url, "error", rErr)

	content, sErr := f.static.Fetch(ctx, url, opts)
	if sErr == nil {
		return content, nil
	}

	return content, fmt.Errorf("all fetch strategies failed: %w", errors.Join(rErr, sErr))
}

func (f *FallbackFetcher) fetchStaticPreferred(ctx context.Context, url string, opts Options) (Content, error) {
	content, sErr := f.static.Fetch(ctx, url, opts)
	if sErr == nil {
		return content, nil
	}

	if !opts.IsRetry && !f.predicate(sErr) {
		// Nothing suggests the page needs rendering; surface the
		// static error unchanged.
		return content, sErr
	}

	logger.Debug("static fetch failed, falling back to rendered",
		"url", url, "is_retry", opts.IsRetry, "error", sErr)

	content, rErr := f.rendered.Fetch(ctx, url, opts)
	if rErr == nil {
		return content, nil
	}

	return content, fmt.Errorf("all fetch strategies failed: %w", errors.Join(sErr, rErr))
}

// Close releases both underlying fetchers.
func (f *FallbackFetcher) Close() error {
	var errs []error
	if f.static != nil {
		errs = append(errs, f.static.Close())
	}
	if f.rendered != nil {
		errs = append(errs, f.rendered.Close())
	}
	return errors.Join(errs...)
}

// Type returns the fetcher type.
func (f *FallbackFetcher) Type() string { return "fallback" }
