package pagesift

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pagesift/pagesift/pkg/extractor"
	"github.com/pagesift/pagesift/pkg/fetcher"
	"github.com/pagesift/pagesift/pkg/llm"
	"github.com/pagesift/pagesift/pkg/schema"
)

// stubFetch is a canned fetcher. errFor overrides err per URL.
type stubFetch struct {
	mu       sync.Mutex
	name     string
	content  fetcher.Content
	err      error
	errFor   map[string]error
	calls    int
	lastOpts fetcher.Options
}

func (s *stubFetch) Fetch(_ context.Context, url string, opts fetcher.Options) (fetcher.Content, error) {
	s.mu.Lock()
	s.calls++
	s.lastOpts = opts
	err := s.err
	if e, ok := s.errFor[url]; ok {
		err = e
	}
	s.mu.Unlock()

	if err != nil {
		return fetcher.Content{}, err
	}
	c := s.content
	c.URL = url
	return c, nil
}

func (s *stubFetch) Close() error { return nil }
func (s *stubFetch) Type() string { return s.name }

func (s *stubFetch) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// stubExtract returns canned data.
type stubExtract struct {
	mu    sync.Mutex
	data  map[string]any
	err   error
	calls int
}

func (s *stubExtract) Extract(_ context.Context, _ string, _ schema.Schema, _ extractor.Options) (*extractor.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	return &extractor.Result{
		Data:     s.data,
		Raw:      "raw",
		Usage:    llm.Usage{InputTokens: 10, OutputTokens: 5},
		Model:    "stub-1",
		Provider: "stub",
	}, nil
}

func (s *stubExtract) Name() string { return "stub" }

func (s *stubExtract) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fastRetry() Option {
	return WithRetryPolicy(RetryPolicy{BaseDelay: time.Millisecond, Multiplier: 2})
}

func newTestPipeline(t *testing.T, static, rendered fetcher.Fetcher, ext extractor.Extractor, opts ...Option) *Pipeline {
	t.Helper()
	all := append([]Option{
		WithFetchers(static, rendered),
		WithExtractor(ext),
		fastRetry(),
	}, opts...)
	p, err := New(all...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

func productFields() map[string]string {
	return map[string]string{"title": "string", "price": "number"}
}

func TestExtract_Success(t *testing.T) {
	static := &stubFetch{
		name:    "static",
		content: fetcher.Content{HTML: "<html>widget page</html>", Title: "Widgets", StatusCode: 200},
	}
	ext := &stubExtract{data: map[string]any{"title": "Widget", "price": 9.99}}
	p := newTestPipeline(t, static, &stubFetch{name: "rendered"}, ext)

	result := p.Extract(context.Background(), Request{
		URL:    "https://example.com",
		Fields: productFields(),
	})

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Data["title"] != "Widget" || result.Data["price"] != 9.99 {
		t.Errorf("unexpected data: %v", result.Data)
	}
	if result.URL != "https://example.com" {
		t.Errorf("unexpected URL %q", result.URL)
	}
	if result.Title != "Widgets" || result.StatusCode != 200 {
		t.Errorf("page metadata not carried: %+v", result)
	}
	if result.Provider != "stub" {
		t.Errorf("unexpected provider %q", result.Provider)
	}
}

func TestExtract_BothStrategiesFail(t *testing.T) {
	static := &stubFetch{name: "static", err: errors.New("static fetch got no content")}
	rendered := &stubFetch{name: "rendered", err: errors.New("browser crashed")}
	p := newTestPipeline(t, static, rendered, &stubExtract{})

	result := p.Extract(context.Background(), Request{
		URL:        "https://example.com",
		Fields:     productFields(),
		MaxRetries: -1,
	})

	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Error, "no content") || !strings.Contains(result.Error, "browser crashed") {
		t.Errorf("error should name both failures, got %q", result.Error)
	}
}

func TestExtract_InvalidURLFailsFast(t *testing.T) {
	static := &stubFetch{name: "static"}
	p := newTestPipeline(t, static, &stubFetch{name: "rendered"}, &stubExtract{})

	result := p.Extract(context.Background(), Request{
		URL:    "not a url",
		Fields: productFields(),
	})

	if result.Success {
		t.Fatal("expected failure")
	}
	var verr *ValidationError
	if !errors.As(result.Err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", result.Err)
	}
	if static.callCount() != 0 {
		t.Error("validation failure must not reach the fetcher")
	}
}

func TestExtract_BadSchemaFailsFast(t *testing.T) {
	static := &stubFetch{name: "static"}
	p := newTestPipeline(t, static, &stubFetch{name: "rendered"}, &stubExtract{})

	result := p.Extract(context.Background(), Request{
		URL:    "https://example.com",
		Fields: map[string]string{},
	})

	if result.Success {
		t.Fatal("expected failure")
	}
	var verr *schema.ValidationError
	if !errors.As(result.Err, &verr) {
		t.Fatalf("expected schema validation error, got %T", result.Err)
	}
	if static.callCount() != 0 {
		t.Error("validation failure must not reach the fetcher")
	}
}

func TestExtract_CacheShortCircuitsSecondCall(t *testing.T) {
	static := &stubFetch{
		name:    "static",
		content: fetcher.Content{HTML: "<html>same page</html>", StatusCode: 200},
	}
	ext := &stubExtract{data: map[string]any{"title": "Widget"}}
	p := newTestPipeline(t, static, &stubFetch{name: "rendered"}, ext,
		WithCacheTTL(time.Minute))

	req := Request{URL: "https://example.com", Fields: productFields()}

	first := p.Extract(context.Background(), req)
	if !first.Success || first.Cached {
		t.Fatalf("first call should be a fresh extraction: %+v", first)
	}

	second := p.Extract(context.Background(), req)
	if !second.Success {
		t.Fatalf("second call failed: %q", second.Error)
	}
	if !second.Cached {
		t.Error("second call should be served from cache")
	}
	if ext.callCount() != 1 {
		t.Errorf("extractor should run once, ran %d times", ext.callCount())
	}
	if second.Data["title"] != "Widget" {
		t.Errorf("cached data mismatch: %v", second.Data)
	}
}

func TestExtract_RetryEscalatesToBrowser(t *testing.T) {
	// Static failure text matches no dynamic-content token, so the
	// first attempt surfaces it unchanged; the retry sets IsRetry and
	// the fallback escalates to the browser.
	static := &stubFetch{name: "static", err: errors.New("connection refused")}
	rendered := &stubFetch{
		name:    "rendered",
		content: fetcher.Content{HTML: "<html>rendered</html>", StatusCode: 200},
	}
	ext := &stubExtract{data: map[string]any{"title": "x"}}
	p := newTestPipeline(t, static, rendered, ext, WithoutCache())

	result := p.Extract(context.Background(), Request{
		URL:    "https://example.com",
		Fields: productFields(),
	})

	if !result.Success {
		t.Fatalf("expected success via browser on retry, got %q", result.Error)
	}
	if static.callCount() != 2 {
		t.Errorf("expected 2 static attempts, got %d", static.callCount())
	}
	if rendered.callCount() != 1 {
		t.Errorf("expected 1 rendered attempt, got %d", rendered.callCount())
	}
}

func TestExtract_RenderedPreferred(t *testing.T) {
	static := &stubFetch{name: "static", content: fetcher.Content{HTML: "static html"}}
	rendered := &stubFetch{name: "rendered", content: fetcher.Content{HTML: "rendered html"}}
	ext := &stubExtract{data: map[string]any{"title": "x"}}
	p := newTestPipeline(t, static, rendered, ext, WithoutCache())

	result := p.Extract(context.Background(), Request{
		URL:       "https://example.com",
		Fields:    productFields(),
		FetchMode: fetcher.ModeRendered,
	})

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if rendered.callCount() != 1 || static.callCount() != 0 {
		t.Errorf("rendered should be tried first: static=%d rendered=%d",
			static.callCount(), rendered.callCount())
	}
}

func TestExtract_ExtractorErrorSurfaced(t *testing.T) {
	static := &stubFetch{name: "static", content: fetcher.Content{HTML: "<html>x</html>"}}
	provErr := &llm.ProviderError{Provider: "stub", Kind: llm.KindRateLimited, StatusCode: 429}
	p := newTestPipeline(t, static, &stubFetch{name: "rendered"}, &stubExtract{err: provErr})

	result := p.Extract(context.Background(), Request{
		URL:    "https://example.com",
		Fields: productFields(),
	})

	if result.Success {
		t.Fatal("expected failure")
	}
	var perr *llm.ProviderError
	if !errors.As(result.Err, &perr) {
		t.Fatalf("expected provider error preserved, got %T", result.Err)
	}
}

func TestExtractBatch_PreservesOrderWithFailures(t *testing.T) {
	urls := []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	}
	static := &stubFetch{
		name:    "static",
		content: fetcher.Content{HTML: "<html>page</html>"},
		errFor:  map[string]error{"https://example.com/b": errors.New("boom")},
	}
	rendered := &stubFetch{name: "rendered", err: errors.New("browser down")}
	ext := &stubExtract{data: map[string]any{"title": "x"}}
	p := newTestPipeline(t, static, rendered, ext,
		WithoutCache(), WithConcurrency(2), WithContinueOnError(true))

	reqs := make([]Request, len(urls))
	for i, u := range urls {
		reqs[i] = Request{URL: u, Fields: productFields(), MaxRetries: -1}
	}

	results, err := p.ExtractBatch(context.Background(), reqs)
	if err != nil {
		t.Fatalf("continue mode should not return an error: %v", err)
	}
	if len(results) != len(urls) {
		t.Fatalf("expected %d results, got %d", len(urls), len(results))
	}
	for i, r := range results {
		if r == nil {
			t.Fatalf("result %d missing", i)
		}
		if r.URL != urls[i] {
			t.Errorf("result %d out of order: got %q want %q", i, r.URL, urls[i])
		}
	}
	if !results[0].Success || !results[2].Success {
		t.Error("items around the failure should succeed")
	}
	if results[1].Success {
		t.Error("failing item should be recorded as a failure in place")
	}
}

func TestExtractBatch_FailFast(t *testing.T) {
	static := &stubFetch{
		name:    "static",
		content: fetcher.Content{HTML: "<html>page</html>"},
		errFor:  map[string]error{"https://example.com/bad": errors.New("boom")},
	}
	rendered := &stubFetch{name: "rendered", err: errors.New("browser down")}
	ext := &stubExtract{data: map[string]any{"title": "x"}}
	p := newTestPipeline(t, static, rendered, ext,
		WithoutCache(), WithContinueOnError(false))

	reqs := []Request{
		{URL: "https://example.com/ok", Fields: productFields(), MaxRetries: -1},
		{URL: "https://example.com/bad", Fields: productFields(), MaxRetries: -1},
	}

	_, err := p.ExtractBatch(context.Background(), reqs)
	if err == nil {
		t.Fatal("expected batch error in fail-fast mode")
	}
	var berr *BatchError
	if !errors.As(err, &berr) {
		t.Fatalf("expected *BatchError, got %T", err)
	}
	if berr.URL != "https://example.com/bad" {
		t.Errorf("unexpected failing URL %q", berr.URL)
	}
}

func TestNew_RequiresProviderWithoutInjection(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := New()
	if err == nil {
		t.Fatal("expected error when no provider is configured")
	}
}
