// Package pagesift extracts structured data from web pages: it
// fetches a page (static HTTP with headless-browser fallback), asks
// an AI provider to extract fields matching a caller-supplied schema,
// and caches extraction results by content hash. Batches run under a
// bounded concurrency limit with input-order results.
package pagesift

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/pagesift/pagesift/internal/logger"
	"github.com/pagesift/pagesift/pkg/cache"
	"github.com/pagesift/pagesift/pkg/extractor"
	"github.com/pagesift/pagesift/pkg/fetcher"
	"github.com/pagesift/pagesift/pkg/llm"
	"github.com/pagesift/pagesift/pkg/schema"
)

// Request describes one extraction.
type Request struct {
	URL          string
	Fields       map[string]string
	Instructions string

	// Schema takes precedence over Fields when set, carrying a named
	// schema loaded from a file.
	Schema *schema.Schema

	// FetchMode overrides the pipeline's retrieval preference for
	// this request; empty uses the default.
	FetchMode fetcher.Mode

	// MaxRetries overrides the pipeline retry count when positive;
	// -1 disables retries; 0 uses the default.
	MaxRetries int

	// Rendered-fetch tuning.
	WaitForSelector string
	WaitPredicate   string
	RemoveSelectors []string
	BlockImages     bool
}

// Result is the outcome of one extraction. Success implies Data is
// non-nil; failure implies Error is non-empty and Err carries the
// typed cause.
type Result struct {
	Success    bool           `json:"success"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	Err        error          `json:"-" yaml:"-"`
	URL        string         `json:"url"`
	Provider   string         `json:"provider,omitempty"`
	Model      string         `json:"model,omitempty"`
	Title      string         `json:"title,omitempty"`
	StatusCode int            `json:"statusCode,omitempty"`
	Cached     bool           `json:"cached,omitempty"`
	Usage      llm.Usage      `json:"usage,omitempty"`
	Elapsed    time.Duration  `json:"elapsed"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Pipeline drives extractions end to end. Construct with New; Close
// releases the shared browser process and other fetcher resources.
type Pipeline struct {
	cfg       Config
	static    fetcher.Fetcher
	rendered  fetcher.Fetcher
	predicate fetcher.RenderPredicate
	extractor extractor.Extractor
	cache     *cache.Cache
	validate  *validator.Validate

	providerName string
	model        string
}

// New builds a Pipeline from options. Unless an extractor is
// injected, a provider must be configured or detectable from the
// environment.
func New(opts ...Option) (*Pipeline, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Pipeline{
		cfg:       cfg,
		validate:  validator.New(),
		predicate: cfg.renderPredicate,
	}

	ext := cfg.extractor
	if ext == nil {
		provider := cfg.llmProvider
		if provider == nil {
			name, apiKey := cfg.Provider, cfg.APIKey
			if name == "" {
				name, apiKey = llm.DetectProvider()
			}
			if name == "" {
				return nil, errors.New("no AI provider configured and no API key found in environment")
			}

			model := cfg.Model
			if model == "" {
				model = llm.GetDefaultModel(name)
			}

			var err error
			provider, err = llm.NewProvider(name, llm.Config{
				APIKey:      apiKey,
				BaseURL:     cfg.BaseURL,
				Model:       model,
				Temperature: cfg.Temperature,
				MaxTokens:   cfg.MaxTokens,
			})
			if err != nil {
				return nil, err
			}
		}
		p.model = provider.Model()
		ext = extractor.NewLLM(provider, extractor.LLMConfig{
			Temperature:    cfg.Temperature,
			MaxTokens:      cfg.MaxTokens,
			MaxContentSize: cfg.MaxContentSize,
		})
	}
	p.extractor = ext
	p.providerName = ext.Name()

	p.static = cfg.staticFetcher
	if p.static == nil {
		sc := fetcher.DefaultStaticConfig()
		if cfg.UserAgent != "" {
			sc.UserAgent = cfg.UserAgent
		}
		sc.Timeout = cfg.Timeout
		p.static = fetcher.NewStatic(sc)
	}

	p.rendered = cfg.renderedFetcher
	if p.rendered == nil {
		bc := fetcher.DefaultBrowserConfig()
		if cfg.UserAgent != "" {
			bc.UserAgent = cfg.UserAgent
		}
		bc.Timeout = cfg.Timeout
		p.rendered = fetcher.NewBrowser(bc)
	}

	if !cfg.DisableCache {
		p.cache = cache.New(cache.Config{
			TTL:        cfg.CacheTTL,
			MaxEntries: cfg.CacheMaxEntries,
			FilePath:   cfg.CacheFilePath,
		})
	}

	return p, nil
}

// Extract runs one URL through the pipeline. It never returns an
// error; every failure is captured in the result. Validation
// failures (bad URL, bad schema) short-circuit without retrying.
func (p *Pipeline) Extract(ctx context.Context, req Request) *Result {
	start := time.Now()

	if err := p.validate.Var(req.URL, "required,url"); err != nil {
		return p.failure(req, start, &ValidationError{
			Field:   "url",
			Message: "must be a valid absolute URL",
		})
	}

	var s schema.Schema
	var err error
	if req.Schema != nil {
		s, err = req.Schema.Normalize()
	} else {
		s, err = schema.New(req.Fields)
	}
	if err != nil {
		return p.failure(req, start, err)
	}

	mode := req.FetchMode
	if mode == "" {
		mode = p.cfg.FetchMode
	}
	fallbackOpts := []fetcher.FallbackOption{}
	if p.predicate != nil {
		fallbackOpts = append(fallbackOpts, fetcher.WithRenderPredicate(p.predicate))
	}
	fb := fetcher.NewFallback(p.static, p.rendered, mode, fallbackOpts...)

	retries := p.cfg.MaxRetries
	if req.MaxRetries > 0 {
		retries = req.MaxRetries
	} else if req.MaxRetries < 0 {
		retries = 0
	}
	policy := p.cfg.Retry
	policy.MaxAttempts = retries + 1

	content, err := retryAttempts(ctx, policy, func(isRetry bool) (fetcher.Content, error) {
		return fb.Fetch(ctx, req.URL, p.fetchOptions(req, isRetry))
	})
	if err != nil {
		return p.failure(req, start, err)
	}

	pageContent := content.HTML
	if pageContent == "" {
		pageContent = content.Text
	}

	var key string
	if p.cache != nil {
		key = cache.Key(pageContent, s, p.providerName, map[string]any{
			"model":        p.model,
			"instructions": req.Instructions,
		})
		if entry, ok := p.cache.Get(key); ok {
			logger.Debug("cache hit", "url", req.URL)
			return &Result{
				Success:    true,
				Data:       entry.Data,
				URL:        req.URL,
				Provider:   p.providerName,
				Model:      p.model,
				Title:      content.Title,
				StatusCode: content.StatusCode,
				Cached:     true,
				Elapsed:    time.Since(start),
				Timestamp:  time.Now(),
			}
		}
	}

	res, err := p.extractor.Extract(ctx, pageContent, s, extractor.Options{
		Instructions: req.Instructions,
	})
	if err != nil {
		return p.failure(req, start, err)
	}

	if p.cache != nil {
		if err := p.cache.Store(key, res.Data, res.Raw); err != nil {
			logger.Warn("cache store failed", "url", req.URL, "error", err)
		}
	}

	return &Result{
		Success:    true,
		Data:       res.Data,
		URL:        req.URL,
		Provider:   res.Provider,
		Model:      res.Model,
		Title:      content.Title,
		StatusCode: content.StatusCode,
		Usage:      res.Usage,
		Elapsed:    time.Since(start),
		Timestamp:  time.Now(),
	}
}

// ExtractBatch runs many requests with at most Concurrency in flight,
// returning one result per request in input order. In continue mode
// per-item failures are recorded in place and the returned error is
// nil; in fail-fast mode the first failure cancels outstanding work
// and is returned as a *BatchError.
func (p *Pipeline) ExtractBatch(ctx context.Context, reqs []Request) ([]*Result, error) {
	results := make([]*Result, len(reqs))
	lim := newLimiter(p.cfg.Concurrency)

	if p.cfg.ContinueOnError {
		g := new(errgroup.Group)
		for i, req := range reqs {
			g.Go(func() error {
				if err := lim.Acquire(ctx); err != nil {
					results[i] = p.failure(req, time.Now(), err)
					return nil
				}
				defer lim.Release()
				results[i] = p.Extract(ctx, req)
				return nil
			})
		}
		_ = g.Wait()
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			if err := lim.Acquire(gctx); err != nil {
				return err
			}
			defer lim.Release()

			res := p.Extract(gctx, req)
			results[i] = res
			if !res.Success {
				return &BatchError{Index: i, URL: req.URL, Err: res.Err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Close releases fetcher resources, including the shared browser
// process.
func (p *Pipeline) Close() error {
	var errs []error
	if p.static != nil {
		errs = append(errs, p.static.Close())
	}
	if p.rendered != nil {
		errs = append(errs, p.rendered.Close())
	}
	return errors.Join(errs...)
}

func (p *Pipeline) fetchOptions(req Request, isRetry bool) fetcher.Options {
	return fetcher.Options{
		UserAgent:       p.cfg.UserAgent,
		Timeout:         p.cfg.Timeout,
		WaitForSelector: req.WaitForSelector,
		WaitPredicate:   req.WaitPredicate,
		RemoveSelectors: req.RemoveSelectors,
		BlockImages:     req.BlockImages,
		IsRetry:         isRetry,
	}
}

func (p *Pipeline) failure(req Request, start time.Time, err error) *Result {
	logger.Debug("extraction failed", "url", req.URL, "error", err)
	return &Result{
		Success:   false,
		Error:     err.Error(),
		Err:       err,
		URL:       req.URL,
		Elapsed:   time.Since(start),
		Timestamp: time.Now(),
	}
}
