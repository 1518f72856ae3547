package pagesift

import (
	"time"

	"github.com/pagesift/pagesift/pkg/extractor"
	"github.com/pagesift/pagesift/pkg/fetcher"
	"github.com/pagesift/pagesift/pkg/llm"
)

// Config holds pipeline configuration. Zero values fall back to the
// defaults below; construct via New with functional options.
type Config struct {
	// Provider selection. When Provider is empty, the provider is
	// auto-detected from API key environment variables.
	Provider string
	Model    string
	APIKey   string
	BaseURL  string

	// Extraction tuning.
	Temperature    float64
	MaxTokens      int
	MaxContentSize int

	// Fetching.
	FetchMode fetcher.Mode
	UserAgent string
	Timeout   time.Duration // per fetch attempt

	// Retry and batch behavior.
	MaxRetries      int // retries beyond the first attempt
	Retry           RetryPolicy
	Concurrency     int
	ContinueOnError bool

	// Cache.
	DisableCache    bool
	CacheTTL        time.Duration
	CacheMaxEntries int
	CacheFilePath   string

	// Injection points, used by tests and embedders.
	llmProvider     llm.Provider
	extractor       extractor.Extractor
	staticFetcher   fetcher.Fetcher
	renderedFetcher fetcher.Fetcher
	renderPredicate fetcher.RenderPredicate
}

func defaultConfig() Config {
	return Config{
		FetchMode:       fetcher.ModeStatic,
		Timeout:         30 * time.Second,
		MaxRetries:      2,
		Retry:           DefaultRetryPolicy(),
		Concurrency:     3,
		ContinueOnError: true,
		CacheTTL:        24 * time.Hour,
		CacheMaxEntries: 1000,
	}
}

// Option configures a Pipeline.
type Option func(*Config)

// WithProvider selects the AI provider by name (anthropic, openai,
// openrouter, or anything registered via llm.RegisterProvider).
func WithProvider(name, apiKey string) Option {
	return func(c *Config) {
		c.Provider = name
		c.APIKey = apiKey
	}
}

// WithModel overrides the provider's default model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithBaseURL points the provider at a custom endpoint.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithTemperature sets the sampling temperature for extraction calls.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = t }
}

// WithMaxTokens caps the provider's output tokens.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// WithMaxContentSize caps page content size before the provider call.
func WithMaxContentSize(n int) Option {
	return func(c *Config) { c.MaxContentSize = n }
}

// WithFetchMode sets the default retrieval preference.
func WithFetchMode(mode fetcher.Mode) Option {
	return func(c *Config) { c.FetchMode = mode }
}

// WithUserAgent sets the User-Agent for both fetch strategies.
func WithUserAgent(ua string) Option {
	return func(c *Config) { c.UserAgent = ua }
}

// WithTimeout sets the per-attempt fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithMaxRetries sets the default retry count for fetch failures.
func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

// WithRetryPolicy replaces the backoff schedule. MaxAttempts is
// derived per request from the retry count; BaseDelay and Multiplier
// are taken from the policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Config) { c.Retry = p }
}

// WithConcurrency bounds simultaneous extractions in a batch.
func WithConcurrency(n int) Option {
	return func(c *Config) { c.Concurrency = n }
}

// WithContinueOnError controls batch failure handling: true records
// per-item failures in place, false fails the batch on the first one.
func WithContinueOnError(v bool) Option {
	return func(c *Config) { c.ContinueOnError = v }
}

// WithoutCache disables the extraction result cache.
func WithoutCache() Option {
	return func(c *Config) { c.DisableCache = true }
}

// WithCacheTTL sets how long cached extractions stay valid.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Config) { c.CacheTTL = d }
}

// WithCacheMaxEntries bounds the cache size.
func WithCacheMaxEntries(n int) Option {
	return func(c *Config) { c.CacheMaxEntries = n }
}

// WithCacheFile persists the cache to a JSON file across runs.
func WithCacheFile(path string) Option {
	return func(c *Config) { c.CacheFilePath = path }
}

// WithLLMProvider injects an already-constructed provider, bypassing
// the registry.
func WithLLMProvider(p llm.Provider) Option {
	return func(c *Config) { c.llmProvider = p }
}

// WithExtractor injects a custom extractor, bypassing provider setup
// entirely.
func WithExtractor(e extractor.Extractor) Option {
	return func(c *Config) { c.extractor = e }
}

// WithFetchers injects the static and rendered fetchers.
func WithFetchers(static, rendered fetcher.Fetcher) Option {
	return func(c *Config) {
		c.staticFetcher = static
		c.renderedFetcher = rendered
	}
}

// WithRenderPredicate replaces the heuristic deciding when a failed
// static fetch escalates to the browser.
func WithRenderPredicate(p fetcher.RenderPredicate) Option {
	return func(c *Config) { c.renderPredicate = p }
}
