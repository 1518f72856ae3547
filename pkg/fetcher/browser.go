package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/pagesift/pagesift/internal/logger"
)

// imageURLPatterns are blocked when Options.BlockImages is set.
var imageURLPatterns = []string{"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg", "*.ico"}

// BrowserConfig holds configuration for the rendered fetcher.
type BrowserConfig struct {
	UserAgent      string
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
}

// DefaultBrowserConfig returns sensible defaults.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		UserAgent:      defaultUserAgent,
		Timeout:        30 * time.Second,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
	}
}

// BrowserFetcher renders pages with a headless browser. One browser
// process is shared across all fetches and started on first use; each
// Fetch opens its own page (tab) which is closed on every exit path.
// Close shuts the shared process down and must be called once at
// shutdown.
type BrowserFetcher struct {
	config BrowserConfig

	startOnce  sync.Once
	startErr   error
	browserCtx context.Context
	cancels    []context.CancelFunc
}

// NewBrowser creates a rendered fetcher. The browser process is not
// launched until the first Fetch.
func NewBrowser(cfg BrowserConfig) *BrowserFetcher {
	def := DefaultBrowserConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.ViewportWidth == 0 {
		cfg.ViewportWidth = def.ViewportWidth
	}
	if cfg.ViewportHeight == 0 {
		cfg.ViewportHeight = def.ViewportHeight
	}
	return &BrowserFetcher{config: cfg}
}

// start launches the shared browser process.
func (f *BrowserFetcher) start() error {
	f.startOnce.Do(func() {
		logger.Debug("starting shared browser process",
			"user_agent", f.config.UserAgent,
			"viewport", fmt.Sprintf("%dx%d", f.config.ViewportWidth, f.config.ViewportHeight))

		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.UserAgent(f.config.UserAgent),
			chromedp.WindowSize(f.config.ViewportWidth, f.config.ViewportHeight),
		)

		allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
		browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

		// Prime the browser so later page contexts attach to one
		// shared process instead of each launching their own.
		if err := chromedp.Run(browserCtx); err != nil {
			cancelBrowser()
			cancelAlloc()
			f.startErr = fmt.Errorf("failed to start browser: %w", err)
			return
		}

		f.browserCtx = browserCtx
		f.cancels = []context.CancelFunc{cancelBrowser, cancelAlloc}
	})
	return f.startErr
}

// Fetch renders the page and serializes the resulting document.
// Browser failures surface as *RenderedError, deadline hits as
// *TimeoutError. The deadline abandons the navigation; it does not
// abort work the remote side already started.
func (f *BrowserFetcher) Fetch(ctx context.Context, targetURL string, opts Options) (Content, error) {
	result := Content{
		URL:       targetURL,
		FetchedAt: time.Now(),
	}

	if err := f.start(); err != nil {
		return result, &RenderedError{URL: targetURL, Err: err}
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = f.config.Timeout
	}

	// New page per call; the deferred cancels close the page on every
	// exit path (success, error, timeout, panic).
	pageCtx, cancelPage := chromedp.NewContext(f.browserCtx)
	defer cancelPage()

	timeoutCtx, cancelTimeout := context.WithTimeout(pageCtx, timeout)
	defer cancelTimeout()

	// Honor the caller's context as well.
	stop := context.AfterFunc(ctx, cancelPage)
	defer stop()

	actions := []chromedp.Action{
		network.Enable(),
	}
	if opts.BlockImages {
		actions = append(actions, network.SetBlockedURLs(imageURLPatterns))
	}
	actions = append(actions,
		chromedp.EmulateViewport(int64(f.config.ViewportWidth), int64(f.config.ViewportHeight)),
		chromedp.Navigate(targetURL),
	)

	waitSelector := "body"
	if opts.WaitForSelector != "" {
		waitSelector = opts.WaitForSelector
	}
	actions = append(actions, chromedp.WaitVisible(waitSelector, chromedp.ByQuery))

	if opts.WaitPredicate != "" {
		actions = append(actions, chromedp.Poll(opts.WaitPredicate, nil))
	}

	if opts.WaitDuration > 0 {
		actions = append(actions, chromedp.Sleep(opts.WaitDuration))
	}

	for _, sel := range opts.RemoveSelectors {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			script := fmt.Sprintf(
				`document.querySelectorAll(%q).forEach(function(el){el.remove()});`, sel)
			return chromedp.Evaluate(script, nil).Do(ctx)
		}))
	}

	var html, title string
	actions = append(actions,
		chromedp.OuterHTML("html", &html),
		chromedp.Title(&title),
	)

	logger.Debug("rendered fetch navigating",
		"url", targetURL,
		"wait_selector", waitSelector,
		"block_images", opts.BlockImages)

	if err := chromedp.Run(timeoutCtx, actions...); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return result, &TimeoutError{Op: "rendered fetch", URL: targetURL, Timeout: timeout}
		}
		return result, &RenderedError{URL: targetURL, Err: err}
	}

	result.HTML = html
	result.Title = title
	result.StatusCode = 200 // chromedp doesn't expose the status code

	if strings.TrimSpace(result.HTML) == "" {
		return result, &RenderedError{URL: targetURL, Err: errors.New("empty document after render")}
	}

	if err := parseContent(&result); err != nil {
		return result, &RenderedError{URL: targetURL, Err: fmt.Errorf("failed to parse content: %w", err)}
	}

	logger.Debug("rendered fetch complete",
		"url", targetURL,
		"html_size", len(result.HTML),
		"title", result.Title)
	return result, nil
}

// Close shuts down the shared browser process.
func (f *BrowserFetcher) Close() error {
	for _, cancel := range f.cancels {
		cancel()
	}
	f.cancels = nil
	return nil
}

// Type returns the fetcher type.
func (f *BrowserFetcher) Type() string { return "rendered" }
