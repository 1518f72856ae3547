package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"

	"github.com/pagesift/pagesift/internal/logger"
)

// Chrome user agent for better compatibility with bot-protected sites
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// StaticConfig holds configuration for the static fetcher.
type StaticConfig struct {
	UserAgent        string
	Timeout          time.Duration
	MaxRedirects     int  // redirect hop limit
	DisableRedirects bool // error on any redirect
}

// DefaultStaticConfig returns sensible defaults.
func DefaultStaticConfig() StaticConfig {
	return StaticConfig{
		UserAgent:    defaultUserAgent,
		Timeout:      30 * time.Second,
		MaxRedirects: 10,
	}
}

// StaticFetcher retrieves pages with a single HTTP GET via Colly.
type StaticFetcher struct {
	config StaticConfig
}

// NewStatic creates a new static fetcher.
func NewStatic(cfg StaticConfig) *StaticFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = DefaultStaticConfig().MaxRedirects
	}
	return &StaticFetcher{config: cfg}
}

// Fetch retrieves page content. Timeouts surface as *TimeoutError,
// HTTP and transport failures as *ScrapeError.
func (f *StaticFetcher) Fetch(ctx context.Context, targetURL string, opts Options) (Content, error) {
	if err := ctx.Err(); err != nil {
		return Content{}, err
	}

	logger.Debug("static fetch starting", "url", targetURL)

	result := Content{
		URL:       targetURL,
		FetchedAt: time.Now(),
	}

	userAgent := coalesce(opts.UserAgent, f.config.UserAgent)
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
	)

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = f.config.Timeout
	}
	c.SetRequestTimeout(timeout)

	// Manual redirect policy: refuse when disabled, cap the hop count.
	c.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		if f.config.DisableRedirects {
			return fmt.Errorf("redirect to %s refused: redirects disabled", req.URL)
		}
		if len(via) >= f.config.MaxRedirects {
			return fmt.Errorf("stopped after %d redirects", f.config.MaxRedirects)
		}
		return nil
	})

	if len(opts.Headers) > 0 {
		c.OnRequest(func(r *colly.Request) {
			for k, v := range opts.Headers {
				r.Headers.Set(k, v)
			}
		})
	}
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
		result.ContentType = r.Headers.Get("Content-Type")
		result.HTML = decodeBody(r.Body, result.ContentType)
		logger.Debug("static fetch response received",
			"status", r.StatusCode,
			"content_type", result.ContentType,
			"body_size", len(r.Body))
	})

	c.OnError(func(r *colly.Response, err error) {
		statusCode := 0
		if r != nil {
			statusCode = r.StatusCode
			result.StatusCode = statusCode
		}
		fetchErr = classifyStaticErr(targetURL, statusCode, timeout, err)
	})

	if err := c.Visit(targetURL); err != nil {
		if fetchErr != nil {
			return result, fetchErr
		}
		return result, classifyStaticErr(targetURL, result.StatusCode, timeout, err)
	}

	if fetchErr != nil {
		return result, fetchErr
	}

	if strings.TrimSpace(result.HTML) == "" {
		return result, &ScrapeError{URL: targetURL, StatusCode: result.StatusCode,
			Err: errors.New("no content in response body")}
	}

	if err := parseContent(&result); err != nil {
		return result, &ScrapeError{URL: targetURL, StatusCode: result.StatusCode,
			Err: fmt.Errorf("failed to parse content: %w", err)}
	}

	logger.Debug("static fetch complete",
		"url", targetURL,
		"title", result.Title,
		"text_size", len(result.Text),
		"links_count", len(result.Links))
	return result, nil
}

// Close releases resources.
func (f *StaticFetcher) Close() error { return nil }

// Type returns the fetcher type.
func (f *StaticFetcher) Type() string { return "static" }

// classifyStaticErr maps transport failures to the error taxonomy.
func classifyStaticErr(url string, status int, timeout time.Duration, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Op: "static fetch", URL: url, Timeout: timeout}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: "static fetch", URL: url, Timeout: timeout}
	}
	return &ScrapeError{URL: url, StatusCode: status, Err: err}
}

// decodeBody converts the response body to UTF-8 using the charset
// declared in the Content-Type header, falling back to a permissive
// decode that replaces invalid sequences.
func decodeBody(body []byte, contentType string) string {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err == nil {
		if decoded, err := io.ReadAll(r); err == nil {
			return string(decoded)
		}
	}
	return strings.ToValidUTF8(string(body), "�")
}

// parseContent extracts title, readable text, and links from HTML.
func parseContent(content *Content) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content.HTML))
	if err != nil {
		return err
	}

	content.Title = strings.TrimSpace(doc.Find("title").First().Text())

	// Remove non-content elements before extracting text
	doc.Find("script, style, noscript, iframe, svg").Remove()

	var textParts []string
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		text := cleanText(s.Text())
		if text != "" {
			textParts = append(textParts, text)
		}
	})
	content.Text = strings.Join(textParts, "\n")

	baseURL, _ := url.Parse(content.URL)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || href == "" || strings.HasPrefix(href, "#") {
			return
		}

		linkURL, err := url.Parse(href)
		if err != nil {
			return
		}
		if !linkURL.IsAbs() && baseURL != nil {
			linkURL = baseURL.ResolveReference(linkURL)
		}

		content.Links = append(content.Links, linkURL.String())
	})

	return nil
}

// cleanText normalizes whitespace in text.
func cleanText(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
