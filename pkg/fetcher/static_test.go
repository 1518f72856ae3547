package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const testPage = `<html>
<head><title>Test Page</title></head>
<body>
  <h1>Widget Store</h1>
  <p>A fine widget for $9.99</p>
  <a href="/products/1">Widget One</a>
  <a href="https://other.example.com/x">External</a>
  <script>console.log("ignored")</script>
</body>
</html>`

func TestStaticFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(testPage))
	}))
	defer srv.Close()

	f := NewStatic(DefaultStaticConfig())
	content, err := f.Fetch(context.Background(), srv.URL, Options{})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if content.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", content.StatusCode)
	}
	if content.Title != "Test Page" {
		t.Errorf("expected title 'Test Page', got %q", content.Title)
	}
	if !strings.Contains(content.Text, "Widget Store") {
		t.Errorf("expected body text extracted, got %q", content.Text)
	}
	if strings.Contains(content.Text, "console.log") {
		t.Error("script content should be stripped from text")
	}
	if len(content.Links) != 2 {
		t.Fatalf("expected 2 links, got %v", content.Links)
	}
	if !strings.HasPrefix(content.Links[0], srv.URL) {
		t.Errorf("relative link should be resolved against base, got %q", content.Links[0])
	}
}

func TestStaticFetch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewStatic(DefaultStaticConfig())
	_, err := f.Fetch(context.Background(), srv.URL, Options{})
	if err == nil {
		t.Fatal("expected error for 404 response")
	}

	var serr *ScrapeError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *ScrapeError, got %T: %v", err, err)
	}
	if serr.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404 on error, got %d", serr.StatusCode)
	}
}

func TestStaticFetch_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := NewStatic(DefaultStaticConfig())
	_, err := f.Fetch(context.Background(), srv.URL, Options{})
	if err == nil {
		t.Fatal("expected error for empty body")
	}
	if !strings.Contains(err.Error(), "no content") {
		t.Errorf("empty-body error should mention missing content, got %q", err.Error())
	}
}

func TestStaticFetch_RedirectLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Redirect forever
		http.Redirect(w, r, "/next", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := DefaultStaticConfig()
	cfg.MaxRedirects = 3
	f := NewStatic(cfg)

	_, err := f.Fetch(context.Background(), srv.URL, Options{})
	if err == nil {
		t.Fatal("expected error for redirect loop")
	}
	if !strings.Contains(err.Error(), "redirect") {
		t.Errorf("error should mention redirects, got %q", err.Error())
	}
}

func TestStaticFetch_RedirectsDisabled(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(testPage))
	}))
	defer target.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusMovedPermanently)
	}))
	defer srv.Close()

	cfg := DefaultStaticConfig()
	cfg.DisableRedirects = true
	f := NewStatic(cfg)

	_, err := f.Fetch(context.Background(), srv.URL, Options{})
	if err == nil {
		t.Fatal("expected error when redirects are disabled")
	}
	if !strings.Contains(err.Error(), "redirects disabled") {
		t.Errorf("error should mention disabled redirects, got %q", err.Error())
	}
}

func TestStaticFetch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewStatic(DefaultStaticConfig())
	_, err := f.Fetch(ctx, "http://127.0.0.1:0/", Options{})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestDecodeBody_Latin1(t *testing.T) {
	// "café" in ISO-8859-1
	body := []byte{'c', 'a', 'f', 0xe9}
	got := decodeBody(body, "text/html; charset=iso-8859-1")
	if got != "café" {
		t.Errorf("expected decoded 'café', got %q", got)
	}
}

func TestDecodeBody_InvalidUTF8Fallback(t *testing.T) {
	body := []byte{0xc3, 0x28, 'h', 'i'} // invalid UTF-8 lead byte sequence
	got := decodeBody(body, "")
	if !strings.Contains(got, "hi") {
		t.Errorf("permissive decode should keep valid bytes, got %q", got)
	}
}
