package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestNewProvider_Unknown(t *testing.T) {
	_, err := NewProvider("nope", Config{})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewProvider_RequiresAPIKey(t *testing.T) {
	for _, name := range []string{"anthropic", "openai", "openrouter"} {
		if _, err := NewProvider(name, Config{}); err == nil {
			t.Errorf("%s: expected error without API key", name)
		}
	}
}

func TestRegisterProvider_Custom(t *testing.T) {
	RegisterProvider("custom-test", func(cfg Config) (Provider, error) {
		return &fakeProvider{}, nil
	})
	if !IsRegistered("custom-test") {
		t.Fatal("custom provider should be registered")
	}
	p, err := NewProvider("custom-test", Config{})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if p.Name() != "fake" {
		t.Errorf("unexpected provider: %s", p.Name())
	}
}

type fakeProvider struct{}

func (f *fakeProvider) Execute(context.Context, Request) (*Response, error) {
	return &Response{Content: "{}"}, nil
}
func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-1" }

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		want   ErrorKind
	}{
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusForbidden, KindForbidden},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusInternalServerError, KindUnavailable},
		{http.StatusBadGateway, KindUnavailable},
		{http.StatusServiceUnavailable, KindUnavailable},
		{http.StatusBadRequest, KindGeneric},
		{0, KindGeneric},
	}

	for _, tc := range cases {
		if got := classifyStatus(tc.status); got != tc.want {
			t.Errorf("status %d: expected %s, got %s", tc.status, tc.want, got)
		}
	}
}

func TestProviderError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := newProviderError("openai", http.StatusTooManyRequests, inner)
	if !errors.Is(err, inner) {
		t.Error("ProviderError should unwrap to the inner error")
	}
	if err.Kind != KindRateLimited {
		t.Errorf("expected rate_limited, got %s", err.Kind)
	}
}
