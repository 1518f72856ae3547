package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenRouter_Execute(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{
					"message":       map[string]any{"role": "assistant", "content": `{"title":"Widget"}`},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5},
		})
	}))
	defer srv.Close()

	p, err := NewOpenRouterProvider(Config{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewOpenRouterProvider failed: %v", err)
	}

	resp, err := p.Execute(context.Background(), Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "extract data"},
			{Role: RoleUser, Content: "page content"},
		},
		MaxTokens:  256,
		JSONSchema: map[string]any{"type": "object"},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("expected bearer auth header, got %q", gotAuth)
	}
	if resp.Content != `{"title":"Widget"}` {
		t.Errorf("unexpected content: %q", resp.Content)
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 5 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
	if resp.Model != "test-model" {
		t.Errorf("unexpected model: %q", resp.Model)
	}

	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Errorf("expected 2 messages sent, got %v", gotBody["messages"])
	}
	if _, ok := gotBody["response_format"]; !ok {
		t.Error("expected JSON-output hint in request body")
	}
}

func TestOpenRouter_StatusClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusForbidden, KindForbidden},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusServiceUnavailable, KindUnavailable},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", tc.status)
		}))

		p, err := NewOpenRouterProvider(Config{APIKey: "sk-test", BaseURL: srv.URL})
		if err != nil {
			t.Fatalf("NewOpenRouterProvider failed: %v", err)
		}

		_, err = p.Execute(context.Background(), Request{
			Messages: []Message{{Role: RoleUser, Content: "x"}},
		})
		srv.Close()

		var perr *ProviderError
		if !errors.As(err, &perr) {
			t.Fatalf("status %d: expected *ProviderError, got %T", tc.status, err)
		}
		if perr.Kind != tc.kind {
			t.Errorf("status %d: expected kind %s, got %s", tc.status, tc.kind, perr.Kind)
		}
		if perr.StatusCode != tc.status {
			t.Errorf("expected status %d recorded, got %d", tc.status, perr.StatusCode)
		}
	}
}
