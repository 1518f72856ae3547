package extractor

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/pagesift/pagesift/internal/logger"
	"github.com/pagesift/pagesift/pkg/llm"
	"github.com/pagesift/pagesift/pkg/schema"
)

// LLMConfig configures an LLMExtractor.
type LLMConfig struct {
	Temperature    float64
	MaxTokens      int
	MaxContentSize int // 0 = unlimited
}

// DefaultLLMConfig returns sensible defaults.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Temperature:    0.1,
		MaxTokens:      4096,
		MaxContentSize: 200_000,
	}
}

// LLMExtractor adapts any llm.Provider into an Extractor. It builds
// the provider request from content + schema, parses the JSON reply
// (salvaging the first {...} block when direct parsing fails), and
// normalizes the result to the schema's shape.
type LLMExtractor struct {
	provider llm.Provider
	config   LLMConfig
}

// NewLLM creates an extractor backed by the given provider.
func NewLLM(provider llm.Provider, cfg LLMConfig) *LLMExtractor {
	def := DefaultLLMConfig()
	if cfg.Temperature == 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.MaxContentSize == 0 {
		cfg.MaxContentSize = def.MaxContentSize
	}
	return &LLMExtractor{provider: provider, config: cfg}
}

// Extract performs a single extraction call against the provider.
func (e *LLMExtractor) Extract(ctx context.Context, content string, s schema.Schema, opts Options) (*Result, error) {
	prompt := BuildPrompt(content, s, opts.Instructions, e.config.MaxContentSize)

	logger.Debug("extractor calling provider",
		"provider", e.provider.Name(),
		"model", e.provider.Model(),
		"content_size", len(content),
		"prompt_size", len(prompt))

	resp, err := e.provider.Execute(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: SystemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:   e.config.MaxTokens,
		Temperature: e.config.Temperature,
		JSONSchema:  s.ToJSONSchema(),
	})
	if err != nil {
		return nil, err
	}

	data, err := ParseResponse(resp.Content)
	if err != nil {
		return nil, err
	}

	return &Result{
		Data:     Normalize(data, s),
		Raw:      resp.Content,
		Usage:    resp.Usage,
		Model:    resp.Model,
		Provider: e.provider.Name(),
		Duration: resp.Duration,
	}, nil
}

// Name returns the extractor identifier.
func (e *LLMExtractor) Name() string { return e.provider.Name() }

// jsonBlockRe matches the first '{' through the last '}' so a JSON
// object wrapped in prose or code fences can be salvaged.
var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// ParseResponse parses provider output as a JSON object, falling back
// to extracting the first {...} block.
func ParseResponse(raw string) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err == nil {
		return data, nil
	}

	block := jsonBlockRe.FindString(raw)
	if block == "" {
		return nil, newParseError(raw, errNoJSONObject)
	}
	if err := json.Unmarshal([]byte(block), &data); err != nil {
		return nil, newParseError(raw, err)
	}
	return data, nil
}

var errNoJSONObject = jsonError("no JSON object found in response")

type jsonError string

func (e jsonError) Error() string { return string(e) }
