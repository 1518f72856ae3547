package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pagesift/pagesift/internal/logger"
	"github.com/pagesift/pagesift/internal/output"
	"github.com/pagesift/pagesift/pkg/fetcher"
	"github.com/pagesift/pagesift/pkg/pagesift"
	"github.com/pagesift/pagesift/pkg/schema"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract structured data from URLs",
	Long: `Fetch web pages and extract structured data using an AI provider.

The schema file defines what data to extract. It can be JSON or YAML,
mapping field names to type tokens (string, text, number, integer,
boolean, array, object, date, url, email, or array<T>).

Examples:
  # Single page extraction
  pagesift extract -u "https://example.com/product" -s schema.json

  # Many URLs, keep going past failures
  pagesift extract -u "https://a.com" -u "https://b.com" -s schema.yaml \
      --continue-on-error

  # JSONL output with just the extracted fields
  pagesift extract -u "https://example.com" -s schema.yaml \
      --format jsonl --data-only

  # Persistent result cache across runs
  pagesift extract -u "https://example.com" -s schema.yaml \
      --cache-file ~/.pagesift-cache.json --cache-ttl 6h`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	flags := extractCmd.Flags()

	// URL inputs
	flags.StringSliceP("url", "u", nil, "URL(s) to extract from (can be repeated)")
	flags.StringP("schema", "s", "", "path to schema file (required)")
	flags.String("instructions", "", "extra extraction instructions passed to the model")

	// Provider settings
	flags.StringP("provider", "p", "", "AI provider: anthropic, openai, openrouter (auto-detects from env vars)")
	flags.StringP("model", "m", "", "model name (provider-specific)")
	flags.StringP("api-key", "k", "", "API key (or use env var)")
	flags.String("base-url", "", "custom API base URL")
	flags.Float64("temperature", 0, "sampling temperature (0 = provider default)")
	flags.Int("max-tokens", 0, "max output tokens (0 = provider default)")
	flags.String("max-content-size", "200KB", "max page content sent to the model (e.g. 100KB, 1MB, 0=unlimited)")

	// Output settings
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml")
	flags.Bool("data-only", false, "emit only the extracted fields, no result envelope")

	// Fetch settings
	flags.String("fetch-mode", "static", "fetch mode: static, rendered")
	flags.Duration("timeout", 30*time.Second, "per-attempt fetch timeout")
	flags.String("user-agent", "", "custom User-Agent")
	flags.String("wait-for", "", "CSS selector to wait for (rendered fetch)")
	flags.StringSlice("remove", nil, "CSS selectors to strip before extraction (rendered fetch)")
	flags.Bool("block-images", false, "skip image requests (rendered fetch)")

	// Retry and batch settings
	flags.Int("max-retries", 2, "fetch retries per URL")
	flags.IntP("concurrency", "c", 3, "concurrent extractions")
	flags.Bool("continue-on-error", true, "record per-URL failures instead of aborting the batch")

	// Cache settings
	flags.Bool("no-cache", false, "disable the extraction result cache")
	flags.Duration("cache-ttl", 24*time.Hour, "cache entry lifetime")
	flags.Int("cache-max-entries", 1000, "max cached extractions")
	flags.String("cache-file", "", "persist the cache to this JSON file")

	_ = extractCmd.MarkFlagRequired("schema")

	_ = viper.BindPFlag("provider", flags.Lookup("provider"))
	_ = viper.BindPFlag("model", flags.Lookup("model"))
	_ = viper.BindPFlag("api_key", flags.Lookup("api-key"))
	_ = viper.BindPFlag("base_url", flags.Lookup("base-url"))
}

func runExtract(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	urls, _ := cmd.Flags().GetStringSlice("url")
	if len(urls) == 0 {
		return cmd.Help()
	}

	schemaPath, _ := cmd.Flags().GetString("schema")
	s, err := schema.FromFile(schemaPath)
	if err != nil {
		logger.Error("failed to load schema", "path", schemaPath, "error", err)
		return err
	}
	logger.Debug("schema loaded", "name", s.Name, "fields", len(s.Fields))

	opts, err := buildPipelineOptions(cmd)
	if err != nil {
		return err
	}

	pipeline, err := pagesift.New(opts...)
	if err != nil {
		logger.Error("failed to initialize pipeline", "error", err)
		return err
	}
	defer func() { _ = pipeline.Close() }()

	writer, cleanup, err := buildWriter(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	instructions, _ := cmd.Flags().GetString("instructions")
	waitFor, _ := cmd.Flags().GetString("wait-for")
	removeSelectors, _ := cmd.Flags().GetStringSlice("remove")
	blockImages, _ := cmd.Flags().GetBool("block-images")

	reqs := make([]pagesift.Request, len(urls))
	for i, u := range urls {
		reqs[i] = pagesift.Request{
			URL:             u,
			Schema:          &s,
			Instructions:    instructions,
			WaitForSelector: waitFor,
			RemoveSelectors: removeSelectors,
			BlockImages:     blockImages,
		}
	}

	logger.Info("starting extraction", "urls", len(urls))
	start := time.Now()

	results, err := pipeline.ExtractBatch(ctx, reqs)
	if err != nil {
		logger.Error("batch failed", "error", err)
		return err
	}

	succeeded, failed := 0, 0
	for _, res := range results {
		if res == nil {
			continue
		}
		if res.Success {
			succeeded++
		} else {
			failed++
			logger.Warn("extraction failed", "url", res.URL, "error", res.Error)
		}
		if err := writer.Write(res); err != nil {
			logger.Error("failed to write output", "error", err)
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	logger.Info("extraction complete",
		"succeeded", succeeded,
		"failed", failed,
		"elapsed", time.Since(start).Round(time.Millisecond))

	if succeeded == 0 && failed > 0 {
		return fmt.Errorf("all %d extractions failed", failed)
	}
	return nil
}

func buildPipelineOptions(cmd *cobra.Command) ([]pagesift.Option, error) {
	var opts []pagesift.Option

	if provider := viper.GetString("provider"); provider != "" {
		opts = append(opts, pagesift.WithProvider(provider, viper.GetString("api_key")))
	}
	if model := viper.GetString("model"); model != "" {
		opts = append(opts, pagesift.WithModel(model))
	}
	if baseURL := viper.GetString("base_url"); baseURL != "" {
		opts = append(opts, pagesift.WithBaseURL(baseURL))
	}

	if temp, _ := cmd.Flags().GetFloat64("temperature"); temp > 0 {
		opts = append(opts, pagesift.WithTemperature(temp))
	}
	if maxTokens, _ := cmd.Flags().GetInt("max-tokens"); maxTokens > 0 {
		opts = append(opts, pagesift.WithMaxTokens(maxTokens))
	}

	maxContentSizeStr, _ := cmd.Flags().GetString("max-content-size")
	if v := strings.TrimSpace(maxContentSizeStr); v != "" && v != "0" {
		size, err := humanize.ParseBytes(v)
		if err != nil {
			logger.Error("invalid max-content-size", "value", v, "error", err)
			return nil, err
		}
		opts = append(opts, pagesift.WithMaxContentSize(int(size)))
	}

	fetchModeStr, _ := cmd.Flags().GetString("fetch-mode")
	switch fetchModeStr {
	case "static", "":
		opts = append(opts, pagesift.WithFetchMode(fetcher.ModeStatic))
	case "rendered":
		opts = append(opts, pagesift.WithFetchMode(fetcher.ModeRendered))
	default:
		return nil, fmt.Errorf("unknown fetch mode: %s (use 'static' or 'rendered')", fetchModeStr)
	}

	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		opts = append(opts, pagesift.WithTimeout(timeout))
	}
	if ua, _ := cmd.Flags().GetString("user-agent"); ua != "" {
		opts = append(opts, pagesift.WithUserAgent(ua))
	}

	maxRetries, _ := cmd.Flags().GetInt("max-retries")
	opts = append(opts, pagesift.WithMaxRetries(maxRetries))

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	opts = append(opts, pagesift.WithConcurrency(concurrency))

	continueOnError, _ := cmd.Flags().GetBool("continue-on-error")
	opts = append(opts, pagesift.WithContinueOnError(continueOnError))

	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		opts = append(opts, pagesift.WithoutCache())
	} else {
		ttl, _ := cmd.Flags().GetDuration("cache-ttl")
		maxEntries, _ := cmd.Flags().GetInt("cache-max-entries")
		opts = append(opts, pagesift.WithCacheTTL(ttl), pagesift.WithCacheMaxEntries(maxEntries))
		if cacheFile, _ := cmd.Flags().GetString("cache-file"); cacheFile != "" {
			opts = append(opts, pagesift.WithCacheFile(cacheFile))
		}
	}

	return opts, nil
}

func buildWriter(cmd *cobra.Command) (output.Writer, func(), error) {
	outFile := os.Stdout
	cleanup := func() {}
	if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
		f, err := os.Create(outPath) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			logger.Error("failed to create output file", "path", outPath, "error", err)
			return nil, nil, err
		}
		outFile = f
		cleanup = func() { _ = f.Close() }
	}

	formatStr, _ := cmd.Flags().GetString("format")
	dataOnly, _ := cmd.Flags().GetBool("data-only")
	writer, err := output.NewWriter(outFile, output.Format(formatStr), output.WithDataOnly(dataOnly))
	if err != nil {
		logger.Error("failed to create output writer", "format", formatStr, "error", err)
		cleanup()
		return nil, nil, err
	}
	return writer, cleanup, nil
}
