// Package commands implements the CLI commands for pagesift.
package commands

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "pagesift",
	Short: "AI-powered structured data extraction from web pages",
	Long: `Pagesift extracts structured data from web pages using AI providers.

Define a schema for the fields you want, point it at URLs, and get
structured output in JSON, JSONL, or YAML. Pages are fetched over
plain HTTP with automatic fallback to a headless browser for
JavaScript-heavy sites, and extraction results are cached by content
hash so repeat runs don't re-spend AI calls.

Examples:
  # Extract data from a single page
  pagesift extract -u "https://example.com/product" -s schema.yaml

  # Batch extraction with bounded concurrency
  pagesift extract -u "https://a.com" -u "https://b.com" -s schema.json -c 5

  # Force the headless browser and wait for content
  pagesift extract -u "https://spa.example.com" -s schema.yaml \
      --fetch-mode rendered --wait-for ".product-card"

  # Use a specific provider and model
  pagesift extract -u "https://example.com" -s schema.yaml \
      -p openrouter -m anthropic/claude-sonnet-4`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.pagesift.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".pagesift")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PAGESIFT")
	viper.AutomaticEnv()

	// Also check common API key env vars
	_ = viper.BindEnv("api_key", "OPENROUTER_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY")

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
