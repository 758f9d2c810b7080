package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// sampleConfig documents every supported config key with its default.
const sampleConfig = `# amari-proxy configuration.
amari:
  # Model provider: openai, gemini, deepseek, openrouter, ollama or bedrock.
  provider: openai
  # Default model for requests that do not name one.
  model: ""
  # Provider API key. Prefer api_key_path or the provider's environment
  # variable over an inline key.
  api_key: ""
  api_key_path: ""
  base_url: ""
  # Provider HTTP timeout and retry count. Zero keeps the client defaults.
  timeout: 0s
  max_retries: 0
  # Search backend: amari, brave, tavily, duckduckgo or multi.
  search_provider: amari
  # Search API key. Prefer amari_api_key_path or AMARI_API_KEY.
  amari_api_key: ""
  amari_api_key_path: ""
  max_results: 5
  # Restrict results to a recency window: day, week, month or year.
  search_freshness: ""
  # Injected context size in characters. Zero derives it from the model.
  snippet_budget: 0
  cache_ttl: 5m
  disable_cache: false
  retrieval_timeout: 10s

proxy:
  listen_address: ":8080"
  read_timeout: 30s
  write_timeout: 5m
  idle_timeout: 2m
  body_limit: "1M"
  # Requests per minute per client IP. Zero disables limiting.
  requests_per_minute: 0
  shutdown_timeout: 5s

log_format: text
`

// NewConfigCommand creates the 'config' command.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:                   "config",
		Short:                 "Print an example config with all supported keys",
		Args:                  cobra.NoArgs,
		DisableFlagsInUseLine: true,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprint(cmd.OutOrStdout(), sampleConfig)
		},
	}
}
