package amari

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/amari-ai/go-amari/pkg/augment"
	"github.com/amari-ai/go-amari/pkg/llm"
	"github.com/amari-ai/go-amari/pkg/search"
)

// DefaultSearchProvider is the search backend used when none is named.
const DefaultSearchProvider = "amari"

// Environment variables consulted when a key is not set in the config.
const (
	envOpenAIKey = "OPENAI_API_KEY"
	envAmariKey  = "AMARI_API_KEY"
)

// providerKeyEnv maps providers to the environment variable holding
// their API key. Providers missing from the map need no key.
var providerKeyEnv = map[string]string{
	"openai":     envOpenAIKey,
	"gemini":     "GEMINI_API_KEY",
	"deepseek":   "DEEPSEEK_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
}

// keyedSearchProviders lists search backends that cannot run without
// an API key.
var keyedSearchProviders = map[string]bool{
	"amari":  true,
	"brave":  true,
	"tavily": true,
}

// Config configures a drop-in client. The zero value reads both keys
// from the environment and talks to OpenAI with the default model.
type Config struct {
	// APIKey is the key for the model provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key"`

	// APIKeyPath points at a file holding the provider key. It takes
	// precedence over APIKey. For OpenAI the file content must carry
	// the sk- prefix.
	APIKeyPath string `json:"api_key_path,omitempty" yaml:"api_key_path"`

	// AmariAPIKey is the key for the search backend.
	AmariAPIKey string `json:"amari_api_key,omitempty" yaml:"amari_api_key"`

	// AmariAPIKeyPath points at a file holding the search key. It takes
	// precedence over AmariAPIKey.
	AmariAPIKeyPath string `json:"amari_api_key_path,omitempty" yaml:"amari_api_key_path"`

	// Provider is the model provider name. Default "openai".
	Provider string `json:"provider,omitempty" yaml:"provider"`

	// Model is the default model for calls that do not name one.
	Model string `json:"model,omitempty" yaml:"model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url"`

	// Timeout bounds provider HTTP calls.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout"`

	// MaxRetries overrides how often throttled calls are retried.
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries"`

	// SearchProvider names the search backend. Default "amari".
	SearchProvider string `json:"search_provider,omitempty" yaml:"search_provider"`

	// Retriever replaces the named search backend with a custom one.
	Retriever search.Provider `json:"-" yaml:"-"`

	// DisableCache turns off search result caching.
	DisableCache bool `json:"disable_cache,omitempty" yaml:"disable_cache"`

	// CacheTTL overrides how long search results are cached.
	CacheTTL time.Duration `json:"cache_ttl,omitempty" yaml:"cache_ttl"`

	// MaxResults caps how many search results are injected.
	MaxResults int `json:"max_results,omitempty" yaml:"max_results"`

	// SearchFreshness restricts results to a recency window ("day",
	// "week", "month", "year"). Empty means no restriction.
	SearchFreshness string `json:"search_freshness,omitempty" yaml:"search_freshness"`

	// SnippetBudget caps the injected block size in characters. Zero
	// derives the budget from the model's context window.
	SnippetBudget int `json:"snippet_budget,omitempty" yaml:"snippet_budget"`

	// RetrievalTimeout bounds the search call.
	RetrievalTimeout time.Duration `json:"retrieval_timeout,omitempty" yaml:"retrieval_timeout"`

	// Classifier overrides the live-information intent classifier.
	Classifier augment.IntentClassifier `json:"-" yaml:"-"`

	// Extractor overrides the search query extractor.
	Extractor augment.QueryExtractor `json:"-" yaml:"-"`
}

// resolveAPIKey resolves the model provider key. A key file wins over
// an explicit value, which wins over the environment. Providers that
// run without keys resolve to "".
func (c Config) resolveAPIKey(provider string) (string, error) {
	if c.APIKeyPath != "" {
		data, err := os.ReadFile(c.APIKeyPath)
		if err != nil {
			return "", llm.NewError(llm.ErrCodeMissingAPIKey, llm.ErrTypeAuthentication,
				fmt.Sprintf("could not read API key file: %v", err))
		}
		key := strings.TrimSpace(string(data))
		if provider == "openai" && !strings.HasPrefix(key, "sk-") {
			return "", llm.NewError(llm.ErrCodeInvalidAPIKey, llm.ErrTypeAuthentication,
				fmt.Sprintf("Malformed API key in %s.", c.APIKeyPath))
		}
		return key, nil
	}
	if c.APIKey != "" {
		return c.APIKey, nil
	}

	envVar, needsKey := providerKeyEnv[provider]
	if !needsKey {
		return "", nil
	}
	if key := os.Getenv(envVar); key != "" {
		return key, nil
	}
	return "", llm.NewError(llm.ErrCodeMissingAPIKey, llm.ErrTypeAuthentication,
		fmt.Sprintf("no API key provided: set Config.APIKey, point Config.APIKeyPath at a key file, or set the %s environment variable", envVar))
}

// resolveAmariKey resolves the search backend key with the same
// precedence as resolveAPIKey. No prefix validation is applied.
func (c Config) resolveAmariKey() (string, error) {
	if c.AmariAPIKeyPath != "" {
		data, err := os.ReadFile(c.AmariAPIKeyPath)
		if err != nil {
			return "", llm.NewError(llm.ErrCodeMissingAPIKey, llm.ErrTypeAuthentication,
				fmt.Sprintf("could not read Amari API key file: %v", err))
		}
		return strings.TrimSpace(string(data)), nil
	}
	if c.AmariAPIKey != "" {
		return c.AmariAPIKey, nil
	}
	if key := os.Getenv(envAmariKey); key != "" {
		return key, nil
	}
	return "", llm.NewError(llm.ErrCodeMissingAPIKey, llm.ErrTypeAuthentication,
		fmt.Sprintf("no Amari API key provided: set Config.AmariAPIKey, point Config.AmariAPIKeyPath at a key file, or set the %s environment variable", envAmariKey))
}

// defaultModelFor returns the default model for a provider, or "" when
// the provider has none and the config must name one.
func defaultModelFor(provider string) string {
	switch provider {
	case "openai":
		return llm.DefaultOpenAIModel
	case "gemini":
		return llm.DefaultGeminiModel
	case "deepseek":
		return llm.DefaultDeepSeekModel
	case "openrouter":
		return llm.DefaultOpenRouterModel
	case "ollama":
		return llm.DefaultOllamaModel
	default:
		return ""
	}
}
