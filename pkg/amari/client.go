package amari

import (
	"context"
	"strings"

	"github.com/amari-ai/go-amari/pkg/augment"
	"github.com/amari-ai/go-amari/pkg/factory"
	"github.com/amari-ai/go-amari/pkg/llm"
	"github.com/amari-ai/go-amari/pkg/search"
)

// Client is the drop-in chat client. Every completion passes through
// the live-search middleware; throttled calls are retried with backoff.
type Client struct {
	inner     llm.Client
	completer llm.ChatCompleter
	model     string
	cache     *search.Cache
}

// New creates a client from config. It resolves both API keys, builds
// the provider client and the search backend, and wires the live-search
// middleware between them.
func New(cfg Config) (*Client, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = "openai"
	}

	apiKey, err := cfg.resolveAPIKey(provider)
	if err != nil {
		return nil, err
	}

	model := cfg.Model
	if model == "" {
		model = defaultModelFor(provider)
	}

	retriever := cfg.Retriever
	if retriever == nil {
		name := cfg.SearchProvider
		if name == "" {
			name = DefaultSearchProvider
		}
		searchCfg := search.Config{Timeout: cfg.RetrievalTimeout}
		switch {
		case keyedSearchProviders[name]:
			searchKey, err := cfg.resolveAmariKey()
			if err != nil {
				return nil, err
			}
			searchCfg.APIKey = searchKey
		case name == "multi":
			// multi runs keyless on DuckDuckGo; the hosted API joins the
			// fan-out when a key resolves.
			if searchKey, err := cfg.resolveAmariKey(); err == nil {
				searchCfg.APIKey = searchKey
			}
		}
		retriever, err = search.New(name, searchCfg)
		if err != nil {
			return nil, err
		}
	}

	var cache *search.Cache
	if !cfg.DisableCache {
		cache = search.NewCache(search.CacheConfig{TTL: cfg.CacheTTL})
		retriever = search.Cached(retriever, cache)
	}

	base, err := factory.New().CreateClient(llm.ClientConfig{
		Provider:   provider,
		Model:      model,
		APIKey:     apiKey,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		closeCache(cache)
		return nil, err
	}

	snippetBudget := cfg.SnippetBudget
	if snippetBudget <= 0 {
		snippetBudget = augment.BudgetForModel(base.GetModelInfo())
	}

	liveSearch, err := augment.NewLiveSearch(augment.Config{
		Retriever:        retriever,
		Classifier:       cfg.Classifier,
		Extractor:        cfg.Extractor,
		MaxResults:       cfg.MaxResults,
		Freshness:        cfg.SearchFreshness,
		SnippetBudget:    snippetBudget,
		RetrievalTimeout: cfg.RetrievalTimeout,
	})
	if err != nil {
		closeCache(cache)
		_ = base.Close()
		return nil, err
	}

	inner := llm.ClientWithMiddleware(base, []llm.Middleware{liveSearch})

	retryCfg := llm.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retryCfg.MaxRetries = cfg.MaxRetries
	}

	return &Client{
		inner:     inner,
		completer: llm.RetryChatCompletion(inner, retryCfg),
		model:     model,
		cache:     cache,
	}, nil
}

// FromEnv creates a client entirely from environment variables. The
// model provider is probed in the usual priority order and the search
// key comes from AMARI_API_KEY.
func FromEnv() (*Client, error) {
	base := llm.GetLLMFromEnv()
	return New(Config{
		Provider: base.Provider,
		Model:    base.Model,
		APIKey:   base.APIKey,
		BaseURL:  base.BaseURL,
		Timeout:  base.Timeout,
	})
}

// ChatCompletion performs a chat completion. The model may be "" to use
// the configured default. The response has the provider's own shape;
// the text of the first choice is resp.GetText().
func (c *Client) ChatCompletion(ctx context.Context, model string, messages []llm.Message, opts ...CallOption) (*llm.ChatResponse, error) {
	req := c.buildRequest(model, messages, opts)
	return c.completer.ChatCompletion(ctx, req)
}

// StreamChatCompletion performs a streaming chat completion. Search
// injection happens before the stream opens; the events themselves pass
// through unchanged.
func (c *Client) StreamChatCompletion(ctx context.Context, model string, messages []llm.Message, opts ...CallOption) (<-chan llm.StreamEvent, error) {
	req := c.buildRequest(model, messages, opts)
	req.Stream = true
	return c.inner.StreamChatCompletion(ctx, req)
}

func (c *Client) buildRequest(model string, messages []llm.Message, opts []CallOption) llm.ChatRequest {
	if model == "" {
		model = c.model
	}
	req := llm.ChatRequest{
		Model:    model,
		Messages: messages,
	}
	for _, opt := range opts {
		opt(&req)
	}
	return req
}

// Model returns the configured default model.
func (c *Client) Model() string {
	return c.model
}

// ModelInfo returns capability information for the underlying model.
func (c *Client) ModelInfo() llm.ModelInfo {
	return c.inner.GetModelInfo()
}

// Underlying exposes the middleware-wrapped provider client for callers
// that need the full request surface.
func (c *Client) Underlying() llm.Client {
	return c.inner
}

// SearchCacheStats returns search cache hit and miss counters. Both are
// zero when caching is disabled.
func (c *Client) SearchCacheStats() (hits, misses int64) {
	if c.cache == nil {
		return 0, 0
	}
	return c.cache.Stats()
}

// Close releases the search cache and the provider client.
func (c *Client) Close() error {
	closeCache(c.cache)
	return c.inner.Close()
}

func closeCache(cache *search.Cache) {
	if cache != nil {
		_ = cache.Close()
	}
}
