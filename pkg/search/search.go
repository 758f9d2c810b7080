package search

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// DefaultMaxResults caps how many results a provider returns when the
// caller does not ask for a specific number.
const DefaultMaxResults = 5

// maxSnippetLen bounds snippet length in runes. Longer snippets are
// clipped so injected context stays small.
const maxSnippetLen = 400

// Result is a single item returned by a search provider.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score,omitempty"`
	Source  string  `json:"source,omitempty"`
}

// Options adjusts a single search call. Providers honor the fields their
// API supports and ignore the rest.
type Options struct {
	// MaxResults caps the number of returned results.
	// Zero or negative means DefaultMaxResults.
	MaxResults int

	// Freshness restricts results to a recency window: "day", "week",
	// "month" or "year". Empty means no restriction.
	Freshness string

	// IncludeDomains limits results to the listed domains.
	IncludeDomains []string

	// ExcludeDomains drops results from the listed domains.
	ExcludeDomains []string
}

func (o Options) limit() int {
	if o.MaxResults <= 0 {
		return DefaultMaxResults
	}
	return o.MaxResults
}

// Provider executes a query and returns results.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// Config holds the settings a registry constructor needs to build a
// provider. Provider-specific settings go in Extra.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Extra      map[string]string
}

func (c Config) httpClient(defaultTimeout time.Duration) *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// clipSnippet bounds a snippet to maxSnippetLen runes.
func clipSnippet(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxSnippetLen {
		return s
	}
	return strings.TrimSpace(string(runes[:maxSnippetLen])) + "..."
}
