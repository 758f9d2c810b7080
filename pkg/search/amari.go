package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	defaultAmariBaseURL = "https://api.amari.ai/v1"

	amariRetryMax     = 2
	amariRetryWaitMin = 200 * time.Millisecond
	amariRetryWaitMax = 2 * time.Second

	maxErrorBodySize = 4 << 10
)

// Amari calls the hosted Amari search API.
type Amari struct {
	APIKey  string
	baseURL string
	client  *retryablehttp.Client
}

// NewAmari constructs an Amari search provider with retrying transport.
func NewAmari(apiKey string) *Amari {
	return NewAmariWithBaseURL(apiKey, defaultAmariBaseURL)
}

// NewAmariWithBaseURL constructs an Amari search provider against a custom
// endpoint. Useful for testing and self-hosted deployments.
func NewAmariWithBaseURL(apiKey, baseURL string) *Amari {
	if baseURL == "" {
		baseURL = defaultAmariBaseURL
	}

	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = amariRetryMax
	client.RetryWaitMin = amariRetryWaitMin
	client.RetryWaitMax = amariRetryWaitMax
	client.HTTPClient.Timeout = 10 * time.Second

	return &Amari{
		APIKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

// Name implements Provider
func (a *Amari) Name() string { return "amari" }

// Search posts a query to the Amari search API. Transient failures and
// 5xx responses are retried with backoff by the underlying client.
func (a *Amari) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}
	if strings.TrimSpace(a.APIKey) == "" {
		return nil, errors.New("amari: API key is missing")
	}

	body := map[string]any{
		"query":       query,
		"max_results": opts.limit(),
	}
	if opts.Freshness != "" {
		body["freshness"] = opts.Freshness
	}
	if len(opts.IncludeDomains) > 0 {
		body["include_domains"] = opts.IncludeDomains
	}
	if len(opts.ExcludeDomains) > 0 {
		body["exclude_domains"] = opts.ExcludeDomains
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, a.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.APIKey)

	resp, err := a.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, fmt.Errorf("amari search http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response struct {
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Snippet string  `json:"snippet"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(response.Results))
	for _, r := range response.Results {
		results = append(results, Result{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: clipSnippet(r.Snippet),
			Score:   r.Score,
			Source:  "amari",
		})
		if len(results) >= opts.limit() {
			break
		}
	}

	return results, nil
}

func init() {
	Register("amari", func(cfg Config) (Provider, error) {
		provider := NewAmariWithBaseURL(cfg.APIKey, cfg.BaseURL)
		if cfg.Timeout > 0 {
			provider.client.HTTPClient.Timeout = cfg.Timeout
		}
		return provider, nil
	})
}
