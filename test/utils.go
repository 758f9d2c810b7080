// Package test holds integration tests exercising the augmentation
// pipeline end to end: drop-in client, live search middleware, search
// backends and the HTTP proxy.
package test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amari-ai/go-amari/pkg/amari"
	"github.com/amari-ai/go-amari/pkg/search"
)

// headlineRetriever is a canned search backend that records the
// queries it sees.
type headlineRetriever struct {
	mu      sync.Mutex
	queries []string
	results []search.Result
}

func newHeadlineRetriever() *headlineRetriever {
	return &headlineRetriever{
		results: []search.Result{
			{
				Title:   "Markets Today",
				URL:     "https://news.example/markets",
				Snippet: "Stocks closed higher on Tuesday after the rate decision.",
				Score:   0.97,
			},
			{
				Title:   "Rate Decision Coverage",
				URL:     "https://news.example/rates",
				Snippet: "The central bank held rates steady, citing cooling inflation.",
				Score:   0.91,
			},
		},
	}
}

func (r *headlineRetriever) Name() string { return "headlines" }

func (r *headlineRetriever) Search(_ context.Context, query string, _ search.Options) ([]search.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)

	return r.results, nil
}

// Queries returns a copy of the recorded queries.
func (r *headlineRetriever) Queries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.queries...)
}

// newAugmentedClient creates a drop-in client backed by the mock
// provider and the given retriever. No network or keys required.
func newAugmentedClient(t *testing.T, retriever search.Provider) *amari.Client {
	t.Helper()

	client, err := amari.New(amari.Config{
		Provider:  "mock",
		Model:     "test-model",
		Retriever: retriever,
	})
	require.NoError(t, err, "failed to create augmented client")

	t.Cleanup(func() { _ = client.Close() })

	return client
}

// skipWithoutLiveProvider skips tests that need a real model provider.
func skipWithoutLiveProvider(t *testing.T) {
	t.Helper()

	if os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("No live LLM provider available - set OPENAI_API_KEY to run this test")
	}
}
