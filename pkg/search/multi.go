package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultProviderTimeout = 8 * time.Second
	defaultProviderWeight  = 1.0
	positionBonus          = 0.5
)

// Multi fans a query out to all of its providers concurrently and merges
// the results into a single ranked, URL-deduplicated list. A provider
// failure never fails the whole search unless every provider failed.
type Multi struct {
	providers []Provider
	weights   map[string]float64
	timeout   time.Duration
}

// NewMulti constructs a fan-out searcher over the given providers.
func NewMulti(providers ...Provider) *Multi {
	return &Multi{
		providers: providers,
		timeout:   defaultProviderTimeout,
	}
}

// WithWeights sets per-provider ranking weights by provider name.
// Providers without an entry use the default weight.
func (m *Multi) WithWeights(weights map[string]float64) *Multi {
	m.weights = weights
	return m
}

// WithProviderTimeout bounds each provider call independently of the
// caller's context.
func (m *Multi) WithProviderTimeout(timeout time.Duration) *Multi {
	if timeout > 0 {
		m.timeout = timeout
	}
	return m
}

// Name implements Provider
func (m *Multi) Name() string { return "multi" }

// Search queries every provider concurrently. Results are deduplicated by
// URL, scored, and capped at the requested maximum.
func (m *Multi) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}
	if len(m.providers) == 0 {
		return nil, errors.New("multi: no providers configured")
	}

	perProvider := make([][]Result, len(m.providers))
	errs := make([]error, len(m.providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range m.providers {
		g.Go(func() error {
			sub, cancel := context.WithTimeout(gctx, m.timeout)
			defer cancel()

			results, err := p.Search(sub, query, opts)
			if err != nil {
				// One failing provider must not cancel the others.
				errs[i] = fmt.Errorf("%s: %w", p.Name(), err)
				return nil
			}
			perProvider[i] = results
			return nil
		})
	}
	_ = g.Wait()

	merged := m.merge(query, perProvider)
	if len(merged) == 0 {
		if joined := errors.Join(errs...); joined != nil {
			return nil, joined
		}
		return []Result{}, nil
	}

	if limit := opts.limit(); len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// merge deduplicates by URL and ranks by provider weight, query term
// overlap, per-provider position, and any provider-native score.
func (m *Multi) merge(query string, perProvider [][]Result) []Result {
	queryTerms := termSet(query)

	type scored struct {
		result Result
		score  float64
	}

	best := make(map[string]scored)
	var order []string // first-seen order, keeps ties stable

	for i, results := range perProvider {
		if len(results) == 0 {
			continue
		}
		weight := m.weightFor(m.providers[i].Name())
		for pos, r := range results {
			score := weight
			score += termOverlap(queryTerms, r.Title+" "+r.Snippet)
			score += positionBonus / float64(pos+1)
			score += r.Score

			key := normalizeURL(r.URL)
			if cur, ok := best[key]; !ok {
				best[key] = scored{result: r, score: score}
				order = append(order, key)
			} else if score > cur.score {
				best[key] = scored{result: r, score: score}
			}
		}
	}

	merged := make([]Result, 0, len(order))
	for _, key := range order {
		s := best[key]
		s.result.Score = s.score
		merged = append(merged, s.result)
	}

	sort.SliceStable(merged, func(a, b int) bool {
		return merged[a].Score > merged[b].Score
	})
	return merged
}

func (m *Multi) weightFor(name string) float64 {
	if w, ok := m.weights[name]; ok {
		return w
	}
	return defaultProviderWeight
}

// termSet extracts lowercase query terms, skipping very short words.
func termSet(query string) map[string]bool {
	terms := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) >= 3 {
			terms[w] = true
		}
	}
	return terms
}

// termOverlap returns the fraction of query terms present in the text.
func termOverlap(terms map[string]bool, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	matched := 0
	for term := range terms {
		if strings.Contains(lower, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

// normalizeURL canonicalizes a URL for deduplication.
func normalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	return strings.TrimSuffix(u, "/")
}

func init() {
	// The registered "multi" fans out over DuckDuckGo and, when a key is
	// configured, the hosted Amari API. DuckDuckGo needs no key, so the
	// composite works without one. cfg.BaseURL applies to the hosted API
	// only.
	Register("multi", func(cfg Config) (Provider, error) {
		providers := []Provider{NewDuckDuckGoWithClient("", cfg.HTTPClient)}
		if cfg.APIKey != "" {
			hosted := NewAmariWithBaseURL(cfg.APIKey, cfg.BaseURL)
			if cfg.Timeout > 0 {
				hosted.client.HTTPClient.Timeout = cfg.Timeout
			}
			providers = append(providers, hosted)
		}

		multi := NewMulti(providers...).WithWeights(map[string]float64{"amari": 1.5})
		if cfg.Timeout > 0 {
			multi = multi.WithProviderTimeout(cfg.Timeout)
		}
		return multi, nil
	})
}
