// Package search provides web search providers used to ground chat
// completions in current information.
//
// Available providers:
//
//   - Amari: the hosted Amari search API, authenticated with a Bearer key
//   - Brave: requires an API key via the X-Subscription-Token header
//   - Tavily: requires an API key, supports basic/advanced depth modes
//   - DuckDuckGo: free, no API key required (scrapes lite.duckduckgo.com)
//   - Multi: concurrent fan-out over several providers with merged ranking
//
// Results can be cached with a TTL cache:
//
//	cache := search.NewCache(search.CacheConfig{TTL: 5 * time.Minute})
//	provider := search.Cached(search.NewAmari(apiKey), cache)
//	results, err := provider.Search(ctx, "golang 1.24 release notes", search.Options{})
//
// Providers are also constructible by name through the registry:
//
//	provider, err := search.New("brave", search.Config{APIKey: key})
package search
