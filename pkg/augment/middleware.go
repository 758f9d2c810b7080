package augment

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/amari-ai/go-amari/pkg/llm"
	"github.com/amari-ai/go-amari/pkg/search"
)

// Metadata keys recorded on augmented requests. Callers can inspect
// them after the call to see whether a search was injected and why a
// request was skipped.
const (
	MetadataKeyAugmented  = "live_search"
	MetadataKeyQuery      = "live_search_query"
	MetadataKeyResults    = "live_search_results"
	MetadataKeySkipReason = "live_search_skip"
)

// Values for MetadataKeyAugmented.
const (
	augmentedInjected = "injected"
	augmentedSkipped  = "skipped"
)

// DefaultRetrievalTimeout bounds the search call so a slow provider
// cannot stall the chat completion.
const DefaultRetrievalTimeout = 10 * time.Second

// Config configures the live-search middleware.
type Config struct {
	// Retriever performs the web search. Required.
	Retriever search.Provider

	// Classifier decides whether a request needs live information.
	// nil means the heuristic classifier.
	Classifier IntentClassifier

	// Extractor turns the conversation into a search query.
	// nil means the heuristic extractor.
	Extractor QueryExtractor

	// MaxResults caps how many results are requested.
	// Zero means search.DefaultMaxResults.
	MaxResults int

	// Freshness restricts retrieval to a recency window ("day", "week",
	// "month", "year"). Empty means no restriction.
	Freshness string

	// SnippetBudget caps the injected block size in characters.
	// Zero means DefaultSnippetBudget.
	SnippetBudget int

	// RetrievalTimeout bounds the search call.
	// Zero means DefaultRetrievalTimeout.
	RetrievalTimeout time.Duration
}

// LiveSearch is a middleware that augments chat requests with web
// search results when the user's question needs current information.
//
// The pipeline is classify, extract, retrieve, inject. Every stage
// fails open: on any error the original request goes through
// unmodified and the failure is recorded in the request metadata.
type LiveSearch struct {
	retriever     search.Provider
	classifier    IntentClassifier
	extractor     QueryExtractor
	maxResults    int
	freshness     string
	snippetBudget int
	timeout       time.Duration
}

// NewLiveSearch creates the middleware from config, filling defaults
// for every optional field.
func NewLiveSearch(cfg Config) (*LiveSearch, error) {
	if cfg.Retriever == nil {
		return nil, llm.NewError("missing_retriever", llm.ErrTypeInvalidRequest, "live search requires a retriever")
	}
	ls := &LiveSearch{
		retriever:     cfg.Retriever,
		classifier:    cfg.Classifier,
		extractor:     cfg.Extractor,
		maxResults:    cfg.MaxResults,
		freshness:     cfg.Freshness,
		snippetBudget: cfg.SnippetBudget,
		timeout:       cfg.RetrievalTimeout,
	}
	if ls.classifier == nil {
		ls.classifier = NewHeuristicClassifier()
	}
	if ls.extractor == nil {
		ls.extractor = NewHeuristicExtractor()
	}
	if ls.maxResults <= 0 {
		ls.maxResults = search.DefaultMaxResults
	}
	if ls.snippetBudget <= 0 {
		ls.snippetBudget = DefaultSnippetBudget
	}
	if ls.timeout <= 0 {
		ls.timeout = DefaultRetrievalTimeout
	}
	return ls, nil
}

// Name implements llm.Middleware.
func (ls *LiveSearch) Name() string {
	return "live_search"
}

// ProcessRequest implements llm.Middleware. It inspects the last user
// message and, when live information is needed, inserts a system
// message with search results directly before it. The incoming request
// is never mutated; an augmented request is always a deep copy.
func (ls *LiveSearch) ProcessRequest(ctx context.Context, req *llm.ChatRequest) (*llm.ChatRequest, error) {
	if _, done := req.GetMetadata(MetadataKeyAugmented); done {
		return req, nil
	}

	userIdx := req.LastUserIndex()
	if userIdx < 0 {
		return ls.skip(req, "no user message"), nil
	}

	decision, err := ls.classifier.NeedsLiveInfo(ctx, req.Messages)
	if err != nil {
		slog.Debug("live search classifier failed", slog.Any("error", err))
		return ls.skip(req, "classifier error"), nil
	}
	if !decision.NeedsSearch {
		return ls.skip(req, "not needed: "+decision.Reason), nil
	}

	query, err := ls.extractor.Extract(ctx, req.Messages)
	if err != nil {
		slog.Debug("live search query extraction failed", slog.Any("error", err))
		return ls.skip(req, "extractor error"), nil
	}
	if query == "" {
		return ls.skip(req, "empty query"), nil
	}

	searchCtx, cancel := context.WithTimeout(ctx, ls.timeout)
	defer cancel()

	results, err := ls.retriever.Search(searchCtx, query, search.Options{
		MaxResults: ls.maxResults,
		Freshness:  ls.freshness,
	})
	if err != nil {
		slog.Debug("live search retrieval failed",
			slog.String("query", query),
			slog.Any("error", err))
		return ls.skip(req, "retrieval error"), nil
	}
	if len(results) == 0 {
		return ls.skip(req, "no results"), nil
	}

	block := FormatSnippets(results, time.Now(), ls.snippetBudget)

	augmented := req.DeepCopy()
	contextMsg := llm.NewTextMessage(llm.RoleSystem, block)
	augmented.Messages = append(augmented.Messages[:userIdx],
		append([]llm.Message{contextMsg}, augmented.Messages[userIdx:]...)...)

	augmented.SetMetadata(MetadataKeyAugmented, augmentedInjected)
	augmented.SetMetadata(MetadataKeyQuery, query)
	augmented.SetMetadata(MetadataKeyResults, strconv.Itoa(len(results)))

	slog.Debug("live search injected",
		slog.String("query", query),
		slog.Int("results", len(results)),
		slog.Int("block_size", len(block)))

	return &augmented, nil
}

// skip marks the request as passed through untouched and records why.
func (ls *LiveSearch) skip(req *llm.ChatRequest, reason string) *llm.ChatRequest {
	req.SetMetadata(MetadataKeyAugmented, augmentedSkipped)
	req.SetMetadata(MetadataKeySkipReason, reason)
	slog.Debug("live search skipped", slog.String("reason", reason))
	return req
}

// DisableLiveSearch marks a request so the middleware passes it through
// without classification or retrieval.
func DisableLiveSearch(req *llm.ChatRequest) {
	req.SetMetadata(MetadataKeyAugmented, augmentedSkipped)
	req.SetMetadata(MetadataKeySkipReason, "disabled by caller")
}

// WasAugmented reports whether search results were injected into the
// request.
func WasAugmented(req *llm.ChatRequest) bool {
	v, _ := req.GetMetadata(MetadataKeyAugmented)
	return v == augmentedInjected
}

// SkipReason returns why augmentation was skipped, when it was.
func SkipReason(req *llm.ChatRequest) (string, bool) {
	return req.GetMetadata(MetadataKeySkipReason)
}

// ProcessResponse implements llm.Middleware. Responses pass through so
// the caller sees the provider's shape unchanged.
func (ls *LiveSearch) ProcessResponse(_ context.Context, _ *llm.ChatRequest, resp *llm.ChatResponse, _ error) (*llm.ChatResponse, error) {
	return resp, nil
}

// ProcessStreamEvent implements llm.Middleware. Stream events pass
// through untouched; injection happened before the stream opened.
func (ls *LiveSearch) ProcessStreamEvent(_ context.Context, _ *llm.ChatRequest, event llm.StreamEvent) (llm.StreamEvent, error) {
	return event, nil
}
