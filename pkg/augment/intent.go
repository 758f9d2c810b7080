package augment

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/amari-ai/go-amari/pkg/llm"
)

// DefaultConfidenceThreshold is the minimum confidence at which the
// heuristic classifier decides a search is needed.
const DefaultConfidenceThreshold = 0.5

// Decision is the verdict of an intent classification.
type Decision struct {
	NeedsSearch bool
	Confidence  float64
	Reason      string
}

// IntentClassifier decides whether answering the conversation requires
// live information from the web.
type IntentClassifier interface {
	NeedsLiveInfo(ctx context.Context, messages []llm.Message) (Decision, error)
}

// Signal tables for the heuristic classifier. Each hit contributes its
// weight to the confidence; the total is capped at 1.
var (
	searchVerbRe = regexp.MustCompile(`(?i)\b(search(?: the web)?(?: for)?|look up|google|check online|browse for|find out what(?:'s| is) happening)\b`)
	temporalRe   = regexp.MustCompile(`(?i)\b(today|tonight|yesterday|tomorrow|right now|currently|latest|most recent|recently|breaking|up[ -]to[ -]date|as of now|this (?:week|month|year|morning|evening|season))\b`)
	volatileRe   = regexp.MustCompile(`(?i)\b(price|prices|stock|stocks|weather|forecast|news|headlines?|score|scores|standings|schedule|exchange rate|election|release date|traffic)\b`)
	yearRe       = regexp.MustCompile(`\b(20\d{2})\b`)
)

const (
	searchVerbWeight = 0.9
	temporalWeight   = 0.6
	volatileWeight   = 0.45
	recentYearWeight = 0.5
)

// HeuristicClassifier matches keyword and pattern tables against the last
// user message. It needs no network access and is the fallback for the
// model-based classifier.
type HeuristicClassifier struct {
	// Threshold is the minimum confidence that triggers a search.
	Threshold float64
}

// NewHeuristicClassifier creates a classifier with the default threshold.
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{Threshold: DefaultConfidenceThreshold}
}

// NeedsLiveInfo implements IntentClassifier.
func (h *HeuristicClassifier) NeedsLiveInfo(_ context.Context, messages []llm.Message) (Decision, error) {
	text := lastUserText(messages)
	if text == "" {
		return Decision{Reason: "no user message"}, nil
	}

	var confidence float64
	var reasons []string

	if m := searchVerbRe.FindString(text); m != "" {
		confidence += searchVerbWeight
		reasons = append(reasons, "explicit search request "+strconv.Quote(m))
	}
	if m := temporalRe.FindString(text); m != "" {
		confidence += temporalWeight
		reasons = append(reasons, "temporal marker "+strconv.Quote(m))
	}
	if m := volatileRe.FindString(text); m != "" {
		confidence += volatileWeight
		reasons = append(reasons, "volatile topic "+strconv.Quote(m))
	}
	if year := mentionedRecentYear(text); year != "" {
		confidence += recentYearWeight
		reasons = append(reasons, "reference to year "+year)
	}

	if confidence > 1 {
		confidence = 1
	}

	threshold := h.Threshold
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}

	decision := Decision{
		NeedsSearch: confidence >= threshold,
		Confidence:  confidence,
		Reason:      strings.Join(reasons, "; "),
	}
	if decision.Reason == "" {
		decision.Reason = "no live-information signals"
	}
	return decision, nil
}

// mentionedRecentYear returns the first year mention that is the current
// year or later. Historical years are not a signal.
func mentionedRecentYear(text string) string {
	current := time.Now().Year()
	for _, m := range yearRe.FindAllString(text, -1) {
		if y, err := strconv.Atoi(m); err == nil && y >= current {
			return m
		}
	}
	return ""
}

// ModelClassifier asks a small model whether live information is needed,
// constraining the reply to a JSON schema. Any failure falls back to the
// heuristic classifier so the decision is always available.
type ModelClassifier struct {
	client   llm.Client
	model    string
	fallback IntentClassifier
}

// NewModelClassifier creates a model-backed classifier. The model should
// be small and fast; classification runs on the hot path of every chat
// completion.
func NewModelClassifier(client llm.Client, model string) *ModelClassifier {
	return &ModelClassifier{
		client:   client,
		model:    model,
		fallback: NewHeuristicClassifier(),
	}
}

// searchVerdict is the reply shape the classifier model is held to.
type searchVerdict struct {
	NeedsSearch bool    `json:"needs_search" required:"true" description:"Whether answering needs current information from the web."`
	Confidence  float64 `json:"confidence" required:"true" minimum:"0" maximum:"1" description:"How certain the verdict is."`
	Reason      string  `json:"reason" required:"true" description:"Short justification for the verdict."`
}

// The schema rides in the prompt as well as in the response format, for
// providers that do not enforce structured output.
var classifierPrompt = llm.NewPromptTemplate(`You decide whether answering a message requires up-to-date information from the internet, such as news, prices, weather, schedules, or anything that changes over time.

Message:
{{.Message}}

Reply with a single JSON object matching this schema:
{{.JSONSchema}}`)

// NeedsLiveInfo implements IntentClassifier.
func (m *ModelClassifier) NeedsLiveInfo(ctx context.Context, messages []llm.Message) (Decision, error) {
	text := lastUserText(messages)
	if text == "" {
		return Decision{Reason: "no user message"}, nil
	}

	prompt, err := classifierPrompt.RenderWithJSONSchemaFor(map[string]any{"Message": text}, searchVerdict{})
	if err != nil {
		return m.fallback.NeedsLiveInfo(ctx, messages)
	}

	format, err := llm.NewJSONSchemaResponseFormatFromStruct("search_verdict",
		"Verdict on whether a web search is needed", searchVerdict{})
	if err != nil {
		return m.fallback.NeedsLiveInfo(ctx, messages)
	}

	temperature := float32(0)
	maxTokens := 150

	req := llm.ChatRequest{
		Model:          m.model,
		Messages:       []llm.Message{llm.NewTextMessage(llm.RoleUser, prompt)},
		Temperature:    &temperature,
		MaxTokens:      &maxTokens,
		ResponseFormat: format,
	}

	resp, err := m.client.ChatCompletion(ctx, req)
	if err != nil {
		return m.fallback.NeedsLiveInfo(ctx, messages)
	}

	var verdict searchVerdict
	if err := llm.ExtractJSONToStruct(resp.GetText(), &verdict); err != nil {
		return m.fallback.NeedsLiveInfo(ctx, messages)
	}

	return Decision{
		NeedsSearch: verdict.NeedsSearch,
		Confidence:  verdict.Confidence,
		Reason:      verdict.Reason,
	}, nil
}

// lastUserText returns the text of the most recent user message.
func lastUserText(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			return strings.TrimSpace(messages[i].GetText())
		}
	}
	return ""
}
