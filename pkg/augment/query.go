package augment

import (
	"context"
	"regexp"
	"strings"

	"github.com/amari-ai/go-amari/pkg/llm"
)

// DefaultMaxQueryWords caps how many words a heuristic query keeps.
const DefaultMaxQueryWords = 12

// QueryExtractor turns a conversation into a web search query.
// An empty query with a nil error means nothing useful could be
// extracted; the caller should skip the search.
type QueryExtractor interface {
	Extract(ctx context.Context, messages []llm.Message) (string, error)
}

// fillerRes strips conversational padding from the start of a message.
// Applied repeatedly until none match.
var fillerRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(please|hey|hi|hello|ok|okay|so)[,!. ]+`),
	regexp.MustCompile(`(?i)^(can|could|would|will) you( please)?\s+`),
	regexp.MustCompile(`(?i)^(tell me|show me|give me|let me know)( about)?\s+`),
	regexp.MustCompile(`(?i)^(i(?:'d| would) like to know|i want to know|i need to know|do you know)[ :,]*`),
	regexp.MustCompile(`(?i)^(what do you think about|any idea(?:s)?( about)?)[ :,]*`),
}

// HeuristicExtractor derives a query from the last user message by
// stripping filler, trailing punctuation, and extra whitespace, then
// capping the word count.
type HeuristicExtractor struct {
	// MaxWords caps the query length. Zero means DefaultMaxQueryWords.
	MaxWords int
}

// NewHeuristicExtractor creates an extractor with default limits.
func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{MaxWords: DefaultMaxQueryWords}
}

// Extract implements QueryExtractor.
func (h *HeuristicExtractor) Extract(_ context.Context, messages []llm.Message) (string, error) {
	text := lastUserText(messages)
	if text == "" {
		return "", nil
	}

	for {
		stripped := text
		for _, re := range fillerRes {
			stripped = re.ReplaceAllString(stripped, "")
		}
		if stripped == text {
			break
		}
		text = stripped
	}

	text = strings.TrimRight(strings.TrimSpace(text), "?!. ")

	words := strings.Fields(text)
	maxWords := h.MaxWords
	if maxWords <= 0 {
		maxWords = DefaultMaxQueryWords
	}
	if len(words) > maxWords {
		words = words[:maxWords]
	}

	return strings.Join(words, " "), nil
}

// ModelExtractor asks a model to rewrite the conversation as a search
// query, falling back to the heuristic extractor on any failure.
type ModelExtractor struct {
	client   llm.Client
	model    string
	fallback QueryExtractor
}

// NewModelExtractor creates a model-backed query extractor.
func NewModelExtractor(client llm.Client, model string) *ModelExtractor {
	return &ModelExtractor{
		client:   client,
		model:    model,
		fallback: NewHeuristicExtractor(),
	}
}

var extractorPrompt = llm.NewPromptTemplate(`Rewrite the following message as a short web search query that would find the information needed to answer it. Reply with the query only, no quotes, no explanation.

Message:
{{.Message}}`)

// Extract implements QueryExtractor.
func (m *ModelExtractor) Extract(ctx context.Context, messages []llm.Message) (string, error) {
	text := lastUserText(messages)
	if text == "" {
		return "", nil
	}

	prompt, err := extractorPrompt.Render(map[string]any{"Message": text})
	if err != nil {
		return m.fallback.Extract(ctx, messages)
	}

	temperature := float32(0)
	maxTokens := 60

	req := llm.ChatRequest{
		Model:       m.model,
		Messages:    []llm.Message{llm.NewTextMessage(llm.RoleUser, prompt)},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}

	resp, err := m.client.ChatCompletion(ctx, req)
	if err != nil {
		return m.fallback.Extract(ctx, messages)
	}

	query := strings.Trim(strings.TrimSpace(resp.GetText()), `"'`)
	if query == "" {
		return m.fallback.Extract(ctx, messages)
	}
	return query, nil
}
