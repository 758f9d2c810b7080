package augment

import (
	"fmt"
	"strings"
	"time"

	"github.com/amari-ai/go-amari/pkg/llm"
	"github.com/amari-ai/go-amari/pkg/search"
)

// DefaultSnippetBudget is the character budget for the injected
// search context when no model-specific budget is configured.
const DefaultSnippetBudget = 2400

const (
	minSnippetBudget = 1200
	maxSnippetBudget = 6000
)

const snippetFooter = `Use these results to answer the user's question and cite sources by their [number] when relevant. If the results are not relevant, answer from your own knowledge.`

// FormatSnippets renders search results as a system-message block the
// model can cite. The block is truncated to roughly budget characters,
// but always includes at least one result. An empty result list
// returns "".
func FormatSnippets(results []search.Result, retrievedAt time.Time, budget int) string {
	if len(results) == 0 {
		return ""
	}
	if budget <= 0 {
		budget = DefaultSnippetBudget
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Web search results (retrieved %s):\n", retrievedAt.UTC().Format("2006-01-02 15:04 UTC"))

	for i, r := range results {
		block := formatResult(i+1, r)
		if i > 0 && b.Len()+len(block)+len(snippetFooter)+2 > budget {
			break
		}
		b.WriteString("\n")
		b.WriteString(block)
	}

	b.WriteString("\n\n")
	b.WriteString(snippetFooter)

	out := b.String()
	if len(out) > budget {
		out = truncateAtBoundary(out, budget)
	}
	return out
}

func formatResult(n int, r search.Result) string {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = "Untitled"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s - %s", n, title, r.URL)
	if snippet := strings.TrimSpace(r.Snippet); snippet != "" {
		b.WriteString("\n")
		b.WriteString(snippet)
	}
	return b.String()
}

// truncateAtBoundary cuts s to at most max bytes without splitting a
// multi-byte rune, preferring the last space before the cut.
func truncateAtBoundary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	if idx := strings.LastIndex(s[:cut], " "); idx > max/2 {
		cut = idx
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// BudgetForModel derives a snippet character budget from a model's
// context size. Roughly a tenth of the window in characters, clamped
// to a sane range so small models are not flooded and large ones not
// starved.
func BudgetForModel(info llm.ModelInfo) int {
	if info.MaxTokens <= 0 {
		return DefaultSnippetBudget
	}
	budget := info.MaxTokens / 10 * 4
	if budget < minSnippetBudget {
		return minSnippetBudget
	}
	if budget > maxSnippetBudget {
		return maxSnippetBudget
	}
	return budget
}
