package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var codeBlockPatterns = []*regexp.Regexp{
	regexp.MustCompile("(?i)```json\\s*([\\s\\S]*?)```"),
	regexp.MustCompile("(?i)```(?:javascript|js)\\s*([\\s\\S]*?)```"),
	regexp.MustCompile("```\\w*\\s*([\\s\\S]*?)```"),
	regexp.MustCompile("`([^`]+)`"),
}

// ExtractJSONFromResponse extracts JSON from a model response that may wrap it
// in markdown code blocks or surrounding prose. It returns the extracted JSON
// string, or the original response if no JSON is found.
//
// Example:
//
//	response := "Here is the verdict:\n```json\n{\"needs_search\": true}\n```"
//	jsonStr := llm.ExtractJSONFromResponse(response)
//	fmt.Println(jsonStr) // Output: {"needs_search": true}
func ExtractJSONFromResponse(text string) string {
	text = strings.TrimSpace(text)

	// Code blocks first: a fenced block is the strongest signal of intent.
	for _, re := range codeBlockPatterns {
		matches := re.FindStringSubmatch(text)
		if len(matches) > 1 {
			if extracted, ok := tryExtract(matches[1]); ok {
				return extracted
			}
		}
	}

	// Bare JSON objects or arrays embedded in prose.
	for _, candidate := range findJSONBlocks(text) {
		if extracted, ok := tryExtract(candidate); ok {
			return extracted
		}
	}

	// The whole response may already be JSON.
	if extracted, ok := tryExtract(text); ok {
		return extracted
	}

	return text
}

// tryExtract validates a candidate and returns it cleaned.
func tryExtract(candidate string) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if !strings.HasPrefix(candidate, "{") && !strings.HasPrefix(candidate, "[") {
		return "", false
	}
	if isValidJSON(candidate) {
		return candidate, true
	}
	if cleaned := cleanJSON(candidate); cleaned != "" {
		return cleaned, true
	}
	return "", false
}

func isValidJSON(text string) bool {
	var temp interface{}
	return json.Unmarshal([]byte(text), &temp) == nil
}

// findJSONBlocks scans the text for balanced {...} and [...] spans, skipping
// delimiters inside string literals.
func findJSONBlocks(text string) []string {
	var results []string

	for i := 0; i < len(text); i++ {
		var open, close byte
		switch text[i] {
		case '{':
			open, close = '{', '}'
		case '[':
			open, close = '[', ']'
		default:
			continue
		}

		if end := matchDelimiter(text[i:], open, close); end >= 0 {
			results = append(results, text[i:i+end+1])
		}
	}

	return results
}

// matchDelimiter returns the index of the closing delimiter that balances the
// opening one at position 0, or -1 if the span never closes.
func matchDelimiter(text string, open, close byte) int {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		char := text[i]

		if escaped {
			escaped = false
			continue
		}
		if char == '\\' {
			escaped = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch char {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}

var trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

// cleanJSON strips line comments and trailing commas, then re-validates.
// Returns "" when the cleaned text still does not parse.
func cleanJSON(jsonText string) string {
	lines := strings.Split(jsonText, "\n")
	cleanedLines := make([]string, 0, len(lines))

	for _, line := range lines {
		if idx := strings.Index(line, "//"); idx != -1 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line != "" {
			cleanedLines = append(cleanedLines, line)
		}
	}

	result := trailingCommaRe.ReplaceAllString(strings.Join(cleanedLines, "\n"), "$1")
	if isValidJSON(result) {
		return result
	}
	return ""
}

// RemoveBlocks removes all blocks of the specified tag from the input string.
// For example, RemoveBlocks(text, "think") removes all <think>...</think>
// blocks, which reasoning models emit ahead of their answer.
//
// Example:
//
//	text := "Hello <think>this is internal</think> world!"
//	cleaned := llm.RemoveBlocks(text, "think")
//	fmt.Println(cleaned) // Output: "Hello  world!"
func RemoveBlocks(text, tag string) string {
	pattern := fmt.Sprintf(`(?s)<%s>.*?</%s>`, regexp.QuoteMeta(tag), regexp.QuoteMeta(tag))
	return regexp.MustCompile(pattern).ReplaceAllString(text, "")
}

// ExtractJSONToStruct extracts JSON from a model response and unmarshals it
// into the provided struct. The out parameter must be a pointer.
//
// Example:
//
//	var verdict Verdict
//	if err := llm.ExtractJSONToStruct(response, &verdict); err != nil {
//	    // handle error
//	}
func ExtractJSONToStruct(response string, out interface{}) error {
	jsonStr := ExtractJSONFromResponse(response)
	if err := json.Unmarshal([]byte(jsonStr), out); err != nil {
		return fmt.Errorf("failed to unmarshal extracted JSON: %w", err)
	}
	return nil
}
