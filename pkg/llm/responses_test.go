package llm

import (
	"testing"
)

func TestExtractJSONFromResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{
			name:     "json code block",
			response: "Here is the data:\n```json\n{\"key\": \"value\"}\n```",
			want:     `{"key": "value"}`,
		},
		{
			name:     "uppercase JSON label",
			response: "```JSON\n{\"key\": \"value\"}\n```",
			want:     `{"key": "value"}`,
		},
		{
			name:     "generic code block",
			response: "```\n{\"answer\": 42}\n```",
			want:     `{"answer": 42}`,
		},
		{
			name:     "single backticks",
			response: "The result is `{\"ok\": true}` as requested.",
			want:     `{"ok": true}`,
		},
		{
			name:     "bare json object",
			response: `{"needs_search": true, "query": "bitcoin price"}`,
			want:     `{"needs_search": true, "query": "bitcoin price"}`,
		},
		{
			name:     "json embedded in prose",
			response: `Sure! The verdict is {"needs_search": false} based on the prompt.`,
			want:     `{"needs_search": false}`,
		},
		{
			name:     "json array",
			response: "```json\n[1, 2, 3]\n```",
			want:     `[1, 2, 3]`,
		},
		{
			name:     "nested object with string braces",
			response: `{"text": "a { brace } inside", "n": 1}`,
			want:     `{"text": "a { brace } inside", "n": 1}`,
		},
		{
			name:     "no json returns original",
			response: "I cannot answer that question.",
			want:     "I cannot answer that question.",
		},
		{
			name:     "whitespace is trimmed",
			response: "  \n {\"a\": 1} \n ",
			want:     `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSONFromResponse(tt.response)
			if got != tt.want {
				t.Errorf("ExtractJSONFromResponse() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSONFromResponse_CleansInvalidJSON(t *testing.T) {
	t.Run("trailing commas are removed", func(t *testing.T) {
		response := "```json\n{\n\"a\": 1,\n\"b\": 2,\n}\n```"
		got := ExtractJSONFromResponse(response)
		if !isValidJSON(got) {
			t.Errorf("expected cleaned JSON to be valid, got %q", got)
		}
	})

	t.Run("line comments are removed", func(t *testing.T) {
		response := "```json\n{\n\"a\": 1 // the answer\n}\n```"
		got := ExtractJSONFromResponse(response)
		if !isValidJSON(got) {
			t.Errorf("expected cleaned JSON to be valid, got %q", got)
		}
	})
}

func TestRemoveBlocks(t *testing.T) {
	tests := []struct {
		name string
		text string
		tag  string
		want string
	}{
		{
			name: "single think block",
			text: "Hello <think>internal reasoning</think> world!",
			tag:  "think",
			want: "Hello  world!",
		},
		{
			name: "multiline block",
			text: "<think>\nline one\nline two\n</think>{\"needs_search\": true}",
			tag:  "think",
			want: `{"needs_search": true}`,
		},
		{
			name: "multiple blocks",
			text: "<think>a</think>result<think>b</think>",
			tag:  "think",
			want: "result",
		},
		{
			name: "no blocks",
			text: "plain text",
			tag:  "think",
			want: "plain text",
		},
		{
			name: "different tag untouched",
			text: "<note>keep this</note>",
			tag:  "think",
			want: "<note>keep this</note>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RemoveBlocks(tt.text, tt.tag)
			if got != tt.want {
				t.Errorf("RemoveBlocks() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSONToStruct(t *testing.T) {
	type verdict struct {
		NeedsSearch bool   `json:"needs_search"`
		Query       string `json:"query"`
	}

	t.Run("extracts from code block", func(t *testing.T) {
		response := "Here you go:\n```json\n{\"needs_search\": true, \"query\": \"weather paris\"}\n```"

		var v verdict
		if err := ExtractJSONToStruct(response, &v); err != nil {
			t.Fatalf("ExtractJSONToStruct() error = %v", err)
		}
		if !v.NeedsSearch {
			t.Error("expected needs_search = true")
		}
		if v.Query != "weather paris" {
			t.Errorf("query = %q, want %q", v.Query, "weather paris")
		}
	})

	t.Run("extracts after removing think blocks", func(t *testing.T) {
		response := RemoveBlocks("<think>hmm</think>{\"needs_search\": false, \"query\": \"\"}", "think")

		var v verdict
		if err := ExtractJSONToStruct(response, &v); err != nil {
			t.Fatalf("ExtractJSONToStruct() error = %v", err)
		}
		if v.NeedsSearch {
			t.Error("expected needs_search = false")
		}
	})

	t.Run("fails on non-json response", func(t *testing.T) {
		var v verdict
		if err := ExtractJSONToStruct("no json here", &v); err == nil {
			t.Error("expected error for non-JSON response")
		}
	})
}
