package augment

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/amari-ai/go-amari/pkg/llm"
)

func userMessages(text string) []llm.Message {
	return []llm.Message{llm.NewTextMessage(llm.RoleUser, text)}
}

func TestHeuristicClassifierSignals(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		needsSearch bool
	}{
		{"explicit search verb", "search the web for the best pizza in Naples", true},
		{"look up phrasing", "can you look up the train schedule", true},
		{"temporal marker", "what is the latest version of Kubernetes", true},
		{"volatile topic with temporal", "what's the weather in Berlin today", true},
		{"news headline", "give me the breaking news headlines", true},
		{"stable knowledge", "explain how binary search works", false},
		{"math question", "what is the derivative of x squared", false},
		{"historical fact", "who wrote War and Peace", false},
		{"volatile alone below threshold", "how are stock options taxed", false},
	}

	classifier := NewHeuristicClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := classifier.NeedsLiveInfo(context.Background(), userMessages(tt.text))
			if err != nil {
				t.Fatalf("NeedsLiveInfo: %v", err)
			}
			if decision.NeedsSearch != tt.needsSearch {
				t.Errorf("NeedsSearch = %v, want %v (confidence %.2f, reason %q)",
					decision.NeedsSearch, tt.needsSearch, decision.Confidence, decision.Reason)
			}
		})
	}
}

func TestHeuristicClassifierConfidenceCapped(t *testing.T) {
	classifier := NewHeuristicClassifier()
	decision, err := classifier.NeedsLiveInfo(context.Background(),
		userMessages("search for today's latest stock prices and breaking news"))
	if err != nil {
		t.Fatalf("NeedsLiveInfo: %v", err)
	}
	if decision.Confidence > 1.0 {
		t.Errorf("confidence = %v, want <= 1.0", decision.Confidence)
	}
	if !decision.NeedsSearch {
		t.Error("expected a stacked-signal prompt to need search")
	}
	if decision.Reason == "" {
		t.Error("expected a non-empty reason")
	}
}

func TestHeuristicClassifierNoUserMessage(t *testing.T) {
	classifier := NewHeuristicClassifier()

	decision, err := classifier.NeedsLiveInfo(context.Background(), nil)
	if err != nil {
		t.Fatalf("NeedsLiveInfo: %v", err)
	}
	if decision.NeedsSearch {
		t.Error("empty conversation must not trigger a search")
	}

	decision, err = classifier.NeedsLiveInfo(context.Background(),
		[]llm.Message{llm.NewTextMessage(llm.RoleSystem, "you are helpful")})
	if err != nil {
		t.Fatalf("NeedsLiveInfo: %v", err)
	}
	if decision.NeedsSearch {
		t.Error("system-only conversation must not trigger a search")
	}
}

func TestHeuristicClassifierRecentYear(t *testing.T) {
	classifier := NewHeuristicClassifier()

	decision, err := classifier.NeedsLiveInfo(context.Background(),
		userMessages("what happened in 1969 during the moon landing"))
	if err != nil {
		t.Fatalf("NeedsLiveInfo: %v", err)
	}
	if decision.Confidence != 0 {
		t.Errorf("historical year scored %.2f, want 0", decision.Confidence)
	}
}

func TestHeuristicClassifierCustomThreshold(t *testing.T) {
	classifier := &HeuristicClassifier{Threshold: 0.4}
	decision, err := classifier.NeedsLiveInfo(context.Background(),
		userMessages("how are stock options taxed"))
	if err != nil {
		t.Fatalf("NeedsLiveInfo: %v", err)
	}
	if !decision.NeedsSearch {
		t.Errorf("volatile topic at 0.45 should clear a 0.4 threshold, got %.2f", decision.Confidence)
	}
}

// classifierClient returns canned classifier replies.
type classifierClient struct {
	reply string
	err   error
	calls []llm.ChatRequest
}

func (c *classifierClient) ChatCompletion(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	c.calls = append(c.calls, req)
	if c.err != nil {
		return nil, c.err
	}
	return &llm.ChatResponse{
		ID:    "classify-1",
		Model: req.Model,
		Choices: []llm.Choice{{
			Message:      llm.NewTextMessage(llm.RoleAssistant, c.reply),
			FinishReason: llm.FinishReasonStop,
		}},
	}, nil
}

func (c *classifierClient) StreamChatCompletion(_ context.Context, _ llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	return nil, fmt.Errorf("not implemented")
}

func (c *classifierClient) GetRemote() llm.ClientRemoteInfo {
	return llm.ClientRemoteInfo{Name: "test"}
}

func (c *classifierClient) GetModelInfo() llm.ModelInfo {
	return llm.ModelInfo{Name: "classifier"}
}

func (c *classifierClient) Close() error { return nil }

func TestModelClassifierParsesReply(t *testing.T) {
	client := &classifierClient{reply: `{"needs_search": true, "confidence": 0.92, "reason": "asks for current prices"}`}
	classifier := NewModelClassifier(client, "small-model")

	decision, err := classifier.NeedsLiveInfo(context.Background(),
		userMessages("what does bitcoin cost"))
	if err != nil {
		t.Fatalf("NeedsLiveInfo: %v", err)
	}
	if !decision.NeedsSearch {
		t.Error("expected NeedsSearch from model verdict")
	}
	if decision.Confidence != 0.92 {
		t.Errorf("confidence = %v, want 0.92", decision.Confidence)
	}
	if len(client.calls) != 1 {
		t.Fatalf("expected 1 model call, got %d", len(client.calls))
	}
	call := client.calls[0]
	if call.ResponseFormat == nil || call.ResponseFormat.Type != llm.ResponseFormatJSONSchema {
		t.Error("classifier call should constrain output with a JSON schema")
	}
	if call.Temperature == nil || *call.Temperature != 0 {
		t.Error("classifier call should run at temperature 0")
	}
}

func TestModelClassifierStripsFences(t *testing.T) {
	client := &classifierClient{reply: "```json\n{\"needs_search\": false, \"confidence\": 0.1, \"reason\": \"stable fact\"}\n```"}
	classifier := NewModelClassifier(client, "small-model")

	decision, err := classifier.NeedsLiveInfo(context.Background(),
		userMessages("who painted the Mona Lisa"))
	if err != nil {
		t.Fatalf("NeedsLiveInfo: %v", err)
	}
	if decision.NeedsSearch {
		t.Error("model said no search needed")
	}
	if decision.Reason != "stable fact" {
		t.Errorf("reason = %q, want %q", decision.Reason, "stable fact")
	}
}

func TestModelClassifierFallsBackOnError(t *testing.T) {
	client := &classifierClient{err: errors.New("provider down")}
	classifier := NewModelClassifier(client, "small-model")

	decision, err := classifier.NeedsLiveInfo(context.Background(),
		userMessages("what's the weather in Berlin today"))
	if err != nil {
		t.Fatalf("NeedsLiveInfo: %v", err)
	}
	if !decision.NeedsSearch {
		t.Error("heuristic fallback should still detect the weather question")
	}
}

func TestModelClassifierFallsBackOnGarbage(t *testing.T) {
	client := &classifierClient{reply: "sure, I think you should search!"}
	classifier := NewModelClassifier(client, "small-model")

	decision, err := classifier.NeedsLiveInfo(context.Background(),
		userMessages("explain how binary search works"))
	if err != nil {
		t.Fatalf("NeedsLiveInfo: %v", err)
	}
	if decision.NeedsSearch {
		t.Error("heuristic fallback should not trigger on a stable question")
	}
}
