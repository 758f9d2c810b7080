package mock

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/amari-ai/go-amari/pkg/llm"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient("mock-model", "mock")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	info := client.GetModelInfo()
	if info.Name != "mock-model" {
		t.Errorf("Expected model name 'mock-model', got %s", info.Name)
	}
	if info.Provider != "mock" {
		t.Errorf("Expected provider 'mock', got %s", info.Provider)
	}
	if !info.SupportsTools || !info.SupportsStreaming {
		t.Error("Expected tools and streaming support by default")
	}
	if info.SupportsVision {
		t.Error("Expected no vision support by default")
	}
}

func TestQueuedResponses(t *testing.T) {
	client, _ := NewClient("mock-model", "mock")
	client.WithSimpleResponse("first").WithSimpleResponse("second")

	req := llm.ChatRequest{
		Model:    "mock-model",
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "anything")},
	}

	resp, err := client.ChatCompletion(context.Background(), req)
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}
	if resp.GetText() != "first" {
		t.Errorf("Expected 'first', got %q", resp.GetText())
	}

	resp, err = client.ChatCompletion(context.Background(), req)
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}
	if resp.GetText() != "second" {
		t.Errorf("Expected 'second', got %q", resp.GetText())
	}
}

func TestQueuedErrors(t *testing.T) {
	client, _ := NewClient("mock-model", "mock")
	client.WithError("rate_limit_exceeded", "slow down", llm.ErrTypeRateLimit)

	req := llm.ChatRequest{
		Model:    "mock-model",
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "anything")},
	}

	_, err := client.ChatCompletion(context.Background(), req)
	if err == nil {
		t.Fatal("Expected error")
	}

	llmErr, ok := llm.AsError(err)
	if !ok {
		t.Fatalf("Expected *llm.Error, got %T", err)
	}
	if llmErr.Code != "rate_limit_exceeded" {
		t.Errorf("Expected code 'rate_limit_exceeded', got %s", llmErr.Code)
	}
	if llmErr.Type != llm.ErrTypeRateLimit {
		t.Errorf("Expected rate limit type, got %s", llmErr.Type)
	}
}

func TestToolTriggerGeneratesToolCall(t *testing.T) {
	client, _ := NewClient("mock-model", "mock")

	req := llm.ChatRequest{
		Model:    "mock-model",
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "please search for cat pictures")},
	}

	resp, err := client.ChatCompletion(context.Background(), req)
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}

	if !resp.RequiresToolExecution() {
		t.Fatal("Expected a tool call response")
	}

	toolCall := resp.Choices[0].Message.ToolCalls[0]
	if toolCall.Function.Name != "web_search" {
		t.Errorf("Expected web_search tool, got %s", toolCall.Function.Name)
	}
	if !strings.Contains(toolCall.Function.Arguments, "cat pictures") {
		t.Errorf("Expected arguments to carry the query, got %s", toolCall.Function.Arguments)
	}
	if resp.Choices[0].FinishReason != llm.FinishReasonToolCalls {
		t.Errorf("Expected tool_calls finish reason, got %s", resp.Choices[0].FinishReason)
	}
}

func TestSearchContextAwareResponse(t *testing.T) {
	client, _ := NewClient("mock-model", "mock")

	req := llm.ChatRequest{
		Model: "mock-model",
		Messages: []llm.Message{
			llm.NewTextMessage(llm.RoleSystem, "Web search results (retrieved 2026-08-25):\n[1] Example headline\nThe headline body text.\n"),
			llm.NewTextMessage(llm.RoleUser, "what happened today?"),
		},
	}

	resp, err := client.ChatCompletion(context.Background(), req)
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}

	if !strings.Contains(resp.GetText(), "According to the search results") {
		t.Errorf("Expected search-aware response, got %q", resp.GetText())
	}
}

func TestToolResultFollowUp(t *testing.T) {
	client, _ := NewClient("mock-model", "mock")

	req := llm.ChatRequest{
		Model: "mock-model",
		Messages: []llm.Message{
			llm.NewTextMessage(llm.RoleUser, "what's 2+2?"),
			llm.NewTextMessage(llm.RoleTool, "4"),
		},
	}

	resp, err := client.ChatCompletion(context.Background(), req)
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}

	if !strings.Contains(resp.GetText(), "4") {
		t.Errorf("Expected response to reference the tool result, got %q", resp.GetText())
	}
}

func TestCallLog(t *testing.T) {
	client, _ := NewClient("mock-model", "mock")

	req := llm.ChatRequest{
		Model:    "mock-model",
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "log me")},
	}

	if _, err := client.ChatCompletion(context.Background(), req); err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}
	if _, err := client.ChatCompletion(context.Background(), req); err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}

	if !client.AssertCallCount(2) {
		t.Errorf("Expected 2 logged calls, got %d", len(client.GetCallLog()))
	}
	if !client.AssertLastMessageContains("log me") {
		t.Error("Expected last call to contain the user message")
	}

	client.Reset()
	if !client.AssertCallCount(0) {
		t.Error("Expected empty call log after Reset")
	}
}

func TestStreamChatCompletion(t *testing.T) {
	client, _ := NewClient("mock-model", "mock")
	client.WithStreamResponse(CreateWordByWordStream("hello streaming world"))

	req := llm.ChatRequest{
		Model:    "mock-model",
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "stream please")},
		Stream:   true,
	}

	ch, err := client.StreamChatCompletion(context.Background(), req)
	if err != nil {
		t.Fatalf("StreamChatCompletion failed: %v", err)
	}

	var text strings.Builder
	var doneSeen bool
	for event := range ch {
		if event.IsDelta() {
			text.WriteString(event.TextDelta())
		}
		if event.IsDone() {
			doneSeen = true
		}
	}

	if !doneSeen {
		t.Error("Expected a done event")
	}
	if got := strings.TrimSpace(text.String()); got != "hello streaming world" {
		t.Errorf("Expected streamed text 'hello streaming world', got %q", got)
	}
}

func TestStreamRespectsContextCancellation(t *testing.T) {
	client, _ := NewClient("mock-model", "mock")
	client.WithStreamResponse(CreateWordByWordStream(strings.Repeat("word ", 100)))

	ctx, cancel := context.WithCancel(context.Background())
	req := llm.ChatRequest{
		Model:    "mock-model",
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "stream please")},
		Stream:   true,
	}

	ch, err := client.StreamChatCompletion(ctx, req)
	if err != nil {
		t.Fatalf("StreamChatCompletion failed: %v", err)
	}

	<-ch
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("Stream did not close after cancellation")
		}
	}
}

func TestCreateToolCallStream(t *testing.T) {
	events := CreateToolCallStream("Let me check.", "web_search", map[string]interface{}{"query": "news"})

	var sawToolCall, sawDone bool
	for _, event := range events {
		if event.IsDelta() && event.Choice != nil && event.Choice.Delta != nil {
			for _, tc := range event.Choice.Delta.ToolCalls {
				if tc.Function != nil && tc.Function.Name == "web_search" {
					sawToolCall = true
					if !strings.Contains(tc.Function.Arguments, "news") {
						t.Errorf("Expected arguments with query, got %s", tc.Function.Arguments)
					}
				}
			}
		}
		if event.IsDone() {
			sawDone = true
			if event.Choice.FinishReason != llm.FinishReasonToolCalls {
				t.Errorf("Expected tool_calls finish, got %s", event.Choice.FinishReason)
			}
		}
	}

	if !sawToolCall {
		t.Error("Expected a tool call delta in the stream")
	}
	if !sawDone {
		t.Error("Expected a done event in the stream")
	}
}

func TestWithToolCallMarshalsArguments(t *testing.T) {
	client, _ := NewClient("mock-model", "mock")
	client.WithToolCall("get_weather", map[string]interface{}{"location": "Paris", "unit": "celsius"})

	req := llm.ChatRequest{
		Model:    "mock-model",
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "weather?")},
	}

	resp, err := client.ChatCompletion(context.Background(), req)
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}

	args := resp.Choices[0].Message.ToolCalls[0].Function.Arguments
	if !strings.Contains(args, "Paris") || !strings.Contains(args, "celsius") {
		t.Errorf("Expected marshaled arguments, got %s", args)
	}
}

func TestFailureRate(t *testing.T) {
	client, _ := NewClient("mock-model", "mock")
	client.WithFailureRate(1.0)

	req := llm.ChatRequest{
		Model:    "mock-model",
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "anything")},
	}

	_, err := client.ChatCompletion(context.Background(), req)
	if err == nil {
		t.Fatal("Expected failure with rate 1.0")
	}

	llmErr, ok := llm.AsError(err)
	if !ok || llmErr.Code != "mock_random_failure" {
		t.Errorf("Expected mock_random_failure, got %v", err)
	}
}

func TestStreamWithToolsMergesStreams(t *testing.T) {
	client, _ := NewClient("mock-model", "mock")
	client.WithStreamResponse(CreateWordByWordStream("main response"))

	toolStream := make(chan llm.StreamEvent, 2)
	toolStream <- llm.NewTextDeltaEvent(0, "tool output ")
	close(toolStream)

	req := llm.ChatRequest{
		Model:    "mock-model",
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "run tools")},
		Stream:   true,
	}

	ch, err := client.StreamChatCompletionWithTools(context.Background(), req, toolStream)
	if err != nil {
		t.Fatalf("StreamChatCompletionWithTools failed: %v", err)
	}

	var text strings.Builder
	for event := range ch {
		if event.IsDelta() {
			text.WriteString(event.TextDelta())
		}
	}

	merged := text.String()
	if !strings.Contains(merged, "main") {
		t.Errorf("Expected main stream content, got %q", merged)
	}
	if !strings.Contains(merged, "tool output") {
		t.Errorf("Expected tool stream content, got %q", merged)
	}
}
