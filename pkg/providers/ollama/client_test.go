package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amari-ai/go-amari/pkg/llm"
)

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	client, err := NewClient(llm.ClientConfig{Provider: "ollama"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer func() { _ = client.Close() }()

	if client.model != llm.DefaultOllamaModel {
		t.Errorf("model = %q, want %q", client.model, llm.DefaultOllamaModel)
	}
	if client.baseURL != llm.DefaultOllamaBaseURL {
		t.Errorf("baseURL = %q, want %q", client.baseURL, llm.DefaultOllamaBaseURL)
	}
	if client.httpClient.Timeout != llm.DefaultOllamaTimeout {
		t.Errorf("timeout = %v, want %v", client.httpClient.Timeout, llm.DefaultOllamaTimeout)
	}
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	t.Parallel()

	client, err := NewClient(llm.ClientConfig{Provider: "ollama", BaseURL: "http://ollama.local:11434/"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.baseURL != "http://ollama.local:11434" {
		t.Errorf("baseURL = %q, trailing slash should be trimmed", client.baseURL)
	}
}

func TestChatCompletion(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}

		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "llama3.1" {
			t.Errorf("model = %q, want llama3.1", req.Model)
		}
		if req.Stream {
			t.Error("stream should be false for ChatCompletion")
		}

		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Model:   req.Model,
			Message: ollamaMessage{Role: "assistant", Content: "Hello there"},
			Done:    true,
		})
	}))
	defer server.Close()

	client, err := NewClient(llm.ClientConfig{Provider: "ollama", Model: "llama3.1", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	resp, err := client.ChatCompletion(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "Hi")},
	})
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}

	if got := resp.GetText(); got != "Hello there" {
		t.Errorf("text = %q, want Hello there", got)
	}
	if resp.Choices[0].FinishReason != llm.FinishReasonStop {
		t.Errorf("finish reason = %q, want stop", resp.Choices[0].FinishReason)
	}
	if resp.Model != "llama3.1" {
		t.Errorf("model = %q, want llama3.1", resp.Model)
	}
}

func TestChatCompletion_ModelNotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(ollamaError{Error: `model "missing:7b" not found, try pulling it first`})
	}))
	defer server.Close()

	client, err := NewClient(llm.ClientConfig{Provider: "ollama", Model: "missing:7b", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.ChatCompletion(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "Hi")},
	})
	if err == nil {
		t.Fatal("expected error for missing model")
	}

	llmErr, ok := llm.AsError(err)
	if !ok {
		t.Fatalf("expected *llm.Error, got %T", err)
	}
	if llmErr.Code != "model_not_found" {
		t.Errorf("code = %q, want model_not_found", llmErr.Code)
	}
	if llmErr.Type != llm.ErrTypeInvalidRequest {
		t.Errorf("type = %q, want %q", llmErr.Type, llm.ErrTypeInvalidRequest)
	}
	if llmErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", llmErr.StatusCode)
	}
}

func TestStreamChatCompletion(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !req.Stream {
			t.Error("stream should be true for StreamChatCompletion")
		}

		flusher := w.(http.Flusher)
		for _, word := range []string{"Once", " upon", " a", " time"} {
			chunk, _ := json.Marshal(ollamaStreamChunk{
				Model:   req.Model,
				Message: ollamaMessage{Role: "assistant", Content: word},
			})
			fmt.Fprintf(w, "%s\n", chunk)
			flusher.Flush()
		}
		done, _ := json.Marshal(ollamaStreamChunk{Model: req.Model, Done: true})
		fmt.Fprintf(w, "%s\n", done)
	}))
	defer server.Close()

	client, err := NewClient(llm.ClientConfig{Provider: "ollama", Model: "llama3.1", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	events, err := client.StreamChatCompletion(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "Tell me a story")},
	})
	if err != nil {
		t.Fatalf("StreamChatCompletion: %v", err)
	}

	var text string
	var sawDone bool
	for event := range events {
		if event.IsError() {
			t.Fatalf("stream error: %v", event.Error)
		}
		if event.IsDelta() {
			text += event.TextDelta()
		}
		if event.IsDone() {
			sawDone = true
		}
	}

	if text != "Once upon a time" {
		t.Errorf("streamed text = %q, want %q", text, "Once upon a time")
	}
	if !sawDone {
		t.Error("expected done event")
	}
}

func TestStreamChatCompletion_ChunkError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunk, _ := json.Marshal(ollamaStreamChunk{Error: "model crashed"})
		fmt.Fprintf(w, "%s\n", chunk)
	}))
	defer server.Close()

	client, err := NewClient(llm.ClientConfig{Provider: "ollama", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	events, err := client.StreamChatCompletion(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "Hi")},
	})
	if err != nil {
		t.Fatalf("StreamChatCompletion: %v", err)
	}

	var sawError bool
	for event := range events {
		if event.IsError() {
			sawError = true
			if event.Error.Message != "model crashed" {
				t.Errorf("error message = %q, want model crashed", event.Error.Message)
			}
		}
	}
	if !sawError {
		t.Error("expected an error event from the stream")
	}
}

func TestConvertToOllamaRequest_ResponseFormat(t *testing.T) {
	t.Parallel()

	client := &Client{model: "llama3.1"}

	req := llm.ChatRequest{
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "List three colors")},
		ResponseFormat: &llm.ResponseFormat{
			Type: llm.ResponseFormatJSON,
		},
	}

	result := client.convertToOllamaRequest(req)

	if len(result.Messages) != 2 {
		t.Fatalf("messages = %d, want 2 (instruction + user)", len(result.Messages))
	}
	if result.Messages[0].Role != "system" {
		t.Errorf("first message role = %q, want system", result.Messages[0].Role)
	}
}

func TestConvertToOllamaRequest_Options(t *testing.T) {
	t.Parallel()

	client := &Client{model: "llama3.1"}

	temp := float32(0.2)
	maxTokens := 128

	result := client.convertToOllamaRequest(llm.ChatRequest{
		Messages:    []llm.Message{llm.NewTextMessage(llm.RoleUser, "Hi")},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})

	if result.Options == nil {
		t.Fatal("expected options to be set")
	}
	if result.Options.Temperature == nil || *result.Options.Temperature != 0.2 {
		t.Error("temperature not carried over")
	}
	if result.Options.NumPredict == nil || *result.Options.NumPredict != 128 {
		t.Error("max tokens should map to num_predict")
	}
}

func TestGetModelInfo_Capabilities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model      string
		wantTokens int
		wantVision bool
	}{
		{"llama3.1:8b", 131072, false},
		{"llama3.2:3b", 131072, false},
		{"qwen2.5:14b", 32768, false},
		{"mistral:7b", 32768, false},
		{"codellama:13b", 16384, false},
		{"llava:13b", 4096, true},
		{"unknown-model", 4096, false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			client := &Client{model: tt.model}
			info := client.GetModelInfo()

			if info.MaxTokens != tt.wantTokens {
				t.Errorf("max tokens = %d, want %d", info.MaxTokens, tt.wantTokens)
			}
			if info.SupportsVision != tt.wantVision {
				t.Errorf("vision = %v, want %v", info.SupportsVision, tt.wantVision)
			}
			if !info.SupportsStreaming {
				t.Error("all Ollama models support streaming")
			}
		})
	}
}
