package openrouter

import (
	"strings"
	"testing"

	"github.com/revrost/go-openrouter"

	"github.com/amari-ai/go-amari/pkg/llm"
)

func TestNewClient_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient(llm.ClientConfig{Provider: "openrouter"})
	if err == nil {
		t.Fatal("expected error for missing API key")
	}

	llmErr, ok := llm.AsError(err)
	if !ok {
		t.Fatalf("expected *llm.Error, got %T", err)
	}
	if llmErr.Code != llm.ErrCodeMissingAPIKey {
		t.Errorf("code = %q, want %q", llmErr.Code, llm.ErrCodeMissingAPIKey)
	}
	if llmErr.Type != llm.ErrTypeAuthentication {
		t.Errorf("type = %q, want %q", llmErr.Type, llm.ErrTypeAuthentication)
	}
}

func TestNewClient_DefaultModel(t *testing.T) {
	t.Parallel()

	client, err := NewClient(llm.ClientConfig{Provider: "openrouter", APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer func() { _ = client.Close() }()

	if client.model != llm.DefaultOpenRouterModel {
		t.Errorf("model = %q, want %q", client.model, llm.DefaultOpenRouterModel)
	}
}

func TestConvertRequest_ModelFallback(t *testing.T) {
	t.Parallel()

	client := &Client{model: "openai/gpt-4o-mini", provider: "openrouter"}

	req := llm.ChatRequest{
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
	}
	orReq, err := client.convertRequest(req)
	if err != nil {
		t.Fatalf("convertRequest: %v", err)
	}
	if orReq.Model != "openai/gpt-4o-mini" {
		t.Errorf("model = %q, want client default", orReq.Model)
	}

	req.Model = "anthropic/claude-3.5-sonnet"
	orReq, err = client.convertRequest(req)
	if err != nil {
		t.Fatalf("convertRequest: %v", err)
	}
	if orReq.Model != "anthropic/claude-3.5-sonnet" {
		t.Errorf("model = %q, want request override", orReq.Model)
	}
}

func TestConvertRequest_Parameters(t *testing.T) {
	t.Parallel()

	client := &Client{model: "openai/gpt-4o-mini", provider: "openrouter"}

	temp := float32(0.3)
	maxTokens := 256
	topP := float32(0.9)

	orReq, err := client.convertRequest(llm.ChatRequest{
		Messages:    []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		TopP:        &topP,
	})
	if err != nil {
		t.Fatalf("convertRequest: %v", err)
	}

	if orReq.Temperature != 0.3 {
		t.Errorf("temperature = %v, want 0.3", orReq.Temperature)
	}
	if orReq.MaxTokens != 256 {
		t.Errorf("max tokens = %d, want 256", orReq.MaxTokens)
	}
	if orReq.TopP != 0.9 {
		t.Errorf("top_p = %v, want 0.9", orReq.TopP)
	}
}

func TestConvertMessage_SingleText(t *testing.T) {
	t.Parallel()

	client := &Client{model: "openai/gpt-4o-mini", provider: "openrouter"}

	orMsg, err := client.convertMessage(llm.NewTextMessage(llm.RoleUser, "hello"))
	if err != nil {
		t.Fatalf("convertMessage: %v", err)
	}
	if orMsg.Role != "user" {
		t.Errorf("role = %q, want user", orMsg.Role)
	}
	if orMsg.Content.Text != "hello" {
		t.Errorf("content = %q, want hello", orMsg.Content.Text)
	}
	if len(orMsg.Content.Multi) != 0 {
		t.Errorf("expected no multi parts for single text message")
	}
}

func TestConvertMessage_MultiModal(t *testing.T) {
	t.Parallel()

	client := &Client{model: "openai/gpt-4o-mini", provider: "openrouter"}

	msg := llm.Message{
		Role: llm.RoleUser,
		Content: []llm.MessageContent{
			llm.NewTextContent("look at this"),
			llm.NewImageContentFromURL("https://example.com/photo.png", "image/png"),
		},
	}

	orMsg, err := client.convertMessage(msg)
	if err != nil {
		t.Fatalf("convertMessage: %v", err)
	}
	if len(orMsg.Content.Multi) != 2 {
		t.Fatalf("parts = %d, want 2", len(orMsg.Content.Multi))
	}
	if orMsg.Content.Multi[0].Type != openrouter.ChatMessagePartTypeText {
		t.Errorf("first part type = %q, want text", orMsg.Content.Multi[0].Type)
	}
	if orMsg.Content.Multi[1].ImageURL == nil || orMsg.Content.Multi[1].ImageURL.URL != "https://example.com/photo.png" {
		t.Errorf("second part should carry the image URL")
	}
}

func TestConvertMessage_ToolResponse(t *testing.T) {
	t.Parallel()

	client := &Client{model: "openai/gpt-4o-mini", provider: "openrouter"}

	msg := llm.Message{
		Role:       llm.RoleTool,
		ToolCallID: "call_42",
		Content:    []llm.MessageContent{llm.NewTextContent(`{"ok":true}`)},
	}

	orMsg, err := client.convertMessage(msg)
	if err != nil {
		t.Fatalf("convertMessage: %v", err)
	}
	if orMsg.ToolCallID != "call_42" {
		t.Errorf("tool call ID = %q, want call_42", orMsg.ToolCallID)
	}
}

func TestConvertStreamResponse(t *testing.T) {
	t.Parallel()

	client := &Client{model: "openai/gpt-4o-mini", provider: "openrouter"}

	t.Run("content_delta", func(t *testing.T) {
		event := client.convertStreamResponse(openrouter.ChatCompletionStreamResponse{
			Choices: []openrouter.ChatCompletionStreamChoice{
				{Index: 0, Delta: openrouter.ChatCompletionStreamChoiceDelta{Content: "Hel"}},
			},
		})
		if event == nil {
			t.Fatal("expected delta event")
		}
		if !event.IsDelta() {
			t.Errorf("expected delta event, got %v", event.Type)
		}
		if got := event.TextDelta(); got != "Hel" {
			t.Errorf("text delta = %q, want Hel", got)
		}
	})

	t.Run("finish_reason_becomes_done", func(t *testing.T) {
		event := client.convertStreamResponse(openrouter.ChatCompletionStreamResponse{
			Choices: []openrouter.ChatCompletionStreamChoice{
				{Index: 0, FinishReason: "stop"},
			},
		})
		if event == nil {
			t.Fatal("expected done event")
		}
		if !event.IsDone() {
			t.Errorf("expected done event, got %v", event.Type)
		}
		if event.Choice.FinishReason != llm.FinishReasonStop {
			t.Errorf("finish reason = %q, want stop", event.Choice.FinishReason)
		}
	})

	t.Run("empty_chunk_is_skipped", func(t *testing.T) {
		event := client.convertStreamResponse(openrouter.ChatCompletionStreamResponse{
			Choices: []openrouter.ChatCompletionStreamChoice{{Index: 0}},
		})
		if event != nil {
			t.Errorf("expected nil event for empty chunk, got %v", event.Type)
		}
	})
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		wantCode string
		wantType string
	}{
		{"bad_request", 400, "bad_request", llm.ErrTypeInvalidRequest},
		{"unauthorized", 401, llm.ErrCodeInvalidAPIKey, llm.ErrTypeAuthentication},
		{"forbidden", 403, "insufficient_permissions", llm.ErrTypeAuthentication},
		{"not_found", 404, "model_not_found", llm.ErrTypeInvalidRequest},
		{"rate_limited", 429, "rate_limit_exceeded", llm.ErrTypeRateLimit},
		{"server_error", 503, "server_error", llm.ErrTypeAPI},
		{"other_client_error", 422, "client_error", llm.ErrTypeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := statusError(tt.status, "boom")
			if err.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", err.Code, tt.wantCode)
			}
			if err.Type != tt.wantType {
				t.Errorf("type = %q, want %q", err.Type, tt.wantType)
			}
			if err.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", err.StatusCode, tt.status)
			}
		})
	}
}

func TestConvertAPIError_MessageRefinement(t *testing.T) {
	t.Parallel()

	t.Run("model_not_found", func(t *testing.T) {
		converted := convertAPIError(&openrouter.APIError{
			HTTPStatusCode: 400,
			Message:        "Model anthropic/claude-9 not found",
		})
		if converted.Code != "model_not_found" {
			t.Errorf("code = %q, want model_not_found", converted.Code)
		}
		if converted.Type != llm.ErrTypeInvalidRequest {
			t.Errorf("type = %q, want %q", converted.Type, llm.ErrTypeInvalidRequest)
		}
	})

	t.Run("api_key", func(t *testing.T) {
		converted := convertAPIError(&openrouter.APIError{
			HTTPStatusCode: 400,
			Message:        "Invalid API key provided",
		})
		if converted.Type != llm.ErrTypeAuthentication {
			t.Errorf("type = %q, want %q", converted.Type, llm.ErrTypeAuthentication)
		}
		if converted.Code != llm.ErrCodeInvalidAPIKey {
			t.Errorf("code = %q, want %q", converted.Code, llm.ErrCodeInvalidAPIKey)
		}
	})

	t.Run("context_length", func(t *testing.T) {
		converted := convertAPIError(&openrouter.APIError{
			HTTPStatusCode: 400,
			Message:        "This request exceeds the maximum context length",
		})
		if converted.Code != "context_length_exceeded" {
			t.Errorf("code = %q, want context_length_exceeded", converted.Code)
		}
	})
}

func TestValidateToolDefinition(t *testing.T) {
	t.Parallel()

	valid := llm.Tool{
		Type: "function",
		Function: llm.ToolFunction{
			Name:        "get_weather",
			Description: "Look up current weather",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"location": map[string]interface{}{"type": "string"},
				},
			},
		},
	}
	if err := validateToolDefinition(valid); err != nil {
		t.Errorf("valid tool rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*llm.Tool)
		wantSub string
	}{
		{"wrong_type", func(tool *llm.Tool) { tool.Type = "retrieval" }, "unsupported tool type"},
		{"missing_name", func(tool *llm.Tool) { tool.Function.Name = "" }, "name is required"},
		{"bad_name", func(tool *llm.Tool) { tool.Function.Name = "9lives!" }, "invalid function name"},
		{"missing_description", func(tool *llm.Tool) { tool.Function.Description = "" }, "description is required"},
		{"non_object_params", func(tool *llm.Tool) { tool.Function.Parameters = "nope" }, "must be an object"},
		{"wrong_params_type", func(tool *llm.Tool) {
			tool.Function.Parameters = map[string]interface{}{"type": "array"}
		}, "type must be 'object'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := valid
			tt.mutate(&tool)
			err := validateToolDefinition(tool)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestImageDataURL(t *testing.T) {
	t.Parallel()

	img := llm.NewImageContentFromBytes([]byte{0x89, 0x50}, "image/png")
	url, err := imageDataURL(img)
	if err != nil {
		t.Fatalf("imageDataURL: %v", err)
	}
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("data URL = %q, want data:image/png;base64, prefix", url)
	}

	bad := llm.NewImageContentFromBytes([]byte{0x00}, "application/x-msdownload")
	if _, err := imageDataURL(bad); err == nil {
		t.Error("expected error for unsupported MIME type")
	}
}

func TestGetModelInfo(t *testing.T) {
	t.Parallel()

	client := &Client{model: "qwen/qwen3-32b", provider: "openrouter"}
	info := client.GetModelInfo()

	if info.Name != "qwen/qwen3-32b" {
		t.Errorf("name = %q", info.Name)
	}
	if info.Provider != "openrouter" {
		t.Errorf("provider = %q", info.Provider)
	}
	if !info.SupportsStreaming || !info.SupportsTools {
		t.Error("expected streaming and tool support by default")
	}
}
