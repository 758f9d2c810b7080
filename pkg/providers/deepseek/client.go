package deepseek

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cohesion-org/deepseek-go"

	"github.com/amari-ai/go-amari/pkg/llm"
)

// maxMessageSize bounds the total content size of a single message
const maxMessageSize = int64(10 * 1024 * 1024)

// Client implements the llm.Client interface for DeepSeek
type Client struct {
	client   *deepseek.Client
	model    string
	provider string
	config   llm.ClientConfig

	// Health check caching
	lastHealthCheck  *time.Time
	lastHealthStatus *bool
}

// NewClient creates a new DeepSeek client
func NewClient(config llm.ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, &llm.Error{
			Code:    llm.ErrCodeMissingAPIKey,
			Message: "API key is required for DeepSeek",
			Type:    llm.ErrTypeAuthentication,
		}
	}

	if config.Model == "" {
		config.Model = llm.DefaultDeepSeekModel
	}

	var opts []deepseek.Option

	if config.BaseURL != "" {
		if config.BaseURL == "http://" || config.BaseURL == "https://" {
			return nil, &llm.Error{
				Code:    "invalid_base_url",
				Message: "base URL cannot be just a protocol",
				Type:    llm.ErrTypeInvalidRequest,
			}
		}
		opts = append(opts, deepseek.WithBaseURL(config.BaseURL))
	}

	if config.Timeout > 0 {
		opts = append(opts, deepseek.WithTimeout(config.Timeout))
	}

	var client *deepseek.Client
	var err error

	if len(opts) > 0 {
		client, err = deepseek.NewClientWithOptions(config.APIKey, opts...)
		if err != nil {
			return nil, &llm.Error{
				Code:    "client_creation_error",
				Message: "Failed to create DeepSeek client: " + err.Error(),
				Type:    llm.ErrTypeInvalidRequest,
			}
		}
	} else {
		client = deepseek.NewClient(config.APIKey)
	}

	return &Client{
		client:   client,
		model:    config.Model,
		provider: "deepseek",
		config:   config,
	}, nil
}

// ChatCompletion performs a chat completion request
func (c *Client) ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	messages, tools, err := c.convertMessagesAndTools(req)
	if err != nil {
		return nil, err
	}

	deepseekReq := deepseek.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    tools,
	}
	if req.Temperature != nil {
		deepseekReq.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		deepseekReq.MaxTokens = *req.MaxTokens
	}
	if req.TopP != nil {
		deepseekReq.TopP = *req.TopP
	}

	resp, err := c.client.CreateChatCompletion(ctx, &deepseekReq)
	if err != nil {
		return nil, c.convertError(err)
	}

	return c.convertResponse(*resp), nil
}

// StreamChatCompletion performs a streaming chat completion request
func (c *Client) StreamChatCompletion(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	messages, tools, err := c.convertMessagesAndTools(req)
	if err != nil {
		return nil, err
	}

	deepseekReq := deepseek.StreamChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    tools,
		Stream:   true,
	}
	if req.Temperature != nil {
		deepseekReq.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		deepseekReq.MaxTokens = *req.MaxTokens
	}
	if req.TopP != nil {
		deepseekReq.TopP = *req.TopP
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, &deepseekReq)
	if err != nil {
		return nil, c.convertError(err)
	}

	ch := make(chan llm.StreamEvent, 10)

	go func() {
		defer close(ch)
		defer func() { _ = stream.Close() }()

		for {
			response, err := stream.Recv()
			if err == io.EOF {
				ch <- llm.NewDoneEvent(0, llm.FinishReasonStop)
				return
			}
			if err != nil {
				ch <- llm.NewErrorEvent(c.convertError(err))
				return
			}

			if event := c.convertStreamEvent(response); event != nil {
				ch <- *event
				if event.IsDone() {
					return
				}
			}
		}
	}()

	return ch, nil
}

// GetRemote returns information about the remote client
func (c *Client) GetRemote() llm.ClientRemoteInfo {
	info := llm.ClientRemoteInfo{
		Name: "deepseek",
	}

	now := time.Now()
	needsRefresh := c.lastHealthCheck == nil ||
		now.Sub(*c.lastHealthCheck) >= llm.DefaultHealthCheckInterval

	if needsRefresh {
		healthy := c.performHealthCheck()
		c.lastHealthStatus = &healthy
		c.lastHealthCheck = &now
	}

	info.Status = &llm.ClientRemoteInfoStatus{
		Healthy:     c.lastHealthStatus,
		LastChecked: c.lastHealthCheck,
	}

	return info
}

// performHealthCheck performs a simple health check on the DeepSeek API
func (c *Client) performHealthCheck() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req := deepseek.ChatCompletionRequest{
		Model: c.model,
		Messages: []deepseek.ChatCompletionMessage{
			{
				Role:    "user",
				Content: "test",
			},
		},
		MaxTokens: 1,
	}

	_, err := c.client.CreateChatCompletion(ctx, &req)
	return err == nil
}

// GetModelInfo returns information about the model
func (c *Client) GetModelInfo() llm.ModelInfo {
	return llm.ModelInfo{
		Name:              c.model,
		Provider:          c.provider,
		MaxTokens:         32768,
		SupportsTools:     true,
		SupportsVision:    false,
		SupportsStreaming: true,
	}
}

// Close cleans up resources
func (c *Client) Close() error {
	// The deepseek-go client manages its own HTTP client internally and
	// exposes no Close method
	c.client = nil
	return nil
}

// convertMessagesAndTools converts the request messages and tools, shared by
// the streaming and non-streaming paths
func (c *Client) convertMessagesAndTools(req llm.ChatRequest) ([]deepseek.ChatCompletionMessage, []deepseek.Tool, error) {
	messages := make([]deepseek.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		convertedMsg, err := c.convertMessage(msg)
		if err != nil {
			return nil, nil, err
		}
		messages[i] = convertedMsg
	}

	var tools []deepseek.Tool
	if len(req.Tools) > 0 {
		if !c.GetModelInfo().SupportsTools {
			return nil, nil, &llm.Error{
				Code:    "tools_not_supported",
				Message: "Model " + c.model + " does not support tools",
				Type:    llm.ErrTypeInvalidRequest,
			}
		}

		tools = make([]deepseek.Tool, len(req.Tools))
		for i, tool := range req.Tools {
			var params *deepseek.FunctionParameters
			if tool.Function.Parameters != nil {
				params = convertToolParameters(tool.Function.Parameters)
			}

			tools[i] = deepseek.Tool{
				Type: tool.Type,
				Function: deepseek.Function{
					Name:        tool.Function.Name,
					Description: tool.Function.Description,
					Parameters:  params,
				},
			}
		}
	}

	return messages, tools, nil
}

// convertMessage converts our Message to DeepSeek format. DeepSeek models
// are text-only, so image content is rendered as a text description
func (c *Client) convertMessage(msg llm.Message) (deepseek.ChatCompletionMessage, error) {
	deepseekMsg := deepseek.ChatCompletionMessage{
		Role:       convertRoleToDeepSeek(msg.Role),
		ToolCalls:  convertToolCallsToDeepSeek(msg.ToolCalls),
		ToolCallID: msg.ToolCallID,
	}

	if len(msg.Content) == 0 {
		return deepseekMsg, nil
	}

	if msg.TotalSize() > maxMessageSize {
		return deepseek.ChatCompletionMessage{}, &llm.Error{
			Code:    "message_size_exceeded",
			Message: fmt.Sprintf("Message size %d bytes exceeds limit %d bytes", msg.TotalSize(), maxMessageSize),
			Type:    llm.ErrTypeInvalidRequest,
		}
	}

	var parts []string
	for _, content := range msg.Content {
		switch content.Type() {
		case llm.MessageTypeText:
			if textContent, ok := content.(*llm.TextContent); ok {
				parts = append(parts, textContent.GetText())
			}
		case llm.MessageTypeImage:
			img, ok := content.(*llm.ImageContent)
			if !ok {
				continue
			}
			parts = append(parts, describeImage(img))
		}
	}

	deepseekMsg.Content = strings.Join(parts, "\n\n")
	return deepseekMsg, nil
}

// describeImage renders image content as a text placeholder
func describeImage(img *llm.ImageContent) string {
	if img.HasURL() {
		return fmt.Sprintf("[Image: %s, Type: %s]", img.URL, img.MimeType)
	}
	if img.HasData() {
		return fmt.Sprintf("[Image: base64 data, Type: %s, Size: %d bytes]", img.MimeType, img.Size())
	}
	return "[Image: no data available]"
}

// convertRoleToDeepSeek converts our llm.MessageRole to DeepSeek format
func convertRoleToDeepSeek(role llm.MessageRole) string {
	switch role {
	case llm.RoleSystem:
		return "system"
	case llm.RoleUser:
		return "user"
	case llm.RoleAssistant:
		return "assistant"
	case llm.RoleTool:
		return "tool"
	default:
		return "user"
	}
}

// convertToolCallsToDeepSeek converts our ToolCalls to DeepSeek format
func convertToolCallsToDeepSeek(toolCalls []llm.ToolCall) []deepseek.ToolCall {
	if len(toolCalls) == 0 {
		return nil
	}

	deepseekToolCalls := make([]deepseek.ToolCall, len(toolCalls))
	for i, tc := range toolCalls {
		deepseekToolCalls[i] = deepseek.ToolCall{
			Index: i, // DeepSeek requires an index
			ID:    tc.ID,
			Type:  tc.Type,
			Function: deepseek.ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
	return deepseekToolCalls
}

// convertResponse converts DeepSeek response to our format
func (c *Client) convertResponse(resp deepseek.ChatCompletionResponse) *llm.ChatResponse {
	choices := make([]llm.Choice, len(resp.Choices))
	for i, choice := range resp.Choices {
		choices[i] = llm.Choice{
			Index: choice.Index,
			Message: llm.Message{
				Role:      convertRoleFromDeepSeek(choice.Message.Role),
				Content:   []llm.MessageContent{llm.NewTextContent(choice.Message.Content)},
				ToolCalls: convertToolCallsFromDeepSeek(choice.Message.ToolCalls),
			},
			FinishReason: choice.FinishReason,
		}
	}

	return &llm.ChatResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Created: resp.Created,
		Choices: choices,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
}

// convertRoleFromDeepSeek converts DeepSeek role to our llm.MessageRole
func convertRoleFromDeepSeek(role string) llm.MessageRole {
	switch role {
	case "system":
		return llm.RoleSystem
	case "user":
		return llm.RoleUser
	case "assistant":
		return llm.RoleAssistant
	case "tool":
		return llm.RoleTool
	default:
		return llm.RoleAssistant
	}
}

// convertToolCallsFromDeepSeek converts DeepSeek ToolCalls to our format
func convertToolCallsFromDeepSeek(toolCalls []deepseek.ToolCall) []llm.ToolCall {
	if len(toolCalls) == 0 {
		return nil
	}

	ourToolCalls := make([]llm.ToolCall, len(toolCalls))
	for i, tc := range toolCalls {
		ourToolCalls[i] = llm.ToolCall{
			ID:   tc.ID,
			Type: tc.Type,
			Function: llm.ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
	return ourToolCalls
}

// convertStreamEvent converts DeepSeek streaming response to llm.StreamEvent
func (c *Client) convertStreamEvent(resp *deepseek.StreamChatCompletionResponse) *llm.StreamEvent {
	if resp == nil || len(resp.Choices) == 0 {
		return nil
	}

	choice := resp.Choices[0]

	if choice.FinishReason != "" {
		event := llm.NewDoneEvent(choice.Index, choice.FinishReason)
		return &event
	}

	delta := &llm.MessageDelta{}
	hasContent := false

	if choice.Delta.Content != "" {
		delta.Content = []llm.MessageContent{llm.NewTextContent(choice.Delta.Content)}
		hasContent = true
	}

	if len(choice.Delta.ToolCalls) > 0 {
		for _, tc := range choice.Delta.ToolCalls {
			delta.ToolCalls = append(delta.ToolCalls, llm.ToolCallDelta{
				Index: tc.Index,
				ID:    tc.ID,
				Type:  tc.Type,
				Function: &llm.ToolCallFunctionDelta{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		hasContent = true
	}

	if hasContent {
		event := llm.NewDeltaEvent(choice.Index, delta)
		return &event
	}

	return nil
}

// convertError converts DeepSeek error to our standardized error format
func (c *Client) convertError(err error) *llm.Error {
	if err == nil {
		return nil
	}

	errorMsg := err.Error()
	lower := strings.ToLower(errorMsg)

	code := llm.ErrCodeUnknown
	errorType := llm.ErrTypeAPI
	statusCode := 0

	switch {
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key") || strings.Contains(lower, "authentication"):
		code = llm.ErrCodeInvalidAPIKey
		errorType = llm.ErrTypeAuthentication
		statusCode = 401
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests"):
		code = "rate_limit_exceeded"
		errorType = llm.ErrTypeRateLimit
		statusCode = 429
	case strings.Contains(lower, "model") && strings.Contains(lower, "not found"):
		code = "model_not_found"
		errorType = llm.ErrTypeInvalidRequest
		statusCode = 404
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		code = "timeout"
		errorType = llm.ErrTypeAPI
		statusCode = 408
	case strings.Contains(lower, "validation") || strings.Contains(lower, "invalid"):
		code = "invalid_request"
		errorType = llm.ErrTypeInvalidRequest
		statusCode = 400
	}

	return &llm.Error{
		Code:       code,
		Message:    errorMsg,
		Type:       errorType,
		StatusCode: statusCode,
	}
}

// convertToolParameters converts loose schema parameters to DeepSeek's
// FunctionParameters shape
func convertToolParameters(params interface{}) *deepseek.FunctionParameters {
	if params == nil {
		return nil
	}

	paramMap, ok := params.(map[string]interface{})
	if !ok {
		return &deepseek.FunctionParameters{
			Type: "object",
		}
	}

	result := &deepseek.FunctionParameters{Type: "object"}

	if typeVal, exists := paramMap["type"]; exists {
		if typeStr, ok := typeVal.(string); ok {
			result.Type = typeStr
		}
	}

	if propsVal, exists := paramMap["properties"]; exists {
		if propsMap, ok := propsVal.(map[string]interface{}); ok {
			result.Properties = propsMap
		}
	}

	if reqVal, exists := paramMap["required"]; exists {
		if reqSlice, ok := reqVal.([]interface{}); ok {
			required := make([]string, 0, len(reqSlice))
			for _, item := range reqSlice {
				if str, ok := item.(string); ok {
					required = append(required, str)
				}
			}
			result.Required = required
		} else if reqStrSlice, ok := reqVal.([]string); ok {
			result.Required = reqStrSlice
		}
	}

	return result
}
