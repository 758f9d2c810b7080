package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/amari-ai/go-amari/pkg/llm"
)

// ModelAttribute represents a model attribute with its pattern and value
type ModelAttribute[T any] struct {
	Pattern *regexp.Regexp
	Value   T
}

// Model attribute patterns, matched in order with first match winning
var (
	// Vision support patterns - models that accept image inputs
	visionSupport = []ModelAttribute[bool]{
		{regexp.MustCompile(`^gpt-4o(-mini)?$`), true},
		{regexp.MustCompile(`^gpt-4\.1(-mini|-nano)?$`), true},
		{regexp.MustCompile(`^gpt-4-turbo(-\d{4}-\d{2}-\d{2})?$`), true},
		{regexp.MustCompile(`^gpt-4-vision-preview$`), true},
		{regexp.MustCompile(`.*`), false},
	}

	// Tools support patterns - models that support function calling
	toolsSupport = []ModelAttribute[bool]{
		{regexp.MustCompile(`^gpt-4o(-mini)?$`), true},
		{regexp.MustCompile(`^gpt-4\.1(-mini|-nano)?$`), true},
		{regexp.MustCompile(`^gpt-4(-0613|-32k|-32k-0613)?$`), true},
		{regexp.MustCompile(`^gpt-4-turbo(-preview|-\d{4}-\d{2}-\d{2})?$`), true},
		{regexp.MustCompile(`^gpt-3\.5-turbo(-16k|-\d{4}-\d{2}-\d{2})?$`), true},
		// Custom endpoints frequently serve GPT-compatible models under
		// arbitrary names
		{regexp.MustCompile(`(?i).*gpt.*`), true},
		{regexp.MustCompile(`(?i).*oss.*`), true},
		{regexp.MustCompile(`.*`), false},
	}

	// Context length patterns - maximum tokens for different models
	contextLength = []ModelAttribute[int]{
		{regexp.MustCompile(`^gpt-4o(-mini)?$`), 128000},
		{regexp.MustCompile(`^gpt-4\.1(-mini|-nano)?$`), 1047576},
		{regexp.MustCompile(`^gpt-4-turbo(-preview|-\d{4}-\d{2}-\d{2})?$`), 128000},
		{regexp.MustCompile(`^gpt-4-32k(-0613)?$`), 32768},
		{regexp.MustCompile(`^gpt-4(-0613)?$`), 8192},
		{regexp.MustCompile(`^gpt-3\.5-turbo-16k(-\d{4}-\d{2}-\d{2})?$`), 16384},
		{regexp.MustCompile(`^gpt-3\.5-turbo(-\d{4}-\d{2}-\d{2})?$`), 4096},
		{regexp.MustCompile(`.*`), 4096},
	}
)

// getModelAttribute returns the attribute value for a model by matching
// against patterns in order
func getModelAttribute[T any](model string, attributes []ModelAttribute[T]) T {
	for _, attr := range attributes {
		if attr.Pattern.MatchString(model) {
			return attr.Value
		}
	}
	var zero T
	return zero
}

// Client implements the llm.Client interface for OpenAI
type Client struct {
	client   *openai.Client
	model    string
	provider string
	baseURL  string

	// Health check caching
	lastHealthCheck  *time.Time
	lastHealthStatus *bool
}

// NewClient creates a new OpenAI client
func NewClient(config llm.ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, &llm.Error{
			Code:    llm.ErrCodeMissingAPIKey,
			Message: "API key is required for OpenAI",
			Type:    llm.ErrTypeAuthentication,
		}
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    config.Model,
		provider: "openai",
		baseURL:  config.BaseURL,
	}, nil
}

// ChatCompletion performs a chat completion request
func (c *Client) ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	model := c.selectModelForRequest(req)

	openaiReq, err := c.convertRequest(req, model)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.CreateChatCompletion(ctx, openaiReq)
	if err != nil {
		return nil, c.convertError(err)
	}

	return c.convertResponse(resp), nil
}

// StreamChatCompletion performs a streaming chat completion request
func (c *Client) StreamChatCompletion(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	model := c.selectModelForRequest(req)

	openaiReq, err := c.convertRequest(req, model)
	if err != nil {
		return nil, err
	}
	openaiReq.Stream = true

	stream, err := c.client.CreateChatCompletionStream(ctx, openaiReq)
	if err != nil {
		return nil, c.convertError(err)
	}

	ch := make(chan llm.StreamEvent, 10)

	go func() {
		defer close(ch)
		defer func() { _ = stream.Close() }()

		finishSent := false
		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				if !finishSent {
					ch <- llm.NewDoneEvent(0, llm.FinishReasonStop)
				}
				return
			}
			if err != nil {
				ch <- llm.NewErrorEvent(c.convertError(err))
				return
			}

			if len(response.Choices) == 0 {
				continue
			}
			choice := response.Choices[0]

			if choice.FinishReason != "" && choice.FinishReason != openai.FinishReasonNull {
				ch <- llm.NewDoneEvent(choice.Index, string(choice.FinishReason))
				finishSent = true
				continue
			}

			delta := &llm.MessageDelta{}
			if choice.Delta.Content != "" {
				delta.Content = []llm.MessageContent{llm.NewTextContent(choice.Delta.Content)}
			}
			for _, tc := range choice.Delta.ToolCalls {
				toolCallDelta := llm.ToolCallDelta{
					ID:   tc.ID,
					Type: string(tc.Type),
				}
				if tc.Index != nil {
					toolCallDelta.Index = *tc.Index
				}
				if tc.Function.Name != "" || tc.Function.Arguments != "" {
					toolCallDelta.Function = &llm.ToolCallFunctionDelta{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					}
				}
				delta.ToolCalls = append(delta.ToolCalls, toolCallDelta)
			}

			if len(delta.Content) > 0 || len(delta.ToolCalls) > 0 {
				ch <- llm.NewDeltaEvent(choice.Index, delta)
			}
		}
	}()

	return ch, nil
}

// GetRemote returns information about the remote endpoint
func (c *Client) GetRemote() llm.ClientRemoteInfo {
	info := llm.ClientRemoteInfo{
		Name: "openai",
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

// performHealthCheck performs a simple health check on the OpenAI API
func (c *Client) performHealthCheck() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.client.ListModels(ctx)
	return err == nil
}

// GetModelInfo returns information about the model being used
func (c *Client) GetModelInfo() llm.ModelInfo {
	return llm.ModelInfo{
		Name:              c.model,
		Provider:          c.provider,
		MaxTokens:         getModelAttribute(c.model, contextLength),
		SupportsTools:     c.supportsTools(c.model),
		SupportsVision:    getModelAttribute(c.model, visionSupport),
		SupportsStreaming: true,
	}
}

// Close cleans up any resources used by the client
func (c *Client) Close() error {
	return nil
}

// selectModelForRequest picks a vision-capable model when the request
// carries image content and the configured model cannot handle it
func (c *Client) selectModelForRequest(req llm.ChatRequest) string {
	hasImages := false
	for _, msg := range req.Messages {
		if msg.HasContentType(llm.MessageTypeImage) {
			hasImages = true
			break
		}
	}

	if hasImages && !getModelAttribute(c.model, visionSupport) {
		return "gpt-4o"
	}

	return c.model
}

// convertRequest converts our ChatRequest to OpenAI format
func (c *Client) convertRequest(req llm.ChatRequest, model string) (openai.ChatCompletionRequest, error) {
	openaiReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: c.convertMessages(req.Messages),
		Stream:   req.Stream,
	}

	if req.Temperature != nil {
		openaiReq.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		openaiReq.MaxTokens = *req.MaxTokens
	}
	if req.TopP != nil {
		openaiReq.TopP = *req.TopP
	}

	for _, tool := range req.Tools {
		openaiReq.Tools = append(openaiReq.Tools, openai.Tool{
			Type: openai.ToolType(tool.Type),
			Function: &openai.FunctionDefinition{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			},
		})
	}

	if req.ResponseFormat != nil {
		format, err := convertResponseFormat(req.ResponseFormat)
		if err != nil {
			return openai.ChatCompletionRequest{}, err
		}
		openaiReq.ResponseFormat = format
	}

	return openaiReq, nil
}

// rawSchema adapts an arbitrary schema value to the json.Marshaler the
// OpenAI structured output API expects
type rawSchema struct {
	value interface{}
}

func (s rawSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.value)
}

// convertResponseFormat converts our ResponseFormat to OpenAI format
func convertResponseFormat(format *llm.ResponseFormat) (*openai.ChatCompletionResponseFormat, error) {
	switch format.Type {
	case llm.ResponseFormatJSON:
		return &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}, nil
	case llm.ResponseFormatJSONSchema:
		if format.JSONSchema == nil {
			return nil, &llm.Error{
				Code:    "missing_json_schema",
				Message: "response format json_schema requires a schema",
				Type:    llm.ErrTypeInvalidRequest,
			}
		}
		jsonSchema := &openai.ChatCompletionResponseFormatJSONSchema{
			Name:        format.JSONSchema.Name,
			Description: format.JSONSchema.Description,
		}
		if format.JSONSchema.Schema != nil {
			jsonSchema.Schema = rawSchema{value: format.JSONSchema.Schema}
		}
		if format.JSONSchema.Strict != nil {
			jsonSchema.Strict = *format.JSONSchema.Strict
		}
		return &openai.ChatCompletionResponseFormat{
			Type:       openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: jsonSchema,
		}, nil
	default:
		return nil, nil
	}
}

// convertMessages converts our messages to OpenAI format
func (c *Client) convertMessages(messages []llm.Message) []openai.ChatCompletionMessage {
	var openaiMessages []openai.ChatCompletionMessage

	for _, msg := range messages {
		openaiMsg := openai.ChatCompletionMessage{
			Role: string(msg.Role),
		}

		for _, tc := range msg.ToolCalls {
			openaiMsg.ToolCalls = append(openaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolType(tc.Type),
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}

		if msg.ToolCallID != "" {
			openaiMsg.ToolCallID = msg.ToolCallID
		}

		// The API rejects messages whose content serializes to undefined,
		// so empty content is sent as a single space
		if len(msg.Content) == 1 && msg.IsTextOnly() {
			text := msg.GetText()
			if strings.TrimSpace(text) == "" {
				openaiMsg.Content = " "
			} else {
				openaiMsg.Content = text
			}
		} else if len(msg.Content) > 0 {
			var parts []openai.ChatMessagePart

			for _, content := range msg.Content {
				switch content.Type() {
				case llm.MessageTypeText:
					if textContent, ok := content.(*llm.TextContent); ok {
						text := textContent.GetText()
						if strings.TrimSpace(text) != "" {
							parts = append(parts, openai.ChatMessagePart{
								Type: openai.ChatMessagePartTypeText,
								Text: text,
							})
						}
					}
				case llm.MessageTypeImage:
					if imgContent, ok := content.(*llm.ImageContent); ok {
						parts = append(parts, openai.ChatMessagePart{
							Type: openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{
								URL:    imageToURL(imgContent),
								Detail: openai.ImageURLDetailAuto,
							},
						})
					}
				}
			}

			if len(parts) == 0 {
				openaiMsg.Content = " "
			} else {
				openaiMsg.MultiContent = parts
			}
		} else {
			openaiMsg.Content = " "
		}

		openaiMessages = append(openaiMessages, openaiMsg)
	}

	return openaiMessages
}

// imageToURL returns the image URL, or a base64 data URL for inline data
func imageToURL(img *llm.ImageContent) string {
	if img.HasURL() {
		return img.URL
	}
	if img.HasData() {
		return fmt.Sprintf("data:%s;base64,%s", img.MimeType,
			base64.StdEncoding.EncodeToString(img.Data))
	}
	return ""
}

// convertResponse converts an OpenAI response to our format
func (c *Client) convertResponse(resp openai.ChatCompletionResponse) *llm.ChatResponse {
	chatResp := &llm.ChatResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Created: resp.Created,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	for _, choice := range resp.Choices {
		chatResp.Choices = append(chatResp.Choices, llm.Choice{
			Index:        choice.Index,
			Message:      c.convertMessage(choice.Message),
			FinishReason: string(choice.FinishReason),
		})
	}

	return chatResp
}

// convertMessage converts an OpenAI message to our format
func (c *Client) convertMessage(msg openai.ChatCompletionMessage) llm.Message {
	ourMsg := llm.Message{
		Role:    llm.MessageRole(msg.Role),
		Content: []llm.MessageContent{},
	}

	if msg.Content != "" {
		ourMsg.Content = []llm.MessageContent{llm.NewTextContent(msg.Content)}
	}

	for _, tc := range msg.ToolCalls {
		ourMsg.ToolCalls = append(ourMsg.ToolCalls, llm.ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			Function: llm.ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}

	if msg.ToolCallID != "" {
		ourMsg.ToolCallID = msg.ToolCallID
	}

	return ourMsg
}

// convertError converts an OpenAI error to our standardized format
func (c *Client) convertError(err error) *llm.Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := llm.ErrCodeUnknown
		if apiErr.Code != nil {
			if codeStr, ok := apiErr.Code.(string); ok && codeStr != "" {
				code = codeStr
			}
		}
		return &llm.Error{
			Code:       code,
			Message:    apiErr.Message,
			Type:       errorTypeForStatus(apiErr.HTTPStatusCode, apiErr.Type),
			StatusCode: apiErr.HTTPStatusCode,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &llm.Error{
			Code:       llm.ErrCodeUnknown,
			Message:    reqErr.Error(),
			Type:       errorTypeForStatus(reqErr.HTTPStatusCode, ""),
			StatusCode: reqErr.HTTPStatusCode,
		}
	}

	return &llm.Error{
		Code:    llm.ErrCodeUnknown,
		Message: err.Error(),
		Type:    llm.ErrTypeAPI,
	}
}

// errorTypeForStatus maps an HTTP status to our error taxonomy, preferring
// the wire type when it is one we recognize
func errorTypeForStatus(statusCode int, wireType string) string {
	switch wireType {
	case llm.ErrTypeAuthentication, llm.ErrTypeRateLimit, llm.ErrTypeInvalidRequest, llm.ErrTypeAPI:
		return wireType
	}
	switch {
	case statusCode == 401 || statusCode == 403:
		return llm.ErrTypeAuthentication
	case statusCode == 429:
		return llm.ErrTypeRateLimit
	case statusCode >= 400 && statusCode < 500:
		return llm.ErrTypeInvalidRequest
	default:
		return llm.ErrTypeAPI
	}
}

// supportsTools checks whether the model supports function calling
func (c *Client) supportsTools(model string) bool {
	if c.baseURL != "" && c.baseURL != "https://api.openai.com/v1" {
		return getModelAttribute(model, toolsSupport)
	}

	// The generic GPT/OSS patterns only apply to custom endpoints
	for _, attr := range toolsSupport {
		pattern := attr.Pattern.String()
		if strings.Contains(pattern, "(?i).*gpt.*") || strings.Contains(pattern, "(?i).*oss.*") {
			continue
		}
		if attr.Pattern.MatchString(model) {
			return attr.Value
		}
	}

	return false
}
