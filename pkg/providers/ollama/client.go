package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/amari-ai/go-amari/pkg/llm"
)

// modelCapabilities defines the capabilities for a model pattern
type modelCapabilities struct {
	pattern        *regexp.Regexp
	maxTokens      int
	supportsVision bool
}

// modelCapabilitiesList defines capabilities for common Ollama models.
// Patterns are matched in order, first match wins.
var modelCapabilitiesList = []modelCapabilities{
	// Llama 3.x models (131K context)
	{
		pattern:   regexp.MustCompile(`llama3\.\d`),
		maxTokens: 131072,
	},
	// Qwen models (32K context)
	{
		pattern:   regexp.MustCompile(`qwen`),
		maxTokens: 32768,
	},
	// Mistral family (32K context)
	{
		pattern:   regexp.MustCompile(`mistral|mixtral`),
		maxTokens: 32768,
	},
	// CodeLlama models (16K context)
	{
		pattern:   regexp.MustCompile(`codellama`),
		maxTokens: 16384,
	},
	// Vision models (LLaVA, etc.)
	{
		pattern:        regexp.MustCompile(`llava|vision`),
		maxTokens:      4096,
		supportsVision: true,
	},
}

// Client implements the llm.Client interface for a local Ollama instance
type Client struct {
	model      string
	baseURL    string
	httpClient *http.Client

	// Health check caching
	lastHealthCheck  *time.Time
	lastHealthStatus *bool
}

// NewClient creates a new Ollama client
func NewClient(config llm.ClientConfig) (*Client, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = llm.DefaultOllamaBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	model := config.Model
	if model == "" {
		model = llm.DefaultOllamaModel
	}

	timeout := config.Timeout
	if timeout == 0 {
		// Local inference is slower than hosted APIs.
		timeout = llm.DefaultOllamaTimeout
	}

	return &Client{
		model:   model,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// ChatCompletion performs a chat completion request against Ollama's API
func (c *Client) ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	body, err := c.doChatRequest(ctx, c.convertToOllamaRequest(req))
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, &llm.Error{
			Code:    "response_error",
			Message: fmt.Sprintf("Failed to read response: %v", err),
			Type:    llm.ErrTypeAPI,
		}
	}

	var ollamaResp ollamaResponse
	if err := json.Unmarshal(raw, &ollamaResp); err != nil {
		return nil, &llm.Error{
			Code:    "parse_error",
			Message: fmt.Sprintf("Failed to parse response: %v", err),
			Type:    llm.ErrTypeAPI,
		}
	}

	return c.convertFromOllamaResponse(ollamaResp), nil
}

// StreamChatCompletion performs a streaming chat completion request.
// Ollama streams NDJSON chunks over a single POST response.
func (c *Client) StreamChatCompletion(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	ollamaReq := c.convertToOllamaRequest(req)
	ollamaReq.Stream = true

	body, err := c.doChatRequest(ctx, ollamaReq)
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.StreamEvent, 10)

	go func() {
		defer close(ch)
		defer func() { _ = body.Close() }()

		scanner := bufio.NewScanner(body)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}

			// Some proxies prefix NDJSON lines the SSE way.
			line = strings.TrimPrefix(line, "data: ")

			var chunk ollamaStreamChunk
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				ch <- llm.NewErrorEvent(&llm.Error{
					Code:    "parse_error",
					Message: fmt.Sprintf("Failed to parse chunk: %v", err),
					Type:    llm.ErrTypeAPI,
				})
				return
			}

			if chunk.Error != "" {
				ch <- llm.NewErrorEvent(&llm.Error{
					Code:    "ollama_error",
					Message: chunk.Error,
					Type:    llm.ErrTypeAPI,
				})
				return
			}

			if chunk.Done {
				ch <- llm.NewDoneEvent(0, llm.FinishReasonStop)
				return
			}

			if chunk.Message.Content != "" {
				ch <- llm.NewTextDeltaEvent(0, chunk.Message.Content)
			}
		}

		if err := scanner.Err(); err != nil {
			ch <- llm.NewErrorEvent(&llm.Error{
				Code:    "stream_error",
				Message: fmt.Sprintf("Stream scan error: %v", err),
				Type:    llm.ErrTypeAPI,
			})
		}
	}()

	return ch, nil
}

// doChatRequest posts a request to /api/chat and returns the response body.
// The caller owns the body. Non-200 responses are drained and converted.
func (c *Client) doChatRequest(ctx context.Context, ollamaReq ollamaRequest) (io.ReadCloser, error) {
	reqBody, err := json.Marshal(ollamaReq)
	if err != nil {
		return nil, &llm.Error{
			Code:    "request_error",
			Message: fmt.Sprintf("Failed to serialize request: %v", err),
			Type:    llm.ErrTypeInvalidRequest,
		}
	}

	url := fmt.Sprintf("%s/api/chat", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, &llm.Error{
			Code:    "request_error",
			Message: fmt.Sprintf("Failed to create request: %v", err),
			Type:    llm.ErrTypeInvalidRequest,
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{
			Code:    "network_error",
			Message: fmt.Sprintf("Request failed: %v", err),
			Type:    llm.ErrTypeAPI,
		}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, c.convertOllamaError(body, resp.StatusCode)
	}

	return resp.Body, nil
}

// GetRemote returns information about the remote client
func (c *Client) GetRemote() llm.ClientRemoteInfo {
	info := llm.ClientRemoteInfo{
		Name: "ollama",
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

// performHealthCheck checks that the Ollama instance answers /api/tags
func (c *Client) performHealthCheck() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/api/tags", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// GetModelInfo returns information about the model
func (c *Client) GetModelInfo() llm.ModelInfo {
	caps := modelCapabilities{maxTokens: 4096}

	for _, modelCaps := range modelCapabilitiesList {
		if modelCaps.pattern.MatchString(c.model) {
			caps = modelCaps
			break
		}
	}

	return llm.ModelInfo{
		Name:              c.model,
		Provider:          "ollama",
		MaxTokens:         caps.maxTokens,
		SupportsTools:     false,
		SupportsVision:    caps.supportsVision,
		SupportsStreaming: true,
	}
}

// Close cleans up resources
func (c *Client) Close() error {
	return nil
}

// Ollama API structures
type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
	Images   []string        `json:"images,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

type ollamaStreamChunk struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// convertToOllamaRequest converts our llm.ChatRequest to Ollama format.
// Images are collected at the request level as base64 data URLs, tool
// calls are rendered inline as text because Ollama has no tool protocol.
func (c *Client) convertToOllamaRequest(req llm.ChatRequest) ollamaRequest {
	var images []string
	messages := make([]ollamaMessage, 0, len(req.Messages))

	for _, msg := range req.Messages {
		role := c.convertRoleToOllama(msg.Role)
		var content strings.Builder

		for _, item := range msg.Content {
			switch typed := item.(type) {
			case *llm.TextContent:
				content.WriteString(typed.GetText())
			case *llm.ImageContent:
				if typed.HasData() {
					images = append(images, fmt.Sprintf("data:%s;base64,%s",
						typed.MimeType, base64.StdEncoding.EncodeToString(typed.Data)))
					content.WriteString("[Image attached]")
				} else if typed.HasURL() {
					// Remote images would need fetching, so pass the reference through as text.
					content.WriteString(fmt.Sprintf("[Image: %s]", typed.URL))
				}
			}
		}

		for _, toolCall := range msg.ToolCalls {
			content.WriteString(fmt.Sprintf("\n[Tool Call: %s with args %s]",
				toolCall.Function.Name, toolCall.Function.Arguments))
		}

		text := content.String()
		if text != "" || role == "user" {
			messages = append(messages, ollamaMessage{
				Role:    role,
				Content: text,
			})
		}
	}

	ollamaReq := ollamaRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   req.Stream,
		Images:   images,
	}

	// Ollama has no native structured output, so format requirements are
	// injected as a leading system message.
	if req.ResponseFormat != nil {
		ollamaReq.Messages = addResponseFormatInstructions(ollamaReq.Messages, req.ResponseFormat)
	}

	if req.Temperature != nil || req.MaxTokens != nil || req.TopP != nil {
		ollamaReq.Options = &ollamaOptions{
			Temperature: req.Temperature,
			TopP:        req.TopP,
			NumPredict:  req.MaxTokens,
		}
	}

	return ollamaReq
}

// convertFromOllamaResponse converts an Ollama response to our format
func (c *Client) convertFromOllamaResponse(resp ollamaResponse) *llm.ChatResponse {
	choice := llm.Choice{
		Index: 0,
		Message: llm.Message{
			Role:    c.convertRoleFromOllama(resp.Message.Role),
			Content: []llm.MessageContent{llm.NewTextContent(resp.Message.Content)},
		},
	}

	if resp.Done {
		choice.FinishReason = llm.FinishReasonStop
	} else {
		choice.FinishReason = llm.FinishReasonLength
	}

	return &llm.ChatResponse{
		ID:      fmt.Sprintf("ollama-%d", time.Now().UnixNano()),
		Model:   resp.Model,
		Created: time.Now().Unix(),
		Choices: []llm.Choice{choice},
		// Ollama does not report token usage.
		Usage: llm.Usage{},
	}
}

// convertOllamaError converts an Ollama error body to our standardized format
func (c *Client) convertOllamaError(body []byte, statusCode int) *llm.Error {
	message := fmt.Sprintf("HTTP %d: %s", statusCode, string(body))

	var parsed ollamaError
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		message = parsed.Error
	}

	code, errType := "ollama_error", llm.ErrTypeAPI
	switch {
	case statusCode == http.StatusNotFound:
		// Usually the model is not pulled yet.
		code, errType = "model_not_found", llm.ErrTypeInvalidRequest
	case statusCode == http.StatusBadRequest:
		code, errType = "bad_request", llm.ErrTypeInvalidRequest
	case statusCode == http.StatusTooManyRequests:
		code, errType = "rate_limit_exceeded", llm.ErrTypeRateLimit
	}

	return &llm.Error{
		Code:       code,
		Message:    message,
		Type:       errType,
		StatusCode: statusCode,
	}
}

func (c *Client) convertRoleToOllama(role llm.MessageRole) string {
	switch role {
	case llm.RoleUser:
		return "user"
	case llm.RoleAssistant:
		return "assistant"
	case llm.RoleSystem:
		return "system"
	case llm.RoleTool:
		// Ollama has no separate tool role.
		return "assistant"
	default:
		return "user"
	}
}

func (c *Client) convertRoleFromOllama(role string) llm.MessageRole {
	switch role {
	case "user":
		return llm.RoleUser
	case "assistant":
		return llm.RoleAssistant
	case "system":
		return llm.RoleSystem
	default:
		return llm.RoleUser
	}
}

// addResponseFormatInstructions prepends a system message describing the
// required output format when a structured response is requested
func addResponseFormatInstructions(messages []ollamaMessage, format *llm.ResponseFormat) []ollamaMessage {
	const jsonOnly = "Please respond only with valid JSON. Do not include any text before or after the JSON object."

	var instruction string
	switch format.Type {
	case llm.ResponseFormatJSON:
		instruction = jsonOnly
	case llm.ResponseFormatJSONSchema:
		instruction = jsonOnly
		if format.JSONSchema != nil && format.JSONSchema.Schema != nil {
			if schemaBytes, err := json.Marshal(format.JSONSchema.Schema); err == nil {
				instruction = fmt.Sprintf(
					"Please respond only with valid JSON that conforms to this schema: %s. Do not include any text before or after the JSON object.",
					string(schemaBytes))
			}
		}
	default:
		return messages
	}

	return append([]ollamaMessage{{Role: "system", Content: instruction}}, messages...)
}
