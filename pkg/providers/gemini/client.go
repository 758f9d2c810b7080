package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/amari-ai/go-amari/pkg/llm"
)

// safeIntToInt32 safely converts int to int32
func safeIntToInt32(val int) int32 {
	if val > 2147483647 {
		return 2147483647
	}
	if val < -2147483648 {
		return -2147483648
	}
	return int32(val)
}

// modelCapabilities defines the capabilities for a model pattern
type modelCapabilities struct {
	pattern        *regexp.Regexp
	maxTokens      int
	supportsTools  bool
	supportsVision bool
}

// modelCapabilitiesList defines capabilities for different Gemini models.
// Models are matched in order, first match wins
var modelCapabilitiesList = []modelCapabilities{
	// Gemini 2.x models (1M context)
	{
		pattern:        regexp.MustCompile(`gemini-2\.\d`),
		maxTokens:      1048576,
		supportsTools:  true,
		supportsVision: true,
	},
	// Gemini 1.5 Pro models (2M context)
	{
		pattern:        regexp.MustCompile(`gemini-1\.5-pro`),
		maxTokens:      2000000,
		supportsTools:  true,
		supportsVision: true,
	},
	// Gemini 1.5 Flash models (1M context)
	{
		pattern:        regexp.MustCompile(`gemini-1\.5-flash`),
		maxTokens:      1000000,
		supportsTools:  true,
		supportsVision: true,
	},
	// Gemini 1.0 Pro Vision
	{
		pattern:        regexp.MustCompile(`gemini-.*-vision`),
		maxTokens:      30720,
		supportsTools:  true,
		supportsVision: true,
	},
}

type Client struct {
	model    string
	provider string
	genai    *genai.Client

	// Health check caching
	lastHealthCheck  *time.Time
	lastHealthStatus *bool
}

// NewClient creates a new Gemini client using the official Google GenAI library.
func NewClient(config llm.ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, &llm.Error{
			Code:    llm.ErrCodeMissingAPIKey,
			Message: "API key is required for Gemini",
			Type:    llm.ErrTypeAuthentication,
		}
	}
	if config.Model == "" {
		config.Model = llm.DefaultGeminiModel
	}

	genaiConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}

	if config.Timeout > 0 {
		genaiConfig.HTTPOptions.Timeout = &config.Timeout
	}

	genaiClient, err := genai.NewClient(context.Background(), genaiConfig)
	if err != nil {
		return nil, &llm.Error{
			Code:    "client_creation_error",
			Message: fmt.Sprintf("Failed to create genai client: %v", err),
			Type:    llm.ErrTypeAPI,
		}
	}

	return &Client{
		model:    config.Model,
		provider: "gemini",
		genai:    genaiClient,
	}, nil
}

// ChatCompletion performs a non-streaming content generation request.
func (c *Client) ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	contents, config, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}

	// All but the last message are history; the last one is the input
	var history []*genai.Content
	if len(contents) > 1 {
		history = contents[:len(contents)-1]
	}

	chat, err := c.genai.Chats.Create(ctx, c.model, config, history)
	if err != nil {
		return nil, c.convertError(err)
	}

	parts := lastMessageParts(contents)

	response, err := chat.SendMessage(ctx, parts...)
	if err != nil {
		return nil, c.convertError(err)
	}

	return c.convertResponse(response), nil
}

// StreamChatCompletion performs a streaming content generation request.
func (c *Client) StreamChatCompletion(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	contents, config, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}

	var history []*genai.Content
	if len(contents) > 1 {
		history = contents[:len(contents)-1]
	}

	chat, err := c.genai.Chats.Create(ctx, c.model, config, history)
	if err != nil {
		return nil, c.convertError(err)
	}

	parts := lastMessageParts(contents)

	ch := make(chan llm.StreamEvent)

	go func() {
		defer close(ch)

		for response, err := range chat.SendMessageStream(ctx, parts...) {
			if err != nil {
				ch <- llm.NewErrorEvent(c.convertError(err))
				return
			}

			if text := candidateText(response); text != "" {
				ch <- llm.NewTextDeltaEvent(0, text)
			}
		}

		ch <- llm.NewDoneEvent(0, llm.FinishReasonStop)
	}()

	return ch, nil
}

// prepareRequest converts messages and builds the generation config shared
// by streaming and non-streaming paths
func (c *Client) prepareRequest(req llm.ChatRequest) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	contents, system, err := c.convertMessages(req.Messages)
	if err != nil {
		return nil, nil, err
	}

	config := &genai.GenerateContentConfig{}
	if req.Temperature != nil {
		config.Temperature = req.Temperature
	}
	if req.MaxTokens != nil {
		config.MaxOutputTokens = safeIntToInt32(*req.MaxTokens)
	}
	if req.TopP != nil {
		config.TopP = req.TopP
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(system)},
		}
	}

	// Gemini has no structured output mode compatible with our schema
	// format, so format instructions are injected as a leading message
	if req.ResponseFormat != nil {
		contents = addResponseFormatInstructions(contents, req.ResponseFormat)
	}

	return contents, config, nil
}

// convertMessages converts our internal message format to genai Content
// format, collecting system messages into a single instruction
func (c *Client) convertMessages(messages []llm.Message) ([]*genai.Content, string, error) {
	var contents []*genai.Content
	var system strings.Builder

	for _, msg := range messages {
		if msg.Role == llm.RoleSystem {
			if system.Len() > 0 {
				system.WriteString("\n")
			}
			system.WriteString(msg.GetText())
			continue
		}

		role := genai.RoleUser
		if msg.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}

		var parts []*genai.Part
		for _, content := range msg.Content {
			if text, ok := content.(*llm.TextContent); ok {
				parts = append(parts, genai.NewPartFromText(text.GetText()))
			} else if img, ok := content.(*llm.ImageContent); ok {
				if img.MimeType != "" && len(img.Data) > 0 {
					parts = append(parts, genai.NewPartFromBytes(img.Data, img.MimeType))
				}
			}
		}

		if len(parts) > 0 {
			contents = append(contents, &genai.Content{
				Role:  role,
				Parts: parts,
			})
		}
	}

	if len(contents) == 0 {
		return nil, "", &llm.Error{
			Code:       "invalid_request",
			Message:    "No valid messages provided",
			Type:       llm.ErrTypeInvalidRequest,
			StatusCode: 400,
		}
	}

	return contents, system.String(), nil
}

// lastMessageParts extracts the parts of the final message as values
func lastMessageParts(contents []*genai.Content) []genai.Part {
	if len(contents) == 0 {
		return nil
	}
	lastContent := contents[len(contents)-1]
	parts := make([]genai.Part, len(lastContent.Parts))
	for i, part := range lastContent.Parts {
		parts[i] = *part
	}
	return parts
}

// candidateText joins the text parts of the first candidate
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// convertResponse converts genai response to our internal format
func (c *Client) convertResponse(resp *genai.GenerateContentResponse) *llm.ChatResponse {
	out := &llm.ChatResponse{
		ID:      fmt.Sprintf("gemini-%s", time.Now().Format(time.RFC3339Nano)),
		Model:   c.model,
		Created: time.Now().Unix(),
		Choices: []llm.Choice{},
	}

	if resp.UsageMetadata != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	if len(resp.Candidates) == 0 {
		return out
	}

	candidate := resp.Candidates[0]

	finishReason := llm.FinishReasonStop
	if candidate.FinishReason == genai.FinishReasonMaxTokens {
		finishReason = llm.FinishReasonLength
	} else if strings.Contains(string(candidate.FinishReason), "SAFETY") {
		finishReason = "content_filter"
	}

	out.Choices = []llm.Choice{
		{
			Index: 0,
			Message: llm.Message{
				Role:    llm.RoleAssistant,
				Content: []llm.MessageContent{llm.NewTextContent(candidateText(resp))},
			},
			FinishReason: finishReason,
		},
	}

	return out
}

// convertError converts genai errors to our internal error format
func (c *Client) convertError(err error) *llm.Error {
	if err == nil {
		return nil
	}

	if ourErr, ok := llm.AsError(err); ok {
		return ourErr
	}

	errMsg := err.Error()

	if strings.Contains(errMsg, "API key") ||
		strings.Contains(errMsg, "authentication") ||
		strings.Contains(errMsg, "unauthorized") ||
		strings.Contains(errMsg, "401") {
		return &llm.Error{
			Code:       llm.ErrCodeInvalidAPIKey,
			Message:    errMsg,
			Type:       llm.ErrTypeAuthentication,
			StatusCode: 401,
		}
	}

	if strings.Contains(errMsg, "rate limit") ||
		strings.Contains(errMsg, "429") {
		return &llm.Error{
			Code:       "rate_limit_exceeded",
			Message:    errMsg,
			Type:       llm.ErrTypeRateLimit,
			StatusCode: 429,
		}
	}

	// Quota exhaustion behaves like a rate limit for retry purposes
	if strings.Contains(errMsg, "quota") ||
		strings.Contains(errMsg, "403") {
		return &llm.Error{
			Code:       "quota_exceeded",
			Message:    errMsg,
			Type:       llm.ErrTypeRateLimit,
			StatusCode: 403,
		}
	}

	return &llm.Error{
		Code:    llm.ErrCodeUnknown,
		Message: errMsg,
		Type:    llm.ErrTypeAPI,
	}
}

// addResponseFormatInstructions injects JSON formatting instructions when a
// ResponseFormat is specified
func addResponseFormatInstructions(contents []*genai.Content, responseFormat *llm.ResponseFormat) []*genai.Content {
	if responseFormat == nil {
		return contents
	}

	var instruction string
	switch responseFormat.Type {
	case llm.ResponseFormatJSON:
		instruction = "Please respond only with valid JSON. Do not include any text before or after the JSON object."
	case llm.ResponseFormatJSONSchema:
		if responseFormat.JSONSchema != nil && responseFormat.JSONSchema.Schema != nil {
			schemaBytes, err := json.Marshal(responseFormat.JSONSchema.Schema)
			if err == nil {
				instruction = fmt.Sprintf("Please respond only with valid JSON that conforms to this schema: %s. Do not include any text before or after the JSON object.", string(schemaBytes))
			} else {
				instruction = "Please respond only with valid JSON. Do not include any text before or after the JSON object."
			}
		} else {
			instruction = "Please respond only with valid JSON. Do not include any text before or after the JSON object."
		}
	default:
		return contents
	}

	// Gemini uses "user" for system-like instructions inside the history
	systemContent := &genai.Content{
		Role: "user",
		Parts: []*genai.Part{
			{Text: instruction},
		},
	}

	return append([]*genai.Content{systemContent}, contents...)
}

// GetRemote returns information about the remote client
func (c *Client) GetRemote() llm.ClientRemoteInfo {
	info := llm.ClientRemoteInfo{
		Name: "gemini",
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

// performHealthCheck performs a simple health check on the Gemini API
func (c *Client) performHealthCheck() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: 1,
	}

	chat, err := c.genai.Chats.Create(ctx, c.model, config, nil)
	if err != nil {
		return false
	}

	_, err = chat.SendMessage(ctx, *genai.NewPartFromText("test"))
	return err == nil
}

func (c *Client) GetModelInfo() llm.ModelInfo {
	caps := modelCapabilities{
		maxTokens:      30720,
		supportsTools:  true,
		supportsVision: true,
	}

	for _, modelCaps := range modelCapabilitiesList {
		if modelCaps.pattern.MatchString(c.model) {
			caps = modelCaps
			break
		}
	}

	return llm.ModelInfo{
		Name:              c.model,
		Provider:          c.provider,
		MaxTokens:         caps.maxTokens,
		SupportsTools:     caps.supportsTools,
		SupportsVision:    caps.supportsVision,
		SupportsStreaming: true,
	}
}

func (c *Client) Close() error {
	// The genai client does not expose a Close method
	return nil
}
