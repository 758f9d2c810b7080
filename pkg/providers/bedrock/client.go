package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"github.com/amari-ai/go-amari/pkg/llm"
)

const defaultRegion = "us-east-1"

// modelFamily selects the request/response wire format. Bedrock hosts
// models from several vendors, each with its own payload shape.
type modelFamily int

const (
	familyClaude modelFamily = iota
	familyTitan
	familyLlama
)

// Client implements the llm.Client interface for AWS Bedrock
type Client struct {
	bedrockClient        *bedrock.Client
	bedrockRuntimeClient *bedrockruntime.Client
	model                string
	region               string
	provider             string

	// Health check caching
	lastHealthCheck  *time.Time
	lastHealthStatus *bool
}

// NewClient creates a new AWS Bedrock client. Credentials come from the
// AWS SDK default chain (environment, profiles, IAM roles).
func NewClient(config llm.ClientConfig) (*Client, error) {
	region := defaultRegion
	if config.Extra != nil {
		if r, exists := config.Extra["region"]; exists {
			region = r
		}
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, &llm.Error{
			Code:    "aws_config_error",
			Message: fmt.Sprintf("Failed to load AWS configuration: %v", err),
			Type:    llm.ErrTypeAuthentication,
		}
	}

	bedrockClient := bedrock.NewFromConfig(awsConfig, func(o *bedrock.Options) {
		if config.Extra != nil {
			if endpoint, exists := config.Extra["bedrock_endpoint"]; exists && endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}
	})

	bedrockRuntimeClient := bedrockruntime.NewFromConfig(awsConfig, func(o *bedrockruntime.Options) {
		if config.Extra != nil {
			if endpoint, exists := config.Extra["bedrock_runtime_endpoint"]; exists && endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}
		// BaseURL points at the runtime endpoint for consistency with the
		// other providers.
		if config.BaseURL != "" {
			o.BaseEndpoint = aws.String(config.BaseURL)
		}
	})

	return &Client{
		bedrockClient:        bedrockClient,
		bedrockRuntimeClient: bedrockRuntimeClient,
		model:                config.Model,
		region:               region,
		provider:             "bedrock",
	}, nil
}

// ChatCompletion performs a chat completion request
func (c *Client) ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	payload, err := c.convertRequest(req)
	if err != nil {
		return nil, err
	}

	response, err := c.bedrockRuntimeClient.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.model),
		ContentType: aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return nil, c.convertError(err)
	}

	return c.convertResponse(response.Body)
}

// StreamChatCompletion performs a streaming chat completion request
func (c *Client) StreamChatCompletion(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	payload, err := c.convertRequest(req)
	if err != nil {
		return nil, err
	}

	response, err := c.bedrockRuntimeClient.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(c.model),
		ContentType: aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return nil, c.convertError(err)
	}

	ch := make(chan llm.StreamEvent, 10)

	go func() {
		defer close(ch)

		for event := range response.GetStream().Events() {
			chunk, ok := event.(*types.ResponseStreamMemberChunk)
			if !ok {
				// Unknown union members are skipped.
				continue
			}

			streamEvent, err := c.convertStreamChunk(chunk.Value.Bytes)
			if err != nil {
				ch <- llm.NewErrorEvent(c.convertError(err))
				return
			}
			if streamEvent != nil {
				ch <- *streamEvent
			}
		}

		ch <- llm.NewDoneEvent(0, llm.FinishReasonStop)
	}()

	return ch, nil
}

// GetRemote returns information about the remote client
func (c *Client) GetRemote() llm.ClientRemoteInfo {
	info := llm.ClientRemoteInfo{
		Name: "bedrock",
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

// performHealthCheck lists foundation models as a lightweight reachability check
func (c *Client) performHealthCheck() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := c.bedrockClient.ListFoundationModels(ctx, &bedrock.ListFoundationModelsInput{})
	return err == nil
}

// GetModelInfo returns information about the model being used
func (c *Client) GetModelInfo() llm.ModelInfo {
	isClaude3 := strings.Contains(c.model, "claude-3")

	return llm.ModelInfo{
		Name:              c.model,
		Provider:          c.provider,
		MaxTokens:         c.maxTokensForModel(),
		SupportsTools:     isClaude3,
		SupportsVision:    isClaude3,
		SupportsStreaming: true,
	}
}

// Close cleans up any resources used by the client
func (c *Client) Close() error {
	// AWS SDK clients don't require explicit cleanup.
	return nil
}

// family detects the payload format from the model identifier
func (c *Client) family() modelFamily {
	switch {
	case strings.Contains(c.model, "claude") || strings.Contains(c.model, "anthropic"):
		return familyClaude
	case strings.Contains(c.model, "titan") || strings.Contains(c.model, "amazon"):
		return familyTitan
	case strings.Contains(c.model, "llama") || strings.Contains(c.model, "meta"):
		return familyLlama
	default:
		// Most Bedrock chat models speak the Anthropic format.
		return familyClaude
	}
}

// convertRequest builds the family-specific request payload
func (c *Client) convertRequest(req llm.ChatRequest) ([]byte, error) {
	switch c.family() {
	case familyTitan:
		return c.convertToTitanRequest(req)
	case familyLlama:
		return c.convertToLlamaRequest(req)
	default:
		return c.convertToClaudeRequest(req)
	}
}

// convertToClaudeRequest converts to the Anthropic request format. Legacy
// claude-v2 and claude-instant models use the prompt format, everything
// newer uses the messages API.
func (c *Client) convertToClaudeRequest(req llm.ChatRequest) ([]byte, error) {
	if strings.Contains(c.model, "claude-v2") || strings.Contains(c.model, "claude-instant") {
		claudeReq := map[string]interface{}{
			"prompt":               messagesToClaudePrompt(req.Messages),
			"max_tokens_to_sample": 1000,
		}

		if req.MaxTokens != nil {
			claudeReq["max_tokens_to_sample"] = *req.MaxTokens
		}
		if req.Temperature != nil {
			claudeReq["temperature"] = *req.Temperature
		}
		if req.TopP != nil {
			claudeReq["top_p"] = *req.TopP
		}

		return json.Marshal(claudeReq)
	}

	return c.convertToClaudeMessagesRequest(req)
}

// convertToClaudeMessagesRequest converts to the Claude 3.x messages format
func (c *Client) convertToClaudeMessagesRequest(req llm.ChatRequest) ([]byte, error) {
	claudeReq := map[string]interface{}{
		"anthropic_version": "bedrock-2023-05-31",
		"max_tokens":        1000,
	}

	if req.MaxTokens != nil {
		claudeReq["max_tokens"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		claudeReq["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		claudeReq["top_p"] = *req.TopP
	}

	var messages []map[string]interface{}
	var system strings.Builder

	for _, msg := range req.Messages {
		if msg.Role == llm.RoleSystem {
			// System text goes into the top-level system field.
			system.WriteString(msg.GetText())
			system.WriteString("\n")
			continue
		}

		claudeMsg := map[string]interface{}{
			"role": string(msg.Role),
		}

		if msg.IsTextOnly() {
			claudeMsg["content"] = msg.GetText()
		} else {
			var content []map[string]interface{}
			for _, item := range msg.Content {
				switch typed := item.(type) {
				case *llm.TextContent:
					content = append(content, map[string]interface{}{
						"type": "text",
						"text": typed.GetText(),
					})
				case *llm.ImageContent:
					// json.Marshal base64-encodes []byte, which is the
					// encoding Claude expects for image sources.
					content = append(content, map[string]interface{}{
						"type": "image",
						"source": map[string]interface{}{
							"type":       "base64",
							"media_type": typed.MimeType,
							"data":       typed.Data,
						},
					})
				}
			}
			claudeMsg["content"] = content
		}

		messages = append(messages, claudeMsg)
	}

	claudeReq["messages"] = messages

	if s := strings.TrimSpace(system.String()); s != "" {
		claudeReq["system"] = s
	}

	return json.Marshal(claudeReq)
}

// messagesToClaudePrompt renders messages in the legacy Human/Assistant
// prompt format used by claude-v2 models
func messagesToClaudePrompt(messages []llm.Message) string {
	var prompt strings.Builder

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			prompt.WriteString(msg.GetText() + "\n\n")
		case llm.RoleUser:
			prompt.WriteString(fmt.Sprintf("\n\nHuman: %s", msg.GetText()))
		case llm.RoleAssistant:
			prompt.WriteString(fmt.Sprintf("\n\nAssistant: %s", msg.GetText()))
		}
	}

	if !strings.HasSuffix(prompt.String(), "\n\nAssistant:") {
		prompt.WriteString("\n\nAssistant:")
	}

	return prompt.String()
}

// convertToTitanRequest converts to the Amazon Titan request format
func (c *Client) convertToTitanRequest(req llm.ChatRequest) ([]byte, error) {
	var prompt strings.Builder
	for _, msg := range req.Messages {
		switch msg.Role {
		case llm.RoleSystem:
			prompt.WriteString(msg.GetText() + "\n\n")
		case llm.RoleUser:
			prompt.WriteString(fmt.Sprintf("User: %s\n", msg.GetText()))
		case llm.RoleAssistant:
			prompt.WriteString(fmt.Sprintf("Bot: %s\n", msg.GetText()))
		}
	}

	generationConfig := map[string]interface{}{
		"maxTokenCount": 1000,
		"temperature":   0.7,
	}
	if req.MaxTokens != nil {
		generationConfig["maxTokenCount"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		generationConfig["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		generationConfig["topP"] = *req.TopP
	}

	return json.Marshal(map[string]interface{}{
		"inputText":            prompt.String(),
		"textGenerationConfig": generationConfig,
	})
}

// convertToLlamaRequest converts to the Meta Llama instruction format
func (c *Client) convertToLlamaRequest(req llm.ChatRequest) ([]byte, error) {
	var prompt strings.Builder
	for _, msg := range req.Messages {
		switch msg.Role {
		case llm.RoleSystem:
			prompt.WriteString(fmt.Sprintf("<s>[INST] <<SYS>>\n%s\n<</SYS>>\n\n", msg.GetText()))
		case llm.RoleUser:
			prompt.WriteString(fmt.Sprintf("%s [/INST]", msg.GetText()))
		case llm.RoleAssistant:
			prompt.WriteString(fmt.Sprintf(" %s </s><s>[INST] ", msg.GetText()))
		}
	}

	llamaReq := map[string]interface{}{
		"prompt": prompt.String(),
	}

	if req.MaxTokens != nil {
		llamaReq["max_gen_len"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		llamaReq["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		llamaReq["top_p"] = *req.TopP
	}

	return json.Marshal(llamaReq)
}

// convertResponse decodes the family-specific response payload
func (c *Client) convertResponse(body []byte) (*llm.ChatResponse, error) {
	switch c.family() {
	case familyTitan:
		return c.convertTitanResponse(body)
	case familyLlama:
		return c.convertLlamaResponse(body)
	default:
		return c.convertClaudeResponse(body)
	}
}

// convertClaudeResponse handles both the legacy completion format and the
// Claude 3.x content blocks
func (c *Client) convertClaudeResponse(body []byte) (*llm.ChatResponse, error) {
	var claudeResp map[string]interface{}
	if err := json.Unmarshal(body, &claudeResp); err != nil {
		return nil, c.convertError(err)
	}

	var text string
	if completion, ok := claudeResp["completion"].(string); ok {
		text = completion
	} else if content, ok := claudeResp["content"].([]interface{}); ok {
		for _, item := range content {
			block, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if blockType, _ := block["type"].(string); blockType == "text" {
				if blockText, ok := block["text"].(string); ok {
					text += blockText
				}
			}
		}
	}

	finishReason := llm.FinishReasonStop
	if stopReason, ok := claudeResp["stop_reason"].(string); ok && stopReason == "max_tokens" {
		finishReason = llm.FinishReasonLength
	}

	response := c.newResponse(text, finishReason)

	if usage, ok := claudeResp["usage"].(map[string]interface{}); ok {
		input, _ := usage["input_tokens"].(float64)
		output, _ := usage["output_tokens"].(float64)
		response.Usage = llm.Usage{
			PromptTokens:     int(input),
			CompletionTokens: int(output),
			TotalTokens:      int(input) + int(output),
		}
	}

	return response, nil
}

// convertTitanResponse decodes the Titan results array
func (c *Client) convertTitanResponse(body []byte) (*llm.ChatResponse, error) {
	var titanResp map[string]interface{}
	if err := json.Unmarshal(body, &titanResp); err != nil {
		return nil, c.convertError(err)
	}

	var text string
	finishReason := llm.FinishReasonStop

	if results, ok := titanResp["results"].([]interface{}); ok && len(results) > 0 {
		if result, ok := results[0].(map[string]interface{}); ok {
			if outputText, ok := result["outputText"].(string); ok {
				text = outputText
			}
			if reason, _ := result["completionReason"].(string); reason == "LENGTH" {
				finishReason = llm.FinishReasonLength
			}
		}
	}

	return c.newResponse(text, finishReason), nil
}

// convertLlamaResponse decodes the Llama generation payload
func (c *Client) convertLlamaResponse(body []byte) (*llm.ChatResponse, error) {
	var llamaResp map[string]interface{}
	if err := json.Unmarshal(body, &llamaResp); err != nil {
		return nil, c.convertError(err)
	}

	var text string
	if generation, ok := llamaResp["generation"].(string); ok {
		text = generation
	}

	return c.newResponse(text, llm.FinishReasonStop), nil
}

// newResponse wraps generated text in our response shape
func (c *Client) newResponse(text, finishReason string) *llm.ChatResponse {
	return &llm.ChatResponse{
		ID:      fmt.Sprintf("bedrock-%s", time.Now().Format(time.RFC3339Nano)),
		Model:   c.model,
		Created: time.Now().Unix(),
		Choices: []llm.Choice{
			{
				Index:        0,
				FinishReason: finishReason,
				Message: llm.Message{
					Role:    llm.RoleAssistant,
					Content: []llm.MessageContent{llm.NewTextContent(text)},
				},
			},
		},
	}
}

// convertStreamChunk decodes a family-specific streaming chunk into a
// delta event. Returns nil for chunks that carry no text.
func (c *Client) convertStreamChunk(chunkData []byte) (*llm.StreamEvent, error) {
	var chunk map[string]interface{}
	if err := json.Unmarshal(chunkData, &chunk); err != nil {
		return nil, err
	}

	var text string
	switch c.family() {
	case familyTitan:
		text, _ = chunk["outputText"].(string)
	case familyLlama:
		text, _ = chunk["generation"].(string)
	default:
		if completion, ok := chunk["completion"].(string); ok {
			text = completion
		} else if delta, ok := chunk["delta"].(map[string]interface{}); ok {
			text, _ = delta["text"].(string)
		}
	}

	if text == "" {
		return nil, nil
	}

	event := llm.NewTextDeltaEvent(0, text)
	return &event, nil
}

// maxTokensForModel returns the context window for the configured model
func (c *Client) maxTokensForModel() int {
	switch {
	case strings.Contains(c.model, "claude-3"):
		return 200000
	case strings.Contains(c.model, "claude-v2"):
		return 100000
	case strings.Contains(c.model, "titan"):
		return 8000
	case strings.Contains(c.model, "llama"):
		if strings.Contains(c.model, "70b") {
			return 4096
		}
		return 2048
	default:
		return 4000
	}
}

// convertError maps AWS SDK errors onto our taxonomy. The SDK wraps
// service errors, so classification is by exception name.
func (c *Client) convertError(err error) *llm.Error {
	if err == nil {
		return nil
	}

	if ourErr, ok := llm.AsError(err); ok {
		return ourErr
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		msg := apiErr.ErrorMessage()

		switch code {
		case "UnauthorizedOperation", "AuthFailure", "UnrecognizedClientException":
			return &llm.Error{
				Code:       "authentication_error",
				Message:    msg,
				Type:       llm.ErrTypeAuthentication,
				StatusCode: 401,
			}

		case "AccessDeniedException":
			return &llm.Error{
				Code:       "access_denied",
				Message:    msg,
				Type:       llm.ErrTypeAuthentication,
				StatusCode: 403,
			}

		case "ThrottlingException", "TooManyRequestsException":
			return &llm.Error{
				Code:       "rate_limit_exceeded",
				Message:    msg,
				Type:       llm.ErrTypeRateLimit,
				StatusCode: 429,
			}

		case "ResourceNotFoundException":
			return &llm.Error{
				Code:       "model_not_found",
				Message:    msg,
				Type:       llm.ErrTypeInvalidRequest,
				StatusCode: 404,
			}

		case "ValidationException":
			if strings.Contains(msg, "model") {
				return &llm.Error{
					Code:       "model_not_found",
					Message:    msg,
					Type:       llm.ErrTypeInvalidRequest,
					StatusCode: 404,
				}
			}
			return &llm.Error{
				Code:       "invalid_request",
				Message:    msg,
				Type:       llm.ErrTypeInvalidRequest,
				StatusCode: 400,
			}
		}

		return &llm.Error{
			Code:    code,
			Message: msg,
			Type:    llm.ErrTypeAPI,
		}
	}

	return &llm.Error{
		Code:    llm.ErrCodeUnknown,
		Message: err.Error(),
		Type:    llm.ErrTypeAPI,
	}
}
