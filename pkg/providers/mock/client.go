package mock

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/amari-ai/go-amari/pkg/llm"
)

// streamEventDelay paces simulated streams. Kept small so tests stay fast.
const streamEventDelay = time.Millisecond

// secureRandomFloat64 generates a random float64 between 0 and 1
func secureRandomFloat64() (float64, error) {
	var bytes [8]byte
	if _, err := rand.Read(bytes[:]); err != nil {
		return 0, err
	}
	return float64(binary.BigEndian.Uint64(bytes[:])) / float64(^uint64(0)), nil
}

// Client implements the llm.Client interface for testing
type Client struct {
	modelInfo         llm.ModelInfo
	responses         []llm.ChatResponse
	responseIndex     int
	errors            []error
	errorIndex        int
	callLog           []llm.ChatRequest
	streamResponses   [][]llm.StreamEvent
	streamIndex       int
	latencySimulation time.Duration
	failureRate       float64

	// Health check caching (even for mock)
	lastHealthCheck  *time.Time
	lastHealthStatus *bool
}

// NewClient creates a new mock LLM client for testing
func NewClient(modelName, provider string) (*Client, error) {
	return &Client{
		modelInfo: llm.ModelInfo{
			Name:              modelName,
			Provider:          provider,
			MaxTokens:         4096,
			SupportsTools:     true,
			SupportsVision:    false,
			SupportsStreaming: true,
		},
	}, nil
}

// ChatCompletion returns pre-configured responses or errors, falling back
// to generated context-aware responses
func (m *Client) ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	m.callLog = append(m.callLog, req)

	if m.latencySimulation > 0 {
		select {
		case <-time.After(m.latencySimulation):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.failureRate > 0 {
		randomValue, err := secureRandomFloat64()
		if err != nil {
			randomValue = 0
		}
		if randomValue < m.failureRate {
			return nil, &llm.Error{
				Code:    "mock_random_failure",
				Message: "Simulated random failure",
				Type:    llm.ErrTypeAPI,
			}
		}
	}

	// A trailing tool message means the caller is feeding back a tool
	// result, so generate the follow-up answer.
	if len(req.Messages) > 0 && req.Messages[len(req.Messages)-1].Role == llm.RoleTool {
		return m.handleToolResponse(req), nil
	}

	if m.errorIndex < len(m.errors) {
		err := m.errors[m.errorIndex]
		m.errorIndex++
		return nil, err
	}

	if m.responseIndex < len(m.responses) {
		resp := m.responses[m.responseIndex]
		m.responseIndex++
		return &resp, nil
	}

	return m.generateResponse(req), nil
}

// StreamChatCompletion simulates streaming by sending chunked events
func (m *Client) StreamChatCompletion(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	m.callLog = append(m.callLog, req)

	if m.latencySimulation > 0 {
		select {
		case <-time.After(m.latencySimulation):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.errorIndex < len(m.errors) {
		err := m.errors[m.errorIndex]
		m.errorIndex++
		ch := make(chan llm.StreamEvent, 1)
		ch <- llm.NewErrorEvent(&llm.Error{
			Code:    "mock_error",
			Message: err.Error(),
			Type:    llm.ErrTypeAPI,
		})
		close(ch)
		return ch, nil
	}

	if m.streamIndex < len(m.streamResponses) {
		events := m.streamResponses[m.streamIndex]
		m.streamIndex++
		return m.sendStreamEvents(ctx, events), nil
	}

	return m.generateStream(ctx, req), nil
}

// StreamChatCompletionWithTools streams a completion merged with tool
// result streams, mirroring how tool execution interleaves in production
func (m *Client) StreamChatCompletionWithTools(ctx context.Context, req llm.ChatRequest, toolStream <-chan llm.StreamEvent) (<-chan llm.StreamEvent, error) {
	llmStream, err := m.StreamChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}

	var toolStreams []<-chan llm.StreamEvent
	if toolStream != nil {
		toolStreams = append(toolStreams, toolStream)
	}

	merger := llm.NewStreamMerger(ctx, llmStream, toolStreams)
	return merger.Start(), nil
}

// GetRemote returns information about the remote client
func (m *Client) GetRemote() llm.ClientRemoteInfo {
	info := llm.ClientRemoteInfo{
		Name: "mock",
	}

	now := time.Now()
	needsRefresh := m.lastHealthCheck == nil ||
		now.Sub(*m.lastHealthCheck) >= llm.DefaultHealthCheckInterval

	if needsRefresh {
		healthy := true
		m.lastHealthStatus = &healthy
		m.lastHealthCheck = &now
	}

	info.Status = &llm.ClientRemoteInfoStatus{
		Healthy:     m.lastHealthStatus,
		LastChecked: m.lastHealthCheck,
	}

	return info
}

// GetModelInfo returns the configured model info
func (m *Client) GetModelInfo() llm.ModelInfo {
	return m.modelInfo
}

// Close does nothing for the mock client
func (m *Client) Close() error {
	return nil
}

// handleToolResponse generates the follow-up answer after a tool result
func (m *Client) handleToolResponse(req llm.ChatRequest) *llm.ChatResponse {
	var toolResult string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == llm.RoleTool {
			toolResult = req.Messages[i].GetText()
			break
		}
	}

	text := fmt.Sprintf("Based on the tool result: %s, I can provide you with the following information...", toolResult)
	return m.newTextResponse(req.Model, text, toolResult)
}

// generateResponse creates context-aware responses. When the request
// carries injected search results it acknowledges them, which lets the
// augmentation pipeline be tested end to end.
func (m *Client) generateResponse(req llm.ChatRequest) *llm.ChatResponse {
	lastUserMessage := req.LastUserText()

	if searchContext := findSearchContext(req); searchContext != "" {
		text := fmt.Sprintf("According to the search results provided: %s", firstSnippetLine(searchContext))
		return m.newTextResponse(req.Model, text, lastUserMessage)
	}

	lowerMsg := strings.ToLower(lastUserMessage)

	toolTriggers := []string{"search", "calculate", "weather", "email", "file", "database", "api"}
	for _, trigger := range toolTriggers {
		if strings.Contains(lowerMsg, trigger) {
			return m.generateToolCallResponse(req, trigger, lastUserMessage)
		}
	}

	var text string
	switch {
	case strings.Contains(lowerMsg, "hello") || strings.Contains(lowerMsg, "hi"):
		text = "Hello! How can I help you today?"
	case strings.Contains(lowerMsg, "help"):
		text = "I'm here to help! I can assist with various tasks including searching, calculations, and more."
	case strings.Contains(lowerMsg, "test"):
		text = "This is a mock response for testing purposes. The system is working correctly."
	default:
		text = fmt.Sprintf("I understand you're asking about: %s. Let me help you with that.", lastUserMessage)
	}

	return m.newTextResponse(req.Model, text, lastUserMessage)
}

// findSearchContext returns the text of an injected search-results message,
// or empty when the request carries none
func findSearchContext(req llm.ChatRequest) string {
	for _, msg := range req.Messages {
		if msg.Role != llm.RoleSystem {
			continue
		}
		text := msg.GetText()
		if strings.Contains(text, "Web search results") {
			return text
		}
	}
	return ""
}

// firstSnippetLine extracts the first snippet body line from a formatted
// search-results block
func firstSnippetLine(searchContext string) string {
	for _, line := range strings.Split(searchContext, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Web search results") || strings.HasPrefix(line, "[") {
			continue
		}
		return line
	}
	return "the retrieved results"
}

// generateToolCallResponse creates a response carrying a tool call
func (m *Client) generateToolCallResponse(req llm.ChatRequest, trigger, userMessage string) *llm.ChatResponse {
	var toolCall llm.ToolCall

	switch trigger {
	case "search":
		args, _ := json.Marshal(map[string]string{"query": userMessage})
		toolCall = newToolCall("call-search", "web_search", string(args))
	case "calculate":
		args, _ := json.Marshal(map[string]string{"expression": userMessage})
		toolCall = newToolCall("call-calc", "calculator", string(args))
	case "weather":
		args, _ := json.Marshal(map[string]string{"location": "user_location"})
		toolCall = newToolCall("call-weather", "get_weather", string(args))
	default:
		args, _ := json.Marshal(map[string]string{"request": userMessage})
		toolCall = newToolCall("call-generic", fmt.Sprintf("%s_tool", trigger), string(args))
	}

	return &llm.ChatResponse{
		ID:      fmt.Sprintf("mock-tool-call-%d", time.Now().UnixNano()),
		Model:   req.Model,
		Created: time.Now().Unix(),
		Choices: []llm.Choice{
			{
				Index: 0,
				Message: llm.Message{
					Role:      llm.RoleAssistant,
					Content:   []llm.MessageContent{llm.NewTextContent("I need to use a tool to help with your request.")},
					ToolCalls: []llm.ToolCall{toolCall},
				},
				FinishReason: llm.FinishReasonToolCalls,
			},
		},
		Usage: llm.Usage{
			PromptTokens:     wordCount(userMessage) + 10,
			CompletionTokens: 15,
			TotalTokens:      wordCount(userMessage) + 25,
		},
	}
}

func newToolCall(idPrefix, name, args string) llm.ToolCall {
	return llm.ToolCall{
		ID:   fmt.Sprintf("%s-%d", idPrefix, time.Now().UnixNano()),
		Type: "function",
		Function: llm.ToolCallFunction{
			Name:      name,
			Arguments: args,
		},
	}
}

// newTextResponse wraps text in a response with plausible usage numbers
func (m *Client) newTextResponse(model, text, prompt string) *llm.ChatResponse {
	return &llm.ChatResponse{
		ID:      fmt.Sprintf("mock-resp-%d", time.Now().UnixNano()),
		Model:   model,
		Created: time.Now().Unix(),
		Choices: []llm.Choice{
			{
				Index: 0,
				Message: llm.Message{
					Role:    llm.RoleAssistant,
					Content: []llm.MessageContent{llm.NewTextContent(text)},
				},
				FinishReason: llm.FinishReasonStop,
			},
		},
		Usage: llm.Usage{
			PromptTokens:     wordCount(prompt) + 5,
			CompletionTokens: wordCount(text),
			TotalTokens:      wordCount(prompt) + wordCount(text) + 5,
		},
	}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// sendStreamEvents replays pre-configured stream events
func (m *Client) sendStreamEvents(ctx context.Context, events []llm.StreamEvent) <-chan llm.StreamEvent {
	ch := make(chan llm.StreamEvent, len(events))

	go func() {
		defer close(ch)
		for _, event := range events {
			select {
			case <-ctx.Done():
				return
			case ch <- event:
			}
			time.Sleep(streamEventDelay)
		}
	}()

	return ch
}

// generateStream creates a generated streaming response
func (m *Client) generateStream(ctx context.Context, req llm.ChatRequest) <-chan llm.StreamEvent {
	ch := make(chan llm.StreamEvent, 20)

	go func() {
		defer close(ch)

		userMessage := req.LastUserText()
		lowerMsg := strings.ToLower(userMessage)

		var fullText string
		var toolName string

		switch {
		case findSearchContext(req) != "":
			fullText = "According to the search results provided, here is what I found."
		case strings.Contains(lowerMsg, "search"):
			toolName = "web_search"
			fullText = "I'll search for that information for you."
		case strings.Contains(lowerMsg, "calculate"):
			toolName = "calculator"
			fullText = "Let me calculate that for you."
		default:
			fullText = "This is a streamed mock response that demonstrates chunked delivery of content for testing purposes."
		}

		for _, word := range strings.Split(fullText, " ") {
			select {
			case <-ctx.Done():
				return
			case ch <- llm.NewTextDeltaEvent(0, word+" "):
			}
			time.Sleep(streamEventDelay)
		}

		if toolName != "" {
			args, _ := json.Marshal(map[string]string{"query": userMessage})
			select {
			case <-ctx.Done():
				return
			case ch <- llm.NewDeltaEvent(0, &llm.MessageDelta{
				ToolCalls: []llm.ToolCallDelta{
					{
						Index: 0,
						ID:    fmt.Sprintf("call-%s-%d", toolName, time.Now().UnixNano()),
						Type:  "function",
						Function: &llm.ToolCallFunctionDelta{
							Name:      toolName,
							Arguments: string(args),
						},
					},
				},
			}):
			}

			select {
			case <-ctx.Done():
			case ch <- llm.NewDoneEvent(0, llm.FinishReasonToolCalls):
			}
			return
		}

		select {
		case <-ctx.Done():
		case ch <- llm.NewDoneEvent(0, llm.FinishReasonStop):
		}
	}()

	return ch
}

// Test helper methods

// AddResponse adds a response to be returned by subsequent calls
func (m *Client) AddResponse(response llm.ChatResponse) *Client {
	m.responses = append(m.responses, response)
	return m
}

// AddError adds an error to be returned by subsequent calls
func (m *Client) AddError(err error) *Client {
	m.errors = append(m.errors, err)
	return m
}

// GetCallLog returns all requests made to this mock client
func (m *Client) GetCallLog() []llm.ChatRequest {
	return m.callLog
}

// GetLastCall returns the most recent request made to this mock client
func (m *Client) GetLastCall() *llm.ChatRequest {
	if len(m.callLog) == 0 {
		return nil
	}
	return &m.callLog[len(m.callLog)-1]
}

// Reset clears all responses, errors, streams, and call logs
func (m *Client) Reset() *Client {
	m.responses = nil
	m.responseIndex = 0
	m.errors = nil
	m.errorIndex = 0
	m.streamResponses = nil
	m.streamIndex = 0
	m.callLog = nil
	return m
}

// WithSimpleResponse adds a simple text response
func (m *Client) WithSimpleResponse(content string) *Client {
	return m.AddResponse(llm.ChatResponse{
		ID:      fmt.Sprintf("mock-simple-%d", time.Now().UnixNano()),
		Model:   m.modelInfo.Name,
		Created: time.Now().Unix(),
		Choices: []llm.Choice{
			{
				Index: 0,
				Message: llm.Message{
					Role:    llm.RoleAssistant,
					Content: []llm.MessageContent{llm.NewTextContent(content)},
				},
				FinishReason: llm.FinishReasonStop,
			},
		},
	})
}

// WithToolCall adds a response that includes a tool call
func (m *Client) WithToolCall(toolName string, args map[string]interface{}) *Client {
	argsJSON := "{}"
	if len(args) > 0 {
		if data, err := json.Marshal(args); err == nil {
			argsJSON = string(data)
		}
	}

	return m.AddResponse(llm.ChatResponse{
		ID:      fmt.Sprintf("mock-tool-%d", time.Now().UnixNano()),
		Model:   m.modelInfo.Name,
		Created: time.Now().Unix(),
		Choices: []llm.Choice{
			{
				Index: 0,
				Message: llm.Message{
					Role:    llm.RoleAssistant,
					Content: []llm.MessageContent{llm.NewTextContent("I need to use a tool to help with this request.")},
					ToolCalls: []llm.ToolCall{
						newToolCall("call", toolName, argsJSON),
					},
				},
				FinishReason: llm.FinishReasonToolCalls,
			},
		},
	})
}

// WithError adds an error response
func (m *Client) WithError(code, message, errorType string) *Client {
	return m.AddError(&llm.Error{
		Code:    code,
		Message: message,
		Type:    errorType,
	})
}

// WithLatency configures simulated latency for requests
func (m *Client) WithLatency(duration time.Duration) *Client {
	m.latencySimulation = duration
	return m
}

// WithFailureRate configures random failure simulation (0.0 to 1.0)
func (m *Client) WithFailureRate(rate float64) *Client {
	m.failureRate = rate
	return m
}

// WithModelCapabilities configures the model's capabilities
func (m *Client) WithModelCapabilities(maxTokens int, supportsTools, supportsVision, supportsStreaming bool) *Client {
	m.modelInfo.MaxTokens = maxTokens
	m.modelInfo.SupportsTools = supportsTools
	m.modelInfo.SupportsVision = supportsVision
	m.modelInfo.SupportsStreaming = supportsStreaming
	return m
}

// WithStreamResponse adds a pre-configured streaming response
func (m *Client) WithStreamResponse(events []llm.StreamEvent) *Client {
	m.streamResponses = append(m.streamResponses, events)
	return m
}

// WithConversation sets up a multi-turn conversation scenario
func (m *Client) WithConversation(exchanges []ConversationExchange) *Client {
	for _, exchange := range exchanges {
		if exchange.ToolCall != nil {
			m.WithToolCall(exchange.ToolCall.Name, exchange.ToolCall.Arguments)
		}
		if exchange.Response != "" {
			m.WithSimpleResponse(exchange.Response)
		}
	}
	return m
}

// ConversationExchange represents a turn in a conversation
type ConversationExchange struct {
	Response string
	ToolCall *MockToolCall
}

// MockToolCall represents a tool call for testing
type MockToolCall struct {
	Name      string
	Arguments map[string]interface{}
}

// WithFunctionResult creates a response that follows a function call
func (m *Client) WithFunctionResult(functionName, result string) *Client {
	return m.WithSimpleResponse(fmt.Sprintf("Based on the %s function result: %s", functionName, result))
}

// Streaming response helpers

// CreateWordByWordStream creates a streaming response that sends words individually
func CreateWordByWordStream(text string) []llm.StreamEvent {
	words := strings.Split(text, " ")
	events := make([]llm.StreamEvent, 0, len(words)+1)

	for _, word := range words {
		events = append(events, llm.NewTextDeltaEvent(0, word+" "))
	}

	events = append(events, llm.NewDoneEvent(0, llm.FinishReasonStop))
	return events
}

// CreateToolCallStream creates a streaming response that includes a tool call
func CreateToolCallStream(initialText, toolName string, args map[string]interface{}) []llm.StreamEvent {
	events := make([]llm.StreamEvent, 0, 5)

	if initialText != "" {
		for _, word := range strings.Split(initialText, " ") {
			events = append(events, llm.NewTextDeltaEvent(0, word+" "))
		}
	}

	argsJSON, _ := json.Marshal(args)
	events = append(events, llm.NewDeltaEvent(0, &llm.MessageDelta{
		ToolCalls: []llm.ToolCallDelta{
			{
				Index: 0,
				ID:    fmt.Sprintf("call-%s-%d", toolName, time.Now().UnixNano()),
				Type:  "function",
				Function: &llm.ToolCallFunctionDelta{
					Name:      toolName,
					Arguments: string(argsJSON),
				},
			},
		},
	}))

	events = append(events, llm.NewDoneEvent(0, llm.FinishReasonToolCalls))
	return events
}

// Test assertion helpers

// AssertCallCount verifies the number of calls made
func (m *Client) AssertCallCount(expected int) bool {
	return len(m.callLog) == expected
}

// AssertLastMessageContains checks if the last request's user text contains specific text
func (m *Client) AssertLastMessageContains(text string) bool {
	lastCall := m.GetLastCall()
	if lastCall == nil {
		return false
	}

	for _, msg := range lastCall.Messages {
		if msg.Role == llm.RoleUser && strings.Contains(msg.GetText(), text) {
			return true
		}
	}
	return false
}

// AssertToolWasCalled checks if a specific tool appears in logged assistant messages
func (m *Client) AssertToolWasCalled(toolName string) bool {
	for _, call := range m.callLog {
		for _, msg := range call.Messages {
			if msg.Role != llm.RoleAssistant {
				continue
			}
			for _, toolCall := range msg.ToolCalls {
				if toolCall.Function.Name == toolName {
					return true
				}
			}
		}
	}
	return false
}
