package proxy

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/amari-ai/go-amari/pkg/llm"
)

// Object type markers on the OpenAI wire.
const (
	objectChatCompletion = "chat.completion"
	objectChatChunk      = "chat.completion.chunk"
	objectModel          = "model"
	objectList           = "list"
)

// chatCompletionRequest is the OpenAI chat completion request body.
type chatCompletionRequest struct {
	Model          string              `json:"model"`
	Messages       []wireMessage       `json:"messages"`
	Temperature    *float32            `json:"temperature,omitempty"`
	MaxTokens      *int                `json:"max_tokens,omitempty"`
	TopP           *float32            `json:"top_p,omitempty"`
	Stream         bool                `json:"stream,omitempty"`
	Tools          []llm.Tool          `json:"tools,omitempty"`
	ResponseFormat *llm.ResponseFormat `json:"response_format,omitempty"`
	User           string              `json:"user,omitempty"`
}

// wireMessage is a chat message on the wire. Content is either a plain
// string or an array of typed parts; only the text parts are used.
type wireMessage struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"`
	ToolCalls  []llm.ToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

// contentPart is one element of an array-form content field.
type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// text extracts the message text from either content form.
func (m wireMessage) text() (string, error) {
	if len(m.Content) == 0 {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s, nil
	}

	var parts []contentPart
	if err := json.Unmarshal(m.Content, &parts); err != nil {
		return "", errors.New("message content must be a string or an array of content parts")
	}
	var texts []string
	for _, part := range parts {
		if part.Type == "text" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n"), nil
}

// toChatRequest converts the wire request into the internal form.
func (r chatCompletionRequest) toChatRequest() (llm.ChatRequest, error) {
	req := llm.ChatRequest{
		Model:          r.Model,
		Tools:          r.Tools,
		Temperature:    r.Temperature,
		MaxTokens:      r.MaxTokens,
		TopP:           r.TopP,
		Stream:         r.Stream,
		ResponseFormat: r.ResponseFormat,
	}

	req.Messages = make([]llm.Message, 0, len(r.Messages))
	for i, wm := range r.Messages {
		text, err := wm.text()
		if err != nil {
			return llm.ChatRequest{}, errors.WithMessagef(err, "message %d", i)
		}
		msg := llm.NewTextMessage(llm.MessageRole(wm.Role), text)
		msg.ToolCalls = wm.ToolCalls
		msg.ToolCallID = wm.ToolCallID
		req.Messages = append(req.Messages, msg)
	}
	return req, nil
}

// chatCompletionResponse is the OpenAI chat completion response body.
type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   llm.Usage    `json:"usage"`
}

type wireChoice struct {
	Index        int                 `json:"index"`
	Message      wireResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason,omitempty"`
}

type wireResponseMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []llm.ToolCall `json:"tool_calls,omitempty"`
}

// fromChatResponse converts the internal response to the wire shape.
// Choice content and ordering are forwarded untouched.
func fromChatResponse(resp *llm.ChatResponse) chatCompletionResponse {
	out := chatCompletionResponse{
		ID:      resp.ID,
		Object:  objectChatCompletion,
		Created: resp.Created,
		Model:   resp.Model,
		Usage:   resp.Usage,
		Choices: make([]wireChoice, 0, len(resp.Choices)),
	}
	for _, choice := range resp.Choices {
		out.Choices = append(out.Choices, wireChoice{
			Index: choice.Index,
			Message: wireResponseMessage{
				Role:      string(choice.Message.Role),
				Content:   choice.Message.GetText(),
				ToolCalls: choice.Message.ToolCalls,
			},
			FinishReason: choice.FinishReason,
		})
	}
	return out
}

// chatCompletionChunk is one SSE streaming chunk.
type chatCompletionChunk struct {
	ID      string            `json:"id"`
	Object  string            `json:"object"`
	Created int64             `json:"created"`
	Model   string            `json:"model"`
	Choices []wireChunkChoice `json:"choices"`
}

type wireChunkChoice struct {
	Index        int       `json:"index"`
	Delta        wireDelta `json:"delta"`
	FinishReason *string   `json:"finish_reason"`
}

type wireDelta struct {
	Role      string              `json:"role,omitempty"`
	Content   string              `json:"content,omitempty"`
	ToolCalls []llm.ToolCallDelta `json:"tool_calls,omitempty"`
}

// fromStreamEvent converts an internal stream event into a wire chunk.
// The bool is false for events that produce no chunk.
func fromStreamEvent(event llm.StreamEvent, id, model string, created int64) (chatCompletionChunk, bool) {
	chunk := chatCompletionChunk{
		ID:      id,
		Object:  objectChatChunk,
		Created: created,
		Model:   model,
	}

	switch {
	case event.IsDelta():
		delta := wireDelta{Content: event.TextDelta()}
		if event.Choice.Delta != nil {
			delta.ToolCalls = event.Choice.Delta.ToolCalls
		}
		chunk.Choices = []wireChunkChoice{{
			Index: event.Choice.Index,
			Delta: delta,
		}}
		return chunk, true
	case event.IsDone():
		reason := event.Choice.FinishReason
		if reason == "" {
			reason = llm.FinishReasonStop
		}
		chunk.Choices = []wireChunkChoice{{
			Index:        event.Choice.Index,
			Delta:        wireDelta{},
			FinishReason: &reason,
		}}
		return chunk, true
	default:
		return chatCompletionChunk{}, false
	}
}

// errorResponse is the OpenAI error body.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// modelList is the GET /v1/models response body.
type modelList struct {
	Object string      `json:"object"`
	Data   []modelItem `json:"data"`
}

type modelItem struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}
