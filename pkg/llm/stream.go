// Streaming chat completion event types
package llm

import (
	"context"
	"strings"
)

// Stream event types
const (
	StreamEventDelta = "delta"
	StreamEventDone  = "done"
	StreamEventError = "error"
)

// StreamEvent represents a single event in a streaming response
type StreamEvent struct {
	Type   string        `json:"type"`
	Choice *StreamChoice `json:"choice,omitempty"`
	Error  *Error        `json:"error,omitempty"`
}

// StreamChoice represents a choice in a streaming response
type StreamChoice struct {
	Index        int           `json:"index"`
	Delta        *MessageDelta `json:"delta,omitempty"`
	FinishReason string        `json:"finish_reason,omitempty"`
}

// MessageDelta represents incremental updates to a message
type MessageDelta struct {
	Content   []MessageContent `json:"content,omitempty"`
	ToolCalls []ToolCallDelta  `json:"tool_calls,omitempty"`
}

// ToolCallDelta represents an incremental tool call update
type ToolCallDelta struct {
	Index    int                    `json:"index"`
	ID       string                 `json:"id,omitempty"`
	Type     string                 `json:"type,omitempty"`
	Function *ToolCallFunctionDelta `json:"function,omitempty"`
}

// ToolCallFunctionDelta represents incremental function call details
type ToolCallFunctionDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// IsDelta returns true if this is a delta event
func (e StreamEvent) IsDelta() bool {
	return e.Type == StreamEventDelta && e.Choice != nil && e.Choice.Delta != nil
}

// IsDone returns true if this is a done event
func (e StreamEvent) IsDone() bool {
	return e.Type == StreamEventDone && e.Choice != nil
}

// IsError returns true if this is an error event
func (e StreamEvent) IsError() bool {
	return e.Type == StreamEventError && e.Error != nil
}

// TextDelta returns the concatenated text carried by a delta event
func (e StreamEvent) TextDelta() string {
	if !e.IsDelta() {
		return ""
	}
	var b strings.Builder
	for _, content := range e.Choice.Delta.Content {
		if tc, ok := content.(*TextContent); ok {
			b.WriteString(tc.GetText())
		}
	}
	return b.String()
}

// NewDeltaEvent creates a new delta stream event
func NewDeltaEvent(index int, delta *MessageDelta) StreamEvent {
	return StreamEvent{
		Type: StreamEventDelta,
		Choice: &StreamChoice{
			Index: index,
			Delta: delta,
		},
	}
}

// NewTextDeltaEvent creates a delta event carrying a single text fragment
func NewTextDeltaEvent(index int, text string) StreamEvent {
	return NewDeltaEvent(index, &MessageDelta{
		Content: []MessageContent{NewTextContent(text)},
	})
}

// NewDoneEvent creates a new done stream event
func NewDoneEvent(index int, finishReason string) StreamEvent {
	return StreamEvent{
		Type: StreamEventDone,
		Choice: &StreamChoice{
			Index:        index,
			FinishReason: finishReason,
		},
	}
}

// NewErrorEvent creates a new error stream event
func NewErrorEvent(err *Error) StreamEvent {
	return StreamEvent{
		Type:  StreamEventError,
		Error: err,
	}
}

// CollectStream drains a stream and assembles the full response from its
// deltas. It returns the provider error if an error event arrives, and
// ctx.Err() if the context ends before the stream does.
func CollectStream(ctx context.Context, events <-chan StreamEvent) (*ChatResponse, error) {
	var text strings.Builder
	finishReason := FinishReasonStop

	for {
		select {
		case event, ok := <-events:
			if !ok {
				resp := &ChatResponse{
					Choices: []Choice{{
						Index:        0,
						Message:      NewTextMessage(RoleAssistant, text.String()),
						FinishReason: finishReason,
					}},
				}
				return resp, nil
			}
			switch {
			case event.IsError():
				return nil, event.Error
			case event.IsDelta():
				text.WriteString(event.TextDelta())
			case event.IsDone():
				if event.Choice.FinishReason != "" {
					finishReason = event.Choice.FinishReason
				}
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
