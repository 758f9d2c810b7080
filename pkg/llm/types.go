// Core request and response types
package llm

// Finish reasons reported by providers in Choice.FinishReason
const (
	FinishReasonStop      = "stop"
	FinishReasonLength    = "length"
	FinishReasonToolCalls = "tool_calls"
)

// ChatRequest represents a chat completion request (provider-agnostic)
type ChatRequest struct {
	Model          string            `json:"model"`
	Messages       []Message         `json:"messages"`
	Tools          []Tool            `json:"tools,omitempty"`
	Temperature    *float32          `json:"temperature,omitempty"`
	MaxTokens      *int              `json:"max_tokens,omitempty"`
	TopP           *float32          `json:"top_p,omitempty"`
	Stream         bool              `json:"stream,omitempty"`
	ResponseFormat *ResponseFormat   `json:"response_format,omitempty"`

	// Metadata carries augmentation state between middlewares. It is never
	// forwarded to providers.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SetMetadata records a metadata key on the request
func (r *ChatRequest) SetMetadata(key, value string) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
}

// GetMetadata returns the metadata value for key
func (r ChatRequest) GetMetadata(key string) (string, bool) {
	if r.Metadata == nil {
		return "", false
	}
	v, ok := r.Metadata[key]
	return v, ok
}

// LastUserIndex returns the index of the last user message, or -1 when the
// request contains none
func (r ChatRequest) LastUserIndex() int {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return i
		}
	}
	return -1
}

// LastUserText returns the text of the last user message, or "" when the
// request contains no user messages
func (r ChatRequest) LastUserText() string {
	if i := r.LastUserIndex(); i >= 0 {
		return r.Messages[i].GetText()
	}
	return ""
}

// DeepCopy creates a deep copy of the request, including all messages and
// metadata, so middleware can rewrite a request without mutating the
// caller's copy
func (r ChatRequest) DeepCopy() ChatRequest {
	out := r
	if len(r.Messages) > 0 {
		out.Messages = make([]Message, 0, len(r.Messages))
		for _, m := range r.Messages {
			out.Messages = append(out.Messages, m.DeepCopy())
		}
	}
	if len(r.Tools) > 0 {
		out.Tools = append([]Tool(nil), r.Tools...)
	}
	if r.Temperature != nil {
		t := *r.Temperature
		out.Temperature = &t
	}
	if r.MaxTokens != nil {
		m := *r.MaxTokens
		out.MaxTokens = &m
	}
	if r.TopP != nil {
		p := *r.TopP
		out.TopP = &p
	}
	if len(r.Metadata) > 0 {
		out.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// ChatResponse represents a chat completion response (provider-agnostic)
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Created int64    `json:"created,omitempty"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage,omitempty"`
}

// Choice represents a single response choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// IsComplete checks if this choice represents a finished response that does
// not require tool execution
func (c Choice) IsComplete() bool {
	return c.FinishReason == FinishReasonStop || c.FinishReason == FinishReasonLength
}

// WantsToolExecution checks if this choice asks the caller to execute tools
func (c Choice) WantsToolExecution() bool {
	return c.FinishReason == FinishReasonToolCalls || c.Message.HasToolCalls()
}

// GetText returns the text of the first choice, or "" for an empty response.
// This is the accessor that mirrors choices[0].message.content on the wire.
func (r ChatResponse) GetText() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.GetText()
}

// RequiresToolExecution checks if any choice asks for tool execution
func (r ChatResponse) RequiresToolExecution() bool {
	for _, choice := range r.Choices {
		if choice.WantsToolExecution() {
			return true
		}
	}
	return false
}

// DeepCopy creates a deep copy of the response, including all choices.
// Middleware that annotates responses works on the copy so concurrent
// callers never observe shared mutable state.
func (r ChatResponse) DeepCopy() ChatResponse {
	out := ChatResponse{
		ID:      r.ID,
		Model:   r.Model,
		Created: r.Created,
		Usage:   r.Usage,
	}
	if len(r.Choices) > 0 {
		out.Choices = make([]Choice, 0, len(r.Choices))
		for _, choice := range r.Choices {
			out.Choices = append(out.Choices, Choice{
				Index:        choice.Index,
				Message:      choice.Message.DeepCopy(),
				FinishReason: choice.FinishReason,
			})
		}
	}
	return out
}
