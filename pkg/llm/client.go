// Client interface and remote status types
package llm

import (
	"context"
	"time"
)

// DefaultHealthCheckInterval defines how often provider health checks are
// refreshed to avoid excessive API calls
const DefaultHealthCheckInterval = 5 * time.Minute

// ClientRemoteInfo represents information about a remote provider endpoint
type ClientRemoteInfo struct {
	Name   string
	Status *ClientRemoteInfoStatus
}

// ClientRemoteInfoStatus represents the cached health status of a remote
type ClientRemoteInfoStatus struct {
	Healthy     *bool
	LastChecked *time.Time
}

// Client defines the core interface that all LLM clients must implement.
// An augmented client satisfies the same interface, which is what makes the
// augmentation layer a drop-in replacement.
type Client interface {
	// ChatCompletion performs a chat completion request
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// StreamChatCompletion performs a streaming chat completion request
	StreamChatCompletion(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error)

	// GetRemote returns information about the remote endpoint
	GetRemote() ClientRemoteInfo

	// GetModelInfo returns information about the model being used
	GetModelInfo() ModelInfo

	// Close cleans up any resources used by the client
	Close() error
}
