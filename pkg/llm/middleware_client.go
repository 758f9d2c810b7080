package llm

import (
	"context"
	"fmt"
)

// MiddlewareClient wraps a Client with a middleware chain. It satisfies the
// Client interface itself, so wrapped and unwrapped clients are
// interchangeable.
type MiddlewareClient struct {
	client Client
	chain  *MiddlewareChain
}

// NewMiddlewareClient creates a client wrapped with the given middleware
func NewMiddlewareClient(client Client, middlewares []Middleware) *MiddlewareClient {
	return &MiddlewareClient{
		client: client,
		chain:  NewMiddlewareChain(middlewares),
	}
}

// ChatCompletion implements Client with middleware processing
func (m *MiddlewareClient) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	processedReq, err := m.chain.ProcessRequest(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("middleware request processing failed: %w", err)
	}

	resp, err := m.client.ChatCompletion(ctx, *processedReq)

	processedResp, _ := m.chain.ProcessResponse(ctx, processedReq, resp, err)
	return processedResp, err
}

// StreamChatCompletion implements Client with middleware processing for
// streaming. Request middleware runs once up front; each event then passes
// through the chain on its way to the caller.
func (m *MiddlewareClient) StreamChatCompletion(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	processedReq, err := m.chain.ProcessRequest(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("middleware request processing failed: %w", err)
	}

	events, err := m.client.StreamChatCompletion(ctx, *processedReq)
	if err != nil {
		_, _ = m.chain.ProcessResponse(ctx, processedReq, nil, err)
		return nil, err
	}

	out := make(chan StreamEvent)
	go func() {
		defer close(out)

		for event := range events {
			processed, processErr := m.chain.ProcessStreamEvent(ctx, processedReq, event)
			if processErr != nil {
				processed = event
			}

			select {
			case out <- processed:
			case <-ctx.Done():
				return
			}
		}

		// Completion notification for middleware that tracks stream lifecycle
		_, _ = m.chain.ProcessResponse(ctx, processedReq, nil, nil)
	}()

	return out, nil
}

// GetRemote implements Client
func (m *MiddlewareClient) GetRemote() ClientRemoteInfo {
	return m.client.GetRemote()
}

// GetModelInfo implements Client
func (m *MiddlewareClient) GetModelInfo() ModelInfo {
	return m.client.GetModelInfo()
}

// Close implements Client
func (m *MiddlewareClient) Close() error {
	return m.client.Close()
}

// AddMiddleware appends a middleware to the client's chain
func (m *MiddlewareClient) AddMiddleware(middleware Middleware) {
	m.chain.Add(middleware)
}

// RemoveMiddleware removes a middleware from the client's chain by name
func (m *MiddlewareClient) RemoveMiddleware(name string) bool {
	return m.chain.Remove(name)
}

// MiddlewareNames returns the names of all middleware in the client's chain
func (m *MiddlewareClient) MiddlewareNames() []string {
	return m.chain.Names()
}

// ClientWithMiddleware wraps an existing client with middleware. When the
// client is already wrapped, the middleware is appended to its chain
// instead of nesting another wrapper.
func ClientWithMiddleware(client Client, middlewares []Middleware) Client {
	if wrapped, ok := client.(*MiddlewareClient); ok {
		for _, middleware := range middlewares {
			wrapped.AddMiddleware(middleware)
		}
		return wrapped
	}
	return NewMiddlewareClient(client, middlewares)
}
