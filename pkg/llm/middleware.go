package llm

import (
	"context"
	"fmt"
	"sync"
)

// Middleware defines the interface for chat middleware components.
// The live-search augmenter is the canonical implementation: it rewrites
// requests on the way in and annotates responses on the way out.
type Middleware interface {
	// Name returns the middleware name for identification
	Name() string

	// ProcessRequest processes the request before it is sent to the provider
	ProcessRequest(ctx context.Context, req *ChatRequest) (*ChatRequest, error)

	// ProcessResponse processes the response after the provider call.
	// err carries the provider error, if any, so middleware can observe
	// failures without being able to suppress them.
	ProcessResponse(ctx context.Context, req *ChatRequest, resp *ChatResponse, err error) (*ChatResponse, error)

	// ProcessStreamEvent processes streaming events as they pass through
	ProcessStreamEvent(ctx context.Context, req *ChatRequest, event StreamEvent) (StreamEvent, error)
}

// MiddlewareChain manages an ordered chain of middleware.
// Requests run through the chain in registration order, responses in
// reverse order. The chain is safe for concurrent use.
type MiddlewareChain struct {
	mu          sync.RWMutex
	middlewares []Middleware
}

// NewMiddlewareChain creates a middleware chain from the given middleware
func NewMiddlewareChain(middlewares []Middleware) *MiddlewareChain {
	chain := &MiddlewareChain{}
	for _, middleware := range middlewares {
		chain.Add(middleware)
	}
	return chain
}

// Add appends a middleware to the chain
func (c *MiddlewareChain) Add(middleware Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middlewares = append(c.middlewares, middleware)
}

// Remove removes a middleware by name, returning true when one was removed
func (c *MiddlewareChain) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, middleware := range c.middlewares {
		if middleware.Name() == name {
			c.middlewares = append(c.middlewares[:i], c.middlewares[i+1:]...)
			return true
		}
	}
	return false
}

// snapshot copies the middleware slice so processing never holds the lock
func (c *MiddlewareChain) snapshot() []Middleware {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Middleware, len(c.middlewares))
	copy(out, c.middlewares)
	return out
}

// ProcessRequest runs the request through the chain in order.
// A middleware error aborts the request.
func (c *MiddlewareChain) ProcessRequest(ctx context.Context, req *ChatRequest) (*ChatRequest, error) {
	current := req
	for _, middleware := range c.snapshot() {
		next, err := middleware.ProcessRequest(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("middleware %s failed: %w", middleware.Name(), err)
		}
		current = next
	}
	return current, nil
}

// ProcessResponse runs the response through the chain in reverse order.
// A failing middleware is skipped so one broken annotator cannot drop the
// provider's response.
func (c *MiddlewareChain) ProcessResponse(ctx context.Context, req *ChatRequest, resp *ChatResponse, err error) (*ChatResponse, error) {
	middlewares := c.snapshot()

	currentResp := resp
	for i := len(middlewares) - 1; i >= 0; i-- {
		processed, processErr := middlewares[i].ProcessResponse(ctx, req, currentResp, err)
		if processErr != nil {
			continue
		}
		currentResp = processed
	}

	return currentResp, err
}

// ProcessStreamEvent runs a stream event through the chain in order.
// A failing middleware leaves the event unchanged.
func (c *MiddlewareChain) ProcessStreamEvent(ctx context.Context, req *ChatRequest, event StreamEvent) (StreamEvent, error) {
	current := event
	for _, middleware := range c.snapshot() {
		next, err := middleware.ProcessStreamEvent(ctx, req, current)
		if err != nil {
			continue
		}
		current = next
	}
	return current, nil
}

// Names returns the names of all middleware in chain order
func (c *MiddlewareChain) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, len(c.middlewares))
	for i, middleware := range c.middlewares {
		names[i] = middleware.Name()
	}
	return names
}

// Len returns the number of middleware in the chain
func (c *MiddlewareChain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.middlewares)
}
