// Package llm provides the provider-agnostic chat client abstraction that
// the amari augmentation pipeline is built on.
//
// The package defines the core interfaces implemented by every provider,
// along with the common types for requests, responses, messages and
// streaming. Live-search augmentation is implemented as middleware over
// these interfaces, so an augmented client is indistinguishable from a
// plain one to its caller.
//
// The main components include:
//
// - Client interface: chat completion and streaming
// - Middleware and MiddlewareChain: request/response interception
// - Message types: multi-modal message support (text, images)
// - Configuration: provider-agnostic client configuration
// - Error handling: standardized error type shared by all providers
// - Retry: exponential backoff for throttled or failing calls
//
// Provider implementations live in separate packages under /pkg/providers/
// to keep vendor SDK dependencies out of the core.
package llm
