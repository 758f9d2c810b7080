// Package mock provides a configurable fake LLM client for testing.
//
// The client implements the full llm.Client interface without any network
// access. Responses can be queued explicitly with the With* builders, or
// left to the built-in generator, which produces context-aware answers:
// it replies to greetings, emits tool calls for trigger words like
// "search" or "calculate", and when the request carries injected web
// search results it answers by citing them, so the search augmentation
// pipeline can be exercised end to end against this client.
//
// Additional knobs simulate latency, random failures, and streaming
// delivery. A call log records every request for assertions.
//
// Usage:
//
//	client, _ := mock.NewClient("mock-model", "mock")
//	client.WithSimpleResponse("Hello there!").
//		WithToolCall("web_search", map[string]interface{}{"query": "weather"})
package mock
