// Package openrouter provides an LLM client for the OpenRouter gateway.
//
// OpenRouter fronts models from many providers behind one OpenAI-compatible
// API, which makes it a convenient single key for mixed-model workloads.
// This provider implements the llm.Client interface on top of it.
//
// Key features:
//   - Chat completions with streaming support
//   - Tool calling with upfront definition validation
//   - Multi-modal messages with images as URLs or data URLs
//   - Model catalog listing with pricing and modality info
//   - Site attribution via the site_url and app_name extra keys
//
// The client automatically registers itself with the LLM provider registry
// during package initialization, making it available for use with the
// factory pattern.
//
// Usage:
//
//	config := llm.ClientConfig{
//	    Provider: "openrouter",
//	    APIKey:   "your-api-key",
//	    Model:    "openai/gpt-4o-mini",
//	}
//	client, err := factory.New().CreateClient(config)
package openrouter
