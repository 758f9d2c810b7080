// Package factory provides provider registration and client construction.
//
// Importing this package registers every built-in provider (openai, gemini,
// deepseek, openrouter, ollama, bedrock, mock) with a thread-safe registry.
// Clients are created from an llm.ClientConfig; the provider name selects
// the registered constructor.
//
// Example usage:
//
//	import (
//	    "github.com/amari-ai/go-amari/pkg/factory"
//	    "github.com/amari-ai/go-amari/pkg/llm"
//	)
//
//	f := factory.New()
//	client, err := f.CreateClient(llm.ClientConfig{
//	    Provider: "openai",
//	    Model:    "gpt-4o-mini",
//	    APIKey:   "your-api-key",
//	})
//
// NewAugmentedClient additionally wires the live web-search middleware
// around the created client, so answers can draw on current information.
package factory
