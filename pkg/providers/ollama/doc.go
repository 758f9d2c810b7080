// Package ollama provides an LLM client for a local Ollama instance.
//
// This package implements the llm.Client interface over Ollama's HTTP API,
// supporting chat completions, NDJSON streaming, and the usual open-source
// model families (Llama, Qwen, Mistral, LLaVA, etc.).
//
// Features:
//   - Local model hosting via Ollama
//   - Streaming chat completions
//   - Model capability detection from the model name
//   - Multi-modal content (text, images) for vision models
//   - Structured output via injected format instructions
//
// The client connects to a local Ollama instance on localhost:11434 by
// default, but can be pointed at any Ollama endpoint through BaseURL.
package ollama
