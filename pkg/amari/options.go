package amari

import (
	"github.com/amari-ai/go-amari/pkg/augment"
	"github.com/amari-ai/go-amari/pkg/llm"
)

// CallOption adjusts a single chat completion call.
type CallOption func(*llm.ChatRequest)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) CallOption {
	return func(req *llm.ChatRequest) { req.Temperature = &t }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) CallOption {
	return func(req *llm.ChatRequest) { req.MaxTokens = &n }
}

// WithTopP sets nucleus sampling.
func WithTopP(p float32) CallOption {
	return func(req *llm.ChatRequest) { req.TopP = &p }
}

// WithTools attaches tool definitions to the call.
func WithTools(tools ...llm.Tool) CallOption {
	return func(req *llm.ChatRequest) { req.Tools = tools }
}

// WithResponseFormat requests structured output.
func WithResponseFormat(format llm.ResponseFormat) CallOption {
	return func(req *llm.ChatRequest) { req.ResponseFormat = &format }
}

// WithoutLiveSearch turns augmentation off for this call.
func WithoutLiveSearch() CallOption {
	return func(req *llm.ChatRequest) { augment.DisableLiveSearch(req) }
}
