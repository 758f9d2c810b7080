package factory

import (
	"github.com/amari-ai/go-amari/pkg/llm"
	"github.com/amari-ai/go-amari/pkg/providers/bedrock"
	"github.com/amari-ai/go-amari/pkg/providers/deepseek"
	"github.com/amari-ai/go-amari/pkg/providers/gemini"
	"github.com/amari-ai/go-amari/pkg/providers/mock"
	"github.com/amari-ai/go-amari/pkg/providers/ollama"
	"github.com/amari-ai/go-amari/pkg/providers/openai"
	"github.com/amari-ai/go-amari/pkg/providers/openrouter"
)

func init() {
	RegisterProvider("openai", func(config llm.ClientConfig) (llm.Client, error) {
		return openai.NewClient(config)
	})

	RegisterProvider("gemini", func(config llm.ClientConfig) (llm.Client, error) {
		return gemini.NewClient(config)
	})

	RegisterProvider("deepseek", func(config llm.ClientConfig) (llm.Client, error) {
		return deepseek.NewClient(config)
	})

	RegisterProvider("openrouter", func(config llm.ClientConfig) (llm.Client, error) {
		return openrouter.NewClient(config)
	})

	RegisterProvider("ollama", func(config llm.ClientConfig) (llm.Client, error) {
		return ollama.NewClient(config)
	})

	RegisterProvider("bedrock", func(config llm.ClientConfig) (llm.Client, error) {
		return bedrock.NewClient(config)
	})

	// "mocked" is kept as an alias for older configurations
	RegisterProvider("mock", func(config llm.ClientConfig) (llm.Client, error) {
		return mock.NewClient(config.Model, "mock")
	})
	RegisterProvider("mocked", func(config llm.ClientConfig) (llm.Client, error) {
		return mock.NewClient(config.Model, "mock")
	})
}
