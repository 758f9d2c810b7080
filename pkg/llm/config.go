// Configuration types and response format specifications
package llm

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Default models per provider
const (
	DefaultOpenAIModel     = "gpt-4o-mini"
	DefaultGeminiModel     = "gemini-1.5-flash"
	DefaultDeepSeekModel   = "deepseek-chat"
	DefaultOpenRouterModel = "openai/gpt-4o-mini"
	DefaultOllamaModel     = "gpt-oss:20b"
)

const DefaultOllamaBaseURL = "http://localhost:11434"

const (
	DefaultTimeout       = 30 * time.Second
	DefaultOllamaTimeout = 60 * time.Second
)

// ClientConfig holds configuration for creating LLM clients
type ClientConfig struct {
	Provider   string            `json:"provider"` // openai, gemini, deepseek, openrouter, ollama, bedrock
	Model      string            `json:"model"`
	APIKey     string            `json:"api_key,omitempty"`
	BaseURL    string            `json:"base_url,omitempty"`
	Timeout    time.Duration     `json:"timeout,omitempty"`
	MaxRetries int               `json:"max_retries,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"` // Provider-specific configs
}

// ResponseFormat specifies the desired response format for structured outputs
type ResponseFormat struct {
	Type       ResponseFormatType `json:"type"`
	JSONSchema *JSONSchema        `json:"json_schema,omitempty"`
}

// ResponseFormatType defines the type of response format
type ResponseFormatType string

const (
	// ResponseFormatText indicates plain text response (default)
	ResponseFormatText ResponseFormatType = "text"
	// ResponseFormatJSON indicates JSON object response without strict schema
	ResponseFormatJSON ResponseFormatType = "json_object"
	// ResponseFormatJSONSchema indicates JSON response with strict schema validation
	ResponseFormatJSONSchema ResponseFormatType = "json_schema"
)

// JSONSchema represents a JSON Schema specification for structured outputs
type JSONSchema struct {
	Name        string      `json:"name,omitempty"`
	Description string      `json:"description,omitempty"`
	Schema      interface{} `json:"schema"`
	Strict      *bool       `json:"strict,omitempty"`
}

// parseTimeoutFromEnv parses a timeout in seconds from an environment
// variable, falling back to the given default
func parseTimeoutFromEnv(envVar string, defaultTimeout time.Duration) time.Duration {
	if timeoutStr := os.Getenv(envVar); timeoutStr != "" {
		if timeoutSecs, err := strconv.Atoi(timeoutStr); err == nil && timeoutSecs > 0 {
			return time.Duration(timeoutSecs) * time.Second
		}
	}
	return defaultTimeout
}

// GetLLMFromEnv builds a ClientConfig from environment variables, probing
// providers in priority order: a custom OpenAI-compatible endpoint, OpenAI,
// Gemini, DeepSeek, OpenRouter, and finally local Ollama.
func GetLLMFromEnv() ClientConfig {
	// Custom OpenAI-compatible endpoint wins when explicitly configured
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		fmt.Println("🔑 Using custom OpenAI-compatible API")
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			apiKey = "dummy" // some endpoints don't require real keys
		}

		model := DefaultOpenAIModel
		if customModel := os.Getenv("OPENAI_MODEL"); customModel != "" {
			model = customModel
		} else if customModel := os.Getenv("MODEL"); customModel != "" {
			model = customModel
		}

		return ClientConfig{
			Provider: "openai",
			Model:    model,
			APIKey:   apiKey,
			BaseURL:  baseURL,
			Timeout:  parseTimeoutFromEnv("OPENAI_TIMEOUT", DefaultTimeout),
		}
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		fmt.Println("🔑 Using OpenAI API")
		return ClientConfig{
			Provider: "openai",
			Model:    DefaultOpenAIModel,
			APIKey:   apiKey,
			Timeout:  parseTimeoutFromEnv("OPENAI_TIMEOUT", DefaultTimeout),
		}
	}

	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		fmt.Println("🔑 Using Gemini API")
		model := DefaultGeminiModel
		if customModel := os.Getenv("GEMINI_MODEL"); customModel != "" {
			model = customModel
		}
		return ClientConfig{
			Provider: "gemini",
			Model:    model,
			APIKey:   apiKey,
			Timeout:  parseTimeoutFromEnv("GEMINI_TIMEOUT", DefaultTimeout),
		}
	}

	if apiKey := os.Getenv("DEEPSEEK_API_KEY"); apiKey != "" {
		fmt.Println("🔑 Using DeepSeek API")
		model := DefaultDeepSeekModel
		if customModel := os.Getenv("DEEPSEEK_MODEL"); customModel != "" {
			model = customModel
		}
		return ClientConfig{
			Provider: "deepseek",
			Model:    model,
			APIKey:   apiKey,
			Timeout:  parseTimeoutFromEnv("DEEPSEEK_TIMEOUT", DefaultTimeout),
		}
	}

	if apiKey := os.Getenv("OPENROUTER_API_KEY"); apiKey != "" {
		fmt.Println("🔑 Using OpenRouter API")
		model := DefaultOpenRouterModel
		if customModel := os.Getenv("OPENROUTER_MODEL"); customModel != "" {
			model = customModel
		}
		return ClientConfig{
			Provider: "openrouter",
			Model:    model,
			APIKey:   apiKey,
			Timeout:  parseTimeoutFromEnv("OPENROUTER_TIMEOUT", DefaultTimeout),
		}
	}

	// Default: Ollama (local, free)
	baseURL := DefaultOllamaBaseURL
	fmt.Printf("🔑 Using Ollama (local) at %s\n", baseURL)
	fmt.Println("💡 To use cloud providers: set OPENAI_API_KEY, GEMINI_API_KEY, DEEPSEEK_API_KEY or OPENROUTER_API_KEY")

	return ClientConfig{
		Provider: "ollama",
		Model:    DefaultOllamaModel,
		BaseURL:  baseURL,
		Timeout:  parseTimeoutFromEnv("OLLAMA_TIMEOUT", DefaultOllamaTimeout),
	}
}
