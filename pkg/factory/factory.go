package factory

import (
	"fmt"
	"strings"

	"github.com/amari-ai/go-amari/pkg/llm"
)

// DefaultProvider is used when a configuration does not name one
const DefaultProvider = "openai"

// Factory creates LLM clients based on configuration
type Factory struct{}

// New creates a new client factory
func New() *Factory {
	return &Factory{}
}

// CreateClient creates an LLM client based on the configuration.
// The provider name is case-insensitive and defaults to openai.
func (f *Factory) CreateClient(config llm.ClientConfig) (llm.Client, error) {
	provider := strings.ToLower(config.Provider)
	if provider == "" {
		provider = DefaultProvider
	}

	if config.Model == "" {
		return nil, llm.NewError("missing_model", llm.ErrTypeInvalidRequest, "model is required")
	}

	constructor, exists := GetProvider(provider)
	if !exists {
		return nil, llm.NewError("unsupported_provider", llm.ErrTypeInvalidRequest,
			fmt.Sprintf("unsupported provider: %s", provider))
	}

	return constructor(config)
}
