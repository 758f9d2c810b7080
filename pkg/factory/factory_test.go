package factory

import (
	"testing"

	"github.com/amari-ai/go-amari/pkg/llm"
)

func TestCreateClientValidation(t *testing.T) {
	t.Parallel()

	f := New()

	_, err := f.CreateClient(llm.ClientConfig{Provider: "mock"})
	if err == nil {
		t.Fatal("Expected error for missing model")
	}

	llmErr, ok := llm.AsError(err)
	if !ok {
		t.Fatalf("Expected *llm.Error, got %T", err)
	}
	if llmErr.Code != "missing_model" {
		t.Errorf("Expected missing_model, got %s", llmErr.Code)
	}
	if llmErr.Type != llm.ErrTypeInvalidRequest {
		t.Errorf("Expected invalid request type, got %s", llmErr.Type)
	}
}

func TestCreateClientUnsupportedProvider(t *testing.T) {
	t.Parallel()

	f := New()

	_, err := f.CreateClient(llm.ClientConfig{
		Provider: "nonexistent",
		Model:    "some-model",
	})
	if err == nil {
		t.Fatal("Expected error for unsupported provider")
	}

	llmErr, ok := llm.AsError(err)
	if !ok {
		t.Fatalf("Expected *llm.Error, got %T", err)
	}
	if llmErr.Code != "unsupported_provider" {
		t.Errorf("Expected unsupported_provider, got %s", llmErr.Code)
	}
}

func TestProviderNameIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	f := New()

	client, err := f.CreateClient(llm.ClientConfig{
		Provider: "MOCK",
		Model:    "test-model",
	})
	if err != nil {
		t.Fatalf("Expected case-insensitive provider lookup, got error: %v", err)
	}
	defer func() { _ = client.Close() }()

	if client.GetModelInfo().Provider != "mock" {
		t.Errorf("Expected mock provider, got %s", client.GetModelInfo().Provider)
	}
}

func TestAutoRegistration(t *testing.T) {
	t.Parallel()

	providers := ListProviders()
	if len(providers) == 0 {
		t.Fatal("Expected providers to be auto-registered")
	}

	expected := []string{"bedrock", "deepseek", "gemini", "mock", "ollama", "openai", "openrouter"}
	registered := make(map[string]bool, len(providers))
	for _, name := range providers {
		registered[name] = true
	}
	for _, name := range expected {
		if !registered[name] {
			t.Errorf("Expected provider %s to be registered", name)
		}
	}

	f := New()
	client, err := f.CreateClient(llm.ClientConfig{
		Provider: "mock",
		Model:    "test-model",
	})
	if err != nil {
		t.Fatalf("Failed to create mock client: %v", err)
	}
	defer func() { _ = client.Close() }()
}

func TestListProvidersIsSorted(t *testing.T) {
	t.Parallel()

	providers := ListProviders()
	for i := 1; i < len(providers); i++ {
		if providers[i-1] > providers[i] {
			t.Errorf("Expected sorted provider names, got %v", providers)
			break
		}
	}
}
