package amari

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amari-ai/go-amari/pkg/llm"
)

func writeKeyFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}
	return path
}

func TestResolveAPIKeyFileWinsOverExplicit(t *testing.T) {
	path := writeKeyFile(t, "key", "sk-from-file\n")
	cfg := Config{APIKey: "sk-explicit", APIKeyPath: path}

	key, err := cfg.resolveAPIKey("openai")
	if err != nil {
		t.Fatalf("resolveAPIKey: %v", err)
	}
	if key != "sk-from-file" {
		t.Errorf("key = %q, want the trimmed file content", key)
	}
}

func TestResolveAPIKeyMalformedFile(t *testing.T) {
	path := writeKeyFile(t, "key", "not-an-openai-key")
	cfg := Config{APIKeyPath: path}

	_, err := cfg.resolveAPIKey("openai")
	if err == nil {
		t.Fatal("expected a malformed key error")
	}
	llmErr, ok := llm.AsError(err)
	if !ok {
		t.Fatalf("expected *llm.Error, got %T", err)
	}
	if llmErr.Code != llm.ErrCodeInvalidAPIKey {
		t.Errorf("code = %q, want %q", llmErr.Code, llm.ErrCodeInvalidAPIKey)
	}
	if !strings.Contains(llmErr.Message, "Malformed API key in") {
		t.Errorf("message = %q", llmErr.Message)
	}
}

func TestResolveAPIKeyFileNotValidatedForOtherProviders(t *testing.T) {
	path := writeKeyFile(t, "key", "gm-gemini-key")
	cfg := Config{APIKeyPath: path}

	key, err := cfg.resolveAPIKey("gemini")
	if err != nil {
		t.Fatalf("resolveAPIKey: %v", err)
	}
	if key != "gm-gemini-key" {
		t.Errorf("key = %q", key)
	}
}

func TestResolveAPIKeyExplicitWinsOverEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	cfg := Config{APIKey: "sk-explicit"}

	key, err := cfg.resolveAPIKey("openai")
	if err != nil {
		t.Fatalf("resolveAPIKey: %v", err)
	}
	if key != "sk-explicit" {
		t.Errorf("key = %q, want the explicit value", key)
	}
}

func TestResolveAPIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	key, err := Config{}.resolveAPIKey("openai")
	if err != nil {
		t.Fatalf("resolveAPIKey: %v", err)
	}
	if key != "sk-env" {
		t.Errorf("key = %q, want the env value", key)
	}
}

func TestResolveAPIKeyMissing(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Config{}.resolveAPIKey("openai")
	if err == nil {
		t.Fatal("expected an error without any key source")
	}
	llmErr, ok := llm.AsError(err)
	if !ok {
		t.Fatalf("expected *llm.Error, got %T", err)
	}
	if llmErr.Code != llm.ErrCodeMissingAPIKey {
		t.Errorf("code = %q, want %q", llmErr.Code, llm.ErrCodeMissingAPIKey)
	}
	if llmErr.Type != llm.ErrTypeAuthentication {
		t.Errorf("type = %q, want %q", llmErr.Type, llm.ErrTypeAuthentication)
	}
	if !strings.Contains(llmErr.Message, "OPENAI_API_KEY") {
		t.Errorf("message should name the env variable: %q", llmErr.Message)
	}
}

func TestResolveAPIKeyOptionalProviders(t *testing.T) {
	for _, provider := range []string{"ollama", "bedrock", "mock"} {
		key, err := Config{}.resolveAPIKey(provider)
		if err != nil {
			t.Errorf("provider %s should not require a key: %v", provider, err)
		}
		if key != "" {
			t.Errorf("provider %s resolved unexpected key %q", provider, key)
		}
	}
}

func TestResolveAmariKeyOrder(t *testing.T) {
	t.Setenv("AMARI_API_KEY", "am-env")

	key, err := Config{}.resolveAmariKey()
	if err != nil {
		t.Fatalf("resolveAmariKey: %v", err)
	}
	if key != "am-env" {
		t.Errorf("key = %q, want the env value", key)
	}

	key, err = Config{AmariAPIKey: "am-explicit"}.resolveAmariKey()
	if err != nil {
		t.Fatalf("resolveAmariKey: %v", err)
	}
	if key != "am-explicit" {
		t.Errorf("key = %q, want the explicit value", key)
	}

	path := writeKeyFile(t, "amari-key", "am-file\n")
	key, err = Config{AmariAPIKey: "am-explicit", AmariAPIKeyPath: path}.resolveAmariKey()
	if err != nil {
		t.Fatalf("resolveAmariKey: %v", err)
	}
	if key != "am-file" {
		t.Errorf("key = %q, want the file value", key)
	}
}

func TestResolveAmariKeyNotPrefixValidated(t *testing.T) {
	path := writeKeyFile(t, "amari-key", "anything-goes")

	key, err := Config{AmariAPIKeyPath: path}.resolveAmariKey()
	if err != nil {
		t.Fatalf("resolveAmariKey: %v", err)
	}
	if key != "anything-goes" {
		t.Errorf("key = %q", key)
	}
}

func TestResolveAmariKeyMissing(t *testing.T) {
	t.Setenv("AMARI_API_KEY", "")

	_, err := Config{}.resolveAmariKey()
	if err == nil {
		t.Fatal("expected an error without any key source")
	}
	llmErr, _ := llm.AsError(err)
	if llmErr == nil || !strings.Contains(llmErr.Message, "AMARI_API_KEY") {
		t.Errorf("error should name the env variable: %v", err)
	}
}

func TestDefaultModelFor(t *testing.T) {
	if got := defaultModelFor("openai"); got != llm.DefaultOpenAIModel {
		t.Errorf("openai default = %q", got)
	}
	if got := defaultModelFor("bedrock"); got != "" {
		t.Errorf("bedrock should have no default, got %q", got)
	}
}
