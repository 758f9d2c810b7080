package llm

import (
	"bytes"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/swaggest/jsonschema-go"
)

// PromptsConfig holds configurable system and user prompts, typically
// loaded from a YAML config file
type PromptsConfig struct {
	System []string `yaml:"system,omitempty"` // System prompts
	User   []string `yaml:"user,omitempty"`   // User prompts
}

// GetSystemPrompts returns all system prompts joined with newlines
func (p PromptsConfig) GetSystemPrompts() string {
	return strings.Join(p.System, "\n")
}

// GetUserPrompts returns all user prompts joined with newlines
func (p PromptsConfig) GetUserPrompts() string {
	return strings.Join(p.User, "\n")
}

// HasSystemPrompts returns true if any system prompts are configured
func (p PromptsConfig) HasSystemPrompts() bool {
	return len(p.System) > 0
}

// HasUserPrompts returns true if any user prompts are configured
func (p PromptsConfig) HasUserPrompts() bool {
	return len(p.User) > 0
}

// PromptTemplate represents a prompt template rendered with specific inputs.
// It uses Go's text/template syntax for placeholders.
type PromptTemplate struct {
	Template string
}

// NewPromptTemplate creates a PromptTemplate from the given template string
func NewPromptTemplate(template string) PromptTemplate {
	return PromptTemplate{Template: template}
}

// NewPromptTemplateRendered creates and renders a template in one step
func NewPromptTemplateRendered(tmpl string, inputs map[string]any) (string, error) {
	return PromptTemplate{Template: tmpl}.Render(inputs)
}

// Render fills the template with the provided inputs
func (pt PromptTemplate) Render(inputs map[string]any) (string, error) {
	tmpl, err := template.New("prompt").Parse(pt.Template)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, inputs); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderWithJSONSchemaFor fills the template with the provided inputs and
// adds a JSON schema representation of s under the key "JSONSchema". Used
// for prompts that ask the model for schema-conforming JSON output.
func (pt PromptTemplate) RenderWithJSONSchemaFor(inputs map[string]any, s any) (string, error) {
	reflector := jsonschema.Reflector{}

	schema, err := reflector.Reflect(s)
	if err != nil {
		return "", err
	}

	j, err := json.MarshalIndent(schema, "", " ")
	if err != nil {
		return "", err
	}

	if inputs == nil {
		inputs = map[string]any{}
	}
	inputs["JSONSchema"] = string(j)
	return pt.Render(inputs)
}
