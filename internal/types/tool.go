// Package types holds the provider-agnostic data types shared between the
// registry, the bridge, the LLM providers and the agent loop.
package types

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// AnswerFunction is the sentinel finalize tool. The model calls it to emit
// its final answer; it never reaches the backend.
const AnswerFunction = "answer_user_query"

// Param describes a single tool parameter as declared in the capability
// manifest.
type Param struct {
	Type        string   `yaml:"type" json:"type"`
	Description string   `yaml:"description" json:"description"`
	Enum        []string `yaml:"enum,omitempty" json:"enum,omitempty"`
	Default     any      `yaml:"default,omitempty" json:"default,omitempty"`
	Required    bool     `yaml:"required,omitempty" json:"-"`
}

// Params is an ordered name->Param mapping. Manifest order is preserved so
// the emitted schemas are stable across loads.
type Params struct {
	Names  []string
	ByName map[string]Param
}

// UnmarshalYAML decodes a YAML mapping while keeping key order.
func (p *Params) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("parameters must be a mapping, got %s", node.Tag)
	}
	p.ByName = make(map[string]Param, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var def Param
		if err := node.Content[i+1].Decode(&def); err != nil {
			return fmt.Errorf("parameter %q: %w", name, err)
		}
		p.Names = append(p.Names, name)
		p.ByName[name] = def
	}
	return nil
}

// Len returns the number of declared parameters.
func (p Params) Len() int { return len(p.Names) }

// ToolDefinition is one entry of the capability manifest. Immutable once
// loaded.
type ToolDefinition struct {
	Name        string `yaml:"-"`
	Description string `yaml:"description"`
	Parameters  Params `yaml:"parameters"`
	EnabledBy   string `yaml:"enabled_by"`
	MCPFunction string `yaml:"mcp_function"`
	Category    string `yaml:"category"`

	// MCPParameters renames abstract parameters to backend names.
	// Identity for parameters not listed.
	MCPParameters map[string]string `yaml:"mcp_parameters,omitempty"`
}

// FunctionSchema is the function-calling shape surfaced to the model API:
// {type:"function", function:{name, description, parameters:{...}}}.
type FunctionSchema struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec is the inner function object of a FunctionSchema.
type FunctionSpec struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Parameters  ObjectSchema `json:"parameters"`
}

// ObjectSchema is the JSON-schema-like parameter object.
type ObjectSchema struct {
	Type                 string           `json:"type"`
	Properties           map[string]Param `json:"properties"`
	Required             []string         `json:"required,omitempty"`
	AdditionalProperties bool             `json:"additionalProperties"`
}

// Schema builds the model-facing function schema for a tool definition.
// Every manifest field survives the translation: types, enums, defaults
// and required-ness.
func (t ToolDefinition) Schema() FunctionSchema {
	props := make(map[string]Param, t.Parameters.Len())
	var required []string
	for _, name := range t.Parameters.Names {
		def := t.Parameters.ByName[name]
		props[name] = def
		if def.Required {
			required = append(required, name)
		}
	}
	return FunctionSchema{
		Type: "function",
		Function: FunctionSpec{
			Name:        t.Name,
			Description: t.Description,
			Parameters: ObjectSchema{
				Type:       "object",
				Properties: props,
				Required:   required,
			},
		},
	}
}

// AnswerSchema returns the schema of the sentinel finalize tool.
func AnswerSchema() FunctionSchema {
	return FunctionSchema{
		Type: "function",
		Function: FunctionSpec{
			Name:        AnswerFunction,
			Description: "Provides the final answer to the user's question based on information gathered from previous tool calls.",
			Parameters: ObjectSchema{
				Type: "object",
				Properties: map[string]Param{
					"answer": {
						Type:        "string",
						Description: "The concise answer to the user's original question based on all gathered information.",
					},
				},
				Required: []string{"answer"},
			},
		},
	}
}
