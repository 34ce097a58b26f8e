package tools

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// ToolDefinition describes a callable tool: the schema the agent sees and the
// handler that runs locally when the agent asks for it.
type ToolDefinition struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object: {type, properties, required}.
	Parameters map[string]any
	Function   func(ctx context.Context, input json.RawMessage) (string, error)
	// Summarize returns a short human label for a call, e.g. the task title.
	// Optional; returns "" when the input cannot be summarised.
	Summarize func(input json.RawMessage) string
}

// GenerateSchema derives a flat JSON Schema object from T. Fields without
// omitempty are required.
func GenerateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)

	out := map[string]any{
		"type":       "object",
		"properties": schema.Properties,
	}
	if len(schema.Required) > 0 {
		out["required"] = schema.Required
	}
	return out
}

// Lookup returns the definition registered under name, or nil.
func Lookup(defs []ToolDefinition, name string) *ToolDefinition {
	for i := range defs {
		if defs[i].Name == name {
			return &defs[i]
		}
	}
	return nil
}
