package mcp

import (
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/werkbank-dev/werkbank/pkg/tools"
)

// jsonSchema is the subset of JSON Schema the conversion understands.
// Anything beyond it is ignored rather than rejected.
type jsonSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]schemaProperty `json:"properties"`
	Required   []string                  `json:"required"`
}

type schemaProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []any    `json:"enum"`
	Minimum     *float64 `json:"minimum"`
	Maximum     *float64 `json:"maximum"`
	Default     any      `json:"default"`
}

// specFromTool converts a discovered MCP tool into a capability spec
// registered under name. The tool's input schema is mapped best-effort:
// properties without a recognized type tag validate as pass-through, and
// a schema that cannot be decoded yields a spec without parameters so the
// tool stays callable.
func specFromTool(name string, t *mcp.Tool) tools.CapabilitySpec {
	spec := tools.CapabilitySpec{
		Name:        name,
		Description: t.Description,
		Parameters:  map[string]tools.ParameterSpec{},
	}
	if t.InputSchema == nil {
		return spec
	}

	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		return spec
	}
	var schema jsonSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return spec
	}

	required := make(map[string]bool, len(schema.Required))
	for _, r := range schema.Required {
		required[r] = true
	}
	for pname, prop := range schema.Properties {
		spec.Parameters[pname] = tools.ParameterSpec{
			Type:        paramType(prop.Type),
			Description: prop.Description,
			Required:    required[pname],
			Enum:        prop.Enum,
			Minimum:     prop.Minimum,
			Maximum:     prop.Maximum,
			Default:     prop.Default,
		}
	}
	return spec
}

// paramType maps a JSON Schema type tag onto the capability parameter
// types. Unrecognized tags map to the empty type, which skips structural
// validation.
func paramType(t string) tools.ParamType {
	switch t {
	case "string":
		return tools.TypeString
	case "number":
		return tools.TypeNumber
	case "integer":
		return tools.TypeInteger
	case "boolean":
		return tools.TypeBoolean
	case "array":
		return tools.TypeArray
	case "object":
		return tools.TypeObject
	}
	return ""
}
