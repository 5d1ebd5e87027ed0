package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/fixflow/types"
)

// Handler is the tool function signature.
type Handler func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// FieldType is the semantic type of a declared input field.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldInteger FieldType = "integer"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
)

// FieldSpec declares one input field of a tool.
type FieldSpec struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required"`
}

// Spec declares a callable capability: name, description, input shape, and
// handler. The input shape is a static declaration built once per tool, not
// derived by runtime inspection.
type Spec struct {
	Name        string
	Description string
	Fields      []FieldSpec
	Handler     Handler

	// Timeout bounds one invocation. Zero means the executor default.
	Timeout time.Duration

	schemaOnce sync.Once
	schema     types.ToolSchema
}

// Schema returns the tool's wire schema. The JSON Schema parameters block is
// built once from the declared fields and cached.
func (s *Spec) Schema() types.ToolSchema {
	s.schemaOnce.Do(func() {
		properties := make(map[string]any, len(s.Fields))
		required := make([]string, 0, len(s.Fields))
		for _, f := range s.Fields {
			properties[f.Name] = map[string]any{
				"type":        string(f.Type),
				"description": f.Description,
			}
			if f.Required {
				required = append(required, f.Name)
			}
		}
		params := map[string]any{
			"type":       "object",
			"properties": properties,
		}
		if len(required) > 0 {
			params["required"] = required
		}
		raw, _ := json.Marshal(params)
		s.schema = types.ToolSchema{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  raw,
		}
	})
	return s.schema
}

// ValidateInput deserializes raw arguments and checks them against the
// declared shape. Missing required fields and type mismatches are rejected.
func (s *Spec) ValidateInput(raw json.RawMessage) (map[string]any, error) {
	args := make(map[string]any)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, types.NewError(types.ErrToolValidation,
				fmt.Sprintf("tool %s: arguments are not a JSON object", s.Name)).WithCause(err)
		}
	}

	for _, f := range s.Fields {
		v, ok := args[f.Name]
		if !ok {
			if f.Required {
				return nil, types.NewError(types.ErrToolValidation,
					fmt.Sprintf("tool %s: missing required field %q", s.Name, f.Name))
			}
			continue
		}
		if !matchesType(v, f.Type) {
			return nil, types.NewError(types.ErrToolValidation,
				fmt.Sprintf("tool %s: field %q: expected %s, got %T", s.Name, f.Name, f.Type, v))
		}
	}
	return args, nil
}

// matchesType checks a decoded JSON value against a declared field type.
// JSON numbers decode as float64; integers must have no fractional part.
func matchesType(v any, t FieldType) bool {
	switch t {
	case FieldString:
		_, ok := v.(string)
		return ok
	case FieldBoolean:
		_, ok := v.(bool)
		return ok
	case FieldNumber:
		_, ok := v.(float64)
		return ok
	case FieldInteger:
		f, ok := v.(float64)
		return ok && f == float64(int64(f))
	default:
		return false
	}
}

// StringArg extracts a string field from validated arguments.
func StringArg(args map[string]any, name string) string {
	if v, ok := args[name].(string); ok {
		return v
	}
	return ""
}

// IntArg extracts an integer field from validated arguments.
func IntArg(args map[string]any, name string) int {
	if v, ok := args[name].(float64); ok {
		return int(v)
	}
	return 0
}

// BoolArg extracts a boolean field from validated arguments.
func BoolArg(args map[string]any, name string) bool {
	if v, ok := args[name].(bool); ok {
		return v
	}
	return false
}
