package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// fieldSchema is one property of a tool's JSON Schema parameter description,
// restricted to the field kinds the design allows: string, integer, number,
// boolean, array<simple>, object<string,any>. This is a deliberate departure
// from a full Pydantic-equivalent schema library — see DESIGN.md.
type fieldSchema struct {
	Type  string       `json:"type"`
	Items *fieldSchema `json:"items,omitempty"`
}

type toolSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]fieldSchema `json:"properties"`
	Required   []string               `json:"required"`
}

// ValidateSchema checks that arguments satisfies raw (a tool's JSON Schema),
// covering required-field presence and type-kind matching. It does not
// attempt full JSON Schema semantics (no nested object validation, no
// enum/pattern/minimum checks) — those live in the tool's own Execute.
func ValidateSchema(raw []byte, arguments map[string]any) error {
	var schema toolSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return fmt.Errorf("tool schema is not valid JSON: %w", err)
	}

	for _, name := range schema.Required {
		if _, ok := arguments[name]; !ok {
			return fmt.Errorf("missing required argument %q", name)
		}
	}

	for name, value := range arguments {
		field, ok := schema.Properties[name]
		if !ok {
			continue // unknown arguments are tolerated, not rejected
		}
		coerced, err := validateKind(name, field, value)
		if err != nil {
			return err
		}
		if coerced != value {
			arguments[name] = coerced
		}
	}
	return nil
}

// validateKind checks value against field's declared kind, returning the
// value to use (coerced if necessary — local models frequently emit numeric
// tool arguments as JSON strings, e.g. "5" for an integer field).
func validateKind(name string, field fieldSchema, value any) (any, error) {
	if value == nil {
		return value, nil
	}
	switch field.Type {
	case "string":
		if _, ok := value.(string); !ok {
			return nil, fmt.Errorf("argument %q must be a string", name)
		}
	case "integer", "number":
		switch v := value.(type) {
		case float64, int, int64:
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("argument %q must be a number", name)
			}
			return f, nil
		default:
			return nil, fmt.Errorf("argument %q must be a number", name)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return nil, fmt.Errorf("argument %q must be a boolean", name)
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return nil, fmt.Errorf("argument %q must be an array", name)
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return nil, fmt.Errorf("argument %q must be an object", name)
		}
	}
	return value, nil
}
