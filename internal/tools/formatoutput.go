package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nexus-assistant/core/internal/providers"
)

// FormatOutputTool pretty-prints an arbitrary structured value for downstream
// display, reusing the generic-dict/list/string rendering rules the shared
// formatGeneric already implements for every other tool's fallback path.
type FormatOutputTool struct{}

// NewFormatOutputTool constructs a stateless output-formatting tool.
func NewFormatOutputTool() *FormatOutputTool {
	return &FormatOutputTool{}
}

func (t *FormatOutputTool) Name() string { return "format_output" }

func (t *FormatOutputTool) Description() string {
	return "Pretty-print a structured value (object, list, or string) for display."
}

func (t *FormatOutputTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"data": {"type": "object", "description": "The data to format"},
			"data_type": {"type": "string", "description": "Hint for how to format: auto, json, list, default auto"}
		},
		"required": ["data"]
	}`)
}

type formatOutputParams struct {
	Data     any    `json:"data"`
	DataType string `json:"data_type"`
}

func (t *FormatOutputTool) Execute(ctx context.Context, params json.RawMessage) (*providers.ToolResult, error) {
	var p formatOutputParams
	if err := json.Unmarshal(params, &p); err != nil {
		return &providers.ToolResult{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}

	var rendered string
	switch p.DataType {
	case "json":
		out, err := json.MarshalIndent(p.Data, "", "  ")
		if err != nil {
			return &providers.ToolResult{Content: fmt.Sprintf("format failed: %v", err), IsError: true}, nil
		}
		rendered = string(out)
	default:
		rendered = formatGeneric(p.Data)
	}

	return &providers.ToolResult{Content: rendered}, nil
}
