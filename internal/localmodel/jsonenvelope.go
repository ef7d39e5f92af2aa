package localmodel

import (
	"encoding/json"
	"regexp"
	"strings"
)

// formattedOutputKeyRe locates the start of a JSON object that declares a
// "formatted_output" key, so extractCompleteJSON can scan forward from the
// enclosing brace.
var formattedOutputKeyRe = regexp.MustCompile(`\{[^{}]*"formatted_output"`)

// legacyArrayRe locates a top-level JSON array whose items look like tool
// call dicts, the legacy fallback shape.
var legacyArrayRe = regexp.MustCompile(`\[\s*\{[^\[\]]*"name"[^\[\]]*\}\s*(?:,\s*\{[^\[\]]*\}\s*)*\]`)

// Envelope is the parsed shape of an embedded-JSON tool-call response:
// either a final textual answer (FormattedOutput non-empty) or a list of
// structured tool calls.
type Envelope struct {
	FormattedOutput string
	ToolCalls       []RawToolCall
}

// RawToolCall is a {name, arguments} pair as it appears in embedded JSON,
// before tool-name/argument remapping is applied.
type RawToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type envelopeJSON struct {
	FormattedOutput *string       `json:"formatted_output"`
	ToolCalls       []RawToolCall `json:"tool_calls"`
}

// ParseEnvelope searches content for the {formatted_output, tool_calls}
// envelope local models are instructed to emit, falling back to the legacy
// top-level-array shape. It returns (nil, false) if no envelope is found.
func ParseEnvelope(content string) (*Envelope, bool) {
	if loc := formattedOutputKeyRe.FindStringIndex(content); loc != nil {
		braceStart := strings.LastIndexByte(content[:loc[1]], '{')
		if braceStart >= 0 {
			if raw, ok := extractCompleteJSON(content, braceStart); ok {
				var parsed envelopeJSON
				if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
					if parsed.FormattedOutput != nil && len(*parsed.FormattedOutput) > 5 {
						return &Envelope{FormattedOutput: *parsed.FormattedOutput}, true
					}
					if len(parsed.ToolCalls) > 0 {
						return &Envelope{ToolCalls: parsed.ToolCalls}, true
					}
				}
			}
		}
	}

	if match := legacyArrayRe.FindString(content); match != "" {
		var calls []RawToolCall
		if err := json.Unmarshal([]byte(match), &calls); err == nil && len(calls) > 0 {
			return &Envelope{ToolCalls: calls}, true
		}
	}

	return nil, false
}

// extractCompleteJSON scans content starting at the opening brace at
// startPos and returns the substring up to and including its matching
// closing brace, respecting string literals and escape sequences so braces
// inside string values never cause a false match. Go's RE2 regexp engine
// cannot express this (no backreferences, no recursive balancing), so this
// is a small hand-rolled state machine instead.
func extractCompleteJSON(content string, startPos int) (string, bool) {
	if startPos < 0 || startPos >= len(content) || content[startPos] != '{' {
		return "", false
	}
	depth := 0
	inString := false
	escapeNext := false

	for i := startPos; i < len(content); i++ {
		c := content[i]
		switch {
		case escapeNext:
			escapeNext = false
		case c == '\\':
			escapeNext = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string literal, braces don't affect depth
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return content[startPos : i+1], true
			}
		}
	}
	return "", false
}
