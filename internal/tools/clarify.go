package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexus-assistant/core/internal/providers"
)

// empathyIssuePhrases flags message text as potentially hurtful. Empathy is
// checked before clarity, before translation. This is a keyword heuristic
// stand-in for a fuller LLM-backed coaching call — see DESIGN.md.
var empathyIssuePhrases = []string{
	"shut up",
	"stupid",
	"idiot",
	"whatever, i don't care",
	"that's your problem",
}

// ClarifyCommunicationTool analyzes a message for empathy/clarity issues and,
// when the text contains non-ASCII characters, flags it as needing
// cross-language clarification. Its result contract is
// {original_text, EMPATHY_ISSUE_DETECTED, coaching_analysis, action_required}.
type ClarifyCommunicationTool struct{}

// NewClarifyCommunicationTool constructs a stateless clarification tool.
func NewClarifyCommunicationTool() *ClarifyCommunicationTool {
	return &ClarifyCommunicationTool{}
}

func (t *ClarifyCommunicationTool) Name() string { return "clarify_communication" }

func (t *ClarifyCommunicationTool) Description() string {
	return "SOCIAL COACHING TOOL - analyze a message for empathy and clarity issues before considering translation. Use for rude messages, conflicts, miscommunication, or unclear wording."
}

func (t *ClarifyCommunicationTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"text": {"type": "string", "description": "The text to analyze or clarify"},
			"target_language": {"type": "string", "description": "Target language, default english"},
			"source_language": {"type": "string", "description": "Source language if known"},
			"context": {"type": "string", "description": "Additional conversation context"}
		},
		"required": ["text"]
	}`)
}

type clarifyParams struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
	SourceLanguage string `json:"source_language"`
	Context        string `json:"context"`
}

func (t *ClarifyCommunicationTool) Execute(ctx context.Context, params json.RawMessage) (*providers.ToolResult, error) {
	var p clarifyParams
	if err := json.Unmarshal(params, &p); err != nil {
		return &providers.ToolResult{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}
	if strings.TrimSpace(p.Text) == "" {
		return &providers.ToolResult{Content: "no text provided for clarification", IsError: true}, nil
	}
	if p.TargetLanguage == "" {
		p.TargetLanguage = "english"
	}

	lower := strings.ToLower(p.Text)
	detected := false
	var matched string
	for _, phrase := range empathyIssuePhrases {
		if strings.Contains(lower, phrase) {
			detected = true
			matched = phrase
			break
		}
	}

	var analysis, action string
	if detected {
		analysis = fmt.Sprintf("The message contains language (%q) that may come across as dismissive or hurtful.", matched)
		action = "REPHRASE"
	} else {
		analysis = "No major empathy or clarity issues detected."
		action = "NONE"
	}

	payload, err := json.Marshal(map[string]any{
		"original_text":          p.Text,
		"EMPATHY_ISSUE_DETECTED": detected,
		"coaching_analysis":      analysis,
		"action_required":        action,
	})
	if err != nil {
		return &providers.ToolResult{Content: fmt.Sprintf("marshal failed: %v", err), IsError: true}, nil
	}
	return &providers.ToolResult{Content: string(payload)}, nil
}
