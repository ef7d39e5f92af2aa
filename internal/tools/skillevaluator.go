package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexus-assistant/core/internal/providers"
	"github.com/nexus-assistant/core/internal/repository"
)

// skillKeywords defines the keyword-evaluator's phrase lists: a skill's
// level increments when a message contains one of its phrases.
// use_web_research is accepted for contract compatibility but this
// implementation evaluates on keywords only — no web_search round-trip is
// performed synchronously inside a single tool call.
var skillKeywords = map[string][]string{
	"empathy": {
		"i understand how you feel",
		"that must be",
		"i'm sorry you're going through",
		"that sounds difficult",
	},
	"active_listening": {
		"i understand",
		"i hear you",
		"that makes sense",
		"what i'm hearing is",
	},
	"clarity": {
		"let me explain",
		"to clarify",
		"in other words",
	},
}

const maxSkillLevel = 10

// SkillEvaluatorTool detects the keyword patterns above in a user's message
// and increments the matching skills' levels, capped at maxSkillLevel. It
// is keyword-driven rather than model-driven; the sentiment/web-research
// passes a fuller evaluator might run alongside it are not reproduced here
// (see DESIGN.md).
type SkillEvaluatorTool struct {
	store  repository.SkillStore
	userID int64
}

// NewSkillEvaluatorTool binds a skill evaluator to store for userID.
func NewSkillEvaluatorTool(store repository.SkillStore, userID int64) *SkillEvaluatorTool {
	return &SkillEvaluatorTool{store: store, userID: userID}
}

func (t *SkillEvaluatorTool) Name() string { return "skill_evaluator" }

func (t *SkillEvaluatorTool) Description() string {
	return "Evaluate a user's message for communication skill keywords (empathy, active listening, clarity) and update their skill levels."
}

func (t *SkillEvaluatorTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"user_id": {"type": "integer", "description": "ID of the user being evaluated"},
			"message": {"type": "string", "description": "Single message to evaluate"},
			"messages": {"type": "array", "items": {"type": "string"}, "description": "Sequence of messages to evaluate"},
			"cultural_context": {"type": "string", "description": "Cultural context, default Western"},
			"use_web_research": {"type": "boolean", "description": "Whether to supplement with web research, default true"}
		},
		"required": ["user_id"]
	}`)
}

type skillEvaluatorParams struct {
	UserID          int64    `json:"user_id"`
	Message         *string  `json:"message"`
	Messages        []string `json:"messages"`
	CulturalContext string   `json:"cultural_context"`
}

func (t *SkillEvaluatorTool) Execute(ctx context.Context, params json.RawMessage) (*providers.ToolResult, error) {
	var p skillEvaluatorParams
	if err := json.Unmarshal(params, &p); err != nil {
		return &providers.ToolResult{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}
	if p.Message != nil && len(p.Messages) > 0 {
		return &providers.ToolResult{Content: "provide either message or messages, not both", IsError: true}, nil
	}

	var texts []string
	if p.Message != nil {
		texts = []string{*p.Message}
	} else {
		texts = p.Messages
	}
	if len(texts) == 0 {
		return &providers.ToolResult{Content: "message or messages is required", IsError: true}, nil
	}

	combined := strings.ToLower(strings.Join(texts, "\n"))

	before := make(map[string]int, len(skillKeywords))
	after := make(map[string]int, len(skillKeywords))
	var feedback []string

	for skillID, keywords := range skillKeywords {
		if _, err := t.store.GetOrCreateSkill(ctx, skillID); err != nil {
			return &providers.ToolResult{Content: fmt.Sprintf("skill lookup failed: %v", err), IsError: true}, nil
		}
		level, err := t.store.GetSkillLevel(ctx, t.userID, skillID)
		if err != nil {
			return &providers.ToolResult{Content: fmt.Sprintf("level lookup failed: %v", err), IsError: true}, nil
		}
		before[skillID] = level

		matched := matchesAny(combined, keywords)
		newLevel := level
		if matched && newLevel < maxSkillLevel {
			newLevel++
			if err := t.store.SetSkillLevel(ctx, t.userID, skillID, newLevel); err != nil {
				return &providers.ToolResult{Content: fmt.Sprintf("level update failed: %v", err), IsError: true}, nil
			}
			feedback = append(feedback, fmt.Sprintf("%s: level %d -> %d", skillID, level, newLevel))
		}
		after[skillID] = newLevel
	}

	payload := map[string]any{
		"before":   before,
		"after":    after,
		"feedback": strings.Join(feedback, "; "),
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return &providers.ToolResult{Content: fmt.Sprintf("marshal failed: %v", err), IsError: true}, nil
	}
	return &providers.ToolResult{Content: string(out)}, nil
}

func matchesAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
