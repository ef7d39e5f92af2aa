package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nexus-assistant/core/internal/memory"
	"github.com/nexus-assistant/core/internal/providers"
	"github.com/nexus-assistant/core/pkg/models"
)

// RecallTool is a thin wrapper over the per-user memory manager: it is the
// only built-in tool the LLM can call to look back at a user's own history.
// The tool never touches the Repository directly, only the already-
// lazily-loaded Manager bound to one user for the lifetime of a turn.
type RecallTool struct {
	manager *memory.Manager
	userID  int64
}

// NewRecallTool binds a recall tool to manager for the current turn's user.
func NewRecallTool(manager *memory.Manager, userID int64) *RecallTool {
	return &RecallTool{manager: manager, userID: userID}
}

func (t *RecallTool) Name() string { return "recall_last_conversation" }

func (t *RecallTool) Description() string {
	return "Recall the last messages from this user's conversation history, across both general chat and AI-coaching buckets."
}

func (t *RecallTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"user_id": {"type": "integer", "description": "ID of the user whose history to recall"},
			"limit": {"type": "integer", "description": "Maximum number of messages to return (default 10)"}
		},
		"required": ["user_id"]
	}`)
}

type recallParams struct {
	UserID int64 `json:"user_id"`
	Limit  int   `json:"limit"`
}

func (t *RecallTool) Execute(ctx context.Context, params json.RawMessage) (*providers.ToolResult, error) {
	var p recallParams
	if err := json.Unmarshal(params, &p); err != nil {
		return &providers.ToolResult{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}

	messages, err := t.manager.Recall(ctx, p.Limit, nil)
	if err != nil {
		return &providers.ToolResult{Content: fmt.Sprintf("recall failed: %v", err), IsError: true}, nil
	}

	counts := map[string]int{"general": 0, "ai": 0}
	out := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		switch m.Type {
		case models.MessageTypeGeneral:
			counts["general"]++
		case models.MessageTypeAI:
			counts["ai"]++
		}
		out = append(out, map[string]any{"role": string(m.Role), "content": m.Content})
	}

	payload, err := json.Marshal(map[string]any{"counts": counts, "messages": out})
	if err != nil {
		return &providers.ToolResult{Content: fmt.Sprintf("marshal failed: %v", err), IsError: true}, nil
	}
	return &providers.ToolResult{Content: string(payload)}, nil
}
