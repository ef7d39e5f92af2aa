package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nexus-assistant/core/internal/providers"
	"github.com/nexus-assistant/core/internal/semanticmemory"
	"github.com/nexus-assistant/core/pkg/models"
)

// SemanticRecallTool wraps the vector-backed semanticmemory.Manager: an
// enrichment tool that finds a user's past messages by meaning rather than
// recency, layered above the encrypted per-turn recall_last_conversation
// bucket. Each user's memories are scoped by ChannelID under models.
// ScopeChannel, keyed by their userID — there is no dedicated per-user scope
// constant, so channel scope is reused for that purpose.
type SemanticRecallTool struct {
	manager *semanticmemory.Manager
	userID  int64
}

// NewSemanticRecallTool binds a semantic_recall tool to manager for the
// current turn's user. manager may be nil when semantic memory is disabled;
// Execute reports that plainly rather than erroring.
func NewSemanticRecallTool(manager *semanticmemory.Manager, userID int64) *SemanticRecallTool {
	return &SemanticRecallTool{manager: manager, userID: userID}
}

func (t *SemanticRecallTool) Name() string { return "semantic_recall" }

func (t *SemanticRecallTool) Description() string {
	return "Search this user's past messages by meaning, not just recency, returning the most relevant matches for a query."
}

func (t *SemanticRecallTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "What to search for"},
			"limit": {"type": "integer", "description": "Maximum number of matches to return (default 5)"}
		},
		"required": ["query"]
	}`)
}

type semanticRecallParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (t *SemanticRecallTool) Execute(ctx context.Context, params json.RawMessage) (*providers.ToolResult, error) {
	if t.manager == nil {
		return &providers.ToolResult{Content: "semantic memory is not enabled"}, nil
	}

	var p semanticRecallParams
	if err := json.Unmarshal(params, &p); err != nil {
		return &providers.ToolResult{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}
	if p.Limit <= 0 {
		p.Limit = 5
	}

	scopeID := fmt.Sprintf("%d", t.userID)
	resp, err := t.manager.Search(ctx, &models.SearchRequest{
		Query:   p.Query,
		Scope:   models.ScopeChannel,
		ScopeID: scopeID,
		Limit:   p.Limit,
	})
	if err != nil {
		return &providers.ToolResult{Content: fmt.Sprintf("semantic search failed: %v", err), IsError: true}, nil
	}

	out := make([]map[string]any, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, map[string]any{"content": r.Entry.Content, "score": r.Score})
	}

	payload, err := json.Marshal(map[string]any{"matches": out})
	if err != nil {
		return &providers.ToolResult{Content: fmt.Sprintf("marshal failed: %v", err), IsError: true}, nil
	}
	return &providers.ToolResult{Content: string(payload)}, nil
}
