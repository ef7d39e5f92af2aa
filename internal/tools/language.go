package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nexus-assistant/core/internal/providers"
	"github.com/nexus-assistant/core/internal/repository"
	"github.com/nexus-assistant/core/pkg/models"
)

// communicationLanguageKey is the preference key DETECT_LANG and this tool
// both write under models.PreferenceCommunication.
const communicationLanguageKey = "preferred_language"

// SetLanguagePreferenceTool writes a user's confirmed preferred language.
// The agent graph's DETECT_LANG node writes the same preference after
// high-confidence automatic detection; this tool is the explicit,
// user-confirmable counterpart to that automatic path.
type SetLanguagePreferenceTool struct {
	store  repository.PreferenceStore
	userID int64
}

// NewSetLanguagePreferenceTool binds a language-preference tool to store for
// userID.
func NewSetLanguagePreferenceTool(store repository.PreferenceStore, userID int64) *SetLanguagePreferenceTool {
	return &SetLanguagePreferenceTool{store: store, userID: userID}
}

func (t *SetLanguagePreferenceTool) Name() string { return "set_language_preference" }

func (t *SetLanguagePreferenceTool) Description() string {
	return "Record the user's confirmed preferred language for future responses."
}

func (t *SetLanguagePreferenceTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"language": {"type": "string", "description": "The language the user prefers"},
			"confirmed": {"type": "boolean", "description": "Whether the user has confirmed this language, default true"}
		},
		"required": ["language"]
	}`)
}

type setLanguageParams struct {
	Language  string `json:"language"`
	Confirmed *bool  `json:"confirmed"`
}

func (t *SetLanguagePreferenceTool) Execute(ctx context.Context, params json.RawMessage) (*providers.ToolResult, error) {
	var p setLanguageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return &providers.ToolResult{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}
	if p.Language == "" {
		return &providers.ToolResult{Content: "language is required", IsError: true}, nil
	}
	confirmed := true
	if p.Confirmed != nil {
		confirmed = *p.Confirmed
	}
	if !confirmed {
		return &providers.ToolResult{Content: `{"status":"pending","message":"language change not confirmed"}`}, nil
	}

	pref := models.UserPreference{
		UserID:     t.userID,
		Type:       models.PreferenceCommunication,
		Key:        communicationLanguageKey,
		Value:      p.Language,
		Confidence: 1.0,
	}
	if err := t.store.SetPreference(ctx, pref); err != nil {
		return &providers.ToolResult{Content: fmt.Sprintf("set failed: %v", err), IsError: true}, nil
	}
	return &providers.ToolResult{Content: fmt.Sprintf(`{"status":"success","message":"preferred language set to %s"}`, p.Language)}, nil
}
