package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nexus-assistant/core/internal/crypto"
	"github.com/nexus-assistant/core/internal/providers"
	"github.com/nexus-assistant/core/internal/repository"
	"github.com/nexus-assistant/core/pkg/models"
)

// PreferenceTool wraps repository.PreferenceStore, transparently encrypting
// and decrypting sensitive preference types with the caller's key. One
// instance is bound to a single user for the lifetime of a turn, same as
// RecallTool — the registry is process-wide but the tools it holds close
// over per-user state.
type PreferenceTool struct {
	store  repository.PreferenceStore
	key    crypto.Key
	userID int64
}

// NewPreferenceTool binds a preference tool to store for userID, using key to
// encrypt/decrypt sensitive preference values.
func NewPreferenceTool(store repository.PreferenceStore, key crypto.Key, userID int64) *PreferenceTool {
	return &PreferenceTool{store: store, key: key, userID: userID}
}

func (t *PreferenceTool) Name() string { return "user_preference" }

func (t *PreferenceTool) Description() string {
	return "Get, set, or delete a stored user preference. Sensitive preference types are encrypted at rest."
}

func (t *PreferenceTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {"type": "string", "description": "One of get, set, delete"},
			"user_id": {"type": "integer", "description": "ID of the user"},
			"preference_type": {"type": "string", "description": "Preference type, e.g. personal_info, communication"},
			"preference_key": {"type": "string", "description": "Preference key within the type"},
			"preference_value": {"type": "string", "description": "Value to set (action=set only)"},
			"confidence": {"type": "number", "description": "Confidence in [0,1], default 1.0"}
		},
		"required": ["action", "user_id"]
	}`)
}

type preferenceParams struct {
	Action          string   `json:"action"`
	UserID          int64    `json:"user_id"`
	PreferenceType  *string  `json:"preference_type"`
	PreferenceKey   *string  `json:"preference_key"`
	PreferenceValue any      `json:"preference_value"`
	Confidence      *float64 `json:"confidence"`
}

func (t *PreferenceTool) Execute(ctx context.Context, params json.RawMessage) (*providers.ToolResult, error) {
	var p preferenceParams
	if err := json.Unmarshal(params, &p); err != nil {
		return &providers.ToolResult{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}

	switch p.Action {
	case "get":
		return t.get(ctx, p)
	case "set":
		return t.set(ctx, p)
	case "delete":
		return t.delete(ctx, p)
	default:
		return &providers.ToolResult{Content: fmt.Sprintf("unknown action %q; expected get, set, or delete", p.Action), IsError: true}, nil
	}
}

func (t *PreferenceTool) get(ctx context.Context, p preferenceParams) (*providers.ToolResult, error) {
	var typ *models.PreferenceType
	if p.PreferenceType != nil {
		pt := models.PreferenceType(*p.PreferenceType)
		typ = &pt
	}
	prefs, err := t.store.GetPreferences(ctx, p.UserID, typ)
	if err != nil {
		return &providers.ToolResult{Content: fmt.Sprintf("get failed: %v", err), IsError: true}, nil
	}

	out := make(map[string]any, len(prefs))
	for k, pref := range prefs {
		value := pref.Value
		if pref.Type.IsSensitive() {
			value = t.decryptValue(pref.Value)
		}
		out[k] = value
	}

	payload, err := json.Marshal(map[string]any{"status": "success", "preferences": out, "total": len(out)})
	if err != nil {
		return &providers.ToolResult{Content: fmt.Sprintf("marshal failed: %v", err), IsError: true}, nil
	}
	return &providers.ToolResult{Content: string(payload)}, nil
}

func (t *PreferenceTool) set(ctx context.Context, p preferenceParams) (*providers.ToolResult, error) {
	if p.PreferenceType == nil || p.PreferenceKey == nil {
		return &providers.ToolResult{Content: "set requires preference_type and preference_key", IsError: true}, nil
	}
	confidence := 1.0
	if p.Confidence != nil {
		confidence = *p.Confidence
	}

	typ := models.PreferenceType(*p.PreferenceType)
	value := p.PreferenceValue
	if typ.IsSensitive() {
		encrypted, err := t.encryptValue(value)
		if err != nil {
			return &providers.ToolResult{Content: fmt.Sprintf("encrypt failed: %v", err), IsError: true}, nil
		}
		value = encrypted
	}

	pref := models.UserPreference{
		UserID:     p.UserID,
		Type:       typ,
		Key:        *p.PreferenceKey,
		Value:      value,
		Confidence: confidence,
	}
	if err := t.store.SetPreference(ctx, pref); err != nil {
		return &providers.ToolResult{Content: fmt.Sprintf("set failed: %v", err), IsError: true}, nil
	}
	return &providers.ToolResult{Content: `{"status":"success","message":"preference saved"}`}, nil
}

func (t *PreferenceTool) delete(ctx context.Context, p preferenceParams) (*providers.ToolResult, error) {
	var typ *models.PreferenceType
	if p.PreferenceType != nil {
		pt := models.PreferenceType(*p.PreferenceType)
		typ = &pt
	}
	if err := t.store.DeletePreference(ctx, p.UserID, typ, p.PreferenceKey); err != nil {
		return &providers.ToolResult{Content: fmt.Sprintf("delete failed: %v", err), IsError: true}, nil
	}
	return &providers.ToolResult{Content: `{"status":"success","message":"preference deleted"}`}, nil
}

// encryptValue seals value (marshalled to JSON first, so any JSON-able type
// round-trips) under the tool's bound key, encoded as a base64-ish tagged
// string via the crypto package.
func (t *PreferenceTool) encryptValue(value any) (string, error) {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return crypto.Encrypt(t.key, plaintext)
}

// decryptValue reverses encryptValue. On failure (e.g. the value wasn't
// actually encrypted, a legacy row), the raw value is returned unchanged
// rather than surfacing a decrypt error to the LLM.
func (t *PreferenceTool) decryptValue(raw any) any {
	s, ok := raw.(string)
	if !ok || !crypto.IsEncrypted(s) {
		return raw
	}
	plaintext, err := crypto.Decrypt(t.key, s)
	if err != nil {
		return raw
	}
	var value any
	if err := json.Unmarshal(plaintext, &value); err != nil {
		return raw
	}
	return value
}
