package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexus-assistant/core/internal/crypto"
	"github.com/nexus-assistant/core/internal/memory"
	"github.com/nexus-assistant/core/internal/providers"
	"github.com/nexus-assistant/core/internal/repository/memstore"
	"github.com/nexus-assistant/core/pkg/models"
)

type echoTool struct{ name string }

func (e *echoTool) Name() string        { return e.name }
func (e *echoTool) Description() string { return "echoes its input" }
func (e *echoTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"x":{"type":"string"}},"required":["x"]}`)
}
func (e *echoTool) Execute(_ context.Context, params json.RawMessage) (*providers.ToolResult, error) {
	return &providers.ToolResult{Content: string(params)}, nil
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	result := r.Execute(context.Background(), "nonexistent", nil)
	require.True(t, result.IsError)
	require.Contains(t, result.Content.(string), "not found")
}

func TestRegistryExecuteAllPreservesOrderAndIDs(t *testing.T) {
	r := NewRegistry()
	r.Register(&echoTool{name: "a"})
	r.Register(&echoTool{name: "b"})

	calls := []models.ToolCall{
		{ID: "1", Name: "a", Arguments: map[string]any{"x": "hi"}},
		{ID: "2", Name: "missing", Arguments: nil},
		{ID: "3", Name: "b", Arguments: map[string]any{"x": "yo"}},
	}
	results := r.ExecuteAll(context.Background(), calls)
	require.Len(t, results, 3)
	require.Equal(t, "1", results[0].ToolCallID)
	require.False(t, results[0].IsError)
	require.Equal(t, "2", results[1].ToolCallID)
	require.True(t, results[1].IsError)
	require.Equal(t, "3", results[2].ToolCallID)
	require.False(t, results[2].IsError)
}

func TestRegistryExecuteValidatesRequiredArgument(t *testing.T) {
	r := NewRegistry()
	r.Register(&echoTool{name: "a"})
	result := r.Execute(context.Background(), "a", map[string]any{})
	require.True(t, result.IsError)
}

func TestRecallToolReturnsCountsAndMessages(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	key, err := crypto.NewKey()
	require.NoError(t, err)
	mgr := memory.New(store, 1, key)
	require.NoError(t, mgr.Append(ctx, models.Message{Role: models.RoleUser, Content: "hello"}, models.MessageTypeGeneral))
	require.NoError(t, mgr.Append(ctx, models.Message{Role: models.RoleAssistant, Content: "hi there"}, models.MessageTypeAI))

	tool := NewRecallTool(mgr, 1)
	raw, err := tool.Execute(ctx, json.RawMessage(`{"user_id":1,"limit":10}`))
	require.NoError(t, err)
	require.False(t, raw.IsError)

	r := NewRegistry()
	r.Register(tool)
	result := r.Execute(ctx, "recall_last_conversation", map[string]any{"user_id": float64(1), "limit": float64(10)})
	require.False(t, result.IsError)
	require.Contains(t, result.Content.(string), "hello")
}

func TestSkillEvaluatorIncrementsOnKeywordMatch(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	tool := NewSkillEvaluatorTool(store, 42)

	params := json.RawMessage(`{"user_id":42,"message":"I understand how you feel, that must be hard."}`)
	raw, err := tool.Execute(ctx, params)
	require.NoError(t, err)
	require.False(t, raw.IsError)

	level, err := store.GetSkillLevel(ctx, 42, "empathy")
	require.NoError(t, err)
	require.Equal(t, 1, level)
}

func TestSkillEvaluatorCapsAtMax(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.SetSkillLevel(ctx, 7, "empathy", maxSkillLevel))
	tool := NewSkillEvaluatorTool(store, 7)

	_, err := tool.Execute(ctx, json.RawMessage(`{"user_id":7,"message":"i understand how you feel"}`))
	require.NoError(t, err)

	level, err := store.GetSkillLevel(ctx, 7, "empathy")
	require.NoError(t, err)
	require.Equal(t, maxSkillLevel, level)
}

func TestSkillEvaluatorRejectsBothMessageAndMessages(t *testing.T) {
	tool := NewSkillEvaluatorTool(memstore.New(), 1)
	raw, err := tool.Execute(context.Background(), json.RawMessage(`{"user_id":1,"message":"hi","messages":["a"]}`))
	require.NoError(t, err)
	require.True(t, raw.IsError)
}

func TestLifeEventAddGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	tool := NewLifeEventTool(store, 5)

	raw, err := tool.Execute(ctx, json.RawMessage(`{"action":"add","user_id":5,"description":"started a new job","category":"career"}`))
	require.NoError(t, err)
	require.False(t, raw.IsError)

	events, err := store.ListLifeEvents(ctx, 5)
	require.NoError(t, err)
	require.Len(t, events, 1)

	id := events[0].ID
	raw, err = tool.Execute(ctx, json.RawMessage(`{"action":"update","user_id":5,"event_id":"`+id+`","description":"changed jobs again"}`))
	require.NoError(t, err)
	require.False(t, raw.IsError)

	updated, err := store.GetLifeEvent(ctx, 5, id)
	require.NoError(t, err)
	require.Equal(t, "changed jobs again", updated.Description)

	raw, err = tool.Execute(ctx, json.RawMessage(`{"action":"delete","user_id":5,"event_id":"`+id+`"}`))
	require.NoError(t, err)
	require.False(t, raw.IsError)

	_, err = store.GetLifeEvent(ctx, 5, id)
	require.Error(t, err)
}

func TestClarifyCommunicationDetectsEmpathyIssue(t *testing.T) {
	tool := NewClarifyCommunicationTool()
	raw, err := tool.Execute(context.Background(), json.RawMessage(`{"text":"whatever, i don't care about your problem","target_language":"english"}`))
	require.NoError(t, err)
	require.False(t, raw.IsError)
	require.Contains(t, raw.Content, `"EMPATHY_ISSUE_DETECTED":true`)
}

func TestClarifyCommunicationDefaultsTargetLanguage(t *testing.T) {
	tool := NewClarifyCommunicationTool()
	raw, err := tool.Execute(context.Background(), json.RawMessage(`{"text":"hello there"}`))
	require.NoError(t, err)
	require.False(t, raw.IsError)
	require.Contains(t, raw.Content, `"EMPATHY_ISSUE_DETECTED":false`)
}

func TestSetLanguagePreferenceWritesPreference(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	tool := NewSetLanguagePreferenceTool(store, 9)

	raw, err := tool.Execute(ctx, json.RawMessage(`{"language":"Spanish"}`))
	require.NoError(t, err)
	require.False(t, raw.IsError)

	prefs, err := store.GetPreferences(ctx, 9, nil)
	require.NoError(t, err)
	pref, ok := prefs[string(models.PreferenceCommunication)+"|"+communicationLanguageKey]
	require.True(t, ok)
	require.Equal(t, "Spanish", pref.Value)
}

func TestSetLanguagePreferenceUnconfirmedDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	tool := NewSetLanguagePreferenceTool(store, 9)

	raw, err := tool.Execute(ctx, json.RawMessage(`{"language":"Spanish","confirmed":false}`))
	require.NoError(t, err)
	require.False(t, raw.IsError)

	prefs, err := store.GetPreferences(ctx, 9, nil)
	require.NoError(t, err)
	require.Empty(t, prefs)
}

func TestUserPreferenceSetAndGetRoundTripsSensitiveValue(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	key, err := crypto.NewKey()
	require.NoError(t, err)
	tool := NewPreferenceTool(store, key, 3)

	setParams := json.RawMessage(`{"action":"set","user_id":3,"preference_type":"personal_info","preference_key":"nickname","preference_value":"Robin"}`)
	raw, err := tool.Execute(ctx, setParams)
	require.NoError(t, err)
	require.False(t, raw.IsError)

	stored, err := store.GetPreferences(ctx, 3, nil)
	require.NoError(t, err)
	pref := stored["personal_info|nickname"]
	require.NotEqual(t, "Robin", pref.Value) // stored ciphertext, not plaintext

	getParams := json.RawMessage(`{"action":"get","user_id":3}`)
	raw, err = tool.Execute(ctx, getParams)
	require.NoError(t, err)
	require.False(t, raw.IsError)
	require.Contains(t, raw.Content, "Robin")
}

func TestFormatOutputToolRendersGenericDict(t *testing.T) {
	tool := NewFormatOutputTool()
	raw, err := tool.Execute(context.Background(), json.RawMessage(`{"data":{"a":1,"b":2}}`))
	require.NoError(t, err)
	require.False(t, raw.IsError)
	require.NotEmpty(t, raw.Content)
}
