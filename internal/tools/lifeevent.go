package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/nexus-assistant/core/internal/datetime"
	"github.com/nexus-assistant/core/internal/providers"
	"github.com/nexus-assistant/core/internal/repository"
	"github.com/nexus-assistant/core/pkg/models"
)

// LifeEventTool is a CRUD surface over a user's personal timeline, grounded
// on the original source's LifeEventTool/LifeEventManager (add/get/update/
// delete/list/timeline actions over a DataManager-backed store).
type LifeEventTool struct {
	store  repository.LifeEventStore
	userID int64
}

// NewLifeEventTool binds a life-event tool to store for userID.
func NewLifeEventTool(store repository.LifeEventStore, userID int64) *LifeEventTool {
	return &LifeEventTool{store: store, userID: userID}
}

func (t *LifeEventTool) Name() string { return "life_event" }

func (t *LifeEventTool) Description() string {
	return "Manage and track important life events for a user: add, get, update, delete, list, or build a timeline."
}

func (t *LifeEventTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {"type": "string", "description": "One of add, get, update, delete, list, timeline"},
			"user_id": {"type": "integer", "description": "ID of the user"},
			"event_id": {"type": "string", "description": "Event ID (for get, update, delete)"},
			"description": {"type": "string", "description": "Event description (for add, update)"},
			"category": {"type": "string", "description": "Event category, e.g. birthday, job_change"},
			"occurred_at": {"type": "string", "description": "When the event occurred, RFC3339 or YYYY-MM-DD"}
		},
		"required": ["action", "user_id"]
	}`)
}

type lifeEventParams struct {
	Action      string  `json:"action"`
	UserID      int64   `json:"user_id"`
	EventID     *string `json:"event_id"`
	Description *string `json:"description"`
	Category    string  `json:"category"`
	OccurredAt  *string `json:"occurred_at"`
}

func (t *LifeEventTool) Execute(ctx context.Context, params json.RawMessage) (*providers.ToolResult, error) {
	var p lifeEventParams
	if err := json.Unmarshal(params, &p); err != nil {
		return &providers.ToolResult{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}

	switch p.Action {
	case "add":
		return t.add(ctx, p)
	case "get":
		return t.get(ctx, p)
	case "update":
		return t.update(ctx, p)
	case "delete":
		return t.delete(ctx, p)
	case "list":
		return t.list(ctx, p)
	case "timeline":
		return t.timeline(ctx, p)
	default:
		return errMsg(fmt.Sprintf("unknown action %q; expected add, get, update, delete, list, or timeline", p.Action)), nil
	}
}

func errMsg(message string) *providers.ToolResult {
	payload, _ := json.Marshal(map[string]any{"message": message})
	return &providers.ToolResult{Content: string(payload), IsError: true}
}

func okMsg(message string) *providers.ToolResult {
	payload, _ := json.Marshal(map[string]any{"message": message})
	return &providers.ToolResult{Content: string(payload)}
}

// parseOccurredAt accepts RFC3339, YYYY-MM-DD, or a bare unix timestamp via
// datetime.NormalizeTimestamp, falling back to now on anything it can't parse.
func (t *LifeEventTool) parseOccurredAt(raw *string) time.Time {
	if raw == nil || *raw == "" {
		return time.Now().UTC()
	}
	if result := datetime.NormalizeTimestamp(*raw); result != nil {
		return time.UnixMilli(result.TimestampMs).UTC()
	}
	return time.Now().UTC()
}

func (t *LifeEventTool) add(ctx context.Context, p lifeEventParams) (*providers.ToolResult, error) {
	if p.Description == nil || *p.Description == "" {
		return errMsg("add requires description"), nil
	}
	event := models.LifeEvent{
		UserID:      p.UserID,
		Description: *p.Description,
		Category:    p.Category,
		OccurredAt:  t.parseOccurredAt(p.OccurredAt),
		CreatedAt:   time.Now().UTC(),
	}
	saved, err := t.store.AddLifeEvent(ctx, event)
	if err != nil {
		return errMsg(fmt.Sprintf("add failed: %v", err)), nil
	}
	return okMsg(fmt.Sprintf("recorded event %s: %s", saved.ID, saved.Description)), nil
}

func (t *LifeEventTool) get(ctx context.Context, p lifeEventParams) (*providers.ToolResult, error) {
	if p.EventID == nil {
		return errMsg("get requires event_id"), nil
	}
	ev, err := t.store.GetLifeEvent(ctx, p.UserID, *p.EventID)
	if err != nil {
		return errMsg(fmt.Sprintf("event not found: %v", err)), nil
	}
	return okMsg(fmt.Sprintf("%s: %s (%s)", ev.ID, ev.Description, ev.OccurredAt.Format("2006-01-02"))), nil
}

func (t *LifeEventTool) update(ctx context.Context, p lifeEventParams) (*providers.ToolResult, error) {
	if p.EventID == nil || p.Description == nil {
		return errMsg("update requires event_id and description"), nil
	}
	ev, err := t.store.UpdateLifeEvent(ctx, p.UserID, *p.EventID, *p.Description)
	if err != nil {
		return errMsg(fmt.Sprintf("update failed: %v", err)), nil
	}
	return okMsg(fmt.Sprintf("updated event %s", ev.ID)), nil
}

func (t *LifeEventTool) delete(ctx context.Context, p lifeEventParams) (*providers.ToolResult, error) {
	if p.EventID == nil {
		return errMsg("delete requires event_id"), nil
	}
	if err := t.store.DeleteLifeEvent(ctx, p.UserID, *p.EventID); err != nil {
		return errMsg(fmt.Sprintf("delete failed: %v", err)), nil
	}
	return okMsg(fmt.Sprintf("deleted event %s", *p.EventID)), nil
}

func (t *LifeEventTool) list(ctx context.Context, p lifeEventParams) (*providers.ToolResult, error) {
	events, err := t.store.ListLifeEvents(ctx, p.UserID)
	if err != nil {
		return errMsg(fmt.Sprintf("list failed: %v", err)), nil
	}
	return okMsg(fmt.Sprintf("found %d events", len(events))), nil
}

func (t *LifeEventTool) timeline(ctx context.Context, p lifeEventParams) (*providers.ToolResult, error) {
	events, err := t.store.ListLifeEvents(ctx, p.UserID)
	if err != nil {
		return errMsg(fmt.Sprintf("timeline failed: %v", err)), nil
	}
	sort.Slice(events, func(i, j int) bool { return events[i].OccurredAt.Before(events[j].OccurredAt) })

	lines := make([]string, 0, len(events))
	for _, ev := range events {
		lines = append(lines, fmt.Sprintf("%s: %s", ev.OccurredAt.Format("2006-01-02"), ev.Description))
	}
	message := fmt.Sprintf("timeline with %d events generated", len(events))
	if len(lines) > 0 {
		message += "\n" + fmt.Sprint(lines)
	}
	return okMsg(message), nil
}
