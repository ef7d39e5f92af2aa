package tools

import (
	"fmt"
	"sort"
	"strings"
)

// MaxFormattedResultChars bounds the length of any formatted tool result
// shown to the LLM.
const MaxFormattedResultChars = 2000

// FormatResult normalizes a tool's raw Content into a human-readable string,
// keyed by tool name. Content may be a string (already formatted by the
// tool) or a structured value (map/slice) the tool returned for the
// formatter to render.
func FormatResult(toolName string, content any) string {
	var out string
	switch toolName {
	case "skill_evaluator":
		out = formatSkillEvaluation(content)
	case "web_search":
		out = formatWebSearch(content)
	case "recall_last_conversation":
		out = formatRecall(content)
	case "life_event":
		out = formatLifeEvent(content)
	case "clarify_communication":
		out = formatClarification(content)
	default:
		out = formatGeneric(content)
	}
	return truncate(out, MaxFormattedResultChars)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...[truncated]"
}

func asMap(content any) (map[string]any, bool) {
	m, ok := content.(map[string]any)
	return m, ok
}

func asSlice(content any) ([]any, bool) {
	s, ok := content.([]any)
	return s, ok
}

func formatSkillEvaluation(content any) string {
	m, ok := asMap(content)
	if !ok {
		return formatGeneric(content)
	}
	var b strings.Builder
	b.WriteString("Skill evaluation:\n")
	if before, ok := m["before"].(map[string]any); ok {
		if after, ok := m["after"].(map[string]any); ok {
			keys := sortedKeys(before)
			for _, k := range keys {
				b.WriteString(fmt.Sprintf("  %s: %v -> %v\n", k, before[k], after[k]))
			}
		}
	}
	if feedback, ok := m["feedback"].(string); ok && feedback != "" {
		b.WriteString(fmt.Sprintf("\U0001F4AC %s\n", feedback))
	}
	return strings.TrimSpace(b.String())
}

func formatWebSearch(content any) string {
	results, ok := asSlice(content)
	if !ok {
		if m, ok := asMap(content); ok {
			if r, ok := m["results"].([]any); ok {
				results = r
			}
		}
	}
	if results == nil {
		return formatGeneric(content)
	}
	var b strings.Builder
	limit := len(results)
	if limit > 3 {
		limit = 3
	}
	for i := 0; i < limit; i++ {
		item, ok := results[i].(map[string]any)
		if !ok {
			continue
		}
		title, _ := item["title"].(string)
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, title))
		if body, ok := item["content"].(string); ok {
			b.WriteString(truncate(body, 500) + "\n")
		}
	}
	return strings.TrimSpace(b.String())
}

func formatRecall(content any) string {
	m, ok := asMap(content)
	if !ok {
		return formatGeneric(content)
	}
	var b strings.Builder
	if counts, ok := m["counts"].(map[string]any); ok {
		b.WriteString("Memory counts: ")
		keys := sortedKeys(counts)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, counts[k]))
		}
		b.WriteString(strings.Join(parts, ", ") + "\n")
	}
	if msgs, ok := m["messages"].([]any); ok {
		for _, raw := range msgs {
			if mm, ok := raw.(map[string]any); ok {
				role, _ := mm["role"].(string)
				text, _ := mm["content"].(string)
				b.WriteString(fmt.Sprintf("- %s: %s\n", role, text))
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func formatLifeEvent(content any) string {
	m, ok := asMap(content)
	if !ok {
		return formatGeneric(content)
	}
	if msg, ok := m["message"].(string); ok {
		return msg
	}
	return formatGeneric(content)
}

func formatClarification(content any) string {
	m, ok := asMap(content)
	if !ok {
		return formatGeneric(content)
	}
	analysis, _ := m["coaching_analysis"].(string)
	if detected, _ := m["EMPATHY_ISSUE_DETECTED"].(bool); detected {
		return "⚠️ Communication concern detected: " + analysis
	}
	return analysis
}

func formatGeneric(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case map[string]any:
		keys := sortedKeys(v)
		if len(keys) > 5 {
			keys = keys[:5]
		}
		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("%s: %v", k, v[k]))
		}
		return strings.Join(lines, "\n")
	case []any:
		items := v
		if len(items) > 5 {
			items = items[:5]
		}
		lines := make([]string, 0, len(items))
		for _, item := range items {
			lines = append(lines, fmt.Sprintf("%v", item))
		}
		return strings.Join(lines, "\n")
	default:
		return fmt.Sprintf("%v", v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
