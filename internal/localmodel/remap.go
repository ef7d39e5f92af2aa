package localmodel

import "strings"

// toolNameAliases maps the tool names local models hallucinate or abbreviate
// onto the canonical registry names, carried over verbatim from the original
// Python source's remapping table.
var toolNameAliases = map[string]string{
	"get_weather":         "web_search",
	"weather":             "web_search",
	"search":              "web_search",
	"tavily_search":       "web_search",
	"google_search":       "web_search",
	"get_news":            "web_search",
	"get_conversation":    "recall_last_conversation",
	"recall_conversation": "recall_last_conversation",
	"get_memory":          "recall_last_conversation",
	"remember":            "recall_last_conversation",
	"translate":           "clarify_communication",
	"clarify":             "clarify_communication",
	"get_preference":      "user_preference",
	"get_user_preference": "user_preference",
	"set_preference":      "user_preference",
	"evaluate_skill":      "skill_evaluator",
	"check_skill":         "skill_evaluator",
	"set_language":        "set_language_preference",
	"language":            "set_language_preference",
	"format":              "format_output",
	"event":               "life_event",
	"add_event":           "life_event",
}

// CanonicalToolName resolves name through the alias table, returning it
// unchanged if it already is (or has no known alias to) a canonical name.
func CanonicalToolName(name string) string {
	if canonical, ok := toolNameAliases[name]; ok {
		return canonical
	}
	return name
}

// weatherHints are substrings in a web_search query that indicate it is
// actually a weather lookup, triggering location-folding in RemapArguments.
var weatherHints = []string{"weather", "temperature", "forecast"}

// RemapArguments adapts a raw tool call's arguments to the canonical tool's
// expected argument shape. canonicalName must already be the resolved name
// (see CanonicalToolName).
func RemapArguments(canonicalName string, args map[string]any) map[string]any {
	if args == nil {
		args = map[string]any{}
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}

	switch canonicalName {
	case "web_search":
		remapWebSearchArgs(out)
	case "clarify_communication":
		remapEnglishOverride(out)
	case "set_language_preference":
		remapEnglishOverride(out)
	}
	return out
}

// remapWebSearchArgs folds a bare "location" argument into "query" with a
// "weather in" prefix when the query looks like a weather request, matching
// how local models emit get_weather({location: "..."}) calls.
func remapWebSearchArgs(args map[string]any) {
	location, hasLocation := args["location"].(string)
	query, hasQuery := args["query"].(string)

	if hasLocation && !hasQuery {
		args["query"] = "weather in " + location
		delete(args, "location")
		return
	}
	if hasQuery && isWeatherLike(query) && hasLocation {
		args["query"] = "weather in " + location
		delete(args, "location")
	}
}

func isWeatherLike(query string) bool {
	lower := strings.ToLower(query)
	for _, hint := range weatherHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// remapEnglishOverride forces target_language to "english" when the call
// carries no explicit language argument, matching the original source's
// default-to-English behavior for clarify/translate/language tool calls.
func remapEnglishOverride(args map[string]any) {
	if _, ok := args["target_language"]; ok {
		return
	}
	if _, ok := args["language"]; ok {
		return
	}
	args["target_language"] = "english"
}
