package localmodel

import (
	"fmt"
	"strings"

	"github.com/nexus-assistant/core/pkg/models"
)

// emptyResponses is the exact set of strings local models emit that count as
// "no real content", after which Normalize substitutes a fallback message
// rather than returning something the caller would show as a blank reply.
var emptyResponses = map[string]struct{}{
	"":     {},
	"```":  {},
	"\n```": {},
	"`":    {},
	"\n":   {},
	" ":    {},
	"  ":   {},
	"\t":   {},
}

// IsEmptyResponse reports whether content is one of the exact strings that
// count as an empty response from a local model, or is otherwise nothing but
// whitespace once the known artifacts are stripped.
func IsEmptyResponse(content string) bool {
	if _, ok := emptyResponses[content]; ok {
		return true
	}
	return strings.TrimSpace(content) == ""
}

// FallbackMessage is substituted whenever normalization leaves nothing
// usable behind.
const FallbackMessage = "I wasn't able to generate a response. Could you rephrase that?"

// Result is the outcome of normalizing one local-model response.
type Result struct {
	Content   string
	ToolCalls []models.ToolCall
}

// Normalize runs the full local-model response pipeline: strip chat-template
// artifacts, recover an embedded JSON tool-call envelope if present, remap
// tool names/arguments to canonical registry names, recover raw scraped
// output, and fall back to FallbackMessage if nothing usable remains.
//
// Normalize is idempotent: calling it a second time on its own output is a
// no-op, since the artifacts and envelope it strips/consumes are gone after
// the first pass.
func Normalize(raw string) Result {
	stripped := StripArtifacts(raw)

	if envelope, ok := ParseEnvelope(stripped); ok {
		if len(envelope.ToolCalls) > 0 {
			calls := make([]models.ToolCall, 0, len(envelope.ToolCalls))
			for i, tc := range envelope.ToolCalls {
				canonical := CanonicalToolName(tc.Name)
				calls = append(calls, models.ToolCall{
					ID:        fmt.Sprintf("local-%d", i),
					Name:      canonical,
					Arguments: RemapArguments(canonical, tc.Arguments),
				})
			}
			return Result{ToolCalls: calls}
		}
		if envelope.FormattedOutput != "" {
			stripped = envelope.FormattedOutput
		}
	}

	recovered := RecoverRawOutput(stripped)
	if recovered != "" {
		stripped = recovered
	}

	if IsEmptyResponse(stripped) {
		return Result{Content: FallbackMessage}
	}
	return Result{Content: stripped}
}
