// Package tools implements the tool registry and runtime (C5): registering
// named tools, converting them into provider-dialect descriptors, and
// dispatching calls with argument validation and result formatting. The
// registry is a thread-safe name-to-Tool map; provider-dialect conversion
// lives in internal/providers/toolconv.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/nexus-assistant/core/internal/providers"
	"github.com/nexus-assistant/core/pkg/models"
)

// Registry holds the set of tools available to the agent graph, keyed by
// canonical name. It is safe for concurrent registration and lookup; a
// single process-wide Registry is shared across all users (tools carry no
// per-user state of their own — state lives in what they're constructed
// with, e.g. a memory.Manager bound to one user by the caller).
type Registry struct {
	mu    sync.RWMutex
	tools map[string]providers.Tool
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]providers.Tool)}
}

// Register adds tool under its own Name(). Registering a name twice replaces
// the prior registration.
func (r *Registry) Register(tool providers.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Unregister removes a tool by name. A no-op if the name isn't registered.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns the tool registered under name, if any.
func (r *Registry) Get(name string) (providers.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// AsLLMTools returns every registered tool as a providers.Tool slice, the
// shape CompletionRequest.Tools and the toolconv adapters expect.
func (r *Registry) AsLLMTools() []providers.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]providers.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// ExecuteAll runs the dispatch algorithm over an ordered list of tool calls,
// returning one ToolResult per call in the same order. Unknown tools and
// validation failures become error results rather than aborting the batch.
func (r *Registry) ExecuteAll(ctx context.Context, calls []models.ToolCall) []models.ToolResult {
	results := make([]models.ToolResult, 0, len(calls))
	for _, c := range calls {
		result := r.Execute(ctx, c.Name, c.Arguments)
		result.ToolCallID = c.ID
		results = append(results, result)
	}
	return results
}

// ExecuteRaw runs tool dispatch (resolve, validate, invoke) without the
// output-formatting step Execute applies, returning the tool's own
// providers.ToolResult so a caller that needs the tool's structured payload
// (rather than the LLM-facing rendered string) can decode it directly. Used
// internally for the skill_evaluator bookkeeping call; agent-graph tool
// calls driven by the LLM always go through Execute/ExecuteAll instead.
func (r *Registry) ExecuteRaw(ctx context.Context, name string, arguments map[string]any) (*providers.ToolResult, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("tool %q not found", name)
	}
	params, err := json.Marshal(arguments)
	if err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if err := ValidateSchema(tool.Schema(), arguments); err != nil {
		return nil, err
	}
	return r.safeExecute(ctx, tool, params)
}

// Execute runs the dispatch algorithm for one tool call:
//  1. resolve the tool by (already canonicalized) name — unknown name is a
//     ToolResult error, never a Go error;
//  2. validate arguments against the tool's schema;
//  3. run the tool, recovering from panics as a ToolResult error;
//  4. format the result through the output formatter and bound its length.
func (r *Registry) Execute(ctx context.Context, name string, arguments map[string]any) (result models.ToolResult) {
	tool, ok := r.Get(name)
	if !ok {
		return errorResult(name, fmt.Sprintf("Tool '%s' not found; available: %s", name, r.availableNames()))
	}

	params, err := json.Marshal(arguments)
	if err != nil {
		return errorResult(name, fmt.Sprintf("invalid arguments: %v", err))
	}

	if err := ValidateSchema(tool.Schema(), arguments); err != nil {
		return errorResult(name, err.Error())
	}

	raw, execErr := r.safeExecute(ctx, tool, params)
	if execErr != nil {
		return errorResult(name, execErr.Error())
	}

	return models.ToolResult{
		Name:    name,
		Content: FormatResult(name, decodeContent(raw.Content)),
		IsError: raw.IsError,
	}
}

// decodeContent lets a tool return a structured payload (a JSON object or
// array) as its Content string while still letting FormatResult render it
// per-field instead of as an opaque blob. Content that isn't valid JSON, or
// that decodes to a JSON scalar, is passed through unchanged as a string.
func decodeContent(content string) any {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return content
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return content
	}
	return decoded
}

func (r *Registry) safeExecute(ctx context.Context, tool providers.Tool, params json.RawMessage) (res *providers.ToolResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tool panicked: %v", p)
		}
	}()
	return tool.Execute(ctx, params)
}

func errorResult(name, message string) models.ToolResult {
	return models.ToolResult{Name: name, Content: message, IsError: true}
}

func (r *Registry) availableNames() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return fmt.Sprint(names)
}
