package agentgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nexus-assistant/core/internal/agenterr"
	"github.com/nexus-assistant/core/internal/localmodel"
	"github.com/nexus-assistant/core/internal/memory"
	"github.com/nexus-assistant/core/internal/providers"
	"github.com/nexus-assistant/core/internal/tools"
	"github.com/nexus-assistant/core/internal/training"
	"github.com/nexus-assistant/core/internal/usage"
	"github.com/nexus-assistant/core/pkg/models"
)

const preferredLanguageKey = "preferred_language"

// turn carries the state variables of one agent-graph run:
// the growing message sequence, the active provider preference, the tool
// loop depth, and the last LLM response/tool results.
type turn struct {
	svc            *Service
	principal      models.Principal
	providerPref   string
	conversationID string
	manager        *memory.Manager
	tracker        *training.Tracker
	registry       *tools.Registry

	language      string
	toolsUsed     map[string]struct{}
	toolLoopDepth int
}

// execute runs the full node sequence for one inbound message and returns
// the ChatResult, or an error for a condition the caller (Service.Chat)
// must translate into a well-formed failure.
func (t *turn) execute(ctx context.Context, text string) (ChatResult, error) {
	cfg := t.svc.cfg

	userMsg := models.Message{
		Role:      models.RoleUser,
		Content:   text,
		Type:      models.MessageTypeGeneral,
		UserID:    t.principal.ID,
		Timestamp: time.Now().UTC(),
	}

	lang, ok, err := t.detectLang(ctx)
	if err != nil {
		return ChatResult{}, err
	}
	t.language = lang
	if !ok {
		question := fmt.Sprintf("I want to make sure I reply in the right language. Could you confirm: %s?", lang)
		if err := t.persist(ctx, userMsg, []models.Message{assistantMessage(t.principal.ID, question)}); err != nil {
			return ChatResult{}, err
		}
		return ChatResult{ResponseText: question, ConversationID: t.conversationID, ToolsUsed: nil}, nil
	}

	recalled, err := t.manager.Recall(ctx, cfg.RecallWindow, nil)
	if err != nil {
		return ChatResult{}, fmt.Errorf("agentgraph: recall: %w", err)
	}
	plan, err := t.manager.TrainingPlan(ctx)
	if err != nil {
		return ChatResult{}, fmt.Errorf("agentgraph: training plan: %w", err)
	}

	conv := []providers.CompletionMessage{{Role: "user", Content: text}}
	produced := []models.Message{userMsg}

	modelHint := t.providerPref
	var finalContent string
	var usage *models.Usage

	for {
		if ctx.Err() != nil {
			return ChatResult{}, agenterr.ErrCancelled
		}
		if t.toolLoopDepth > cfg.RecursionCap {
			finalContent = "I've reached my limit of steps for this request. Here's what I have so far."
			t.recordToolLoopIteration("recursion_cap")
			t.svc.observer.OnAnomaly("recursion_cap", map[string]any{"user_id": t.principal.ID, "depth": t.toolLoopDepth})
			break
		}
		t.recordToolLoopIteration("continued")

		system := t.assembleSystemPrompt(recalled, plan, modelHint)
		req := &providers.CompletionRequest{
			System:    system,
			Messages:  conv,
			Tools:     t.registry.AsLLMTools(),
			Model:     cfg.SystemModel,
			MaxTokens: cfg.MaxTokens,
		}

		resp, err := t.llmCall(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return ChatResult{}, agenterr.ErrCancelled
			}
			finalContent = fallbackMessage(t.language, err)
			break
		}
		usage = resp.Usage
		modelHint = firstNonEmpty(resp.Model, modelHint)

		t.normalize(resp, conv)

		if len(resp.ToolCalls) == 0 {
			finalContent = resp.Content
			break
		}

		t.toolLoopDepth++
		if t.toolLoopDepth > cfg.RecursionCap {
			finalContent = "I've reached my limit of steps for this request. Here's what I have so far."
			break
		}

		conv = append(conv, providers.CompletionMessage{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})

		toolCtx, cancel := context.WithTimeout(ctx, cfg.ToolTimeout)
		handle := t.svc.observer.OnOperationStart("tool_dispatch", map[string]any{"user_id": t.principal.ID, "call_count": len(resp.ToolCalls)})
		toolStart := time.Now()
		results := t.registry.ExecuteAll(toolCtx, resp.ToolCalls)
		toolDuration := time.Since(toolStart).Seconds()
		cancel()
		t.svc.observer.OnOperationEnd(handle, nil)

		conv = append(conv, providers.CompletionMessage{Role: "tool", ToolResults: results})
		for _, r := range results {
			t.toolsUsed[r.Name] = struct{}{}
			t.recordToolExecution(r, toolDuration)
			produced = append(produced, models.Message{
				Role:       models.RoleTool,
				Content:    formattedContent(r), // Registry.Execute already ran FormatResult
				Type:       models.MessageTypeGeneral,
				UserID:     t.principal.ID,
				ToolName:   r.Name,
				ToolCallID: r.ToolCallID,
				Timestamp:  time.Now().UTC(),
			})
		}
	}

	produced = append(produced, assistantMessage(t.principal.ID, finalContent))
	if err := t.persist(ctx, userMsg, produced[1:]); err != nil {
		return ChatResult{}, err
	}

	toolNames := make([]string, 0, len(t.toolsUsed))
	for name := range t.toolsUsed {
		toolNames = append(toolNames, name)
	}

	metrics := Metrics{ToolCallCount: len(toolNames), ToolLoopDepth: t.toolLoopDepth}
	if usage != nil {
		metrics.PromptTokens = usage.PromptTokens
		metrics.CompletionTokens = usage.CompletionTokens
	}

	return ChatResult{
		ResponseText:   finalContent,
		ConversationID: t.conversationID,
		ToolsUsed:      toolNames,
		Metrics:        metrics,
	}, nil
}

// llmCall is the LLM_CALL node: it asks the multiplexer for a completion,
// bounding the call with the configured outer timeout unless the parent
// context is already the one that expires.
func (t *turn) llmCall(ctx context.Context, req *providers.CompletionRequest) (*models.LLMResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.svc.cfg.LLMTimeout)
	defer cancel()

	handle := t.svc.observer.OnOperationStart("llm_call", map[string]any{"user_id": t.principal.ID, "provider_pref": t.providerPref})
	start := time.Now()
	resp, err := t.svc.mux.Complete(callCtx, req, t.providerPref)
	duration := time.Since(start).Seconds()
	t.svc.observer.OnOperationEnd(handle, err)

	if t.svc.metrics == nil {
		return resp, err
	}
	provider, model := t.providerPref, req.Model
	if err != nil {
		t.svc.metrics.RecordLLMRequest(provider, model, "error", duration, 0, 0)
		return resp, err
	}
	model = firstNonEmpty(resp.Model, model)
	prompt, completion := 0, 0
	if resp.Usage != nil {
		prompt, completion = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	}
	t.svc.metrics.RecordLLMRequest(provider, model, "success", duration, prompt, completion)
	if resp.Usage != nil {
		t.svc.metrics.RecordContextWindow(provider, model, resp.Usage.PromptTokens+resp.Usage.CompletionTokens)
	}
	t.recordUsage(provider, model, resp.Usage)
	return resp, err
}

// recordUsage forwards one LLM_CALL's token usage to the attached
// usage.Tracker, if any, estimating cost from the configured pricing table
// and feeding it back into RecordLLMCost.
func (t *turn) recordUsage(provider, model string, u *models.Usage) {
	if t.svc.usage == nil || u == nil {
		return
	}
	rec := usage.Usage{
		InputTokens:  int64(u.PromptTokens),
		OutputTokens: int64(u.CompletionTokens),
	}
	cost := t.svc.costs[costKey(provider, model)]
	costUSD := cost.Estimate(&rec)
	t.svc.usage.Record(usage.Record{
		Provider: provider,
		Model:    model,
		UserID:   fmt.Sprintf("%d", t.principal.ID),
		Usage:    rec,
		Cost:     costUSD,
	})
	if t.svc.metrics != nil && costUSD > 0 {
		t.svc.metrics.RecordLLMCost(provider, model, costUSD)
	}
}

// recordToolExecution forwards one tool result to the attached metrics sink,
// if any, sharing duration across every result from the same dispatch round
// since Registry.ExecuteAll does not expose per-call timing.
func (t *turn) recordToolExecution(r models.ToolResult, durationSeconds float64) {
	if t.svc.metrics == nil {
		return
	}
	status := "success"
	if r.IsError {
		status = "error"
	}
	t.svc.metrics.RecordToolExecution(r.Name, status, durationSeconds)
}

// recordToolLoopIteration forwards to the attached metrics sink, if any.
func (t *turn) recordToolLoopIteration(status string) {
	if t.svc.metrics == nil {
		return
	}
	t.svc.metrics.RecordToolLoopIteration(status)
}

// normalize is the NORMALIZE node's remaining responsibility once the
// multiplexer has already applied §4.6 artifact stripping for local-family
// providers: the empty-response predicate plus a 3-message tool-result
// lookback.
func (t *turn) normalize(resp *models.LLMResponse, conv []providers.CompletionMessage) {
	if len(resp.ToolCalls) > 0 {
		return
	}
	if !localmodel.IsEmptyResponse(resp.Content) {
		return
	}
	t.svc.observer.OnAnomaly("empty_llm_response", map[string]any{"user_id": t.principal.ID})

	lookback := 3
	start := len(conv) - lookback
	if start < 0 {
		start = 0
	}
	for i := len(conv) - 1; i >= start; i-- {
		results := conv[i].ToolResults
		if len(results) == 0 {
			continue
		}
		last := results[len(results)-1]
		resp.Content = fmt.Sprintf("Based on the %s results:\n\n%s", last.Name, formattedContent(last))
		return
	}
	resp.Content = fallbackMessage(t.language, nil)
}

// langDetection is the shape the language-detector LLM call is asked to
// produce.
type langDetection struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// detectLang is the DETECT_LANG node. It is skipped (returning the stored
// preference) once the user already has a preferred_language preference.
func (t *turn) detectLang(ctx context.Context) (string, bool, error) {
	stored, err := t.svc.repo.GetPreferences(ctx, t.principal.ID, prefPtr(models.PreferenceCommunication))
	if err != nil {
		return "", false, fmt.Errorf("agentgraph: get language preference: %w", err)
	}
	if pref, ok := stored[string(models.PreferenceCommunication)+"|"+preferredLanguageKey]; ok {
		if lang, ok := pref.Value.(string); ok && lang != "" {
			return lang, true, nil
		}
	}

	detection, err := t.runLanguageDetector(ctx)
	if err != nil || detection.Language == "" {
		return "english", false, nil
	}
	if detection.Confidence >= t.svc.cfg.LanguageConfidence {
		if err := t.svc.repo.SetPreference(ctx, models.UserPreference{
			UserID:     t.principal.ID,
			Type:       models.PreferenceCommunication,
			Key:        preferredLanguageKey,
			Value:      detection.Language,
			Confidence: detection.Confidence,
		}); err != nil {
			return "", false, fmt.Errorf("agentgraph: set language preference: %w", err)
		}
		return detection.Language, true, nil
	}
	return detection.Language, false, nil
}

// runLanguageDetector issues a minimal LLM call asking for
// {language, confidence, reasoning} about the conversation's working
// language, grounded on the most recent recalled message if any exists.
func (t *turn) runLanguageDetector(ctx context.Context) (langDetection, error) {
	recent, err := t.manager.Recall(ctx, 1, nil)
	if err != nil {
		return langDetection{}, err
	}
	sample := "the user's most recent message"
	if len(recent) > 0 {
		sample = recent[len(recent)-1].Content
	}

	req := &providers.CompletionRequest{
		System: "Identify the language of the following text. Respond with strict JSON only: " +
			`{"language": "<name>", "confidence": <0..1>, "reasoning": "<short>"}.`,
		Messages:  []providers.CompletionMessage{{Role: "user", Content: sample}},
		MaxTokens: 200,
	}
	callCtx, cancel := context.WithTimeout(ctx, t.svc.cfg.LLMTimeout)
	defer cancel()
	resp, err := t.svc.mux.Complete(callCtx, req, t.providerPref)
	if err != nil {
		return langDetection{}, err
	}
	return parseLangDetection(resp.Content), nil
}

// parseLangDetection best-effort decodes a langDetection out of an LLM
// response that is supposed to be strict JSON but, from local models in
// particular, may carry surrounding prose.
func parseLangDetection(content string) langDetection {
	var d langDetection
	if json.Unmarshal([]byte(strings.TrimSpace(content)), &d) == nil {
		return d
	}
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start >= 0 && end > start {
		_ = json.Unmarshal([]byte(content[start:end+1]), &d)
	}
	return d
}

// assembleSystemPrompt is the ASSEMBLE node. It is pure given its inputs:
// identity, language, recalled messages, training context, and the
// provider-family hint used to decide whether to prepend the MCP-style
// tool protocol block local models need spelled out explicitly.
func (t *turn) assembleSystemPrompt(recalled []models.Message, plan *models.TrainingPlan, modelHint string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are assisting %s. Respond in %s.\n", t.principal.Username, t.language)

	if len(recalled) > 0 {
		b.WriteString("\nRecent conversation context:\n")
		for _, m := range recalled {
			fmt.Fprintf(&b, "- %s: %s\n", m.Role, truncateForPrompt(m.Content))
		}
	}

	if plan != nil && len(plan.Trainings) > 0 {
		b.WriteString("\nActive trainings:\n")
		for _, dt := range training.DefaultTrainings {
			entry, ok := plan.Trainings[dt.ID]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "- %s: level %d/%d\n", entry.SkillName, entry.CurrentLevel, entry.TargetLevel)
		}
	}

	b.WriteString("\nAvailable tools:\n")
	for _, tool := range t.registry.AsLLMTools() {
		fmt.Fprintf(&b, "- %s: %s\n", tool.Name(), tool.Description())
	}

	if localmodel.IsLocalFamily(modelHint, "") {
		b.WriteString("\n" + localModelProtocolBlock)
	}

	return b.String()
}

// localModelProtocolBlock is the MCP-style block prepended for local-family
// providers, spelling out the {formatted_output, tool_calls} envelope the
// normalizer (C6) expects back.
const localModelProtocolBlock = `TOOL PROTOCOL: respond with a single JSON object.
- To answer directly: {"formatted_output": "<your reply>"}
- To call tools: {"tool_calls": [{"name": "<tool>", "arguments": {...}}]}
Do not emit both keys. Do not wrap the JSON in markdown fences.`

// persist is the PERSIST node: append the user message and every
// assistant/tool message produced this turn, flush, and run the training
// hooks (message count increment, periodic skill_evaluator invocation).
func (t *turn) persist(ctx context.Context, userMsg models.Message, produced []models.Message) error {
	if err := t.manager.Append(ctx, userMsg, models.MessageTypeGeneral); err != nil {
		return fmt.Errorf("agentgraph: persist user message: %w", err)
	}
	for _, m := range produced {
		typ := models.MessageTypeGeneral
		if m.Role == models.RoleAssistant {
			typ = models.MessageTypeAI
		}
		if err := t.manager.Append(ctx, m, typ); err != nil {
			return fmt.Errorf("agentgraph: persist message: %w", err)
		}
	}
	if err := t.manager.Flush(ctx); err != nil {
		return fmt.Errorf("agentgraph: flush: %w", err)
	}
	t.indexSemantic(ctx, append([]models.Message{userMsg}, produced...))

	if err := t.tracker.OnMessage(ctx); err != nil {
		return fmt.Errorf("agentgraph: training on_message: %w", err)
	}
	due, err := t.tracker.ShouldEvaluate(ctx)
	if err != nil {
		return fmt.Errorf("agentgraph: training should_evaluate: %w", err)
	}
	if due {
		if err := t.evaluateSkills(ctx, userMsg); err != nil {
			return fmt.Errorf("agentgraph: skill evaluation: %w", err)
		}
	}
	return nil
}

// indexSemantic feeds this turn's user/assistant messages to the attached
// semantic memory manager, if any, scoped by userID so semantic_recall can
// later find them. It only indexes plaintext content already decrypted and
// persisted this turn via the memory manager, never the encrypted blob
// itself. Indexing failures never fail the turn.
func (t *turn) indexSemantic(ctx context.Context, messages []models.Message) {
	if t.svc.semantic == nil {
		return
	}
	scopeID := fmt.Sprintf("%d", t.principal.ID)
	entries := make([]*models.MemoryEntry, 0, len(messages))
	for _, m := range messages {
		if m.Role != models.RoleUser && m.Role != models.RoleAssistant {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		entries = append(entries, &models.MemoryEntry{
			ID:        uuid.New().String(),
			ChannelID: scopeID,
			Content:   m.Content,
			Metadata:  models.MemoryMetadata{Source: "message", Role: string(m.Role)},
			CreatedAt: m.Timestamp,
			UpdatedAt: m.Timestamp,
		})
	}
	if len(entries) == 0 {
		return
	}
	if err := t.svc.semantic.Index(ctx, entries); err != nil {
		t.svc.recordError("agentgraph", "semantic_index_failed")
	}
}

// evaluateSkills invokes skill_evaluator as a tool (counted separately from
// tool_loop_depth) via ExecuteRaw, so it sees the tool's structured
// {before, after, feedback} payload rather than the LLM-facing
// formatted string Execute would return, and folds the reported levels into
// the TrainingPlan via training.OnProgress.
func (t *turn) evaluateSkills(ctx context.Context, userMsg models.Message) error {
	raw, err := t.registry.ExecuteRaw(ctx, "skill_evaluator", map[string]any{
		"user_id": t.principal.ID,
		"message": userMsg.Content,
	})
	if err != nil || raw == nil || raw.IsError {
		return nil
	}
	var payload struct {
		After map[string]int `json:"after"`
	}
	if err := json.Unmarshal([]byte(raw.Content), &payload); err != nil || len(payload.After) == 0 {
		return nil
	}
	return t.tracker.OnProgress(ctx, payload.After)
}

// assistantMessage builds a well-formed assistant Message for persistence.
func assistantMessage(userID int64, content string) models.Message {
	return models.Message{
		Role:      models.RoleAssistant,
		Content:   content,
		Type:      models.MessageTypeAI,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

// fallbackMessage is the static apology template used once every provider
// has been exhausted. Providers being exhausted means there is nothing left
// to ask for a richer apology, so unlike the NORMALIZE path's recoverable
// case this never attempts another LLM round-trip.
func fallbackMessage(language string, reason error) string {
	reasonText := "the assistant is temporarily unavailable"
	if reason != nil {
		reasonText = reason.Error()
	}
	templates := map[string]string{
		"english": "I'm sorry, I encountered an error: %s",
		"spanish": "Lo siento, encontré un error: %s",
		"french":  "Je suis désolé, une erreur s'est produite : %s",
		"german":  "Es tut mir leid, ein Fehler ist aufgetreten: %s",
	}
	tmpl, ok := templates[strings.ToLower(language)]
	if !ok {
		tmpl = templates["english"]
	}
	return fmt.Sprintf(tmpl, reasonText)
}

func prefPtr(p models.PreferenceType) *models.PreferenceType { return &p }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// formattedContent renders a ToolResult's Content for inclusion in a tool
// Message. Registry.Execute already ran it through FormatResult, so Content
// is ordinarily already a plain string; this only guards against the rare
// case of a tool bypassing the registry.
func formattedContent(r models.ToolResult) string {
	if s, ok := r.Content.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", r.Content)
}

func truncateForPrompt(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
