// Package agentgraph implements the agent graph (C8): the state machine
// that turns one inbound user message into a persisted assistant reply.
// It is the AgentService the transport layer talks to, wiring together the
// provider multiplexer (C4), the tool registry (C5), the memory manager
// (C7), and the training tracker (C9) behind a per-user mutex. The Service
// itself stays stateless between calls; all per-turn state lives on the
// turn value Chat constructs for the duration of one run.
package agentgraph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nexus-assistant/core/internal/agenterr"
	"github.com/nexus-assistant/core/internal/crypto"
	"github.com/nexus-assistant/core/internal/memory"
	"github.com/nexus-assistant/core/internal/observability"
	"github.com/nexus-assistant/core/internal/providers"
	"github.com/nexus-assistant/core/internal/repository"
	"github.com/nexus-assistant/core/internal/semanticmemory"
	"github.com/nexus-assistant/core/internal/telemetry"
	"github.com/nexus-assistant/core/internal/tools"
	"github.com/nexus-assistant/core/internal/training"
	"github.com/nexus-assistant/core/internal/usage"
	"github.com/nexus-assistant/core/pkg/models"
)

// RecursionCap is the hard default for tool_loop_depth (spec: 50).
const RecursionCap = 50

// RecallWindow is the default number of recalled messages (N) folded into
// the assembled prompt.
const RecallWindow = 10

// DefaultLLMTimeout is the floor for an LLM_CALL's outer timeout, applied
// when a request carries no larger MaxTokens-derived budget.
const DefaultLLMTimeout = 30 * time.Second

// DefaultToolTimeout bounds one TOOLS dispatch round.
const DefaultToolTimeout = 30 * time.Second

// Config tunes the graph's limits. The zero value is not usable; build one
// with NewConfig or fill in every field.
type Config struct {
	RecursionCap       int
	RecallWindow       int
	LLMTimeout         time.Duration
	ToolTimeout        time.Duration
	LanguageConfidence float64 // threshold at which DETECT_LANG commits a preference
	SystemModel        string  // model hint passed to CompletionRequest.Model
	MaxTokens          int
}

// NewConfig returns the reference defaults for running the agent graph and
// training tracker.
func NewConfig() Config {
	return Config{
		RecursionCap:       RecursionCap,
		RecallWindow:       RecallWindow,
		LLMTimeout:         DefaultLLMTimeout,
		ToolTimeout:        DefaultToolTimeout,
		LanguageConfidence: 0.9,
		MaxTokens:          4096,
	}
}

// ChatResult is what Chat returns to the transport layer.
type ChatResult struct {
	ResponseText   string
	ConversationID string
	ToolsUsed      []string
	Metrics        Metrics
}

// Metrics carries the usage figures the transport may want to log or bill.
type Metrics struct {
	PromptTokens     int
	CompletionTokens int
	ToolCallCount    int
	ToolLoopDepth    int
}

// Service is the AgentService implementation: one per process, shared by
// every user, internally serializing per-user turns with userLocks.
//
// registry holds only the stateless, process-wide tools (web_search,
// clarify_communication, format_output, and any others with no per-user
// state). The per-user tools — recall_last_conversation, user_preference,
// life_event, set_language_preference, skill_evaluator — close over one
// user's memory.Manager/crypto.Key/userID, so Chat builds a fresh Registry
// for each turn layering them on top of the shared set (see registryFor).
type Service struct {
	repo      repository.Repository
	mux       *providers.Multiplexer
	registry  *tools.Registry
	cfg       Config
	userLocks sync.Map // int64 -> *sync.Mutex
	metrics   *observability.Metrics
	observer  telemetry.Observer
	usage     *usage.Tracker
	costs     map[string]usage.Cost // keyed by "provider:model", see costKey
	semantic  *semanticmemory.Manager
}

// costKey builds the usage/cost table key for a provider/model pair.
func costKey(provider, model string) string {
	return provider + ":" + model
}

// Option configures optional Service collaborators not required to build a
// working graph: metrics and telemetry observation.
type Option func(*Service)

// WithMetrics attaches a Prometheus metrics sink. NewMetrics registers with
// Prometheus's default registry, so callers that build more than one Service
// in a process (tests in particular) must share a single *observability.
// Metrics across them rather than calling NewMetrics per Service. Omitting
// this option leaves metrics recording as a no-op.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithObserver attaches a telemetry.Observer that sees every LLM call and
// tool-dispatch round as a named operation, plus anomalies (empty-response
// recovery, recursion-cap hits). Defaults to telemetry.NoopObserver.
func WithObserver(o telemetry.Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithUsageTracking attaches a usage.Tracker plus a provider/model pricing
// table (keyed by costKey(provider, model), in $/million tokens) so every
// successful LLM_CALL is recorded for cost and token-usage reporting (see
// Service.UsageSummary). A provider/model pair with no entry in costs
// estimates to $0 rather than being skipped. Omitting this option leaves
// usage tracking disabled.
func WithUsageTracking(tracker *usage.Tracker, costs map[string]usage.Cost) Option {
	return func(s *Service) {
		s.usage = tracker
		s.costs = costs
	}
}

// WithSemanticMemory attaches a semanticmemory.Manager so every turn's
// persisted messages are indexed for embedding-similarity search and the
// semantic_recall tool is registered in registryFor. Passing nil (the
// default, e.g. when semantic memory is disabled in config) leaves the tool
// unregistered and indexing a no-op.
func WithSemanticMemory(m *semanticmemory.Manager) Option {
	return func(s *Service) { s.semantic = m }
}

// UsageSummary returns accumulated token totals per "provider:model" key, or
// nil if usage tracking was not attached via WithUsageTracking.
func (s *Service) UsageSummary() map[string]*usage.Usage {
	if s.usage == nil {
		return nil
	}
	return s.usage.GetSummary()
}

// New constructs a Service. repo and mux are the process-wide shared
// collaborators, safe for concurrent use by every user's turn; registry
// must hold only stateless tools (see the Service doc comment) — register
// the per-user ones via registryFor instead of here. Pass WithMetrics to
// record Prometheus metrics and WithObserver to receive operation/anomaly
// callbacks; without them, turns run with metrics recording disabled and a
// no-op observer.
func New(repo repository.Repository, mux *providers.Multiplexer, registry *tools.Registry, cfg Config, opts ...Option) *Service {
	s := &Service{repo: repo, mux: mux, registry: registry, cfg: cfg, observer: telemetry.NoopObserver{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// recordError forwards to the attached metrics sink, if any.
func (s *Service) recordError(component, errorType string) {
	if s.metrics != nil {
		s.metrics.RecordError(component, errorType)
	}
}

// lockFor returns the mutex serializing agent-graph turns for userID,
// creating it on first use.
func (s *Service) lockFor(userID int64) *sync.Mutex {
	actual, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// managerFor builds a fresh memory.Manager and resolves the encryption key
// for principal, lazily provisioning the key via the Repository on first
// use. The key is also returned since the per-user tools registryFor builds
// need it directly (user_preference encrypts sensitive values with it).
func (s *Service) managerFor(ctx context.Context, principal models.Principal) (*memory.Manager, crypto.Key, error) {
	keyStr, err := s.repo.EnsureEncryptionKey(ctx, principal.ID)
	if err != nil {
		return nil, crypto.Key{}, fmt.Errorf("agentgraph: ensure encryption key: %w", err)
	}
	key, err := crypto.KeyFromString(keyStr)
	if err != nil {
		return nil, crypto.Key{}, fmt.Errorf("agentgraph: decode encryption key: %w", err)
	}
	return memory.New(s.repo, principal.ID, key), key, nil
}

// registryFor builds the Registry one turn dispatches tool calls against:
// every shared stateless tool plus a fresh instance of each per-user tool
// bound to principal, mgr, and key.
func (s *Service) registryFor(principal models.Principal, mgr *memory.Manager, key crypto.Key) *tools.Registry {
	reg := tools.NewRegistry()
	for _, t := range s.registry.AsLLMTools() {
		reg.Register(t)
	}
	reg.Register(tools.NewRecallTool(mgr, principal.ID))
	reg.Register(tools.NewPreferenceTool(s.repo, key, principal.ID))
	reg.Register(tools.NewLifeEventTool(s.repo, principal.ID))
	reg.Register(tools.NewSetLanguagePreferenceTool(s.repo, principal.ID))
	reg.Register(tools.NewSkillEvaluatorTool(s.repo, principal.ID))
	if s.semantic != nil {
		reg.Register(tools.NewSemanticRecallTool(s.semantic, principal.ID))
	}
	return reg
}

// Chat runs one full turn of the agent graph for principal's message text:
// detect language, assemble the prompt, call the LLM, normalize the
// response, dispatch any tool calls, and persist the result.
func (s *Service) Chat(ctx context.Context, principal models.Principal, text string, providerPref string, conversationID string) (ChatResult, error) {
	if principal.ID == 0 {
		return ChatResult{}, agenterr.ErrNotAuthenticated
	}

	lock := s.lockFor(principal.ID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	if s.metrics != nil {
		s.metrics.TurnStarted()
	}
	outcome := "error"
	defer func() {
		if s.metrics != nil {
			s.metrics.TurnEnded(outcome, time.Since(start).Seconds())
		}
	}()

	mgr, key, err := s.managerFor(ctx, principal)
	if err != nil {
		s.recordError("agentgraph", "memory_manager_init_failed")
		return ChatResult{}, fmt.Errorf("agentgraph: %w", err)
	}
	tracker := training.New(mgr, s.repo, principal.ID)
	registry := s.registryFor(principal, mgr, key)

	run := &turn{
		svc:            s,
		principal:      principal,
		providerPref:   providerPref,
		conversationID: conversationID,
		manager:        mgr,
		tracker:        tracker,
		registry:       registry,
		toolsUsed:      make(map[string]struct{}),
	}

	result, err := run.execute(ctx, text)
	if err != nil {
		if ctx.Err() != nil || err == agenterr.ErrCancelled {
			mgr.Discard()
			outcome = "cancelled"
			return ChatResult{}, agenterr.ErrCancelled
		}
		s.recordError("agentgraph", "turn_execute_failed")
		return ChatResult{}, err
	}
	outcome = "success"
	return result, nil
}

// Recall returns up to limit (capped at 50) of principal's recent messages.
func (s *Service) Recall(ctx context.Context, principal models.Principal, limit int) ([]models.Message, error) {
	if principal.ID == 0 {
		return nil, agenterr.ErrNotAuthenticated
	}
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	mgr, _, err := s.managerFor(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("agentgraph: %w", err)
	}
	return mgr.Recall(ctx, limit, nil)
}

// LoginReminder runs training.OnLogin and returns its reminder string.
func (s *Service) LoginReminder(ctx context.Context, principal models.Principal) (string, error) {
	if principal.ID == 0 {
		return "", agenterr.ErrNotAuthenticated
	}
	mgr, _, err := s.managerFor(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("agentgraph: %w", err)
	}
	tracker := training.New(mgr, s.repo, principal.ID)
	reminder, err := tracker.OnLogin(ctx)
	if err != nil {
		return "", fmt.Errorf("agentgraph: login reminder: %w", err)
	}
	if err := mgr.Flush(ctx); err != nil {
		return "", fmt.Errorf("agentgraph: login reminder flush: %w", err)
	}
	return reminder, nil
}

// SaveProgressOnLogout runs training.OnLogout, optionally applying
// finalAnalysis (skillID -> new level) as one last progress update.
func (s *Service) SaveProgressOnLogout(ctx context.Context, principal models.Principal, finalAnalysis map[string]int) error {
	if principal.ID == 0 {
		return agenterr.ErrNotAuthenticated
	}
	mgr, _, err := s.managerFor(ctx, principal)
	if err != nil {
		return fmt.Errorf("agentgraph: %w", err)
	}
	tracker := training.New(mgr, s.repo, principal.ID)
	return tracker.OnLogout(ctx, finalAnalysis)
}
