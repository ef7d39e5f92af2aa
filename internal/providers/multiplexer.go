package providers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nexus-assistant/core/internal/agenterr"
	"github.com/nexus-assistant/core/internal/localmodel"
	"github.com/nexus-assistant/core/internal/ratelimit"
	"github.com/nexus-assistant/core/pkg/models"
)

// Client is a blocking LLM backend: one call in, one normalized response out.
// Adapters collapse the streaming LLMProvider shape (see provider_types.go)
// into this by draining the channel (see CollectStream).
type Client interface {
	Complete(ctx context.Context, req *CompletionRequest) (*models.LLMResponse, error)
	Name() string
}

// circuitState tracks per-provider health, grounded on FailoverOrchestrator's
// ProviderState/CircuitBreakerThreshold idiom.
type circuitState struct {
	consecutiveErrors int
	openUntil         time.Time
}

const circuitBreakerThreshold = 3
const circuitBreakerCooldown = 30 * time.Second

// entry pairs one provider's client with its config, rate limiter, and
// circuit-breaker state.
type entry struct {
	cfg     models.ProviderConfig
	client  Client
	limiter *ratelimit.SlidingWindow

	mu     sync.Mutex
	state  circuitState
	usage  models.UsageStats
}

// Multiplexer selects among multiple configured LLM providers by priority,
// with a preferred-name override, per-provider rate limiting, and
// consecutive-error circuit breaking. It is the C4 entrypoint: callers never
// talk to a Client directly.
type Multiplexer struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string // provider names sorted by priority, ascending (lower = tried first)
}

// NewMultiplexer constructs an empty Multiplexer. Use Register to add
// providers.
func NewMultiplexer() *Multiplexer {
	return &Multiplexer{entries: make(map[string]*entry)}
}

// Register adds a provider under cfg.Name, backed by client. rateLimit and
// window configure the per-provider admission-control sliding window derived
// from cfg.MaxRequestsPerMinute (0 disables limiting for this provider).
func (m *Multiplexer) Register(cfg models.ProviderConfig, client Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var limiter *ratelimit.SlidingWindow
	if cfg.MaxRequestsPerMinute > 0 {
		limiter = ratelimit.NewSlidingWindow(cfg.MaxRequestsPerMinute, time.Minute)
	}

	m.entries[cfg.Name] = &entry{cfg: cfg, client: client, limiter: limiter}
	m.rebuildOrder()
}

func (m *Multiplexer) rebuildOrder() {
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return m.entries[names[i]].cfg.Priority < m.entries[names[j]].cfg.Priority
	})
	m.order = names
}

// isAvailable reports whether e's circuit is closed (or has cooled down).
func (e *entry) isAvailable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.consecutiveErrors < circuitBreakerThreshold {
		return true
	}
	if time.Now().After(e.state.openUntil) {
		e.state.consecutiveErrors = 0
		return true
	}
	return false
}

func (e *entry) recordSuccess() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.consecutiveErrors = 0
	e.usage.SuccessfulRequests++
	e.usage.TotalRequests++
	e.usage.ConsecutiveErrors = 0
	e.usage.LastRequestAt = time.Now().UTC()
}

func (e *entry) recordFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.consecutiveErrors++
	e.usage.FailedRequests++
	e.usage.TotalRequests++
	e.usage.ConsecutiveErrors = e.state.consecutiveErrors
	e.usage.LastRequestAt = time.Now().UTC()
	if e.state.consecutiveErrors >= circuitBreakerThreshold {
		e.state.openUntil = time.Now().Add(circuitBreakerCooldown)
	}
}

// Usage returns a snapshot of usage stats for name, or the zero value if
// unknown.
func (m *Multiplexer) Usage(name string) models.UsageStats {
	m.mu.RLock()
	e, ok := m.entries[name]
	m.mu.RUnlock()
	if !ok {
		return models.UsageStats{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.usage
}

// Complete dispatches req to the highest-priority available provider, trying
// preferredName first if set and registered. It normalizes local-model
// responses via internal/localmodel before returning.
func (m *Multiplexer) Complete(ctx context.Context, req *CompletionRequest, preferredName string) (*models.LLMResponse, error) {
	m.mu.RLock()
	order := make([]string, len(m.order))
	copy(order, m.order)
	entries := m.entries
	m.mu.RUnlock()

	if preferredName != "" {
		order = promote(order, preferredName)
	}

	var tried []string
	var lastErr error

	for _, name := range order {
		e, ok := entries[name]
		if !ok || !e.cfg.IsAvailable || !e.isAvailable() {
			continue
		}

		if e.limiter != nil {
			if _, err := e.limiter.WaitIfNeeded(ctx); err != nil {
				lastErr = err
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				continue
			}
		}

		tried = append(tried, name)
		resp, err := e.client.Complete(ctx, req)
		if err != nil {
			e.recordFailure()
			lastErr = err
			continue
		}
		e.recordSuccess()

		if localmodel.IsLocalFamily(e.cfg.Model, e.cfg.Endpoint) {
			normalized := localmodel.Normalize(resp.Content)
			resp.Content = normalized.Content
			if len(normalized.ToolCalls) > 0 {
				resp.ToolCalls = normalized.ToolCalls
			}
		}
		return resp, nil
	}

	return nil, &agenterr.AllProvidersExhaustedError{Tried: tried, LastErr: lastErr}
}

func promote(order []string, name string) []string {
	out := make([]string, 0, len(order))
	out = append(out, name)
	for _, n := range order {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

// CollectStream drains a streaming LLMProvider's channel into a single
// models.LLMResponse, the "collapse into a blocking call" seam named in the
// completed-response contract: the provider streams internally, but callers
// above the adapter boundary never see partial chunks.
func CollectStream(chunks <-chan *CompletionChunk) (*models.LLMResponse, error) {
	var resp models.LLMResponse
	var toolCalls []models.ToolCall
	var text string

	for chunk := range chunks {
		if chunk.Error != nil {
			return nil, chunk.Error
		}
		if chunk.Text != "" {
			text += chunk.Text
		}
		if chunk.ToolCall != nil {
			toolCalls = append(toolCalls, *chunk.ToolCall)
		}
		if chunk.Done {
			resp.Usage = &models.Usage{
				PromptTokens:     chunk.InputTokens,
				CompletionTokens: chunk.OutputTokens,
			}
		}
	}

	resp.Content = text
	resp.ToolCalls = toolCalls
	if resp.Content == "" && len(resp.ToolCalls) == 0 {
		return nil, fmt.Errorf("providers: empty response from stream")
	}
	return &resp, nil
}
