// Package memory implements the per-user encrypted memory manager (C7): a
// lazily-loaded, decrypted view of one principal's conversation history,
// backed by the Repository and the crypto box, with a per-user lock
// serializing access (see the agentgraph package's per-user mutex) and a
// save/recall flow of extract-user-turn, extract-assistant-turn, persist.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nexus-assistant/core/internal/crypto"
	"github.com/nexus-assistant/core/internal/repository"
	"github.com/nexus-assistant/core/pkg/models"
)

// internalPromptTriggers are the six phrases that mark a message as an
// internal system-monitoring prompt; any message whose content contains one
// of these is silently rejected by Append rather than persisted as user
// memory.
var internalPromptTriggers = []string{
	"CONVERSATION MONITORING REQUEST",
	"INSTRUCTIONS:",
	"Should you intervene",
	"NO_INTERVENTION_NEEDED",
	"You are monitoring this conversation",
	"Analyze if intervention is needed",
}

// IsInternalPrompt reports whether content matches the internal-prompt
// filter: any message matching it must never be added to memory.
func IsInternalPrompt(content string) bool {
	for _, trigger := range internalPromptTriggers {
		if strings.Contains(content, trigger) {
			return true
		}
	}
	return false
}

const (
	// DefaultMaxGeneral and DefaultMaxAI are the bucket bounds used when the
	// caller does not override them.
	DefaultMaxGeneral = 10
	DefaultMaxAI      = 20
)

// Manager owns the decrypted MemoryView for exactly one principal. It is
// constructed lazily: the first operation reads the ciphertext via
// Repository, decrypts it via the crypto box, and populates the view. A
// Manager is not safe for concurrent use by itself; callers must serialize
// access per user (see the agentgraph package's per-user lock).
type Manager struct {
	repo      repository.Repository
	userID    int64
	key       crypto.Key
	maxGeneral int
	maxAI      int

	mu     sync.Mutex
	loaded bool
	dirty  bool
	view   *models.MemoryView
}

// New constructs a Manager for userID. key is the principal's encryption key
// (obtained via Repository.EnsureEncryptionKey). The view is not loaded until
// the first operation.
func New(repo repository.Repository, userID int64, key crypto.Key) *Manager {
	return &Manager{
		repo:       repo,
		userID:     userID,
		key:        key,
		maxGeneral: DefaultMaxGeneral,
		maxAI:      DefaultMaxAI,
	}
}

// WithBounds overrides the default bucket bounds.
func (m *Manager) WithBounds(maxGeneral, maxAI int) *Manager {
	m.maxGeneral = maxGeneral
	m.maxAI = maxAI
	return m
}

// ensureLoaded lazily loads and decrypts the MemoryView. Caller must hold mu.
func (m *Manager) ensureLoaded(ctx context.Context) error {
	if m.loaded {
		return nil
	}
	ciphertext, err := m.repo.GetEncryptedMemory(ctx, m.userID)
	if err != nil {
		return fmt.Errorf("memory: load: %w", err)
	}
	if ciphertext == nil {
		m.view = models.NewMemoryView(m.userID)
		m.loaded = true
		return nil
	}
	plaintext, err := crypto.Decrypt(m.key, *ciphertext)
	if err != nil {
		// DecryptFailure is never surfaced: treat as absent memory and start
		// from a fresh, well-formed view.
		m.view = models.NewMemoryView(m.userID)
		m.loaded = true
		return nil
	}
	var view models.MemoryView
	if err := json.Unmarshal(plaintext, &view); err != nil {
		m.view = models.NewMemoryView(m.userID)
		m.loaded = true
		return nil
	}
	m.view = &view
	m.loaded = true
	return nil
}

// Append adds message to the view, tagged with typ, after running the
// internal-prompt filter. Messages that match the filter are rejected
// silently (no error, no anomaly raised to the caller beyond the filter
// itself being satisfied). Timestamp is auto-filled if zero.
func (m *Manager) Append(ctx context.Context, message models.Message, typ models.MessageType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLoaded(ctx); err != nil {
		return err
	}
	if IsInternalPrompt(message.Content) {
		return nil
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	message.Type = typ

	m.view.Messages = append(m.view.Messages, message)
	switch typ {
	case models.MessageTypeGeneral:
		m.view.GeneralChat = append(m.view.GeneralChat, message)
	case models.MessageTypeAI:
		m.view.AIConv = append(m.view.AIConv, message)
	}
	m.dirty = true
	return nil
}

// Trim enforces per-bucket bounds by dropping the oldest entries, then
// rebuilds Messages as the chronological union of what remains, bounded at
// maxGeneral+maxAI.
func (m *Manager) Trim(ctx context.Context, maxGeneral, maxAI int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLoaded(ctx); err != nil {
		return err
	}
	m.trimLocked(maxGeneral, maxAI)
	return nil
}

// trimLocked is Trim's body without the load/lock, for callers (Flush) that
// already hold mu and have already ensured the view is loaded.
func (m *Manager) trimLocked(maxGeneral, maxAI int) {
	if maxGeneral <= 0 {
		maxGeneral = m.maxGeneral
	}
	if maxAI <= 0 {
		maxAI = m.maxAI
	}

	m.view.GeneralChat = trimOldest(m.view.GeneralChat, maxGeneral)
	m.view.AIConv = trimOldest(m.view.AIConv, maxAI)
	m.view.Messages = mergeChronological(m.view.GeneralChat, m.view.AIConv)
	m.dirty = true
}

func trimOldest(msgs []models.Message, max int) []models.Message {
	if max <= 0 || len(msgs) <= max {
		return msgs
	}
	return append([]models.Message(nil), msgs[len(msgs)-max:]...)
}

// mergeChronological merges two already-sorted-by-timestamp slices into one
// chronological sequence via a stable merge.
func mergeChronological(a, b []models.Message) []models.Message {
	out := make([]models.Message, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if !a[i].Timestamp.After(b[j].Timestamp) {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// Flush re-encrypts the MemoryView and writes it via Repository, updating
// metadata.last_updated and metadata.message_counts. It is idempotent if no
// dirty flag was set (no write occurs).
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLoaded(ctx); err != nil {
		return err
	}
	if !m.dirty {
		return nil
	}
	m.trimLocked(m.maxGeneral, m.maxAI)
	m.view.Metadata.LastUpdated = time.Now().UTC()
	m.view.Metadata.MessageCounts = map[string]int{
		"general": len(m.view.GeneralChat),
		"ai":      len(m.view.AIConv),
	}

	plaintext, err := json.Marshal(m.view)
	if err != nil {
		return fmt.Errorf("memory: marshal: %w", err)
	}
	ciphertext, err := crypto.Encrypt(m.key, plaintext)
	if err != nil {
		return fmt.Errorf("memory: encrypt: %w", err)
	}
	if err := m.repo.SetEncryptedMemory(ctx, m.userID, ciphertext); err != nil {
		return fmt.Errorf("memory: flush: %w", err)
	}
	m.dirty = false
	return nil
}

// Recall returns a read-only slice of the last limit messages, optionally
// filtered by type.
func (m *Manager) Recall(ctx context.Context, limit int, typ *models.MessageType) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	source := m.view.Messages
	if typ != nil {
		source = nil
		for _, msg := range m.view.Messages {
			if msg.Type == *typ {
				source = append(source, msg)
			}
		}
	}
	if limit <= 0 || limit > len(source) {
		limit = len(source)
	}
	start := len(source) - limit
	out := make([]models.Message, len(source[start:]))
	copy(out, source[start:])
	return out, nil
}

// Clear replaces the view with an empty MemoryView and flushes immediately.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.view = models.NewMemoryView(m.userID)
	m.loaded = true
	m.dirty = true
	m.mu.Unlock()
	return m.Flush(ctx)
}

// TrainingPlan returns the embedded training plan, loading the view first.
// Returns nil if none has been set yet.
func (m *Manager) TrainingPlan(ctx context.Context) (*models.TrainingPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return m.view.TrainingPlan, nil
}

// SetTrainingPlan stores plan as the embedded training plan and marks the
// view dirty.
func (m *Manager) SetTrainingPlan(ctx context.Context, plan *models.TrainingPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLoaded(ctx); err != nil {
		return err
	}
	m.view.TrainingPlan = plan
	m.dirty = true
	return nil
}

// Discard drops any unflushed in-memory state without writing it. Used on
// cancellation: the user's on-disk memory remains a well-formed checkpoint.
func (m *Manager) Discard() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = false
	m.dirty = false
	m.view = nil
}
