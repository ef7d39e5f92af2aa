// Package models defines the core data types shared across the agent
// orchestration engine: principals, memory, tools, providers, and training.
package models

import "time"

// Principal identifies the caller of a request. It is created and
// authenticated entirely outside the core; the core treats it as immutable
// for the lifetime of a request.
type Principal struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Role identifies who produced a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// MessageType tags which memory bucket a Message belongs to.
type MessageType string

const (
	MessageTypeAI      MessageType = "ai"
	MessageTypeGeneral MessageType = "general"
)

// Message is one entry in a user's conversational memory.
type Message struct {
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	Type       MessageType `json:"type"`
	Timestamp  time.Time   `json:"timestamp"`
	UserID     int64       `json:"user_id,omitempty"`
	RoomID     string      `json:"room_id,omitempty"`
	ToolName   string      `json:"tool_name,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
}

// MemoryMetadata carries bookkeeping fields about a MemoryView.
type MemoryMetadata struct {
	CreatedAt     time.Time      `json:"created_at"`
	LastUpdated   time.Time      `json:"last_updated"`
	UserID        int64          `json:"user_id"`
	Version       int            `json:"version"`
	MessageCounts map[string]int `json:"message_counts"`
}

// MemoryView is the decrypted, in-memory representation of a user's stored
// conversation buckets. It is the plaintext shape a MemoryBlob decrypts to.
type MemoryView struct {
	Messages      []Message    `json:"messages"`
	GeneralChat   []Message    `json:"general_chat"`
	AIConv        []Message    `json:"ai_conversation"`
	TrainingPlan  *TrainingPlan `json:"training_plan,omitempty"`
	Metadata      MemoryMetadata `json:"metadata"`
}

// NewMemoryView returns the empty MemoryView a fresh user starts from.
func NewMemoryView(userID int64) *MemoryView {
	now := time.Now().UTC()
	return &MemoryView{
		Messages:    []Message{},
		GeneralChat: []Message{},
		AIConv:      []Message{},
		Metadata: MemoryMetadata{
			CreatedAt:     now,
			LastUpdated:   now,
			UserID:        userID,
			Version:       1,
			MessageCounts: map[string]int{"general": 0, "ai": 0},
		},
	}
}

// PreferenceType classifies a UserPreference. Types in SensitivePreferenceTypes
// must be encrypted at rest using the owning principal's key.
type PreferenceType string

const (
	PreferencePersonalInfo   PreferenceType = "personal_info"
	PreferenceContact        PreferenceType = "contact"
	PreferenceFinancial      PreferenceType = "financial"
	PreferenceMedical        PreferenceType = "medical"
	PreferenceIdentification PreferenceType = "identification"
	PreferencePrivate        PreferenceType = "private"
	PreferenceCommunication  PreferenceType = "communication"
)

// SensitivePreferenceTypes is the set of PreferenceTypes whose values must be
// encrypted at rest.
var SensitivePreferenceTypes = map[PreferenceType]bool{
	PreferencePersonalInfo:   true,
	PreferenceContact:        true,
	PreferenceFinancial:      true,
	PreferenceMedical:        true,
	PreferenceIdentification: true,
	PreferencePrivate:        true,
}

// IsSensitive reports whether values of this type must be encrypted at rest.
func (t PreferenceType) IsSensitive() bool {
	return SensitivePreferenceTypes[t]
}

// UserPreference is keyed by (UserID, Type, Key); Value is an arbitrary JSON
// node and Confidence is in [0,1].
type UserPreference struct {
	UserID     int64          `json:"user_id"`
	Type       PreferenceType `json:"type"`
	Key        string         `json:"key"`
	Value      any            `json:"value"`
	Confidence float64        `json:"confidence"`
}

// SkillStatus is the lifecycle state of a Training row.
type SkillStatus string

const (
	TrainingPending   SkillStatus = "pending"
	TrainingActive    SkillStatus = "active"
	TrainingCompleted SkillStatus = "completed"
)

// Skill is a canonical, named capability a user can be trained on.
type Skill struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserSkill joins a principal to a Skill at a level in [0,10].
type UserSkill struct {
	UserID  int64  `json:"user_id"`
	SkillID string `json:"skill_id"`
	Level   int    `json:"level"`
}

// Milestone is a level threshold with a human-readable description.
type Milestone struct {
	Threshold   int    `json:"threshold"`
	Description string `json:"description"`
}

// TrainingEntry is one skill's progress within a TrainingPlan.
type TrainingEntry struct {
	SkillID      string      `json:"skill_id"`
	SkillName    string      `json:"skill_name"`
	CurrentLevel int         `json:"current_level"`
	TargetLevel  int         `json:"target_level"`
	Status       SkillStatus `json:"status"`
	StartedAt    time.Time   `json:"started_at"`
	Milestones   []Milestone `json:"milestones"`
	NextMilestone *Milestone `json:"next_milestone,omitempty"`
}

// TrainingPlan is the per-user structured record of active skill trainings.
// It is embedded (encrypted) inside the MemoryBlob.
type TrainingPlan struct {
	UserID             int64                    `json:"user_id"`
	CreatedAt          time.Time                `json:"created_at"`
	MessageCount       int                      `json:"message_count"`
	LastProgressCheck  time.Time                `json:"last_progress_check"`
	Trainings          map[string]*TrainingEntry `json:"trainings"`
	LastLogout         *time.Time               `json:"last_logout,omitempty"`
}

// ProviderConfig describes one LLM back-end the multiplexer can dispatch to.
type ProviderConfig struct {
	Name               string  `json:"name"`
	Family             string  `json:"family"` // openai, claude, gemini, bedrock, local
	Model              string  `json:"model"`
	Key                string  `json:"key"`
	Endpoint           string  `json:"endpoint,omitempty"`
	MaxRequestsPerMinute int   `json:"max_requests_per_minute"`
	MaxTokens          int     `json:"max_tokens"`
	Temperature        float64 `json:"temperature"`
	Priority           int     `json:"priority"`
	IsAvailable        bool    `json:"is_available"`
}

// UsageStats accumulates counters for one provider.
type UsageStats struct {
	TotalRequests      int64     `json:"total_requests"`
	SuccessfulRequests int64     `json:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests"`
	TotalTokens        int64     `json:"total_tokens"`
	CostEstimateUSD    float64   `json:"cost_estimate_usd"`
	LastRequestAt      time.Time `json:"last_request_at"`
	ConsecutiveErrors  int       `json:"consecutive_errors"`
}

// ToolCall is one invocation request the LLM produced.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the sum-type outcome of one ToolCall: either a successful
// value (Content, IsError=false) or an error string (Content, IsError=true).
// A non-nil Go error is never allowed to escape tool execution; it is always
// converted to an error ToolResult instead.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Content    any    `json:"content"`
	IsError    bool   `json:"is_error"`
}

// LifeEvent is one entry in a user's personal timeline, managed by the
// life_event tool.
type LifeEvent struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Attachment is an image or file attached to a CompletionMessage for
// vision-capable models.
type Attachment struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Usage reports token consumption for one LLM call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// LLMResponse is the normalized result of one provider invocation.
type LLMResponse struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls"`
	Model     string     `json:"model,omitempty"`
	Usage     *Usage     `json:"usage,omitempty"`
	Raw       any        `json:"-"`
}
