// Package repository defines the persistence contract the core depends on.
// No implementation here talks to a real database: that concern belongs to
// an external collaborator. Interfaces are kept narrow and per-entity, with
// sentinel errors for the conditions callers need to branch on, covering
// exactly the methods the agent graph, memory manager, and training tracker
// need.
package repository

import (
	"context"
	"errors"

	"github.com/nexus-assistant/core/pkg/models"
)

// ErrNotFound marks a read miss. Read operations return this (or an
// empty/absent zero value, per method) rather than surfacing "not found" as
// an application error; write operations never return it.
var ErrNotFound = errors.New("repository: not found")

// ErrAlreadyExists marks a duplicate-create attempt.
var ErrAlreadyExists = errors.New("repository: already exists")

// PrincipalStore manages user identity and per-user encryption key material.
type PrincipalStore interface {
	GetUser(ctx context.Context, id int64) (*models.Principal, error)
	GetUserByUsername(ctx context.Context, username string) (*models.Principal, error)
	AddUser(ctx context.Context, username string) (*models.Principal, error)
	SetUserTemperature(ctx context.Context, userID int64, temperature float64) error

	// EnsureEncryptionKey returns the user's persisted key, generating and
	// storing one on first call for that user.
	EnsureEncryptionKey(ctx context.Context, userID int64) (string, error)
}

// MemoryStore persists the opaque encrypted memory blob. The core never
// inspects its contents directly; only the Crypto box may decrypt it.
type MemoryStore interface {
	// GetEncryptedMemory returns (nil, nil) if the user has no stored memory
	// yet, never ErrNotFound.
	GetEncryptedMemory(ctx context.Context, userID int64) (*string, error)
	SetEncryptedMemory(ctx context.Context, userID int64, ciphertext string) error
}

// PreferenceStore manages UserPreference rows.
type PreferenceStore interface {
	// GetPreferences returns preferences for userID, optionally filtered by
	// type. A miss yields an empty map, never ErrNotFound.
	GetPreferences(ctx context.Context, userID int64, preferenceType *models.PreferenceType) (map[string]models.UserPreference, error)
	SetPreference(ctx context.Context, pref models.UserPreference) error
	DeletePreference(ctx context.Context, userID int64, preferenceType *models.PreferenceType, key *string) error
}

// SkillStore manages Skill/UserSkill/Training rows.
type SkillStore interface {
	GetOrCreateSkill(ctx context.Context, name string) (*models.Skill, error)
	GetSkillLevel(ctx context.Context, userID int64, skillID string) (int, error)
	SetSkillLevel(ctx context.Context, userID int64, skillID string, level int) error
	AddTraining(ctx context.Context, userID int64, skillID string, status models.SkillStatus) error
	UpdateTrainingStatus(ctx context.Context, userID int64, skillID string, status models.SkillStatus) error
}

// RoomStore is consulted by the agent only indirectly, for room fan-out
// context that the transport layer owns the rest of.
type RoomStore interface {
	AddRoomMessage(ctx context.Context, roomID string, msg models.Message) error
	GetRoomMessages(ctx context.Context, roomID string, limit int, beforeID *string) ([]models.Message, error)
	IsUserInRoom(ctx context.Context, userID int64, roomID string) (bool, error)
}

// LifeEventStore manages the life_event tool's CRUD surface.
type LifeEventStore interface {
	AddLifeEvent(ctx context.Context, event models.LifeEvent) (models.LifeEvent, error)
	GetLifeEvent(ctx context.Context, userID int64, id string) (*models.LifeEvent, error)
	UpdateLifeEvent(ctx context.Context, userID int64, id string, description string) (*models.LifeEvent, error)
	DeleteLifeEvent(ctx context.Context, userID int64, id string) error
	ListLifeEvents(ctx context.Context, userID int64) ([]models.LifeEvent, error)
}

// Repository is the single persistence contract the core depends on. All
// operations may fail with a wrapped error; the core never holds a
// transaction open across an LLM call.
type Repository interface {
	PrincipalStore
	MemoryStore
	PreferenceStore
	SkillStore
	RoomStore
	LifeEventStore
}
