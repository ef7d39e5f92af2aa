// Package memstore is a non-production, in-memory Repository implementation.
// It exists to drive the agent graph in tests and the cmd/agentcore demo
// binary; it is not a migration system and has no durability guarantees.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nexus-assistant/core/internal/crypto"
	"github.com/nexus-assistant/core/internal/repository"
	"github.com/nexus-assistant/core/pkg/models"
)

// Store is an in-memory Repository.
type Store struct {
	mu sync.RWMutex

	nextUserID    int64
	usersByID     map[int64]*models.Principal
	usersByName   map[string]int64
	keys          map[int64]string
	temperatures  map[int64]float64
	memory        map[int64]string
	preferences   map[int64]map[string]models.UserPreference // key: type+"|"+key
	skillsByName  map[string]*models.Skill
	userSkills    map[int64]map[string]int // skillID -> level
	trainings     map[int64]map[string]models.SkillStatus
	rooms         map[string][]models.Message
	roomMembers   map[string]map[int64]bool
	nextEventID   int64
	lifeEvents    map[int64]map[string]models.LifeEvent
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		usersByID:    make(map[int64]*models.Principal),
		usersByName:  make(map[string]int64),
		keys:         make(map[int64]string),
		temperatures: make(map[int64]float64),
		memory:       make(map[int64]string),
		preferences:  make(map[int64]map[string]models.UserPreference),
		skillsByName: make(map[string]*models.Skill),
		userSkills:   make(map[int64]map[string]int),
		trainings:    make(map[int64]map[string]models.SkillStatus),
		rooms:        make(map[string][]models.Message),
		roomMembers:  make(map[string]map[int64]bool),
		lifeEvents:   make(map[int64]map[string]models.LifeEvent),
	}
}

var _ repository.Repository = (*Store)(nil)

func prefKey(preferenceType models.PreferenceType, key string) string {
	return string(preferenceType) + "|" + key
}

// --- PrincipalStore ---

func (s *Store) GetUser(_ context.Context, id int64) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usersByID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByName[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s.usersByID[id]
	return &cp, nil
}

func (s *Store) AddUser(_ context.Context, username string) (*models.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByName[username]; exists {
		return nil, repository.ErrAlreadyExists
	}
	s.nextUserID++
	u := &models.Principal{ID: s.nextUserID, Username: username}
	s.usersByID[u.ID] = u
	s.usersByName[username] = u.ID
	return u, nil
}

func (s *Store) SetUserTemperature(_ context.Context, userID int64, temperature float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usersByID[userID]; !ok {
		return fmt.Errorf("memstore: %w: user %d", repository.ErrNotFound, userID)
	}
	s.temperatures[userID] = temperature
	return nil
}

func (s *Store) EnsureEncryptionKey(_ context.Context, userID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keys[userID]; ok {
		return k, nil
	}
	key, err := crypto.NewKey()
	if err != nil {
		return "", fmt.Errorf("memstore: generate key: %w", err)
	}
	s.keys[userID] = key.String()
	return s.keys[userID], nil
}

// --- MemoryStore ---

func (s *Store) GetEncryptedMemory(_ context.Context, userID int64) (*string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.memory[userID]
	if !ok {
		return nil, nil
	}
	return &blob, nil
}

func (s *Store) SetEncryptedMemory(_ context.Context, userID int64, ciphertext string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory[userID] = ciphertext
	return nil
}

// --- PreferenceStore ---

func (s *Store) GetPreferences(_ context.Context, userID int64, preferenceType *models.PreferenceType) (map[string]models.UserPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.UserPreference)
	for k, pref := range s.preferences[userID] {
		if preferenceType != nil && pref.Type != *preferenceType {
			continue
		}
		out[k] = pref
	}
	return out, nil
}

func (s *Store) SetPreference(_ context.Context, pref models.UserPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preferences[pref.UserID] == nil {
		s.preferences[pref.UserID] = make(map[string]models.UserPreference)
	}
	s.preferences[pref.UserID][prefKey(pref.Type, pref.Key)] = pref
	return nil
}

func (s *Store) DeletePreference(_ context.Context, userID int64, preferenceType *models.PreferenceType, key *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.preferences[userID]
	if bucket == nil {
		return nil
	}
	for k, pref := range bucket {
		if preferenceType != nil && pref.Type != *preferenceType {
			continue
		}
		if key != nil && pref.Key != *key {
			continue
		}
		delete(bucket, k)
	}
	return nil
}

// --- SkillStore ---

func (s *Store) GetOrCreateSkill(_ context.Context, name string) (*models.Skill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sk, ok := s.skillsByName[name]; ok {
		cp := *sk
		return &cp, nil
	}
	sk := &models.Skill{ID: name, Name: name}
	s.skillsByName[name] = sk
	return sk, nil
}

func (s *Store) GetSkillLevel(_ context.Context, userID int64, skillID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userSkills[userID][skillID], nil
}

func (s *Store) SetSkillLevel(_ context.Context, userID int64, skillID string, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userSkills[userID] == nil {
		s.userSkills[userID] = make(map[string]int)
	}
	s.userSkills[userID][skillID] = level
	return nil
}

func (s *Store) AddTraining(_ context.Context, userID int64, skillID string, status models.SkillStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trainings[userID] == nil {
		s.trainings[userID] = make(map[string]models.SkillStatus)
	}
	s.trainings[userID][skillID] = status
	return nil
}

func (s *Store) UpdateTrainingStatus(_ context.Context, userID int64, skillID string, status models.SkillStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trainings[userID] == nil {
		s.trainings[userID] = make(map[string]models.SkillStatus)
	}
	s.trainings[userID][skillID] = status
	return nil
}

// --- RoomStore ---

func (s *Store) AddRoomMessage(_ context.Context, roomID string, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[roomID] = append(s.rooms[roomID], msg)
	return nil
}

func (s *Store) GetRoomMessages(_ context.Context, roomID string, limit int, beforeID *string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.rooms[roomID]
	if limit <= 0 || limit > len(msgs) {
		limit = len(msgs)
	}
	start := len(msgs) - limit
	if start < 0 {
		start = 0
	}
	out := make([]models.Message, len(msgs[start:]))
	copy(out, msgs[start:])
	return out, nil
}

func (s *Store) IsUserInRoom(_ context.Context, userID int64, roomID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomMembers[roomID][userID], nil
}

// JoinRoom is a test/demo helper absent from the Repository interface.
func (s *Store) JoinRoom(roomID string, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roomMembers[roomID] == nil {
		s.roomMembers[roomID] = make(map[int64]bool)
	}
	s.roomMembers[roomID][userID] = true
}

// --- LifeEventStore ---

func (s *Store) AddLifeEvent(_ context.Context, event models.LifeEvent) (models.LifeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEventID++
	event.ID = fmt.Sprintf("event-%d", s.nextEventID)
	if s.lifeEvents[event.UserID] == nil {
		s.lifeEvents[event.UserID] = make(map[string]models.LifeEvent)
	}
	s.lifeEvents[event.UserID][event.ID] = event
	return event, nil
}

func (s *Store) GetLifeEvent(_ context.Context, userID int64, id string) (*models.LifeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.lifeEvents[userID][id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := ev
	return &cp, nil
}

func (s *Store) UpdateLifeEvent(_ context.Context, userID int64, id string, description string) (*models.LifeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.lifeEvents[userID][id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	ev.Description = description
	s.lifeEvents[userID][id] = ev
	cp := ev
	return &cp, nil
}

func (s *Store) DeleteLifeEvent(_ context.Context, userID int64, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lifeEvents[userID][id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.lifeEvents[userID], id)
	return nil
}

func (s *Store) ListLifeEvents(_ context.Context, userID int64) ([]models.LifeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.LifeEvent, 0, len(s.lifeEvents[userID]))
	for _, ev := range s.lifeEvents[userID] {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}
