package repository

import (
	"context"
	"time"

	"github.com/nexus-assistant/core/internal/observability"
	"github.com/nexus-assistant/core/pkg/models"
)

// Instrumented wraps a Repository, recording DatabaseQueryDuration and
// DatabaseQueryCounter around every call. It is a plain decorator: each
// method times the wrapped call and forwards its result unchanged.
type Instrumented struct {
	next    Repository
	metrics *observability.Metrics
}

// NewInstrumented wraps next so every call records metrics. Passing a nil
// metrics sink is valid and makes every recorded call a no-op.
func NewInstrumented(next Repository, metrics *observability.Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: metrics}
}

func (r *Instrumented) observe(operation, table string, err error, start time.Time) {
	if r.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordDatabaseQuery(operation, table, status, time.Since(start).Seconds())
}

func (r *Instrumented) GetUser(ctx context.Context, id int64) (*models.Principal, error) {
	start := time.Now()
	p, err := r.next.GetUser(ctx, id)
	r.observe("select", "principals", err, start)
	return p, err
}

func (r *Instrumented) GetUserByUsername(ctx context.Context, username string) (*models.Principal, error) {
	start := time.Now()
	p, err := r.next.GetUserByUsername(ctx, username)
	r.observe("select", "principals", err, start)
	return p, err
}

func (r *Instrumented) AddUser(ctx context.Context, username string) (*models.Principal, error) {
	start := time.Now()
	p, err := r.next.AddUser(ctx, username)
	r.observe("insert", "principals", err, start)
	return p, err
}

func (r *Instrumented) SetUserTemperature(ctx context.Context, userID int64, temperature float64) error {
	start := time.Now()
	err := r.next.SetUserTemperature(ctx, userID, temperature)
	r.observe("update", "principals", err, start)
	return err
}

func (r *Instrumented) EnsureEncryptionKey(ctx context.Context, userID int64) (string, error) {
	start := time.Now()
	key, err := r.next.EnsureEncryptionKey(ctx, userID)
	r.observe("upsert", "principals", err, start)
	return key, err
}

func (r *Instrumented) GetEncryptedMemory(ctx context.Context, userID int64) (*string, error) {
	start := time.Now()
	blob, err := r.next.GetEncryptedMemory(ctx, userID)
	r.observe("select", "memory", err, start)
	return blob, err
}

func (r *Instrumented) SetEncryptedMemory(ctx context.Context, userID int64, ciphertext string) error {
	start := time.Now()
	err := r.next.SetEncryptedMemory(ctx, userID, ciphertext)
	r.observe("upsert", "memory", err, start)
	return err
}

func (r *Instrumented) GetPreferences(ctx context.Context, userID int64, preferenceType *models.PreferenceType) (map[string]models.UserPreference, error) {
	start := time.Now()
	prefs, err := r.next.GetPreferences(ctx, userID, preferenceType)
	r.observe("select", "preferences", err, start)
	return prefs, err
}

func (r *Instrumented) SetPreference(ctx context.Context, pref models.UserPreference) error {
	start := time.Now()
	err := r.next.SetPreference(ctx, pref)
	r.observe("upsert", "preferences", err, start)
	return err
}

func (r *Instrumented) DeletePreference(ctx context.Context, userID int64, preferenceType *models.PreferenceType, key *string) error {
	start := time.Now()
	err := r.next.DeletePreference(ctx, userID, preferenceType, key)
	r.observe("delete", "preferences", err, start)
	return err
}

func (r *Instrumented) GetOrCreateSkill(ctx context.Context, name string) (*models.Skill, error) {
	start := time.Now()
	skill, err := r.next.GetOrCreateSkill(ctx, name)
	r.observe("upsert", "skills", err, start)
	return skill, err
}

func (r *Instrumented) GetSkillLevel(ctx context.Context, userID int64, skillID string) (int, error) {
	start := time.Now()
	level, err := r.next.GetSkillLevel(ctx, userID, skillID)
	r.observe("select", "user_skills", err, start)
	return level, err
}

func (r *Instrumented) SetSkillLevel(ctx context.Context, userID int64, skillID string, level int) error {
	start := time.Now()
	err := r.next.SetSkillLevel(ctx, userID, skillID, level)
	r.observe("upsert", "user_skills", err, start)
	return err
}

func (r *Instrumented) AddTraining(ctx context.Context, userID int64, skillID string, status models.SkillStatus) error {
	start := time.Now()
	err := r.next.AddTraining(ctx, userID, skillID, status)
	r.observe("insert", "trainings", err, start)
	return err
}

func (r *Instrumented) UpdateTrainingStatus(ctx context.Context, userID int64, skillID string, status models.SkillStatus) error {
	start := time.Now()
	err := r.next.UpdateTrainingStatus(ctx, userID, skillID, status)
	r.observe("update", "trainings", err, start)
	return err
}

func (r *Instrumented) AddRoomMessage(ctx context.Context, roomID string, msg models.Message) error {
	start := time.Now()
	err := r.next.AddRoomMessage(ctx, roomID, msg)
	r.observe("insert", "room_messages", err, start)
	return err
}

func (r *Instrumented) GetRoomMessages(ctx context.Context, roomID string, limit int, beforeID *string) ([]models.Message, error) {
	start := time.Now()
	msgs, err := r.next.GetRoomMessages(ctx, roomID, limit, beforeID)
	r.observe("select", "room_messages", err, start)
	return msgs, err
}

func (r *Instrumented) IsUserInRoom(ctx context.Context, userID int64, roomID string) (bool, error) {
	start := time.Now()
	ok, err := r.next.IsUserInRoom(ctx, userID, roomID)
	r.observe("select", "room_members", err, start)
	return ok, err
}

func (r *Instrumented) AddLifeEvent(ctx context.Context, event models.LifeEvent) (models.LifeEvent, error) {
	start := time.Now()
	e, err := r.next.AddLifeEvent(ctx, event)
	r.observe("insert", "life_events", err, start)
	return e, err
}

func (r *Instrumented) GetLifeEvent(ctx context.Context, userID int64, id string) (*models.LifeEvent, error) {
	start := time.Now()
	e, err := r.next.GetLifeEvent(ctx, userID, id)
	r.observe("select", "life_events", err, start)
	return e, err
}

func (r *Instrumented) UpdateLifeEvent(ctx context.Context, userID int64, id string, description string) (*models.LifeEvent, error) {
	start := time.Now()
	e, err := r.next.UpdateLifeEvent(ctx, userID, id, description)
	r.observe("update", "life_events", err, start)
	return e, err
}

func (r *Instrumented) DeleteLifeEvent(ctx context.Context, userID int64, id string) error {
	start := time.Now()
	err := r.next.DeleteLifeEvent(ctx, userID, id)
	r.observe("delete", "life_events", err, start)
	return err
}

func (r *Instrumented) ListLifeEvents(ctx context.Context, userID int64) ([]models.LifeEvent, error) {
	start := time.Now()
	events, err := r.next.ListLifeEvents(ctx, userID)
	r.observe("select", "life_events", err, start)
	return events, err
}

var _ Repository = (*Instrumented)(nil)
