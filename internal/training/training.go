// Package training implements the training tracker (C9): the hooks the
// agent graph calls on login, per message, and on logout to keep a user's
// embedded TrainingPlan in sync with their skill levels, and the
// corresponding Training rows in the Repository.
package training

import (
	"context"
	"fmt"
	"time"

	"github.com/nexus-assistant/core/internal/memory"
	"github.com/nexus-assistant/core/pkg/models"
)

// DefaultTraining pairs a training's ID with the skill it tracks.
type DefaultTraining struct {
	ID      string
	SkillID string
	Name    string
}

// DefaultTrainings is the fixed set of trainings every user is enrolled in.
var DefaultTrainings = []DefaultTraining{
	{ID: "empathy_training", SkillID: "empathy", Name: "Empathy training"},
	{ID: "conversation_training", SkillID: "active_listening", Name: "Conversation training"},
}

// milestoneThresholds are the level thresholds at which a TrainingEntry
// reports a new milestone description.
var milestoneThresholds = []models.Milestone{
	{Threshold: 3, Description: "Getting comfortable"},
	{Threshold: 6, Description: "Solid progress"},
	{Threshold: 9, Description: "Nearly mastered"},
	{Threshold: 10, Description: "Mastered"},
}

// Tracker owns the training-plan hooks for one user's turn. It reads and
// writes the TrainingPlan embedded in the memory.Manager's MemoryView and
// the skill levels in repository.SkillStore (via levelReader, narrowed to
// the one method this package needs).
type Tracker struct {
	manager *memory.Manager
	levels  levelReader
	userID  int64
}

// levelReader is the narrow slice of repository.Repository this package
// depends on: reading a skill's current level plus keeping its Training row
// in the DB (not just the embedded TrainingPlan) in sync.
type levelReader interface {
	GetSkillLevel(ctx context.Context, userID int64, skillID string) (int, error)
	AddTraining(ctx context.Context, userID int64, skillID string, status models.SkillStatus) error
	UpdateTrainingStatus(ctx context.Context, userID int64, skillID string, status models.SkillStatus) error
}

// New constructs a Tracker bound to manager (the turn's memory manager) and
// levels (the skill-level reader) for userID.
func New(manager *memory.Manager, levels levelReader, userID int64) *Tracker {
	return &Tracker{manager: manager, levels: levels, userID: userID}
}

// OnLogin reads or creates the TrainingPlan, ensures a Training row exists
// for every default training, and returns a login reminder string.
func (t *Tracker) OnLogin(ctx context.Context) (string, error) {
	plan, err := t.manager.TrainingPlan(ctx)
	if err != nil {
		return "", fmt.Errorf("training: on_login: %w", err)
	}
	if plan == nil {
		plan = &models.TrainingPlan{
			UserID:    t.userID,
			CreatedAt: time.Now().UTC(),
			Trainings: make(map[string]*models.TrainingEntry),
		}
	}
	if plan.Trainings == nil {
		plan.Trainings = make(map[string]*models.TrainingEntry)
	}

	for _, dt := range DefaultTrainings {
		level, err := t.levels.GetSkillLevel(ctx, t.userID, dt.SkillID)
		if err != nil {
			return "", fmt.Errorf("training: on_login: skill level: %w", err)
		}
		if err := t.levels.AddTraining(ctx, t.userID, dt.SkillID, models.TrainingActive); err != nil {
			return "", fmt.Errorf("training: on_login: add training row: %w", err)
		}
		entry, ok := plan.Trainings[dt.ID]
		if !ok {
			entry = &models.TrainingEntry{
				SkillID:     dt.SkillID,
				SkillName:   dt.Name,
				TargetLevel: 10,
				Status:      models.TrainingActive,
				StartedAt:   time.Now().UTC(),
				Milestones:  milestoneThresholds,
			}
			plan.Trainings[dt.ID] = entry
		}
		entry.CurrentLevel = level
		entry.Status = models.TrainingActive
		entry.NextMilestone = nextMilestone(level)
	}

	if err := t.manager.SetTrainingPlan(ctx, plan); err != nil {
		return "", fmt.Errorf("training: on_login: %w", err)
	}
	return loginReminder(plan), nil
}

// OnMessage increments message_count on the TrainingPlan. The caller is
// responsible for flushing via memory.Manager.Flush.
func (t *Tracker) OnMessage(ctx context.Context) error {
	plan, err := t.manager.TrainingPlan(ctx)
	if err != nil {
		return fmt.Errorf("training: on_message: %w", err)
	}
	if plan == nil {
		plan = &models.TrainingPlan{UserID: t.userID, CreatedAt: time.Now().UTC(), Trainings: map[string]*models.TrainingEntry{}}
	}
	plan.MessageCount++
	return t.manager.SetTrainingPlan(ctx, plan)
}

// ShouldEvaluate reports whether message_count has reached a multiple of 5,
// the trigger PERSIST uses to invoke skill_evaluator synchronously.
func (t *Tracker) ShouldEvaluate(ctx context.Context) (bool, error) {
	plan, err := t.manager.TrainingPlan(ctx)
	if err != nil {
		return false, fmt.Errorf("training: should_evaluate: %w", err)
	}
	if plan == nil {
		return false, nil
	}
	return plan.MessageCount > 0 && plan.MessageCount%5 == 0, nil
}

// OnProgress updates each skill in skillsUpdated (skillID -> new level) on
// the TrainingPlan: current_level, next_milestone, and status (completed
// once the level reaches 10).
func (t *Tracker) OnProgress(ctx context.Context, skillsUpdated map[string]int) error {
	plan, err := t.manager.TrainingPlan(ctx)
	if err != nil {
		return fmt.Errorf("training: on_progress: %w", err)
	}
	if plan == nil || plan.Trainings == nil {
		return nil
	}
	plan.LastProgressCheck = time.Now().UTC()

	for trainingID, entry := range plan.Trainings {
		level, ok := skillsUpdated[entry.SkillID]
		if !ok {
			continue
		}
		entry.CurrentLevel = level
		entry.NextMilestone = nextMilestone(level)
		if level >= 10 {
			entry.Status = models.TrainingCompleted
			if err := t.levels.UpdateTrainingStatus(ctx, t.userID, entry.SkillID, models.TrainingCompleted); err != nil {
				return fmt.Errorf("training: on_progress: update training status %q: %w", trainingID, err)
			}
		}
	}
	return t.manager.SetTrainingPlan(ctx, plan)
}

// OnLogout stamps last_logout, optionally runs one final OnProgress pass,
// then flushes via the memory manager.
func (t *Tracker) OnLogout(ctx context.Context, finalAnalysis map[string]int) error {
	plan, err := t.manager.TrainingPlan(ctx)
	if err != nil {
		return fmt.Errorf("training: on_logout: %w", err)
	}
	if plan != nil {
		now := time.Now().UTC()
		plan.LastLogout = &now
		if err := t.manager.SetTrainingPlan(ctx, plan); err != nil {
			return fmt.Errorf("training: on_logout: %w", err)
		}
	}
	if len(finalAnalysis) > 0 {
		if err := t.OnProgress(ctx, finalAnalysis); err != nil {
			return err
		}
	}
	return t.manager.Flush(ctx)
}

// nextMilestone returns the first milestone whose threshold exceeds level,
// or nil once every milestone has been passed.
func nextMilestone(level int) *models.Milestone {
	for _, m := range milestoneThresholds {
		if m.Threshold > level {
			cp := m
			return &cp
		}
	}
	return nil
}

// loginReminder renders a reminder string listing active trainings and
// their next milestones.
func loginReminder(plan *models.TrainingPlan) string {
	if plan == nil || len(plan.Trainings) == 0 {
		return "No active trainings yet."
	}
	reminder := "Your active trainings:\n"
	for _, dt := range DefaultTrainings {
		entry, ok := plan.Trainings[dt.ID]
		if !ok || entry.Status != models.TrainingActive {
			continue
		}
		reminder += fmt.Sprintf("- %s: level %d/10", entry.SkillName, entry.CurrentLevel)
		if entry.NextMilestone != nil {
			reminder += fmt.Sprintf(" (next: %s at level %d)", entry.NextMilestone.Description, entry.NextMilestone.Threshold)
		}
		reminder += "\n"
	}
	return reminder
}
