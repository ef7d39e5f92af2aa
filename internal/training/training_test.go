package training

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexus-assistant/core/internal/crypto"
	"github.com/nexus-assistant/core/internal/memory"
	"github.com/nexus-assistant/core/internal/repository/memstore"
	"github.com/nexus-assistant/core/pkg/models"
)

func newTestTracker(t *testing.T) (*Tracker, *memstore.Store, context.Context) {
	t.Helper()
	store := memstore.New()
	key, err := crypto.NewKey()
	require.NoError(t, err)
	mgr := memory.New(store, 1, key)
	return New(mgr, store, 1), store, context.Background()
}

func TestOnLoginCreatesDefaultTrainings(t *testing.T) {
	tracker, _, ctx := newTestTracker(t)

	reminder, err := tracker.OnLogin(ctx)
	require.NoError(t, err)
	require.Contains(t, reminder, "Empathy training")
	require.Contains(t, reminder, "Conversation training")

	plan, err := tracker.manager.TrainingPlan(ctx)
	require.NoError(t, err)
	require.Len(t, plan.Trainings, 2)
	require.Equal(t, models.TrainingActive, plan.Trainings["empathy_training"].Status)
}

func TestOnMessageIncrementsCountAndShouldEvaluate(t *testing.T) {
	tracker, _, ctx := newTestTracker(t)
	_, err := tracker.OnLogin(ctx)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, tracker.OnMessage(ctx))
		due, err := tracker.ShouldEvaluate(ctx)
		require.NoError(t, err)
		require.False(t, due)
	}

	require.NoError(t, tracker.OnMessage(ctx))
	due, err := tracker.ShouldEvaluate(ctx)
	require.NoError(t, err)
	require.True(t, due)
}

// trainingStatusSpy wraps a *memstore.Store to record UpdateTrainingStatus
// calls, so tests can confirm the DB-level Training row (not just the
// embedded TrainingPlan) gets marked completed.
type trainingStatusSpy struct {
	*memstore.Store
	updated map[string]models.SkillStatus
}

func (s *trainingStatusSpy) UpdateTrainingStatus(ctx context.Context, userID int64, skillID string, status models.SkillStatus) error {
	s.updated[skillID] = status
	return s.Store.UpdateTrainingStatus(ctx, userID, skillID, status)
}

func TestOnProgressMarksCompletedAtMaxLevel(t *testing.T) {
	store := memstore.New()
	spy := &trainingStatusSpy{Store: store, updated: map[string]models.SkillStatus{}}
	key, err := crypto.NewKey()
	require.NoError(t, err)
	mgr := memory.New(store, 1, key)
	tracker := New(mgr, spy, 1)

	_, err = tracker.OnLogin(context.Background())
	require.NoError(t, err)

	require.NoError(t, tracker.OnProgress(context.Background(), map[string]int{"empathy": 10}))

	plan, err := tracker.manager.TrainingPlan(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.TrainingCompleted, plan.Trainings["empathy_training"].Status)
	require.Nil(t, plan.Trainings["empathy_training"].NextMilestone)
	require.Equal(t, models.TrainingCompleted, spy.updated["empathy"])
}

func TestOnLogoutStampsLastLogoutAndFlushes(t *testing.T) {
	tracker, _, ctx := newTestTracker(t)
	_, err := tracker.OnLogin(ctx)
	require.NoError(t, err)

	require.NoError(t, tracker.OnLogout(ctx, map[string]int{"active_listening": 4}))

	plan, err := tracker.manager.TrainingPlan(ctx)
	require.NoError(t, err)
	require.NotNil(t, plan.LastLogout)
	require.Equal(t, 4, plan.Trainings["conversation_training"].CurrentLevel)
}
