package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexus-assistant/core/internal/crypto"
	"github.com/nexus-assistant/core/internal/repository/memstore"
	"github.com/nexus-assistant/core/pkg/models"
)

func newManager(t *testing.T, userID int64) (*Manager, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	key, err := crypto.NewKey()
	require.NoError(t, err)
	return New(store, userID, key), store
}

func TestInternalPromptFilterRejectsAllSixTriggers(t *testing.T) {
	triggers := []string{
		"CONVERSATION MONITORING REQUEST: check this user",
		"INSTRUCTIONS: do something",
		"Should you intervene in this chat?",
		"NO_INTERVENTION_NEEDED",
		"You are monitoring this conversation for safety",
		"Analyze if intervention is needed here",
	}
	m, _ := newManager(t, 1)
	ctx := context.Background()

	for _, content := range triggers {
		err := m.Append(ctx, models.Message{Role: models.RoleSystem, Content: content}, models.MessageTypeGeneral)
		require.NoError(t, err)
	}

	msgs, err := m.Recall(ctx, 0, nil)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestAppendAcceptsOrdinaryMessage(t *testing.T) {
	m, _ := newManager(t, 1)
	ctx := context.Background()

	err := m.Append(ctx, models.Message{Role: models.RoleUser, Content: "Hello there"}, models.MessageTypeAI)
	require.NoError(t, err)

	msgs, err := m.Recall(ctx, 0, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "Hello there", msgs[0].Content)
	require.False(t, msgs[0].Timestamp.IsZero())
}

func TestBucketBoundsAfterTrim(t *testing.T) {
	m, _ := newManager(t, 1)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		require.NoError(t, m.Append(ctx, models.Message{Role: models.RoleUser, Content: "g"}, models.MessageTypeGeneral))
	}
	for i := 0; i < 25; i++ {
		require.NoError(t, m.Append(ctx, models.Message{Role: models.RoleAssistant, Content: "a"}, models.MessageTypeAI))
	}

	require.NoError(t, m.Trim(ctx, 10, 20))

	m.mu.Lock()
	general := len(m.view.GeneralChat)
	ai := len(m.view.AIConv)
	all := len(m.view.Messages)
	m.mu.Unlock()

	require.LessOrEqual(t, general, 10)
	require.LessOrEqual(t, ai, 20)
	require.LessOrEqual(t, all, 30)

	m.mu.Lock()
	for i := 1; i < len(m.view.Messages); i++ {
		require.False(t, m.view.Messages[i].Timestamp.Before(m.view.Messages[i-1].Timestamp))
	}
	m.mu.Unlock()
}

func TestFlushRoundTripsThroughRepository(t *testing.T) {
	m, store := newManager(t, 1)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, models.Message{Role: models.RoleUser, Content: "persisted"}, models.MessageTypeAI))
	require.NoError(t, m.Flush(ctx))

	blob, err := store.GetEncryptedMemory(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, blob)
	require.True(t, crypto.IsEncrypted(*blob))
}

func TestUserIsolation(t *testing.T) {
	store := memstore.New()
	key1, err := crypto.NewKey()
	require.NoError(t, err)
	key2, err := crypto.NewKey()
	require.NoError(t, err)

	m1 := New(store, 1, key1)
	m2 := New(store, 2, key2)
	ctx := context.Background()

	require.NoError(t, m1.Append(ctx, models.Message{Role: models.RoleUser, Content: "user one's secret"}, models.MessageTypeAI))
	require.NoError(t, m1.Flush(ctx))

	msgs, err := m2.Recall(ctx, 0, nil)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestClearResetsView(t *testing.T) {
	m, _ := newManager(t, 1)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, models.Message{Role: models.RoleUser, Content: "hi"}, models.MessageTypeAI))
	require.NoError(t, m.Clear(ctx))

	msgs, err := m.Recall(ctx, 0, nil)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestDiscardDropsUnflushedState(t *testing.T) {
	m, store := newManager(t, 1)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, models.Message{Role: models.RoleUser, Content: "never flushed"}, models.MessageTypeAI))
	m.Discard()

	blob, err := store.GetEncryptedMemory(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, blob)
}

func TestRecallFilteredByType(t *testing.T) {
	m, _ := newManager(t, 1)
	ctx := context.Background()
	require.NoError(t, m.Append(ctx, models.Message{Content: "g1"}, models.MessageTypeGeneral))
	require.NoError(t, m.Append(ctx, models.Message{Content: "a1"}, models.MessageTypeAI))

	aiType := models.MessageTypeAI
	msgs, err := m.Recall(ctx, 0, &aiType)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "a1", msgs[0].Content)
}

func TestTimestampMonotonicityAcrossAppends(t *testing.T) {
	m, _ := newManager(t, 1)
	ctx := context.Background()
	require.NoError(t, m.Append(ctx, models.Message{Content: "first", Timestamp: time.Now()}, models.MessageTypeAI))
	time.Sleep(time.Millisecond)
	require.NoError(t, m.Append(ctx, models.Message{Content: "second"}, models.MessageTypeAI))

	msgs, err := m.Recall(ctx, 0, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.True(t, msgs[1].Timestamp.After(msgs[0].Timestamp) || msgs[1].Timestamp.Equal(msgs[0].Timestamp))
}
