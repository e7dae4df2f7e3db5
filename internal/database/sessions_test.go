package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSessionsLifecycle(t *testing.T) {
	ctx := context.Background()
	userID := createTestUser(t, "user_sessions")

	active := CreateSessionParams{
		ID:           uuid.New(),
		UserID:       userID,
		RefreshToken: "refresh-active",
		UserAgent:    "test-agent",
		ClientIP:     "127.0.0.1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	expired := active
	expired.ID = uuid.New()
	expired.RefreshToken = "refresh-expired"
	expired.ExpiresAt = time.Now().Add(-time.Hour)

	require.NoError(t, testStore.CreateSession(ctx, active))
	require.NoError(t, testStore.CreateSession(ctx, expired))

	user, err := testStore.GetUserByRefreshToken(ctx, "refresh-active")
	require.NoError(t, err)
	require.Equal(t, userID, user.ID)

	user, err = testStore.GetUserByRefreshToken(ctx, "refresh-expired")
	require.NoError(t, err)
	require.Nil(t, user)

	sessions, err := testStore.ListSessionsForUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, active.ID, sessions[0].ID)
	require.Equal(t, userID, sessions[0].UserID)
	require.False(t, sessions[0].Expired(time.Now()))
	require.True(t, sessions[0].Expired(sessions[0].ExpiresAt))

	removed, err := testStore.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, removed, int64(1))

	ok, err := testStore.DeleteSessionByID(ctx, active.ID, userID+1000)
	require.NoError(t, err)
	require.False(t, ok, "sessions of other users cannot be removed")

	require.NoError(t, testStore.DeleteSessionByRefreshToken(ctx, "refresh-active"))
	sessions, err = testStore.ListSessionsForUser(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func TestEventJournal(t *testing.T) {
	ctx := context.Background()
	userID := createTestUser(t, "user_events")

	first, err := testStore.LogEvent(ctx, userID, "node_created", map[string]string{"id": "a"})
	require.NoError(t, err)
	second, err := testStore.LogEvent(ctx, userID, "node_deleted", map[string]string{"id": "a"})
	require.NoError(t, err)
	require.Greater(t, second.ID, first.ID)

	events, err := testStore.GetEventsSince(ctx, userID, 0, 100)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.JSONEq(t, `{"id":"a"}`, string(events[0].Payload))

	events, err = testStore.GetEventsSince(ctx, userID, first.ID, 100)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "node_deleted", events[0].EventType)

	events, err = testStore.GetEventsSince(ctx, userID, 0, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, first.ID, events[0].ID)
}
