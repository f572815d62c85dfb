package websocket

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncboard/syncboard/pkg/models"
)

func trackersUnderTest(t *testing.T) map[string]PresenceTracker {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]PresenceTracker{
		"memory": NewMemoryPresenceTracker(),
		"redis":  NewRedisPresenceTracker(client),
	}
}

func TestPresenceTrackerRoster(t *testing.T) {
	for name, tracker := range trackersUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			zoe := models.UserRef{ID: uuid.New(), Username: "zoe"}
			amy := models.UserRef{ID: uuid.New(), Username: "amy"}

			require.NoError(t, tracker.Join(ctx, "conn-1", zoe))
			require.NoError(t, tracker.Join(ctx, "conn-2", amy))

			roster, err := tracker.Active(ctx)
			require.NoError(t, err)
			require.Len(t, roster, 2)
			assert.Equal(t, "amy", roster[0].Username)
			assert.Equal(t, "zoe", roster[1].Username)

			left, err := tracker.Leave(ctx, "conn-1")
			require.NoError(t, err)
			require.NotNil(t, left)
			assert.Equal(t, zoe.ID, left.ID)

			roster, err = tracker.Active(ctx)
			require.NoError(t, err)
			require.Len(t, roster, 1)
			assert.Equal(t, "amy", roster[0].Username)
		})
	}
}

func TestPresenceTrackerSameUserTwoConnections(t *testing.T) {
	for name, tracker := range trackersUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			amy := models.UserRef{ID: uuid.New(), Username: "amy"}

			require.NoError(t, tracker.Join(ctx, "tab-1", amy))
			require.NoError(t, tracker.Join(ctx, "tab-2", amy))

			roster, err := tracker.Active(ctx)
			require.NoError(t, err)
			assert.Len(t, roster, 2, "each connection appears independently")

			_, err = tracker.Leave(ctx, "tab-1")
			require.NoError(t, err)
			roster, err = tracker.Active(ctx)
			require.NoError(t, err)
			assert.Len(t, roster, 1, "closing one tab keeps the other present")
		})
	}
}

func TestPresenceTrackerLeaveUnknownConnection(t *testing.T) {
	for name, tracker := range trackersUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			left, err := tracker.Leave(context.Background(), "never-joined")
			require.NoError(t, err)
			assert.Nil(t, left)
		})
	}
}
