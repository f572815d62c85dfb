package websocket

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/syncboard/syncboard/pkg/models"
)

// PresenceTracker maintains the live roster keyed by connection id. One
// user with two tabs appears twice; each connection leaves independently.
type PresenceTracker interface {
	// Join records a logged-in connection. Re-joining the same connection
	// replaces the previous identity.
	Join(ctx context.Context, connID string, user models.UserRef) error

	// Leave removes a connection and returns the identity it held, if any.
	Leave(ctx context.Context, connID string) (*models.UserRef, error)

	// Active returns the current roster, ordered by username for a stable
	// snapshot.
	Active(ctx context.Context) ([]models.UserRef, error)
}

// MemoryPresenceTracker tracks presence for a single-process deployment.
type MemoryPresenceTracker struct {
	mu    sync.RWMutex
	users map[string]models.UserRef
}

func NewMemoryPresenceTracker() *MemoryPresenceTracker {
	return &MemoryPresenceTracker{users: make(map[string]models.UserRef)}
}

func (t *MemoryPresenceTracker) Join(_ context.Context, connID string, user models.UserRef) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.users[connID] = user
	return nil
}

func (t *MemoryPresenceTracker) Leave(_ context.Context, connID string) (*models.UserRef, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	user, ok := t.users[connID]
	if !ok {
		return nil, nil
	}
	delete(t.users, connID)
	return &user, nil
}

func (t *MemoryPresenceTracker) Active(_ context.Context) ([]models.UserRef, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	roster := make([]models.UserRef, 0, len(t.users))
	for _, user := range t.users {
		roster = append(roster, user)
	}
	sortRoster(roster)
	return roster, nil
}

// RedisPresenceTracker shares the roster across server instances through
// a Redis hash. Connections from every instance land in the same hash, so
// each instance broadcasts the full cluster roster.
type RedisPresenceTracker struct {
	client *redis.Client
	key    string
}

func NewRedisPresenceTracker(client *redis.Client) *RedisPresenceTracker {
	return &RedisPresenceTracker{client: client, key: "presence:connections"}
}

func (t *RedisPresenceTracker) Join(ctx context.Context, connID string, user models.UserRef) error {
	data, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "failed to marshal presence entry")
	}
	if err := t.client.HSet(ctx, t.key, connID, data).Err(); err != nil {
		return errors.Wrap(err, "failed to record presence")
	}
	return nil
}

func (t *RedisPresenceTracker) Leave(ctx context.Context, connID string) (*models.UserRef, error) {
	data, err := t.client.HGet(ctx, t.key, connID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read presence entry")
	}
	if err := t.client.HDel(ctx, t.key, connID).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to remove presence entry")
	}
	var user models.UserRef
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, errors.Wrap(err, "corrupt presence entry")
	}
	return &user, nil
}

func (t *RedisPresenceTracker) Active(ctx context.Context) ([]models.UserRef, error) {
	entries, err := t.client.HGetAll(ctx, t.key).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read roster")
	}
	roster := make([]models.UserRef, 0, len(entries))
	for _, data := range entries {
		var user models.UserRef
		if err := json.Unmarshal([]byte(data), &user); err != nil {
			continue
		}
		roster = append(roster, user)
	}
	sortRoster(roster)
	return roster, nil
}

func sortRoster(roster []models.UserRef) {
	sort.Slice(roster, func(i, j int) bool {
		if roster[i].Username == roster[j].Username {
			return roster[i].ID.String() < roster[j].ID.String()
		}
		return roster[i].Username < roster[j].Username
	})
}
