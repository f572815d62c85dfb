package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncboard/syncboard/internal/repository/memory"
	"github.com/syncboard/syncboard/internal/services"
	"github.com/syncboard/syncboard/pkg/models"
)

const testSecret = "test-secret"

type apiFixture struct {
	server *Server
	locks  *services.MemoryLockCoordinator
	users  *memory.UserStore

	alice uuid.UUID
	bob   uuid.UUID
}

func newAPIFixture(t *testing.T, seedUsers bool) *apiFixture {
	t.Helper()

	users := memory.NewUserStore()
	locks := services.NewMemoryLockCoordinator()

	f := &apiFixture{
		locks: locks,
		users: users,
		alice: uuid.New(),
		bob:   uuid.New(),
	}
	if seedUsers {
		users.Add(&models.User{ID: f.alice, Username: "alice"})
		users.Add(&models.User{ID: f.bob, Username: "bob"})
	}

	svc := services.NewTaskService(services.TaskServiceConfig{
		Tasks:   memory.NewTaskStore(),
		Actions: memory.NewActionStore(),
		Users:   users,
		Locks:   locks,
	})

	f.server = NewServer(Config{AuthSecret: testSecret}, Deps{Tasks: svc})
	return f
}

func (f *apiFixture) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (f *apiFixture) do(t *testing.T, userID uuid.UUID, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+f.token(t, userID))
	}
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeTask(t *testing.T, rec *httptest.ResponseRecorder) models.TaskView {
	t.Helper()
	var view models.TaskView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

func TestAuthRequired(t *testing.T) {
	f := newAPIFixture(t, true)

	rec := f.do(t, uuid.Nil, http.MethodGet, "/api/tasks", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		rec := httptest.NewRecorder()
		f.server.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: uuid.New().String()})
		signed, err := token.SignedString([]byte("other-secret"))
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		rec := httptest.NewRecorder()
		f.server.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("healthz is public", func(t *testing.T) {
		rec := f.do(t, uuid.Nil, http.MethodGet, "/healthz", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t, true)

	rec := f.do(t, f.alice, http.MethodPost, "/api/tasks", map[string]string{
		"title": "Wire the burndown chart",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeTask(t, rec)
	assert.Equal(t, 1, created.Version)
	require.NotNil(t, created.CreatedBy)
	assert.Equal(t, "alice", created.CreatedBy.Username)

	rec = f.do(t, f.alice, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.TaskView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = f.do(t, f.bob, http.MethodPut, "/api/tasks/"+created.ID.String(), map[string]string{
		"status": "In Progress",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeTask(t, rec)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, models.TaskStatusInProgress, updated.Status)

	rec = f.do(t, f.alice, http.MethodDelete, "/api/tasks/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, f.alice, http.MethodDelete, "/api/tasks/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTitleValidationOverHTTP(t *testing.T) {
	f := newAPIFixture(t, true)

	rec := f.do(t, f.alice, http.MethodPost, "/api/tasks", map[string]string{"title": "Todo"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, f.alice, http.MethodPost, "/api/tasks", map[string]string{"title": "Fix login"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(t, f.bob, http.MethodPost, "/api/tasks", map[string]string{"title": "Fix login"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLockConflictOverHTTP(t *testing.T) {
	f := newAPIFixture(t, true)

	rec := f.do(t, f.alice, http.MethodPost, "/api/tasks", map[string]string{"title": "Contended"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeTask(t, rec)

	rec = f.do(t, f.bob, http.MethodPost, fmt.Sprintf("/api/tasks/%s/start-editing", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	locked := decodeTask(t, rec)
	assert.True(t, locked.IsBeingEdited)

	rec = f.do(t, f.alice, http.MethodPut, "/api/tasks/"+created.ID.String(), map[string]string{
		"description": "blocked edit",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		Message        string           `json:"message"`
		Conflict       bool             `json:"conflict"`
		CurrentVersion *models.TaskView `json:"currentVersion"`
		LockedBy       *uuid.UUID       `json:"lockedBy"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Conflict)
	require.NotNil(t, body.CurrentVersion)
	assert.Equal(t, 1, body.CurrentVersion.Version)
	require.NotNil(t, body.LockedBy)
	assert.Equal(t, f.bob, *body.LockedBy)

	t.Run("non-holder cannot cancel", func(t *testing.T) {
		rec := f.do(t, f.alice, http.MethodPost, fmt.Sprintf("/api/tasks/%s/cancel-editing", created.ID), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("holder cancels and edit goes through", func(t *testing.T) {
		rec := f.do(t, f.bob, http.MethodPost, fmt.Sprintf("/api/tasks/%s/cancel-editing", created.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, f.alice, http.MethodPut, "/api/tasks/"+created.ID.String(), map[string]string{
			"description": "now unblocked",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestResolveConflictOverHTTP(t *testing.T) {
	f := newAPIFixture(t, true)

	rec := f.do(t, f.alice, http.MethodPost, "/api/tasks", map[string]string{"title": "Diverged"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeTask(t, rec)

	rec = f.do(t, f.bob, http.MethodPut, fmt.Sprintf("/api/tasks/%s/resolve-conflict", created.ID), map[string]interface{}{
		"resolution": "yours",
		"task":       map[string]string{"description": "client copy"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resolved := decodeTask(t, rec)
	assert.Equal(t, 2, resolved.Version)
	assert.Equal(t, "client copy", resolved.Description)

	t.Run("invalid resolution", func(t *testing.T) {
		rec := f.do(t, f.bob, http.MethodPut, fmt.Sprintf("/api/tasks/%s/resolve-conflict", created.ID), map[string]interface{}{
			"resolution": "theirs",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSmartAssignOverHTTP(t *testing.T) {
	f := newAPIFixture(t, true)

	rec := f.do(t, f.alice, http.MethodPost, "/api/tasks", map[string]string{"title": "Unowned"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeTask(t, rec)

	rec = f.do(t, f.alice, http.MethodPost, fmt.Sprintf("/api/tasks/%s/smart-assign", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Task    models.TaskView `json:"task"`
		Message string          `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Task.AssignedTo)
	assert.Equal(t, "alice", body.Task.AssignedTo.Username)
	assert.Contains(t, body.Message, "alice")
}

func TestSmartAssignWithoutUsers(t *testing.T) {
	f := newAPIFixture(t, false)

	// Task created directly in the store since the creator has no user row.
	rec := f.do(t, f.alice, http.MethodPost, "/api/tasks", map[string]string{"title": "Nobody home"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeTask(t, rec)

	rec = f.do(t, f.alice, http.MethodPost, fmt.Sprintf("/api/tasks/%s/smart-assign", created.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRecentActionsOverHTTP(t *testing.T) {
	f := newAPIFixture(t, true)

	rec := f.do(t, f.alice, http.MethodPost, "/api/tasks", map[string]string{"title": "Logged"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, f.bob, http.MethodGet, "/api/actions/recent", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var feed []models.ActionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feed))
	require.Len(t, feed, 1)
	assert.Equal(t, models.ActionCreate, feed[0].ActionType)
	require.NotNil(t, feed[0].User)
	assert.Equal(t, "alice", feed[0].User.Username)
}

func TestMalformedTaskID(t *testing.T) {
	f := newAPIFixture(t, true)
	rec := f.do(t, f.alice, http.MethodPut, "/api/tasks/not-a-uuid", map[string]string{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
