package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fitbuddy/fitbuddy-hub/internal/application/command"
	"github.com/fitbuddy/fitbuddy-hub/internal/application/query"
	"github.com/fitbuddy/fitbuddy-hub/internal/infrastructure/messaging"
	"github.com/fitbuddy/fitbuddy-hub/internal/infrastructure/persistence/memory"
	"github.com/fitbuddy/fitbuddy-hub/internal/interface/http/handlers"
	"github.com/fitbuddy/fitbuddy-hub/pkg/logger"
)

func newTestServer(t *testing.T, customize func(*Dependencies)) *Server {
	t.Helper()

	store := memory.NewStore()
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{AsyncMode: false})
	t.Cleanup(func() { _ = bus.Close() })

	profiles, workouts, buddies, badges := store.Profiles(), store.Workouts(), store.Buddies(), store.Achievements()
	snapshots := query.NewSnapshotLoader(profiles, workouts)

	deps := Dependencies{
		GetLeaderboard:       query.NewGetLeaderboardHandler(snapshots),
		GetCohortLeaderboard: query.NewGetCohortLeaderboardHandler(snapshots, buddies),
		GetUserRank:          query.NewGetUserRankHandler(snapshots),
		FindBuddies:          query.NewFindBuddiesHandler(profiles, buddies),
		GetProfile:           query.NewGetProfileHandler(profiles),
		ListWorkouts:         query.NewListWorkoutsHandler(profiles, workouts),
		ListBuddies:          query.NewListBuddiesHandler(buddies),
		ListAchievements:     query.NewListAchievementsHandler(badges),

		CreateProfile:       command.NewCreateProfileHandler(profiles, bus),
		UpdateProfile:       command.NewUpdateProfileHandler(profiles, bus),
		DeleteProfile:       command.NewDeleteProfileHandler(profiles, bus),
		LogWorkout:          command.NewLogWorkoutHandler(profiles, workouts, bus),
		DeleteWorkout:       command.NewDeleteWorkoutHandler(workouts, bus),
		SendBuddyRequest:    command.NewSendBuddyRequestHandler(profiles, buddies, bus),
		RespondBuddyRequest: command.NewRespondBuddyRequestHandler(buddies, bus),

		Events:  bus,
		Logger:  logger.Discard(),
		Version: "test",
	}
	if customize != nil {
		customize(&deps)
	}

	srv, err := NewServer(DefaultConfig(), deps)
	require.NoError(t, err)
	return srv
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *ResponseMeta   `json:"meta"`
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func createUser(t *testing.T, h http.Handler, id string) {
	t.Helper()
	rec, _ := do(t, h, http.MethodPost, "/api/v1/users", `{"id":"`+id+`","username":"`+id+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestProfileWorkoutAndLeaderboardFlow(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec, env := do(t, h, http.MethodPost, "/api/v1/users",
		`{"id":"alice","username":"alice","goal":"strength","latitude":40.0,"longitude":-74.0}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var created query.ProfileDTO
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "alice", created.ID)
	require.NotNil(t, created.Latitude)

	createUser(t, h, "bob")

	rec, _ = do(t, h, http.MethodPost, "/api/v1/users/alice/workouts", `{"type":"run","duration_minutes":30,"calories_burned":300}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec, _ = do(t, h, http.MethodPost, "/api/v1/users/bob/workouts", `{"type":"swim","duration_minutes":10}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env = do(t, h, http.MethodGet, "/api/v1/leaderboard?type=points&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var board query.GetLeaderboardResult
	require.NoError(t, json.Unmarshal(env.Data, &board))
	require.Len(t, board.Entries, 1)
	assert.Equal(t, "alice", board.Entries[0].ID)
	assert.Equal(t, 2, env.Meta.TotalCount)

	rec, env = do(t, h, http.MethodGet, "/api/v1/leaderboard/rank/bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rank query.GetUserRankResult
	require.NoError(t, json.Unmarshal(env.Data, &rank))
	require.NotNil(t, rank.Rank)
	assert.Equal(t, 2, *rank.Rank)

	rec, env = do(t, h, http.MethodGet, "/api/v1/users/alice/workouts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var workouts []query.WorkoutDTO
	require.NoError(t, json.Unmarshal(env.Data, &workouts))
	require.Len(t, workouts, 1)

	rec, _ = do(t, h, http.MethodDelete, "/api/v1/workouts/"+workouts[0].ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = do(t, h, http.MethodPatch, "/api/v1/users/alice", `{"preferred_workout":"yoga","clear_location":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated query.ProfileDTO
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Nil(t, updated.Latitude)
	require.NotNil(t, updated.PreferredWorkout)
	assert.Equal(t, "yoga", *updated.PreferredWorkout)

	rec, _ = do(t, h, http.MethodDelete, "/api/v1/users/alice", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = do(t, h, http.MethodGet, "/api/v1/users/alice", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuddyEndpoints(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	createUser(t, h, "alice")
	createUser(t, h, "bob")

	rec, env := do(t, h, http.MethodPost, "/api/v1/buddies", `{"requester_id":"alice","addressee_id":"bob"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var conn query.ConnectionDTO
	require.NoError(t, json.Unmarshal(env.Data, &conn))

	rec, _ = do(t, h, http.MethodPost, "/api/v1/buddies", `{"requester_id":"bob","addressee_id":"alice"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/buddies/"+conn.ID+"/respond", `{"responder_id":"alice","accept":true}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/buddies/"+conn.ID+"/respond", `{"responder_id":"bob"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/buddies/"+conn.ID+"/respond", `{"responder_id":"bob","accept":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = do(t, h, http.MethodGet, "/api/v1/users/alice/buddies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list query.ListBuddiesResult
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, []string{"bob"}, list.IDs)

	rec, env = do(t, h, http.MethodGet, "/api/v1/leaderboard/cohort/alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cohort query.GetCohortLeaderboardResult
	require.NoError(t, json.Unmarshal(env.Data, &cohort))
	assert.Equal(t, 2, cohort.CohortSize)

	rec, env = do(t, h, http.MethodGet, "/api/v1/users/alice/matches?exclude_connected=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var matches query.FindBuddiesResult
	require.NoError(t, json.Unmarshal(env.Data, &matches))
	assert.Empty(t, matches.Matches)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/users/alice/achievements", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	createUser(t, h, "alice")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown user", http.MethodGet, "/api/v1/users/ghost", "", http.StatusNotFound, "not_found"},
		{"missing username", http.MethodPost, "/api/v1/users", `{"goal":"x"}`, http.StatusBadRequest, "validation_failed"},
		{"malformed body", http.MethodPost, "/api/v1/users", `{"username":`, http.StatusBadRequest, "invalid_request"},
		{"unknown field", http.MethodPost, "/api/v1/users", `{"username":"x","role":"admin"}`, http.StatusBadRequest, "invalid_request"},
		{"half a location", http.MethodPost, "/api/v1/users", `{"username":"carol","latitude":10}`, http.StatusBadRequest, "validation_failed"},
		{"duplicate username", http.MethodPost, "/api/v1/users", `{"username":"alice"}`, http.StatusConflict, "conflict"},
		{"bad limit", http.MethodGet, "/api/v1/leaderboard?limit=abc", "", http.StatusBadRequest, "invalid_request"},
		{"negative calories", http.MethodPost, "/api/v1/users/alice/workouts", `{"type":"run","calories_burned":-5}`, http.StatusBadRequest, "validation_failed"},
		{"workout for ghost", http.MethodPost, "/api/v1/users/ghost/workouts", `{"type":"run"}`, http.StatusNotFound, "not_found"},
		{"self request", http.MethodPost, "/api/v1/buddies", `{"requester_id":"alice","addressee_id":"alice"}`, http.StatusBadRequest, "validation_failed"},
		{"unknown status", http.MethodGet, "/api/v1/users/alice/buddies?status=blocked", "", http.StatusBadRequest, "validation_failed"},
		{"empty update", http.MethodPatch, "/api/v1/users/alice", `{}`, http.StatusBadRequest, "validation_failed"},
		{"malformed workout id", http.MethodDelete, "/api/v1/workouts/not-a-uuid", "", http.StatusNotFound, "not_found"},
		{"malformed connection id", http.MethodPost, "/api/v1/buddies/not-a-uuid/respond", `{"responder_id":"alice","accept":true}`, http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.False(t, env.Success)
		})
	}
}

func TestWriteRoutesRequireAPIKey(t *testing.T) {
	hash, err := handlers.HashAPIKey("s3cret", bcrypt.MinCost)
	require.NoError(t, err)

	h := newTestServer(t, func(d *Dependencies) {
		d.Auth = handlers.NewAPIKeyAuth("X-API-Key", []string{hash})
	}).Handler()

	rec, _ := do(t, h, http.MethodPost, "/api/v1/users", `{"username":"alice"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/users", `{"username":"alice"}`, "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/users", `{"username":"alice"}`, "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/leaderboard", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiting(t *testing.T) {
	h := newTestServer(t, func(d *Dependencies) {
		d.RateLimiter = handlers.NewLocalRateLimiter(2, time.Hour)
	}).Handler()

	for i := 0; i < 2; i++ {
		rec, _ := do(t, h, http.MethodGet, "/api/v1/leaderboard", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, env := do(t, h, http.MethodGet, "/api/v1/leaderboard", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", env.Error.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/leaderboard", "", "X-Forwarded-For", "10.0.0.9")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnconfiguredRoutesAnswer501(t *testing.T) {
	srv, err := NewServer(DefaultConfig(), Dependencies{Logger: logger.Discard()})
	require.NoError(t, err)

	rec, _ := do(t, srv.Handler(), http.MethodGet, "/api/v1/leaderboard", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	rec, _ = do(t, srv.Handler(), http.MethodGet, "/api/v1/events", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	rec, _ = do(t, srv.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthReportsFailingChecks(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddCheck("database", handlers.NewPingCheck(memory.NewStore()))

	h := newTestServer(t, func(d *Dependencies) { d.HealthChecker = checker }).Handler()

	rec, _ := do(t, h, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	checker.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })

	rec, env := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var status handlers.HealthStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.False(t, status.Checks["redis"].Healthy)
	assert.True(t, status.Checks["database"].Healthy)

	rec, _ = do(t, h, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEventStream(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	createUser(t, srv.Handler(), "alice")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/events?topics=workout.logged"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.Eventually(t, func() bool { return srv.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	// Filtered out: the client only asked for workout.logged.
	rec, _ := do(t, srv.Handler(), http.MethodPatch, "/api/v1/users/alice", `{"goal":"cardio"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, srv.Handler(), http.MethodPost, "/api/v1/users/alice/workouts", `{"type":"run","duration_minutes":20}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg eventMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "workout.logged", string(msg.Type))
	assert.Equal(t, "alice", msg.Payload["user_id"])

	rec, _ = do(t, srv.Handler(), http.MethodGet, "/api/v1/events?topics=nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	srv.hub.Close()
	assert.Equal(t, 0, srv.hub.ClientCount())
}
