package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/fitbuddy/fitbuddy-hub/internal/application/command"
	"github.com/fitbuddy/fitbuddy-hub/internal/application/query"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/profile"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
	"github.com/fitbuddy/fitbuddy-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"name":    "FitBuddy Hub API",
		"version": s.deps.Version,
		"endpoints": map[string]string{
			"health":      "/health",
			"leaderboard": "/api/v1/leaderboard",
			"users":       "/api/v1/users/{id}",
			"buddies":     "/api/v1/buddies",
			"events":      "/api/v1/events",
		},
	})
}

// handleHealth reports the status of every registered dependency.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"uptime":  s.Uptime().Round(time.Second).String(),
			"version": s.deps.Version,
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// handleReady handles the readiness probe.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSONErrorWithDetails(w, http.StatusServiceUnavailable, "not_ready", "Service is not ready", status.Message)
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/leaderboard?type=&limit=
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.GetLeaderboard.Handle(r.Context(), query.GetLeaderboardQuery{
		Metric: r.URL.Query().Get("type"),
		Limit:  limit,
	})
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch leaderboard")
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: result.TotalRanked})
}

// handleGetUserRank handles GET /api/v1/leaderboard/rank/{userId}?type=
func (s *Server) handleGetUserRank(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetUserRank.Handle(r.Context(), query.GetUserRankQuery{
		UserID: r.PathValue("userId"),
		Metric: r.URL.Query().Get("type"),
	})
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch rank")
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleGetCohortLeaderboard handles GET /api/v1/leaderboard/cohort/{userId}?limit=
func (s *Server) handleGetCohortLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.GetCohortLeaderboard.Handle(r.Context(), query.GetCohortLeaderboardQuery{
		UserID: r.PathValue("userId"),
		Limit:  limit,
	})
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch cohort leaderboard")
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: result.CohortSize})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleCreateProfile handles POST /api/v1/users
func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := s.deps.CreateProfile.Handle(r.Context(), command.CreateProfileCommand{
		ID:               req.ID,
		Username:         req.Username,
		AvatarURL:        req.AvatarURL,
		Goal:             req.Goal,
		PreferredWorkout: req.PreferredWorkout,
		Latitude:         req.Latitude,
		Longitude:        req.Longitude,
	})
	if err != nil {
		s.writeError(w, r, err, "Failed to create profile")
		return
	}

	logger.FromContext(r.Context()).Info("profile created", logger.UserID(result.ID))
	writeJSON(w, r, http.StatusCreated, result)
}

// handleGetProfile handles GET /api/v1/users/{id}
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetProfile.Handle(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch profile")
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleUpdateProfile handles PATCH /api/v1/users/{id}
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := s.deps.UpdateProfile.Handle(r.Context(), command.UpdateProfileCommand{
		UserID: r.PathValue("id"),
		Fields: profile.UpdateFields{
			Username:         req.Username,
			AvatarURL:        req.AvatarURL,
			Goal:             req.Goal,
			PreferredWorkout: req.PreferredWorkout,
			Latitude:         req.Latitude,
			Longitude:        req.Longitude,
			ClearLocation:    req.ClearLocation,
		},
	})
	if err != nil {
		s.writeError(w, r, err, "Failed to update profile")
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleDeleteProfile handles DELETE /api/v1/users/{id}
func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.DeleteProfile.Handle(r.Context(), id); err != nil {
		s.writeError(w, r, err, "Failed to delete profile")
		return
	}

	logger.FromContext(r.Context()).Info("profile deleted", logger.UserID(id))
	w.WriteHeader(http.StatusNoContent)
}

// handleFindBuddies handles GET /api/v1/users/{id}/matches?limit=&min_score=&exclude_connected=
func (s *Server) handleFindBuddies(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	minScore, err := queryInt(r, "min_score", 0)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.FindBuddies.Handle(r.Context(), query.FindBuddiesQuery{
		UserID:           r.PathValue("id"),
		Limit:            limit,
		MinScore:         minScore,
		ExcludeConnected: queryBool(r, "exclude_connected"),
	})
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch matches")
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: result.CandidatesCount})
}

// handleListAchievements handles GET /api/v1/users/{id}/achievements
func (s *Server) handleListAchievements(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.ListAchievements.Handle(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch achievements")
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// WORKOUT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListWorkouts handles GET /api/v1/users/{id}/workouts?limit=
func (s *Server) handleListWorkouts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.ListWorkouts.Handle(r.Context(), query.ListWorkoutsQuery{
		UserID: r.PathValue("id"),
		Limit:  limit,
	})
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch workouts")
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: len(result)})
}

// handleLogWorkout handles POST /api/v1/users/{id}/workouts
func (s *Server) handleLogWorkout(w http.ResponseWriter, r *http.Request) {
	var req logWorkoutRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	cmd := command.LogWorkoutCommand{
		UserID:          r.PathValue("id"),
		Type:            req.Type,
		DurationMinutes: req.DurationMinutes,
		CaloriesBurned:  req.CaloriesBurned,
	}
	if req.PerformedAt != nil {
		cmd.PerformedAt = *req.PerformedAt
	}

	result, err := s.deps.LogWorkout.Handle(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err, "Failed to log workout")
		return
	}

	logger.FromContext(r.Context()).Info("workout logged",
		logger.UserID(result.UserID),
		logger.WorkoutID(result.ID),
	)
	writeJSON(w, r, http.StatusCreated, result)
}

// handleDeleteWorkout handles DELETE /api/v1/workouts/{id}
func (s *Server) handleDeleteWorkout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.DeleteWorkout.Handle(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err, "Failed to delete workout")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ══════════════════════════════════════════════════════════════════════════════
// BUDDY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListBuddies handles GET /api/v1/users/{id}/buddies?status=
func (s *Server) handleListBuddies(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.ListBuddies.Handle(r.Context(), query.ListBuddiesQuery{
		UserID: r.PathValue("id"),
		Status: r.URL.Query().Get("status"),
	})
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch buddies")
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: len(result.IDs)})
}

// handleSendBuddyRequest handles POST /api/v1/buddies
func (s *Server) handleSendBuddyRequest(w http.ResponseWriter, r *http.Request) {
	var req sendBuddyRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := s.deps.SendBuddyRequest.Handle(r.Context(), command.SendBuddyRequestCommand{
		RequesterID: req.RequesterID,
		AddresseeID: req.AddresseeID,
	})
	if err != nil {
		s.writeError(w, r, err, "Failed to send buddy request")
		return
	}
	writeJSON(w, r, http.StatusCreated, result)
}

// handleRespondBuddyRequest handles POST /api/v1/buddies/{id}/respond
func (s *Server) handleRespondBuddyRequest(w http.ResponseWriter, r *http.Request) {
	var req respondBuddyRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := s.deps.RespondBuddyRequest.Handle(r.Context(), command.RespondBuddyRequestCommand{
		ConnectionID: r.PathValue("id"),
		ResponderID:  req.ResponderID,
		Accept:       *req.Accept,
	})
	if err != nil {
		s.writeError(w, r, err, "Failed to respond to buddy request")
		return
	}

	logger.FromContext(r.Context()).Info("buddy request answered",
		logger.ConnectionID(result.ID),
		logger.String("status", result.Status),
	)
	writeJSON(w, r, http.StatusOK, result)
}

// handleEvents handles GET /api/v1/events?topics=
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeError maps domain error kinds to HTTP statuses. Unclassified errors
// are logged and answered with the generic failure message only.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, failure string) {
	status, code := classifyError(err)
	log := logger.FromContext(r.Context())

	if status == http.StatusInternalServerError {
		log.Error(failure, logger.Err(err))
		writeJSONError(w, status, code, failure)
		return
	}

	log.Debug("request rejected", logger.StatusCode(status), logger.Err(err))
	writeJSONError(w, status, code, clientMessage(err, status))
}

func classifyError(err error) (int, string) {
	switch {
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_failed"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case shared.IsForbidden(err):
		return http.StatusForbidden, "forbidden"
	case shared.IsConflict(err):
		return http.StatusConflict, "conflict"
	case errors.Is(err, shared.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// clientMessage returns the message of the innermost domain error. For 400s
// the plain error it wraps is appended, which carries the validation detail.
func clientMessage(err error, status int) string {
	var innermost *shared.DomainError
	for e := err; e != nil; e = errors.Unwrap(e) {
		if de, ok := e.(*shared.DomainError); ok {
			innermost = de
		}
	}
	if innermost == nil {
		return http.StatusText(status)
	}

	msg := innermost.Message
	if status == http.StatusBadRequest && innermost.Err != nil {
		msg += ": " + innermost.Err.Error()
	}
	return msg
}
