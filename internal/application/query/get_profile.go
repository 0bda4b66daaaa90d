package query

import (
	"context"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/achievement"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/profile"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/social"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/workout"
)

// MaxWorkoutPage caps a workout listing.
const MaxWorkoutPage = 500

// ══════════════════════════════════════════════════════════════════════════════
// GET PROFILE
// ══════════════════════════════════════════════════════════════════════════════

// GetProfileHandler returns a single profile.
type GetProfileHandler struct {
	profiles profile.Repository
}

// NewGetProfileHandler creates the handler.
func NewGetProfileHandler(profiles profile.Repository) *GetProfileHandler {
	return &GetProfileHandler{profiles: profiles}
}

// Handle fetches the profile.
func (h *GetProfileHandler) Handle(ctx context.Context, userID string) (*ProfileDTO, error) {
	if userID == "" {
		return nil, shared.NewDomainError("query", "GetProfile", shared.ErrInvalidID, "user id is required")
	}

	p, err := h.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, shared.WrapError("query", "GetProfile", shared.ErrServiceUnavailable, "failed to fetch profile", err)
	}

	dto := NewProfileDTO(*p)
	return &dto, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST WORKOUTS
// ══════════════════════════════════════════════════════════════════════════════

// ListWorkoutsQuery selects a user's workouts. Limit keeps the most recent ones.
type ListWorkoutsQuery struct {
	UserID string
	Limit  int
}

// ListWorkoutsHandler returns a user's workouts, most recent last.
type ListWorkoutsHandler struct {
	profiles profile.Repository
	workouts workout.Repository
}

// NewListWorkoutsHandler creates the handler.
func NewListWorkoutsHandler(profiles profile.Repository, workouts workout.Repository) *ListWorkoutsHandler {
	return &ListWorkoutsHandler{profiles: profiles, workouts: workouts}
}

// Handle lists workouts. Unknown users are reported as not found.
func (h *ListWorkoutsHandler) Handle(ctx context.Context, q ListWorkoutsQuery) ([]WorkoutDTO, error) {
	if q.UserID == "" {
		return nil, shared.NewDomainError("query", "ListWorkouts", shared.ErrInvalidID, "user id is required")
	}
	if q.Limit < 0 {
		return nil, shared.NewDomainError("query", "ListWorkouts", shared.ErrValidation, "limit cannot be negative")
	}
	if q.Limit > MaxWorkoutPage {
		q.Limit = MaxWorkoutPage
	}

	if _, err := h.profiles.GetByID(ctx, q.UserID); err != nil {
		return nil, shared.WrapError("query", "ListWorkouts", shared.ErrServiceUnavailable, "failed to fetch profile", err)
	}

	records, err := h.workouts.List(ctx, workout.ListFilter{UserID: q.UserID})
	if err != nil {
		return nil, shared.WrapError("query", "ListWorkouts", shared.ErrServiceUnavailable, "failed to fetch workouts", err)
	}
	if q.Limit > 0 && len(records) > q.Limit {
		records = records[len(records)-q.Limit:]
	}

	out := make([]WorkoutDTO, len(records))
	for i, r := range records {
		out[i] = NewWorkoutDTO(r)
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST BUDDIES
// ══════════════════════════════════════════════════════════════════════════════

// ListBuddiesQuery selects a user's connections by status.
type ListBuddiesQuery struct {
	UserID string

	// Status is pending, accepted or rejected. Empty means accepted.
	Status string
}

// ListBuddiesResult lists the connected profiles and the raw requests.
type ListBuddiesResult struct {
	UserID   string          `json:"user_id"`
	Status   string          `json:"status"`
	IDs      []string        `json:"ids"`
	Requests []ConnectionDTO `json:"requests"`
}

// ListBuddiesHandler handles connection listings.
type ListBuddiesHandler struct {
	buddies social.Repository
}

// NewListBuddiesHandler creates the handler.
func NewListBuddiesHandler(buddies social.Repository) *ListBuddiesHandler {
	return &ListBuddiesHandler{buddies: buddies}
}

// Handle lists the connections.
func (h *ListBuddiesHandler) Handle(ctx context.Context, q ListBuddiesQuery) (*ListBuddiesResult, error) {
	if q.UserID == "" {
		return nil, shared.NewDomainError("query", "ListBuddies", shared.ErrInvalidID, "user id is required")
	}

	status, err := social.ParseConnectionStatus(q.Status)
	if err != nil {
		return nil, shared.WrapError("query", "ListBuddies", shared.ErrInvalidInput, "unknown status", err)
	}

	ids, err := h.buddies.ListConnections(ctx, q.UserID, status)
	if err != nil {
		return nil, shared.WrapError("query", "ListBuddies", shared.ErrServiceUnavailable, "failed to fetch buddies", err)
	}

	requests, err := h.buddies.ListRequests(ctx, q.UserID, status)
	if err != nil {
		return nil, shared.WrapError("query", "ListBuddies", shared.ErrServiceUnavailable, "failed to fetch requests", err)
	}

	result := &ListBuddiesResult{
		UserID:   q.UserID,
		Status:   string(status),
		IDs:      ids,
		Requests: make([]ConnectionDTO, len(requests)),
	}
	if result.IDs == nil {
		result.IDs = []string{}
	}
	for i, c := range requests {
		result.Requests[i] = NewConnectionDTO(c)
	}
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// ListAchievementsResult lists earned badges and the ones still locked.
type ListAchievementsResult struct {
	UserID string     `json:"user_id"`
	Earned []BadgeDTO `json:"earned"`
	Locked []string   `json:"locked"`
}

// ListAchievementsHandler handles badge listings.
type ListAchievementsHandler struct {
	achievements achievement.Repository
}

// NewListAchievementsHandler creates the handler.
func NewListAchievementsHandler(achievements achievement.Repository) *ListAchievementsHandler {
	return &ListAchievementsHandler{achievements: achievements}
}

// Handle lists the user's badges.
func (h *ListAchievementsHandler) Handle(ctx context.Context, userID string) (*ListAchievementsResult, error) {
	if userID == "" {
		return nil, shared.NewDomainError("query", "ListAchievements", shared.ErrInvalidID, "user id is required")
	}

	badges, err := h.achievements.List(ctx, userID)
	if err != nil {
		return nil, shared.WrapError("query", "ListAchievements", shared.ErrServiceUnavailable, "failed to fetch achievements", err)
	}

	earned := make(map[achievement.Type]struct{}, len(badges))
	result := &ListAchievementsResult{
		UserID: userID,
		Earned: make([]BadgeDTO, len(badges)),
		Locked: []string{},
	}
	for i, b := range badges {
		earned[b.Type] = struct{}{}
		result.Earned[i] = NewBadgeDTO(b)
	}
	for _, t := range achievement.AllTypes() {
		if _, ok := earned[t]; !ok {
			result.Locked = append(result.Locked, string(t))
		}
	}
	return result, nil
}
