// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"time"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/achievement"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/leaderboard"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/profile"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/social"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/workout"
)

// ══════════════════════════════════════════════════════════════════════════════
// DTOs
// Wire shapes shared by queries and commands.
// ══════════════════════════════════════════════════════════════════════════════

// ProfileDTO is the public view of a profile.
type ProfileDTO struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	AvatarURL        string    `json:"avatar_url,omitempty"`
	Goal             *string   `json:"goal"`
	PreferredWorkout *string   `json:"preferred_workout"`
	Latitude         *float64  `json:"latitude"`
	Longitude        *float64  `json:"longitude"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewProfileDTO maps a profile.
func NewProfileDTO(p profile.Profile) ProfileDTO {
	dto := ProfileDTO{
		ID:               p.ID,
		Username:         p.Username,
		AvatarURL:        p.AvatarURL,
		Goal:             p.Goal,
		PreferredWorkout: p.PreferredWorkout,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	if p.Location != nil {
		lat, lon := p.Location.Lat, p.Location.Lon
		dto.Latitude, dto.Longitude = &lat, &lon
	}
	return dto
}

// LeaderboardEntryDTO is one leaderboard row.
type LeaderboardEntryDTO struct {
	Rank          int     `json:"rank"`
	ID            string  `json:"id"`
	Username      string  `json:"username"`
	AvatarURL     string  `json:"avatar_url,omitempty"`
	Goal          *string `json:"goal"`
	WorkoutCount  int     `json:"workout_count"`
	TotalMinutes  float64 `json:"total_minutes"`
	TotalCalories float64 `json:"total_calories"`
	Points        float64 `json:"points"`
}

// NewLeaderboardEntryDTO maps an entry.
func NewLeaderboardEntryDTO(e leaderboard.Entry) LeaderboardEntryDTO {
	return LeaderboardEntryDTO{
		Rank:          int(e.Rank),
		ID:            e.ID,
		Username:      e.Username,
		AvatarURL:     e.AvatarURL,
		Goal:          e.Goal,
		WorkoutCount:  e.WorkoutCount,
		TotalMinutes:  e.TotalMinutes,
		TotalCalories: e.TotalCalories,
		Points:        e.Points,
	}
}

func newLeaderboardEntryDTOs(entries []leaderboard.Entry) []LeaderboardEntryDTO {
	out := make([]LeaderboardEntryDTO, len(entries))
	for i, e := range entries {
		out[i] = NewLeaderboardEntryDTO(e)
	}
	return out
}

// WorkoutDTO is a logged workout.
type WorkoutDTO struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Type            string    `json:"type"`
	DurationMinutes *float64  `json:"duration_minutes"`
	CaloriesBurned  *float64  `json:"calories_burned"`
	PerformedAt     time.Time `json:"performed_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewWorkoutDTO maps a record.
func NewWorkoutDTO(r workout.Record) WorkoutDTO {
	return WorkoutDTO{
		ID:              r.ID,
		UserID:          r.UserID,
		Type:            r.Type,
		DurationMinutes: r.DurationMinutes,
		CaloriesBurned:  r.CaloriesBurned,
		PerformedAt:     r.PerformedAt,
		CreatedAt:       r.CreatedAt,
	}
}

// ConnectionDTO is a buddy request.
type ConnectionDTO struct {
	ID          string     `json:"id"`
	RequesterID string     `json:"requester_id"`
	AddresseeID string     `json:"addressee_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// NewConnectionDTO maps a connection.
func NewConnectionDTO(c social.Connection) ConnectionDTO {
	return ConnectionDTO{
		ID:          c.ID,
		RequesterID: c.RequesterID,
		AddresseeID: c.AddresseeID,
		Status:      string(c.Status),
		CreatedAt:   c.CreatedAt,
		RespondedAt: c.RespondedAt,
	}
}

// BadgeDTO is an awarded achievement.
type BadgeDTO struct {
	Type      string    `json:"type"`
	AwardedAt time.Time `json:"awarded_at"`
}

// NewBadgeDTO maps a badge.
func NewBadgeDTO(b achievement.Badge) BadgeDTO {
	return BadgeDTO{Type: string(b.Type), AwardedAt: b.AwardedAt}
}
