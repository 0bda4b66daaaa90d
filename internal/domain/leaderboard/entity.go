// Package leaderboard turns workout logs into points and ranked leaderboards.
// Everything here is a pure computation over caller-supplied snapshots.
package leaderboard

import (
	"fmt"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Rank is a 1-based leaderboard position.
type Rank int

// IsValid checks that the rank is positive.
func (r Rank) IsValid() bool {
	return r > 0
}

// IsTop10 reports whether the rank is within the first ten places.
func (r Rank) IsTop10() bool {
	return r >= 1 && r <= 10
}

// String returns "#N".
func (r Rank) String() string {
	return fmt.Sprintf("#%d", r)
}

// Metric selects the field a leaderboard is sorted by.
type Metric string

const (
	MetricPoints   Metric = "points"
	MetricCalories Metric = "calories"
	MetricMinutes  Metric = "minutes"
	MetricWorkouts Metric = "workouts"
)

// IsValid checks the metric value.
func (m Metric) IsValid() bool {
	switch m {
	case MetricPoints, MetricCalories, MetricMinutes, MetricWorkouts:
		return true
	default:
		return false
	}
}

// ParseMetric maps a query value to a metric. Empty or unknown values mean points.
func ParseMetric(s string) Metric {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return MetricPoints
	}
	return m
}

// ══════════════════════════════════════════════════════════════════════════════
// POINTS
// ══════════════════════════════════════════════════════════════════════════════

// Fixed point weights.
const (
	PointsPerWorkout = 10.0
	PointsPerMinute  = 1.0
	PointsPerCalorie = 0.1
)

// Points returns the score for the given totals.
func Points(workoutCount int, totalMinutes, totalCalories float64) float64 {
	return float64(workoutCount)*PointsPerWorkout +
		totalMinutes*PointsPerMinute +
		totalCalories*PointsPerCalorie
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry is one leaderboard row.
type Entry struct {
	ID            string
	Username      string
	AvatarURL     string
	Goal          *string
	WorkoutCount  int
	TotalMinutes  float64
	TotalCalories float64
	Points        float64
	Rank          Rank
}

// Value returns the entry's value for the metric.
func (e Entry) Value(m Metric) float64 {
	switch m {
	case MetricCalories:
		return e.TotalCalories
	case MetricMinutes:
		return e.TotalMinutes
	case MetricWorkouts:
		return float64(e.WorkoutCount)
	default:
		return e.Points
	}
}

// String returns a log-friendly representation.
func (e Entry) String() string {
	return fmt.Sprintf("Entry{%s %s, workouts: %d, points: %.1f}", e.Rank, e.ID, e.WorkoutCount, e.Points)
}

// UserRank is the answer to a single-user rank query.
// Rank and Entry are nil when the user is not ranked.
type UserRank struct {
	Rank  *Rank
	Entry *Entry
}

// IsRanked reports whether the user appears on the leaderboard.
func (u UserRank) IsRanked() bool {
	return u.Rank != nil
}
