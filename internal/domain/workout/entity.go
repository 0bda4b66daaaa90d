// Package workout contains the workout log domain model.
package workout

import (
	"math"
	"strings"
	"time"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
)

// MaxTypeLength bounds the free-form workout type.
const MaxTypeLength = 64

// Record is one logged workout.
// Duration and calories are optional; absent values count as zero when aggregated.
type Record struct {
	ID              string
	UserID          string
	Type            string
	DurationMinutes *float64
	CaloriesBurned  *float64
	PerformedAt     time.Time
	CreatedAt       time.Time
}

// Minutes returns the duration contribution, 0 when absent or invalid.
func (r Record) Minutes() float64 {
	return nonNegative(r.DurationMinutes)
}

// Calories returns the calories contribution, 0 when absent or invalid.
func (r Record) Calories() float64 {
	return nonNegative(r.CaloriesBurned)
}

func nonNegative(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return 0
	}
	return *v
}

// NewRecord validates input and builds a record ready to be stored.
func NewRecord(id, userID, workoutType string, minutes, calories *float64, performedAt time.Time) (*Record, error) {
	if strings.TrimSpace(id) == "" {
		return nil, shared.NewDomainError("workout", "NewRecord", shared.ErrInvalidID, "workout id is required")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, shared.NewDomainError("workout", "NewRecord", shared.ErrInvalidID, "user id is required")
	}
	workoutType = strings.TrimSpace(workoutType)
	if workoutType == "" {
		return nil, shared.NewDomainError("workout", "NewRecord", shared.ErrEmptyValue, "workout type is required")
	}
	if len(workoutType) > MaxTypeLength {
		return nil, shared.NewDomainError("workout", "NewRecord", shared.ErrValueOutOfRange, "workout type is too long")
	}
	if err := checkAmount("duration_minutes", minutes); err != nil {
		return nil, err
	}
	if err := checkAmount("calories_burned", calories); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if performedAt.IsZero() {
		performedAt = now
	}

	return &Record{
		ID:              id,
		UserID:          userID,
		Type:            workoutType,
		DurationMinutes: minutes,
		CaloriesBurned:  calories,
		PerformedAt:     performedAt.UTC(),
		CreatedAt:       now,
	}, nil
}

func checkAmount(field string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return shared.NewDomainError("workout", "NewRecord", shared.ErrInvalidInput, field+" must be a finite number")
	}
	if *v < 0 {
		return shared.NewDomainError("workout", "NewRecord", shared.ErrNegativeValue, field+" cannot be negative")
	}
	return nil
}
