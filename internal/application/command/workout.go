package command

import (
	"context"
	"errors"
	"time"

	"github.com/fitbuddy/fitbuddy-hub/internal/application/query"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/profile"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/workout"

	"github.com/google/uuid"
)

// maxFutureSkew tolerates clients whose clocks run slightly ahead.
const maxFutureSkew = 5 * time.Minute

// ══════════════════════════════════════════════════════════════════════════════
// LOG WORKOUT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// LogWorkoutCommand records a finished workout.
type LogWorkoutCommand struct {
	UserID          string
	Type            string
	DurationMinutes *float64
	CaloriesBurned  *float64

	// PerformedAt defaults to now.
	PerformedAt time.Time
}

// Validate checks the command.
func (c LogWorkoutCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("user id is required")
	}
	if !c.PerformedAt.IsZero() && c.PerformedAt.After(time.Now().Add(maxFutureSkew)) {
		return errors.New("performed_at cannot be in the future")
	}
	return nil
}

// LogWorkoutHandler handles workout logging.
type LogWorkoutHandler struct {
	profiles profile.Repository
	workouts workout.Repository
	events   shared.EventPublisher
}

// NewLogWorkoutHandler creates the handler.
func NewLogWorkoutHandler(profiles profile.Repository, workouts workout.Repository, events shared.EventPublisher) *LogWorkoutHandler {
	return &LogWorkoutHandler{profiles: profiles, workouts: workouts, events: events}
}

// Handle validates and stores the workout, then publishes WorkoutLogged.
func (h *LogWorkoutHandler) Handle(ctx context.Context, cmd LogWorkoutCommand) (*query.WorkoutDTO, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "LogWorkout", shared.ErrValidation, err.Error(), err)
	}

	record, err := workout.NewRecord(uuid.NewString(), cmd.UserID, cmd.Type, cmd.DurationMinutes, cmd.CaloriesBurned, cmd.PerformedAt)
	if err != nil {
		return nil, err
	}

	if _, err := h.profiles.GetByID(ctx, cmd.UserID); err != nil {
		return nil, shared.WrapError("command", "LogWorkout", shared.ErrServiceUnavailable, "failed to fetch profile", err)
	}

	if err := h.workouts.Create(ctx, record); err != nil {
		return nil, shared.WrapError("command", "LogWorkout", shared.ErrServiceUnavailable, "failed to log workout", err)
	}

	publish(h.events, shared.NewWorkoutLoggedEvent(record.UserID, record.ID, record.Type, record.DurationMinutes, record.CaloriesBurned))

	dto := query.NewWorkoutDTO(*record)
	return &dto, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DELETE WORKOUT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// DeleteWorkoutHandler removes a logged workout.
type DeleteWorkoutHandler struct {
	workouts workout.Repository
	events   shared.EventPublisher
}

// NewDeleteWorkoutHandler creates the handler.
func NewDeleteWorkoutHandler(workouts workout.Repository, events shared.EventPublisher) *DeleteWorkoutHandler {
	return &DeleteWorkoutHandler{workouts: workouts, events: events}
}

// Handle deletes the workout and publishes WorkoutDeleted for its owner.
func (h *DeleteWorkoutHandler) Handle(ctx context.Context, workoutID string) error {
	if workoutID == "" {
		return shared.NewDomainError("command", "DeleteWorkout", shared.ErrInvalidID, "workout id is required")
	}
	if err := requireGeneratedID("DeleteWorkout", "workout", workoutID); err != nil {
		return err
	}

	record, err := h.workouts.GetByID(ctx, workoutID)
	if err != nil {
		return shared.WrapError("command", "DeleteWorkout", shared.ErrServiceUnavailable, "failed to fetch workout", err)
	}

	if err := h.workouts.Delete(ctx, workoutID); err != nil {
		return shared.WrapError("command", "DeleteWorkout", shared.ErrServiceUnavailable, "failed to delete workout", err)
	}

	publish(h.events, shared.NewWorkoutDeletedEvent(record.UserID, record.ID))
	return nil
}
