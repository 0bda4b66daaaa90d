package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/workout"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// WORKOUT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// WorkoutRepository implements workout.Repository for PostgreSQL.
type WorkoutRepository struct {
	conn *Connection
}

// NewWorkoutRepository creates a new WorkoutRepository.
func NewWorkoutRepository(conn *Connection) *WorkoutRepository {
	return &WorkoutRepository{conn: conn}
}

const workoutColumns = `id, user_id, workout_type, duration_minutes, calories_burned, performed_at, created_at`

// Create stores a new workout.
func (r *WorkoutRepository) Create(ctx context.Context, w *workout.Record) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO workouts (`+workoutColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, w.ID, w.UserID, w.Type, w.DurationMinutes, w.CaloriesBurned, w.PerformedAt, w.CreatedAt)
	if err != nil {
		switch {
		case IsForeignKeyViolation(err):
			return shared.WrapError("workout", "Create", shared.ErrNotFound, "profile not found", err)
		case IsUniqueViolation(err):
			return shared.WrapError("workout", "Create", shared.ErrAlreadyExists, "workout already exists", err)
		case IsCheckViolation(err):
			return shared.WrapError("workout", "Create", shared.ErrInvalidInput, "workout values out of range", err)
		}
		return fmt.Errorf("failed to create workout: %w", err)
	}
	return nil
}

// GetByID returns a workout by ID.
func (r *WorkoutRepository) GetByID(ctx context.Context, id string) (*workout.Record, error) {
	if !validUUID(id) {
		return nil, shared.NewDomainError("workout", "Get", shared.ErrNotFound, "workout not found")
	}
	row := r.conn.QueryRow(ctx, `SELECT `+workoutColumns+` FROM workouts WHERE id = $1`, id)
	return scanWorkout(row)
}

// List returns workouts ordered by performed_at, then ID.
func (r *WorkoutRepository) List(ctx context.Context, filter workout.ListFilter) ([]workout.Record, error) {
	var (
		where []string
		args  []any
	)

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if len(filter.UserIDs) > 0 {
		args = append(args, filter.UserIDs)
		where = append(where, fmt.Sprintf("user_id = ANY($%d)", len(args)))
	}

	query := `SELECT ` + workoutColumns + ` FROM workouts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY performed_at, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list workouts: %w", err)
	}
	defer rows.Close()

	var records []workout.Record
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *w)
	}

	return records, rows.Err()
}

// Delete removes a workout.
func (r *WorkoutRepository) Delete(ctx context.Context, id string) error {
	if !validUUID(id) {
		return shared.NewDomainError("workout", "Delete", shared.ErrNotFound, "workout not found")
	}
	tag, err := r.conn.Exec(ctx, `DELETE FROM workouts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("workout", "Delete", shared.ErrNotFound, "workout not found")
	}
	return nil
}

func scanWorkout(row pgx.Row) (*workout.Record, error) {
	var w workout.Record
	err := row.Scan(&w.ID, &w.UserID, &w.Type, &w.DurationMinutes, &w.CaloriesBurned, &w.PerformedAt, &w.CreatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("workout", "Get", shared.ErrNotFound, "workout not found")
		}
		if IsInvalidText(err) {
			return nil, shared.WrapError("workout", "Get", shared.ErrNotFound, "workout not found", err)
		}
		return nil, fmt.Errorf("failed to scan workout: %w", err)
	}
	return &w, nil
}
