package workout

import "context"

// Repository is the workout store.
type Repository interface {
	// List returns workouts matching the filter, ordered by performed_at then ID.
	List(ctx context.Context, filter ListFilter) ([]Record, error)

	// GetByID returns a single workout.
	GetByID(ctx context.Context, id string) (*Record, error)

	// Create stores a new workout.
	Create(ctx context.Context, r *Record) error

	// Delete removes a workout.
	Delete(ctx context.Context, id string) error
}

// ListFilter narrows a workout listing. Zero value lists every workout.
type ListFilter struct {
	// UserID restricts to a single user when non-empty.
	UserID string

	// UserIDs restricts to a set of users when non-empty.
	UserIDs []string

	// Limit caps the result when > 0.
	Limit int
}
