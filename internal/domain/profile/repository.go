package profile

import "context"

// Repository is the profile store.
// Implementations return shared.ErrNotFound (wrapped) for unknown IDs.
type Repository interface {
	// GetByID returns a single profile.
	GetByID(ctx context.Context, id string) (*Profile, error)

	// List returns profiles matching the filter, ordered by creation time then ID.
	List(ctx context.Context, filter ListFilter) ([]Profile, error)

	// Create stores a new profile.
	Create(ctx context.Context, p *Profile) error

	// Update applies a partial update and returns the stored result.
	Update(ctx context.Context, id string, fields UpdateFields) (*Profile, error)

	// Delete removes a profile together with its workouts, connections and badges.
	Delete(ctx context.Context, id string) error
}

// ListFilter narrows a profile listing. Zero value lists everything.
type ListFilter struct {
	// IDs restricts the listing to the given profiles when non-empty.
	IDs []string

	// ExcludeID drops a single profile, usually the requester.
	ExcludeID string

	// Goal matches case-insensitively when set.
	Goal *string

	// Limit caps the result when > 0.
	Limit int
}
