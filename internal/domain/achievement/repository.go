package achievement

import "context"

// Repository is the badge store.
type Repository interface {
	// HasAchievement reports whether the user already holds the badge.
	HasAchievement(ctx context.Context, userID string, t Type) (bool, error)

	// Award grants the badge. Awarding a held badge is a no-op that returns false.
	Award(ctx context.Context, userID string, t Type) (bool, error)

	// List returns the user's badges, oldest first.
	List(ctx context.Context, userID string) ([]Badge, error)
}
