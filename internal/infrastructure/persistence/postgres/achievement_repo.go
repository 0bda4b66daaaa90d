package postgres

import (
	"context"
	"fmt"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/achievement"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
)

// AchievementRepository implements achievement.Repository for PostgreSQL.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

// HasAchievement checks if a user holds a badge.
func (r *AchievementRepository) HasAchievement(ctx context.Context, userID string, t achievement.Type) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM achievements WHERE user_id = $1 AND achievement_type = $2)",
		userID,
		string(t),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check achievement: %w", err)
	}
	return exists, nil
}

// Award grants a badge once. It reports whether a new row was written.
func (r *AchievementRepository) Award(ctx context.Context, userID string, t achievement.Type) (bool, error) {
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO achievements (user_id, achievement_type)
		VALUES ($1, $2)
		ON CONFLICT (user_id, achievement_type) DO NOTHING
	`, userID, string(t))
	if err != nil {
		if IsForeignKeyViolation(err) {
			return false, shared.WrapError("achievement", "Award", shared.ErrNotFound, "profile not found", err)
		}
		return false, fmt.Errorf("failed to award achievement: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// List returns a user's badges, oldest first.
func (r *AchievementRepository) List(ctx context.Context, userID string) ([]achievement.Badge, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT achievement_type, awarded_at
		FROM achievements
		WHERE user_id = $1
		ORDER BY awarded_at, achievement_type
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get achievements: %w", err)
	}
	defer rows.Close()

	var badges []achievement.Badge
	for rows.Next() {
		b := achievement.Badge{UserID: userID}
		var t string
		if err := rows.Scan(&t, &b.AwardedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		b.Type = achievement.Type(t)
		badges = append(badges, b)
	}

	return badges, rows.Err()
}
