package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/profile"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements profile.Repository for PostgreSQL.
type ProfileRepository struct {
	conn *Connection
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

const profileColumns = `id, username, avatar_url, goal, preferred_workout, latitude, longitude, created_at, updated_at`

// Create stores a new profile.
func (r *ProfileRepository) Create(ctx context.Context, p *profile.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	lat, lon := splitLocation(p.Location)

	_, err := r.conn.Exec(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.Username, p.AvatarURL, p.Goal, p.PreferredWorkout, lat, lon, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("profile", "Create", shared.ErrAlreadyExists, "profile or username already exists", err)
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

// GetByID returns a profile by ID.
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*profile.Profile, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	return scanProfile(row)
}

// List returns profiles ordered by creation time, then ID.
func (r *ProfileRepository) List(ctx context.Context, filter profile.ListFilter) ([]profile.Profile, error) {
	var (
		where []string
		args  []any
	)

	if len(filter.IDs) > 0 {
		args = append(args, filter.IDs)
		where = append(where, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if filter.ExcludeID != "" {
		args = append(args, filter.ExcludeID)
		where = append(where, fmt.Sprintf("id <> $%d", len(args)))
	}
	if filter.Goal != nil {
		args = append(args, strings.ToLower(*filter.Goal))
		where = append(where, fmt.Sprintf("lower(goal) = $%d", len(args)))
	}

	query := `SELECT ` + profileColumns + ` FROM profiles`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}

	return profiles, rows.Err()
}

// Update applies a partial update inside a transaction.
func (r *ProfileRepository) Update(ctx context.Context, id string, fields profile.UpdateFields) (*profile.Profile, error) {
	var updated profile.Profile

	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		current, err := scanProfile(tx.QueryRow(ctx,
			`SELECT `+profileColumns+` FROM profiles WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		updated, err = fields.Apply(*current)
		if err != nil {
			return err
		}
		updated.UpdatedAt = time.Now().UTC()
		lat, lon := splitLocation(updated.Location)

		_, err = tx.Exec(ctx, `
			UPDATE profiles SET
				username = $1,
				avatar_url = $2,
				goal = $3,
				preferred_workout = $4,
				latitude = $5,
				longitude = $6,
				updated_at = $7
			WHERE id = $8
		`, updated.Username, updated.AvatarURL, updated.Goal, updated.PreferredWorkout,
			lat, lon, updated.UpdatedAt, id)
		if err != nil {
			if IsUniqueViolation(err) {
				return shared.WrapError("profile", "Update", shared.ErrAlreadyExists, "username already taken", err)
			}
			return fmt.Errorf("failed to update profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// Delete removes a profile. Workouts, connections and badges cascade.
func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("profile", "Delete", shared.ErrNotFound, "profile not found")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func scanProfile(row pgx.Row) (*profile.Profile, error) {
	var (
		p        profile.Profile
		lat, lon *float64
	)

	err := row.Scan(&p.ID, &p.Username, &p.AvatarURL, &p.Goal, &p.PreferredWorkout,
		&lat, &lon, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("profile", "Get", shared.ErrNotFound, "profile not found")
		}
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}

	p.Goal = profile.NormalizeOptional(p.Goal)
	p.PreferredWorkout = profile.NormalizeOptional(p.PreferredWorkout)
	p.Location = profile.NewGeoPoint(lat, lon)

	return &p, nil
}

func splitLocation(loc *profile.GeoPoint) (*float64, *float64) {
	if loc == nil {
		return nil, nil
	}
	lat, lon := loc.Lat, loc.Lon
	return &lat, &lon
}
