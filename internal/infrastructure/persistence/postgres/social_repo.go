package postgres

import (
	"context"
	"fmt"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/social"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// BUDDY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// BuddyRepository implements social.Repository for PostgreSQL.
type BuddyRepository struct {
	conn *Connection
}

// NewBuddyRepository creates a new BuddyRepository.
func NewBuddyRepository(conn *Connection) *BuddyRepository {
	return &BuddyRepository{conn: conn}
}

const connectionColumns = `id, requester_id, addressee_id, status, created_at, responded_at`

// ListConnections returns the other side of every connection involving userID.
func (r *BuddyRepository) ListConnections(ctx context.Context, userID string, status social.ConnectionStatus) ([]string, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT CASE WHEN requester_id = $1 THEN addressee_id ELSE requester_id END
		FROM buddy_connections
		WHERE (requester_id = $1 OR addressee_id = $1) AND status = $2
		ORDER BY created_at, id
	`, userID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan connections: %w", err)
	}
	return ids, nil
}

// ListRequests returns connection rows involving userID.
func (r *BuddyRepository) ListRequests(ctx context.Context, userID string, status social.ConnectionStatus) ([]social.Connection, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+connectionColumns+`
		FROM buddy_connections
		WHERE (requester_id = $1 OR addressee_id = $1) AND status = $2
		ORDER BY created_at, id
	`, userID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list buddy requests: %w", err)
	}
	defer rows.Close()

	var out []social.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CreateRequest stores a pending connection. The partial unique pair index
// rejects a second live request in either direction.
func (r *BuddyRepository) CreateRequest(ctx context.Context, c *social.Connection) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO buddy_connections (`+connectionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.RequesterID, c.AddresseeID, string(c.Status), c.CreatedAt, c.RespondedAt)
	if err != nil {
		switch {
		case IsUniqueViolation(err):
			return shared.WrapError("social", "CreateRequest", shared.ErrAlreadyExists, "connection already exists", err)
		case IsForeignKeyViolation(err):
			return shared.WrapError("social", "CreateRequest", shared.ErrNotFound, "profile not found", err)
		}
		return fmt.Errorf("failed to create buddy request: %w", err)
	}
	return nil
}

// GetByID returns a connection by ID.
func (r *BuddyRepository) GetByID(ctx context.Context, id string) (*social.Connection, error) {
	if !validUUID(id) {
		return nil, shared.NewDomainError("social", "Get", shared.ErrNotFound, "connection not found")
	}
	row := r.conn.QueryRow(ctx, `SELECT `+connectionColumns+` FROM buddy_connections WHERE id = $1`, id)
	return scanConnection(row)
}

// UpdateStatus persists a response. Only pending rows can change.
func (r *BuddyRepository) UpdateStatus(ctx context.Context, c *social.Connection) error {
	if !validUUID(c.ID) {
		return shared.NewDomainError("social", "UpdateStatus", shared.ErrNotFound, "connection not found")
	}
	tag, err := r.conn.Exec(ctx, `
		UPDATE buddy_connections
		SET status = $1, responded_at = $2
		WHERE id = $3 AND status = 'pending'
	`, string(c.Status), c.RespondedAt, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update buddy request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.WrapError("social", "UpdateStatus", shared.ErrStateTransition,
			"connection is not pending", social.ErrConnectionNotPending)
	}
	return nil
}

// CountAccepted returns the number of accepted buddies of userID.
func (r *BuddyRepository) CountAccepted(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM buddy_connections
		WHERE (requester_id = $1 OR addressee_id = $1) AND status = 'accepted'
	`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count buddies: %w", err)
	}
	return n, nil
}

func scanConnection(row pgx.Row) (*social.Connection, error) {
	var (
		c      social.Connection
		status string
	)
	err := row.Scan(&c.ID, &c.RequesterID, &c.AddresseeID, &status, &c.CreatedAt, &c.RespondedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("social", "Get", shared.ErrNotFound, "connection not found")
		}
		if IsInvalidText(err) {
			return nil, shared.WrapError("social", "Get", shared.ErrNotFound, "connection not found", err)
		}
		return nil, fmt.Errorf("failed to scan connection: %w", err)
	}
	c.Status = social.ConnectionStatus(status)
	return &c, nil
}
