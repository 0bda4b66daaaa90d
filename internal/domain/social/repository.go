package social

import "context"

// Repository is the buddy store.
type Repository interface {
	// ListConnections returns the IDs of users connected to userID with the given status,
	// regardless of which side sent the request.
	ListConnections(ctx context.Context, userID string, status ConnectionStatus) ([]string, error)

	// ListRequests returns full connection rows involving userID.
	ListRequests(ctx context.Context, userID string, status ConnectionStatus) ([]Connection, error)

	// CreateRequest stores a new pending connection.
	// Returns shared.ErrAlreadyExists if the pair already has a pending or accepted
	// connection in either direction. A rejected request does not block a new one.
	CreateRequest(ctx context.Context, c *Connection) error

	// GetByID returns a single connection.
	GetByID(ctx context.Context, id string) (*Connection, error)

	// UpdateStatus persists the outcome of Respond.
	UpdateStatus(ctx context.Context, c *Connection) error

	// CountAccepted returns the number of accepted buddies of userID.
	CountAccepted(ctx context.Context, userID string) (int, error)
}
