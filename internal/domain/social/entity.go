// Package social contains buddy connections and buddy matching.
package social

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// ConnectionStatus is the lifecycle state of a buddy connection.
type ConnectionStatus string

const (
	// ConnectionStatusPending waits for the addressee to respond.
	ConnectionStatusPending ConnectionStatus = "pending"

	// ConnectionStatusAccepted means both users are buddies.
	ConnectionStatusAccepted ConnectionStatus = "accepted"

	// ConnectionStatusRejected means the addressee declined.
	ConnectionStatusRejected ConnectionStatus = "rejected"
)

// IsValid checks the status value.
func (c ConnectionStatus) IsValid() bool {
	switch c {
	case ConnectionStatusPending, ConnectionStatusAccepted, ConnectionStatusRejected:
		return true
	default:
		return false
	}
}

// ParseConnectionStatus maps a query value to a status. Empty means accepted.
func ParseConnectionStatus(s string) (ConnectionStatus, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ConnectionStatusAccepted, nil
	}
	status := ConnectionStatus(s)
	if !status.IsValid() {
		return "", ErrConnectionInvalidStatus
	}
	return status, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrConnectionSameUser is returned for a request to oneself.
	ErrConnectionSameUser = errors.New("cannot connect with self")

	// ErrConnectionInvalidStatus is returned for unknown statuses.
	ErrConnectionInvalidStatus = errors.New("invalid connection status")

	// ErrConnectionNotPending is returned when responding twice.
	ErrConnectionNotPending = errors.New("connection is not pending")

	// ErrNotAddressee is returned when someone other than the addressee responds.
	ErrNotAddressee = errors.New("only the addressee can respond")
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY: CONNECTION
// ══════════════════════════════════════════════════════════════════════════════

// Connection is a buddy request between two users.
type Connection struct {
	ID          string
	RequesterID string
	AddresseeID string
	Status      ConnectionStatus
	CreatedAt   time.Time
	RespondedAt *time.Time
}

// NewConnection creates a pending request.
func NewConnection(id, requesterID, addresseeID string) (*Connection, error) {
	if id == "" {
		return nil, errors.New("connection id is required")
	}
	if requesterID == "" || addresseeID == "" {
		return nil, errors.New("both user ids are required")
	}
	if requesterID == addresseeID {
		return nil, ErrConnectionSameUser
	}

	return &Connection{
		ID:          id,
		RequesterID: requesterID,
		AddresseeID: addresseeID,
		Status:      ConnectionStatusPending,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Respond accepts or rejects a pending request on behalf of responderID.
func (c *Connection) Respond(responderID string, accept bool) error {
	if c.Status != ConnectionStatusPending {
		return ErrConnectionNotPending
	}
	if responderID != c.AddresseeID {
		return ErrNotAddressee
	}

	now := time.Now().UTC()
	c.RespondedAt = &now
	if accept {
		c.Status = ConnectionStatusAccepted
	} else {
		c.Status = ConnectionStatusRejected
	}
	return nil
}

// IsAccepted reports whether both users are buddies.
func (c *Connection) IsAccepted() bool {
	return c.Status == ConnectionStatusAccepted
}

// Involves reports whether the user is one side of the connection.
func (c *Connection) Involves(userID string) bool {
	return c.RequesterID == userID || c.AddresseeID == userID
}

// Other returns the other participant.
func (c *Connection) Other(userID string) string {
	if c.RequesterID == userID {
		return c.AddresseeID
	}
	return c.RequesterID
}

// String returns a log-friendly representation.
func (c *Connection) String() string {
	return fmt.Sprintf("Connection{ID: %s, %s -> %s, Status: %s}",
		c.ID, c.RequesterID, c.AddresseeID, c.Status)
}
