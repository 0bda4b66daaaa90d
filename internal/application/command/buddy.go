package command

import (
	"context"
	"errors"

	"github.com/fitbuddy/fitbuddy-hub/internal/application/query"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/profile"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/social"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEND BUDDY REQUEST COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// SendBuddyRequestCommand asks AddresseeID to become RequesterID's buddy.
type SendBuddyRequestCommand struct {
	RequesterID string
	AddresseeID string
}

// Validate checks the command.
func (c SendBuddyRequestCommand) Validate() error {
	if c.RequesterID == "" || c.AddresseeID == "" {
		return errors.New("requester_id and addressee_id are required")
	}
	if c.RequesterID == c.AddresseeID {
		return social.ErrConnectionSameUser
	}
	return nil
}

// SendBuddyRequestHandler handles new buddy requests.
type SendBuddyRequestHandler struct {
	profiles profile.Repository
	buddies  social.Repository
	events   shared.EventPublisher
}

// NewSendBuddyRequestHandler creates the handler.
func NewSendBuddyRequestHandler(profiles profile.Repository, buddies social.Repository, events shared.EventPublisher) *SendBuddyRequestHandler {
	return &SendBuddyRequestHandler{profiles: profiles, buddies: buddies, events: events}
}

// Handle stores a pending request. A second request between the same pair,
// in either direction, is a conflict unless the earlier one was rejected.
func (h *SendBuddyRequestHandler) Handle(ctx context.Context, cmd SendBuddyRequestCommand) (*query.ConnectionDTO, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "SendBuddyRequest", shared.ErrValidation, err.Error(), err)
	}

	for _, id := range []string{cmd.RequesterID, cmd.AddresseeID} {
		if _, err := h.profiles.GetByID(ctx, id); err != nil {
			return nil, shared.WrapError("command", "SendBuddyRequest", shared.ErrServiceUnavailable, "failed to fetch profile", err)
		}
	}

	conn, err := social.NewConnection(uuid.NewString(), cmd.RequesterID, cmd.AddresseeID)
	if err != nil {
		return nil, shared.WrapError("command", "SendBuddyRequest", shared.ErrInvalidInput, err.Error(), err)
	}

	if err := h.buddies.CreateRequest(ctx, conn); err != nil {
		return nil, shared.WrapError("command", "SendBuddyRequest", shared.ErrServiceUnavailable, "failed to create buddy request", err)
	}

	publish(h.events, shared.NewBuddyRequestedEvent(conn.ID, conn.RequesterID, conn.AddresseeID))

	dto := query.NewConnectionDTO(*conn)
	return &dto, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPOND BUDDY REQUEST COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// RespondBuddyRequestCommand accepts or rejects a pending request.
type RespondBuddyRequestCommand struct {
	ConnectionID string
	ResponderID  string
	Accept       bool
}

// RespondBuddyRequestHandler handles responses.
type RespondBuddyRequestHandler struct {
	buddies social.Repository
	events  shared.EventPublisher
}

// NewRespondBuddyRequestHandler creates the handler.
func NewRespondBuddyRequestHandler(buddies social.Repository, events shared.EventPublisher) *RespondBuddyRequestHandler {
	return &RespondBuddyRequestHandler{buddies: buddies, events: events}
}

// Handle applies the response. Accepting publishes BuddyConnected.
func (h *RespondBuddyRequestHandler) Handle(ctx context.Context, cmd RespondBuddyRequestCommand) (*query.ConnectionDTO, error) {
	if cmd.ConnectionID == "" || cmd.ResponderID == "" {
		return nil, shared.NewDomainError("command", "RespondBuddyRequest", shared.ErrValidation, "connection id and responder_id are required")
	}
	if err := requireGeneratedID("RespondBuddyRequest", "buddy request", cmd.ConnectionID); err != nil {
		return nil, err
	}

	conn, err := h.buddies.GetByID(ctx, cmd.ConnectionID)
	if err != nil {
		return nil, shared.WrapError("command", "RespondBuddyRequest", shared.ErrServiceUnavailable, "failed to fetch buddy request", err)
	}

	if err := conn.Respond(cmd.ResponderID, cmd.Accept); err != nil {
		kind := shared.ErrStateTransition
		if errors.Is(err, social.ErrNotAddressee) {
			kind = shared.ErrForbidden
		}
		return nil, shared.WrapError("command", "RespondBuddyRequest", kind, err.Error(), err)
	}

	if err := h.buddies.UpdateStatus(ctx, conn); err != nil {
		return nil, shared.WrapError("command", "RespondBuddyRequest", shared.ErrServiceUnavailable, "failed to update buddy request", err)
	}

	if conn.IsAccepted() {
		publish(h.events, shared.NewBuddyConnectedEvent(conn.ID, conn.RequesterID, conn.AddresseeID))
	}

	dto := query.NewConnectionDTO(*conn)
	return &dto, nil
}
