// Package command contains write operations (CQRS - Commands).
// Every successful command publishes a domain event so listeners such as the
// achievement flow and the websocket stream can react.
package command

import (
	"context"
	"errors"
	"strings"

	"github.com/fitbuddy/fitbuddy-hub/internal/application/query"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/profile"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"

	"github.com/google/uuid"
)

// publish delivers an event. Delivery failures never undo a committed write.
func publish(p shared.EventPublisher, event shared.Event) {
	if p == nil {
		return
	}
	_ = p.Publish(event)
}

// requireGeneratedID reports a malformed workout or connection id as not
// found. Those ids are always UUIDs minted here, so nothing else can match.
func requireGeneratedID(op, what, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return shared.NewDomainError("command", op, shared.ErrNotFound, what+" not found")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CREATE PROFILE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreateProfileCommand registers a new profile.
type CreateProfileCommand struct {
	// ID comes from the identity provider. A UUID is generated when empty.
	ID               string
	Username         string
	AvatarURL        string
	Goal             *string
	PreferredWorkout *string
	Latitude         *float64
	Longitude        *float64
}

// Validate checks the command.
func (c CreateProfileCommand) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return errors.New("username is required")
	}
	if (c.Latitude == nil) != (c.Longitude == nil) {
		return errors.New("latitude and longitude must be provided together")
	}
	if c.Latitude != nil && profile.NewGeoPoint(c.Latitude, c.Longitude) == nil {
		return errors.New("latitude or longitude out of range")
	}
	return nil
}

// CreateProfileHandler handles profile registration.
type CreateProfileHandler struct {
	profiles profile.Repository
	events   shared.EventPublisher
}

// NewCreateProfileHandler creates the handler.
func NewCreateProfileHandler(profiles profile.Repository, events shared.EventPublisher) *CreateProfileHandler {
	return &CreateProfileHandler{profiles: profiles, events: events}
}

// Handle stores the profile.
func (h *CreateProfileHandler) Handle(ctx context.Context, cmd CreateProfileCommand) (*query.ProfileDTO, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "CreateProfile", shared.ErrValidation, err.Error(), err)
	}

	id := strings.TrimSpace(cmd.ID)
	if id == "" {
		id = uuid.NewString()
	}

	p := &profile.Profile{
		ID:               id,
		Username:         strings.TrimSpace(cmd.Username),
		AvatarURL:        strings.TrimSpace(cmd.AvatarURL),
		Goal:             profile.NormalizeOptional(cmd.Goal),
		PreferredWorkout: profile.NormalizeOptional(cmd.PreferredWorkout),
		Location:         profile.NewGeoPoint(cmd.Latitude, cmd.Longitude),
	}

	if err := h.profiles.Create(ctx, p); err != nil {
		return nil, shared.WrapError("command", "CreateProfile", shared.ErrServiceUnavailable, "failed to create profile", err)
	}

	publish(h.events, shared.NewProfileUpdatedEvent(p.ID, []string{"created"}))

	dto := query.NewProfileDTO(*p)
	return &dto, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE PROFILE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// UpdateProfileCommand is a partial update; nil fields are left untouched.
type UpdateProfileCommand struct {
	UserID string
	Fields profile.UpdateFields
}

// Validate checks the command.
func (c UpdateProfileCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("user id is required")
	}
	if c.Fields.IsEmpty() {
		return errors.New("nothing to update")
	}
	return nil
}

// UpdateProfileHandler handles profile updates.
type UpdateProfileHandler struct {
	profiles profile.Repository
	events   shared.EventPublisher
}

// NewUpdateProfileHandler creates the handler.
func NewUpdateProfileHandler(profiles profile.Repository, events shared.EventPublisher) *UpdateProfileHandler {
	return &UpdateProfileHandler{profiles: profiles, events: events}
}

// Handle applies the update and returns the stored profile.
func (h *UpdateProfileHandler) Handle(ctx context.Context, cmd UpdateProfileCommand) (*query.ProfileDTO, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "UpdateProfile", shared.ErrValidation, err.Error(), err)
	}

	updated, err := h.profiles.Update(ctx, cmd.UserID, cmd.Fields)
	if err != nil {
		return nil, shared.WrapError("command", "UpdateProfile", shared.ErrServiceUnavailable, "failed to update profile", err)
	}

	publish(h.events, shared.NewProfileUpdatedEvent(updated.ID, cmd.Fields.Names()))

	dto := query.NewProfileDTO(*updated)
	return &dto, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DELETE PROFILE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// DeleteProfileHandler removes a profile and everything that belongs to it.
type DeleteProfileHandler struct {
	profiles profile.Repository
	events   shared.EventPublisher
}

// NewDeleteProfileHandler creates the handler.
func NewDeleteProfileHandler(profiles profile.Repository, events shared.EventPublisher) *DeleteProfileHandler {
	return &DeleteProfileHandler{profiles: profiles, events: events}
}

// Handle deletes the profile.
func (h *DeleteProfileHandler) Handle(ctx context.Context, userID string) error {
	if userID == "" {
		return shared.NewDomainError("command", "DeleteProfile", shared.ErrInvalidID, "user id is required")
	}

	if err := h.profiles.Delete(ctx, userID); err != nil {
		return shared.WrapError("command", "DeleteProfile", shared.ErrServiceUnavailable, "failed to delete profile", err)
	}

	publish(h.events, shared.NewProfileDeletedEvent(userID))
	return nil
}
