package shared

import (
	"fmt"
	"strings"
	"time"
)

// EventType represents the type of domain event.
// Event types double as topics on the realtime refresh stream.
type EventType string

const (
	// Profile events
	EventProfileUpdated EventType = "profile.updated"
	EventProfileDeleted EventType = "profile.deleted"

	// Workout events
	EventWorkoutLogged  EventType = "workout.logged"
	EventWorkoutDeleted EventType = "workout.deleted"

	// Buddy events
	EventBuddyRequested EventType = "buddy.requested"
	EventBuddyConnected EventType = "buddy.connected"

	// Achievement events
	EventAchievementUnlocked EventType = "achievement.unlocked"
)

// AllEventTypes lists every known topic in a stable order.
func AllEventTypes() []EventType {
	return []EventType{
		EventProfileUpdated,
		EventProfileDeleted,
		EventWorkoutLogged,
		EventWorkoutDeleted,
		EventBuddyRequested,
		EventBuddyConnected,
		EventAchievementUnlocked,
	}
}

// ParseEventType validates a topic name.
func ParseEventType(s string) (EventType, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for _, t := range AllEventTypes() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown event type %q", ErrInvalidInput, s)
}

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// ProfileUpdatedEvent is emitted after a profile patch is persisted.
type ProfileUpdatedEvent struct {
	BaseEvent
	UserID string   `json:"user_id"`
	Fields []string `json:"fields"`
}

// Payload implements Event interface.
func (e ProfileUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"fields":  e.Fields,
	}
}

// NewProfileUpdatedEvent creates a new ProfileUpdatedEvent.
func NewProfileUpdatedEvent(userID string, fields []string) ProfileUpdatedEvent {
	return ProfileUpdatedEvent{
		BaseEvent: NewBaseEvent(EventProfileUpdated, userID),
		UserID:    userID,
		Fields:    fields,
	}
}

// ProfileDeletedEvent is emitted after a profile is removed.
type ProfileDeletedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
}

// Payload implements Event interface.
func (e ProfileDeletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
	}
}

// NewProfileDeletedEvent creates a new ProfileDeletedEvent.
func NewProfileDeletedEvent(userID string) ProfileDeletedEvent {
	return ProfileDeletedEvent{
		BaseEvent: NewBaseEvent(EventProfileDeleted, userID),
		UserID:    userID,
	}
}

// WorkoutLoggedEvent is emitted when a user records a workout.
type WorkoutLoggedEvent struct {
	BaseEvent
	UserID          string   `json:"user_id"`
	WorkoutID       string   `json:"workout_id"`
	WorkoutType     string   `json:"workout_type"`
	DurationMinutes *float64 `json:"duration_minutes,omitempty"`
	CaloriesBurned  *float64 `json:"calories_burned,omitempty"`
}

// Payload implements Event interface.
func (e WorkoutLoggedEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"user_id":      e.UserID,
		"workout_id":   e.WorkoutID,
		"workout_type": e.WorkoutType,
	}
	if e.DurationMinutes != nil {
		p["duration_minutes"] = *e.DurationMinutes
	}
	if e.CaloriesBurned != nil {
		p["calories_burned"] = *e.CaloriesBurned
	}
	return p
}

// NewWorkoutLoggedEvent creates a new WorkoutLoggedEvent.
func NewWorkoutLoggedEvent(userID, workoutID, workoutType string, minutes, calories *float64) WorkoutLoggedEvent {
	return WorkoutLoggedEvent{
		BaseEvent:       NewBaseEvent(EventWorkoutLogged, userID),
		UserID:          userID,
		WorkoutID:       workoutID,
		WorkoutType:     workoutType,
		DurationMinutes: minutes,
		CaloriesBurned:  calories,
	}
}

// WorkoutDeletedEvent is emitted when a workout is removed.
type WorkoutDeletedEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	WorkoutID string `json:"workout_id"`
}

// Payload implements Event interface.
func (e WorkoutDeletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    e.UserID,
		"workout_id": e.WorkoutID,
	}
}

// NewWorkoutDeletedEvent creates a new WorkoutDeletedEvent.
func NewWorkoutDeletedEvent(userID, workoutID string) WorkoutDeletedEvent {
	return WorkoutDeletedEvent{
		BaseEvent: NewBaseEvent(EventWorkoutDeleted, userID),
		UserID:    userID,
		WorkoutID: workoutID,
	}
}

// BuddyRequestedEvent is emitted when a user asks another to be buddies.
type BuddyRequestedEvent struct {
	BaseEvent
	ConnectionID string `json:"connection_id"`
	RequesterID  string `json:"requester_id"`
	AddresseeID  string `json:"addressee_id"`
}

// Payload implements Event interface.
func (e BuddyRequestedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"connection_id": e.ConnectionID,
		"requester_id":  e.RequesterID,
		"addressee_id":  e.AddresseeID,
	}
}

// NewBuddyRequestedEvent creates a new BuddyRequestedEvent.
func NewBuddyRequestedEvent(connectionID, requesterID, addresseeID string) BuddyRequestedEvent {
	return BuddyRequestedEvent{
		BaseEvent:    NewBaseEvent(EventBuddyRequested, connectionID),
		ConnectionID: connectionID,
		RequesterID:  requesterID,
		AddresseeID:  addresseeID,
	}
}

// BuddyConnectedEvent is emitted when a buddy request is accepted.
type BuddyConnectedEvent struct {
	BaseEvent
	ConnectionID string `json:"connection_id"`
	UserAID      string `json:"user_a_id"`
	UserBID      string `json:"user_b_id"`
}

// Payload implements Event interface.
func (e BuddyConnectedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"connection_id": e.ConnectionID,
		"user_a_id":     e.UserAID,
		"user_b_id":     e.UserBID,
	}
}

// NewBuddyConnectedEvent creates a new BuddyConnectedEvent.
func NewBuddyConnectedEvent(connectionID, userAID, userBID string) BuddyConnectedEvent {
	return BuddyConnectedEvent{
		BaseEvent:    NewBaseEvent(EventBuddyConnected, connectionID),
		ConnectionID: connectionID,
		UserAID:      userAID,
		UserBID:      userBID,
	}
}

// AchievementUnlockedEvent is emitted when a badge is awarded.
type AchievementUnlockedEvent struct {
	BaseEvent
	UserID          string `json:"user_id"`
	AchievementType string `json:"achievement_type"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":          e.UserID,
		"achievement_type": e.AchievementType,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID, achievementType string) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:       NewBaseEvent(EventAchievementUnlocked, userID),
		UserID:          userID,
		AchievementType: achievementType,
	}
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
