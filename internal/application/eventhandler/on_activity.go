// Package eventhandler contains domain event handlers.
package eventhandler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fitbuddy/fitbuddy-hub/internal/application/saga"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
	"github.com/fitbuddy/fitbuddy-hub/pkg/retry"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ACTIVITY HANDLER
// Re-evaluates badges whenever something that feeds the rules changes:
//   - workout.logged    → the workout owner
//   - buddy.connected   → both sides of the connection
// ═══════════════════════════════════════════════════════════════════════════

// AchievementRunner runs the achievement flow for one user.
type AchievementRunner interface {
	Execute(ctx context.Context, userID string) (*saga.AchievementFlowResult, error)
}

// OnActivityConfig tunes the handler.
type OnActivityConfig struct {
	// Timeout bounds a single event, retries included.
	Timeout time.Duration

	// MaxAttempts per user.
	MaxAttempts int
}

// DefaultOnActivityConfig returns default configuration.
func DefaultOnActivityConfig() OnActivityConfig {
	return OnActivityConfig{
		Timeout:     10 * time.Second,
		MaxAttempts: 3,
	}
}

// OnActivityHandler triggers the achievement flow from domain events.
type OnActivityHandler struct {
	flow    AchievementRunner
	retrier *retry.Retrier
	timeout time.Duration
	logger  *slog.Logger
}

// NewOnActivityHandler creates the handler.
func NewOnActivityHandler(flow AchievementRunner, logger *slog.Logger, config OnActivityConfig) *OnActivityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultOnActivityConfig().Timeout
	}
	logger = logger.With("handler", "on_activity")

	return &OnActivityHandler{
		flow: flow,
		retrier: retry.DatabaseRetrier().With(
			retry.WithMaxAttempts(config.MaxAttempts),
			retry.WithRetryIf(isTransient),
			retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
				logger.Warn("retrying achievement flow", "attempt", attempt, "delay", delay, "error", err)
			}),
		),
		timeout: config.Timeout,
		logger:  logger,
	}
}

// EventTypes lists the events the handler reacts to.
func (h *OnActivityHandler) EventTypes() []shared.EventType {
	return []shared.EventType{shared.EventWorkoutLogged, shared.EventBuddyConnected}
}

// Register subscribes the handler to its events.
func (h *OnActivityHandler) Register(bus shared.EventSubscriber) error {
	for _, t := range h.EventTypes() {
		if err := bus.Subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Handle processes a single event.
func (h *OnActivityHandler) Handle(event shared.Event) error {
	users := affectedUsers(event)
	if len(users) == 0 {
		h.logger.Warn("event carries no user id", "event_type", event.EventType())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var errs []error
	for _, userID := range users {
		err := h.retrier.Do(ctx, func(ctx context.Context) error {
			_, err := h.flow.Execute(ctx, userID)
			return err
		})
		if err != nil {
			h.logger.Error("achievement flow failed",
				"event_type", event.EventType(),
				"user_id", userID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func affectedUsers(event shared.Event) []string {
	var keys []string
	switch event.EventType() {
	case shared.EventWorkoutLogged:
		keys = []string{"user_id"}
	case shared.EventBuddyConnected:
		keys = []string{"user_a_id", "user_b_id"}
	default:
		return nil
	}

	users := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := payloadString(event, k); v != "" {
			users = append(users, v)
		}
	}
	return users
}

func payloadString(event shared.Event, key string) string {
	if v, ok := event.Payload()[key].(string); ok {
		return v
	}
	return ""
}

// isTransient reports whether a failed run is worth repeating.
// Missing profiles and bad input will not fix themselves.
func isTransient(err error) bool {
	return !shared.IsNotFound(err) && !shared.IsValidation(err) && !errors.Is(err, context.Canceled)
}
