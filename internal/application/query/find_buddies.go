package query

import (
	"context"
	"errors"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/profile"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/social"
)

const (
	// DefaultMatchLimit is used when the caller passes no limit.
	DefaultMatchLimit = 20

	// MaxMatchLimit caps a single page of matches.
	MaxMatchLimit = 100
)

// ══════════════════════════════════════════════════════════════════════════════
// FIND BUDDIES QUERY
// Scores every other profile against the user and returns the best matches.
// ══════════════════════════════════════════════════════════════════════════════

// FindBuddiesQuery contains the matching parameters.
type FindBuddiesQuery struct {
	UserID string

	// Limit defaults to DefaultMatchLimit and is capped at MaxMatchLimit.
	Limit int

	// MinScore drops weaker candidates. 0 keeps everyone.
	MinScore int

	// ExcludeConnected drops users the subject already has a connection with,
	// pending or accepted.
	ExcludeConnected bool
}

// Validate checks and normalises the query.
func (q *FindBuddiesQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user id is required")
	}
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.MinScore < 0 {
		return errors.New("min_score cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = DefaultMatchLimit
	}
	if q.Limit > MaxMatchLimit {
		q.Limit = MaxMatchLimit
	}
	return nil
}

// BuddyMatchDTO is one scored candidate.
type BuddyMatchDTO struct {
	Profile    ProfileDTO `json:"profile"`
	Score      int        `json:"score"`
	DistanceKm *float64   `json:"distance_km"`
}

// FindBuddiesResult contains the matches, best first.
type FindBuddiesResult struct {
	UserID          string          `json:"user_id"`
	Matches         []BuddyMatchDTO `json:"matches"`
	CandidatesCount int             `json:"candidates_count"`
}

// FindBuddiesHandler handles buddy matching requests.
type FindBuddiesHandler struct {
	profiles profile.Repository
	buddies  social.Repository
}

// NewFindBuddiesHandler creates the handler.
func NewFindBuddiesHandler(profiles profile.Repository, buddies social.Repository) *FindBuddiesHandler {
	return &FindBuddiesHandler{profiles: profiles, buddies: buddies}
}

// Handle runs the matcher over every other profile.
func (h *FindBuddiesHandler) Handle(ctx context.Context, q FindBuddiesQuery) (*FindBuddiesResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "FindBuddies", shared.ErrValidation, err.Error(), err)
	}

	subject, err := h.profiles.GetByID(ctx, q.UserID)
	if err != nil {
		return nil, shared.WrapError("query", "FindBuddies", shared.ErrServiceUnavailable, "failed to fetch profile", err)
	}

	candidates, err := h.profiles.List(ctx, profile.ListFilter{ExcludeID: q.UserID})
	if err != nil {
		return nil, shared.WrapError("query", "FindBuddies", shared.ErrServiceUnavailable, "failed to fetch candidates", err)
	}

	if q.ExcludeConnected {
		candidates, err = h.dropConnected(ctx, q.UserID, candidates)
		if err != nil {
			return nil, err
		}
	}

	matches := social.Match(*subject, candidates)

	out := make([]BuddyMatchDTO, 0, q.Limit)
	for _, m := range matches {
		if m.Score < q.MinScore {
			// sorted by score, nothing further qualifies
			break
		}
		if len(out) == q.Limit {
			break
		}
		out = append(out, BuddyMatchDTO{
			Profile:    NewProfileDTO(m.Profile),
			Score:      m.Score,
			DistanceKm: m.DistanceKm,
		})
	}

	return &FindBuddiesResult{
		UserID:          q.UserID,
		Matches:         out,
		CandidatesCount: len(matches),
	}, nil
}

func (h *FindBuddiesHandler) dropConnected(ctx context.Context, userID string, candidates []profile.Profile) ([]profile.Profile, error) {
	skip := make(map[string]struct{})
	for _, status := range []social.ConnectionStatus{social.ConnectionStatusAccepted, social.ConnectionStatusPending} {
		ids, err := h.buddies.ListConnections(ctx, userID, status)
		if err != nil {
			return nil, shared.WrapError("query", "FindBuddies", shared.ErrServiceUnavailable, "failed to fetch buddies", err)
		}
		for _, id := range ids {
			skip[id] = struct{}{}
		}
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if _, ok := skip[c.ID]; !ok {
			kept = append(kept, c)
		}
	}
	return kept, nil
}
