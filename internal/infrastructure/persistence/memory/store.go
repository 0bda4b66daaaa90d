// Package memory implements the repositories on top of process-local maps.
// It backs the memory:// database URL used for local runs and the test suites,
// and mirrors the constraints the PostgreSQL schema enforces.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/achievement"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/profile"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/social"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/workout"
)

// URLScheme selects the in-memory store in DATABASE_URL.
const URLScheme = "memory://"

// IsMemoryURL reports whether the database URL selects this store.
func IsMemoryURL(url string) bool {
	return strings.HasPrefix(url, URLScheme)
}

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store holds every table behind a single lock.
type Store struct {
	mu sync.RWMutex

	profiles    map[string]profile.Profile
	workouts    map[string]workout.Record
	connections map[string]social.Connection
	badges      map[string][]achievement.Badge

	now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		profiles:    make(map[string]profile.Profile),
		workouts:    make(map[string]workout.Record),
		connections: make(map[string]social.Connection),
		badges:      make(map[string][]achievement.Badge),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Profiles returns the profile repository.
func (s *Store) Profiles() *ProfileRepository { return &ProfileRepository{s: s} }

// Workouts returns the workout repository.
func (s *Store) Workouts() *WorkoutRepository { return &WorkoutRepository{s: s} }

// Buddies returns the buddy repository.
func (s *Store) Buddies() *BuddyRepository { return &BuddyRepository{s: s} }

// Achievements returns the badge repository.
func (s *Store) Achievements() *AchievementRepository { return &AchievementRepository{s: s} }

// Ping always succeeds. It lets the store stand in for a database health check.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func notFound(domain, what string) error {
	return shared.NewDomainError(domain, "Get", shared.ErrNotFound, what+" not found")
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILES
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements profile.Repository.
type ProfileRepository struct {
	s *Store
}

// Create stores a new profile. IDs and usernames are unique.
func (r *ProfileRepository) Create(ctx context.Context, p *profile.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.profiles[p.ID]; ok || r.usernameTaken(p.Username, "") {
		return shared.NewDomainError("profile", "Create", shared.ErrAlreadyExists, "profile or username already exists")
	}

	now := r.s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	r.s.profiles[p.ID] = *p
	return nil
}

func (r *ProfileRepository) usernameTaken(username, exceptID string) bool {
	for id, p := range r.s.profiles {
		if id != exceptID && p.Username == username {
			return true
		}
	}
	return false
}

// GetByID returns a profile by ID.
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*profile.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.profiles[id]
	if !ok {
		return nil, notFound("profile", "profile")
	}
	return &p, nil
}

// List returns profiles ordered by creation time, then ID.
func (r *ProfileRepository) List(ctx context.Context, filter profile.ListFilter) ([]profile.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var wanted map[string]struct{}
	if len(filter.IDs) > 0 {
		wanted = make(map[string]struct{}, len(filter.IDs))
		for _, id := range filter.IDs {
			wanted[id] = struct{}{}
		}
	}

	var out []profile.Profile
	for _, p := range r.s.profiles {
		if wanted != nil {
			if _, ok := wanted[p.ID]; !ok {
				continue
			}
		}
		if filter.ExcludeID != "" && p.ID == filter.ExcludeID {
			continue
		}
		if filter.Goal != nil && !strings.EqualFold(p.GoalValue(), *filter.Goal) {
			continue
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Update applies a partial update.
func (r *ProfileRepository) Update(ctx context.Context, id string, fields profile.UpdateFields) (*profile.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.profiles[id]
	if !ok {
		return nil, notFound("profile", "profile")
	}

	updated, err := fields.Apply(current)
	if err != nil {
		return nil, err
	}
	if r.usernameTaken(updated.Username, id) {
		return nil, shared.NewDomainError("profile", "Update", shared.ErrAlreadyExists, "username already taken")
	}

	updated.UpdatedAt = r.s.now()
	r.s.profiles[id] = updated
	return &updated, nil
}

// Delete removes a profile with its workouts, connections and badges.
func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.profiles[id]; !ok {
		return shared.NewDomainError("profile", "Delete", shared.ErrNotFound, "profile not found")
	}

	delete(r.s.profiles, id)
	delete(r.s.badges, id)
	for wid, w := range r.s.workouts {
		if w.UserID == id {
			delete(r.s.workouts, wid)
		}
	}
	for cid, c := range r.s.connections {
		if c.Involves(id) {
			delete(r.s.connections, cid)
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WORKOUTS
// ══════════════════════════════════════════════════════════════════════════════

// WorkoutRepository implements workout.Repository.
type WorkoutRepository struct {
	s *Store
}

// Create stores a workout for an existing profile.
func (r *WorkoutRepository) Create(ctx context.Context, w *workout.Record) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.profiles[w.UserID]; !ok {
		return shared.NewDomainError("workout", "Create", shared.ErrNotFound, "profile not found")
	}
	if _, ok := r.s.workouts[w.ID]; ok {
		return shared.NewDomainError("workout", "Create", shared.ErrAlreadyExists, "workout already exists")
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = r.s.now()
	}
	r.s.workouts[w.ID] = *w
	return nil
}

// GetByID returns a workout by ID.
func (r *WorkoutRepository) GetByID(ctx context.Context, id string) (*workout.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	w, ok := r.s.workouts[id]
	if !ok {
		return nil, notFound("workout", "workout")
	}
	return &w, nil
}

// List returns workouts ordered by performed_at, then ID.
func (r *WorkoutRepository) List(ctx context.Context, filter workout.ListFilter) ([]workout.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var users map[string]struct{}
	if len(filter.UserIDs) > 0 {
		users = make(map[string]struct{}, len(filter.UserIDs))
		for _, id := range filter.UserIDs {
			users[id] = struct{}{}
		}
	}

	var out []workout.Record
	for _, w := range r.s.workouts {
		if filter.UserID != "" && w.UserID != filter.UserID {
			continue
		}
		if users != nil {
			if _, ok := users[w.UserID]; !ok {
				continue
			}
		}
		out = append(out, w)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].PerformedAt.Equal(out[j].PerformedAt) {
			return out[i].PerformedAt.Before(out[j].PerformedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Delete removes a workout.
func (r *WorkoutRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.workouts[id]; !ok {
		return shared.NewDomainError("workout", "Delete", shared.ErrNotFound, "workout not found")
	}
	delete(r.s.workouts, id)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BUDDIES
// ══════════════════════════════════════════════════════════════════════════════

// BuddyRepository implements social.Repository.
type BuddyRepository struct {
	s *Store
}

func (r *BuddyRepository) involving(userID string, status social.ConnectionStatus) []social.Connection {
	var out []social.Connection
	for _, c := range r.s.connections {
		if c.Involves(userID) && c.Status == status {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListConnections returns the other side of every matching connection.
func (r *BuddyRepository) ListConnections(ctx context.Context, userID string, status social.ConnectionStatus) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	conns := r.involving(userID, status)
	ids := make([]string, len(conns))
	for i := range conns {
		ids[i] = conns[i].Other(userID)
	}
	return ids, nil
}

// ListRequests returns matching connection rows.
func (r *BuddyRepository) ListRequests(ctx context.Context, userID string, status social.ConnectionStatus) ([]social.Connection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.involving(userID, status), nil
}

// CreateRequest stores a pending connection. A pair may hold one pending or
// accepted row in either direction. Rejected rows do not count.
func (r *BuddyRepository) CreateRequest(ctx context.Context, c *social.Connection) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, id := range []string{c.RequesterID, c.AddresseeID} {
		if _, ok := r.s.profiles[id]; !ok {
			return shared.NewDomainError("social", "CreateRequest", shared.ErrNotFound, "profile not found")
		}
	}
	for _, existing := range r.s.connections {
		if existing.Status == social.ConnectionStatusRejected {
			continue
		}
		if existing.Involves(c.RequesterID) && existing.Involves(c.AddresseeID) {
			return shared.NewDomainError("social", "CreateRequest", shared.ErrAlreadyExists, "connection already exists")
		}
	}

	r.s.connections[c.ID] = *c
	return nil
}

// GetByID returns a connection by ID.
func (r *BuddyRepository) GetByID(ctx context.Context, id string) (*social.Connection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.connections[id]
	if !ok {
		return nil, notFound("social", "connection")
	}
	return &c, nil
}

// UpdateStatus persists a response. Only pending rows can change.
func (r *BuddyRepository) UpdateStatus(ctx context.Context, c *social.Connection) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.connections[c.ID]
	if !ok || stored.Status != social.ConnectionStatusPending {
		return shared.WrapError("social", "UpdateStatus", shared.ErrStateTransition,
			"connection is not pending", social.ErrConnectionNotPending)
	}

	stored.Status = c.Status
	stored.RespondedAt = c.RespondedAt
	r.s.connections[c.ID] = stored
	return nil
}

// CountAccepted returns the number of accepted buddies.
func (r *BuddyRepository) CountAccepted(ctx context.Context, userID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return len(r.involving(userID, social.ConnectionStatusAccepted)), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements achievement.Repository.
type AchievementRepository struct {
	s *Store
}

// HasAchievement checks if a user holds a badge.
func (r *AchievementRepository) HasAchievement(ctx context.Context, userID string, t achievement.Type) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, b := range r.s.badges[userID] {
		if b.Type == t {
			return true, nil
		}
	}
	return false, nil
}

// Award grants a badge once and reports whether it was new.
func (r *AchievementRepository) Award(ctx context.Context, userID string, t achievement.Type) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.profiles[userID]; !ok {
		return false, shared.NewDomainError("achievement", "Award", shared.ErrNotFound, "profile not found")
	}
	for _, b := range r.s.badges[userID] {
		if b.Type == t {
			return false, nil
		}
	}

	r.s.badges[userID] = append(r.s.badges[userID], achievement.Badge{
		UserID:    userID,
		Type:      t,
		AwardedAt: r.s.now(),
	})
	return true, nil
}

// List returns a user's badges, oldest first.
func (r *AchievementRepository) List(ctx context.Context, userID string) ([]achievement.Badge, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]achievement.Badge, len(r.s.badges[userID]))
	copy(out, r.s.badges[userID])
	return out, nil
}
