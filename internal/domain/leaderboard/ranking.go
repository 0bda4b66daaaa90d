package leaderboard

import (
	"sort"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/profile"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/workout"
)

// DefaultCohortLimit caps cohort leaderboards when the caller passes no limit.
const DefaultCohortLimit = 50

// Options controls ComputeLeaderboard.
type Options struct {
	// Metric to sort by. Invalid values fall back to points.
	Metric Metric

	// Cohort restricts eligible profiles when non-nil.
	Cohort map[string]struct{}

	// Limit truncates the result when > 0.
	Limit int
}

// NewCohort builds a cohort set from IDs.
func NewCohort(ids ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// ComputeLeaderboard aggregates workouts per eligible profile and ranks users
// with at least one workout. Ties keep the order of profiles.
func ComputeLeaderboard(profiles []profile.Profile, workouts []workout.Record, opts Options) []Entry {
	metric := opts.Metric
	if !metric.IsValid() {
		metric = MetricPoints
	}

	entries := make([]*Entry, 0, len(profiles))
	byID := make(map[string]*Entry, len(profiles))

	for _, p := range profiles {
		if opts.Cohort != nil {
			if _, ok := opts.Cohort[p.ID]; !ok {
				continue
			}
		}
		if _, dup := byID[p.ID]; dup {
			continue
		}
		e := &Entry{
			ID:        p.ID,
			Username:  p.Username,
			AvatarURL: p.AvatarURL,
			Goal:      p.Goal,
		}
		byID[p.ID] = e
		entries = append(entries, e)
	}

	for _, w := range workouts {
		e, ok := byID[w.UserID]
		if !ok {
			continue
		}
		e.WorkoutCount++
		e.TotalMinutes += w.Minutes()
		e.TotalCalories += w.Calories()
	}

	ranked := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.WorkoutCount == 0 {
			continue
		}
		e.Points = Points(e.WorkoutCount, e.TotalMinutes, e.TotalCalories)
		ranked = append(ranked, *e)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Value(metric) > ranked[j].Value(metric)
	})

	for i := range ranked {
		ranked[i].Rank = Rank(i + 1)
	}

	if opts.Limit > 0 && len(ranked) > opts.Limit {
		ranked = ranked[:opts.Limit]
	}

	return ranked
}

// GetUserRank finds userID on the full leaderboard for the metric.
// Users without activity or without a profile are not ranked.
func GetUserRank(profiles []profile.Profile, workouts []workout.Record, userID string, metric Metric) UserRank {
	return NewStandings(ComputeLeaderboard(profiles, workouts, Options{Metric: metric})).Lookup(userID)
}

// Standings indexes a full leaderboard by user id.
type Standings struct {
	entries []Entry
	byID    map[string]int
}

// NewStandings indexes entries, which must be an unlimited leaderboard.
func NewStandings(entries []Entry) *Standings {
	byID := make(map[string]int, len(entries))
	for i, e := range entries {
		byID[e.ID] = i
	}
	return &Standings{entries: entries, byID: byID}
}

// Lookup returns userID's rank, or an unranked result.
func (s *Standings) Lookup(userID string) UserRank {
	i, ok := s.byID[userID]
	if !ok {
		return UserRank{}
	}
	entry := s.entries[i]
	rank := entry.Rank
	return UserRank{Rank: &rank, Entry: &entry}
}

// Len is the number of ranked users.
func (s *Standings) Len() int {
	return len(s.entries)
}

// GetCohortLeaderboard ranks userID and their connections by points.
// A limit <= 0 means DefaultCohortLimit.
func GetCohortLeaderboard(profiles []profile.Profile, workouts []workout.Record, userID string, connectedIDs []string, limit int) []Entry {
	if limit <= 0 {
		limit = DefaultCohortLimit
	}

	cohort := NewCohort(connectedIDs...)
	cohort[userID] = struct{}{}

	return ComputeLeaderboard(profiles, workouts, Options{
		Metric: MetricPoints,
		Cohort: cohort,
		Limit:  limit,
	})
}
