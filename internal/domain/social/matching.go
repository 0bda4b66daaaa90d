package social

import (
	"math"
	"sort"
	"strings"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/profile"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCHING WEIGHTS
//
// Each criterion counts only when both sides define the attribute:
//   - same goal            +3
//   - same workout         +2
//   - distance < 5 km      +4
//   - distance < 15 km     +2
//   - distance < 30 km     +1
// ══════════════════════════════════════════════════════════════════════════════

const (
	// EarthRadiusKm is the sphere radius used by HaversineKm.
	EarthRadiusKm = 6371.0

	GoalMatchWeight    = 3
	WorkoutMatchWeight = 2
)

// proximityBands are checked in order; the first band containing the distance wins.
var proximityBands = []struct {
	maxKm float64
	score int
}{
	{5, 4},
	{15, 2},
	{30, 1},
}

// MatchResult is a scored buddy candidate.
type MatchResult struct {
	Profile profile.Profile

	// Score is the sum of all matched criteria, never negative.
	Score int

	// DistanceKm is rounded to one decimal and nil when either side has no location.
	DistanceKm *float64
}

// Match scores candidates against subject and returns them best first.
// The subject itself is skipped. Ties keep the candidates' input order.
func Match(subject profile.Profile, candidates []profile.Profile) []MatchResult {
	results := make([]MatchResult, 0, len(candidates))

	for _, c := range candidates {
		if c.ID == subject.ID {
			continue
		}
		results = append(results, score(subject, c))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results
}

func score(subject, candidate profile.Profile) MatchResult {
	res := MatchResult{Profile: candidate}

	if sameText(subject.Goal, candidate.Goal) {
		res.Score += GoalMatchWeight
	}
	if sameText(subject.PreferredWorkout, candidate.PreferredWorkout) {
		res.Score += WorkoutMatchWeight
	}

	if subject.Location != nil && candidate.Location != nil {
		d := HaversineKm(*subject.Location, *candidate.Location)
		res.Score += ProximityScore(d)
		rounded := math.Round(d*10) / 10
		res.DistanceKm = &rounded
	}

	return res
}

// sameText compares two optional strings case-insensitively; absent never matches.
func sameText(a, b *string) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(*a, *b)
}

// ProximityScore maps a distance in kilometres to its score contribution.
func ProximityScore(km float64) int {
	for _, band := range proximityBands {
		if km < band.maxKm {
			return band.score
		}
	}
	return 0
}

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(a, b profile.GeoPoint) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
