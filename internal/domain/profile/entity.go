// Package profile contains the user profile domain model.
package profile

import (
	"math"
	"strings"
	"time"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GEO POINT
// ══════════════════════════════════════════════════════════════════════════════

// GeoPoint is a known latitude/longitude pair in degrees.
type GeoPoint struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// NewGeoPoint returns a point only when both coordinates are present,
// finite and inside the valid ranges. Anything else is an unknown location.
func NewGeoPoint(lat, lon *float64) *GeoPoint {
	if lat == nil || lon == nil {
		return nil
	}
	if !validCoordinate(*lat, 90) || !validCoordinate(*lon, 180) {
		return nil
	}
	return &GeoPoint{Lat: *lat, Lon: *lon}
}

func validCoordinate(v, bound float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= -bound && v <= bound
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE
// ══════════════════════════════════════════════════════════════════════════════

// Profile is a user's public fitness profile.
// Optional attributes are pointers: nil means "not set", which is distinct
// from an empty or zero value.
type Profile struct {
	ID               string
	Username         string
	AvatarURL        string
	Goal             *string
	PreferredWorkout *string
	Location         *GeoPoint
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasLocation reports whether the profile carries a known location pair.
func (p Profile) HasLocation() bool {
	return p.Location != nil
}

// GoalValue returns the goal or an empty string.
func (p Profile) GoalValue() string {
	if p.Goal == nil {
		return ""
	}
	return *p.Goal
}

// Validate checks profile invariants before persisting.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return shared.NewDomainError("profile", "Validate", shared.ErrInvalidID, "profile id is required")
	}
	if strings.TrimSpace(p.Username) == "" {
		return shared.NewDomainError("profile", "Validate", shared.ErrEmptyValue, "username is required")
	}
	if len(p.Username) > MaxUsernameLength {
		return shared.NewDomainError("profile", "Validate", shared.ErrValueOutOfRange, "username is too long")
	}
	return nil
}

// MaxUsernameLength bounds usernames.
const MaxUsernameLength = 50

// NormalizeOptional trims the value and turns blank strings into nil.
func NormalizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE FIELDS
// ══════════════════════════════════════════════════════════════════════════════

// UpdateFields is a partial profile update. Nil fields are left untouched.
// ClearLocation removes a stored location; it wins over Latitude/Longitude.
type UpdateFields struct {
	Username         *string
	AvatarURL        *string
	Goal             *string
	PreferredWorkout *string
	Latitude         *float64
	Longitude        *float64
	ClearLocation    bool
}

// IsEmpty reports whether the update changes nothing.
func (u UpdateFields) IsEmpty() bool {
	return u.Username == nil && u.AvatarURL == nil && u.Goal == nil &&
		u.PreferredWorkout == nil && u.Latitude == nil && u.Longitude == nil &&
		!u.ClearLocation
}

// Names returns the names of the fields the update touches.
func (u UpdateFields) Names() []string {
	names := make([]string, 0, 6)
	if u.Username != nil {
		names = append(names, "username")
	}
	if u.AvatarURL != nil {
		names = append(names, "avatar_url")
	}
	if u.Goal != nil {
		names = append(names, "goal")
	}
	if u.PreferredWorkout != nil {
		names = append(names, "preferred_workout")
	}
	if u.ClearLocation || u.Latitude != nil || u.Longitude != nil {
		names = append(names, "location")
	}
	return names
}

// Apply returns a copy of p with the update applied.
// A coordinate update must carry both latitude and longitude.
func (u UpdateFields) Apply(p Profile) (Profile, error) {
	if u.Username != nil {
		p.Username = strings.TrimSpace(*u.Username)
	}
	if u.AvatarURL != nil {
		p.AvatarURL = strings.TrimSpace(*u.AvatarURL)
	}
	if u.Goal != nil {
		p.Goal = NormalizeOptional(u.Goal)
	}
	if u.PreferredWorkout != nil {
		p.PreferredWorkout = NormalizeOptional(u.PreferredWorkout)
	}

	switch {
	case u.ClearLocation:
		p.Location = nil
	case u.Latitude != nil || u.Longitude != nil:
		loc := NewGeoPoint(u.Latitude, u.Longitude)
		if loc == nil {
			return p, shared.NewDomainError("profile", "Apply", shared.ErrInvalidInput,
				"latitude and longitude must be provided together and within range")
		}
		p.Location = loc
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}
