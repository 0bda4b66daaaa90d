// Package achievement defines workout badges and the rules that unlock them.
package achievement

import (
	"time"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/leaderboard"
)

// Type identifies a badge.
type Type string

const (
	TypeFirstWorkout    Type = "first_workout"
	TypeTenWorkouts     Type = "ten_workouts"
	TypeFiftyWorkouts   Type = "fifty_workouts"
	TypeHourClub        Type = "hour_club"
	TypeMarathoner      Type = "marathoner"
	TypeCalorieCrusher  Type = "calorie_crusher"
	TypeTop10           Type = "top_10"
	TypeBuddyUp         Type = "buddy_up"
	TypeSocialButterfly Type = "social_butterfly"
)

// IsValid checks the badge type.
func (t Type) IsValid() bool {
	for _, r := range rules {
		if r.badge == t {
			return true
		}
	}
	return false
}

// Badge is an awarded achievement.
type Badge struct {
	UserID    string
	Type      Type
	AwardedAt time.Time
}

// Progress is the snapshot the rules are evaluated against.
type Progress struct {
	WorkoutCount    int
	TotalMinutes    float64
	TotalCalories   float64
	GlobalRank      *leaderboard.Rank
	AcceptedBuddies int
}

// ProgressFromEntry fills workout totals from a leaderboard entry.
// A nil entry leaves the totals at zero.
func ProgressFromEntry(r leaderboard.UserRank, acceptedBuddies int) Progress {
	p := Progress{GlobalRank: r.Rank, AcceptedBuddies: acceptedBuddies}
	if r.Entry != nil {
		p.WorkoutCount = r.Entry.WorkoutCount
		p.TotalMinutes = r.Entry.TotalMinutes
		p.TotalCalories = r.Entry.TotalCalories
	}
	return p
}

type rule struct {
	badge Type
	met   func(Progress) bool
}

var rules = []rule{
	{TypeFirstWorkout, func(p Progress) bool { return p.WorkoutCount >= 1 }},
	{TypeTenWorkouts, func(p Progress) bool { return p.WorkoutCount >= 10 }},
	{TypeFiftyWorkouts, func(p Progress) bool { return p.WorkoutCount >= 50 }},
	{TypeHourClub, func(p Progress) bool { return p.TotalMinutes >= 60 }},
	{TypeMarathoner, func(p Progress) bool { return p.TotalMinutes >= 1000 }},
	{TypeCalorieCrusher, func(p Progress) bool { return p.TotalCalories >= 10000 }},
	{TypeTop10, func(p Progress) bool { return p.GlobalRank != nil && p.GlobalRank.IsTop10() }},
	{TypeBuddyUp, func(p Progress) bool { return p.AcceptedBuddies >= 1 }},
	{TypeSocialButterfly, func(p Progress) bool { return p.AcceptedBuddies >= 5 }},
}

// AllTypes lists every badge in rule order.
func AllTypes() []Type {
	out := make([]Type, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.badge)
	}
	return out
}

// Evaluate returns every badge the progress qualifies for, in rule order.
func Evaluate(p Progress) []Type {
	var earned []Type
	for _, r := range rules {
		if r.met(p) {
			earned = append(earned, r.badge)
		}
	}
	return earned
}
