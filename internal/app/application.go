package app

import (
	"log/slog"

	"github.com/fitbuddy/fitbuddy-hub/internal/application/command"
	"github.com/fitbuddy/fitbuddy-hub/internal/application/eventhandler"
	"github.com/fitbuddy/fitbuddy-hub/internal/application/query"
	"github.com/fitbuddy/fitbuddy-hub/internal/application/saga"
	httpapi "github.com/fitbuddy/fitbuddy-hub/internal/interface/http"
)

// Application is the set of use cases built on one Infrastructure.
type Application struct {
	GetLeaderboard       *query.GetLeaderboardHandler
	GetCohortLeaderboard *query.GetCohortLeaderboardHandler
	GetUserRank          *query.GetUserRankHandler
	FindBuddies          *query.FindBuddiesHandler
	GetProfile           *query.GetProfileHandler
	ListWorkouts         *query.ListWorkoutsHandler
	ListBuddies          *query.ListBuddiesHandler
	ListAchievements     *query.ListAchievementsHandler

	CreateProfile       *command.CreateProfileHandler
	UpdateProfile       *command.UpdateProfileHandler
	DeleteProfile       *command.DeleteProfileHandler
	LogWorkout          *command.LogWorkoutHandler
	DeleteWorkout       *command.DeleteWorkoutHandler
	SendBuddyRequest    *command.SendBuddyRequestHandler
	RespondBuddyRequest *command.RespondBuddyRequestHandler

	AchievementFlow *saga.AchievementFlowSaga
	OnActivity      *eventhandler.OnActivityHandler
}

// NewApplication builds every handler over infra. Nothing is subscribed
// yet; call RegisterEventHandlers in the process that should award badges.
func NewApplication(infra *Infrastructure, logger *slog.Logger) *Application {
	if logger == nil {
		logger = slog.Default()
	}

	snapshots := query.NewSnapshotLoader(infra.Profiles, infra.Workouts)
	rank := query.NewGetUserRankHandler(snapshots)
	flow := saga.NewAchievementFlowSaga(rank, infra.Buddies, infra.Achievements, infra.Bus, logger, saga.DefaultAchievementFlowConfig())

	return &Application{
		GetLeaderboard:       query.NewGetLeaderboardHandler(snapshots),
		GetCohortLeaderboard: query.NewGetCohortLeaderboardHandler(snapshots, infra.Buddies),
		GetUserRank:          rank,
		FindBuddies:          query.NewFindBuddiesHandler(infra.Profiles, infra.Buddies),
		GetProfile:           query.NewGetProfileHandler(infra.Profiles),
		ListWorkouts:         query.NewListWorkoutsHandler(infra.Profiles, infra.Workouts),
		ListBuddies:          query.NewListBuddiesHandler(infra.Buddies),
		ListAchievements:     query.NewListAchievementsHandler(infra.Achievements),

		CreateProfile:       command.NewCreateProfileHandler(infra.Profiles, infra.Bus),
		UpdateProfile:       command.NewUpdateProfileHandler(infra.Profiles, infra.Bus),
		DeleteProfile:       command.NewDeleteProfileHandler(infra.Profiles, infra.Bus),
		LogWorkout:          command.NewLogWorkoutHandler(infra.Profiles, infra.Workouts, infra.Bus),
		DeleteWorkout:       command.NewDeleteWorkoutHandler(infra.Workouts, infra.Bus),
		SendBuddyRequest:    command.NewSendBuddyRequestHandler(infra.Profiles, infra.Buddies, infra.Bus),
		RespondBuddyRequest: command.NewRespondBuddyRequestHandler(infra.Buddies, infra.Bus),

		AchievementFlow: flow,
		OnActivity:      eventhandler.NewOnActivityHandler(flow, logger, eventhandler.DefaultOnActivityConfig()),
	}
}

// RegisterEventHandlers subscribes the badge handler to infra's bus.
func (a *Application) RegisterEventHandlers(infra *Infrastructure) error {
	return a.OnActivity.Register(infra.Bus)
}

// HTTPDependencies fills the server dependencies from the application.
// Auth, rate limiting and logging are left for the caller.
func (a *Application) HTTPDependencies(infra *Infrastructure) httpapi.Dependencies {
	return httpapi.Dependencies{
		GetLeaderboard:       a.GetLeaderboard,
		GetCohortLeaderboard: a.GetCohortLeaderboard,
		GetUserRank:          a.GetUserRank,
		FindBuddies:          a.FindBuddies,
		GetProfile:           a.GetProfile,
		ListWorkouts:         a.ListWorkouts,
		ListBuddies:          a.ListBuddies,
		ListAchievements:     a.ListAchievements,

		CreateProfile:       a.CreateProfile,
		UpdateProfile:       a.UpdateProfile,
		DeleteProfile:       a.DeleteProfile,
		LogWorkout:          a.LogWorkout,
		DeleteWorkout:       a.DeleteWorkout,
		SendBuddyRequest:    a.SendBuddyRequest,
		RespondBuddyRequest: a.RespondBuddyRequest,

		Events:        infra.Bus,
		HealthChecker: infra.Health,
	}
}
