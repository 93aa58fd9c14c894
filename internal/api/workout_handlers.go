package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ironcrew/ironcrew-server/internal/domain"
	"github.com/ironcrew/ironcrew-server/internal/service"
)

func (s *Server) registerWorkoutRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "logWorkout",
		Method:        http.MethodPost,
		Path:          "/api/v1/workouts",
		Summary:       "Log a workout",
		Description:   "Logs one workout day for the caller and runs streaks, achievements, levels and contest scoring",
		Tags:          []string{"Workouts"},
		Security:      bearer,
		DefaultStatus: http.StatusCreated,
	}, s.handleLogWorkout)

	huma.Register(s.api, huma.Operation{
		OperationID: "getWorkoutHistory",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/workouts",
		Summary:     "List workout days",
		Description: "Lists the caller's workout days in an inclusive window, by default the current month",
		Tags:        []string{"Workouts"},
		Security:    bearer,
	}, s.handleWorkoutHistory)
}

// LogWorkoutRequest is the request body for logging a workout.
type LogWorkoutRequest struct {
	Date string `json:"date,omitempty" validate:"omitempty,day" doc:"Workout day as YYYY-MM-DD, defaults to today (UTC)"`
}

// LogWorkoutInput wraps the optional body.
type LogWorkoutInput struct {
	Body *LogWorkoutRequest `required:"false"`
}

// LogWorkoutOutput wraps the pipeline result for Huma.
type LogWorkoutOutput struct {
	Body *service.LogWorkoutResult
}

func (s *Server) handleLogWorkout(ctx context.Context, input *LogWorkoutInput) (*LogWorkoutOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	var day time.Time
	if input.Body != nil {
		if err := s.validator.Validate(input.Body); err != nil {
			return nil, err
		}
		if input.Body.Date != "" {
			// Already validated by the day tag.
			day, _ = domain.ParseDay(input.Body.Date)
		}
	}

	result, err := s.services.Activity.LogWorkout(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	return &LogWorkoutOutput{Body: result}, nil
}

// WorkoutHistoryInput bounds the history window.
type WorkoutHistoryInput struct {
	From string `query:"from" json:"from" validate:"omitempty,day" doc:"First day, YYYY-MM-DD. Defaults to the start of the month"`
	To   string `query:"to" json:"to" validate:"omitempty,day" doc:"Last day, YYYY-MM-DD. Defaults to today (UTC)"`
}

// WorkoutHistoryOutput wraps the history for Huma.
type WorkoutHistoryOutput struct {
	Body *service.WorkoutHistory
}

func (s *Server) handleWorkoutHistory(ctx context.Context, input *WorkoutHistoryInput) (*WorkoutHistoryOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	var from, to time.Time
	if input.From != "" {
		from, _ = domain.ParseDay(input.From)
	}
	if input.To != "" {
		to, _ = domain.ParseDay(input.To)
	}

	history, err := s.services.Activity.WorkoutHistory(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	return &WorkoutHistoryOutput{Body: history}, nil
}
