package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ironcrew/ironcrew-server/internal/domain"
	"github.com/ironcrew/ironcrew-server/internal/service"
)

func (s *Server) registerLeaderboardRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getLeaderboard",
		Method:      http.MethodGet,
		Path:        "/api/v1/leaderboard",
		Summary:     "Get leaderboard",
		Description: "Ranks users by points for the current month within a scope",
		Tags:        []string{"Leaderboard"},
		Security:    bearer,
	}, s.handleGetLeaderboard)
}

// GetLeaderboardInput contains parameters for getting the leaderboard.
type GetLeaderboardInput struct {
	Scope   string `query:"scope" default:"global" json:"scope" validate:"lb_scope" doc:"global, friends or groups"`
	GroupID string `query:"group_id" json:"group_id" doc:"Restrict the groups scope to one group"`
	Limit   int    `query:"limit" json:"limit" doc:"Max rows (default 10, max 100)"`
}

// LeaderboardOutput wraps the leaderboard for Huma.
type LeaderboardOutput struct {
	Body *domain.Leaderboard
}

func (s *Server) handleGetLeaderboard(ctx context.Context, input *GetLeaderboardInput) (*LeaderboardOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	board, err := s.services.Leaderboard.GetLeaderboard(ctx, service.LeaderboardQuery{
		Scope:         domain.LeaderboardScope(input.Scope),
		GroupID:       input.GroupID,
		Limit:         input.Limit,
		CurrentUserID: userID,
	})
	if err != nil {
		return nil, err
	}
	return &LeaderboardOutput{Body: board}, nil
}
