package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ironcrew/ironcrew-server/internal/domain"
)

func (s *Server) registerDuelRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createDuel",
		Method:        http.MethodPost,
		Path:          "/api/v1/duels",
		Summary:       "Challenge a user",
		Description:   "Creates a pending one-on-one duel",
		Tags:          []string{"Duels"},
		Security:      bearer,
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateDuel)

	huma.Register(s.api, huma.Operation{
		OperationID: "getDuel",
		Method:      http.MethodGet,
		Path:        "/api/v1/duels/{id}",
		Summary:     "Get duel",
		Tags:        []string{"Duels"},
		Security:    bearer,
	}, s.handleGetDuel)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMyDuels",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/duels",
		Summary:     "List my duels",
		Tags:        []string{"Duels"},
		Security:    bearer,
	}, s.handleListMyDuels)

	for _, op := range []struct {
		id, path, summary string
		handler           func(context.Context, *DuelIDInput) (*DuelOutput, error)
	}{
		{"acceptDuel", "/api/v1/duels/{id}/accept", "Accept duel", s.handleAcceptDuel},
		{"declineDuel", "/api/v1/duels/{id}/decline", "Decline duel", s.handleDeclineDuel},
		{"cancelDuel", "/api/v1/duels/{id}/cancel", "Cancel duel", s.handleCancelDuel},
	} {
		huma.Register(s.api, huma.Operation{
			OperationID: op.id,
			Method:      http.MethodPost,
			Path:        op.path,
			Summary:     op.summary,
			Tags:        []string{"Duels"},
			Security:    bearer,
		}, op.handler)
	}
}

// CreateDuelRequest is the request body for challenging a user.
type CreateDuelRequest struct {
	OpponentID   string `json:"opponent_id" validate:"required" doc:"User being challenged"`
	Type         string `json:"type" validate:"required,duel_type" doc:"streak or workout_count"`
	DurationDays int    `json:"duration_days" validate:"required,min=1" doc:"Length of the duel in days"`
}

// CreateDuelInput wraps the create request for Huma.
type CreateDuelInput struct {
	Body CreateDuelRequest
}

// DuelIDInput identifies a duel.
type DuelIDInput struct {
	ID string `path:"id" doc:"Duel ID"`
}

// DuelOutput wraps one duel.
type DuelOutput struct {
	Body *domain.Duel
}

// DuelListResponse lists duels.
type DuelListResponse struct {
	Duels []*domain.Duel `json:"duels"`
}

// DuelListOutput wraps DuelListResponse for Huma.
type DuelListOutput struct {
	Body DuelListResponse
}

func (s *Server) handleCreateDuel(ctx context.Context, input *CreateDuelInput) (*DuelOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, err
	}

	d, err := s.services.Duels.Create(ctx, userID, input.Body.OpponentID,
		domain.DuelType(input.Body.Type), input.Body.DurationDays)
	if err != nil {
		return nil, err
	}
	return &DuelOutput{Body: d}, nil
}

func (s *Server) handleGetDuel(ctx context.Context, input *DuelIDInput) (*DuelOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	d, err := s.services.Duels.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &DuelOutput{Body: d}, nil
}

func (s *Server) handleListMyDuels(ctx context.Context, _ *struct{}) (*DuelListOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	duels, err := s.services.Duels.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if duels == nil {
		duels = []*domain.Duel{}
	}
	return &DuelListOutput{Body: DuelListResponse{Duels: duels}}, nil
}

func (s *Server) handleAcceptDuel(ctx context.Context, input *DuelIDInput) (*DuelOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	d, err := s.services.Duels.Accept(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &DuelOutput{Body: d}, nil
}

func (s *Server) handleDeclineDuel(ctx context.Context, input *DuelIDInput) (*DuelOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	d, err := s.services.Duels.Decline(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &DuelOutput{Body: d}, nil
}

func (s *Server) handleCancelDuel(ctx context.Context, input *DuelIDInput) (*DuelOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	d, err := s.services.Duels.Cancel(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &DuelOutput{Body: d}, nil
}
