package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ironcrew/ironcrew-server/internal/domain"
)

func (s *Server) registerCompetitionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createChallenge",
		Method:        http.MethodPost,
		Path:          "/api/v1/competitions",
		Summary:       "Challenge a group",
		Description:   "Creates a pending challenge competition between two groups",
		Tags:          []string{"Competitions"},
		Security:      bearer,
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateChallenge)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCompetition",
		Method:      http.MethodGet,
		Path:        "/api/v1/competitions/{id}",
		Summary:     "Get competition",
		Tags:        []string{"Competitions"},
		Security:    bearer,
	}, s.handleGetCompetition)

	huma.Register(s.api, huma.Operation{
		OperationID: "listContributions",
		Method:      http.MethodGet,
		Path:        "/api/v1/competitions/{id}/contributions",
		Summary:     "List contributions",
		Description: "Returns per-member points within the competition, ranked per group",
		Tags:        []string{"Competitions"},
		Security:    bearer,
	}, s.handleListContributions)

	huma.Register(s.api, huma.Operation{
		OperationID: "acceptCompetition",
		Method:      http.MethodPost,
		Path:        "/api/v1/competitions/{id}/accept",
		Summary:     "Accept challenge",
		Description: "Starts a pending competition (target group owner or admin)",
		Tags:        []string{"Competitions"},
		Security:    bearer,
	}, s.handleAcceptCompetition)

	huma.Register(s.api, huma.Operation{
		OperationID: "cancelCompetition",
		Method:      http.MethodPost,
		Path:        "/api/v1/competitions/{id}/cancel",
		Summary:     "Cancel competition",
		Tags:        []string{"Competitions"},
		Security:    bearer,
	}, s.handleCancelCompetition)

	huma.Register(s.api, huma.Operation{
		OperationID: "listGroupCompetitions",
		Method:      http.MethodGet,
		Path:        "/api/v1/groups/{id}/competitions",
		Summary:     "List group competitions",
		Tags:        []string{"Competitions"},
		Security:    bearer,
	}, s.handleListGroupCompetitions)
}

// CreateChallengeRequest is the request body for challenging a group.
type CreateChallengeRequest struct {
	ChallengerGroupID string `json:"challenger_group_id" validate:"required" doc:"Group issuing the challenge"`
	TargetGroupID     string `json:"target_group_id" validate:"required,nefield=ChallengerGroupID" doc:"Group being challenged"`
	DurationDays      int    `json:"duration_days" validate:"required,min=1" doc:"Length of the competition in days"`
}

// CreateChallengeInput wraps the create request for Huma.
type CreateChallengeInput struct {
	Body CreateChallengeRequest
}

// CompetitionIDInput identifies a competition.
type CompetitionIDInput struct {
	ID string `path:"id" doc:"Competition ID"`
}

// GroupIDInput identifies a group.
type GroupIDInput struct {
	ID string `path:"id" doc:"Group ID"`
}

// CompetitionOutput wraps one competition.
type CompetitionOutput struct {
	Body *domain.GroupCompetition
}

// CompetitionListResponse lists competitions.
type CompetitionListResponse struct {
	Competitions []*domain.GroupCompetition `json:"competitions"`
}

// CompetitionListOutput wraps CompetitionListResponse for Huma.
type CompetitionListOutput struct {
	Body CompetitionListResponse
}

// ContributionListResponse lists member contributions.
type ContributionListResponse struct {
	Contributions []*domain.CompetitionContribution `json:"contributions"`
}

// ContributionListOutput wraps ContributionListResponse for Huma.
type ContributionListOutput struct {
	Body ContributionListResponse
}

func (s *Server) handleCreateChallenge(ctx context.Context, input *CreateChallengeInput) (*CompetitionOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, err
	}

	c, err := s.services.Competitions.CreateChallenge(ctx, userID,
		input.Body.ChallengerGroupID, input.Body.TargetGroupID, input.Body.DurationDays)
	if err != nil {
		return nil, err
	}
	return &CompetitionOutput{Body: c}, nil
}

func (s *Server) handleGetCompetition(ctx context.Context, input *CompetitionIDInput) (*CompetitionOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	c, err := s.services.Competitions.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &CompetitionOutput{Body: c}, nil
}

func (s *Server) handleListContributions(ctx context.Context, input *CompetitionIDInput) (*ContributionListOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	contribs, err := s.services.Competitions.Contributions(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if contribs == nil {
		contribs = []*domain.CompetitionContribution{}
	}
	return &ContributionListOutput{Body: ContributionListResponse{Contributions: contribs}}, nil
}

func (s *Server) handleAcceptCompetition(ctx context.Context, input *CompetitionIDInput) (*CompetitionOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	c, err := s.services.Competitions.Accept(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &CompetitionOutput{Body: c}, nil
}

func (s *Server) handleCancelCompetition(ctx context.Context, input *CompetitionIDInput) (*CompetitionOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	c, err := s.services.Competitions.Cancel(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &CompetitionOutput{Body: c}, nil
}

func (s *Server) handleListGroupCompetitions(ctx context.Context, input *GroupIDInput) (*CompetitionListOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	list, err := s.services.Competitions.ListForGroup(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*domain.GroupCompetition{}
	}
	return &CompetitionListOutput{Body: CompetitionListResponse{Competitions: list}}, nil
}
