package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ironcrew/ironcrew-server/internal/domain"
	"github.com/ironcrew/ironcrew-server/internal/service"
)

func (s *Server) registerMatchmakingRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "enqueueGroup",
		Method:        http.MethodPost,
		Path:          "/api/v1/matchmaking/queue",
		Summary:       "Join matchmaking",
		Description:   "Queues a group for a matchmaking competition and tries to pair it immediately",
		Tags:          []string{"Matchmaking"},
		Security:      bearer,
		DefaultStatus: http.StatusCreated,
	}, s.handleEnqueueGroup)

	huma.Register(s.api, huma.Operation{
		OperationID:   "dequeueGroup",
		Method:        http.MethodDelete,
		Path:          "/api/v1/matchmaking/queue/{group_id}",
		Summary:       "Leave matchmaking",
		Description:   "Removes a group from the matchmaking queue (group owner or admin)",
		Tags:          []string{"Matchmaking"},
		Security:      bearer,
		DefaultStatus: http.StatusNoContent,
	}, s.handleDequeueGroup)

	huma.Register(s.api, huma.Operation{
		OperationID: "listQueue",
		Method:      http.MethodGet,
		Path:        "/api/v1/matchmaking/queue",
		Summary:     "List matchmaking queue",
		Description: "Returns the groups waiting for an opponent, oldest first",
		Tags:        []string{"Matchmaking"},
		Security:    bearer,
	}, s.handleListQueue)
}

// EnqueueRequest is the request body for joining matchmaking.
type EnqueueRequest struct {
	GroupID string `json:"group_id" validate:"required" doc:"Group to queue"`
}

// EnqueueInput wraps the enqueue request for Huma.
type EnqueueInput struct {
	Body EnqueueRequest
}

// EnqueueOutput wraps the queue entry and any paired competition.
type EnqueueOutput struct {
	Body *service.EnqueueResult
}

// DequeueInput identifies the queued group.
type DequeueInput struct {
	GroupID string `path:"group_id" doc:"Group ID"`
}

// QueueResponse lists waiting groups.
type QueueResponse struct {
	Entries []*domain.MatchmakingQueueEntry `json:"entries"`
}

// QueueOutput wraps QueueResponse for Huma.
type QueueOutput struct {
	Body QueueResponse
}

func (s *Server) handleEnqueueGroup(ctx context.Context, input *EnqueueInput) (*EnqueueOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, err
	}

	result, err := s.services.Matchmaking.Enqueue(ctx, input.Body.GroupID, userID)
	if err != nil {
		return nil, err
	}
	return &EnqueueOutput{Body: result}, nil
}

func (s *Server) handleDequeueGroup(ctx context.Context, input *DequeueInput) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Matchmaking.Dequeue(ctx, input.GroupID, userID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleListQueue(ctx context.Context, _ *struct{}) (*QueueOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	entries, err := s.services.Matchmaking.ListQueue(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*domain.MatchmakingQueueEntry{}
	}
	return &QueueOutput{Body: QueueResponse{Entries: entries}}, nil
}
