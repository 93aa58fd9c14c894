package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ironcrew/ironcrew-server/internal/domain"
	"github.com/ironcrew/ironcrew-server/internal/service"
)

func (s *Server) registerProgressionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getMyLevel",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/level",
		Summary:     "Get my level",
		Description: "Derives the caller's XP and tier from lifetime stats",
		Tags:        []string{"Progression"},
		Security:    bearer,
	}, s.handleGetMyLevel)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMyAchievements",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/achievements",
		Summary:     "List my achievements",
		Description: "Returns the achievement catalog with the caller's progress",
		Tags:        []string{"Progression"},
		Security:    bearer,
	}, s.handleListMyAchievements)

	huma.Register(s.api, huma.Operation{
		OperationID: "evaluateMyAchievements",
		Method:      http.MethodPost,
		Path:        "/api/v1/me/achievements/evaluate",
		Summary:     "Evaluate achievements",
		Description: "Re-evaluates the catalog and returns achievements unlocked by this call",
		Tags:        []string{"Progression"},
		Security:    bearer,
	}, s.handleEvaluateMyAchievements)

	huma.Register(s.api, huma.Operation{
		OperationID:   "markAchievementNotified",
		Method:        http.MethodPost,
		Path:          "/api/v1/me/achievements/{id}/notified",
		Summary:       "Mark achievement notified",
		Description:   "Records that an unlocked achievement was shown to the user",
		Tags:          []string{"Progression"},
		Security:      bearer,
		DefaultStatus: http.StatusNoContent,
	}, s.handleMarkAchievementNotified)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMyAnnouncements",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/announcements",
		Summary:     "List my announcements",
		Description: "Returns the caller's announcement feed, newest first",
		Tags:        []string{"Progression"},
		Security:    bearer,
	}, s.handleListMyAnnouncements)
}

// LevelOutput wraps the caller's level.
type LevelOutput struct {
	Body domain.UserLevel
}

// AchievementListResponse lists catalog entries with progress.
type AchievementListResponse struct {
	Achievements []domain.AchievementProgress `json:"achievements"`
}

// AchievementListOutput wraps AchievementListResponse for Huma.
type AchievementListOutput struct {
	Body AchievementListResponse
}

// EvaluateResponse lists achievements unlocked by one evaluation.
type EvaluateResponse struct {
	NewlyUnlocked []service.UnlockedAchievement `json:"newly_unlocked"`
}

// EvaluateOutput wraps EvaluateResponse for Huma.
type EvaluateOutput struct {
	Body EvaluateResponse
}

// AchievementIDInput identifies one achievement.
type AchievementIDInput struct {
	ID string `path:"id" doc:"Achievement ID"`
}

// ListAnnouncementsInput pages the announcement feed.
type ListAnnouncementsInput struct {
	Limit int `query:"limit" doc:"Max entries (default 20, max 100)"`
}

// AnnouncementListResponse is the announcement feed.
type AnnouncementListResponse struct {
	Announcements []*domain.Announcement `json:"announcements"`
}

// AnnouncementListOutput wraps AnnouncementListResponse for Huma.
type AnnouncementListOutput struct {
	Body AnnouncementListResponse
}

func (s *Server) handleGetMyLevel(ctx context.Context, _ *struct{}) (*LevelOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	level, err := s.services.Levels.LevelForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &LevelOutput{Body: level}, nil
}

func (s *Server) handleListMyAchievements(ctx context.Context, _ *struct{}) (*AchievementListOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	progress, err := s.services.Achievements.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &AchievementListOutput{Body: AchievementListResponse{Achievements: progress}}, nil
}

func (s *Server) handleEvaluateMyAchievements(ctx context.Context, _ *struct{}) (*EvaluateOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	unlocked, err := s.services.Achievements.Evaluate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if unlocked == nil {
		unlocked = []service.UnlockedAchievement{}
	}
	return &EvaluateOutput{Body: EvaluateResponse{NewlyUnlocked: unlocked}}, nil
}

func (s *Server) handleMarkAchievementNotified(ctx context.Context, input *AchievementIDInput) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Achievements.MarkNotified(ctx, userID, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleListMyAnnouncements(ctx context.Context, input *ListAnnouncementsInput) (*AnnouncementListOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	feed, err := s.services.Announcements.ListForUser(ctx, userID, input.Limit)
	if err != nil {
		return nil, err
	}
	if feed == nil {
		feed = []*domain.Announcement{}
	}
	return &AnnouncementListOutput{Body: AnnouncementListResponse{Announcements: feed}}, nil
}
