package validation_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/ironcrew/ironcrew-server/internal/errors"
	"github.com/ironcrew/ironcrew-server/internal/validation"
)

type duelRequest struct {
	OpponentID   string `json:"opponent_id" validate:"required"`
	Type         string `json:"type" validate:"required,duel_type"`
	DurationDays int    `json:"duration_days" validate:"min=1,max=30"`
}

type leaderboardRequest struct {
	Scope string `json:"scope" validate:"omitempty,lb_scope"`
	Day   string `json:"day" validate:"omitempty,day"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	assert.NoError(t, v.Validate(duelRequest{OpponentID: "usr-2", Type: "streak", DurationDays: 7}))
	assert.NoError(t, v.Validate(leaderboardRequest{Scope: "friends", Day: "2026-10-01"}))
	assert.NoError(t, v.Validate(leaderboardRequest{}))
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name    string
		req     any
		field   string
		message string
	}{
		{
			name:    "missing opponent",
			req:     duelRequest{Type: "streak", DurationDays: 7},
			field:   "opponent_id",
			message: "is required",
		},
		{
			name:    "unknown duel type",
			req:     duelRequest{OpponentID: "usr-2", Type: "pushups", DurationDays: 7},
			field:   "type",
			message: "must be one of: streak workout_count",
		},
		{
			name:    "duration too short",
			req:     duelRequest{OpponentID: "usr-2", Type: "streak", DurationDays: 0},
			field:   "duration_days",
			message: "must be at least 1",
		},
		{
			name:    "duration too long",
			req:     duelRequest{OpponentID: "usr-2", Type: "streak", DurationDays: 31},
			field:   "duration_days",
			message: "must not exceed 30",
		},
		{
			name:    "unknown scope",
			req:     leaderboardRequest{Scope: "planet"},
			field:   "scope",
			message: "must be one of: global friends groups",
		},
		{
			name:    "bad day",
			req:     leaderboardRequest{Day: "10/01/2026"},
			field:   "day",
			message: "must be a date in YYYY-MM-DD format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())
			assert.ErrorIs(t, err, domainerrors.ErrValidation)

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.message, details[tt.field])
		})
	}
}
