package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeValidation, http.StatusBadRequest},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeInternal, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestError_IsMatchesByCode(t *testing.T) {
	err := Conflictf("group %s already queued", "grp-1")

	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrNotFound)

	wrapped := fmt.Errorf("enqueue: %w", err)
	assert.ErrorIs(t, wrapped, ErrConflict)
	assert.Equal(t, CodeConflict, CodeOf(wrapped))
}

func TestError_WrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(cause, CodeInternal, "save duel")

	assert.Equal(t, "save duel: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus())
}

func TestError_WithDetails(t *testing.T) {
	base := Validation("validation failed")
	detailed := base.WithDetails(map[string]string{"duration_days": "must be at least 1"})

	require.NotSame(t, base, detailed)
	assert.Nil(t, base.Details)
	assert.Equal(t, map[string]string{"duration_days": "must be at least 1"}, detailed.Details)
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, CodeInternal, CodeOf(fmt.Errorf("boom")))
	assert.Equal(t, CodeForbidden, CodeOf(Forbidden("owner or admin required")))
}

func TestConstructors_KeepLiteralPercent(t *testing.T) {
	assert.Equal(t, "streak bonus is 10% per day", Validation("streak bonus is 10% per day").Message)
	assert.Equal(t, "duel duel-1 not found", NotFoundf("duel %s not found", "duel-1").Message)
	assert.Equal(t, http.StatusTooManyRequests, RateLimited("slow down").HTTPStatus())
}
