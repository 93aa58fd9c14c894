package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/ironcrew/ironcrew-server/internal/errors"
	"github.com/ironcrew/ironcrew-server/internal/store"
)

// APIError is the {code, message, details} body every failed request gets.
type APIError struct { //nolint:revive // exported as api.APIError on purpose
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

func (e *APIError) Error() string { return e.Message }

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int { return e.status }

// ContentType keeps error bodies plain JSON rather than problem+json.
func (e *APIError) ContentType(string) string { return "application/json" }

// RegisterErrorHandler configures huma to use domain errors.
// Call this after creating the huma.API but before registering routes.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		var details []string
		for _, err := range errs {
			var domainErr *domainerrors.Error
			if errors.As(err, &domainErr) {
				return &APIError{
					status:  domainErr.HTTPStatus(),
					Code:    string(domainErr.Code),
					Message: domainErr.Message,
					Details: domainErr.Details,
				}
			}

			var storeErr *store.Error
			if errors.As(err, &storeErr) {
				code := storeErr.HTTPCode()
				if code == http.StatusPreconditionFailed {
					code = http.StatusConflict
				}
				return &APIError{
					status:  code,
					Code:    statusToCode(code),
					Message: storeErr.Message,
				}
			}

			if err != nil {
				details = append(details, err.Error())
			}
		}

		// Schema failures from huma itself are validation errors.
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}

		apiErr := &APIError{
			status:  status,
			Code:    statusToCode(status),
			Message: message,
		}
		if status == http.StatusBadRequest && len(details) > 0 {
			apiErr.Details = details
		}
		return apiErr
	}
}

// codeByStatus inverts the domain status table for errors huma raises itself.
var codeByStatus = func() map[int]domainerrors.Code {
	m := make(map[int]domainerrors.Code)
	for _, c := range []domainerrors.Code{
		domainerrors.CodeValidation,
		domainerrors.CodeUnauthorized,
		domainerrors.CodeForbidden,
		domainerrors.CodeNotFound,
		domainerrors.CodeConflict,
		domainerrors.CodeRateLimited,
	} {
		m[c.HTTPStatus()] = c
	}
	return m
}()

func statusToCode(status int) string {
	if c, ok := codeByStatus[status]; ok {
		return string(c)
	}
	return string(domainerrors.CodeInternal)
}
