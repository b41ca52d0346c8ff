package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/7and1/famouspeople.id-sub000/internal/profiles"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Error codes returned in the JSON error envelope.
const (
	CodeRateLimited       = "RATE_LIMITED"
	CodeInvalidBody       = "INVALID_BODY"
	CodeInvalidQuery      = "INVALID_QUERY"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInvalidToken      = "INVALID_TOKEN"
	CodeServerConfigError = "SERVER_CONFIG_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodePersonNotFound    = "PERSON_NOT_FOUND"
	CodeInternalError     = "INTERNAL_ERROR"
)

// Error is an HTTP error rendered as
//
//	{"error": {"code", "message", "request_id", "retry_after"}}
type Error struct {
	Status  int
	Code    string
	Message string

	// RetryAfter is included for 429 responses.
	RetryAfter int64
}

// NewError creates an Error.
func NewError(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

type errorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id,omitempty"`
	RetryAfter *int64 `json:"retry_after,omitempty"`
}

// abortWithError writes err as the error envelope and stops the chain.
// Errors that are not an *Error or a known directory error become a 500
// without exposing the message.
func abortWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
	case errors.Is(err, profiles.ErrNotFound):
		apiErr = NewError(http.StatusNotFound, CodePersonNotFound, "Person not found")
	case errors.Is(err, profiles.ErrInvalidQuery):
		apiErr = NewError(http.StatusBadRequest, CodeInvalidQuery, err.Error())
	default:
		zerolog.Ctx(c.Request.Context()).Error().
			Err(err).
			Str("path", c.Request.URL.Path).
			Msg("Unhandled request error")
		apiErr = NewError(http.StatusInternalServerError, CodeInternalError, "An unexpected error occurred")
	}

	body := errorBody{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		RequestID: RequestIDFrom(c),
	}
	if apiErr.Status == http.StatusTooManyRequests {
		retry := apiErr.RetryAfter
		body.RetryAfter = &retry
	}
	c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": body})
}
