package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ispcare/backend/internal/auth"
	"github.com/ispcare/backend/internal/domain"
	"github.com/ispcare/backend/pkg/response"
)

// writeError maps domain errors onto HTTP responses. Unknown errors are
// logged and reported as internal errors with fallback as the message.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, domain.ErrNotificationNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, domain.ErrUserAlreadyExists):
		response.Conflict(w, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		response.Unauthorized(w, "invalid username/email or password")
	case errors.Is(err, domain.ErrAccountDisabled):
		response.Forbidden(w, err.Error())
	case errors.Is(err, domain.ErrNoOTPFound),
		errors.Is(err, domain.ErrOTPExpired),
		errors.Is(err, domain.ErrOTPMismatch):
		response.BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, auth.ErrPasswordTooShort):
		response.BadRequest(w, err.Error())
	default:
		logger.Error(fallback, zap.Error(err))
		response.InternalError(w, fallback)
	}
}
