package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikahq/mika-go/internal/domain/apperrors"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
)

// ErrorBody is the JSON shape of every failed API response.
func ErrorBody(message, code string) gin.H {
	return gin.H{"success": false, "error": message, "code": code}
}

// StatusOf maps an application error to its HTTP status and public code.
func StatusOf(err error) (int, string) {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		return http.StatusBadRequest, apperrors.CodeOf(err)
	case apperrors.KindNotFound:
		return http.StatusNotFound, apperrors.CodeOf(err)
	case apperrors.KindConflict:
		return http.StatusConflict, apperrors.CodeOf(err)
	default:
		return http.StatusInternalServerError, apperrors.CodeInternal
	}
}

// RespondError aborts with the mapped status. Only server errors are logged;
// client errors are the caller's problem and stay out of the logs.
func RespondError(c *gin.Context, logger *logging.ChanneledLogger, channel logging.Channel, err error) {
	status, code := StatusOf(err)

	message := "internal server error"
	if status < http.StatusInternalServerError {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			message = appErr.Message
		} else {
			message = err.Error()
		}
	} else {
		logger.WithContext(c.Request.Context(), channel).Error("Request failed",
			"path", c.FullPath(), "code", apperrors.CodeOf(err), "error", err.Error())
	}

	c.AbortWithStatusJSON(status, ErrorBody(message, code))
}
