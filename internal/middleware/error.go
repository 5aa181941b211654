package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	apperrors "github.com/jwalitptl/scheduler-api/pkg/errors"
)

// ErrorResponse is the standardized error body, also used by Recovery and
// Timeout.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// ErrorHandler logs gin-collected errors and renders the last one using the
// domain error taxonomy.
func ErrorHandler(zl *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			zl.Error().
				Err(e.Err).
				Str("request_id", requestID).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Msg("request error")
		}

		if c.Writer.Written() {
			return
		}
		lastErr := c.Errors.Last()
		c.JSON(statusFor(lastErr.Err), ErrorResponse{
			Code:    statusFor(lastErr.Err),
			Message: lastErr.Error(),
			TraceID: requestID,
		})
	}
}

func statusFor(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrScheduleExists, apperrors.ErrSlotUnavailable:
		return http.StatusConflict
	case apperrors.ErrWaitlistFull:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
