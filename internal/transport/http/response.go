package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatline-server/internal/core"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func errorBody(msg string) ErrorResponse {
	return ErrorResponse{Success: false, Message: msg}
}

// bindJSON decodes the request body into dst, answering 413 or 400 on failure.
func bindJSON(c *gin.Context, dst any, log *zerolog.Logger) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, errorBody("request body too large"))
			return false
		}
		log.Debug().Err(err).Str("path", c.FullPath()).Msg("invalid request body")
		c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
		return false
	}
	return true
}

func coreStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrEmptyMessage),
		errors.Is(err, core.ErrInvalidPayload),
		errors.Is(err, core.ErrUnsupportedImage):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidRecipient),
		errors.Is(err, core.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, core.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeCoreError answers with the status and message for an error from the core.
func writeCoreError(c *gin.Context, err error, log *zerolog.Logger) {
	status := coreStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, errorBody(core.ErrorFor(err).Message))
}
