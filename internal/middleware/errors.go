package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mneedham/pinot-cryptowatch/internal/domain/dto"
	"github.com/mneedham/pinot-cryptowatch/internal/logger"
)

// ErrorHandler turns errors attached to the Gin context into a standardized
// JSON error response.
//
// Behavior:
//   - Runs the rest of the chain first, then inspects c.Errors.
//   - If a handler already wrote a status/body, nothing is overwritten.
//   - Otherwise the last attached error becomes a 500 with dto.ErrorResponse.
func ErrorHandler(c *gin.Context) {
	c.Next()

	if len(c.Errors) == 0 || c.Writer.Written() {
		return
	}

	err := c.Errors.Last().Err
	logger.L().Error().Err(err).Str("path", c.FullPath()).Msg("unhandled request error")
	c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("Internal server error", err))
}

// AbortWithError logs the error and aborts the request with a JSON
// dto.ErrorResponse carrying the given status and message.
func AbortWithError(c *gin.Context, status int, message string, err error) {
	if err != nil {
		logger.L().Warn().Err(err).Int("status", status).Str("path", c.FullPath()).Msg(message)
	}
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(message, err))
}
