package middleware

import (
	"advising/apperr"
	"advising/logger"

	"github.com/gin-gonic/gin"
)

// RespondError writes err as {"error": ..., "code": ...} with the status of
// its kind and aborts the chain. Storage and unknown errors are logged with
// their cause; clients only see the public message.
func RespondError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	status := apperr.HTTPStatus(code)
	if status >= 500 {
		logger.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Str("code", string(code)).
			Msg("request failed")
	}
	if code == apperr.CodeUnknown {
		code = apperr.CodeInternal
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": apperr.PublicMessage(err),
		"code":  code,
	})
}
