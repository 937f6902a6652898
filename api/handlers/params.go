package handlers

import (
	"strconv"

	"advising/apperr"
	"advising/api/middleware"

	"github.com/gin-gonic/gin"
)

const serviceName = "advising"

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		middleware.RespondError(c, apperr.InvalidArg("invalid "+name))
		return 0, false
	}
	return id, true
}

func bindError(c *gin.Context, err error) {
	middleware.RespondError(c, apperr.Wrap(apperr.CodeInvalidArgument, "invalid request: "+err.Error(), err))
}
