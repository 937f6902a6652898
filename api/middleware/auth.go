package middleware

import (
	"context"
	"strconv"
	"strings"

	"advising/apperr"
	"advising/services"

	"github.com/gin-gonic/gin"
)

const callerKey = "caller"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (services.Caller, error)
}

// BearerToken extracts the session token from the Authorization header.
// Websocket clients cannot set headers, so the token query parameter is
// accepted as well.
func BearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return c.Query("token")
}

// AuthMiddleware resolves the bearer token and stores the caller together
// with user_id and role in the context.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			RespondError(c, apperr.Unauthorized("authentication required"))
			return
		}
		caller, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			RespondError(c, err)
			return
		}
		c.Set(callerKey, caller)
		c.Set("user_id", caller.ID)
		c.Set("role", caller.Role)
		c.Next()
	}
}

// CallerFrom returns the caller stored by AuthMiddleware.
func CallerFrom(c *gin.Context) (services.Caller, bool) {
	v, exists := c.Get(callerKey)
	if !exists {
		return services.Caller{}, false
	}
	caller, ok := v.(services.Caller)
	return caller, ok && caller.Role.Valid()
}

// MustCaller is CallerFrom for handlers behind AuthMiddleware; it answers
// 401 and returns false when no caller is present.
func MustCaller(c *gin.Context) (services.Caller, bool) {
	caller, ok := CallerFrom(c)
	if !ok {
		RespondError(c, apperr.Unauthorized("authentication required"))
	}
	return caller, ok
}

func callerLabel(c *gin.Context) string {
	caller, ok := CallerFrom(c)
	if !ok {
		return ""
	}
	return string(caller.Role) + ":" + strconv.FormatInt(caller.ID, 10)
}
