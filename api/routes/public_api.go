package routes

import (
	"advising/api/handlers"
	"advising/api/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Auth     *handlers.AuthHandlers
	Messages *handlers.MessageHandlers
	Profiles *handlers.ProfileHandlers
	Uploads  *handlers.UploadHandlers
	WS       *handlers.WSHandlers
}

// PublicApi registers the endpoints that work without a session.
func PublicApi(router *gin.Engine, h Handlers) *gin.RouterGroup {
	publicEndpoints := router.Group("/api/v1/")
	{
		publicEndpoints.POST("auth/login", h.Auth.Login)
		publicEndpoints.POST("auth/student/register", h.Auth.RegisterStudent)

		publicEndpoints.GET("advisors", h.Profiles.ListAdvisors)
		publicEndpoints.GET("advisors/:advisor_id", h.Profiles.GetAdvisor)
	}
	return publicEndpoints
}

// PrivateApi registers the endpoints that need a bearer token.
func PrivateApi(router *gin.Engine, h Handlers, auth middleware.Authenticator, limiter middleware.Limiter) *gin.RouterGroup {
	privateEndpoints := router.Group("/api/v1/", middleware.AuthMiddleware(auth))
	{
		privateEndpoints.POST("auth/logout", h.Auth.Logout)
		privateEndpoints.POST("upload", middleware.RateLimitMiddleware(limiter, "upload"), h.Uploads.Upload)

		// Messages
		privateEndpoints.POST("messages", middleware.RateLimitMiddleware(limiter, "send"), h.Messages.Send)
		privateEndpoints.GET("messages", h.Messages.Thread)
		privateEndpoints.GET("messages/advisor/:advisor_id", h.Messages.Inbox)
		privateEndpoints.PATCH("messages/:message_id/read", h.Messages.MarkRead)
		privateEndpoints.GET("advisors/:advisor_id/students", h.Messages.Conversations)

		// Profiles
		privateEndpoints.PUT("advisors/:advisor_id", h.Profiles.UpdateAdvisor)
		privateEndpoints.PUT("advisors/:advisor_id/profile-photo", h.Profiles.SetAdvisorPhoto)
		privateEndpoints.DELETE("advisors/:advisor_id/profile-photo", h.Profiles.DeleteAdvisorPhoto)
		privateEndpoints.GET("students/:student_id", h.Profiles.GetStudent)
		privateEndpoints.PUT("students/:student_id/profile", h.Profiles.UpdateStudent)
		privateEndpoints.PUT("students/:student_id/profile-photo", h.Profiles.SetStudentPhoto)
		privateEndpoints.DELETE("students/:student_id/profile-photo", h.Profiles.DeleteStudentPhoto)

		privateEndpoints.GET("ws", h.WS.Connect)
	}
	return privateEndpoints
}
