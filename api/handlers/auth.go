package handlers

import (
	"net/http"

	"advising/api/middleware"
	"advising/models"
	"advising/services"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Username string      `json:"username" binding:"required,max=60"`
	Password string      `json:"password" binding:"required"`
	Role     models.Role `json:"role" binding:"required,oneof=student advisor"`
}

type RegisterStudentRequest struct {
	Name          string `json:"name" binding:"required,max=100"`
	Surname       string `json:"surname" binding:"required,max=100"`
	Email         string `json:"email" binding:"required,email,max=255"`
	StudentNumber string `json:"student_number" binding:"required,max=30"`
	Password      string `json:"password" binding:"required,min=6,max=128"`
	AdvisorID     *int64 `json:"advisor_id" binding:"omitempty,gt=0"`
}

type LogoutResponse struct {
	Status string `json:"status"`
}

type AuthHandlers struct {
	auth *services.AuthService
}

func NewAuthHandlers(auth *services.AuthService) *AuthHandlers {
	return &AuthHandlers{auth: auth}
}

func (h *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	result, err := h.auth.Login(c.Request.Context(), req.Role, req.Username, req.Password)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *AuthHandlers) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), middleware.BearerToken(c)); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, LogoutResponse{Status: "ok"})
}

func (h *AuthHandlers) RegisterStudent(c *gin.Context) {
	var req RegisterStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	student, err := h.auth.RegisterStudent(c.Request.Context(), services.RegisterStudentInput{
		Name:          req.Name,
		Surname:       req.Surname,
		Email:         req.Email,
		StudentNumber: req.StudentNumber,
		Password:      req.Password,
		AdvisorID:     req.AdvisorID,
	})
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, student)
}
