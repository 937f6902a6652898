package handlers

import (
	"net/http"

	"advising/api/middleware"
	"advising/models"
	"advising/services"

	"github.com/gin-gonic/gin"
)

type UpdateAdvisorRequest struct {
	Name             *string `json:"name" binding:"omitempty,max=100"`
	Surname          *string `json:"surname" binding:"omitempty,max=100"`
	Email            *string `json:"email" binding:"omitempty,email,max=255"`
	Username         *string `json:"username" binding:"omitempty,max=60"`
	OfficeNumber     *string `json:"office_number" binding:"omitempty,max=50"`
	OfficeHoursStart *string `json:"office_hours_start" binding:"omitempty,max=5"`
	OfficeHoursEnd   *string `json:"office_hours_end" binding:"omitempty,max=5"`
	OfficeDays       *string `json:"office_days" binding:"omitempty,max=100"`
}

type UpdateStudentRequest struct {
	Name    *string `json:"name" binding:"omitempty,max=100"`
	Surname *string `json:"surname" binding:"omitempty,max=100"`
	Email   *string `json:"email" binding:"omitempty,email,max=255"`
}

type PhotoResponse struct {
	PhotoURL string `json:"photo_url"`
}

type ProfileHandlers struct {
	profiles      *services.ProfileService
	maxPhotoBytes int64
}

func NewProfileHandlers(profiles *services.ProfileService, maxPhotoBytes int64) *ProfileHandlers {
	return &ProfileHandlers{profiles: profiles, maxPhotoBytes: maxPhotoBytes}
}

func (h *ProfileHandlers) ListAdvisors(c *gin.Context) {
	advisors, err := h.profiles.ListAdvisors(c.Request.Context())
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, advisors)
}

func (h *ProfileHandlers) GetAdvisor(c *gin.Context) {
	advisorID, ok := idParam(c, "advisor_id")
	if !ok {
		return
	}
	advisor, err := h.profiles.GetAdvisor(c.Request.Context(), advisorID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, advisor)
}

func (h *ProfileHandlers) UpdateAdvisor(c *gin.Context) {
	caller, ok := middleware.MustCaller(c)
	if !ok {
		return
	}
	advisorID, ok := idParam(c, "advisor_id")
	if !ok {
		return
	}
	var req UpdateAdvisorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	advisor, err := h.profiles.UpdateAdvisor(c.Request.Context(), caller, advisorID, services.AdvisorUpdate{
		Name:             req.Name,
		Surname:          req.Surname,
		Email:            req.Email,
		Username:         req.Username,
		OfficeNumber:     req.OfficeNumber,
		OfficeHoursStart: req.OfficeHoursStart,
		OfficeHoursEnd:   req.OfficeHoursEnd,
		OfficeDays:       req.OfficeDays,
	})
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, advisor)
}

func (h *ProfileHandlers) GetStudent(c *gin.Context) {
	studentID, ok := idParam(c, "student_id")
	if !ok {
		return
	}
	student, err := h.profiles.GetStudent(c.Request.Context(), studentID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

func (h *ProfileHandlers) UpdateStudent(c *gin.Context) {
	caller, ok := middleware.MustCaller(c)
	if !ok {
		return
	}
	studentID, ok := idParam(c, "student_id")
	if !ok {
		return
	}
	var req UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	student, err := h.profiles.UpdateStudent(c.Request.Context(), caller, studentID, services.StudentUpdate{
		Name:    req.Name,
		Surname: req.Surname,
		Email:   req.Email,
	})
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

func (h *ProfileHandlers) setPhoto(c *gin.Context, role models.Role, param string) {
	caller, ok := middleware.MustCaller(c)
	if !ok {
		return
	}
	id, ok := idParam(c, param)
	if !ok {
		return
	}
	file, header, err := formFile(c, "photo", h.maxPhotoBytes)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	defer file.Close()

	url, err := h.profiles.SetPhoto(c.Request.Context(), caller, role, id, header.Filename, contentTypeOf(header), file)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, PhotoResponse{PhotoURL: url})
}

func (h *ProfileHandlers) deletePhoto(c *gin.Context, role models.Role, param string) {
	caller, ok := middleware.MustCaller(c)
	if !ok {
		return
	}
	id, ok := idParam(c, param)
	if !ok {
		return
	}
	if err := h.profiles.DeletePhoto(c.Request.Context(), caller, role, id); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, PhotoResponse{})
}

func (h *ProfileHandlers) SetAdvisorPhoto(c *gin.Context) {
	h.setPhoto(c, models.RoleAdvisor, "advisor_id")
}

func (h *ProfileHandlers) DeleteAdvisorPhoto(c *gin.Context) {
	h.deletePhoto(c, models.RoleAdvisor, "advisor_id")
}

func (h *ProfileHandlers) SetStudentPhoto(c *gin.Context) {
	h.setPhoto(c, models.RoleStudent, "student_id")
}

func (h *ProfileHandlers) DeleteStudentPhoto(c *gin.Context) {
	h.deletePhoto(c, models.RoleStudent, "student_id")
}
