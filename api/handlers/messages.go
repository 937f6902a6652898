package handlers

import (
	"net/http"
	"time"

	"advising/api/middleware"
	"advising/models"
	"advising/services"

	"github.com/gin-gonic/gin"
)

type AttachmentRequest struct {
	ID   string                `json:"id" binding:"omitempty,max=64"`
	Name string                `json:"name" binding:"required,max=255"`
	Type models.AttachmentKind `json:"type" binding:"required,oneof=image video audio document"`
	URL  string                `json:"url" binding:"required,max=1024"`
}

type SendMessageRequest struct {
	ReceiverID  int64               `json:"receiver_id" binding:"required,gt=0"`
	Content     string              `json:"content" binding:"max=10000"`
	Attachments []AttachmentRequest `json:"attachments" binding:"omitempty,max=10,dive"`
}

type ThreadQuery struct {
	StudentID int64 `form:"student_id" binding:"required,gt=0"`
	AdvisorID int64 `form:"advisor_id" binding:"required,gt=0"`
}

type MarkReadResponse struct {
	ID   int64 `json:"id"`
	Read bool  `json:"read"`
}

// MessageHandlers serves sending, reading and marking messages plus the
// advisor conversation list.
type MessageHandlers struct {
	messenger *services.Messenger
}

func NewMessageHandlers(messenger *services.Messenger) *MessageHandlers {
	return &MessageHandlers{messenger: messenger}
}

func (h *MessageHandlers) Send(c *gin.Context) {
	caller, ok := middleware.MustCaller(c)
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	attachments := make([]models.Attachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		attachments = append(attachments, models.Attachment{ID: a.ID, Name: a.Name, Type: a.Type, URL: a.URL})
	}

	start := time.Now()
	msg, err := h.messenger.Send(c.Request.Context(), caller, req.ReceiverID, req.Content, attachments)
	middleware.RecordMessageOperation("send", serviceName, time.Since(start), err)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandlers) Thread(c *gin.Context) {
	caller, ok := middleware.MustCaller(c)
	if !ok {
		return
	}
	var q ThreadQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}

	start := time.Now()
	msgs, err := h.messenger.Thread(c.Request.Context(), caller, q.StudentID, q.AdvisorID)
	middleware.RecordMessageOperation("fetch_thread", serviceName, time.Since(start), err)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *MessageHandlers) Inbox(c *gin.Context) {
	caller, ok := middleware.MustCaller(c)
	if !ok {
		return
	}
	advisorID, ok := idParam(c, "advisor_id")
	if !ok {
		return
	}

	start := time.Now()
	msgs, err := h.messenger.Inbox(c.Request.Context(), caller, advisorID)
	middleware.RecordMessageOperation("inbox", serviceName, time.Since(start), err)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *MessageHandlers) MarkRead(c *gin.Context) {
	caller, ok := middleware.MustCaller(c)
	if !ok {
		return
	}
	messageID, ok := idParam(c, "message_id")
	if !ok {
		return
	}

	start := time.Now()
	err := h.messenger.MarkRead(c.Request.Context(), caller, messageID)
	middleware.RecordMessageOperation("mark_read", serviceName, time.Since(start), err)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MarkReadResponse{ID: messageID, Read: true})
}

func (h *MessageHandlers) Conversations(c *gin.Context) {
	caller, ok := middleware.MustCaller(c)
	if !ok {
		return
	}
	advisorID, ok := idParam(c, "advisor_id")
	if !ok {
		return
	}

	start := time.Now()
	summaries, err := h.messenger.Conversations(c.Request.Context(), caller, advisorID)
	middleware.RecordMessageOperation("conversations", serviceName, time.Since(start), err)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}
