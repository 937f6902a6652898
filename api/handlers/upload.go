package handlers

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"advising/apperr"
	"advising/api/middleware"
	"advising/models"
	"advising/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var errNoFile = apperr.InvalidArg("no file uploaded")

// UploadResponse can be sent back as-is in a message's attachment list.
type UploadResponse struct {
	ID   string                `json:"id"`
	Name string                `json:"name"`
	Type models.AttachmentKind `json:"type"`
	URL  string                `json:"url"`
	Size int64                 `json:"size"`
}

type UploadHandlers struct {
	blobs    services.BlobStore
	maxBytes int64
}

func NewUploadHandlers(blobs services.BlobStore, maxBytes int64) *UploadHandlers {
	return &UploadHandlers{blobs: blobs, maxBytes: maxBytes}
}

// formFile reads one multipart file field, rejecting bodies over maxBytes.
func formFile(c *gin.Context, field string, maxBytes int64) (multipart.File, *multipart.FileHeader, error) {
	// Multipart framing adds a little on top of the file itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+64*1024)
	file, header, err := c.Request.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, fileTooLarge(maxBytes)
		}
		return nil, nil, errNoFile
	}
	if header.Size > maxBytes {
		_ = file.Close()
		return nil, nil, fileTooLarge(maxBytes)
	}
	return file, header, nil
}

func fileTooLarge(maxBytes int64) error {
	return apperr.InvalidArg(fmt.Sprintf("file exceeds the %d MB limit", maxBytes>>20))
}

func contentTypeOf(header *multipart.FileHeader) string {
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(header.Filename))); byExt != "" {
			contentType = byExt
		}
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return contentType
}

func (h *UploadHandlers) Upload(c *gin.Context) {
	if _, ok := middleware.MustCaller(c); !ok {
		return
	}
	file, header, err := formFile(c, "file", h.maxBytes)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	defer file.Close()

	id := uuid.NewString()
	contentType := contentTypeOf(header)
	key := "attachments/" + id + strings.ToLower(filepath.Ext(header.Filename))
	url, err := h.blobs.Save(c.Request.Context(), key, contentType, file)
	if err != nil {
		middleware.RespondError(c, apperr.Storage("failed to store file", err))
		return
	}

	c.JSON(http.StatusCreated, UploadResponse{
		ID:   id,
		Name: header.Filename,
		Type: services.KindFromMIME(contentType),
		URL:  url,
		Size: header.Size,
	})
}
